// Package narrative routes narration requests to a template, a light model or
// the heavy model, and turns whatever comes back into an Output.
package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"Wulin-Chronicle/server/internal/interfaces"
	"Wulin-Chronicle/server/internal/prompts"
)

// Cost accounting layers besides the narration tiers.
const (
	LayerStoryEngine = "story_engine"
	LayerRaw         = "raw"
)

type Dispatcher struct {
	backend      interfaces.GenerationBackend
	templates    *prompts.TemplateEngine
	rules        []Rule
	monitor      interfaces.CostMonitor
	defaultModel string
	logger       zerolog.Logger
}

// NewDispatcher builds a dispatcher. defaultModel is only used to label cost
// records of the heavy tier; the backend picks the model itself.
func NewDispatcher(
	logger zerolog.Logger,
	backend interfaces.GenerationBackend,
	templates *prompts.TemplateEngine,
	rules []Rule,
	monitor interfaces.CostMonitor,
	defaultModel string,
) *Dispatcher {
	return &Dispatcher{
		backend:      backend,
		templates:    templates,
		rules:        rules,
		monitor:      monitor,
		defaultModel: defaultModel,
		logger:       logger.With().Str("component", "narrative").Logger(),
	}
}

// Resolve returns the tier of the first rule whose conditions all hold.
func (d *Dispatcher) Resolve(c Context) (Tier, string) {
	for _, rule := range d.rules {
		if rule.matches(c) {
			d.logger.Debug().Str("rule", rule.Comment).Str("tier", string(rule.Tier)).Msg("matched narrative rule")
			return rule.Tier, rule.Model
		}
	}
	return TierHeavy, ""
}

// Dispatch produces the narration for c. It never fails: problems degrade to
// a more capable tier or to a diagnostic output.
func (d *Dispatcher) Dispatch(ctx context.Context, c Context) Output {
	tier, model := d.Resolve(c)

	switch tier {
	case TierTemplate:
		out, err := d.renderTemplate(c)
		if err == nil {
			return out
		}
		d.logger.Warn().Err(err).Str("event_type", c.EventType).Msg("template tier failed, escalating to heavy model")
	case TierLight:
		if model != "" {
			return d.generate(ctx, c, TierLight, model)
		}
		d.logger.Error().Msg("light model rule has no model, escalating to heavy model")
	case TierHeavy:
	default:
		d.logger.Warn().Str("tier", string(tier)).Msg("unknown narrative tier, using heavy model")
	}
	return d.generate(ctx, c, TierHeavy, "")
}

func (d *Dispatcher) renderTemplate(c Context) (Output, error) {
	if d.templates == nil {
		return Output{}, errors.New("no template engine")
	}
	rendered, err := d.templates.Render(c.EventType, promptVars(c))
	if err != nil {
		return Output{}, err
	}
	out, err := parseOutput(rendered)
	if err != nil {
		return Output{}, fmt.Errorf("template %s: %w", c.EventType, err)
	}
	return out, nil
}

func (d *Dispatcher) generate(ctx context.Context, c Context, tier Tier, model string) Output {
	if d.backend == nil || d.templates == nil {
		return wanderingOutput()
	}
	prompt, err := d.templates.Render(prompts.NarratorTemplate, promptVars(c))
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to render narrator prompt")
		return wanderingOutput()
	}

	resp, err := d.call(ctx, string(tier), &interfaces.GenerationRequest{
		Prompt: prompt,
		Format: interfaces.FormatJSON,
		Model:  model,
	})
	if err != nil {
		d.logger.Error().Err(err).Str("tier", string(tier)).Msg("narrator failed to respond")
		return wanderingOutput()
	}
	out, err := parseOutput(resp.Content)
	if err != nil {
		d.logger.Error().Err(err).Str("content", resp.Content).Msg("failed to parse narrator response")
		return garbledOutput()
	}
	return out
}

// GenerateRaw sends a prompt asking for a JSON answer and returns the content.
func (d *Dispatcher) GenerateRaw(ctx context.Context, prompt string) (string, error) {
	resp, err := d.call(ctx, LayerRaw, &interfaces.GenerationRequest{Prompt: prompt, Format: interfaces.FormatJSON})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", errors.New("empty response")
	}
	return resp.Content, nil
}

// Consult renders the named prompt, asks for a JSON answer and decodes it
// into out.
func (d *Dispatcher) Consult(ctx context.Context, templateName string, vars prompts.Vars, out any) error {
	if d.templates == nil {
		return errors.New("no template engine")
	}
	prompt, err := d.templates.Render(templateName, vars)
	if err != nil {
		return err
	}
	content, err := d.GenerateRaw(ctx, prompt)
	if err != nil {
		return err
	}
	raw, err := ExtractJSON(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to decode %s answer: %w", templateName, err)
	}
	return nil
}

// Tell renders the named prompt and returns the model's prose answer.
func (d *Dispatcher) Tell(ctx context.Context, templateName string, vars prompts.Vars) (string, error) {
	if d.templates == nil {
		return "", errors.New("no template engine")
	}
	prompt, err := d.templates.Render(templateName, vars)
	if err != nil {
		return "", err
	}
	resp, err := d.call(ctx, LayerRaw, &interfaces.GenerationRequest{Prompt: prompt, Format: interfaces.FormatText})
	if err != nil {
		return "", err
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return "", errors.New("empty response")
	}
	return content, nil
}

// Generate lets the dispatcher stand in for the backend so other callers are
// metered too.
func (d *Dispatcher) Generate(ctx context.Context, req *interfaces.GenerationRequest) (*interfaces.GenerationResponse, error) {
	return d.call(ctx, LayerStoryEngine, req)
}

func (d *Dispatcher) call(ctx context.Context, layer string, req *interfaces.GenerationRequest) (*interfaces.GenerationResponse, error) {
	if d.backend == nil {
		return nil, errors.New("no generation backend")
	}
	start := time.Now()
	resp, err := d.backend.Generate(ctx, req)

	rec := interfaces.CostRecord{Timestamp: time.Now(), Layer: layer, Model: req.Model}
	if rec.Model == "" {
		rec.Model = d.defaultModel
	}
	if resp != nil {
		meta := resp.Metadata
		if meta.Model != "" {
			rec.Model = meta.Model
		}
		rec.PromptTokens = meta.PromptTokens
		rec.CompletionTokens = meta.CompletionTokens
		rec.TotalTokens = meta.TotalTokens
		rec.DurationSeconds = meta.Duration.Seconds()
	}
	if rec.DurationSeconds == 0 {
		rec.DurationSeconds = time.Since(start).Seconds()
	}
	if d.monitor != nil {
		d.monitor.RecordCall(ctx, rec)
	}

	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("backend returned no response")
	}
	return resp, nil
}

func promptVars(c Context) prompts.Vars {
	style := prompts.StyleInstructions[c.Tone]
	return prompts.Vars{
		"style_instruction":    style,
		"time":                 c.Time,
		"location_name":        c.Location.Name,
		"location_description": c.Location.Description,
		"world_summary":        orDefault(c.WorldSummary, "江湖暂无大事。"),
		"faction_context":      orDefault(c.FactionContext, "无"),
		"legacy_summary":       orDefault(c.LegacySummary, "无"),
		"scene_summary":        c.SceneSummary,
		"event_type":           c.EventType,
		"player": map[string]any{
			"name":   c.Player.Name,
			"realm":  string(c.Player.Realm),
			"level":  c.Player.Level,
			"hp":     c.Player.Stats.HP,
			"max_hp": c.Player.Stats.MaxHP,
			"mp":     c.Player.Stats.MP,
			"max_mp": c.Player.Stats.MaxMP,
			"mood":   c.Player.Mood,
		},
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
