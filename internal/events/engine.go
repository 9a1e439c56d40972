// Package events holds the event pool: it binds catalog triggers, picks the
// event for a tick and synthesizes one-shot events from generated text.
package events

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"Wulin-Chronicle/server/internal/interfaces"
	"Wulin-Chronicle/server/internal/prompts"
	"Wulin-Chronicle/server/internal/rng"
	"Wulin-Chronicle/server/internal/state"
	"Wulin-Chronicle/server/internal/store"
	"Wulin-Chronicle/server/internal/triggers"
)

// Dispatcher is the part of the store the engine writes through.
type Dispatcher interface {
	Dispatch(ctx context.Context, a store.Action) error
}

type Deps struct {
	Registry   *triggers.Registry
	Catalog    Catalog
	Backend    interfaces.GenerationBackend
	Templates  *prompts.TemplateEngine
	Dispatcher Dispatcher
	Helpers    triggers.Helpers
	RNG        *rng.Source
	// FactionContext supplies the sect news for the story-engine prompt. Optional.
	FactionContext func(ctx context.Context) string
}

type Engine struct {
	deps   Deps
	logger zerolog.Logger

	mu   sync.RWMutex
	pool []*state.GameEvent
}

func NewEngine(logger zerolog.Logger, deps Deps) *Engine {
	if deps.RNG == nil {
		deps.RNG = rng.NewTimeSeeded()
	}
	if deps.Helpers.RandomInt == nil {
		deps.Helpers.RandomInt = deps.RNG.IntRange
	}
	return &Engine{
		deps:   deps,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// Initialize loads the catalog and binds every trigger.
func (e *Engine) Initialize(ctx context.Context) error {
	if e.deps.Catalog == nil {
		return fmt.Errorf("event engine has no catalog")
	}
	defs, err := e.deps.Catalog.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load event catalog: %w", err)
	}
	e.LoadDefinitions(defs)
	return nil
}

// LoadDefinitions replaces the pool. Events whose trigger cannot be resolved
// stay in the pool with a trigger that never fires.
func (e *Engine) LoadDefinitions(defs []Definition) {
	pool := make([]*state.GameEvent, 0, len(defs))
	for _, def := range defs {
		pool = append(pool, &state.GameEvent{
			ID:          def.ID,
			Category:    def.Type,
			Title:       def.Title,
			Description: def.Description,
			Trigger:     e.resolveTrigger(def),
			Choices:     def.Choices,
			Once:        def.Once,
		})
	}

	e.mu.Lock()
	e.pool = pool
	e.mu.Unlock()
	e.logger.Info().Int("events", len(pool)).Msg("event pool initialized")
}

func (e *Engine) resolveTrigger(def Definition) state.Trigger {
	spec := def.Trigger
	if e.deps.Registry == nil {
		e.logger.Warn().Str("event", def.ID).Msg("no trigger registry, event is dormant")
		return state.Never
	}
	if e.deps.Registry.Has(spec.ID) {
		trigger, err := e.deps.Registry.Bind(spec.config(), e.deps.Helpers)
		if err == nil {
			return trigger
		}
		e.logger.Warn().Err(err).Str("event", def.ID).Str("trigger", spec.ID).Msg("failed to bind trigger, event is dormant")
		return state.Never
	}

	// Not a registered name: the id itself is read as an expression.
	trigger, err := e.deps.Registry.Bind(triggers.Config{ID: triggers.ExpressionTrigger, Expression: spec.ID}, e.deps.Helpers)
	if err != nil {
		e.logger.Warn().Err(err).Str("event", def.ID).Str("trigger", spec.ID).Msg("unresolvable trigger, event is dormant")
		return state.Never
	}
	return trigger
}

// Pool returns a copy of the bound events.
func (e *Engine) Pool() []*state.GameEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*state.GameEvent(nil), e.pool...)
}

// TriggerRandomEvent evaluates every eligible trigger in order and picks one
// of the firing events uniformly. It returns nil when nothing fires.
func (e *Engine) TriggerRandomEvent(ctx context.Context, s *state.GameState) (*state.GameEvent, error) {
	if s == nil {
		return nil, nil
	}

	var candidates []*state.GameEvent
	for _, event := range e.Pool() {
		if event.Once && s.HasTriggered(event.ID) {
			continue
		}
		ok, err := evaluate(ctx, event, s)
		if err != nil {
			e.logger.Warn().Err(err).Str("event", event.ID).Msg("trigger failed, skipping event")
			continue
		}
		if ok {
			candidates = append(candidates, event)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	chosen := candidates[e.deps.RNG.Intn(len(candidates))]
	if chosen.Once && e.deps.Dispatcher != nil {
		if err := e.deps.Dispatcher.Dispatch(ctx, store.MarkTriggeredOnce{EventID: chosen.ID}); err != nil {
			return nil, fmt.Errorf("failed to record fire-once event %s: %w", chosen.ID, err)
		}
	}
	e.logger.Info().Str("event", chosen.ID).Str("title", chosen.Title).Int("candidates", len(candidates)).Msg("triggered event")
	return chosen, nil
}

// evaluate runs one trigger. A panic is reported as an error so it excludes
// only that event.
func evaluate(ctx context.Context, event *state.GameEvent, s *state.GameState) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("trigger panicked: %v", r)
		}
	}()
	return event.Trigger(ctx, s)
}

// TriggerDynamicEvent asks the backend for an unscripted encounter and queues
// it as a one-shot opportunity. Any failure yields nil.
func (e *Engine) TriggerDynamicEvent(ctx context.Context, s *state.GameState) *state.GameEvent {
	if s == nil || e.deps.Backend == nil || e.deps.Templates == nil {
		return nil
	}

	factionContext := "江湖暂无大事。"
	if e.deps.FactionContext != nil {
		if fc := e.deps.FactionContext(ctx); fc != "" {
			factionContext = fc
		}
	}
	prompt, err := e.deps.Templates.Render(prompts.StoryEngineTemplate, prompts.Vars{
		"context":         state.BuildContext(s),
		"faction_context": factionContext,
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("failed to render story engine prompt")
		return nil
	}

	resp, err := e.deps.Backend.Generate(ctx, &interfaces.GenerationRequest{Prompt: prompt, Format: interfaces.FormatText})
	if err != nil {
		e.logger.Warn().Err(err).Msg("story engine failed to respond")
		return nil
	}
	description := strings.TrimSpace(resp.Content)
	if description == "" {
		e.logger.Info().Msg("story engine returned nothing")
		return nil
	}

	event := &state.GameEvent{
		ID:          "dynamic-" + uuid.NewString(),
		Category:    state.CategoryOpportunity,
		Title:       "奇遇",
		Description: description,
		Trigger:     state.Never,
		Once:        true,
	}
	if e.deps.Dispatcher != nil {
		if err := e.deps.Dispatcher.Dispatch(ctx, store.AddEventToQueue{Event: event}); err != nil {
			e.logger.Warn().Err(err).Msg("failed to queue dynamic event")
			return nil
		}
	}
	e.logger.Info().Str("event", event.ID).Msg("story engine queued a dynamic event")
	return event
}
