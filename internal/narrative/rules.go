package narrative

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"Wulin-Chronicle/server/internal/state"
)

// Tier is the strategy used to produce a narration.
type Tier string

const (
	TierTemplate Tier = "template"
	TierLight    Tier = "light_llm"
	TierHeavy    Tier = "heavy_llm"
)

// Rule routes contexts whose fields equal every condition to a tier.
type Rule struct {
	Comment    string         `yaml:"comment"`
	Conditions map[string]any `yaml:"conditions"`
	Tier       Tier           `yaml:"tier"`
	Model      string         `yaml:"model"`
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// ParseRules decodes a YAML rules document.
func ParseRules(data []byte) ([]Rule, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse narrative rules: %w", err)
	}
	return f.Rules, nil
}

// LoadRules reads the rules file. A missing or malformed file yields no rules,
// which routes everything to the heavy tier.
func LoadRules(path string, logger zerolog.Logger) []Rule {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to read narrative rules")
		return nil
	}
	rules, err := ParseRules(data)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to load narrative rules")
		return nil
	}
	logger.Info().Int("rules", len(rules)).Msg("loaded narrative rules")
	return rules
}

// Context is everything the narrator knows about the scene to tell.
type Context struct {
	Player         state.PlayerState
	Location       state.Location
	Time           string
	WorldSummary   string
	SceneSummary   string
	FactionContext string
	LegacySummary  string
	Tone           string
	EventType      string
	Importance     int
}

// Field exposes the context to rule conditions.
func (c Context) Field(name string) (any, bool) {
	switch name {
	case "event_type":
		return c.EventType, true
	case "importance":
		return c.Importance, true
	case "tone":
		return c.Tone, true
	case "location_type":
		return string(c.Location.Type), true
	case "location_id":
		return c.Location.ID, true
	case "location_name":
		return c.Location.Name, true
	case "realm":
		return string(c.Player.Realm), true
	case "player_level":
		return c.Player.Level, true
	case "player_mood":
		return c.Player.Mood, true
	}
	return nil, false
}

func (r Rule) matches(c Context) bool {
	for key, want := range r.Conditions {
		got, ok := c.Field(key)
		if !ok || !equalValues(got, want) {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
