package state

import "context"

// EventCategory classifies catalog events.
type EventCategory string

const (
	CategoryCombat      EventCategory = "战斗"
	CategoryOpportunity EventCategory = "机缘"
	CategorySocial      EventCategory = "社交"
	CategoryTrade       EventCategory = "交易"
	CategoryTrap        EventCategory = "陷阱"
	CategoryIllusion    EventCategory = "幻境"
)

// Trigger is a bound eligibility predicate. Errors exclude only the event being evaluated.
type Trigger func(ctx context.Context, s *GameState) (bool, error)

// Never is the trigger for events that must only ever arrive through the queue.
func Never(context.Context, *GameState) (bool, error) { return false, nil }

type StatDelta struct {
	HP int `json:"hp,omitempty"`
	MP int `json:"mp,omitempty"`
}

type AttributeDelta struct {
	Strength     int `json:"strength,omitempty"`
	Constitution int `json:"constitution,omitempty"`
	Intelligence int `json:"intelligence,omitempty"`
	Agility      int `json:"agility,omitempty"`
}

// EventResult is the outcome of a choice. Stats, attributes and gold are
// deltas; lost items are removed by name before gained items are added.
type EventResult struct {
	Description      string          `json:"description"`
	PlayerStats      *StatDelta      `json:"player_stats,omitempty"`
	PlayerAttributes *AttributeDelta `json:"player_attributes,omitempty"`
	PlayerMood       string          `json:"player_mood,omitempty"`
	Gold             int             `json:"gold,omitempty"`
	GainItems        []Item          `json:"gain_items,omitempty"`
	LoseItems        []string        `json:"lose_items,omitempty"`
	LearnSkill       string          `json:"learn_skill,omitempty"`
	Data             map[string]any  `json:"data,omitempty"`
}

type EventChoice struct {
	Text   string       `json:"text"`
	Action string       `json:"action"`
	Result *EventResult `json:"result,omitempty"`
}

// GameEvent is a bound, ready-to-fire event.
type GameEvent struct {
	ID          string        `json:"id"`
	Category    EventCategory `json:"type"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Trigger     Trigger       `json:"-"`
	Choices     []EventChoice `json:"choices,omitempty"`
	Once        bool          `json:"once,omitempty"`
}
