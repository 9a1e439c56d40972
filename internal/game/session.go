// Package game drives one play session: world ticks, scene selection,
// narration, choices, death and legacy, saves and the world archive.
package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"Wulin-Chronicle/server/internal/config"
	"Wulin-Chronicle/server/internal/events"
	"Wulin-Chronicle/server/internal/faction"
	"Wulin-Chronicle/server/internal/infra"
	"Wulin-Chronicle/server/internal/interfaces"
	"Wulin-Chronicle/server/internal/narrative"
	"Wulin-Chronicle/server/internal/prompts"
	"Wulin-Chronicle/server/internal/rng"
	"Wulin-Chronicle/server/internal/state"
	"Wulin-Chronicle/server/internal/store"
)

var (
	ErrNoScene       = errors.New("no scene to choose from")
	ErrInvalidChoice = errors.New("invalid choice")
	ErrUnknownTone   = errors.New("unknown narration tone")
	ErrInvalidSlot   = errors.New("save slot must be a number greater than 0")
	ErrNoExit        = errors.New("no road leads that way")
	ErrNotEnoughGold = errors.New("not enough gold")
	ErrMissingItem   = errors.New("item not in inventory")
)

const (
	openingSummary = "游戏开始，你发现自己站在一个未知的江湖世界中。"
	idleSummary    = "你静静地站着，观察着周围的一切。"
	loadedSummary  = "你读取了过去的记忆，眼前的一切都发生了变化。"
	choiceExp      = 10
)

// Event types handed to the narrative rules for each event category.
var categoryEventTypes = map[state.EventCategory]string{
	state.CategoryCombat:      "combat",
	state.CategoryOpportunity: "opportunity",
	state.CategorySocial:      "social",
	state.CategoryTrade:       "trade",
	state.CategoryTrap:        "trap",
	state.CategoryIllusion:    "illusion",
}

// Scene is what the player sees and chooses from.
type Scene struct {
	Narration    string              `json:"narration"`
	Options      []state.EventChoice `json:"options"`
	Event        *state.GameEvent    `json:"event,omitempty"`
	WorldSummary string              `json:"world_summary,omitempty"`
}

// Outcome reports what a choice did.
type Outcome struct {
	Description string            `json:"description"`
	Died        bool              `json:"died"`
	Heir        string            `json:"heir,omitempty"`
	Player      state.PlayerState `json:"player"`
	// Scene is the follow-up scene opened by the choice, if any.
	Scene *Scene `json:"scene,omitempty"`
}

type Deps struct {
	Store     *store.Store
	Events    *events.Engine
	Factions  *faction.System
	Narrator  *narrative.Dispatcher
	Chronicle interfaces.Chronicle
	Archive   interfaces.WorldArchive
	Saves     interfaces.SaveStore
	Publisher infra.Publisher
	// RNG rolls for wandering visitors. Time seeded when nil.
	RNG *rng.Source
}

// Session runs one player's game. Operations that change the game (scenes,
// choices, travel, saves, world ticks) hold opMu for their whole duration so
// each scene is consumed exactly once.
type Session struct {
	deps   Deps
	cfg    config.Config
	logger zerolog.Logger

	opMu sync.Mutex

	mu            sync.Mutex
	tone          string
	lastChoice    string
	lastAction    string
	legacySummary string
	scene         *Scene
}

func NewSession(logger zerolog.Logger, cfg config.Config, deps Deps) *Session {
	if deps.Publisher == nil {
		deps.Publisher = infra.NewNoopPublisher()
	}
	if deps.RNG == nil {
		deps.RNG = rng.NewTimeSeeded()
	}
	tone := cfg.Narrative.DefaultTone
	if _, ok := prompts.StyleInstructions[tone]; !ok {
		tone = "宿命"
	}
	return &Session{
		deps:       deps,
		cfg:        cfg,
		logger:     logger.With().Str("component", "game").Logger(),
		tone:       tone,
		lastChoice: openingSummary,
	}
}

// Initialize seeds the sects, binds the event pool and restores the archived
// world. Archive problems are logged and the generated world is kept.
func (s *Session) Initialize(ctx context.Context) error {
	if err := s.deps.Factions.Seed(ctx); err != nil {
		return fmt.Errorf("failed to seed factions: %w", err)
	}
	if err := s.deps.Events.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize events: %w", err)
	}
	if err := s.LoadFromArchive(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to load world archive, starting from generated world")
	}
	if err := s.refreshLegacy(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to load legacy")
	}
	s.logger.Info().Str("player", s.State().Player.Name).Msg("session initialized")
	return nil
}

func (s *Session) State() *state.GameState {
	return s.deps.Store.GetState()
}

// Scene returns the scene awaiting a choice, or nil.
func (s *Session) Scene() *Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene
}

func (s *Session) Tone() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tone
}

func (s *Session) SetTone(tone string) error {
	if _, ok := prompts.StyleInstructions[tone]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTone, tone)
	}
	s.mu.Lock()
	s.tone = tone
	s.mu.Unlock()
	s.logger.Info().Str("tone", tone).Msg("narration tone changed")
	return nil
}

// EvolveWorld runs one world tick: NPCs grow, sects move, and the summary is
// published.
func (s *Session) EvolveWorld(ctx context.Context) (string, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.evolveWorld(ctx)
}

func (s *Session) evolveWorld(ctx context.Context) (string, error) {
	var (
		summary string
		grown   []growth
	)
	tick := store.Thunk(func(ctx context.Context, dispatch store.DispatchFunc, getState func() *state.GameState) error {
		current := getState()
		npcs := make([]state.NPC, len(current.World.NPCs))
		for i, npc := range current.World.NPCs {
			if npc.Alive {
				npc.Attributes.Strength++
				if npc.Attributes.Strength%growthMilestone == 0 {
					grown = append(grown, growth{npc: npc, from: npc.Attributes.Strength - 1})
				}
			}
			npcs[i] = npc
		}
		if err := dispatch(ctx, store.UpdateNPCs{NPCs: npcs}); err != nil {
			return err
		}

		var err error
		summary, err = s.deps.Factions.EvolveFactions(ctx)
		if err != nil {
			return err
		}
		return dispatch(ctx, store.WorldEvolved{Summary: summary})
	})
	if err := s.deps.Store.Dispatch(ctx, tick); err != nil {
		return "", fmt.Errorf("failed to evolve world: %w", err)
	}

	rumours := make([]string, 0, len(grown))
	for _, g := range grown {
		rumours = append(rumours, s.recordGrowth(ctx, g))
	}
	s.publishWorld(ctx, summary, rumours)
	return summary, nil
}

func (s *Session) publishWorld(ctx context.Context, summary string, rumours []string) {
	payload, err := json.Marshal(map[string]any{
		"time":    s.State().Time.Format(),
		"summary": summary,
		"rumours": rumours,
		"at":      time.Now(),
	})
	if err != nil {
		return
	}
	if err := s.deps.Publisher.Publish(ctx, s.cfg.Messaging.WorldSubject, payload); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish world summary")
	}
}

// NextScene advances the world and produces the next scene.
func (s *Session) NextScene(ctx context.Context) (*Scene, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	summary, err := s.evolveWorld(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("world tick failed, narrating without it")
		summary = faction.QuietSummary
	}

	if err := s.deps.Store.Dispatch(ctx, store.UpdateSceneNPCs{}); err != nil {
		return nil, err
	}

	current := s.State()
	var event *state.GameEvent
	if len(current.EventQueue) > 0 {
		event = current.EventQueue[0]
		if err := s.deps.Store.Dispatch(ctx, store.ShiftEventFromQueue{}); err != nil {
			return nil, err
		}
	} else {
		event, err = s.deps.Events.TriggerRandomEvent(ctx, current)
		if err != nil {
			return nil, err
		}
	}

	var scene *Scene
	if event != nil {
		scene = s.eventScene(ctx, event, summary)
	} else {
		scene, err = s.quietScene(ctx, summary)
		if err != nil {
			return nil, err
		}
	}
	scene.WorldSummary = summary

	s.mu.Lock()
	s.scene = scene
	s.mu.Unlock()
	return scene, nil
}

func (s *Session) eventScene(ctx context.Context, event *state.GameEvent, summary string) *Scene {
	s.logger.Info().Str("event", event.ID).Str("title", event.Title).Msg("event scene")
	if len(event.Choices) > 0 {
		return &Scene{Narration: event.Description, Options: event.Choices, Event: event}
	}
	eventType := categoryEventTypes[event.Category]
	out := s.narrate(ctx, event.Description, eventType, summary, 2)
	return &Scene{Narration: out.Narration, Options: out.Options, Event: event}
}

// quietScene narrates the aftermath of the last choice. NPCs standing here
// join the scene, and the story engine may queue an encounter for later.
func (s *Session) quietScene(ctx context.Context, summary string) (*Scene, error) {
	s.mu.Lock()
	sceneSummary, lastAction := s.lastChoice, s.lastAction
	s.mu.Unlock()
	if sceneSummary == "" {
		sceneSummary = idleSummary
	}

	current := s.State()
	var present []state.NPC
	for _, npc := range current.AliveNPCs() {
		if npc.LocationID == current.World.CurrentLocationID {
			present = append(present, npc)
		}
	}
	if visitor, ok := s.wanderingVisitor(current.World.CurrentLocationID); ok {
		present = append(present, visitor)
	}
	if len(present) > 0 {
		if err := s.deps.Store.Dispatch(ctx, store.UpdateSceneNPCs{NPCs: present}); err != nil {
			return nil, err
		}
		names := make([]string, len(present))
		for i, npc := range present {
			names[i] = npc.Name
		}
		sceneSummary += " 你在这里遇到了" + strings.Join(names, "、") + "。"
	}

	s.deps.Events.TriggerDynamicEvent(ctx, s.State())

	out := s.narrate(ctx, sceneSummary, quietEventType(lastAction, len(present) > 0), summary, 1)
	for _, npc := range present {
		if option, ok := masterOption(npc.Name); ok {
			out.Options = append(out.Options, option)
			continue
		}
		out.Options = append(out.Options, state.EventChoice{
			Text:   "与" + npc.Name + "攀谈",
			Action: "talk",
			Result: &state.EventResult{Description: "你上前与" + npc.Name + "攀谈了几句。"},
		})
	}
	return &Scene{Narration: out.Narration, Options: out.Options}, nil
}

// quietEventType names the scene for the narrative rules: arrivals and rests
// have their own templates, an empty road is "quiet" and company is "social".
func quietEventType(lastAction string, company bool) string {
	switch {
	case company:
		return "social"
	case lastAction == "travel" || lastAction == "rest":
		return lastAction
	case lastAction == "":
		return "quiet"
	default:
		return "explore"
	}
}

func (s *Session) narrate(ctx context.Context, sceneSummary, eventType, worldSummary string, importance int) narrative.Output {
	current := s.State()
	location, _ := current.World.CurrentLocation()

	s.mu.Lock()
	tone, legacy := s.tone, s.legacySummary
	s.mu.Unlock()

	return s.deps.Narrator.Dispatch(ctx, narrative.Context{
		Player:         current.Player,
		Location:       location,
		Time:           current.Time.Format(),
		WorldSummary:   worldSummary,
		SceneSummary:   sceneSummary,
		FactionContext: worldSummary,
		LegacySummary:  legacy,
		Tone:           tone,
		EventType:      eventType,
		Importance:     importance,
	})
}

// Choose applies option index of the current scene. A fatal result passes
// the legacy on before any experience is granted. Options that open a
// master's counter leave a follow-up scene in place of the consumed one.
func (s *Session) Choose(ctx context.Context, index int) (*Outcome, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	scene := s.scene
	s.mu.Unlock()
	if scene == nil {
		return nil, ErrNoScene
	}
	if index < 0 || index >= len(scene.Options) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChoice, index)
	}
	choice := scene.Options[index]
	if choice.Result != nil {
		if err := affordable(s.State().Player, *choice.Result); err != nil {
			return nil, err
		}
	}

	description := choice.Text
	if choice.Result != nil {
		if err := s.deps.Store.Dispatch(ctx, store.ApplyEventResult{Result: *choice.Result}); err != nil {
			return nil, err
		}
		if choice.Result.Description != "" {
			description = choice.Result.Description
		}
	}

	outcome := &Outcome{Description: description}
	if s.State().Player.IsDead() {
		heir, err := s.handleLegacy(ctx)
		if err != nil {
			return nil, err
		}
		outcome.Died, outcome.Heir = true, heir
		description = "你在死亡的边缘重生，开始了新的轮回。"
	}
	if err := s.deps.Store.Dispatch(ctx, store.AdvanceTime{Ticks: s.cfg.World.SceneTicks}); err != nil {
		return nil, err
	}
	if !outcome.Died {
		if err := s.deps.Store.Dispatch(ctx, store.AddExp{Exp: choiceExp}); err != nil {
			return nil, err
		}
		followUp, err := s.masterScene(ctx, choice.Action)
		if err != nil {
			return nil, err
		}
		outcome.Scene = followUp
	}
	outcome.Player = s.State().Player

	s.mu.Lock()
	s.lastChoice = description
	s.lastAction = choice.Action
	s.scene = outcome.Scene
	s.mu.Unlock()
	return outcome, nil
}

// Travel moves the player through an exit of the current location.
func (s *Session) Travel(ctx context.Context, dir state.Direction) (state.Location, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	before := s.State().World.CurrentLocationID
	if err := s.deps.Store.Dispatch(ctx, store.Travel{Direction: dir}); err != nil {
		return state.Location{}, err
	}
	current := s.State()
	if current.World.CurrentLocationID == before {
		return state.Location{}, fmt.Errorf("%w: %s", ErrNoExit, dir)
	}
	loc, _ := current.World.CurrentLocation()

	s.mu.Lock()
	s.lastChoice = fmt.Sprintf("你向%s行去，来到了%s。", dir, loc.Name)
	s.lastAction = "travel"
	s.scene = nil
	s.mu.Unlock()
	return loc, nil
}

// Save writes the snapshot to a slot and archives the world.
func (s *Session) Save(ctx context.Context, slot int) error {
	if slot < 1 {
		return ErrInvalidSlot
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	data, err := state.Marshal(s.State())
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}
	if err := s.deps.Saves.WriteSlot(ctx, slot, data); err != nil {
		return fmt.Errorf("failed to write slot %d: %w", slot, err)
	}
	s.logger.Info().Int("slot", slot).Msg("game saved")
	return s.archiveWorld(ctx)
}

// Load replaces the state with the snapshot in slot.
func (s *Session) Load(ctx context.Context, slot int) error {
	if slot < 1 {
		return ErrInvalidSlot
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	data, err := s.deps.Saves.ReadSlot(ctx, slot)
	if err != nil {
		return fmt.Errorf("failed to read slot %d: %w", slot, err)
	}
	loaded, err := state.Unmarshal(data)
	if err != nil {
		return err
	}
	if err := s.deps.Store.Dispatch(ctx, store.ReplaceState{State: loaded}); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastChoice = loadedSummary
	s.lastAction = ""
	s.scene = nil
	s.mu.Unlock()
	s.logger.Info().Int("slot", slot).Msg("game loaded")
	return nil
}

func (s *Session) Slots(ctx context.Context) ([]int, error) {
	return s.deps.Saves.ListSlots(ctx)
}
