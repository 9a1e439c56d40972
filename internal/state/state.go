package state

// GameState is the complete session state. Values reachable from a committed
// GameState are never mutated; updates build a new GameState.
type GameState struct {
	Player              PlayerState         `json:"player"`
	World               World               `json:"world"`
	Time                TimeState           `json:"time"`
	EventQueue          []*GameEvent        `json:"event_queue"`
	TriggeredOnceEvents map[string]struct{} `json:"triggered_once_events"`
	SceneNPCs           []NPC               `json:"scene_npcs"`
	// WorldSummary is the latest world tick report. Not persisted.
	WorldSummary        string              `json:"world_summary,omitempty"`
}

// New assembles a fresh session state around a player and a world.
func New(player PlayerState, world World) *GameState {
	return &GameState{
		Player:              player,
		World:               world,
		Time:                NewTime(),
		EventQueue:          []*GameEvent{},
		TriggeredOnceEvents: map[string]struct{}{},
		SceneNPCs:           []NPC{},
	}
}

// Empty is the placeholder state a store holds before initialization.
func Empty() *GameState {
	return New(NewPlayer("无名氏"), World{Locations: map[int]Location{}})
}

// Clone returns a shallow copy. Callers replace, never mutate, the shared slices and maps.
func (s *GameState) Clone() *GameState {
	out := *s
	return &out
}

// HasTriggered reports whether a fire-once event has already fired.
func (s *GameState) HasTriggered(eventID string) bool {
	_, ok := s.TriggeredOnceEvents[eventID]
	return ok
}

// AliveNPCs returns the NPCs still alive.
func (s *GameState) AliveNPCs() []NPC {
	out := make([]NPC, 0, len(s.World.NPCs))
	for _, npc := range s.World.NPCs {
		if npc.Alive {
			out = append(out, npc)
		}
	}
	return out
}
