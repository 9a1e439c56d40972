package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidSnapshot is returned for save data that cannot be restored.
var ErrInvalidSnapshot = errors.New("Invalid or corrupted save data.")

type SnapshotWorld struct {
	Locations         []Location `json:"locations"`
	NPCs              []NPC      `json:"npcs"`
	CurrentLocationID int        `json:"current_location_id"`
}

// Snapshot is the persistable form of a GameState.
type Snapshot struct {
	Player              PlayerState   `json:"player"`
	World               SnapshotWorld `json:"world"`
	Time                TimeState     `json:"time"`
	TriggeredOnceEvents []string      `json:"triggered_once_events"`
}

// Serialize converts a state into its snapshot. Queue and scene NPCs are transient and dropped.
func Serialize(s *GameState) Snapshot {
	locations := make([]Location, 0, len(s.World.Locations))
	for _, id := range s.World.LocationIDs() {
		locations = append(locations, s.World.Locations[id])
	}

	triggered := make([]string, 0, len(s.TriggeredOnceEvents))
	for id := range s.TriggeredOnceEvents {
		triggered = append(triggered, id)
	}
	sort.Strings(triggered)

	return Snapshot{
		Player: s.Player.Clone(),
		World: SnapshotWorld{
			Locations:         locations,
			NPCs:              append([]NPC(nil), s.World.NPCs...),
			CurrentLocationID: s.World.CurrentLocationID,
		},
		Time:                s.Time,
		TriggeredOnceEvents: triggered,
	}
}

// Deserialize rebuilds a state. The event queue and scene NPCs start empty.
func Deserialize(snap Snapshot) (*GameState, error) {
	if snap.Player.Name == "" || len(snap.World.Locations) == 0 {
		return nil, ErrInvalidSnapshot
	}

	locations := make(map[int]Location, len(snap.World.Locations))
	for _, loc := range snap.World.Locations {
		if loc.Exits == nil {
			loc.Exits = map[Direction]int{}
		}
		locations[loc.ID] = loc
	}
	if _, ok := locations[snap.World.CurrentLocationID]; !ok {
		return nil, ErrInvalidSnapshot
	}

	triggered := make(map[string]struct{}, len(snap.TriggeredOnceEvents))
	for _, id := range snap.TriggeredOnceEvents {
		triggered[id] = struct{}{}
	}

	tm := snap.Time
	if tm.Month == 0 || tm.Day == 0 {
		tm = NewTime()
	}

	return &GameState{
		Player: snap.Player.Clone(),
		World: World{
			Locations:         locations,
			NPCs:              append([]NPC{}, snap.World.NPCs...),
			CurrentLocationID: snap.World.CurrentLocationID,
		},
		Time:                tm,
		EventQueue:          []*GameEvent{},
		TriggeredOnceEvents: triggered,
		SceneNPCs:           []NPC{},
	}, nil
}

// Marshal encodes a state for a save slot.
func Marshal(s *GameState) ([]byte, error) {
	data, err := json.Marshal(Serialize(s))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// Unmarshal decodes save-slot bytes. Any decoding problem is reported as ErrInvalidSnapshot.
func Unmarshal(data []byte) (*GameState, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return Deserialize(snap)
}
