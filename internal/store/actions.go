package store

import (
	"context"

	"Wulin-Chronicle/server/internal/state"
)

// Action is the closed set of things that can change a GameState.
// Only types declared in this package implement it.
type Action interface {
	Type() string
	isAction()
}

// ReplaceState swaps in a whole new state, used at initialization.
type ReplaceState struct{ State *state.GameState }

// Deserialize restores a saved snapshot.
type Deserialize struct{ Snapshot state.Snapshot }

// ApplyEventResult applies a choice outcome: clamped hp/mp, attribute deltas, mood.
type ApplyEventResult struct{ Result state.EventResult }

type AddEventToQueue struct{ Event *state.GameEvent }

type ShiftEventFromQueue struct{}

type RemoveQueuedEvent struct{ EventID string }

type MarkTriggeredOnce struct{ EventID string }

type UpdateNPCs struct{ NPCs []state.NPC }

type UpdateSceneNPCs struct{ NPCs []state.NPC }

type UpdateInventory struct{ Inventory []state.Item }

type AdvanceTime struct{ Ticks int }

type SetPlayer struct{ Player state.PlayerState }

// AddExp grants experience and levels up once the threshold is reached.
type AddExp struct{ Exp int }

type LevelUp struct{}

// Travel moves the player through an exit of the current location.
type Travel struct{ Direction state.Direction }

// WorldEvolved marks the end of a world tick and carries its summary.
type WorldEvolved struct{ Summary string }

// DispatchFunc is handed to thunks.
type DispatchFunc func(ctx context.Context, a Action) error

// Thunk is a deferred procedure that may read state and dispatch further actions.
type Thunk func(ctx context.Context, dispatch DispatchFunc, getState func() *state.GameState) error

func (ReplaceState) Type() string        { return "REPLACE_STATE" }
func (Deserialize) Type() string         { return "DESERIALIZE" }
func (ApplyEventResult) Type() string    { return "APPLY_EVENT_RESULT" }
func (AddEventToQueue) Type() string     { return "ADD_EVENT_TO_QUEUE" }
func (ShiftEventFromQueue) Type() string { return "SHIFT_EVENT_FROM_QUEUE" }
func (RemoveQueuedEvent) Type() string   { return "REMOVE_QUEUED_EVENT" }
func (MarkTriggeredOnce) Type() string   { return "MARK_TRIGGERED_ONCE" }
func (UpdateNPCs) Type() string          { return "UPDATE_NPCS" }
func (UpdateSceneNPCs) Type() string     { return "UPDATE_SCENE_NPCS" }
func (UpdateInventory) Type() string     { return "UPDATE_INVENTORY" }
func (AdvanceTime) Type() string         { return "ADVANCE_TIME" }
func (SetPlayer) Type() string           { return "SET_PLAYER" }
func (AddExp) Type() string              { return "ADD_EXP" }
func (LevelUp) Type() string             { return "LEVEL_UP" }
func (Travel) Type() string              { return "TRAVEL" }
func (WorldEvolved) Type() string        { return "WORLD_EVOLVED" }
func (Thunk) Type() string               { return "THUNK" }

func (ReplaceState) isAction()        {}
func (Deserialize) isAction()         {}
func (ApplyEventResult) isAction()    {}
func (AddEventToQueue) isAction()     {}
func (ShiftEventFromQueue) isAction() {}
func (RemoveQueuedEvent) isAction()   {}
func (MarkTriggeredOnce) isAction()   {}
func (UpdateNPCs) isAction()          {}
func (UpdateSceneNPCs) isAction()     {}
func (UpdateInventory) isAction()     {}
func (AdvanceTime) isAction()         {}
func (SetPlayer) isAction()           {}
func (AddExp) isAction()              {}
func (LevelUp) isAction()             {}
func (Travel) isAction()              {}
func (WorldEvolved) isAction()        {}
func (Thunk) isAction()               {}
