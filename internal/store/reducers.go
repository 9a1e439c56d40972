package store

import (
	"fmt"

	"Wulin-Chronicle/server/internal/state"
)

// sliceReducer returns s itself when the action does not concern it.
type sliceReducer func(s *state.GameState, a Action) *state.GameState

var sliceReducers = []sliceReducer{playerReducer, eventReducer, worldReducer}

// Reduce computes the next state. The input is never modified; an unchanged
// state is returned as the same pointer.
func Reduce(s *state.GameState, a Action) (*state.GameState, error) {
	switch act := a.(type) {
	case ReplaceState:
		if act.State == nil {
			return s, fmt.Errorf("replace state: nil state")
		}
		return act.State, nil
	case Deserialize:
		next, err := state.Deserialize(act.Snapshot)
		if err != nil {
			return s, err
		}
		return next, nil
	case SetPlayer:
		next := s.Clone()
		player := act.Player.Clone()
		player.Stats.HP = clamp(player.Stats.HP, 0, player.Stats.MaxHP)
		player.Stats.MP = clamp(player.Stats.MP, 0, player.Stats.MaxMP)
		next.Player = player
		return next, nil
	case Thunk:
		return s, fmt.Errorf("thunks cannot be reduced")
	}

	for _, reduce := range sliceReducers {
		s = reduce(s, a)
	}
	return s, nil
}

func playerReducer(s *state.GameState, a Action) *state.GameState {
	switch act := a.(type) {
	case ApplyEventResult:
		next := s.Clone()
		next.Player = applyResult(s.Player, act.Result)
		return next
	case UpdateInventory:
		next := s.Clone()
		next.Player = s.Player.Clone()
		next.Player.Inventory = append([]state.Item{}, act.Inventory...)
		return next
	case AddExp:
		if act.Exp == 0 {
			return s
		}
		next := s.Clone()
		player := s.Player.Clone()
		player.XP += act.Exp
		if player.XP >= state.ExpForNextLevel(player.Level) {
			player = player.LevelUp()
		}
		next.Player = player
		return next
	case LevelUp:
		next := s.Clone()
		next.Player = s.Player.LevelUp()
		return next
	}
	return s
}

func applyResult(p state.PlayerState, r state.EventResult) state.PlayerState {
	out := p.Clone()
	if r.PlayerStats != nil {
		out.Stats.HP = clamp(out.Stats.HP+r.PlayerStats.HP, 0, out.Stats.MaxHP)
		out.Stats.MP = clamp(out.Stats.MP+r.PlayerStats.MP, 0, out.Stats.MaxMP)
	}
	if r.PlayerAttributes != nil {
		out.Attributes.Strength += r.PlayerAttributes.Strength
		out.Attributes.Constitution += r.PlayerAttributes.Constitution
		out.Attributes.Intelligence += r.PlayerAttributes.Intelligence
		out.Attributes.Agility += r.PlayerAttributes.Agility
	}
	if r.PlayerMood != "" {
		out.Mood = r.PlayerMood
	}
	if r.Gold != 0 {
		out.Gold = max(out.Gold+r.Gold, 0)
	}
	for _, name := range r.LoseItems {
		out.Inventory = removeItem(out.Inventory, name)
	}
	out.Inventory = append(out.Inventory, r.GainItems...)
	if r.LearnSkill != "" && !out.HasSkill(r.LearnSkill) {
		out.Skills = append(out.Skills, r.LearnSkill)
	}
	return out
}

// removeItem drops the first item called name. out is already a private copy.
func removeItem(items []state.Item, name string) []state.Item {
	for i, item := range items {
		if item.Name == name {
			return append(items[:i:i], items[i+1:]...)
		}
	}
	return items
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func eventReducer(s *state.GameState, a Action) *state.GameState {
	switch act := a.(type) {
	case AddEventToQueue:
		if act.Event == nil {
			return s
		}
		next := s.Clone()
		next.EventQueue = append(append(make([]*state.GameEvent, 0, len(s.EventQueue)+1), s.EventQueue...), act.Event)
		return next
	case ShiftEventFromQueue:
		if len(s.EventQueue) == 0 {
			return s
		}
		next := s.Clone()
		next.EventQueue = append([]*state.GameEvent{}, s.EventQueue[1:]...)
		return next
	case RemoveQueuedEvent:
		idx := -1
		for i, ev := range s.EventQueue {
			if ev.ID == act.EventID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return s
		}
		next := s.Clone()
		queue := make([]*state.GameEvent, 0, len(s.EventQueue)-1)
		queue = append(queue, s.EventQueue[:idx]...)
		next.EventQueue = append(queue, s.EventQueue[idx+1:]...)
		return next
	case MarkTriggeredOnce:
		if s.HasTriggered(act.EventID) {
			return s
		}
		next := s.Clone()
		triggered := make(map[string]struct{}, len(s.TriggeredOnceEvents)+1)
		for id := range s.TriggeredOnceEvents {
			triggered[id] = struct{}{}
		}
		triggered[act.EventID] = struct{}{}
		next.TriggeredOnceEvents = triggered
		return next
	}
	return s
}

func worldReducer(s *state.GameState, a Action) *state.GameState {
	switch act := a.(type) {
	case UpdateNPCs:
		next := s.Clone()
		next.World.NPCs = append([]state.NPC{}, act.NPCs...)
		return next
	case UpdateSceneNPCs:
		next := s.Clone()
		next.SceneNPCs = append([]state.NPC{}, act.NPCs...)
		return next
	case AdvanceTime:
		if act.Ticks <= 0 {
			return s
		}
		next := s.Clone()
		next.Time = s.Time.Advance(act.Ticks)
		return next
	case Travel:
		loc, ok := s.World.CurrentLocation()
		if !ok {
			return s
		}
		target, ok := loc.Exits[act.Direction]
		if !ok {
			return s
		}
		if _, exists := s.World.Locations[target]; !exists {
			return s
		}
		next := s.Clone()
		next.World.CurrentLocationID = target
		return next
	case WorldEvolved:
		if act.Summary == s.WorldSummary {
			return s
		}
		next := s.Clone()
		next.WorldSummary = act.Summary
		return next
	}
	return s
}
