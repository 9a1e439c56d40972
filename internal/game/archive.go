package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"Wulin-Chronicle/server/internal/models"
	"Wulin-Chronicle/server/internal/state"
	"Wulin-Chronicle/server/internal/store"
)

// ArchiveWorld persists NPCs and fired one-shot events. Unlike the rest of
// the session, any persistence failure is returned.
func (s *Session) ArchiveWorld(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.archiveWorld(ctx)
}

func (s *Session) archiveWorld(ctx context.Context) error {
	current := s.State()
	for _, npc := range current.World.NPCs {
		if _, ok := current.World.Locations[npc.LocationID]; !ok {
			s.logger.Warn().Str("npc", npc.Name).Int("location", npc.LocationID).Msg("npc has an invalid location, skipping")
			continue
		}
		record := npcRecord(npc)
		if err := s.deps.Archive.UpsertNPC(ctx, &record); err != nil {
			return fmt.Errorf("failed to archive npc %s: %w", npc.Name, err)
		}
	}

	triggered := make([]string, 0, len(current.TriggeredOnceEvents))
	for id := range current.TriggeredOnceEvents {
		triggered = append(triggered, id)
	}
	sort.Strings(triggered)
	value, err := json.Marshal(triggered)
	if err != nil {
		return fmt.Errorf("failed to encode triggered events: %w", err)
	}
	if err := s.deps.Archive.PutMeta(ctx, models.MetaTriggeredOnceEvents, string(value)); err != nil {
		return fmt.Errorf("failed to archive triggered events: %w", err)
	}

	s.logger.Info().Int("npcs", len(current.World.NPCs)).Int("triggered", len(triggered)).Msg("world archived")
	return nil
}

// LoadFromArchive restores archived NPCs and fired one-shot events into the
// live state. NPCs whose location no longer exists are dropped.
func (s *Session) LoadFromArchive(ctx context.Context) error {
	records, err := s.deps.Archive.ListNPCs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list archived npcs: %w", err)
	}
	current := s.State()
	if len(records) > 0 {
		npcs := make([]state.NPC, 0, len(records))
		for _, rec := range records {
			if _, ok := current.World.Locations[rec.LocationID]; !ok {
				continue
			}
			npcs = append(npcs, npcFromRecord(rec))
		}
		if err := s.deps.Store.Dispatch(ctx, store.UpdateNPCs{NPCs: npcs}); err != nil {
			return err
		}
		s.logger.Info().Int("npcs", len(npcs)).Msg("loaded npcs from archive")
	}

	value, found, err := s.deps.Archive.GetMeta(ctx, models.MetaTriggeredOnceEvents)
	if err != nil {
		return fmt.Errorf("failed to read triggered events: %w", err)
	}
	if !found {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(value), &ids); err != nil {
		return fmt.Errorf("failed to decode triggered events: %w", err)
	}
	for _, id := range ids {
		if err := s.deps.Store.Dispatch(ctx, store.MarkTriggeredOnce{EventID: id}); err != nil {
			return err
		}
	}
	s.logger.Info().Int("triggered", len(ids)).Msg("loaded triggered events from archive")
	return nil
}

func npcRecord(npc state.NPC) models.NPCRecord {
	return models.NPCRecord{
		Name:         npc.Name,
		Realm:        string(npc.Realm),
		Sect:         npc.Sect,
		Alive:        npc.Alive,
		LocationID:   npc.LocationID,
		Reputation:   npc.Reputation,
		HP:           npc.Stats.HP,
		MaxHP:        npc.Stats.MaxHP,
		MP:           npc.Stats.MP,
		MaxMP:        npc.Stats.MaxMP,
		Strength:     npc.Attributes.Strength,
		Constitution: npc.Attributes.Constitution,
	}
}

func npcFromRecord(rec models.NPCRecord) state.NPC {
	return state.NPC{
		ID:         int(rec.ID),
		Name:       rec.Name,
		Realm:      state.Realm(rec.Realm),
		Sect:       rec.Sect,
		Alive:      rec.Alive,
		LocationID: rec.LocationID,
		Reputation: rec.Reputation,
		Stats:      state.Stats{HP: rec.HP, MaxHP: rec.MaxHP, MP: rec.MP, MaxMP: rec.MaxMP},
		Attributes: state.NPCAttributes{Strength: rec.Strength, Constitution: rec.Constitution},
	}
}
