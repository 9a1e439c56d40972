package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"Wulin-Chronicle/server/internal/interfaces"
	"Wulin-Chronicle/server/internal/models"
)

// MemoryStore is an in-process implementation of every persistence contract.
// It backs offline runs and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	factions      map[uint]*models.Faction
	relationships map[uint]*models.FactionRelationship
	entries       []models.ChronicleEntry
	npcs          map[string]models.NPCRecord
	meta          map[string]string
	slots         map[int][]byte
	nextID        uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		factions:      make(map[uint]*models.Faction),
		relationships: make(map[uint]*models.FactionRelationship),
		npcs:          make(map[string]models.NPCRecord),
		meta:          make(map[string]string),
		slots:         make(map[int][]byte),
	}
}

func (s *MemoryStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) ListFactions(_ context.Context) ([]models.Faction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Faction, 0, len(s.factions))
	for _, f := range s.factions {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpsertFaction(_ context.Context, f *models.Faction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.factions {
		if existing.Name == f.Name {
			existing.Description = f.Description
			existing.Alignment = f.Alignment
			existing.Reputation = f.Reputation
			existing.UpdatedAt = time.Now()
			f.ID = existing.ID
			return nil
		}
	}
	if f.ID == 0 {
		f.ID = s.id()
	}
	cp := *f
	cp.CreatedAt, cp.UpdatedAt = time.Now(), time.Now()
	s.factions[f.ID] = &cp
	return nil
}

func (s *MemoryStore) AdjustReputation(_ context.Context, factionID uint, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.factions[factionID]
	if !ok {
		return fmt.Errorf("faction %d not found", factionID)
	}
	f.Reputation += delta
	return nil
}

func (s *MemoryStore) populate(rel models.FactionRelationship) models.FactionRelationship {
	if f, ok := s.factions[rel.SourceID]; ok {
		rel.Source = *f
	}
	if f, ok := s.factions[rel.TargetID]; ok {
		rel.Target = *f
	}
	return rel
}

func (s *MemoryStore) ListRelationships(_ context.Context) ([]models.FactionRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FactionRelationship, 0, len(s.relationships))
	for _, rel := range s.relationships {
		out = append(out, s.populate(*rel))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpsertRelationship(_ context.Context, rel *models.FactionRelationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.relationships {
		if existing.SourceID == rel.SourceID && existing.TargetID == rel.TargetID {
			existing.Status = rel.Status
			existing.Intensity = rel.Intensity
			rel.ID = existing.ID
			return nil
		}
	}
	rel.ID = s.id()
	cp := models.FactionRelationship{
		ID:        rel.ID,
		SourceID:  rel.SourceID,
		TargetID:  rel.TargetID,
		Status:    rel.Status,
		Intensity: rel.Intensity,
		UpdatedAt: time.Now(),
	}
	s.relationships[rel.ID] = &cp
	return nil
}

func (s *MemoryStore) AdjustIntensity(_ context.Context, relationshipID uint, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel, ok := s.relationships[relationshipID]
	if !ok {
		return fmt.Errorf("relationship %d not found", relationshipID)
	}
	rel.Intensity += delta
	return nil
}

func (s *MemoryStore) ListHostileAtLeast(ctx context.Context, threshold int) ([]models.FactionRelationship, error) {
	all, err := s.ListRelationships(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, rel := range all {
		if rel.Status == models.StatusHostile && rel.Intensity >= threshold {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (s *MemoryStore) AppendEntry(_ context.Context, entry *models.ChronicleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.id()
	entry.CreatedAt = time.Now()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *MemoryStore) FindEntry(_ context.Context, entryType, subject string) (*models.ChronicleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.Type == entryType && e.Subject == subject {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) CountEntries(_ context.Context, entryType string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, e := range s.entries {
		if e.Type == entryType {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListEntries(_ context.Context, entryType string, limit int) ([]models.ChronicleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ChronicleEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Type != entryType {
			continue
		}
		out = append(out, s.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) UpsertNPC(_ context.Context, npc *models.NPCRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.npcs[npc.Name]; ok {
		npc.ID = existing.ID
	} else if npc.ID == 0 {
		npc.ID = s.id()
	}
	npc.UpdatedAt = time.Now()
	s.npcs[npc.Name] = *npc
	return nil
}

func (s *MemoryStore) ListNPCs(_ context.Context) ([]models.NPCRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.NPCRecord, 0, len(s.npcs))
	for _, npc := range s.npcs {
		out = append(out, npc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) PutMeta(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[key] = value
	return nil
}

func (s *MemoryStore) GetMeta(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.meta[key]
	return v, ok, nil
}

func (s *MemoryStore) WriteSlot(_ context.Context, slot int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) ReadSlot(_ context.Context, slot int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.slots[slot]
	if !ok {
		return nil, interfaces.ErrSlotNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) ListSlots(_ context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, 0, len(s.slots))
	for slot := range s.slots {
		out = append(out, slot)
	}
	sort.Ints(out)
	return out, nil
}

var (
	_ interfaces.FactionRepository = (*MemoryStore)(nil)
	_ interfaces.Chronicle         = (*MemoryStore)(nil)
	_ interfaces.WorldArchive      = (*MemoryStore)(nil)
	_ interfaces.SaveStore         = (*MemoryStore)(nil)
	_ interfaces.FactionRepository = (*MySQLStore)(nil)
	_ interfaces.Chronicle         = (*MySQLStore)(nil)
	_ interfaces.WorldArchive      = (*MySQLStore)(nil)
	_ interfaces.SaveStore         = (*RedisStore)(nil)
)
