package interfaces

import (
	"context"
	"errors"

	"Wulin-Chronicle/server/internal/models"
)

// ErrSlotNotFound is returned when a save slot is empty.
var ErrSlotNotFound = errors.New("save slot not found")

// FactionRepository persists sects and their relationships.
type FactionRepository interface {
	ListFactions(ctx context.Context) ([]models.Faction, error)
	UpsertFaction(ctx context.Context, f *models.Faction) error
	AdjustReputation(ctx context.Context, factionID uint, delta int) error

	// ListRelationships returns relationships with Source and Target populated.
	ListRelationships(ctx context.Context) ([]models.FactionRelationship, error)
	UpsertRelationship(ctx context.Context, rel *models.FactionRelationship) error
	AdjustIntensity(ctx context.Context, relationshipID uint, delta int) error
	// ListHostileAtLeast returns hostile relationships whose intensity reaches threshold.
	ListHostileAtLeast(ctx context.Context, threshold int) ([]models.FactionRelationship, error)
}

// Chronicle is the append-only world event log.
type Chronicle interface {
	AppendEntry(ctx context.Context, entry *models.ChronicleEntry) error
	// FindEntry returns nil, nil when no entry of that type and subject exists.
	FindEntry(ctx context.Context, entryType, subject string) (*models.ChronicleEntry, error)
	CountEntries(ctx context.Context, entryType string) (int64, error)
	// ListEntries returns newest first; limit <= 0 means all.
	ListEntries(ctx context.Context, entryType string, limit int) ([]models.ChronicleEntry, error)
}

// WorldArchive keeps NPCs and world bookkeeping across sessions.
type WorldArchive interface {
	UpsertNPC(ctx context.Context, npc *models.NPCRecord) error
	ListNPCs(ctx context.Context) ([]models.NPCRecord, error)
	PutMeta(ctx context.Context, key, value string) error
	// GetMeta reports found=false for a missing key.
	GetMeta(ctx context.Context, key string) (value string, found bool, err error)
}

// SaveStore holds serialized game states in numbered slots.
type SaveStore interface {
	WriteSlot(ctx context.Context, slot int, data []byte) error
	ReadSlot(ctx context.Context, slot int) ([]byte, error)
	ListSlots(ctx context.Context) ([]int, error)
}
