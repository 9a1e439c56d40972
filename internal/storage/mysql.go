package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"Wulin-Chronicle/server/internal/config"
	"Wulin-Chronicle/server/internal/models"
)

// MySQLStore persists factions, the chronicle and the world archive.
type MySQLStore struct {
	db *gorm.DB
}

func NewMySQLStore(cfg config.MySQLConfig) (*MySQLStore, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.AutoMigrate(
		&models.Faction{},
		&models.FactionRelationship{},
		&models.ChronicleEntry{},
		&models.NPCRecord{},
		&models.GameMeta{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn inside a transaction.
func (s *MySQLStore) WithTx(ctx context.Context, fn func(*gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *MySQLStore) ListFactions(ctx context.Context) ([]models.Faction, error) {
	var factions []models.Faction
	if err := s.db.WithContext(ctx).Order("id").Find(&factions).Error; err != nil {
		return nil, fmt.Errorf("failed to list factions: %w", err)
	}
	return factions, nil
}

func (s *MySQLStore) UpsertFaction(ctx context.Context, f *models.Faction) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "alignment", "reputation", "updated_at"}),
	}).Create(f).Error
	if err != nil {
		return fmt.Errorf("failed to upsert faction %s: %w", f.Name, err)
	}
	if f.ID == 0 {
		return s.db.WithContext(ctx).Where("name = ?", f.Name).First(f).Error
	}
	return nil
}

func (s *MySQLStore) AdjustReputation(ctx context.Context, factionID uint, delta int) error {
	err := s.db.WithContext(ctx).Model(&models.Faction{}).
		Where("id = ?", factionID).
		UpdateColumn("reputation", gorm.Expr("reputation + ?", delta)).Error
	if err != nil {
		return fmt.Errorf("failed to adjust reputation: %w", err)
	}
	return nil
}

func (s *MySQLStore) ListRelationships(ctx context.Context) ([]models.FactionRelationship, error) {
	var rels []models.FactionRelationship
	err := s.db.WithContext(ctx).Preload("Source").Preload("Target").Order("id").Find(&rels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	return rels, nil
}

func (s *MySQLStore) UpsertRelationship(ctx context.Context, rel *models.FactionRelationship) error {
	row := models.FactionRelationship{
		SourceID:  rel.SourceID,
		TargetID:  rel.TargetID,
		Status:    rel.Status,
		Intensity: rel.Intensity,
	}
	err := s.db.WithContext(ctx).Omit("Source", "Target").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_id"}, {Name: "target_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "intensity", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert relationship: %w", err)
	}
	// ON DUPLICATE KEY UPDATE does not report the existing row's id.
	var stored models.FactionRelationship
	err = s.db.WithContext(ctx).Select("id").
		Where("source_id = ? AND target_id = ?", rel.SourceID, rel.TargetID).
		Take(&stored).Error
	if err != nil {
		return fmt.Errorf("failed to reload relationship: %w", err)
	}
	rel.ID = stored.ID
	return nil
}

func (s *MySQLStore) AdjustIntensity(ctx context.Context, relationshipID uint, delta int) error {
	err := s.db.WithContext(ctx).Model(&models.FactionRelationship{}).
		Where("id = ?", relationshipID).
		UpdateColumn("intensity", gorm.Expr("intensity + ?", delta)).Error
	if err != nil {
		return fmt.Errorf("failed to adjust intensity: %w", err)
	}
	return nil
}

func (s *MySQLStore) ListHostileAtLeast(ctx context.Context, threshold int) ([]models.FactionRelationship, error) {
	var rels []models.FactionRelationship
	err := s.db.WithContext(ctx).Preload("Source").Preload("Target").
		Where("status = ? AND intensity >= ?", models.StatusHostile, threshold).
		Order("id").Find(&rels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list hostile relationships: %w", err)
	}
	return rels, nil
}

func (s *MySQLStore) AppendEntry(ctx context.Context, entry *models.ChronicleEntry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append %s entry: %w", entry.Type, err)
	}
	return nil
}

func (s *MySQLStore) FindEntry(ctx context.Context, entryType, subject string) (*models.ChronicleEntry, error) {
	var entry models.ChronicleEntry
	err := s.db.WithContext(ctx).Where("type = ? AND subject = ?", entryType, subject).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s entry: %w", entryType, err)
	}
	return &entry, nil
}

func (s *MySQLStore) CountEntries(ctx context.Context, entryType string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.ChronicleEntry{}).Where("type = ?", entryType).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s entries: %w", entryType, err)
	}
	return n, nil
}

func (s *MySQLStore) ListEntries(ctx context.Context, entryType string, limit int) ([]models.ChronicleEntry, error) {
	q := s.db.WithContext(ctx).Where("type = ?", entryType).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []models.ChronicleEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s entries: %w", entryType, err)
	}
	return entries, nil
}

func (s *MySQLStore) UpsertNPC(ctx context.Context, npc *models.NPCRecord) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(npc).Error
	if err != nil {
		return fmt.Errorf("failed to upsert npc %s: %w", npc.Name, err)
	}
	return nil
}

func (s *MySQLStore) ListNPCs(ctx context.Context) ([]models.NPCRecord, error) {
	var npcs []models.NPCRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&npcs).Error; err != nil {
		return nil, fmt.Errorf("failed to list npcs: %w", err)
	}
	return npcs, nil
}

func (s *MySQLStore) PutMeta(ctx context.Context, key, value string) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.GameMeta{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("failed to put meta %s: %w", key, err)
	}
	return nil
}

func (s *MySQLStore) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var meta models.GameMeta
	err := s.db.WithContext(ctx).Where("`key` = ?", key).First(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return meta.Value, true, nil
}
