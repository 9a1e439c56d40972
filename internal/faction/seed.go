package faction

import (
	"context"
	"fmt"

	"Wulin-Chronicle/server/internal/models"
)

// DefaultFactions are the sects of a fresh world.
var DefaultFactions = []models.Faction{
	{Name: "武当派", Alignment: models.AlignmentRighteous, Reputation: 1000, Description: "天下武功出少林，其次武当。"},
	{Name: "丐帮", Alignment: models.AlignmentRighteous, Reputation: 800, Description: "天下第一大帮，弟子遍布五湖四海。"},
	{Name: "魔教", Alignment: models.AlignmentVillain, Reputation: -1000, Description: "行事诡秘，心狠手辣，为武林正道所不容。"},
	{Name: "铸剑山庄", Alignment: models.AlignmentNeutral, Reputation: 500, Description: "以铸造神兵利器闻名天下。"},
	{Name: "五毒教", Alignment: models.AlignmentVillain, Reputation: -700, Description: "擅长用毒，教众行事乖张。"},
}

// InitialRelationship is the stance between two sects of a fresh world.
func InitialRelationship(source, target models.Alignment) (models.RelationshipStatus, int) {
	switch {
	case source == target:
		return models.StatusAllied, 20
	case source == models.AlignmentRighteous && target == models.AlignmentVillain,
		source == models.AlignmentVillain && target == models.AlignmentRighteous:
		return models.StatusHostile, 50
	}
	return models.StatusNeutral, 0
}

// Seed creates any missing default sect and any missing directed
// relationship. Existing records keep their evolved values.
func (s *System) Seed(ctx context.Context) error {
	existing, err := s.repo.ListFactions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list factions: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, f := range existing {
		known[f.Name] = true
	}
	for _, f := range DefaultFactions {
		if known[f.Name] {
			continue
		}
		f := f
		if err := s.repo.UpsertFaction(ctx, &f); err != nil {
			return fmt.Errorf("failed to seed faction %s: %w", f.Name, err)
		}
	}

	factions, err := s.repo.ListFactions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list factions: %w", err)
	}
	relationships, err := s.repo.ListRelationships(ctx)
	if err != nil {
		return fmt.Errorf("failed to list relationships: %w", err)
	}
	pairs := make(map[[2]uint]bool, len(relationships))
	for _, rel := range relationships {
		pairs[[2]uint{rel.SourceID, rel.TargetID}] = true
	}

	for _, source := range factions {
		for _, target := range factions {
			if source.ID == target.ID || pairs[[2]uint{source.ID, target.ID}] {
				continue
			}
			status, intensity := InitialRelationship(source.Alignment, target.Alignment)
			rel := &models.FactionRelationship{SourceID: source.ID, TargetID: target.ID, Status: status, Intensity: intensity}
			if err := s.repo.UpsertRelationship(ctx, rel); err != nil {
				return fmt.Errorf("failed to seed relationship %s: %w", WarSubject(source.Name, target.Name), err)
			}
		}
	}
	s.logger.Info().Int("factions", len(factions)).Msg("factions seeded")
	return nil
}
