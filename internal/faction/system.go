// Package faction runs the sect simulation: reputation drift, relationship
// intensity drift and war declarations.
package faction

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"Wulin-Chronicle/server/internal/config"
	"Wulin-Chronicle/server/internal/interfaces"
	"Wulin-Chronicle/server/internal/models"
	"Wulin-Chronicle/server/internal/rng"
)

// QuietSummary is returned when a step changed nothing worth telling.
const QuietSummary = "江湖风平浪静，各大门派相安无事。"

type System struct {
	repo      interfaces.FactionRepository
	chronicle interfaces.Chronicle
	rng       *rng.Source
	cfg       config.FactionConfig
	clock     func() string
	logger    zerolog.Logger
}

// NewSystem wires the simulation. clock returns the in-world time stamped on
// chronicle entries.
func NewSystem(
	logger zerolog.Logger,
	repo interfaces.FactionRepository,
	chronicle interfaces.Chronicle,
	src *rng.Source,
	cfg config.FactionConfig,
	clock func() string,
) *System {
	if src == nil {
		src = rng.NewTimeSeeded()
	}
	if cfg.WarThreshold == 0 {
		cfg.WarThreshold = 100
	}
	if cfg.ReputationSpread == 0 {
		cfg.ReputationSpread = 3
	}
	if clock == nil {
		clock = func() string { return "" }
	}
	return &System{
		repo:      repo,
		chronicle: chronicle,
		rng:       src,
		cfg:       cfg,
		clock:     clock,
		logger:    logger.With().Str("component", "faction").Logger(),
	}
}

// EvolveFactions runs one simulation step and returns a summary for the narrator.
func (s *System) EvolveFactions(ctx context.Context) (string, error) {
	factions, err := s.repo.ListFactions(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list factions: %w", err)
	}

	var fragments []string
	for _, f := range factions {
		delta := s.reputationDelta(f.Alignment)
		if delta == 0 {
			continue
		}
		if err := s.repo.AdjustReputation(ctx, f.ID, delta); err != nil {
			return "", fmt.Errorf("failed to adjust reputation of %s: %w", f.Name, err)
		}
		if delta > 0 {
			fragments = append(fragments, f.Name+"的声望略有上升。")
		} else {
			fragments = append(fragments, f.Name+"的声望有所下降。")
		}
	}

	relationships, err := s.repo.ListRelationships(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list relationships: %w", err)
	}
	for _, rel := range relationships {
		delta := s.intensityDelta(rel.Status)
		if delta == 0 {
			continue
		}
		if err := s.repo.AdjustIntensity(ctx, rel.ID, delta); err != nil {
			return "", fmt.Errorf("failed to adjust relationship %d: %w", rel.ID, err)
		}
	}

	wars, err := s.CheckForMajorFactionEvents(ctx)
	if err != nil {
		return "", err
	}
	fragments = append(fragments, wars...)

	s.logger.Info().Int("events", len(fragments)).Msg("factions evolved")
	if len(fragments) == 0 {
		return QuietSummary, nil
	}
	return "江湖中暗流涌动：" + strings.Join(fragments, " "), nil
}

func (s *System) reputationDelta(a models.Alignment) int {
	switch a {
	case models.AlignmentRighteous:
		return s.rng.Intn(s.cfg.ReputationSpread)
	case models.AlignmentVillain:
		return -s.rng.Intn(s.cfg.ReputationSpread)
	}
	return 0
}

func (s *System) intensityDelta(status models.RelationshipStatus) int {
	switch status {
	case models.StatusHostile:
		return s.rng.IntRange(0, 2)
	case models.StatusAllied:
		return s.rng.IntRange(0, 1)
	}
	return s.rng.IntRange(-1, 1)
}

// WarSubject keys the war record of an ordered pair.
func WarSubject(source, target string) string {
	return source + "→" + target
}

// CheckForMajorFactionEvents declares war for every hostile pair at or above
// the threshold that has not declared one yet.
func (s *System) CheckForMajorFactionEvents(ctx context.Context) ([]string, error) {
	hostile, err := s.repo.ListHostileAtLeast(ctx, s.cfg.WarThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to list hostile relationships: %w", err)
	}

	var declarations []string
	for _, rel := range hostile {
		subject := WarSubject(rel.Source.Name, rel.Target.Name)
		existing, err := s.chronicle.FindEntry(ctx, models.EventWarStart, subject)
		if err != nil {
			return nil, fmt.Errorf("failed to look up war %s: %w", subject, err)
		}
		if existing != nil {
			continue
		}

		reason := fmt.Sprintf("双方敌对关系达到顶点，%s 对 %s 宣战！", rel.Source.Name, rel.Target.Name)
		entry := &models.ChronicleEntry{Type: models.EventWarStart, Subject: subject, Timestamp: s.clock()}
		if err := entry.SetDetails(map[string]string{
			"faction1": rel.Source.Name,
			"faction2": rel.Target.Name,
			"reason":   reason,
		}); err != nil {
			return nil, fmt.Errorf("failed to encode war details: %w", err)
		}
		if err := s.chronicle.AppendEntry(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to record war %s: %w", subject, err)
		}
		s.logger.Info().Str("source", rel.Source.Name).Str("target", rel.Target.Name).Msg("war declared")
		declarations = append(declarations, reason)
	}
	return declarations, nil
}

// IsFactionWarHappening reports whether any war has ever been declared. Wars
// do not end.
func (s *System) IsFactionWarHappening(ctx context.Context) (bool, error) {
	n, err := s.chronicle.CountEntries(ctx, models.EventWarStart)
	if err != nil {
		return false, fmt.Errorf("failed to count wars: %w", err)
	}
	return n > 0, nil
}

// Wars lists declared wars, newest first.
func (s *System) Wars(ctx context.Context) ([]models.ChronicleEntry, error) {
	return s.chronicle.ListEntries(ctx, models.EventWarStart, 0)
}

func (s *System) Factions(ctx context.Context) ([]models.Faction, error) {
	return s.repo.ListFactions(ctx)
}

func (s *System) Relationships(ctx context.Context) ([]models.FactionRelationship, error) {
	return s.repo.ListRelationships(ctx)
}

// WarReport describes the declared wars for prompts. Empty when at peace or
// when the chronicle cannot be read.
func (s *System) WarReport(ctx context.Context) string {
	wars, err := s.Wars(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to list wars")
		return ""
	}
	if len(wars) == 0 {
		return ""
	}
	subjects := make([]string, len(wars))
	for i, w := range wars {
		subjects[i] = w.Subject
	}
	return "门派战事：" + strings.Join(subjects, "、") + "。"
}
