package game

import (
	"context"
	"fmt"
	"strings"

	"Wulin-Chronicle/server/internal/models"
	"Wulin-Chronicle/server/internal/state"
	"Wulin-Chronicle/server/internal/store"
)

// handleLegacy records the fallen hero and hands the world to an heir.
func (s *Session) handleLegacy(ctx context.Context) (string, error) {
	fallen := s.State().Player
	story := fmt.Sprintf("一位名为 %s 的侠客在江湖中陨落，其境界已达 %s。", fallen.Name, fallen.Realm)

	entry := &models.ChronicleEntry{
		Type:      models.EventLegacy,
		Subject:   fallen.Name,
		Timestamp: s.State().Time.Format(),
	}
	if err := entry.SetDetails(map[string]string{
		"name":  fallen.Name,
		"realm": string(fallen.Realm),
		"story": story,
	}); err != nil {
		return "", err
	}
	if err := s.deps.Chronicle.AppendEntry(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("player", fallen.Name).Msg("failed to record legacy")
	}

	heir := fmt.Sprintf("无名氏 (继承自 %s)", fallen.Name)
	if err := s.deps.Store.Dispatch(ctx, store.SetPlayer{Player: state.NewPlayer(heir)}); err != nil {
		return "", err
	}
	if err := s.refreshLegacy(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to refresh legacy")
	}
	s.logger.Info().Str("fallen", fallen.Name).Str("heir", heir).Msg("legacy passed on")
	return heir, nil
}

// refreshLegacy rebuilds the legacy summary from the chronicle, newest first.
func (s *Session) refreshLegacy(ctx context.Context) error {
	entries, err := s.deps.Chronicle.ListEntries(ctx, models.EventLegacy, 0)
	if err != nil {
		return err
	}
	stories := make([]string, 0, len(entries))
	for _, e := range entries {
		if story, ok := e.GetDetails()["story"].(string); ok {
			stories = append(stories, story)
		}
	}
	s.mu.Lock()
	s.legacySummary = strings.Join(stories, " ")
	s.mu.Unlock()
	return nil
}

// LegacySummary is the tale of fallen predecessors, newest first.
func (s *Session) LegacySummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.legacySummary
}
