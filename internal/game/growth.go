package game

import (
	"context"
	"fmt"

	"Wulin-Chronicle/server/internal/models"
	"Wulin-Chronicle/server/internal/prompts"
	"Wulin-Chronicle/server/internal/state"
)

// NPCs earn a rumour each time their strength reaches a multiple of this.
const growthMilestone = 10

type growth struct {
	npc  state.NPC
	from int
}

// recordGrowth turns an NPC's milestone into a rumour and writes it to the
// chronicle. Without a model the rumour is a plain line.
func (s *Session) recordGrowth(ctx context.Context, g growth) string {
	to := g.npc.Attributes.Strength
	story, err := s.deps.Narrator.Tell(ctx, prompts.NPCGrowthTemplate, prompts.Vars{
		"npc":          map[string]any{"name": g.npc.Name, "realm": string(g.npc.Realm)},
		"old_strength": g.from,
		"new_strength": to,
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("npc", g.npc.Name).Msg("npc growth narrative unavailable")
		story = fmt.Sprintf("听闻%s闭关苦修，武功又精进了一层。", g.npc.Name)
	}

	entry := &models.ChronicleEntry{
		Type:      models.EventNPCGrowth,
		Subject:   g.npc.Name,
		Timestamp: s.State().Time.Format(),
	}
	if err := entry.SetDetails(map[string]any{
		"npc":          g.npc.Name,
		"old_strength": g.from,
		"new_strength": to,
		"story":        story,
	}); err != nil {
		return story
	}
	if err := s.deps.Chronicle.AppendEntry(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("npc", g.npc.Name).Msg("failed to record npc growth")
	}
	return story
}
