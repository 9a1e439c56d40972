package faction

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"Wulin-Chronicle/server/internal/config"
	"Wulin-Chronicle/server/internal/models"
	"Wulin-Chronicle/server/internal/rng"
	"Wulin-Chronicle/server/internal/storage"
)

func newSystem(mem *storage.MemoryStore) *System {
	return NewSystem(zerolog.Nop(), mem, mem, rng.New("faction-test"), config.FactionConfig{WarThreshold: 100, ReputationSpread: 3},
		func() string { return "甲子年正月初一" })
}

func hostilePair(t *testing.T, mem *storage.MemoryStore, intensity int) *models.FactionRelationship {
	t.Helper()
	ctx := context.Background()
	a := &models.Faction{Name: "武当派", Alignment: models.AlignmentRighteous}
	b := &models.Faction{Name: "魔教", Alignment: models.AlignmentVillain}
	if err := mem.UpsertFaction(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := mem.UpsertFaction(ctx, b); err != nil {
		t.Fatal(err)
	}
	rel := &models.FactionRelationship{SourceID: a.ID, TargetID: b.ID, Status: models.StatusHostile, Intensity: intensity}
	if err := mem.UpsertRelationship(ctx, rel); err != nil {
		t.Fatal(err)
	}
	return rel
}

func TestWarDeclarationIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()
	hostilePair(t, mem, 100)
	sys := newSystem(mem)

	first, err := sys.CheckForMajorFactionEvents(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(first) != 1 || !strings.Contains(first[0], "武当派 对 魔教 宣战") {
		t.Fatalf("first = %v", first)
	}
	second, err := sys.CheckForMajorFactionEvents(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("second = %v", second)
	}
	if n, _ := mem.CountEntries(ctx, models.EventWarStart); n != 1 {
		t.Fatalf("war records = %d, want 1", n)
	}

	entry, _ := mem.FindEntry(ctx, models.EventWarStart, WarSubject("武当派", "魔教"))
	if entry == nil || entry.Timestamp != "甲子年正月初一" {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.GetDetails()["faction2"] != "魔教" {
		t.Fatalf("details = %v", entry.GetDetails())
	}
}

func TestBelowThresholdDeclaresNothing(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()
	hostilePair(t, mem, 99)
	sys := newSystem(mem)

	wars, err := sys.CheckForMajorFactionEvents(ctx)
	if err != nil || len(wars) != 0 {
		t.Fatalf("wars = %v, %v", wars, err)
	}
	if happening, _ := sys.IsFactionWarHappening(ctx); happening {
		t.Fatal("no war should be happening")
	}
}

func TestEvolveFactionsQuietWorld(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()
	_ = mem.UpsertFaction(ctx, &models.Faction{Name: "铸剑山庄", Alignment: models.AlignmentNeutral, Reputation: 500})
	sys := newSystem(mem)

	summary, err := sys.EvolveFactions(ctx)
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if summary != QuietSummary {
		t.Fatalf("summary = %q", summary)
	}
}

func TestEvolveFactionsReportsWar(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()
	hostilePair(t, mem, 100)
	sys := newSystem(mem)

	summary, err := sys.EvolveFactions(ctx)
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if !strings.HasPrefix(summary, "江湖中暗流涌动：") || !strings.Contains(summary, "宣战") {
		t.Fatalf("summary = %q", summary)
	}
	if happening, _ := sys.IsFactionWarHappening(ctx); !happening {
		t.Fatal("war should be happening")
	}
}

func TestReputationDriftFollowsAlignment(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()
	sys := newSystem(mem)
	if err := sys.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for i := 0; i < 30; i++ {
		if _, err := sys.EvolveFactions(ctx); err != nil {
			t.Fatalf("evolve: %v", err)
		}
	}

	initial := map[string]int{}
	for _, f := range DefaultFactions {
		initial[f.Name] = f.Reputation
	}
	factions, _ := sys.Factions(ctx)
	for _, f := range factions {
		switch f.Alignment {
		case models.AlignmentRighteous:
			if f.Reputation < initial[f.Name] {
				t.Errorf("%s reputation fell to %d", f.Name, f.Reputation)
			}
		case models.AlignmentVillain:
			if f.Reputation > initial[f.Name] {
				t.Errorf("%s reputation rose to %d", f.Name, f.Reputation)
			}
		default:
			if f.Reputation != initial[f.Name] {
				t.Errorf("%s reputation moved to %d", f.Name, f.Reputation)
			}
		}
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()
	sys := newSystem(mem)
	for i := 0; i < 2; i++ {
		if err := sys.Seed(ctx); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	factions, _ := sys.Factions(ctx)
	if len(factions) != len(DefaultFactions) {
		t.Fatalf("factions = %d", len(factions))
	}
	relationships, _ := sys.Relationships(ctx)
	if want := len(factions) * (len(factions) - 1); len(relationships) != want {
		t.Fatalf("relationships = %d, want %d", len(relationships), want)
	}
	for _, rel := range relationships {
		if rel.Source.Name == "武当派" && rel.Target.Name == "魔教" {
			if rel.Status != models.StatusHostile || rel.Intensity != 50 {
				t.Fatalf("武当派→魔教 = %s/%d", rel.Status, rel.Intensity)
			}
		}
		if rel.Source.Name == "武当派" && rel.Target.Name == "丐帮" && rel.Status != models.StatusAllied {
			t.Fatalf("武当派→丐帮 = %s", rel.Status)
		}
	}
}

func TestWarReport(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()
	sys := newSystem(mem)
	if got := sys.WarReport(ctx); got != "" {
		t.Fatalf("peaceful report = %q", got)
	}
	hostilePair(t, mem, 120)
	if _, err := sys.CheckForMajorFactionEvents(ctx); err != nil {
		t.Fatalf("check: %v", err)
	}
	if got := sys.WarReport(ctx); got != "门派战事：武当派→魔教。" {
		t.Fatalf("report = %q", got)
	}
}
