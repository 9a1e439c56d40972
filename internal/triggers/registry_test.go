package triggers

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"Wulin-Chronicle/server/internal/state"
)

func testState() *state.GameState {
	world := state.World{
		Locations: map[int]state.Location{
			1: {ID: 1, Name: "洛阳 (1)", Type: state.LocationTown, Exits: map[state.Direction]int{state.East: 2}},
			2: {ID: 2, Name: "黑风山 (2)", Type: state.LocationWilds, Exits: map[state.Direction]int{state.West: 1}},
		},
		NPCs:              []state.NPC{{ID: 1, Name: "令狐冲", Alive: true, LocationID: 2}},
		CurrentLocationID: 1,
	}
	s := state.New(state.NewPlayer("测试者"), world)
	s.TriggeredOnceEvents = map[string]struct{}{"met-beggar": {}}
	return s
}

func fixedHelpers(roll int, war bool) Helpers {
	return Helpers{
		RandomInt:             func(int, int) int { return roll },
		IsFactionWarHappening: func(context.Context) (bool, error) { return war, nil },
	}
}

func TestBuiltins(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	s := testState()
	ctx := context.Background()

	cases := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"always", Config{ID: AlwaysTrigger}, true},
		{"in location", Config{ID: PlayerInLocationTrigger, Args: []any{float64(1)}}, true},
		{"elsewhere", Config{ID: PlayerInLocationTrigger, Args: []any{2}}, false},
		{"strong enough", Config{ID: PlayerStrongTrigger, Args: []any{10}}, true},
		{"too weak", Config{ID: PlayerStrongTrigger, Args: []any{11}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			trigger, err := r.Bind(tc.cfg, fixedHelpers(0, false))
			if err != nil {
				t.Fatalf("bind: %v", err)
			}
			got, err := trigger(ctx, s)
			if err != nil {
				t.Fatalf("trigger: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBuiltinMissingArgumentErrors(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	trigger, err := r.Bind(Config{ID: PlayerStrongTrigger}, Helpers{})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if _, err := trigger(context.Background(), testState()); err == nil {
		t.Fatal("expected an error for missing argument")
	}
}

func TestRegisterOverwrites(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Register(AlwaysTrigger, func(context.Context, *state.GameState, Config, Helpers) (bool, error) {
		return false, nil
	})
	trigger, _ := r.Bind(Config{ID: AlwaysTrigger}, Helpers{})
	if ok, _ := trigger(context.Background(), testState()); ok {
		t.Fatal("overwritten trigger still active")
	}
}

func TestBindUnknownTrigger(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	if _, err := r.Bind(Config{ID: "nope"}, Helpers{}); err == nil {
		t.Fatal("expected error for unregistered trigger")
	}
	if r.Has("nope") {
		t.Fatal("registry claims unknown id")
	}
}

func TestExpressionTrigger(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	s := testState()
	ctx := context.Background()

	cases := []struct {
		expr string
		roll int
		war  bool
		want bool
	}{
		{"state.player.attributes.strength >= 10", 0, false, true},
		{"state.player.attributes.strength > 10 || state.player.level == 1", 0, false, true},
		{"state.world.current_location_id === 2", 0, false, false},
		{"state.player.stats.hp / state.player.stats.max_hp > 0.5 && !isFactionWarHappening()", 0, false, true},
		{"isFactionWarHappening()", 0, true, true},
		{"randomInt(1, 10) > 8", 9, false, true},
		{"getRandomInt(1, 10) > 8", 3, false, false},
		{"'met-beggar' in state.triggered_once_events", 0, false, true},
		{"state.player.inventory.length == 2", 0, false, true},
		{"state.player.inventory[1].name == '生锈的铁剑'", 0, false, true},
		{"state.world.locations[state.world.current_location_id].type == '城镇'", 0, false, true},
		{"state.player.name.includes('测试')", 0, false, true},
		{"contains(state.world.npcs[0].name, '令狐')", 0, false, true},
		{"(state.player.level + 1) * 2 == 4", 0, false, true},
		{"state.player.realm != '宗师' && state.player.mood == \"平静\"", 0, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			trigger, err := r.Bind(Config{ID: ExpressionTrigger, Expression: tc.expr}, fixedHelpers(tc.roll, tc.war))
			if err != nil {
				t.Fatalf("bind: %v", err)
			}
			got, err := trigger(ctx, s)
			if err != nil {
				t.Fatalf("trigger: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExpressionFailsClosed(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	s := testState()
	failing := Helpers{
		RandomInt: func(int, int) int { return 0 },
		IsFactionWarHappening: func(context.Context) (bool, error) {
			return false, errors.New("db down")
		},
	}

	for _, expr := range []string{
		"isFactionWarHappening()",
		"os.exit(1)",
		"state.missing.deeper > 1",
		"state.player.name > 3",
		"1 / 0 > 1",
		"state.player.name.replace('a')",
	} {
		t.Run(expr, func(t *testing.T) {
			trigger, err := r.Bind(Config{ID: ExpressionTrigger, Expression: expr}, failing)
			if err != nil {
				t.Fatalf("bind: %v", err)
			}
			got, err := trigger(context.Background(), s)
			if err != nil || got {
				t.Fatalf("got (%v, %v), want (false, nil)", got, err)
			}
		})
	}
}

func TestExpressionBindRejectsUnparsable(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	for _, expr := range []string{"", "state.player.(", "1 +", "'open"} {
		if _, err := r.Bind(Config{ID: ExpressionTrigger, Expression: expr}, Helpers{}); err == nil {
			t.Fatalf("expected bind error for %q", expr)
		}
	}
}
