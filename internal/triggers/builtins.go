package triggers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"Wulin-Chronicle/server/internal/state"
)

// Built-in trigger ids.
const (
	AlwaysTrigger           = "always"
	PlayerInLocationTrigger = "isPlayerInLocation"
	PlayerStrongTrigger     = "isPlayerStrong"
	ExpressionTrigger       = "expression"
)

func (r *Registry) registerBuiltins() {
	r.triggers[AlwaysTrigger] = func(context.Context, *state.GameState, Config, Helpers) (bool, error) {
		return true, nil
	}

	r.triggers[PlayerInLocationTrigger] = func(_ context.Context, s *state.GameState, cfg Config, _ Helpers) (bool, error) {
		id, err := intArg(cfg, 0)
		if err != nil {
			return false, err
		}
		return s.World.CurrentLocationID == id, nil
	}

	r.triggers[PlayerStrongTrigger] = func(_ context.Context, s *state.GameState, cfg Config, _ Helpers) (bool, error) {
		threshold, err := intArg(cfg, 0)
		if err != nil {
			return false, err
		}
		return s.Player.Attributes.Strength >= threshold, nil
	}

	// Expression failures never escape: they are logged and read as false.
	r.triggers[ExpressionTrigger] = func(ctx context.Context, s *state.GameState, cfg Config, h Helpers) (bool, error) {
		src := expressionSource(cfg)
		program, err := r.compile(src)
		if err != nil {
			r.logger.Warn().Err(err).Str("expression", src).Msg("expression trigger failed to compile")
			return false, nil
		}
		ok, err := program.Eval(ctx, s, h)
		if err != nil {
			r.logger.Warn().Err(err).Str("expression", src).Msg("expression trigger failed to evaluate")
			return false, nil
		}
		return ok, nil
	}
}

func intArg(cfg Config, i int) (int, error) {
	if i >= len(cfg.Args) {
		return 0, fmt.Errorf("trigger %s: missing argument %d", cfg.ID, i)
	}
	switch v := cfg.Args[i].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		return int(n), err
	case string:
		return strconv.Atoi(v)
	}
	return 0, fmt.Errorf("trigger %s: argument %d is %T, want a number", cfg.ID, i, cfg.Args[i])
}
