package triggers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"Wulin-Chronicle/server/internal/state"
)

// Config is the per-event trigger configuration taken from the catalog.
type Config struct {
	ID         string `json:"id"`
	Args       []any  `json:"args,omitempty"`
	Expression string `json:"expression,omitempty"`
}

// Helpers are the capabilities a trigger may use besides the state itself.
type Helpers struct {
	RandomInt             func(min, max int) int
	IsFactionWarHappening func(ctx context.Context) (bool, error)
}

// TriggerFunc decides whether an event is eligible.
type TriggerFunc func(ctx context.Context, s *state.GameState, cfg Config, h Helpers) (bool, error)

// Registry maps trigger ids to predicates.
type Registry struct {
	logger   zerolog.Logger
	mu       sync.RWMutex
	triggers map[string]TriggerFunc

	programMu sync.Mutex
	programs  map[string]*Program
}

// NewRegistry returns a registry with the built-in triggers installed.
func NewRegistry(logger zerolog.Logger) *Registry {
	r := &Registry{
		logger:   logger.With().Str("component", "triggers").Logger(),
		triggers: make(map[string]TriggerFunc),
		programs: make(map[string]*Program),
	}
	r.registerBuiltins()
	return r
}

// Register installs fn under id. An existing id is overwritten with a warning.
func (r *Registry) Register(id string, fn TriggerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.triggers[id]; exists {
		r.logger.Warn().Str("trigger", id).Msg("trigger already registered, overwriting")
	}
	r.triggers[id] = fn
}

func (r *Registry) Get(id string) (TriggerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.triggers[id]
	return fn, ok
}

func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// IDs lists the registered trigger ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.triggers))
	for id := range r.triggers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Bind closes a registered trigger over its config and helpers.
func (r *Registry) Bind(cfg Config, h Helpers) (state.Trigger, error) {
	fn, ok := r.Get(cfg.ID)
	if !ok {
		return nil, fmt.Errorf("trigger %q is not registered", cfg.ID)
	}
	if cfg.ID == ExpressionTrigger {
		src := expressionSource(cfg)
		if _, err := r.compile(src); err != nil {
			return nil, err
		}
	}
	return func(ctx context.Context, s *state.GameState) (bool, error) {
		return fn(ctx, s, cfg, h)
	}, nil
}

// compile caches compiled programs by source text.
func (r *Registry) compile(src string) (*Program, error) {
	r.programMu.Lock()
	defer r.programMu.Unlock()
	if p, ok := r.programs[src]; ok {
		return p, nil
	}
	p, err := Compile(src)
	if err != nil {
		return nil, err
	}
	r.programs[src] = p
	return p, nil
}

func expressionSource(cfg Config) string {
	if cfg.Expression != "" {
		return cfg.Expression
	}
	if len(cfg.Args) > 0 {
		if s, ok := cfg.Args[0].(string); ok {
			return s
		}
	}
	return ""
}
