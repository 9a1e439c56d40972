package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"Wulin-Chronicle/server/internal/state"
)

// Subscriber receives every newly committed state.
type Subscriber func(s *state.GameState)

type subscription struct {
	id uint64
	fn Subscriber
}

// Store owns the current GameState. Writes are serialized; reads are lock-free.
type Store struct {
	logger  zerolog.Logger
	mu      sync.Mutex
	current *atomic.Pointer[state.GameState]
	version *atomic.Uint64

	subMu       sync.RWMutex
	subscribers []subscription
	nextSubID   *atomic.Uint64
}

// New creates a store holding the given initial state (an empty placeholder if nil).
func New(logger zerolog.Logger, initial *state.GameState) *Store {
	if initial == nil {
		initial = state.Empty()
	}
	return &Store{
		logger:    logger.With().Str("component", "store").Logger(),
		current:   atomic.NewPointer(initial),
		version:   atomic.NewUint64(0),
		nextSubID: atomic.NewUint64(0),
	}
}

// GetState returns the committed state. Treat it as read-only.
func (s *Store) GetState() *state.GameState {
	return s.current.Load()
}

// Version counts commits since construction.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Dispatch runs a thunk or reduces a plain action. Subscribers are notified
// only when the reduction produced a different state.
func (s *Store) Dispatch(ctx context.Context, a Action) error {
	if a == nil {
		return fmt.Errorf("dispatch: nil action")
	}
	if thunk, ok := a.(Thunk); ok {
		return thunk(ctx, s.Dispatch, s.GetState)
	}

	s.mu.Lock()
	prev := s.current.Load()
	next, err := Reduce(prev, a)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to reduce %s: %w", a.Type(), err)
	}
	if next == prev {
		s.mu.Unlock()
		return nil
	}
	s.current.Store(next)
	s.version.Inc()
	subs := s.snapshotSubscribers()
	s.mu.Unlock()

	s.notify(a, next, subs)
	return nil
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Subscriber) func() {
	id := s.nextSubID.Inc()

	s.subMu.Lock()
	s.subscribers = append(s.subscribers, subscription{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) snapshotSubscribers() []subscription {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	out := make([]subscription, len(s.subscribers))
	copy(out, s.subscribers)
	return out
}

func (s *Store) notify(a Action, next *state.GameState, subs []subscription) {
	for _, sub := range subs {
		s.safeCall(a, sub, next)
	}
}

// safeCall keeps one failing subscriber from starving the rest.
func (s *Store) safeCall(a Action, sub subscription, next *state.GameState) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("action", a.Type()).
				Uint64("subscriber", sub.id).
				Interface("panic", r).
				Msg("subscriber panicked")
		}
	}()
	sub.fn(next)
}
