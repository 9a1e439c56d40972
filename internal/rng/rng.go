// Package rng provides the seeded random source shared by world generation,
// event selection and the faction simulation.
package rng

import (
	"hash/fnv"
	"math/rand"
	"sync"
	"time"
)

// Source is a goroutine-safe wrapper around math/rand.
type Source struct {
	mu sync.Mutex
	r  *rand.Rand
}

// New seeds deterministically from a string.
func New(seed string) *Source {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return &Source{r: rand.New(rand.NewSource(int64(h.Sum64())))}
}

// NewTimeSeeded is used for live play where determinism is not wanted.
func NewTimeSeeded() *Source {
	return &Source{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Intn returns a value in [0, n). n <= 0 yields 0.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Intn(n)
}

// IntRange returns a value in [min, max], inclusive on both ends.
func (s *Source) IntRange(min, max int) int {
	if max < min {
		min, max = max, min
	}
	return min + s.Intn(max-min+1)
}

// Float64 returns a value in [0, 1).
func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}
