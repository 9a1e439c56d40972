package rng

import "testing"

func TestSameSeedSameSequence(t *testing.T) {
	a, b := New("jianghu-seed"), New("jianghu-seed")
	for i := 0; i < 50; i++ {
		if x, y := a.Intn(1000), b.Intn(1000); x != y {
			t.Fatalf("step %d: %d != %d", i, x, y)
		}
	}
}

func TestIntRangeInclusive(t *testing.T) {
	s := New("range")
	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		v := s.IntRange(-1, 1)
		if v < -1 || v > 1 {
			t.Fatalf("out of range: %d", v)
		}
		seen[v] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected all of -1,0,1 to appear, got %v", seen)
	}
}
