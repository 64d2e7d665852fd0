package game

import (
	"testing"

	"hearthrealm/internal/rules"
)

func testRules(t *testing.T) *rules.Rules {
	t.Helper()
	r, err := rules.Default()
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	return r
}

// scriptedRoller replays fixed draws. Once a script runs out it keeps
// returning the fallback, which is high enough that chance rolls fail.
type scriptedRoller struct {
	floats []float64
	ints   []int
}

func (s *scriptedRoller) Float64() float64 {
	if len(s.floats) == 0 {
		return 0.99
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedRoller) Intn(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	return v % n
}

// fixedRoller always returns the same draw.
type fixedRoller float64

func (f fixedRoller) Float64() float64 { return float64(f) }
func (f fixedRoller) Intn(int) int      { return 0 }
