// Package testutil provides shared test infrastructure for the simulator.
// It has no dependencies on sim/ or sim/memory/ so any test package can import it.
package testutil

import (
	"math"
	"testing"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// ScriptedRand replays fixed values. Float64 cycles through Floats and Intn through
// Ints (each reduced modulo n). An empty script yields zeros.
type ScriptedRand struct {
	Floats []float64
	Ints   []int

	floatCalls int
	intCalls   int
}

// Float64 returns the next scripted float.
func (r *ScriptedRand) Float64() float64 {
	if len(r.Floats) == 0 {
		r.floatCalls++
		return 0
	}
	v := r.Floats[r.floatCalls%len(r.Floats)]
	r.floatCalls++
	return v
}

// Intn returns the next scripted int modulo n.
func (r *ScriptedRand) Intn(n int) int {
	if len(r.Ints) == 0 || n <= 0 {
		r.intCalls++
		return 0
	}
	v := r.Ints[r.intCalls%len(r.Ints)] % n
	r.intCalls++
	return v
}

// FloatCalls returns how many times Float64 was called.
func (r *ScriptedRand) FloatCalls() int { return r.floatCalls }

// IntCalls returns how many times Intn was called.
func (r *ScriptedRand) IntCalls() int { return r.intCalls }

// Never returns a source whose Float64 is always 1, so probability checks never fire.
func Never() *ScriptedRand { return &ScriptedRand{Floats: []float64{1}} }

// Always returns a source whose Float64 is always 0, so any positive probability fires.
func Always() *ScriptedRand { return &ScriptedRand{Floats: []float64{0}} }
