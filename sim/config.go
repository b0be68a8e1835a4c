package sim

import (
	"math"

	"github.com/inference-sim/os-sim/sim/memory"
)

// Defaults applied by DefaultSimConfig.
const (
	DefaultMemoryTotal      = 1024
	DefaultQuantum          = 3
	DefaultBlockProbability = 0.2
	DefaultMaxBlockDuration = 5
	DefaultGenInterval      = 5
	DefaultGenSizeMin       = 16
	DefaultGenSizeMax       = 271
	DefaultGenDurationMin   = 1
	DefaultGenDurationMax   = 15
)

// MemoryConfig groups arena parameters.
type MemoryConfig struct {
	Total    uint32          // arena capacity (must be > 0)
	Strategy memory.Strategy // placement strategy used by Run
}

// SchedulingConfig groups the scheduler knobs. Out-of-range values are clamped,
// never rejected.
type SchedulingConfig struct {
	Quantum          int     // cycles per dispatch before preemption (>= 1)
	BlockProbability float64 // chance per eligible cycle of blocking on I/O, in [0,1]
	MaxBlockDuration int     // cycles a blocked process waits (>= 1)
}

// Clamped returns c with every knob forced into its valid range.
func (c SchedulingConfig) Clamped() SchedulingConfig {
	return SchedulingConfig{
		Quantum:          clampQuantum(c.Quantum),
		BlockProbability: clampProbability(c.BlockProbability),
		MaxBlockDuration: clampBlockDuration(c.MaxBlockDuration),
	}
}

func clampQuantum(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

func clampProbability(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func clampBlockDuration(d int) int {
	if d < 1 {
		return 1
	}
	return d
}

// WorkloadConfig groups the automatic process generator parameters.
// Auto=false means processes arrive only through CreateProcess or a scenario script.
type WorkloadConfig struct {
	Auto        bool
	Interval    int64 // cycles between generated processes (>= 1)
	SizeMin     uint32
	SizeMax     uint32
	DurationMin int
	DurationMax int
}

// SimConfig holds all simulation configuration.
type SimConfig struct {
	Memory     MemoryConfig
	Scheduling SchedulingConfig
	Workload   WorkloadConfig
	Seed       int64
	Horizon    int64 // cycles executed by Run
}

// DefaultSimConfig returns the configuration used when nothing is overridden.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Memory: MemoryConfig{
			Total:    DefaultMemoryTotal,
			Strategy: memory.FirstFit,
		},
		Scheduling: SchedulingConfig{
			Quantum:          DefaultQuantum,
			BlockProbability: DefaultBlockProbability,
			MaxBlockDuration: DefaultMaxBlockDuration,
		},
		Workload: WorkloadConfig{
			Interval:    DefaultGenInterval,
			SizeMin:     DefaultGenSizeMin,
			SizeMax:     DefaultGenSizeMax,
			DurationMin: DefaultGenDurationMin,
			DurationMax: DefaultGenDurationMax,
		},
		Seed:    42,
		Horizon: 100,
	}
}
