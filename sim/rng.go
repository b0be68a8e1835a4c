package sim

import (
	"hash/fnv"
	"math/rand"
)

// SimulationKey is the seed of a run. Two simulations with the same key, the
// same configuration and the same sequence of overrides produce identical
// process tables, memory maps and metrics.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

const (
	// SubsystemWorkload feeds the automatic process generator: three Intn draws
	// (size, duration, priority) per generated process. Uses the master seed.
	SubsystemWorkload = "workload"

	// SubsystemBlocking feeds the scheduler's I/O draw: one Float64 per cycle in
	// which the running process survives termination and quantum expiry.
	SubsystemBlocking = "blocking"
)

// RandomSource is the slice of *rand.Rand the simulator draws from.
// Tests inject scripted sources to make blocking decisions deterministic.
type RandomSource interface {
	Float64() float64
	Intn(n int) int
}

// PartitionedRNG hands each consumer of randomness its own stream, so turning
// the generator on or off never changes which cycles a process blocks in.
//
// Seeds: the workload stream uses the key itself; every other stream uses
// key XOR fnv1a64(name).
//
// Thread-safety: NOT thread-safe. The owning Simulation serializes all draws.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:     key,
		streams: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the stream for name, creating it on first use.
// Repeated calls return the same *rand.Rand.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.streams[name]; ok {
		return rng
	}
	seed := int64(p.key)
	if name != SubsystemWorkload {
		seed ^= fnv1a64(name)
	}
	rng := rand.New(rand.NewSource(seed))
	p.streams[name] = rng
	return rng
}

// Blocking returns the stream behind the scheduler's I/O blocking draw.
func (p *PartitionedRNG) Blocking() RandomSource {
	return p.ForSubsystem(SubsystemBlocking)
}

// Workload returns the stream behind the automatic process generator.
func (p *PartitionedRNG) Workload() RandomSource {
	return p.ForSubsystem(SubsystemWorkload)
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
