package sim

import (
	"bytes"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/os-sim/sim/memory"
)

// ScenarioVersionConstraint is the range of scenario file versions this build reads.
const ScenarioVersionConstraint = "^1"

// Scenario is a YAML simulation description. Nil pointer fields mean "not set in
// YAML" and leave the corresponding SimConfig value alone. String fields use the
// empty string for "not set".
type Scenario struct {
	Version   string            `yaml:"version"`
	Seed      *int64            `yaml:"seed"`
	Horizon   *int64            `yaml:"horizon"`
	Memory    MemorySection     `yaml:"memory"`
	Scheduler SchedulerSection  `yaml:"scheduler"`
	Workload  WorkloadSection   `yaml:"workload"`
	Processes []ScriptedProcess `yaml:"processes"`
}

// MemorySection holds the arena settings of a scenario.
type MemorySection struct {
	Total    *uint32 `yaml:"total"`
	Strategy string  `yaml:"strategy"`
}

// SchedulerSection holds the scheduler knobs of a scenario.
type SchedulerSection struct {
	Quantum          *int     `yaml:"quantum"`
	BlockProbability *float64 `yaml:"block_probability"`
	MaxBlockDuration *int     `yaml:"max_block_duration"`
}

// WorkloadSection holds the process generator settings of a scenario.
type WorkloadSection struct {
	Auto        *bool   `yaml:"auto"`
	Interval    *int64  `yaml:"interval"`
	SizeMin     *uint32 `yaml:"size_min"`
	SizeMax     *uint32 `yaml:"size_max"`
	DurationMin *int    `yaml:"duration_min"`
	DurationMax *int    `yaml:"duration_max"`
}

// ScriptedProcess is a process created when the clock reaches Arrival.
type ScriptedProcess struct {
	Size     uint32 `yaml:"size"`
	Duration int    `yaml:"duration"`
	Priority string `yaml:"priority"`
	Arrival  int64  `yaml:"arrival"`
}

// LoadScenario reads and parses a YAML scenario file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading scenario")
	}
	return ParseScenario(data)
}

// ParseScenario parses a YAML scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, errors.Wrap(err, "parsing scenario")
	}
	return &sc, nil
}

// Validate checks versions, names and ranges. Scripted processes are checked
// against the scenario's memory total, or the default total when unset.
func (sc *Scenario) Validate() error {
	if sc.Version != "" {
		v, err := semver.NewVersion(sc.Version)
		if err != nil {
			return errors.Wrapf(err, "invalid scenario version %q", sc.Version)
		}
		c, err := semver.NewConstraint(ScenarioVersionConstraint)
		if err != nil {
			return errors.Wrap(err, "scenario version constraint")
		}
		if !c.Check(v) {
			return errors.Newf("unsupported scenario version %s; want %s", v, ScenarioVersionConstraint)
		}
	}
	if sc.Horizon != nil && *sc.Horizon < 0 {
		return errors.Newf("horizon must be non-negative, got %d", *sc.Horizon)
	}
	if sc.Memory.Total != nil && *sc.Memory.Total == 0 {
		return errors.New("memory.total must be positive")
	}
	if !memory.IsValidStrategy(sc.Memory.Strategy) {
		return errors.Newf("unknown memory.strategy %q; valid: firstFit, bestFit, worstFit", sc.Memory.Strategy)
	}
	if err := sc.Scheduler.validate(); err != nil {
		return err
	}
	if err := sc.Workload.validate(); err != nil {
		return err
	}

	total := uint32(DefaultMemoryTotal)
	if sc.Memory.Total != nil {
		total = *sc.Memory.Total
	}
	for i, p := range sc.Processes {
		if err := p.validate(total); err != nil {
			return errors.Wrapf(err, "processes[%d]", i)
		}
	}
	return nil
}

func (s SchedulerSection) validate() error {
	if s.Quantum != nil && *s.Quantum < 0 {
		return errors.Newf("scheduler.quantum must be non-negative, got %d", *s.Quantum)
	}
	if s.BlockProbability != nil && *s.BlockProbability < 0 {
		return errors.Newf("scheduler.block_probability must be non-negative, got %f", *s.BlockProbability)
	}
	if s.MaxBlockDuration != nil && *s.MaxBlockDuration < 0 {
		return errors.Newf("scheduler.max_block_duration must be non-negative, got %d", *s.MaxBlockDuration)
	}
	return nil
}

func (w WorkloadSection) validate() error {
	if w.Interval != nil && *w.Interval < 1 {
		return errors.Newf("workload.interval must be positive, got %d", *w.Interval)
	}
	if w.DurationMin != nil && *w.DurationMin < 1 {
		return errors.Newf("workload.duration_min must be positive, got %d", *w.DurationMin)
	}
	if w.SizeMin != nil && w.SizeMax != nil && *w.SizeMin > *w.SizeMax {
		return errors.Newf("workload.size_min %d exceeds size_max %d", *w.SizeMin, *w.SizeMax)
	}
	if w.DurationMin != nil && w.DurationMax != nil && *w.DurationMin > *w.DurationMax {
		return errors.Newf("workload.duration_min %d exceeds duration_max %d", *w.DurationMin, *w.DurationMax)
	}
	return nil
}

func (p ScriptedProcess) validate(total uint32) error {
	if p.Size == 0 {
		return errors.New("size must be positive")
	}
	if p.Size > total {
		return errors.Newf("size %d exceeds memory total %d", p.Size, total)
	}
	if p.Duration < 1 {
		return errors.Newf("duration must be positive, got %d", p.Duration)
	}
	if !IsValidPriority(p.Priority) {
		return errors.Newf("unknown priority %q; valid: low, medium, high", p.Priority)
	}
	if p.Arrival < 0 {
		return errors.Newf("arrival must be non-negative, got %d", p.Arrival)
	}
	return nil
}

// Apply overlays every field set in the scenario onto cfg.
func (sc *Scenario) Apply(cfg *SimConfig) {
	if sc.Seed != nil {
		cfg.Seed = *sc.Seed
	}
	if sc.Horizon != nil {
		cfg.Horizon = *sc.Horizon
	}
	if sc.Memory.Total != nil {
		cfg.Memory.Total = *sc.Memory.Total
	}
	if s, ok := memory.ParseStrategy(sc.Memory.Strategy); ok && sc.Memory.Strategy != "" {
		cfg.Memory.Strategy = s
	}
	sc.Scheduler.apply(&cfg.Scheduling)

	w := sc.Workload
	if w.Auto != nil {
		cfg.Workload.Auto = *w.Auto
	}
	if w.Interval != nil {
		cfg.Workload.Interval = *w.Interval
	}
	if w.SizeMin != nil {
		cfg.Workload.SizeMin = *w.SizeMin
	}
	if w.SizeMax != nil {
		cfg.Workload.SizeMax = *w.SizeMax
	}
	if w.DurationMin != nil {
		cfg.Workload.DurationMin = *w.DurationMin
	}
	if w.DurationMax != nil {
		cfg.Workload.DurationMax = *w.DurationMax
	}
}

func (s SchedulerSection) apply(cfg *SchedulingConfig) {
	if s.Quantum != nil {
		cfg.Quantum = *s.Quantum
	}
	if s.BlockProbability != nil {
		cfg.BlockProbability = *s.BlockProbability
	}
	if s.MaxBlockDuration != nil {
		cfg.MaxBlockDuration = *s.MaxBlockDuration
	}
}

// ApplyKnobs pushes the scenario's scheduler knobs and strategy into a running
// simulation. They take effect on the next tick.
func (sc *Scenario) ApplyKnobs(sim *Simulation) {
	s := sc.Scheduler
	if s.Quantum != nil {
		sim.SetQuantum(*s.Quantum)
	}
	if s.BlockProbability != nil {
		sim.SetBlockProbability(*s.BlockProbability)
	}
	if s.MaxBlockDuration != nil {
		sim.SetMaxBlockDuration(*s.MaxBlockDuration)
	}
	if sc.Memory.Strategy != "" {
		sim.SetStrategy(sc.Memory.Strategy)
	}
}
