// sim/simulator.go
package sim

import (
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/os-sim/sim/memory"
	"github.com/inference-sim/os-sim/sim/trace"
)

// Simulation is the explicitly owned context holding the clock, the memory arena,
// the process table and the scheduler. Every mutation goes through its methods.
//
// Thread-safety: NOT thread-safe. One driver serializes all calls.
type Simulation struct {
	RunID uuid.UUID
	Clock int64

	Config SimConfig
	Arena  *memory.Arena
	Procs  *ProcessTable
	Sched  *Scheduler
	// Trace is nil unless decision tracing is enabled.
	Trace *trace.SimulationTrace

	rng       *PartitionedRNG
	blocking  RandomSource
	generator *Generator
	script    []ScriptedProcess
	log       *logrus.Entry
}

// SimOption configures a Simulation.
type SimOption func(*Simulation)

// WithBlockingSource replaces the random source used for I/O blocking draws.
func WithBlockingSource(src RandomSource) SimOption {
	return func(s *Simulation) { s.blocking = src }
}

// WithWorkloadSource replaces the random source used by the process generator.
func WithWorkloadSource(src RandomSource) SimOption {
	return func(s *Simulation) { s.generator = NewGenerator(s.Config.Workload, src, s.Config.Memory.Total) }
}

// WithTrace enables decision tracing into st.
func WithTrace(st *trace.SimulationTrace) SimOption {
	return func(s *Simulation) { s.Trace = st }
}

// WithScript schedules processes to be created when the clock reaches their arrival.
func WithScript(procs []ScriptedProcess) SimOption {
	return func(s *Simulation) {
		s.script = append([]ScriptedProcess(nil), procs...)
		sort.SliceStable(s.script, func(i, j int) bool { return s.script[i].Arrival < s.script[j].Arrival })
	}
}

// NewSimulation builds a simulation from cfg. Panics if the memory total is zero or
// the strategy is unknown.
func NewSimulation(cfg SimConfig, opts ...SimOption) *Simulation {
	if cfg.Memory.Strategy == "" {
		cfg.Memory.Strategy = memory.FirstFit
	}
	if !memory.IsValidStrategy(string(cfg.Memory.Strategy)) {
		panic("NewSimulation: unknown placement strategy " + string(cfg.Memory.Strategy))
	}
	cfg.Scheduling = cfg.Scheduling.Clamped()

	s := &Simulation{
		RunID:  uuid.New(),
		Config: cfg,
		Procs:  &ProcessTable{},
		rng:    NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
	}
	s.log = logrus.WithField("run", s.RunID.String())
	s.blocking = s.rng.Blocking()
	s.generator = NewGenerator(cfg.Workload, s.rng.Workload(), cfg.Memory.Total)
	for _, opt := range opts {
		opt(s)
	}

	s.Arena = memory.NewArena(cfg.Memory.Total,
		memory.WithClock(func() int64 { return s.Clock }),
		memory.WithLogger(s.log.WithField("component", "memory")))
	s.Sched = NewScheduler(s.Procs, cfg.Scheduling, s.blocking, s.log)
	return s
}

// CreateProcess creates a process arriving now and queues it for memory.
// Checking the size against the arena capacity is the caller's job.
func (s *Simulation) CreateProcess(size uint32, duration int, priority Priority) *Process {
	p := s.Procs.Create(size, duration, priority, s.Clock)
	s.Sched.AdmitNew(p.PID)
	s.log.Debugf("[cycle %07d] P%d created (size %d, duration %d, %s)", s.Clock, p.PID, size, duration, priority)
	return p
}

// Tick advances the simulation by one cycle: the scheduler runs, completed processes
// release their memory, the arena indices follow blocking outcomes, and waiting
// processes request memory with strategy.
func (s *Simulation) Tick(strategy memory.Strategy) TickReport {
	s.Clock++
	report := s.Sched.Tick(s.Clock)

	for _, pid := range report.Unblocked {
		s.Arena.UnblockProcess(pid)
		s.recordDecision(pid, trace.KindUnblock, "countdown expired")
	}
	switch {
	case report.Completed != NoProcess:
		s.release(report.Completed)
		s.recordDecision(report.Completed, trace.KindComplete, "")
	case report.Preempted != NoProcess:
		s.recordDecision(report.Preempted, trace.KindPreempt, "quantum expired")
	case report.Blocked != NoProcess:
		s.Arena.BlockProcess(report.Blocked)
		s.recordDecision(report.Blocked, trace.KindBlock, BlockReasonIO)
	}
	if report.Dispatched != NoProcess {
		s.recordDecision(report.Dispatched, trace.KindDispatch, "")
	}

	for _, a := range s.Sched.AssignResources(s.Arena, strategy, s.Clock) {
		s.recordAllocation(a, strategy)
	}
	return report
}

// Step creates every process due at the current cycle, then ticks with the
// configured strategy.
func (s *Simulation) Step() TickReport {
	s.arrive()
	return s.Tick(s.Config.Memory.Strategy)
}

// Run steps the simulation until the clock reaches horizon.
func (s *Simulation) Run(horizon int64) {
	for s.Clock < horizon {
		s.Step()
		s.log.Infof("[cycle %07d] %s", s.Clock, s.Sched.QueueLengths())
	}
	if !s.Arena.IntegrityCheck() {
		s.log.Errorf("[cycle %07d] memory partition is inconsistent", s.Clock)
	}
	s.log.Infof("[cycle %07d] Simulation ended", s.Clock)
}

// arrive creates the scripted processes whose arrival is due and, when the generator
// fires, one generated process.
func (s *Simulation) arrive() {
	for len(s.script) > 0 && s.script[0].Arrival <= s.Clock {
		sp := s.script[0]
		s.script = s.script[1:]
		if sp.Size > s.Arena.Total() {
			s.log.Warnf("[cycle %07d] skipping scripted process larger than memory (%d > %d)", s.Clock, sp.Size, s.Arena.Total())
			continue
		}
		prio, ok := ParsePriority(sp.Priority)
		if !ok {
			prio = PriorityMedium
		}
		s.CreateProcess(sp.Size, sp.Duration, prio)
	}
	if s.generator.Due(s.Clock) {
		if size, duration, prio, ok := s.generator.Next(); ok {
			s.CreateProcess(size, duration, prio)
		}
	}
}

// release frees the memory of a completed process. The record stays in terminated.
func (s *Simulation) release(pid PID) {
	p := s.Procs.MustGet(pid)
	if p.Allocated && s.Arena.Free(pid) {
		p.Allocated = false
	}
}

// Terminate forcibly ends pid: its memory is freed and it leaves every collection.
// Reports false for unknown or already removed processes.
func (s *Simulation) Terminate(pid PID) bool {
	p := s.Procs.Get(pid)
	if p == nil || p.Removed {
		return false
	}
	if !s.Sched.Remove(pid) {
		return false
	}
	if p.Allocated {
		s.Arena.Free(pid)
		p.Allocated = false
	}
	p.forceTerminate(s.Clock)
	s.recordDecision(pid, trace.KindTerminate, "manual")
	s.log.Debugf("[cycle %07d] P%d terminated manually", s.Clock, pid)
	return true
}

// Unblock moves a blocked process to the ready queue immediately.
// Reports false unless pid is blocked.
func (s *Simulation) Unblock(pid PID) bool {
	if !s.Sched.Unblock(pid, s.Clock) {
		return false
	}
	s.Arena.UnblockProcess(pid)
	s.recordDecision(pid, trace.KindUnblock, "manual")
	return true
}

// PurgeTerminated drops terminated processes from the scheduler's bookkeeping.
// Their records remain in the process table.
func (s *Simulation) PurgeTerminated() []PID {
	return s.Sched.PurgeTerminated()
}

// SetQuantum changes the quantum from the next tick on, clamped to at least 1.
func (s *Simulation) SetQuantum(q int) {
	s.Sched.SetQuantum(q)
	s.Config.Scheduling.Quantum = s.Sched.Config().Quantum
}

// SetBlockProbability changes the blocking probability, clamped to [0,1].
func (s *Simulation) SetBlockProbability(p float64) {
	s.Sched.SetBlockProbability(p)
	s.Config.Scheduling.BlockProbability = s.Sched.Config().BlockProbability
}

// SetMaxBlockDuration changes the blocking duration, clamped to at least 1.
func (s *Simulation) SetMaxBlockDuration(d int) {
	s.Sched.SetMaxBlockDuration(d)
	s.Config.Scheduling.MaxBlockDuration = s.Sched.Config().MaxBlockDuration
}

// SetStrategy changes the placement strategy used by Step. Unknown names report false.
func (s *Simulation) SetStrategy(name string) bool {
	strategy, ok := memory.ParseStrategy(name)
	if !ok {
		return false
	}
	s.Config.Memory.Strategy = strategy
	return true
}

// Reset returns the simulation to cycle 0 with empty memory and no processes.
// Knobs and the pending script are kept; the run gets a new id. An attached trace
// is cleared in place.
func (s *Simulation) Reset() {
	s.Clock = 0
	s.RunID = uuid.New()
	s.log = logrus.WithField("run", s.RunID.String())
	s.Arena.Reset()
	s.Procs.Reset()
	s.Sched = NewScheduler(s.Procs, s.Config.Scheduling, s.blocking, s.log)
	if s.Trace != nil {
		s.Trace.Reset()
	}
}

// MemoryMap returns the classified block list.
func (s *Simulation) MemoryMap() []memory.MapEntry {
	return s.Arena.MemoryMap()
}

// MemoryStatistics returns the arena statistics.
func (s *Simulation) MemoryStatistics() memory.Statistics {
	return s.Arena.Statistics()
}

// SchedulingStats returns the scheduling metrics at the current cycle.
func (s *Simulation) SchedulingStats() SchedulingStats {
	return s.Sched.Stats(s.Clock)
}

// QueueLengths returns the size of every scheduler collection.
func (s *Simulation) QueueLengths() QueueLengths {
	return s.Sched.QueueLengths()
}

// ProcessTable returns copies of every tracked process grouped by collection:
// new, ready, running, blocked, then terminated.
func (s *Simulation) ProcessTable() []Process {
	var out []Process
	add := func(pids []PID) {
		for _, pid := range pids {
			out = append(out, *s.Procs.MustGet(pid))
		}
	}
	add(s.Sched.Arrivals())
	add(s.Sched.Ready())
	if pid, ok := s.Sched.Running(); ok {
		add([]PID{pid})
	}
	add(s.Sched.Blocked())
	add(s.Sched.Terminated())
	return out
}

func (s *Simulation) recordDecision(pid PID, kind trace.SchedulingKind, reason string) {
	if s.Trace == nil {
		return
	}
	s.Trace.RecordScheduling(trace.SchedulingRecord{
		PID:    int(pid),
		Clock:  s.Clock,
		Kind:   kind,
		Reason: reason,
	})
}

func (s *Simulation) recordAllocation(a Allocation, strategy memory.Strategy) {
	if s.Trace == nil {
		return
	}
	s.Trace.RecordAllocation(trace.AllocationRecord{
		PID:       int(a.PID),
		Clock:     s.Clock,
		Size:      a.Size,
		Strategy:  string(strategy),
		Allocated: a.OK,
		Start:     a.Block.Start,
		End:       a.Block.End,
	})
}
