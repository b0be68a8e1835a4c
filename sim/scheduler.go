package sim

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/inference-sim/os-sim/sim/memory"
)

// Scheduler owns the five process collections and the CPU. Collections hold PIDs;
// the process records live in the shared ProcessTable. A PID is in exactly one
// collection at any instant.
//
// Thread-safety: NOT thread-safe. The owning Simulation serializes every call.
type Scheduler struct {
	procs      *ProcessTable
	arrivals   ArrivalQueue
	ready      *ReadyQueue
	blocked    []PID
	running    PID
	terminated []PID

	quantumCounter   int
	quantum          int
	blockProbability float64
	maxBlockDuration int

	rng RandomSource
	log *logrus.Entry
}

// TickReport lists what one scheduler cycle did. PID fields hold NoProcess when the
// corresponding event did not happen.
type TickReport struct {
	Unblocked  []PID
	Completed  PID
	Preempted  PID
	Blocked    PID
	Dispatched PID
}

// Allocation is the outcome of one memory request made by AssignResources.
type Allocation struct {
	PID   PID
	Size  uint32
	Block memory.Block
	OK    bool
}

// NewScheduler creates a scheduler over procs. Knobs in cfg are clamped.
// Panics if procs or rng is nil.
func NewScheduler(procs *ProcessTable, cfg SchedulingConfig, rng RandomSource, log *logrus.Entry) *Scheduler {
	if procs == nil {
		panic("NewScheduler: procs must not be nil")
	}
	if rng == nil {
		panic("NewScheduler: rng must not be nil")
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	cfg = cfg.Clamped()
	return &Scheduler{
		procs:            procs,
		ready:            NewReadyQueue(procs),
		quantum:          cfg.Quantum,
		blockProbability: cfg.BlockProbability,
		maxBlockDuration: cfg.MaxBlockDuration,
		rng:              rng,
		log:              log,
	}
}

// AdmitNew appends a process in state new to the arrival queue.
// Panics if the process is unknown or not new.
func (s *Scheduler) AdmitNew(pid PID) {
	p := s.procs.MustGet(pid)
	if p.State != StateNew {
		panic("AdmitNew: process must be in state new")
	}
	s.arrivals.Enqueue(pid)
}

// AssignResources requests memory for every process waiting in the arrival queue,
// newest first. Processes that get a block move to the ready queue; the rest stay
// queued for a later cycle. Every attempt is returned, in the order made.
func (s *Scheduler) AssignResources(arena *memory.Arena, strategy memory.Strategy, now int64) []Allocation {
	var out []Allocation
	for i := s.arrivals.Len() - 1; i >= 0; i-- {
		pid := s.arrivals.At(i)
		p := s.procs.MustGet(pid)
		if !p.NeedsMemory() {
			continue
		}
		blk, ok := arena.Allocate(pid, p.Size, strategy)
		out = append(out, Allocation{PID: pid, Size: p.Size, Block: blk, OK: ok})
		if !ok {
			continue
		}
		p.BaseAddress = blk.Start
		p.Allocated = true
		s.arrivals.RemoveAt(i)
		p.Transition(StateReady, now)
		s.ready.Insert(pid)
		s.log.Debugf("P%d admitted at %v", pid, blk)
	}
	return out
}

// Tick advances the scheduler by one cycle at time now:
//  1. blocked countdowns advance; expired processes return to ready,
//  2. the running process executes one cycle and may terminate, be preempted or block,
//  3. an idle CPU dispatches the head of the ready queue,
//  4. waiting counters advance for processes in new and ready.
func (s *Scheduler) Tick(now int64) TickReport {
	var report TickReport
	log := s.log.WithField("cycle", now)

	for i := len(s.blocked) - 1; i >= 0; i-- {
		pid := s.blocked[i]
		p := s.procs.MustGet(pid)
		p.BlockRemaining--
		if p.BlockRemaining > 0 {
			continue
		}
		s.blocked = slices.Delete(s.blocked, i, i+1)
		p.Transition(StateReady, now)
		s.ready.Insert(pid)
		report.Unblocked = append(report.Unblocked, pid)
		log.Debugf("P%d unblocked", pid)
	}

	if s.running != NoProcess {
		s.runCurrent(now, &report, log)
	}

	if s.running == NoProcess && s.ready.Len() > 0 {
		pid := s.ready.Dequeue()
		p := s.procs.MustGet(pid)
		p.WaitTime += now - p.ReadySince
		p.Transition(StateRunning, now)
		s.running = pid
		s.quantumCounter = 0
		report.Dispatched = pid
		log.Debugf("P%d dispatched", pid)
	}

	for _, pid := range s.ready.queue {
		s.procs.MustGet(pid).WaitCycles++
	}
	for _, pid := range s.arrivals.queue {
		p := s.procs.MustGet(pid)
		p.WaitCycles++
		p.MemoryWaitCycles++
	}
	return report
}

// runCurrent executes one cycle of the running process and resolves its outcome.
// Termination is checked first, then quantum expiry, then the blocking draw.
// The random draw is consumed on every cycle that reaches it, even when the
// process has not yet run long enough to block.
func (s *Scheduler) runCurrent(now int64, report *TickReport, log *logrus.Entry) {
	pid := s.running
	p := s.procs.MustGet(pid)
	done := p.ExecuteCycle(now)
	s.quantumCounter++

	if done {
		s.terminated = append(s.terminated, pid)
		s.running = NoProcess
		s.quantumCounter = 0
		report.Completed = pid
		log.Debugf("P%d completed (turnaround %d)", pid, p.Turnaround)
		return
	}

	if s.quantumCounter >= s.quantum {
		p.QuantumInterrupts++
		p.Transition(StateReady, now)
		s.ready.Insert(pid)
		s.running = NoProcess
		s.quantumCounter = 0
		report.Preempted = pid
		log.Debugf("P%d preempted after %d cycles", pid, s.quantum)
		return
	}

	if s.rng.Float64() < s.blockProbability && s.quantumCounter > 1 {
		p.Transition(StateBlocked, now)
		p.BlockRemaining = s.maxBlockDuration
		s.blocked = append(s.blocked, pid)
		s.running = NoProcess
		s.quantumCounter = 0
		report.Blocked = pid
		log.Debugf("P%d blocked on %s for %d cycles", pid, BlockReasonIO, s.maxBlockDuration)
	}
}

// Unblock moves a blocked process straight to the ready queue, skipping its
// countdown. Reports false unless pid is blocked.
func (s *Scheduler) Unblock(pid PID, now int64) bool {
	i := slices.Index(s.blocked, pid)
	if i < 0 {
		return false
	}
	s.blocked = slices.Delete(s.blocked, i, i+1)
	s.procs.MustGet(pid).Transition(StateReady, now)
	s.ready.Insert(pid)
	return true
}

// Remove drops pid from whichever collection holds it, freeing the CPU if pid is
// running. Reports false if no collection holds pid.
func (s *Scheduler) Remove(pid PID) bool {
	if pid == NoProcess {
		return false
	}
	if s.running == pid {
		s.running = NoProcess
		s.quantumCounter = 0
		return true
	}
	if s.arrivals.Remove(pid) || s.ready.Remove(pid) {
		return true
	}
	if i := slices.Index(s.blocked, pid); i >= 0 {
		s.blocked = slices.Delete(s.blocked, i, i+1)
		return true
	}
	if i := slices.Index(s.terminated, pid); i >= 0 {
		s.terminated = slices.Delete(s.terminated, i, i+1)
		return true
	}
	return false
}

// PurgeTerminated empties the terminated collection and returns what it held.
func (s *Scheduler) PurgeTerminated() []PID {
	out := s.terminated
	s.terminated = nil
	return out
}

// SetQuantum sets the quantum, clamped to at least 1.
func (s *Scheduler) SetQuantum(q int) {
	s.quantum = clampQuantum(q)
}

// SetBlockProbability sets the blocking probability, clamped to [0,1].
func (s *Scheduler) SetBlockProbability(p float64) {
	s.blockProbability = clampProbability(p)
}

// SetMaxBlockDuration sets the blocking duration, clamped to at least 1.
func (s *Scheduler) SetMaxBlockDuration(d int) {
	s.maxBlockDuration = clampBlockDuration(d)
}

// Config returns the current knob values.
func (s *Scheduler) Config() SchedulingConfig {
	return SchedulingConfig{
		Quantum:          s.quantum,
		BlockProbability: s.blockProbability,
		MaxBlockDuration: s.maxBlockDuration,
	}
}

// Running returns the running process, if any.
func (s *Scheduler) Running() (PID, bool) {
	return s.running, s.running != NoProcess
}

// QuantumCounter returns the cycles the running process has used in its current dispatch.
func (s *Scheduler) QuantumCounter() int {
	return s.quantumCounter
}

// Arrivals returns the processes waiting for memory, oldest first.
func (s *Scheduler) Arrivals() []PID { return s.arrivals.Items() }

// Ready returns the ready queue, head first.
func (s *Scheduler) Ready() []PID { return s.ready.Items() }

// Blocked returns the blocked processes in the order they blocked.
func (s *Scheduler) Blocked() []PID { return slices.Clone(s.blocked) }

// Terminated returns the terminated processes in completion order.
func (s *Scheduler) Terminated() []PID { return slices.Clone(s.terminated) }

// QueueLengths counts the processes in each collection.
type QueueLengths struct {
	New        int
	Ready      int
	Running    int
	Blocked    int
	Terminated int
}

func (q QueueLengths) String() string {
	return fmt.Sprintf("new=%d ready=%d running=%d blocked=%d terminated=%d",
		q.New, q.Ready, q.Running, q.Blocked, q.Terminated)
}

// QueueLengths returns the size of every collection.
func (s *Scheduler) QueueLengths() QueueLengths {
	q := QueueLengths{
		New:        s.arrivals.Len(),
		Ready:      s.ready.Len(),
		Blocked:    len(s.blocked),
		Terminated: len(s.terminated),
	}
	if s.running != NoProcess {
		q.Running = 1
	}
	return q
}

// Validate checks that every PID sits in exactly one collection and that its state
// matches the collection.
func (s *Scheduler) Validate() error {
	seen := make(map[PID]string)
	check := func(pid PID, where string, want ProcessState) error {
		if prev, ok := seen[pid]; ok {
			return errors.Newf("P%d is in both %s and %s", pid, prev, where)
		}
		seen[pid] = where
		p := s.procs.Get(pid)
		if p == nil {
			return errors.Newf("%s holds unknown P%d", where, pid)
		}
		if p.State != want {
			return errors.Newf("P%d in %s has state %s", pid, where, p.State)
		}
		return nil
	}
	for _, pid := range s.arrivals.queue {
		if err := check(pid, "new", StateNew); err != nil {
			return err
		}
	}
	for _, pid := range s.ready.queue {
		if err := check(pid, "ready", StateReady); err != nil {
			return err
		}
	}
	if s.running != NoProcess {
		if err := check(s.running, "running", StateRunning); err != nil {
			return err
		}
	}
	for _, pid := range s.blocked {
		if err := check(pid, "blocked", StateBlocked); err != nil {
			return err
		}
	}
	for _, pid := range s.terminated {
		if err := check(pid, "terminated", StateTerminated); err != nil {
			return err
		}
	}
	return nil
}
