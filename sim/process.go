// Defines the Process struct that models one simulated process.
// Tracks its state machine, timestamps in cycles and derived metrics.

package sim

import (
	"fmt"

	"github.com/inference-sim/os-sim/sim/memory"
)

// PID identifies a process. PIDs are assigned sequentially from 1.
type PID = memory.PID

// NoProcess marks an empty running slot.
const NoProcess PID = memory.NoOwner

// Priority ranks processes in the ready queue. Higher values are dispatched first.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

// validPriorities maps accepted priority names.
var validPriorities = map[string]Priority{
	"low":    PriorityLow,
	"medium": PriorityMedium,
	"high":   PriorityHigh,
}

// ParsePriority maps a priority name to its Priority.
func ParsePriority(name string) (Priority, bool) {
	p, ok := validPriorities[name]
	return p, ok
}

// IsValidPriority returns true if name is a recognized priority.
func IsValidPriority(name string) bool {
	_, ok := validPriorities[name]
	return ok
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ProcessState represents the lifecycle state of a process.
type ProcessState string

const (
	StateNew        ProcessState = "new"
	StateReady      ProcessState = "ready"
	StateRunning    ProcessState = "running"
	StateBlocked    ProcessState = "blocked"
	StateTerminated ProcessState = "terminated"
)

// validTransitions lists the states reachable from each state.
var validTransitions = map[ProcessState][]ProcessState{
	StateNew:        {StateReady},
	StateReady:      {StateRunning},
	StateRunning:    {StateTerminated, StateReady, StateBlocked},
	StateBlocked:    {StateReady},
	StateTerminated: nil,
}

// IsValidTransition returns true if a process may move from one state to the other.
func IsValidTransition(from, to ProcessState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// BlockReasonIO is the only blocking reason the scheduler produces.
const BlockReasonIO = "I/O"

// Process models a single process's lifecycle in the simulation.
// All times are in cycles.
type Process struct {
	PID       PID
	Size      uint32 // requested memory
	Duration  int    // total work in cycles
	Remaining int    // work left
	Priority  Priority
	State     ProcessState

	BaseAddress uint32 // meaningful only when Allocated
	Allocated   bool

	ArrivalTime    int64
	StartTime      int64 // first dispatch
	CompletionTime int64
	LastBlockedAt  int64
	ReadySince     int64
	started        bool

	WaitTime         int64 // accumulated at dispatch; replaced by Turnaround-ServiceTime on completion
	WaitCycles       int64 // cycles spent in new or ready
	MemoryWaitCycles int64 // cycles spent in new
	ServiceTime      int64
	BlockedTime      int64
	CyclesExecuted   int64

	BlockRemaining    int
	BlockReason       string
	TimesBlocked      int
	ContextSwitches   int
	QuantumInterrupts int
	QuantumUsed       int

	Turnaround int64
	Efficiency float64 // ServiceTime / Turnaround * 100
	BlockRate  float64 // BlockedTime / Turnaround * 100

	// Removed is set when the process was terminated by a manual override rather than
	// by completing its work.
	Removed bool

	path []ProcessState
}

// NewProcess creates a process in state new, arriving at now.
func NewProcess(pid PID, size uint32, duration int, priority Priority, now int64) *Process {
	return &Process{
		PID:         pid,
		Size:        size,
		Duration:    duration,
		Remaining:   duration,
		Priority:    priority,
		State:       StateNew,
		ArrivalTime: now,
		ReadySince:  now,
		path:        []ProcessState{StateNew},
	}
}

func (p *Process) String() string {
	return fmt.Sprintf("Process: (PID: %d, State: %s, Priority: %s, Remaining: %d/%d, Size: %d)",
		p.PID, p.State, p.Priority, p.Remaining, p.Duration, p.Size)
}

// Path returns every state the process has entered, in order.
func (p *Process) Path() []ProcessState {
	out := make([]ProcessState, len(p.path))
	copy(out, p.path)
	return out
}

// Transition moves the process to state to at cycle now and applies the entry
// actions of the new state. Invalid transitions report false and change nothing.
func (p *Process) Transition(to ProcessState, now int64) bool {
	if !IsValidTransition(p.State, to) {
		return false
	}
	from := p.State
	p.State = to
	p.path = append(p.path, to)

	switch to {
	case StateRunning:
		if !p.started {
			p.StartTime = now
			p.started = true
		}
		p.ContextSwitches++
		p.QuantumUsed = 0
	case StateBlocked:
		p.LastBlockedAt = now
		p.TimesBlocked++
		p.BlockReason = BlockReasonIO
	case StateReady:
		if from == StateBlocked {
			p.BlockedTime += now - p.LastBlockedAt
			p.BlockRemaining = 0
			p.BlockReason = ""
		}
		p.ReadySince = now
	case StateTerminated:
		p.complete(now)
	}
	return true
}

// ExecuteCycle performs one unit of work. It has no effect unless the process is
// running, and reports true when the work is finished and the process terminated.
func (p *Process) ExecuteCycle(now int64) bool {
	if p.State != StateRunning {
		return false
	}
	p.Remaining--
	p.CyclesExecuted++
	p.ServiceTime++
	p.QuantumUsed++
	if p.Remaining <= 0 {
		p.Remaining = 0
		p.Transition(StateTerminated, now)
		return true
	}
	return false
}

// forceTerminate ends the process from any state. Used by manual overrides only.
func (p *Process) forceTerminate(now int64) {
	if p.State == StateTerminated {
		p.Removed = true
		return
	}
	if p.State == StateBlocked {
		p.BlockedTime += now - p.LastBlockedAt
	}
	p.State = StateTerminated
	p.path = append(p.path, StateTerminated)
	p.Removed = true
	p.complete(now)
}

func (p *Process) complete(now int64) {
	p.CompletionTime = now
	p.Turnaround = now - p.ArrivalTime
	p.WaitTime = p.Turnaround - p.ServiceTime
	if p.Turnaround > 0 {
		p.Efficiency = float64(p.ServiceTime) / float64(p.Turnaround) * 100
		p.BlockRate = float64(p.BlockedTime) / float64(p.Turnaround) * 100
	}
}

// EligibleToRun reports whether the process is ready with work left.
func (p *Process) EligibleToRun() bool {
	return p.State == StateReady && p.Remaining > 0
}

// NeedsMemory reports whether the process is new and has no memory yet.
func (p *Process) NeedsMemory() bool {
	return p.State == StateNew && !p.Allocated
}

// Schedulable reports whether the process is neither terminated nor blocked.
func (p *Process) Schedulable() bool {
	return p.State != StateTerminated && p.State != StateBlocked
}
