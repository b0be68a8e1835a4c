// Package trace provides decision-trace recording for memory and scheduling analysis.
// It has no dependencies on sim/ or sim/memory/ and stores pure data types.
package trace

// AllocationRecord captures a single memory request made for a waiting process.
type AllocationRecord struct {
	PID       int
	Clock     int64
	Size      uint32
	Strategy  string
	Allocated bool
	Start     uint32 // valid only when Allocated
	End       uint32 // inclusive; valid only when Allocated
}

// SchedulingKind names a scheduler decision.
type SchedulingKind string

const (
	KindDispatch  SchedulingKind = "dispatch"
	KindPreempt   SchedulingKind = "preempt"
	KindBlock     SchedulingKind = "block"
	KindUnblock   SchedulingKind = "unblock"
	KindComplete  SchedulingKind = "complete"
	KindTerminate SchedulingKind = "terminate" // manual override
)

// SchedulingKinds returns every decision kind in lifecycle order.
func SchedulingKinds() []SchedulingKind {
	return []SchedulingKind{KindDispatch, KindPreempt, KindBlock, KindUnblock, KindComplete, KindTerminate}
}

// SchedulingRecord captures a single scheduler decision.
type SchedulingRecord struct {
	PID    int
	Clock  int64
	Kind   SchedulingKind
	Reason string
}
