package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalAllocations  int
	AllocatedCount    int
	FailedCount       int
	MeanAllocatedSize float64
	MaxFailedSize     uint32
	TotalDecisions    int
	KindCounts        map[SchedulingKind]int
	UniqueProcesses   int // processes appearing in any record
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		KindCounts: make(map[SchedulingKind]int),
	}
	if st == nil {
		return summary
	}

	pids := make(map[int]struct{})
	summary.TotalAllocations = len(st.Allocations)
	var allocatedBytes uint64
	for _, a := range st.Allocations {
		pids[a.PID] = struct{}{}
		if a.Allocated {
			summary.AllocatedCount++
			allocatedBytes += uint64(a.Size)
			continue
		}
		summary.FailedCount++
		if a.Size > summary.MaxFailedSize {
			summary.MaxFailedSize = a.Size
		}
	}
	if summary.AllocatedCount > 0 {
		summary.MeanAllocatedSize = float64(allocatedBytes) / float64(summary.AllocatedCount)
	}

	summary.TotalDecisions = len(st.Decisions)
	for _, d := range st.Decisions {
		pids[d.PID] = struct{}{}
		summary.KindCounts[d.Kind]++
	}

	summary.UniqueProcesses = len(pids)

	return summary
}
