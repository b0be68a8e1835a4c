// Computes the aggregate scheduling metrics: wait, turnaround and service times,
// throughput and CPU utilization.

package sim

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// SchedulingStats aggregates scheduler performance. Times are in cycles.
type SchedulingStats struct {
	Completed         int
	AverageWait       float64 // over terminated, ready, blocked and running processes
	AverageTurnaround float64 // over terminated processes
	AverageService    float64 // over terminated processes
	TurnaroundP50     float64
	TurnaroundP90     float64
	Throughput        float64 // terminated per cycle since the first terminated process arrived
	CPUUtilization    float64 // terminated / (terminated + ready + blocked) * 100
	ContextSwitches   int
	QuantumInterrupts int
}

// Stats computes the scheduling metrics at time now.
func (s *Scheduler) Stats(now int64) SchedulingStats {
	stats := SchedulingStats{Completed: len(s.terminated)}

	var waits []float64
	collect := func(pids []PID) {
		for _, pid := range pids {
			waits = append(waits, float64(s.procs.MustGet(pid).WaitTime))
		}
	}
	collect(s.terminated)
	collect(s.ready.queue)
	collect(s.blocked)
	if s.running != NoProcess {
		collect([]PID{s.running})
	}
	if len(waits) > 0 {
		stats.AverageWait = stat.Mean(waits, nil)
	}

	if len(s.terminated) > 0 {
		turnarounds := make([]float64, 0, len(s.terminated))
		services := make([]float64, 0, len(s.terminated))
		for _, pid := range s.terminated {
			p := s.procs.MustGet(pid)
			turnarounds = append(turnarounds, float64(p.Turnaround))
			services = append(services, float64(p.ServiceTime))
		}
		stats.AverageTurnaround = stat.Mean(turnarounds, nil)
		stats.AverageService = stat.Mean(services, nil)

		sort.Float64s(turnarounds)
		stats.TurnaroundP50 = stat.Quantile(0.5, stat.Empirical, turnarounds, nil)
		stats.TurnaroundP90 = stat.Quantile(0.9, stat.Empirical, turnarounds, nil)

		first := s.procs.MustGet(s.terminated[0])
		if elapsed := now - first.ArrivalTime; elapsed > 0 {
			stats.Throughput = float64(len(s.terminated)) / float64(elapsed)
		}
	}

	if denom := len(s.terminated) + s.ready.Len() + len(s.blocked); denom > 0 {
		stats.CPUUtilization = float64(len(s.terminated)) / float64(denom) * 100
	}

	for i := 1; i <= s.procs.Len(); i++ {
		p := s.procs.Get(PID(i))
		stats.ContextSwitches += p.ContextSwitches
		stats.QuantumInterrupts += p.QuantumInterrupts
	}
	return stats
}
