// Renders the end-of-run report and the JSON state snapshot.

package sim

import (
	"io"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Report writes a human-readable summary of the run to w.
func (s *Simulation) Report(w io.Writer) error {
	p := message.NewPrinter(language.English)
	mem := s.MemoryStatistics()
	stats := s.SchedulingStats()
	q := s.QueueLengths()

	lines := []struct {
		format string
		args   []any
	}{
		{"=== Simulation Report (run %s) ===\n", []any{s.RunID}},
		{"Cycles               : %d\n", []any{s.Clock}},
		{"Processes created    : %d\n", []any{s.Procs.Len()}},
		{"Queues               : %s\n", []any{q}},
		{"Memory used          : %d / %d (%d blocks, %d free)\n", []any{mem.UsedMemory, mem.Total, mem.BlockCount, mem.FreeBlockCount}},
		{"Fragmentation        : %s\n", []any{mem.Fragmentation}},
		{"                       %s\n", []any{s.Arena.Summary()}},
		{"Completed            : %d\n", []any{stats.Completed}},
		{"Average wait         : %.2f cycles\n", []any{stats.AverageWait}},
		{"Average turnaround   : %.2f cycles (p50 %.1f, p90 %.1f)\n", []any{stats.AverageTurnaround, stats.TurnaroundP50, stats.TurnaroundP90}},
		{"Average service      : %.2f cycles\n", []any{stats.AverageService}},
		{"Throughput           : %.3f per cycle\n", []any{stats.Throughput}},
		{"CPU utilization      : %.1f%%\n", []any{stats.CPUUtilization}},
		{"Context switches     : %d (%d by quantum)\n", []any{stats.ContextSwitches, stats.QuantumInterrupts}},
	}
	for _, l := range lines {
		if _, err := p.Fprintf(w, l.format, l.args...); err != nil {
			return err
		}
	}

	if _, err := p.Fprintf(w, "\n%-5s %-10s %-6s %6s %9s %6s %6s %8s\n",
		"PID", "STATE", "PRIO", "SIZE", "REMAINING", "WAIT", "BLOCK", "TURNAROUND"); err != nil {
		return err
	}
	for _, proc := range s.ProcessTable() {
		if _, err := p.Fprintf(w, "%-5d %-10s %-6s %6d %5d/%-3d %6d %6d %8d\n",
			proc.PID, proc.State, proc.Priority, proc.Size, proc.Remaining, proc.Duration,
			proc.WaitTime, proc.BlockedTime, proc.Turnaround); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot writes the current state as one JSON object.
func (s *Simulation) Snapshot(w *jwriter.Writer) {
	obj := w.Object()
	defer obj.End()

	obj.Name("RunID").String(s.RunID.String())
	obj.Name("Cycle").Int(int(s.Clock))
	obj.Name("Strategy").String(string(s.Config.Memory.Strategy))

	q := s.QueueLengths()
	queues := obj.Name("Queues").Object()
	queues.Name("New").Int(q.New)
	queues.Name("Ready").Int(q.Ready)
	queues.Name("Running").Int(q.Running)
	queues.Name("Blocked").Int(q.Blocked)
	queues.Name("Terminated").Int(q.Terminated)
	queues.End()

	stats := s.SchedulingStats()
	sched := obj.Name("Scheduling").Object()
	sched.Name("Completed").Int(stats.Completed)
	sched.Name("AverageWait").Float64(stats.AverageWait)
	sched.Name("AverageTurnaround").Float64(stats.AverageTurnaround)
	sched.Name("AverageService").Float64(stats.AverageService)
	sched.Name("Throughput").Float64(stats.Throughput)
	sched.Name("CPUUtilization").Float64(stats.CPUUtilization)
	sched.End()

	procs := obj.Name("Processes").Array()
	for _, p := range s.ProcessTable() {
		po := procs.Object()
		po.Name("PID").Int(int(p.PID))
		po.Name("State").String(string(p.State))
		po.Name("Priority").String(p.Priority.String())
		po.Name("Size").Int(int(p.Size))
		po.Name("Remaining").Int(p.Remaining)
		if p.Allocated {
			po.Name("BaseAddress").Int(int(p.BaseAddress))
		}
		po.End()
	}
	procs.End()

	mem := obj.Name("Memory").Object()
	s.Arena.PrintDetailedMap(&mem)
	mem.End()
}
