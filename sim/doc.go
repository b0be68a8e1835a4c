// Package sim provides the discrete-cycle operating system simulator: a process
// state machine, a preemptive priority scheduler with a quantum and probabilistic
// I/O blocking, and the Simulation context that couples them to a memory arena.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - process.go: Process lifecycle (new → ready → running → terminated, with
//     running → ready on quantum expiry and running → blocked → ready on I/O)
//   - scheduler.go: the five collections and the per-cycle Tick
//   - simulator.go: the Simulation context, process creation, manual overrides
//
// # Architecture
//
// Sub-packages hold the parts that do not depend on scheduling:
//   - sim/memory/: the contiguous arena, placement strategies and fragmentation ledger
//   - sim/trace/: decision trace recording
//
// Processes live in a single ProcessTable indexed by PID. The scheduler's collections
// and the arena's active and blocked indices store PIDs only, never process pointers.
//
// Time is measured in cycles. One Tick is one cycle; the driver decides how often to
// call it.
package sim
