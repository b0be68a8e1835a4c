package sim

// ProcessTable owns every process created in a simulation. Collections elsewhere
// hold PIDs only; the process with PID n lives at index n-1.
type ProcessTable struct {
	procs []*Process
}

// Create appends a new process and returns it.
func (t *ProcessTable) Create(size uint32, duration int, priority Priority, now int64) *Process {
	p := NewProcess(PID(len(t.procs)+1), size, duration, priority, now)
	t.procs = append(t.procs, p)
	return p
}

// Get returns the process with the given PID, or nil if it was never created.
func (t *ProcessTable) Get(pid PID) *Process {
	if pid <= NoProcess || int(pid) > len(t.procs) {
		return nil
	}
	return t.procs[pid-1]
}

// MustGet is Get for PIDs held by a scheduler collection. Panics on unknown PIDs.
func (t *ProcessTable) MustGet(pid PID) *Process {
	p := t.Get(pid)
	if p == nil {
		panic("ProcessTable: unknown PID in scheduler collection")
	}
	return p
}

// Len returns the number of processes ever created.
func (t *ProcessTable) Len() int {
	return len(t.procs)
}

// Reset drops every process. PIDs restart at 1.
func (t *ProcessTable) Reset() {
	t.procs = nil
}
