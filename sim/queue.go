// Implements the process queues held by the Scheduler.
// ArrivalQueue holds processes waiting for memory in creation order; ReadyQueue holds
// processes waiting for the CPU ordered by priority, then arrival.

package sim

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// ArrivalQueue is a FIFO of processes in state new.
type ArrivalQueue struct {
	queue []PID
}

// Enqueue adds a process to the back of the queue.
func (q *ArrivalQueue) Enqueue(pid PID) {
	if pid <= NoProcess {
		panic("Enqueue: pid must be positive")
	}
	q.queue = append(q.queue, pid)
}

// Len returns the number of queued processes.
func (q *ArrivalQueue) Len() int {
	return len(q.queue)
}

// Peek returns the process at the front of the queue without removing it.
// Returns NoProcess if the queue is empty.
func (q *ArrivalQueue) Peek() PID {
	if len(q.queue) == 0 {
		return NoProcess
	}
	return q.queue[0]
}

// At returns the i-th queued process.
func (q *ArrivalQueue) At(i int) PID {
	return q.queue[i]
}

// RemoveAt drops the i-th queued process.
func (q *ArrivalQueue) RemoveAt(i int) {
	q.queue = slices.Delete(q.queue, i, i+1)
}

// Remove drops pid from the queue, reporting whether it was present.
func (q *ArrivalQueue) Remove(pid PID) bool {
	i := slices.Index(q.queue, pid)
	if i < 0 {
		return false
	}
	q.RemoveAt(i)
	return true
}

// Items returns a copy of the queue contents, front first.
func (q *ArrivalQueue) Items() []PID {
	return slices.Clone(q.queue)
}

func (q *ArrivalQueue) String() string {
	return formatPIDs(q.queue)
}

// ReadyQueue orders processes by priority (descending), then by arrival time
// (ascending). Insertion is stable: a process lands after every entry that ranks
// equal to it, and the queue is never re-sorted.
type ReadyQueue struct {
	queue []PID
	procs *ProcessTable
}

// NewReadyQueue creates an empty ready queue resolving PIDs through procs.
func NewReadyQueue(procs *ProcessTable) *ReadyQueue {
	return &ReadyQueue{procs: procs}
}

// Insert places pid before the first entry of lower priority or of equal priority
// and later arrival.
func (q *ReadyQueue) Insert(pid PID) {
	p := q.procs.MustGet(pid)
	idx := slices.IndexFunc(q.queue, func(other PID) bool {
		o := q.procs.MustGet(other)
		if o.Priority != p.Priority {
			return o.Priority < p.Priority
		}
		return o.ArrivalTime > p.ArrivalTime
	})
	if idx < 0 {
		q.queue = append(q.queue, pid)
		return
	}
	q.queue = slices.Insert(q.queue, idx, pid)
}

// Dequeue removes and returns the head of the queue, or NoProcess if empty.
func (q *ReadyQueue) Dequeue() PID {
	if len(q.queue) == 0 {
		return NoProcess
	}
	head := q.queue[0]
	q.queue = q.queue[1:]
	return head
}

// Peek returns the head of the queue without removing it.
func (q *ReadyQueue) Peek() PID {
	if len(q.queue) == 0 {
		return NoProcess
	}
	return q.queue[0]
}

// Remove drops pid from the queue, reporting whether it was present.
func (q *ReadyQueue) Remove(pid PID) bool {
	i := slices.Index(q.queue, pid)
	if i < 0 {
		return false
	}
	q.queue = slices.Delete(q.queue, i, i+1)
	return true
}

// Len returns the number of queued processes.
func (q *ReadyQueue) Len() int {
	return len(q.queue)
}

// Items returns a copy of the queue contents, head first.
func (q *ReadyQueue) Items() []PID {
	return slices.Clone(q.queue)
}

func (q *ReadyQueue) String() string {
	return formatPIDs(q.queue)
}

func formatPIDs(pids []PID) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, pid := range pids {
		sb.WriteString(fmt.Sprintf("P%d", pid))
		if i < len(pids)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
