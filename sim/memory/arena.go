// Package memory implements the contiguous memory arena behind the simulator.
//
// An Arena partitions the address range [0, total) into an ordered list of blocks.
// Allocation picks a free block with one of three placement strategies and splits it;
// freeing a process returns its block to the pool and immediately coalesces adjacent
// free blocks. Every mutation appends one entry to the fragmentation history.
//
// The arena is not safe for concurrent use. The simulation that owns it serializes
// every call.
package memory

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// PID identifies a simulated process. Valid PIDs are positive.
type PID int

// NoOwner is the Owner of every free block.
const NoOwner PID = 0

// Strategy selects the free block used to satisfy an allocation.
type Strategy string

const (
	// FirstFit takes the first free block, in address order, that is large enough.
	FirstFit Strategy = "firstFit"
	// BestFit takes the smallest sufficient free block; ties go to the lowest address.
	BestFit Strategy = "bestFit"
	// WorstFit takes the largest sufficient free block; ties go to the lowest address.
	WorstFit Strategy = "worstFit"
)

// validStrategies maps accepted strategy names. Empty defaults to FirstFit.
var validStrategies = map[string]Strategy{
	"":               FirstFit,
	string(FirstFit): FirstFit,
	string(BestFit):  BestFit,
	string(WorstFit): WorstFit,
}

// IsValidStrategy returns true if name is a recognized placement strategy.
func IsValidStrategy(name string) bool {
	_, ok := validStrategies[name]
	return ok
}

// ValidStrategyNames returns the accepted strategy names in address-search order.
func ValidStrategyNames() []string {
	return []string{string(FirstFit), string(BestFit), string(WorstFit)}
}

// ParseStrategy maps a strategy name to its Strategy. Unknown names report false.
func ParseStrategy(name string) (Strategy, bool) {
	s, ok := validStrategies[name]
	return s, ok
}

// Block is a maximal contiguous address sub-range. End is inclusive.
// Owner is set exactly when Free is false.
type Block struct {
	Start uint32
	End   uint32
	Free  bool
	Owner PID
}

// Len returns the number of addresses covered by the block.
func (b Block) Len() uint32 {
	return b.End - b.Start + 1
}

func (b Block) String() string {
	if b.Free {
		return fmt.Sprintf("[%d-%d free]", b.Start, b.End)
	}
	return fmt.Sprintf("[%d-%d P%d]", b.Start, b.End, b.Owner)
}

// Arena owns the ordered partition of [0, total) and the process indices used to find
// a block by PID.
type Arena struct {
	total   uint32
	blocks  []Block
	active  map[PID]struct{} // allocated, not blocked
	blocked map[PID]struct{} // allocated, blocked on I/O
	ledger  ledger
	clock   func() int64
	log     *logrus.Entry
}

// Option configures an Arena.
type Option func(*Arena)

// WithClock sets the source of fragmentation-history timestamps.
// Without it every snapshot is stamped 0.
func WithClock(clock func() int64) Option {
	return func(a *Arena) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// WithLogger routes arena diagnostics to entry.
func WithLogger(entry *logrus.Entry) Option {
	return func(a *Arena) {
		if entry != nil {
			a.log = entry
		}
	}
}

// NewArena creates an arena of total addresses holding a single free block.
// Panics if total is zero.
func NewArena(total uint32, opts ...Option) *Arena {
	if total == 0 {
		panic("NewArena: total must be positive")
	}
	a := &Arena{
		total:   total,
		active:  make(map[PID]struct{}),
		blocked: make(map[PID]struct{}),
		ledger:  ledger{history: NewHistory(HistoryCapacity)},
		clock:   func() int64 { return 0 },
		log:     logrus.WithField("component", "memory"),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.blocks = []Block{{Start: 0, End: total - 1, Free: true}}
	return a
}

// Total returns the arena capacity.
func (a *Arena) Total() uint32 {
	return a.total
}

// Allocate places a block of exactly size addresses for pid using strategy and
// registers pid in the active index. It reports false, leaving the arena untouched,
// when no free block qualifies, size is zero, pid is not positive or pid already
// holds memory.
func (a *Arena) Allocate(pid PID, size uint32, strategy Strategy) (Block, bool) {
	if size == 0 || pid <= NoOwner || a.holds(pid) {
		return Block{}, false
	}
	idx := a.find(size, strategy)
	if idx < 0 {
		a.log.Debugf("no free block of %d for P%d (%s)", size, pid, strategy)
		return Block{}, false
	}
	blk := a.split(idx, size, pid)
	a.active[pid] = struct{}{}
	a.record()
	a.log.Debugf("allocated %v for P%d (%s)", blk, pid, strategy)
	return blk, true
}

// find returns the index of the free block chosen by strategy, or -1.
func (a *Arena) find(size uint32, strategy Strategy) int {
	chosen := -1
	switch strategy {
	case FirstFit:
		for i, b := range a.blocks {
			if b.Free && b.Len() >= size {
				return i
			}
		}
	case BestFit:
		var best uint32
		for i, b := range a.blocks {
			if b.Free && b.Len() >= size && (chosen < 0 || b.Len() < best) {
				chosen, best = i, b.Len()
			}
		}
	case WorstFit:
		var worst uint32
		for i, b := range a.blocks {
			if b.Free && b.Len() >= size && (chosen < 0 || b.Len() > worst) {
				chosen, worst = i, b.Len()
			}
		}
	default:
		a.log.Warnf("unknown placement strategy %q", strategy)
	}
	return chosen
}

// split carves an occupied block of size from the front of blocks[idx].
// A strictly larger block leaves a free remainder whose length is charged to the
// internal-fragmentation ledger; an exact fit is reused in place.
func (a *Arena) split(idx int, size uint32, pid PID) Block {
	orig := a.blocks[idx]
	if orig.Len() == size {
		a.blocks[idx].Free = false
		a.blocks[idx].Owner = pid
		return a.blocks[idx]
	}
	used := Block{Start: orig.Start, End: orig.Start + size - 1, Owner: pid}
	rest := Block{Start: orig.Start + size, End: orig.End, Free: true}
	a.blocks = slices.Replace(a.blocks, idx, idx+1, used, rest)
	a.ledger.internal += uint64(orig.Len() - size)
	return used
}

// Free releases the block owned by pid, drops pid from both process indices and
// compacts the free pool. Unknown pids report false without side effects.
// A successful free appends two history entries: one from the compaction and
// one for the free itself.
func (a *Arena) Free(pid PID) bool {
	if !a.holds(pid) {
		return false
	}
	for i := range a.blocks {
		b := &a.blocks[i]
		if b.Free || b.Owner != pid {
			continue
		}
		b.Free = true
		b.Owner = NoOwner
		delete(a.active, pid)
		delete(a.blocked, pid)
		a.Compact()
		a.record()
		a.log.Debugf("freed memory of P%d", pid)
		return true
	}
	return false
}

// Compact coalesces every run of adjacent free blocks into one block.
// Occupied blocks are never moved.
func (a *Arena) Compact() {
	merged := make([]Block, 0, len(a.blocks))
	for _, b := range a.blocks {
		if n := len(merged); b.Free && n > 0 && merged[n-1].Free {
			merged[n-1].End = b.End
			continue
		}
		merged = append(merged, b)
	}
	a.blocks = merged
	a.record()
}

// BlockProcess moves pid from the active to the blocked index.
func (a *Arena) BlockProcess(pid PID) bool {
	if _, ok := a.active[pid]; !ok {
		return false
	}
	delete(a.active, pid)
	a.blocked[pid] = struct{}{}
	return true
}

// UnblockProcess moves pid from the blocked back to the active index.
func (a *Arena) UnblockProcess(pid PID) bool {
	if _, ok := a.blocked[pid]; !ok {
		return false
	}
	delete(a.blocked, pid)
	a.active[pid] = struct{}{}
	return true
}

// Reset frees every process and restores a single free block and an empty ledger.
func (a *Arena) Reset() {
	a.blocks = []Block{{Start: 0, End: a.total - 1, Free: true}}
	a.active = make(map[PID]struct{})
	a.blocked = make(map[PID]struct{})
	a.ledger = ledger{history: NewHistory(HistoryCapacity)}
}

func (a *Arena) holds(pid PID) bool {
	if _, ok := a.active[pid]; ok {
		return true
	}
	_, ok := a.blocked[pid]
	return ok
}

// BlockOf returns the occupied block owned by pid.
func (a *Arena) BlockOf(pid PID) (Block, bool) {
	for _, b := range a.blocks {
		if !b.Free && b.Owner == pid {
			return b, true
		}
	}
	return Block{}, false
}

// Blocks returns a copy of the block list in address order.
func (a *Arena) Blocks() []Block {
	return slices.Clone(a.blocks)
}

// FreeMemory returns the summed length of all free blocks.
func (a *Arena) FreeMemory() uint32 {
	var free uint32
	for _, b := range a.blocks {
		if b.Free {
			free += b.Len()
		}
	}
	return free
}

// UsedMemory returns the capacity not covered by free blocks.
func (a *Arena) UsedMemory() uint32 {
	return a.total - a.FreeMemory()
}

// ActiveProcesses lists allocated, non-blocked pids in ascending order.
func (a *Arena) ActiveProcesses() []PID {
	return sortedPIDs(a.active)
}

// BlockedProcesses lists allocated, blocked pids in ascending order.
func (a *Arena) BlockedProcesses() []PID {
	return sortedPIDs(a.blocked)
}

func sortedPIDs(set map[PID]struct{}) []PID {
	pids := make([]PID, 0, len(set))
	for pid := range set {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}

func (a *Arena) freeBlockCount() int {
	n := 0
	for _, b := range a.blocks {
		if b.Free {
			n++
		}
	}
	return n
}
