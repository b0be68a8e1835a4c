package memory

import "fmt"

// HistoryCapacity bounds the fragmentation history kept by an Arena.
const HistoryCapacity = 100

// Snapshot is one fragmentation-history entry, recorded after a mutation.
type Snapshot struct {
	Timestamp int64
	External  uint64
	Internal  uint64
	Total     uint64
}

// History is a bounded FIFO of snapshots. Once full, appending evicts the oldest entry.
type History struct {
	entries []Snapshot
	limit   int
}

// NewHistory creates an empty history holding at most limit entries.
func NewHistory(limit int) History {
	if limit < 1 {
		limit = 1
	}
	return History{entries: make([]Snapshot, 0, limit), limit: limit}
}

// Push appends s, evicting the oldest entry when the history is full.
func (h *History) Push(s Snapshot) {
	if len(h.entries) == h.limit {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.entries = append(h.entries, s)
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Entries returns the retained entries, oldest first.
func (h *History) Entries() []Snapshot {
	out := make([]Snapshot, len(h.entries))
	copy(out, h.entries)
	return out
}

// ledger holds the running fragmentation counters.
//
// internal grows by the leftover of every split and is never reduced, not even when
// the leftover is freed, merged or reused. It is a lifetime counter, not a measure of
// memory currently wasted.
type ledger struct {
	external uint64
	internal uint64
	total    uint64
	history  History
}

// record refreshes the external counter and appends one history entry.
func (a *Arena) record() {
	a.ledger.external = a.externalNow()
	a.ledger.total = a.ledger.external + a.ledger.internal
	a.ledger.history.Push(Snapshot{
		Timestamp: a.clock(),
		External:  a.ledger.external,
		Internal:  a.ledger.internal,
		Total:     a.ledger.total,
	})
}

// externalNow counts all free memory as external fragmentation when it is scattered
// over more than one free block, and nothing otherwise.
func (a *Arena) externalNow() uint64 {
	if a.freeBlockCount() > 1 {
		return uint64(a.FreeMemory())
	}
	return 0
}

// FragmentationStats reports fragmentation in absolute units and as a percentage of
// the arena capacity.
type FragmentationStats struct {
	ExternalPct float64
	InternalPct float64
	TotalPct    float64
	ExternalAbs uint64
	InternalAbs uint64
	TotalAbs    uint64
}

func (s FragmentationStats) String() string {
	return fmt.Sprintf("total %.1f%% (%d), external %.1f%% (%d), internal %.1f%% (%d)",
		s.TotalPct, s.TotalAbs, s.ExternalPct, s.ExternalAbs, s.InternalPct, s.InternalAbs)
}

// FragmentationStats computes the current fragmentation figures.
func (a *Arena) FragmentationStats() FragmentationStats {
	external := a.externalNow()
	internal := a.ledger.internal
	total := external + internal
	capacity := float64(a.total)
	return FragmentationStats{
		ExternalPct: float64(external) / capacity * 100,
		InternalPct: float64(internal) / capacity * 100,
		TotalPct:    float64(total) / capacity * 100,
		ExternalAbs: external,
		InternalAbs: internal,
		TotalAbs:    total,
	}
}

// InternalFragmentation returns the lifetime internal-fragmentation counter.
func (a *Arena) InternalFragmentation() uint64 {
	return a.ledger.internal
}

// History returns the fragmentation history, oldest first.
func (a *Arena) History() []Snapshot {
	return a.ledger.history.Entries()
}

// AlertLevel grades the total fragmentation.
type AlertLevel string

const (
	AlertLow    AlertLevel = "LOW"
	AlertMedium AlertLevel = "MEDIUM"
	AlertHigh   AlertLevel = "HIGH"
)

// Recommendations returned by Summary.
const (
	RecommendCompaction = "consider memory compaction"
	RecommendBestFit    = "review allocation strategy (best fit recommended)"
	RecommendMoreMemory = "evaluate increasing total memory"
	RecommendNone       = "optimal"
)

// FragmentationSummary is an advisory digest of the fragmentation figures.
type FragmentationSummary struct {
	Stats          FragmentationStats
	Alert          AlertLevel
	SmallBlocks    int // free blocks shorter than 5% of capacity
	Recommendation string
}

func (s FragmentationSummary) String() string {
	return fmt.Sprintf("Fragmentation: total %.1f%% (external %.1f%%, internal %.1f%%) alert=%s: %s",
		s.Stats.TotalPct, s.Stats.ExternalPct, s.Stats.InternalPct, s.Alert, s.Recommendation)
}

// Summary grades the current fragmentation and suggests a remedy.
func (a *Arena) Summary() FragmentationSummary {
	stats := a.FragmentationStats()
	summary := FragmentationSummary{Stats: stats, Alert: AlertLow, Recommendation: RecommendNone}

	switch {
	case stats.TotalPct > 30:
		summary.Alert = AlertHigh
	case stats.TotalPct > 15:
		summary.Alert = AlertMedium
	}

	switch {
	case stats.ExternalPct > 20:
		summary.Recommendation = RecommendCompaction
	case stats.InternalPct > 15:
		summary.Recommendation = RecommendBestFit
	case stats.TotalPct > 25:
		summary.Recommendation = RecommendMoreMemory
	}

	for _, b := range a.blocks {
		if b.Free && a.isFragment(b) {
			summary.SmallBlocks++
		}
	}
	return summary
}

// isFragment reports whether b is shorter than 5% of capacity.
func (a *Arena) isFragment(b Block) bool {
	return float64(b.Len()) < float64(a.total)*0.05
}
