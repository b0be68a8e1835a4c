package memory

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scatteredArena returns a 100-unit arena whose free blocks have lengths 10, 50 and 20
// at addresses 0, 15 and 70, separated by occupied blocks owned by P2, P4 and P6.
func scatteredArena(t *testing.T) *Arena {
	t.Helper()
	a := NewArena(100)
	for i, size := range []uint32{10, 5, 50, 5, 20, 10} {
		_, ok := a.Allocate(PID(i+1), size, FirstFit)
		require.True(t, ok, "setup allocation %d", i+1)
	}
	for _, pid := range []PID{1, 3, 5} {
		require.True(t, a.Free(pid))
	}
	require.Equal(t, []Block{
		{Start: 0, End: 9, Free: true},
		{Start: 10, End: 14, Owner: 2},
		{Start: 15, End: 64, Free: true},
		{Start: 65, End: 69, Owner: 4},
		{Start: 70, End: 89, Free: true},
		{Start: 90, End: 99, Owner: 6},
	}, a.Blocks())
	return a
}

func TestNewArena_SingleFreeBlock(t *testing.T) {
	a := NewArena(64)
	assert.Equal(t, []Block{{Start: 0, End: 63, Free: true}}, a.Blocks())
	assert.Equal(t, uint32(64), a.FreeMemory())
	assert.Equal(t, uint32(0), a.UsedMemory())
	assert.NoError(t, a.Validate())
	assert.Empty(t, a.History(), "construction is not a mutation")
}

func TestNewArena_ZeroCapacity_Panics(t *testing.T) {
	assert.Panics(t, func() { NewArena(0) })
}

func TestAllocate_FirstFitThenBestFit_SplitsBlocks(t *testing.T) {
	// GIVEN a 100-unit arena with a single free block [0,99]
	a := NewArena(100)

	// WHEN 40 units are allocated first-fit
	blk, ok := a.Allocate(1, 40, FirstFit)

	// THEN [0,39] is occupied and [40,99] remains free
	require.True(t, ok)
	assert.Equal(t, Block{Start: 0, End: 39, Owner: 1}, blk)
	assert.Equal(t, []Block{
		{Start: 0, End: 39, Owner: 1},
		{Start: 40, End: 99, Free: true},
	}, a.Blocks())

	// WHEN 30 units are allocated best-fit
	blk, ok = a.Allocate(2, 30, BestFit)

	// THEN the only free block is chosen and split into [40,69] and [70,99]
	require.True(t, ok)
	assert.Equal(t, Block{Start: 40, End: 69, Owner: 2}, blk)
	blocks := a.Blocks()
	require.Len(t, blocks, 3)
	assert.Equal(t, Block{Start: 70, End: 99, Free: true}, blocks[2])
	assert.Equal(t, uint32(30), blocks[2].Len())
	assert.Equal(t, uint64(60+30), a.InternalFragmentation())
	assert.Equal(t, []PID{1, 2}, a.ActiveProcesses())
}

func TestAllocate_StrategiesPickDifferentBlocks(t *testing.T) {
	tests := []struct {
		name      string
		strategy  Strategy
		size      uint32
		wantStart uint32
	}{
		{"first fit takes lowest address", FirstFit, 8, 0},
		{"best fit takes smallest sufficient", BestFit, 8, 0},
		{"worst fit takes largest", WorstFit, 8, 15},
		{"first fit skips too-small blocks", FirstFit, 15, 15},
		{"best fit prefers the 20 block over the 50 block", BestFit, 15, 70},
		{"worst fit ignores size ordering by address", WorstFit, 15, 15},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := scatteredArena(t)
			blk, ok := a.Allocate(10, tc.size, tc.strategy)
			require.True(t, ok)
			assert.Equal(t, tc.wantStart, blk.Start)
			assert.Equal(t, tc.size, blk.Len())
			assert.NoError(t, a.Validate())
		})
	}
}

func TestAllocate_BestFitTieGoesToLowestAddress(t *testing.T) {
	// GIVEN two free blocks of equal length 20 at 0 and 40
	a := NewArena(80)
	for i, size := range []uint32{20, 20, 20, 20} {
		_, ok := a.Allocate(PID(i+1), size, FirstFit)
		require.True(t, ok)
	}
	require.True(t, a.Free(1))
	require.True(t, a.Free(3))

	// WHEN best fit and worst fit choose among equals
	best, ok := a.Allocate(5, 10, BestFit)
	require.True(t, ok)

	// THEN the first occurrence wins
	assert.Equal(t, uint32(0), best.Start)
}

func TestAllocate_NoQualifyingBlock_ReturnsFalse(t *testing.T) {
	a := scatteredArena(t)
	before := a.Blocks()
	historyLen := len(a.History())

	for _, s := range []Strategy{FirstFit, BestFit, WorstFit} {
		_, ok := a.Allocate(10, 51, s)
		assert.False(t, ok, "strategy %s", s)
	}
	assert.Equal(t, before, a.Blocks(), "failed allocation must not mutate blocks")
	assert.Len(t, a.History(), historyLen)
}

func TestAllocate_RejectsInvalidRequests(t *testing.T) {
	a := NewArena(100)
	_, ok := a.Allocate(1, 0, FirstFit)
	assert.False(t, ok, "zero size")
	_, ok = a.Allocate(NoOwner, 10, FirstFit)
	assert.False(t, ok, "non-positive pid")
	_, ok = a.Allocate(1, 10, Strategy("nextFit"))
	assert.False(t, ok, "unknown strategy")

	_, ok = a.Allocate(1, 10, FirstFit)
	require.True(t, ok)
	_, ok = a.Allocate(1, 10, FirstFit)
	assert.False(t, ok, "pid already holds memory")
}

func TestAllocate_ExactFit_ReusesBlockWithoutInternalFragmentation(t *testing.T) {
	// GIVEN an arena of exactly the requested size
	a := NewArena(50)

	// WHEN the whole arena is requested
	blk, ok := a.Allocate(1, 50, WorstFit)

	// THEN the block is reused in place and nothing is charged
	require.True(t, ok)
	assert.Equal(t, Block{Start: 0, End: 49, Owner: 1}, blk)
	assert.Len(t, a.Blocks(), 1)
	assert.Equal(t, uint64(0), a.InternalFragmentation())
	assert.Len(t, a.History(), 1)
}

func TestFree_UnknownPID_NoSideEffects(t *testing.T) {
	a := NewArena(100)
	_, _ = a.Allocate(1, 40, FirstFit)
	before := a.Blocks()
	historyLen := len(a.History())

	assert.False(t, a.Free(99))
	assert.Equal(t, before, a.Blocks())
	assert.Len(t, a.History(), historyLen)
}

func TestFree_CompactsNeighbours(t *testing.T) {
	// GIVEN [0,39]P1 [40,69]P2 [70,99]free
	a := NewArena(100)
	_, _ = a.Allocate(1, 40, FirstFit)
	_, _ = a.Allocate(2, 30, FirstFit)

	// WHEN P1 is freed, two separate free blocks exist
	require.True(t, a.Free(1))
	assert.Equal(t, uint64(70), a.FragmentationStats().ExternalAbs)

	// WHEN P2 is freed, all three ranges merge into one block
	require.True(t, a.Free(2))
	assert.Equal(t, []Block{{Start: 0, End: 99, Free: true}}, a.Blocks())
	assert.Equal(t, uint64(0), a.FragmentationStats().ExternalAbs)
	assert.Empty(t, a.ActiveProcesses())
}

func TestFree_BlockedProcess(t *testing.T) {
	a := NewArena(100)
	_, _ = a.Allocate(1, 10, FirstFit)
	require.True(t, a.BlockProcess(1))
	assert.Empty(t, a.ActiveProcesses())
	assert.Equal(t, []PID{1}, a.BlockedProcesses())

	assert.True(t, a.Free(1))
	assert.Empty(t, a.BlockedProcesses())
	assert.Equal(t, uint32(100), a.FreeMemory())
}

func TestBlockUnblock_MovesBetweenIndices(t *testing.T) {
	a := NewArena(100)
	_, _ = a.Allocate(1, 10, FirstFit)

	assert.False(t, a.UnblockProcess(1), "not blocked yet")
	assert.True(t, a.BlockProcess(1))
	assert.False(t, a.BlockProcess(1), "already blocked")
	assert.True(t, a.UnblockProcess(1))
	assert.Equal(t, []PID{1}, a.ActiveProcesses())
	assert.False(t, a.BlockProcess(7), "unknown pid")
	assert.NoError(t, a.Validate())
}

func TestCompact_Idempotent(t *testing.T) {
	a := scatteredArena(t)
	a.Compact()
	once := a.Blocks()
	a.Compact()
	assert.Equal(t, once, a.Blocks())
}

func TestCompact_MergesRunsLeftByDirectMutation(t *testing.T) {
	// GIVEN adjacent free blocks that were never merged
	a := NewArena(30)
	a.blocks = []Block{
		{Start: 0, End: 9, Free: true},
		{Start: 10, End: 19, Free: true},
		{Start: 20, End: 29, Free: true},
	}

	// WHEN compacting
	a.Compact()

	// THEN a single block spans the combined range
	assert.Equal(t, []Block{{Start: 0, End: 29, Free: true}}, a.Blocks())
}

func TestInternalFragmentation_NeverDecreases(t *testing.T) {
	a := NewArena(100)
	_, _ = a.Allocate(1, 40, FirstFit)
	afterAlloc := a.InternalFragmentation()
	require.Equal(t, uint64(60), afterAlloc)

	require.True(t, a.Free(1))
	a.Compact()
	assert.Equal(t, afterAlloc, a.InternalFragmentation(), "free and compaction keep the lifetime counter")
}

func TestHistory_BoundedAndEvictsOldest(t *testing.T) {
	// GIVEN an arena whose clock advances on every history entry
	var now int64
	a := NewArena(100, WithClock(func() int64 { now++; return now }))

	// WHEN 60 allocate/free pairs are performed (one entry per allocate, two per free)
	for i := 0; i < 60; i++ {
		_, ok := a.Allocate(1, 10, FirstFit)
		require.True(t, ok)
		require.True(t, a.Free(1))
	}

	// THEN only the newest 100 of 180 entries remain, oldest first
	h := a.History()
	require.Len(t, h, HistoryCapacity)
	assert.Equal(t, int64(81), h[0].Timestamp)
	assert.Equal(t, int64(180), h[len(h)-1].Timestamp)
}

func TestFragmentationStats_Percentages(t *testing.T) {
	a := scatteredArena(t)
	stats := a.FragmentationStats()

	// free blocks 10+50+20 are scattered; internal accumulates every split leftover
	assert.Equal(t, uint64(80), stats.ExternalAbs)
	assert.InDelta(t, 80.0, stats.ExternalPct, 1e-9)
	assert.Equal(t, stats.ExternalAbs+stats.InternalAbs, stats.TotalAbs)
	assert.InDelta(t, float64(stats.InternalAbs), stats.InternalPct, 1e-9)
}

func TestSummary_GradesFragmentation(t *testing.T) {
	a := NewArena(100)
	s := a.Summary()
	assert.Equal(t, AlertLow, s.Alert)
	assert.Equal(t, RecommendNone, s.Recommendation)

	scattered := scatteredArena(t)
	s = scattered.Summary()
	assert.Equal(t, AlertHigh, s.Alert)
	assert.Equal(t, RecommendCompaction, s.Recommendation)
	assert.Equal(t, 0, s.SmallBlocks, "10 units is not below 5% of 100")
	assert.Contains(t, s.String(), "alert=HIGH")
}

func TestMemoryMap_Classification(t *testing.T) {
	// GIVEN a 1000-unit arena with a 9-unit hole and a large free tail
	a := NewArena(1000)
	_, _ = a.Allocate(1, 9, FirstFit)
	_, _ = a.Allocate(2, 100, FirstFit)
	require.True(t, a.Free(1))

	m := a.MemoryMap()
	require.Len(t, m, 3)

	hole := m[0]
	assert.True(t, hole.Free)
	assert.True(t, hole.Fragment)
	assert.True(t, hole.Small)
	assert.True(t, hole.ContributesExternal)

	assert.False(t, m[1].Free)
	assert.Equal(t, PID(2), m[1].Owner)
	assert.False(t, m[1].Fragment)

	tail := m[2]
	assert.False(t, tail.Fragment)
	assert.Equal(t, uint32(891), tail.Size)
}

func TestStatistics_Counts(t *testing.T) {
	a := scatteredArena(t)
	require.True(t, a.BlockProcess(2))
	s := a.Statistics()
	assert.Equal(t, 6, s.BlockCount)
	assert.Equal(t, 3, s.FreeBlockCount)
	assert.Equal(t, 3, s.UsedBlockCount)
	assert.Equal(t, 2, s.ActiveProcesses)
	assert.Equal(t, 1, s.BlockedProcesses)
	assert.Equal(t, uint32(80), s.FreeMemory)
	assert.Equal(t, uint32(20), s.UsedMemory)
}

func TestReset_RestoresInitialState(t *testing.T) {
	a := scatteredArena(t)
	a.Reset()
	assert.Equal(t, []Block{{Start: 0, End: 99, Free: true}}, a.Blocks())
	assert.Empty(t, a.ActiveProcesses())
	assert.Equal(t, uint64(0), a.InternalFragmentation())
	assert.Empty(t, a.History())
}

func TestArena_RandomOperations_PreserveInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	strategies := []Strategy{FirstFit, BestFit, WorstFit}
	a := NewArena(512)
	live := map[PID]bool{}
	next := PID(1)
	var lastInternal uint64

	for step := 0; step < 2000; step++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			for pid := range live {
				require.True(t, a.Free(pid))
				delete(live, pid)
				break
			}
		} else {
			size := uint32(rng.Intn(60) + 1)
			if _, ok := a.Allocate(next, size, strategies[rng.Intn(3)]); ok {
				live[next] = true
			}
			next++
		}

		require.NoError(t, a.Validate(), "step %d", step)
		require.Equal(t, a.Total(), a.FreeMemory()+a.UsedMemory())
		require.GreaterOrEqual(t, a.InternalFragmentation(), lastInternal)
		require.LessOrEqual(t, len(a.History()), HistoryCapacity)
		lastInternal = a.InternalFragmentation()
	}
}

func TestValidate_DetectsViolations(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(a *Arena)
		wantMsg string
	}{
		{"gap", func(a *Arena) { a.blocks[1].Start = 41 }, "gap"},
		{"overlap", func(a *Arena) { a.blocks[1].Start = 39 }, "overlap"},
		{"inverted", func(a *Arena) { a.blocks[0].End = 0; a.blocks[0].Start = 0; a.blocks[1].Start = 1; a.blocks[1].End = 0 }, "inverted"},
		{"overflow", func(a *Arena) { a.blocks[1].End = 120 }, "overflow"},
		{"tail gap", func(a *Arena) { a.blocks[1].End = 98 }, "tail gap"},
		{"owned free block", func(a *Arena) { a.blocks[1].Owner = 3 }, "free block"},
		{"unindexed owner", func(a *Arena) { delete(a.active, 1) }, "not indexed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := NewArena(100)
			_, ok := a.Allocate(1, 40, FirstFit)
			require.True(t, ok)
			tc.corrupt(a)

			err := a.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
			assert.False(t, a.IntegrityCheck())
		})
	}
}

func TestParseStrategy(t *testing.T) {
	s, ok := ParseStrategy("bestFit")
	assert.True(t, ok)
	assert.Equal(t, BestFit, s)

	s, ok = ParseStrategy("")
	assert.True(t, ok)
	assert.Equal(t, FirstFit, s)

	_, ok = ParseStrategy("nextFit")
	assert.False(t, ok)
	assert.False(t, IsValidStrategy("nextFit"))
}

func TestFree_AppendsTwoHistoryEntries(t *testing.T) {
	// GIVEN one allocation recorded in the history
	a := NewArena(100)
	_, ok := a.Allocate(1, 10, FirstFit)
	require.True(t, ok)
	require.Len(t, a.History(), 1)

	// WHEN the process is freed
	require.True(t, a.Free(1))

	// THEN compaction and the free each appended an entry
	h := a.History()
	require.Len(t, h, 3)
	assert.Equal(t, uint64(0), h[1].External)
	assert.Equal(t, uint64(0), h[2].External)
	assert.Equal(t, uint64(90), h[2].Internal, "internal fragmentation is a lifetime counter")
}
