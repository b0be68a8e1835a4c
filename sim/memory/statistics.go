package memory

// smallBlockLen is the absolute length under which a free block is flagged Small.
const smallBlockLen = 10

// Statistics aggregates the arena state for reporting.
type Statistics struct {
	Total            uint32
	FreeMemory       uint32
	UsedMemory       uint32
	BlockCount       int
	FreeBlockCount   int
	UsedBlockCount   int
	ActiveProcesses  int
	BlockedProcesses int
	Fragmentation    FragmentationStats
}

// Statistics returns a point-in-time summary of the arena.
func (a *Arena) Statistics() Statistics {
	free := a.freeBlockCount()
	return Statistics{
		Total:            a.total,
		FreeMemory:       a.FreeMemory(),
		UsedMemory:       a.UsedMemory(),
		BlockCount:       len(a.blocks),
		FreeBlockCount:   free,
		UsedBlockCount:   len(a.blocks) - free,
		ActiveProcesses:  len(a.active),
		BlockedProcesses: len(a.blocked),
		Fragmentation:    a.FragmentationStats(),
	}
}

// MapEntry describes one block of the memory map. The classification flags are
// advisory and never influence allocation.
type MapEntry struct {
	Block
	Size uint32
	// Fragment marks a free block shorter than 5% of capacity.
	Fragment bool
	// Small marks a free block shorter than 10 addresses.
	Small bool
	// ContributesExternal marks a free block while external fragmentation is non-zero.
	ContributesExternal bool
}

// MemoryMap returns the block list, in address order, with its classification.
func (a *Arena) MemoryMap() []MapEntry {
	scattered := a.externalNow() > 0
	entries := make([]MapEntry, 0, len(a.blocks))
	for _, b := range a.blocks {
		entries = append(entries, MapEntry{
			Block:               b,
			Size:                b.Len(),
			Fragment:            b.Free && a.isFragment(b),
			Small:               b.Free && b.Len() < smallBlockLen,
			ContributesExternal: b.Free && scattered,
		})
	}
	return entries
}
