package memory

import (
	"github.com/cockroachdb/errors"
)

// Validate checks the partition invariant: blocks start at 0, each block begins one
// past the end of its predecessor, no block is inverted, the last block ends at
// total-1, owners are set exactly on occupied blocks and every indexed pid owns
// exactly one block. It returns a description of the first violation found.
func (a *Arena) Validate() error {
	if len(a.blocks) == 0 {
		return errors.New("arena has no blocks")
	}

	var next uint64
	owners := make(map[PID]int, len(a.blocks))
	for i, b := range a.blocks {
		if uint64(b.Start) != next {
			if uint64(b.Start) > next {
				return errors.Newf("gap before block %d: expected start %d, found %d", i, next, b.Start)
			}
			return errors.Newf("overlap at block %d: expected start %d, found %d", i, next, b.Start)
		}
		if b.End < b.Start {
			return errors.Newf("block %d is inverted: start %d, end %d", i, b.Start, b.End)
		}
		if b.Free && b.Owner != NoOwner {
			return errors.Newf("free block %d has owner P%d", i, b.Owner)
		}
		if !b.Free {
			if b.Owner <= NoOwner {
				return errors.Newf("occupied block %d has no owner", i)
			}
			owners[b.Owner]++
		}
		next = uint64(b.End) + 1
	}
	if next > uint64(a.total) {
		return errors.Newf("blocks overflow capacity: cover %d of %d", next, a.total)
	}
	if next < uint64(a.total) {
		return errors.Newf("blocks leave a tail gap: cover %d of %d", next, a.total)
	}

	for pid, n := range owners {
		if n != 1 {
			return errors.Newf("P%d owns %d blocks", pid, n)
		}
		if !a.holds(pid) {
			return errors.Newf("P%d owns a block but is not indexed", pid)
		}
	}
	for pid := range a.active {
		if _, ok := a.blocked[pid]; ok {
			return errors.Newf("P%d is indexed as both active and blocked", pid)
		}
		if owners[pid] == 0 {
			return errors.Newf("active P%d owns no block", pid)
		}
	}
	for pid := range a.blocked {
		if owners[pid] == 0 {
			return errors.Newf("blocked P%d owns no block", pid)
		}
	}
	return nil
}

// IntegrityCheck reports whether Validate passes, logging the violation otherwise.
// The arena does not repair itself; callers decide how to react.
func (a *Arena) IntegrityCheck() bool {
	if err := a.Validate(); err != nil {
		a.log.WithError(errors.Wrap(err, "memory integrity")).Error("partition invariant violated")
		return false
	}
	return true
}
