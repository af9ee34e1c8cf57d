package store

import (
	"github.com/boljen/go-bitmap"
	"github.com/wsami/rodos-go/errs"
	"github.com/wsami/rodos-go/fatfs"
)

// Allocator drives first-fit allocation-chain construction and teardown over
// a FAT table and its backing ClusterStore. It never reorders or compacts
// existing chains on its own -- that's defragment's job, built out of the
// same FindFree/AllocChain primitives applied to a fresh image.
type Allocator struct {
	fat      []fatfs.FatCell
	clusters *ClusterStore
}

// NewAllocator creates an Allocator over the given FAT table and cluster
// store. The two must share the same geometry; the caller owns both slices
// and is expected to persist fat itself (the allocator only mutates cells
// in place).
func NewAllocator(fat []fatfs.FatCell, clusters *ClusterStore) *Allocator {
	return &Allocator{fat: fat, clusters: clusters}
}

// FindFree returns the lowest index i > start with FAT[i] == Free. The
// second return value is false if no such index exists.
func (a *Allocator) FindFree(start int) (int, bool) {
	for i := start + 1; i < len(a.fat); i++ {
		if a.fat[i] == fatfs.CellFree {
			return i, true
		}
	}
	return 0, false
}

// CountFree returns the number of cells currently marked Free.
func (a *Allocator) CountFree() int {
	count := 0
	for _, cell := range a.fat {
		if cell == fatfs.CellFree {
			count++
		}
	}
	return count
}

// AllocChain writes payload into a chain of clusters starting at head,
// advancing through successive free clusters found via the monotonic
// first-fit successor rule (FindFree(current), strictly increasing
// indices). head itself must already be reserved by the caller (e.g. by
// having just been returned from FindFree) -- AllocChain claims it as the
// first Data/EndOfChain cell of the new chain.
//
// If allocation runs out of space mid-chain, every cluster visited by this
// call (including head) is rolled back to Free with its bytes zeroed, and
// ErrOutOfSpace is returned. The caller is still responsible for removing
// the orphaned directory entry -- that's outside what the FAT/cluster grid
// know about.
func (a *Allocator) AllocChain(head int, payload []byte) error {
	visited := bitmap.New(len(a.fat))
	visited.Set(head, true)

	clusterSize := int(a.clusters.ClusterSize())
	current := head
	remaining := payload

	for {
		n := clusterSize
		if n > len(remaining) {
			n = len(remaining)
		}
		a.clusters.SetCluster(uint16(current), remaining[:n])
		remaining = remaining[n:]

		if len(remaining) == 0 {
			a.fat[current] = fatfs.CellEndOfChain
			return nil
		}

		next, ok := a.FindFree(current)
		if !ok {
			a.rollback(visited)
			return errs.ErrOutOfSpace
		}

		a.fat[current] = fatfs.DataCell(uint16(next))
		visited.Set(next, true)
		current = next
	}
}

func (a *Allocator) rollback(visited bitmap.Bitmap) {
	empty := make([]byte, a.clusters.ClusterSize())
	for i := 0; i < len(a.fat); i++ {
		if visited.Get(i) {
			a.fat[i] = fatfs.CellFree
			a.clusters.SetCluster(uint16(i), empty)
		}
	}
}

// FreeChain walks the chain starting at head and marks every visited cell
// Free, including the terminating EndOfChain cell, zeroing each cluster's
// bytes as it goes.
func (a *Allocator) FreeChain(head int) {
	empty := make([]byte, a.clusters.ClusterSize())
	current := head

	for {
		cell := a.fat[current]
		a.fat[current] = fatfs.CellFree
		a.clusters.SetCluster(uint16(current), empty)

		if cell == fatfs.CellEndOfChain || !cell.IsData() {
			return
		}
		current = int(cell.Next())
	}
}

// WalkChain returns every cluster index in the chain starting at head, not
// including the terminating EndOfChain marker.
func (a *Allocator) WalkChain(head int) []int {
	var indexes []int
	current := head

	for {
		indexes = append(indexes, current)
		cell := a.fat[current]
		if cell == fatfs.CellEndOfChain || !cell.IsData() {
			return indexes
		}
		current = int(cell.Next())
	}
}
