package tree

import (
	"github.com/wsami/rodos-go/errs"
	"github.com/wsami/rodos-go/fatfs"
)

// ChainReader abstracts the cluster-chain reassembly the tree needs during
// reconstruction, without pulling store.Allocator/ClusterStore into this
// package directly (tree stays a pure data structure over decoded records).
type ChainReader interface {
	// WalkChain returns every cluster index in the chain starting at head.
	WalkChain(head int) []int
	// Cluster returns the raw bytes of cluster idx.
	Cluster(idx uint16) []byte
}

// PullDirectory rebuilds a directory's children by walking its cluster
// chain via reader, decoding each 32-byte record, recursing into
// subdirectories. It mirrors spec.md §4.6's pull reconstruction for any
// directory reached by its FirstCluster chain -- i.e. every directory
// except root, whose slots live in the fixed root table instead of a chain
// (see PullRoot).
func PullDirectory(t *Tree, dirIdx int, reader ChainReader, direntSize int) error {
	dir := t.nodes[dirIdx]
	if !dir.IsDir() {
		return nil
	}

	chain := reader.WalkChain(int(dir.FirstCluster))
	var raw []byte
	for _, idx := range chain {
		raw = append(raw, reader.Cluster(uint16(idx))...)
	}
	return pullRecords(t, dirIdx, raw, reader, direntSize)
}

// PullRoot rebuilds root's children directly from the fixed root table's
// raw bytes (rootBytes is the concatenation of the root region's clusters,
// in order), recursing into subdirectories the same way PullDirectory does.
func PullRoot(t *Tree, rootBytes []byte, reader ChainReader, direntSize int) error {
	return pullRecords(t, t.Root(), rootBytes, reader, direntSize)
}

func pullRecords(t *Tree, dirIdx int, raw []byte, reader ChainReader, direntSize int) error {
	for off := 0; off+direntSize <= len(raw); off += direntSize {
		record := raw[off : off+direntSize]
		if fatfs.IsEmptySlot(record) {
			continue
		}
		entry := fatfs.DecodeDirEntry(record)
		childIdx := t.Add(Node{
			Name:         entry.Name,
			Extension:    entry.Extension,
			Size:         entry.Size,
			FirstCluster: entry.FirstCluster,
			Attributes:   entry.Attributes,
			ModTime:      entry.ModTime,
			Parent:       dirIdx,
		})
		t.nodes[dirIdx].Children = append(t.nodes[dirIdx].Children, childIdx)

		if entry.Attributes.IsDir() && entry.Name != "." && entry.Name != ".." {
			if err := PullDirectory(t, childIdx, reader, direntSize); err != nil {
				return err
			}
		}
	}
	t.RecomputeSize(dirIdx)
	return nil
}

// Serialize concatenates the 32-byte encodings of dirIdx's children in
// current order, including pseudo-children, per spec.md §4.6's
// serialize() rule.
func Serialize(t *Tree, dirIdx int) []byte {
	var out []byte
	for _, c := range t.nodes[dirIdx].Children {
		n := t.nodes[c]
		entry := fatfs.DirEntry{
			Name:         n.Name,
			Extension:    n.Extension,
			Size:         n.Size,
			FirstCluster: n.FirstCluster,
			Attributes:   n.Attributes,
			ModTime:      n.ModTime,
		}
		out = append(out, entry.Encode()...)
	}
	return out
}

// ChainWriter is the subset of the allocator/store surface Sync needs to
// free and rebuild a directory's chain.
type ChainWriter interface {
	ChainReader
	FreeChain(head int)
	FindFree(start int) (int, bool)
	AllocChain(head int, payload []byte) error
}

// SyncToStorage frees dirIdx's current chain (without touching its own
// root-table slot) and reallocates via the allocator, writing the
// serialized child records, per spec.md §4.6's sync_to_storage contract.
// Root itself has no chain of its own (its children live in the fixed root
// table) and must not be passed here.
func SyncToStorage(t *Tree, dirIdx int, w ChainWriter) error {
	if dirIdx == t.Root() {
		return errs.ErrInvalidInput.WithMessage("root directory has no chain to sync")
	}

	dir := &t.nodes[dirIdx]
	w.FreeChain(int(dir.FirstCluster))

	head, ok := w.FindFree(0)
	if !ok {
		return errs.ErrOutOfSpace
	}
	payload := Serialize(t, dirIdx)
	if err := w.AllocChain(head, payload); err != nil {
		return err
	}
	dir.FirstCluster = uint16(head)
	return nil
}
