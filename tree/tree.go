// Package tree implements the directory forest as an arena: a single slice
// of Node owned by Tree, with child lists and parent links stored as indices
// into that slice rather than as pointers. This mirrors disko's avoidance of
// deep pointer graphs in drivers/common/basedriver (entries addressed by
// stable handles) and follows the design note that an arena eliminates
// duplicated subtree clones when copying nodes around.
package tree

import (
	"time"

	"github.com/wsami/rodos-go/fatfs"
)

// NoParent is the sentinel parent index used by the root node.
const NoParent = -1

// Node is one entry in the arena: a file or a directory, addressed by its
// own index into Tree.nodes. Children are directory-only; Children is nil
// for files.
type Node struct {
	Name         string
	Extension    string
	Size         uint32
	FirstCluster uint16
	Attributes   fatfs.Attrs
	ModTime      time.Time

	Parent   int
	Children []int
}

// IsDir reports whether n represents a directory.
func (n *Node) IsDir() bool { return n.Attributes.IsDir() }

// IsPseudo reports whether n is a `.` or `..` entry.
func (n *Node) IsPseudo() bool { return n.Name == "." || n.Name == ".." }

// Tree is the arena-backed forest rooted at index 0. Index 0 always exists
// and is the root directory; it has no parent (Parent == NoParent).
type Tree struct {
	nodes []Node
}

// New creates a Tree containing only the root directory node.
func New(rootModTime time.Time) *Tree {
	root := Node{
		Attributes: 0, // directory: bit2 clear
		ModTime:    rootModTime,
		Parent:     NoParent,
	}
	return &Tree{nodes: []Node{root}}
}

// Root returns the root directory's arena index (always 0).
func (t *Tree) Root() int { return 0 }

// Node returns a pointer to the node at idx, letting callers mutate it in
// place. The returned pointer is only valid until the next Add call, which
// may grow the backing slice.
func (t *Tree) Node(idx int) *Node { return &t.nodes[idx] }

// Len returns the number of nodes currently in the arena.
func (t *Tree) Len() int { return len(t.nodes) }

// Add appends node to the arena and returns its new index. It does not wire
// up parent/child links -- callers link the new index into the parent's
// Children slice and set node.Parent themselves, since arena growth order
// has no bearing on the directory structure being built.
func (t *Tree) Add(node Node) int {
	t.nodes = append(t.nodes, node)
	return len(t.nodes) - 1
}

// Children returns the real (non-pseudo) children of the directory at idx,
// in current order.
func (t *Tree) Children(idx int) []int {
	var out []int
	for _, c := range t.nodes[idx].Children {
		if !t.nodes[c].IsPseudo() {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the index of the child of idx with the given name/extension,
// including pseudo-children, or false if none match.
func (t *Tree) Find(idx int, name, ext string) (int, bool) {
	for _, c := range t.nodes[idx].Children {
		n := &t.nodes[c]
		if n.Name == name && n.Extension == ext {
			return c, true
		}
	}
	return 0, false
}

// AddPseudoChildren attaches `.` (self) and `..` (parent) to the directory
// at idx, per spec: both inherit Hidden|ReadOnly, and `.` duplicates self
// (minus children) while `..` duplicates the parent directory's identity.
// Their Size fields are fixed at fatfs.DirentSize, the size of the on-disk
// record each represents, not a copy of the live directory's own Size.
func (t *Tree) AddPseudoChildren(idx int) {
	self := t.nodes[idx]
	pseudoAttrs := fatfs.AttrHidden | fatfs.AttrReadOnly

	dot := Node{
		Name:         ".",
		FirstCluster: self.FirstCluster,
		Size:         fatfs.DirentSize,
		Attributes:   pseudoAttrs,
		ModTime:      self.ModTime,
		Parent:       idx,
	}
	dotIdx := t.Add(dot)
	t.nodes[idx].Children = append(t.nodes[idx].Children, dotIdx)

	parentIdx := idx
	if self.Parent != NoParent {
		parentIdx = self.Parent
	}
	parent := t.nodes[parentIdx]
	dotdot := Node{
		Name:         "..",
		FirstCluster: parent.FirstCluster,
		Size:         fatfs.DirentSize,
		Attributes:   pseudoAttrs,
		ModTime:      parent.ModTime,
		Parent:       idx,
	}
	dotdotIdx := t.Add(dotdot)
	t.nodes[idx].Children = append(t.nodes[idx].Children, dotdotIdx)
}

// RecomputeSize recomputes the Size of the directory at idx as the sum of
// its real children's sizes plus 2*fatfs.DirentSize for the `.`/`..`
// records every directory carries, per spec.md §4.7.8's "size = 2 ×
// root_entry_cell_size" mkdir rule generalized to RecomputeSize's ongoing
// upkeep of that same field. It is only called on directories: a file has
// no Children, so calling it on one would set its Size to 0. It does not
// recurse: callers walk bottom-up.
func (t *Tree) RecomputeSize(idx int) {
	var total uint32
	hasPseudo := false
	for _, c := range t.nodes[idx].Children {
		n := &t.nodes[c]
		if n.IsPseudo() {
			hasPseudo = true
			continue
		}
		total += n.Size
	}
	if hasPseudo {
		total += 2 * fatfs.DirentSize
	}
	t.nodes[idx].Size = total
}

// Path renders the `/`-joined path from root down to idx, with a trailing
// slash when idx is not the root, matching pwd's rendering rule.
func (t *Tree) Path(idx int) string {
	if idx == t.Root() {
		return "/"
	}
	var names []string
	for cur := idx; cur != t.Root(); cur = t.nodes[cur].Parent {
		names = append([]string{t.nodes[cur].Name}, names...)
	}
	path := "/"
	for i, name := range names {
		if i > 0 {
			path += "/"
		}
		path += name
	}
	return path + "/"
}
