package tree

import "sort"

// FilterKind is a listing filter token from spec.md §6.3.
type FilterKind int

const (
	// FilterAll excludes hidden entries. This is the default.
	FilterAll FilterKind = iota
	FilterAllAndHidden
	FilterInShortFormat
	FilterInLongFormat
	FilterFiles
	FilterDirectories
	// FilterName restricts the listing to entries whose Name is in Values.
	FilterName
	// FilterExtension restricts the listing to entries whose Extension is
	// in Values.
	FilterExtension
)

// Filter is one listing filter: a token plus, for FilterName/
// FilterExtension, the set of values to match against. Filter is a struct
// rather than a bare enum constant so Name/Extension carry their
// argument, per spec.md §6.3's Name(s)/Extension(s) tokens.
type Filter struct {
	Kind   FilterKind
	Values []string
}

// ByName returns a Filter restricting the listing to entries named one of
// names.
func ByName(names ...string) Filter { return Filter{Kind: FilterName, Values: names} }

// ByExtension returns a Filter restricting the listing to entries whose
// extension is one of exts.
func ByExtension(exts ...string) Filter { return Filter{Kind: FilterExtension, Values: exts} }

// SortKey is a listing sort token from spec.md §6.3.
type SortKey int

const (
	SortNameAsc SortKey = iota
	SortNameDesc
	SortDateAsc
	SortDateDesc
	SortSizeAsc
	SortSizeDesc
)

// List returns the directory at idx's children filtered and sorted per
// spec.md §6.3. Pseudo-entries (`.`/`..`) are always excluded, matching
// list_files's "filtered out of user-visible listings" rule; empty slots
// never enter the arena to begin with, so nothing further excludes them
// here.
func List(t *Tree, idx int, filters []Filter, sortKey SortKey) []Node {
	includeHidden := false
	onlyFiles := false
	onlyDirs := false
	var names, exts []string
	for _, f := range filters {
		switch f.Kind {
		case FilterAllAndHidden:
			includeHidden = true
		case FilterFiles:
			onlyFiles = true
		case FilterDirectories:
			onlyDirs = true
		case FilterName:
			names = append(names, f.Values...)
		case FilterExtension:
			exts = append(exts, f.Values...)
		}
	}

	var out []Node
	for _, c := range t.nodes[idx].Children {
		n := t.nodes[c]
		if n.IsPseudo() {
			continue
		}
		if !includeHidden && n.Attributes.IsHidden() {
			continue
		}
		if onlyFiles && !n.Attributes.IsFile() {
			continue
		}
		if onlyDirs && !n.Attributes.IsDir() {
			continue
		}
		if len(names) > 0 && !contains(names, n.Name) {
			continue
		}
		if len(exts) > 0 && !contains(exts, n.Extension) {
			continue
		}
		out = append(out, n)
	}

	sortNodes(out, sortKey)
	return out
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

func sortNodes(nodes []Node, key SortKey) {
	less := func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		switch key {
		case SortNameDesc:
			return a.Name > b.Name
		case SortDateAsc:
			return a.ModTime.Before(b.ModTime)
		case SortDateDesc:
			return a.ModTime.After(b.ModTime)
		case SortSizeAsc:
			return a.Size < b.Size
		case SortSizeDesc:
			return a.Size > b.Size
		default: // SortNameAsc and any malformed token per spec's default rule
			return a.Name < b.Name
		}
	}
	sort.SliceStable(nodes, less)
}
