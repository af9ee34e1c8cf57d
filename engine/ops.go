package engine

import (
	"time"

	"github.com/wsami/rodos-go/content"
	"github.com/wsami/rodos-go/errs"
	"github.com/wsami/rodos-go/fatfs"
	"github.com/wsami/rodos-go/store"
	"github.com/wsami/rodos-go/tree"
)

func clustersNeeded(size uint32, clusterSize uint16) int {
	if size == 0 {
		return 1
	}
	n := int(size) / int(clusterSize)
	if int(size)%int(clusterSize) != 0 {
		n++
	}
	return n
}

// syncDirectory writes dirIdx's own chain (skipped for root, which has no
// chain of its own -- its slots live in the fixed root table), then always
// performs the generic push_sync that rewrites the boot sector, FAT, and
// root table.
func (e *Engine) syncDirectory(dirIdx int) error {
	if dirIdx != e.tree.Root() {
		if err := tree.SyncToStorage(e.tree, dirIdx, e); err != nil {
			return err
		}
	}
	return e.pushSync()
}

// syncMany is syncDirectory for several directories touched in one
// operation (copy_file/defragment over a subtree), finishing with a single
// push_sync.
func (e *Engine) syncMany(dirIdxs []int) error {
	for _, idx := range dirIdxs {
		if idx == e.tree.Root() {
			continue
		}
		if err := tree.SyncToStorage(e.tree, idx, e); err != nil {
			return err
		}
	}
	return e.pushSync()
}

// createFileAt is the core of create_file, parameterized over an already-
// resolved directory index and a fully materialized payload, so copy_file
// and defragment can reuse it with bytes read from an existing chain
// instead of a content.Generator.
func (e *Engine) createFileAt(dirIdx int, name, ext string, payload []byte, attrs fatfs.Attrs, mtime time.Time) (int, error) {
	if _, exists := e.tree.Find(dirIdx, name, ext); exists {
		return 0, errs.ErrDuplicateEntry
	}
	if dirIdx == e.tree.Root() && len(e.tree.Node(dirIdx).Children) >= int(e.boot.RootEntryCount) {
		return 0, errs.ErrRootFull
	}
	needed := clustersNeeded(uint32(len(payload)), e.boot.ClusterSize)
	if e.alloc.CountFree() < needed {
		return 0, errs.ErrOutOfSpace
	}

	head, ok := e.alloc.FindFree(0)
	if !ok {
		return 0, errs.ErrOutOfSpace
	}
	if err := e.alloc.AllocChain(head, payload); err != nil {
		return 0, err
	}

	idx := e.tree.Add(tree.Node{
		Name:         name,
		Extension:    ext,
		Size:         uint32(len(payload)),
		FirstCluster: uint16(head),
		Attributes:   attrs | fatfs.AttrFile,
		ModTime:      mtime,
		Parent:       dirIdx,
	})
	e.tree.Node(dirIdx).Children = append(e.tree.Node(dirIdx).Children, idx)
	e.tree.RecomputeSize(dirIdx)
	return idx, nil
}

// CreateFile implements create_file (spec.md §4.7.1): preconditions P1-P3
// are enforced by createFileAt, in order (duplicate, root-full, out-of-
// space), before any cluster is touched.
func (e *Engine) CreateFile(name, ext string, size uint32, attrs fatfs.Attrs, mtime time.Time, kind content.Kind) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pullSync(); err != nil {
		return err
	}
	cwd, err := e.resolveCwd()
	if err != nil {
		return err
	}

	gen := content.ForKind(kind, e.cfg.Stdin, e.cfg.Temp)
	payload := gen.Next(int(size))

	if _, err := e.createFileAt(cwd, name, ext, payload, attrs, mtime); err != nil {
		return err
	}
	return e.syncDirectory(cwd)
}

// ListFiles implements list_files (spec.md §4.7.2).
func (e *Engine) ListFiles(filters []tree.Filter, sortKey tree.SortKey) ([]tree.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pullSync(); err != nil {
		return nil, err
	}
	cwd, err := e.resolveCwd()
	if err != nil {
		return nil, err
	}
	return tree.List(e.tree, cwd, filters, sortKey), nil
}

// Rename implements rename (spec.md §4.7.3).
func (e *Engine) Rename(oldName, oldExt, newName, newExt string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pullSync(); err != nil {
		return err
	}
	cwd, err := e.resolveCwd()
	if err != nil {
		return err
	}

	idx, ok := e.tree.Find(cwd, oldName, oldExt)
	if !ok {
		return errs.ErrNotFound
	}
	node := e.tree.Node(idx)
	if node.Attributes.IsReadOnly() {
		return errs.ErrReadOnly
	}
	if (oldExt == "") != (newExt == "") {
		return errs.ErrKindMismatch
	}
	if _, exists := e.tree.Find(cwd, newName, newExt); exists {
		return errs.ErrDuplicateEntry
	}

	node.Name = newName
	node.Extension = newExt
	node.ModTime = e.cfg.Now()

	return e.syncDirectory(cwd)
}

func (e *Engine) removeChild(parentIdx, childIdx int) {
	parent := e.tree.Node(parentIdx)
	out := parent.Children[:0]
	for _, c := range parent.Children {
		if c != childIdx {
			out = append(out, c)
		}
	}
	parent.Children = out
}

func (e *Engine) deleteChildrenRecursive(dirIdx int) {
	for _, c := range append([]int{}, e.tree.Node(dirIdx).Children...) {
		child := e.tree.Node(c)
		if child.IsPseudo() {
			continue
		}
		if child.Attributes.IsDir() {
			e.deleteChildrenRecursive(c)
		}
		e.alloc.FreeChain(int(child.FirstCluster))
		e.removeChild(dirIdx, c)
	}
}

// Delete implements delete (spec.md §4.7.4).
func (e *Engine) Delete(name, ext string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pullSync(); err != nil {
		return err
	}
	cwd, err := e.resolveCwd()
	if err != nil {
		return err
	}

	idx, ok := e.tree.Find(cwd, name, ext)
	if !ok {
		return errs.ErrNotFound
	}
	node := e.tree.Node(idx)
	if node.Attributes.IsReadOnly() {
		return errs.ErrReadOnly
	}

	if node.Attributes.IsDir() {
		e.deleteChildrenRecursive(idx)
	}
	e.alloc.FreeChain(int(node.FirstCluster))
	e.removeChild(cwd, idx)

	return e.syncDirectory(cwd)
}

// Cat implements cat (spec.md §4.7.5).
func (e *Engine) Cat(name, ext string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pullSync(); err != nil {
		return "", err
	}
	cwd, err := e.resolveCwd()
	if err != nil {
		return "", err
	}

	idx, ok := e.tree.Find(cwd, name, ext)
	if !ok {
		return "", errs.ErrNotFound
	}
	node := e.tree.Node(idx)
	if node.Attributes.IsDir() {
		return "", errs.ErrKindMismatch
	}

	chain := e.alloc.WalkChain(int(node.FirstCluster))
	var raw []byte
	for _, c := range chain {
		raw = append(raw, e.clusters.Cluster(uint16(c))...)
	}
	size := int(node.Size)
	if size > len(raw) {
		size = len(raw)
	}
	return string(raw[:size]), nil
}

// copyForest materializes srcDirIdx's real children (files and
// directories, depth-first) under dstDirIdx, in possibly a different
// engine -- src == dst for copy_file's directory branch, src != dst for
// defragment's scratch-engine rebuild. dirty accumulates every directory
// index in dst whose chain needs rewriting once the walk completes.
func copyForest(src, dst *Engine, srcDirIdx, dstDirIdx int, dirty *[]int) error {
	for _, c := range src.tree.Children(srcDirIdx) {
		child := src.tree.Node(c)
		if child.Attributes.IsFile() {
			chain := src.alloc.WalkChain(int(child.FirstCluster))
			var raw []byte
			for _, cl := range chain {
				raw = append(raw, src.clusters.Cluster(uint16(cl))...)
			}
			if _, err := dst.createFileAt(dstDirIdx, child.Name, child.Extension, raw[:child.Size], child.Attributes, child.ModTime); err != nil {
				return err
			}
			continue
		}

		newIdx, err := dst.mkdirAt(dstDirIdx, child.Name, child.Attributes, child.ModTime)
		if err != nil {
			return err
		}
		if err := copyForest(src, dst, c, newIdx, dirty); err != nil {
			return err
		}
		*dirty = append(*dirty, newIdx)
	}
	return nil
}

// CopyFile implements copy_file (spec.md §4.7.6).
func (e *Engine) CopyFile(srcName, srcExt, destName, destExt string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pullSync(); err != nil {
		return err
	}
	cwd, err := e.resolveCwd()
	if err != nil {
		return err
	}

	srcIdx, ok := e.tree.Find(cwd, srcName, srcExt)
	if !ok {
		return errs.ErrNotFound
	}
	if _, exists := e.tree.Find(cwd, destName, destExt); exists {
		return errs.ErrDuplicateEntry
	}

	src := e.tree.Node(srcIdx)
	if src.Attributes.IsFile() {
		chain := e.alloc.WalkChain(int(src.FirstCluster))
		var raw []byte
		for _, c := range chain {
			raw = append(raw, e.clusters.Cluster(uint16(c))...)
		}
		if _, err := e.createFileAt(cwd, destName, destExt, raw[:src.Size], src.Attributes, e.cfg.Now()); err != nil {
			return err
		}
		return e.syncDirectory(cwd)
	}

	destIdx, err := e.mkdirAt(cwd, destName, src.Attributes, e.cfg.Now())
	if err != nil {
		return err
	}

	dirty := []int{destIdx}
	if err := copyForest(e, e, srcIdx, destIdx, &dirty); err != nil {
		return err
	}
	dirty = append(dirty, cwd)
	return e.syncMany(dirty)
}

// SetAttributes implements set_attributes (spec.md §4.7.7).
func (e *Engine) SetAttributes(name, ext string, tokens []fatfs.AttrToken) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pullSync(); err != nil {
		return err
	}
	cwd, err := e.resolveCwd()
	if err != nil {
		return err
	}

	idx, ok := e.tree.Find(cwd, name, ext)
	if !ok {
		return errs.ErrNotFound
	}
	node := e.tree.Node(idx)
	attrs := node.Attributes
	for _, tok := range tokens {
		attrs = tok.Apply(attrs)
	}
	node.Attributes = attrs
	node.ModTime = e.cfg.Now()

	return e.syncDirectory(cwd)
}

// mkdirAt is the core of mkdir, parameterized over an already-resolved
// parent directory index so copy_file/defragment can reuse it.
func (e *Engine) mkdirAt(dirIdx int, name string, attrs fatfs.Attrs, mtime time.Time) (int, error) {
	if _, exists := e.tree.Find(dirIdx, name, ""); exists {
		return 0, errs.ErrDuplicateEntry
	}
	if dirIdx == e.tree.Root() && len(e.tree.Node(dirIdx).Children) >= int(e.boot.RootEntryCount) {
		return 0, errs.ErrRootFull
	}

	placeholderSize := 2 * uint32(e.boot.RootEntryCellSize)
	needed := clustersNeeded(placeholderSize, e.boot.ClusterSize)
	if e.alloc.CountFree() < needed {
		return 0, errs.ErrOutOfSpace
	}

	head, ok := e.alloc.FindFree(0)
	if !ok {
		return 0, errs.ErrOutOfSpace
	}
	if err := e.alloc.AllocChain(head, make([]byte, placeholderSize)); err != nil {
		return 0, err
	}

	idx := e.tree.Add(tree.Node{
		Name:         name,
		Attributes:   attrs &^ fatfs.AttrFile,
		FirstCluster: uint16(head),
		ModTime:      mtime,
		Parent:       dirIdx,
	})
	e.tree.Node(dirIdx).Children = append(e.tree.Node(dirIdx).Children, idx)
	e.tree.AddPseudoChildren(idx)
	e.tree.RecomputeSize(idx)
	e.tree.RecomputeSize(dirIdx)
	return idx, nil
}

// Mkdir implements mkdir (spec.md §4.7.8).
func (e *Engine) Mkdir(name string, attrs fatfs.Attrs, mtime time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pullSync(); err != nil {
		return err
	}
	cwd, err := e.resolveCwd()
	if err != nil {
		return err
	}

	idx, err := e.mkdirAt(cwd, name, attrs, mtime)
	if err != nil {
		return err
	}
	if err := tree.SyncToStorage(e.tree, idx, e); err != nil {
		return err
	}
	return e.syncDirectory(cwd)
}

// Cd implements cd (spec.md §4.7.11).
func (e *Engine) Cd(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pullSync(); err != nil {
		return err
	}

	if name == "/" {
		e.cwdPath = "/"
		return nil
	}

	cwd, err := e.resolveCwd()
	if err != nil {
		return err
	}
	if name == "." {
		return nil
	}
	if name == ".." {
		if cwd == e.tree.Root() {
			return errs.ErrInvalidInput.WithMessage("already at root")
		}
		e.cwdPath = e.tree.Path(e.tree.Node(cwd).Parent)
		return nil
	}

	idx, ok := e.tree.Find(cwd, name, "")
	if !ok || !e.tree.Node(idx).IsDir() {
		return errs.ErrNotFound
	}
	e.cwdPath = e.tree.Path(idx)
	return nil
}

// Pwd implements pwd (spec.md §4.7.11).
func (e *Engine) Pwd() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pullSync(); err != nil {
		return "", err
	}
	if _, err := e.resolveCwd(); err != nil {
		return "", err
	}
	return e.cwdPath, nil
}

// Fmt implements fmt (spec.md §4.7.10). This is destructive by design
// (Open Question #1, resolved as "flagged, not silently fixed"): it
// rebuilds geometry only and does not migrate any existing content.
func (e *Engine) Fmt(newClusterSize uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pullSync(); err != nil {
		return err
	}

	totalSize := uint32(e.boot.ClusterSize) * uint32(e.boot.ClusterCount)
	newClusterCount := uint16(totalSize / uint32(newClusterSize))

	e.clusters = store.New(newClusterSize, newClusterCount, e.cfg.Backend)
	e.cwdPath = "/"
	return e.formatFresh(newClusterSize, newClusterCount)
}

// Defragment implements defragment (spec.md §4.7.10): builds a scratch
// engine with identical geometry over an in-memory backend, walks the
// current root depth-first recreating every file/directory into it, then
// replaces this engine's cluster grid with the scratch engine's.
func (e *Engine) Defragment() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pullSync(); err != nil {
		return err
	}

	scratch := &Engine{
		cfg:      e.cfg,
		clusters: store.New(e.boot.ClusterSize, e.boot.ClusterCount, &store.MemBackend{}),
		cwdPath:  "/",
	}
	if err := scratch.formatFresh(e.boot.ClusterSize, e.boot.ClusterCount); err != nil {
		return err
	}

	var dirty []int
	if err := copyForest(e, scratch, e.tree.Root(), scratch.tree.Root(), &dirty); err != nil {
		return err
	}
	if err := scratch.syncMany(dirty); err != nil {
		return err
	}

	for i := uint16(0); i < e.boot.ClusterCount; i++ {
		e.clusters.SetCluster(i, scratch.clusters.Cluster(i))
	}
	e.boot = scratch.boot
	e.fat = scratch.fat
	e.alloc = store.NewAllocator(e.fat, e.clusters)
	e.tree = scratch.tree
	e.cwdPath = "/"

	return e.pushSync()
}

// FSStat is the supplemental total/free query spec.md's distillation
// dropped but original_source/ (disk_manager.rs's get_free_space/
// get_total_space) carried.
type FSStat struct {
	ClusterSize   uint16
	TotalClusters uint16
	FreeClusters  int
	TotalBytes    uint32
	FreeBytes     uint32
}

// FSStat implements the supplemental FSStat() query.
func (e *Engine) FSStat() (FSStat, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pullSync(); err != nil {
		return FSStat{}, err
	}
	free := e.alloc.CountFree()
	return FSStat{
		ClusterSize:   e.boot.ClusterSize,
		TotalClusters: e.boot.ClusterCount,
		FreeClusters:  free,
		TotalBytes:    uint32(e.boot.ClusterSize) * uint32(e.boot.ClusterCount),
		FreeBytes:     uint32(e.boot.ClusterSize) * uint32(free),
	}, nil
}

// Exists implements the supplemental Exists(name, ext) probe.
func (e *Engine) Exists(name, ext string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pullSync(); err != nil {
		return false, err
	}
	cwd, err := e.resolveCwd()
	if err != nil {
		return false, err
	}
	_, ok := e.tree.Find(cwd, name, ext)
	return ok, nil
}
