// Package engine implements FsEngine: the public create/list/rename/
// delete/copy/cat/setattr/mkdir/cd/pwd/fmt/defrag operations, orchestrating
// fatfs's codecs, store's cluster grid and allocator, and tree's arena-based
// directory forest. Every mutating operation pulls the image, mutates the
// in-memory state, then pushes the result back in one pass -- there is no
// partial persistence and no journaling, matching the whole-image-rewrite
// persistence model the storage layer implements.
package engine

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/wsami/rodos-go/errs"
	"github.com/wsami/rodos-go/fatfs"
	"github.com/wsami/rodos-go/store"
	"github.com/wsami/rodos-go/tree"
)

// Config supplies everything an Engine needs that would otherwise be global
// state: geometry, the storage backend, and the readers the
// content.KindStdin/KindTemp generators draw from. Constructed once per engine instance, never
// read from package-level state.
type Config struct {
	ClusterSize  uint16
	ClusterCount uint16
	Backend      store.Backend

	// Stdin and Temp back the content.KindStdin/KindTemp generators.
	Stdin io.Reader
	Temp  io.Reader

	// Now returns the current time for operations that don't take an
	// explicit mtime argument (rename, set_attributes, copy_file). Defaults
	// to time.Now.
	Now func() time.Time
}

func (c *Config) setDefaults() {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Stdin == nil {
		c.Stdin = emptyReader{}
	}
	if c.Temp == nil {
		c.Temp = emptyReader{}
	}
}

// emptyReader is an always-EOF io.Reader, used so Stdin/Temp are
// never nil even when the caller doesn't wire real ones in.
type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, io.EOF }

// Engine is FsEngine wrapped in an exclusive lock, mu. Every public
// operation (CreateFile, ListFiles, Cat, ..., FSStat, Exists) acquires mu
// for its whole duration, per spec.md §5's single-request-in-flight
// concurrency model. The ChainReader/ChainWriter adapter methods below do
// not lock; they are called from inside those operations.
type Engine struct {
	mu sync.Mutex

	cfg Config

	boot     fatfs.BootSector
	fat      []fatfs.FatCell
	clusters *store.ClusterStore
	alloc    *store.Allocator
	tree     *tree.Tree

	// cwdPath is the root-relative path of the working directory, per
	// spec.md §9's "keep an arena index or a root-relative path" guidance:
	// a path survives pull_sync rebuilding the arena from scratch, where a
	// raw index would not.
	cwdPath string
}

// New constructs an Engine and performs its initial pull_sync: if the
// backend has no image yet, a fresh one is formatted with cfg's geometry
// and immediately persisted; otherwise the existing image is decoded.
func New(cfg Config) (*Engine, error) {
	cfg.setDefaults()
	e := &Engine{
		cfg:      cfg,
		clusters: store.New(cfg.ClusterSize, cfg.ClusterCount, cfg.Backend),
		cwdPath:  "/",
	}
	if err := e.pullSync(); err != nil {
		return nil, err
	}
	return e, nil
}

// ChainReader/ChainWriter implementation, so tree.PullDirectory/SyncToStorage
// can operate directly against the engine's allocator and cluster store.

func (e *Engine) WalkChain(head int) []int      { return e.alloc.WalkChain(head) }
func (e *Engine) Cluster(idx uint16) []byte     { return e.clusters.Cluster(idx) }
func (e *Engine) FreeChain(head int)            { e.alloc.FreeChain(head) }
func (e *Engine) FindFree(start int) (int, bool) { return e.alloc.FindFree(start) }

func (e *Engine) AllocChain(head int, payload []byte) error {
	return e.alloc.AllocChain(head, payload)
}

// pullSync reads C4 from the backend, decodes C1/C2, then rebuilds C6 by
// chasing chains via C5 and decoding C3, per spec.md §2's control-flow
// description. A blank image (no boot sector ever written) is detected by
// ClusterSize decoding to zero, and is treated as "format fresh, then
// persist" rather than an error.
func (e *Engine) pullSync() error {
	if err := e.clusters.Load(); err != nil {
		return err
	}

	e.boot = fatfs.DecodeBootSector(e.clusters.Cluster(0))
	if e.boot.ClusterSize == 0 {
		return e.formatFresh(e.cfg.ClusterSize, e.cfg.ClusterCount)
	}

	fatClusters := make([][]byte, e.boot.FatClusters())
	for i := range fatClusters {
		fatClusters[i] = e.clusters.Cluster(e.boot.ClustersPerBootSector + uint16(i))
	}
	e.fat = fatfs.DecodeTable(fatClusters, int(e.boot.ClusterCount))
	e.alloc = store.NewAllocator(e.fat, e.clusters)

	rootStart := e.boot.ClustersPerBootSector + e.boot.FatClusters()
	var rootBytes []byte
	for i := uint16(0); i < e.boot.RootClusters(); i++ {
		rootBytes = append(rootBytes, e.clusters.Cluster(rootStart+i)...)
	}

	e.tree = tree.New(e.cfg.Now())
	if err := tree.PullRoot(e.tree, rootBytes, e, int(e.boot.RootEntryCellSize)); err != nil {
		return err
	}
	return nil
}

// formatFresh initializes a brand-new image with the given geometry: a
// default boot sector, an all-Free FAT with its reserved prefix marked
// Reserved, and an empty root table. It then performs one push_sync so the
// freshly formatted image is immediately reflected in storage.
func (e *Engine) formatFresh(clusterSize, clusterCount uint16) error {
	e.boot = fatfs.DefaultBootSector(clusterSize, clusterCount)
	e.fat = make([]fatfs.FatCell, clusterCount)
	for i := uint16(0); i < e.boot.ReservedClusters(); i++ {
		e.fat[i] = fatfs.CellReserved
	}
	e.alloc = store.NewAllocator(e.fat, e.clusters)
	e.tree = tree.New(e.cfg.Now())
	return e.pushSync()
}

// pushSync serializes C1/C2/C6 into C4, then writes C4 to the backend, per
// spec.md §2. Individual operations are responsible for calling
// tree.SyncToStorage on whichever non-root directory they mutated before
// calling pushSync -- pushSync itself only rewrites the boot sector, the
// FAT, and the fixed root table, which is all that invariant 5 requires
// after any successful mutation.
func (e *Engine) pushSync() error {
	bootBytes := e.boot.Encode()
	padded := make([]byte, e.boot.ClusterSize)
	copy(padded, bootBytes)
	e.clusters.SetCluster(0, padded)

	fatClusters := fatfs.EncodeTable(e.fat, e.boot.ClusterSize)
	for i, c := range fatClusters {
		e.clusters.SetCluster(e.boot.ClustersPerBootSector+uint16(i), c)
	}

	rootBytes := tree.Serialize(e.tree, e.tree.Root())
	rootCapacity := int(e.boot.RootEntryCount) * int(e.boot.RootEntryCellSize)
	if len(rootBytes) > rootCapacity {
		return errs.ErrRootFull
	}
	paddedRoot := make([]byte, rootCapacity)
	copy(paddedRoot, rootBytes)

	rootStart := e.boot.ClustersPerBootSector + e.boot.FatClusters()
	for i := uint16(0); i < e.boot.RootClusters(); i++ {
		start := int(i) * int(e.boot.ClusterSize)
		end := start + int(e.boot.ClusterSize)
		e.clusters.SetCluster(rootStart+i, paddedRoot[start:end])
	}

	return e.clusters.Store()
}

// resolveCwd re-derives the working directory's arena index from cwdPath
// against the just-rebuilt tree. A raw index would dangle across a
// pull_sync rebuild; a path survives it.
func (e *Engine) resolveCwd() (int, error) {
	if e.cwdPath == "/" {
		return e.tree.Root(), nil
	}

	idx := e.tree.Root()
	for _, seg := range strings.Split(strings.Trim(e.cwdPath, "/"), "/") {
		next, ok := e.tree.Find(idx, seg, "")
		if !ok || !e.tree.Node(next).IsDir() {
			return 0, errs.ErrCorruptImage.WithMessage(
				"working directory no longer exists: " + e.cwdPath)
		}
		idx = next
	}
	return idx, nil
}
