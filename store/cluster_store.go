package store

import "os"

// ClusterStore owns the 2-D cluster buffer mirrored by the storage backend.
// It has no notion of what a cluster's bytes mean -- that's the job of
// fatfs's codecs and the tree package's directory reconstruction.
type ClusterStore struct {
	clusterSize  uint16
	clusterCount uint16
	clusters     [][]byte
	backend      Backend
}

// New creates a ClusterStore of the given geometry, backed by backend. The
// grid starts out blank; call Load to populate it from existing storage.
func New(clusterSize, clusterCount uint16, backend Backend) *ClusterStore {
	cs := &ClusterStore{
		clusterSize:  clusterSize,
		clusterCount: clusterCount,
		backend:      backend,
	}
	cs.initBlank()
	return cs
}

func (cs *ClusterStore) initBlank() {
	cs.clusters = make([][]byte, cs.clusterCount)
	for i := range cs.clusters {
		cs.clusters[i] = make([]byte, cs.clusterSize)
	}
}

// ClusterSize returns the number of bytes per cluster.
func (cs *ClusterStore) ClusterSize() uint16 { return cs.clusterSize }

// ClusterCount returns the total number of clusters in the grid.
func (cs *ClusterStore) ClusterCount() uint16 { return cs.clusterCount }

// Cluster returns a read-only view of the idx'th cluster's bytes.
func (cs *ClusterStore) Cluster(idx uint16) []byte {
	return cs.clusters[idx]
}

// SetCluster overwrites the idx'th cluster's bytes with data. Data shorter
// than ClusterSize() is zero-padded, per the spec's zero-padding rule for
// partially filled clusters; bytes beyond ClusterSize() are dropped.
func (cs *ClusterStore) SetCluster(idx uint16, data []byte) {
	dst := cs.clusters[idx]
	n := copy(dst, data)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// Load reads the whole image from the backend. A missing backend is treated
// as an empty image: the grid is reset to all-zero clusters so the caller
// can initialize it fresh, matching the spec's "missing file => treat as
// empty" failure mode.
func (cs *ClusterStore) Load() error {
	clusters, err := cs.backend.Load(cs.clusterSize, cs.clusterCount)
	if os.IsNotExist(err) {
		cs.initBlank()
		return nil
	}
	if err != nil {
		return err
	}
	cs.clusters = clusters
	return nil
}

// Store writes the whole grid back to the backend. Persistence here is a
// whole-image rewrite, not a transactional or incremental update -- this
// engine makes no crash-safety guarantees, by design (see Non-goals).
func (cs *ClusterStore) Store() error {
	return cs.backend.Store(cs.clusters)
}
