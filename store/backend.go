// Package store owns the cluster-addressed byte grid that mirrors the
// storage image (ClusterStore) and the first-fit allocator that manages
// chains of clusters within it (Allocator).
package store

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/wsami/rodos-go/errs"
	"github.com/xaionaro-go/bytesextra"
)

// Backend is the storage underneath a ClusterStore: something that can load
// and store the whole cluster grid as a single contiguous byte stream. The
// two implementations below cover the real storage file (FileBackend) and
// the purely in-memory image used by defragment's scratch engine and by
// tests (MemBackend).
type Backend interface {
	// Load reads exactly clusterSize*clusterCount bytes and splits them into
	// clusterCount clusters of clusterSize bytes each. If the backing
	// storage doesn't exist yet, Load returns an error satisfying
	// errors.Is(err, os.ErrNotExist); the caller treats this as an empty
	// image to be initialized, per the spec's ClusterStore.load() contract.
	Load(clusterSize, clusterCount uint16) ([][]byte, error)

	// Store writes the given clusters out, in order, truncating the backing
	// storage to their exact combined length.
	Store(clusters [][]byte) error
}

func splitClusters(data []byte, clusterSize uint16) [][]byte {
	count := len(data) / int(clusterSize)
	out := make([][]byte, count)
	for i := range out {
		out[i] = data[i*int(clusterSize) : (i+1)*int(clusterSize)]
	}
	return out
}

func joinClusters(clusters [][]byte) []byte {
	if len(clusters) == 0 {
		return nil
	}
	flat := make([]byte, 0, len(clusters)*len(clusters[0]))
	for _, c := range clusters {
		flat = append(flat, c...)
	}
	return flat
}

// FileBackend stores the cluster grid in a single flat file at Path, opened
// and closed anew for each Load/Store call, per the spec's resource
// discipline that the storage file is scoped to each sync call.
type FileBackend struct {
	Path string
}

// Load implements Backend.
func (f FileBackend) Load(clusterSize, clusterCount uint16) ([][]byte, error) {
	file, err := os.Open(f.Path)
	if os.IsNotExist(err) {
		return nil, err
	}
	if err != nil {
		return nil, errs.ErrIOFailed.Wrap(err)
	}
	defer file.Close()

	total := int(clusterSize) * int(clusterCount)
	data := make([]byte, total)
	n, err := io.ReadFull(file, data)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return nil, errs.ErrCorruptImage.WithMessage(
			shortReadMessage(n, total))
	}
	if err != nil {
		return nil, errs.ErrIOFailed.Wrap(err)
	}
	return splitClusters(data, clusterSize), nil
}

// Store implements Backend. If both the write and the subsequent close fail,
// both causes are preserved via a multierror instead of one silently
// shadowing the other.
func (f FileBackend) Store(clusters [][]byte) error {
	file, err := os.OpenFile(f.Path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.ErrIOFailed.Wrap(err)
	}

	var writeErr error
	for _, cluster := range clusters {
		if _, writeErr = file.Write(cluster); writeErr != nil {
			break
		}
	}
	closeErr := file.Close()

	switch {
	case writeErr != nil && closeErr != nil:
		combined := multierror.Append(writeErr, closeErr)
		return errs.ErrIOFailed.Wrap(combined)
	case writeErr != nil:
		return errs.ErrIOFailed.Wrap(writeErr)
	case closeErr != nil:
		return errs.ErrIOFailed.Wrap(closeErr)
	default:
		return nil
	}
}

// MemBackend is a purely in-memory Backend, backed by a byte slice wrapped
// with bytesextra.NewReadWriteSeeker so it presents the same
// io.ReadWriteSeeker surface a real file would, without touching disk. It is
// used for defragment's scratch engine and in unit tests.
type MemBackend struct {
	data []byte
	set  bool
}

// Load implements Backend.
func (m *MemBackend) Load(clusterSize, clusterCount uint16) ([][]byte, error) {
	if !m.set {
		return nil, os.ErrNotExist
	}

	total := int(clusterSize) * int(clusterCount)
	stream := bytesextra.NewReadWriteSeeker(m.data)
	data := make([]byte, total)
	n, err := io.ReadFull(stream, data)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return nil, errs.ErrCorruptImage.WithMessage(shortReadMessage(n, total))
	}
	if err != nil {
		return nil, errs.ErrIOFailed.Wrap(err)
	}
	return splitClusters(data, clusterSize), nil
}

// Store implements Backend.
func (m *MemBackend) Store(clusters [][]byte) error {
	flat := joinClusters(clusters)
	buf := make([]byte, len(flat))
	stream := bytesextra.NewReadWriteSeeker(buf)
	if _, err := stream.Write(flat); err != nil {
		return errs.ErrIOFailed.Wrap(err)
	}
	m.data = buf
	m.set = true
	return nil
}

func shortReadMessage(got, want int) string {
	return fmt.Sprintf("short read: got %d of %d bytes", got, want)
}
