// Package testutil holds fixture builders shared across this module's test
// files, in the same spirit as the teacher's own testing package: helpers
// that either return a usable value or fail the test outright, so call
// sites never need their own error handling.
package testutil

import (
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wsami/rodos-go/engine"
	"github.com/wsami/rodos-go/store"
)

// RandomBytes returns n cryptographically random bytes, failing the test if
// the source is exhausted early.
func RandomBytes(t *testing.T, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	require.NoErrorf(t, err, "failed to generate %d random bytes", n)
	return buf
}

// NewMemEngine constructs an Engine over a fresh MemBackend with the given
// geometry, failing the test on any construction error. It is the in-memory
// equivalent of pointing an Engine at a real disk image file.
func NewMemEngine(t *testing.T, clusterSize, clusterCount uint16) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.Config{
		ClusterSize:  clusterSize,
		ClusterCount: clusterCount,
		Backend:      &store.MemBackend{},
	})
	require.NoError(t, err)
	return e
}

// NewFileEngine constructs an Engine backed by a real file under t.TempDir(),
// for tests that need to exercise FileBackend's open/close-per-sync
// discipline instead of MemBackend's in-process shortcut.
func NewFileEngine(t *testing.T, clusterSize, clusterCount uint16) (*engine.Engine, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.disk")
	e, err := engine.New(engine.Config{
		ClusterSize:  clusterSize,
		ClusterCount: clusterCount,
		Backend:      store.FileBackend{Path: path},
	})
	require.NoError(t, err)
	return e, path
}
