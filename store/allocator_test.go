package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wsami/rodos-go/fatfs"
	"github.com/wsami/rodos-go/store"
)

func freshFat(reserved, total int) []fatfs.FatCell {
	fat := make([]fatfs.FatCell, total)
	for i := 0; i < reserved; i++ {
		fat[i] = fatfs.CellReserved
	}
	return fat
}

func TestFindFreeReturnsLowestFreeIndex(t *testing.T) {
	fat := freshFat(3, 10)
	alloc := store.NewAllocator(fat, store.New(16, 10, &store.MemBackend{}))

	idx, ok := alloc.FindFree(0)
	require.True(t, ok)
	assert.Equal(t, 3, idx)
}

func TestAllocChainSingleCluster(t *testing.T) {
	fat := freshFat(3, 10)
	cs := store.New(16, 10, &store.MemBackend{})
	alloc := store.NewAllocator(fat, cs)

	head, ok := alloc.FindFree(0)
	require.True(t, ok)
	require.NoError(t, alloc.AllocChain(head, []byte("ABC")))

	assert.Equal(t, fatfs.CellEndOfChain, fat[head])
	want := make([]byte, 16)
	copy(want, "ABC")
	assert.Equal(t, want, cs.Cluster(uint16(head)))
}

func TestAllocChainMultiClusterIsContiguousAndMonotonic(t *testing.T) {
	fat := freshFat(3, 10)
	cs := store.New(16, 10, &store.MemBackend{})
	alloc := store.NewAllocator(fat, cs)

	payload := make([]byte, 40) // ceil(40/16) = 3 clusters
	for i := range payload {
		payload[i] = byte('0' + i%10)
	}

	head, ok := alloc.FindFree(0)
	require.True(t, ok)
	require.NoError(t, alloc.AllocChain(head, payload))

	chain := alloc.WalkChain(head)
	assert.Len(t, chain, 3)
	for i := 1; i < len(chain); i++ {
		assert.Greater(t, chain[i], chain[i-1])
	}
	assert.Equal(t, fatfs.CellEndOfChain, fat[chain[2]])
}

func TestAllocChainRollsBackOnOutOfSpace(t *testing.T) {
	// Only 2 free cells remain but the payload needs 3 clusters.
	fat := freshFat(8, 10)
	cs := store.New(16, 10, &store.MemBackend{})
	alloc := store.NewAllocator(fat, cs)

	head, ok := alloc.FindFree(0)
	require.True(t, ok)

	err := alloc.AllocChain(head, make([]byte, 40))
	assert.Error(t, err)

	// Everything touched by the failed call must be rolled back to Free.
	for i := 8; i < 10; i++ {
		assert.Equal(t, fatfs.CellFree, fat[i])
		assert.Equal(t, make([]byte, 16), cs.Cluster(uint16(i)))
	}
}

func TestFreeChainFreesAllClustersIncludingEOC(t *testing.T) {
	fat := freshFat(3, 10)
	cs := store.New(16, 10, &store.MemBackend{})
	alloc := store.NewAllocator(fat, cs)

	head, ok := alloc.FindFree(0)
	require.True(t, ok)
	require.NoError(t, alloc.AllocChain(head, make([]byte, 40)))

	chain := alloc.WalkChain(head)
	alloc.FreeChain(head)

	for _, idx := range chain {
		assert.Equal(t, fatfs.CellFree, fat[idx])
		assert.Equal(t, make([]byte, 16), cs.Cluster(uint16(idx)))
	}
}

func TestCountFree(t *testing.T) {
	fat := freshFat(3, 10)
	alloc := store.NewAllocator(fat, store.New(16, 10, &store.MemBackend{}))
	assert.Equal(t, 7, alloc.CountFree())
}
