package fatfs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wsami/rodos-go/fatfs"
)

func TestBootSectorRoundTrip(t *testing.T) {
	b := fatfs.DefaultBootSector(16, 8192)

	decoded := fatfs.DecodeBootSector(b.Encode())
	assert.Equal(t, b, decoded)
}

func TestBootSectorEncodeSize(t *testing.T) {
	b := fatfs.DefaultBootSector(32, 4096)
	assert.Len(t, b.Encode(), fatfs.BootSectorSize)
}

func TestBootSectorReservedClusters(t *testing.T) {
	b := fatfs.DefaultBootSector(16, 8192)

	// fat_clusters = 2 * 8192 / 16 = 1024; root_clusters = 32*64/16 = 128
	assert.EqualValues(t, 1024, b.FatClusters())
	assert.EqualValues(t, 128, b.RootClusters())
	assert.EqualValues(t, 1+1024+128, b.ReservedClusters())
}

func TestDecodeBootSectorIsTotal(t *testing.T) {
	// Any 12 bytes decode without error, even all zero or garbage.
	assert.NotPanics(t, func() {
		fatfs.DecodeBootSector(make([]byte, fatfs.BootSectorSize))
	})
}
