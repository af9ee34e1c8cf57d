// Package fatfs implements the on-disk codecs for the boot sector, the FAT
// allocation table, and directory entries of a FAT-style single-disk image.
//
// Every value in this package is big-endian, and every decode function is
// total: it never fails to produce a value from well-sized input. Semantic
// validation (e.g. that cluster_size divides evenly, or that a FatCell value
// is in range) is the caller's responsibility.
package fatfs

import (
	"bytes"
	"encoding/binary"

	"github.com/noxer/bytewriter"
)

// BootSectorSize is the size, in bytes, of the fixed header at the start of
// the boot sector. The remainder of the boot sector's cluster is padding.
const BootSectorSize = 12

// BootSector is the fixed geometry record stored at the start of cluster 0.
type BootSector struct {
	// ClusterSize is the number of bytes per cluster.
	ClusterSize uint16
	// ClusterCount is the total number of clusters in the image.
	ClusterCount uint16
	// RootEntryCellSize is the size, in bytes, of a single directory record (32).
	RootEntryCellSize uint16
	// RootEntryCount is the fixed capacity of the root directory table.
	RootEntryCount uint16
	// FatCellSize is the number of bytes per FAT word (2).
	FatCellSize uint16
	// ClustersPerBootSector is always 1.
	ClustersPerBootSector uint16
}

// DefaultBootSector returns the boot sector used for a freshly formatted
// image with the given geometry; the remaining fields take their spec-
// mandated defaults.
func DefaultBootSector(clusterSize, clusterCount uint16) BootSector {
	return BootSector{
		ClusterSize:           clusterSize,
		ClusterCount:          clusterCount,
		RootEntryCellSize:     DirentSize,
		RootEntryCount:        64,
		FatCellSize:           2,
		ClustersPerBootSector: 1,
	}
}

// Encode serializes the boot sector's six fields, in declared order,
// big-endian. The caller is responsible for padding the result out to one
// full cluster.
func (b BootSector) Encode() []byte {
	buf := make([]byte, BootSectorSize)
	// All fields are fixed-width uint16 in declared order, so a single
	// binary.Write over the struct produces the exact on-disk layout.
	_ = binary.Write(bytewriter.New(buf), binary.BigEndian, &b)
	return buf
}

// DecodeBootSector reads the first BootSectorSize bytes of data and returns
// a BootSector. Deserialization is total: any 12 bytes yield a value.
func DecodeBootSector(data []byte) BootSector {
	var b BootSector
	_ = binary.Read(bytes.NewReader(data[:BootSectorSize]), binary.BigEndian, &b)
	return b
}

// FatClusters returns the number of clusters occupied by the FAT region.
func (b BootSector) FatClusters() uint16 {
	return uint16(uint32(b.FatCellSize) * uint32(b.ClusterCount) / uint32(b.ClusterSize))
}

// RootClusters returns the number of clusters occupied by the root table.
func (b BootSector) RootClusters() uint16 {
	return uint16(uint32(b.RootEntryCellSize) * uint32(b.RootEntryCount) / uint32(b.ClusterSize))
}

// ReservedClusters returns the count of clusters reserved for the boot
// sector, FAT, and root table combined -- the first data cluster follows
// immediately after these.
func (b BootSector) ReservedClusters() uint16 {
	return b.ClustersPerBootSector + b.FatClusters() + b.RootClusters()
}
