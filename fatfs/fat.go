package fatfs

import (
	"encoding/binary"

	"github.com/noxer/bytewriter"
)

// FatCell is the on-disk 16-bit value of a single FAT allocation cell. The
// reserved sentinels are named constants below; any other value in
// [0x0003, 0xFFFE] names the index of the next cluster in a chain ("Data(n)"
// in the spec) and is held directly as the cell's value -- no translation is
// needed since the wire format of a Data cell *is* the successor index.
type FatCell uint16

const (
	// CellFree marks a cluster as unused.
	CellFree FatCell = 0x0000
	// CellReserved marks a cluster consumed by the boot sector, FAT, or root
	// table.
	CellReserved FatCell = 0x0001
	// CellBad marks a cluster the engine must never allocate.
	CellBad FatCell = 0x0002
	// CellEndOfChain terminates an allocation chain.
	CellEndOfChain FatCell = 0xFFFF

	minDataCell = 0x0003
	maxDataCell = 0xFFFE
)

// DataCell returns the FatCell pointing at the given successor cluster
// index. The caller must ensure next is in [0x0003, 0xFFFE]; this holds for
// any disk whose ClusterCount fits in a FatCell, which BootSector guarantees.
func DataCell(next uint16) FatCell { return FatCell(next) }

// IsData reports whether the cell holds a successor cluster index rather
// than one of the reserved sentinels.
func (c FatCell) IsData() bool { return c >= minDataCell && c <= maxDataCell }

// Next returns the successor cluster index. It is only meaningful when
// IsData() is true.
func (c FatCell) Next() uint16 { return uint16(c) }

// CellSize is the on-disk size, in bytes, of a single FAT cell.
const CellSize = 2

// EncodeCell serializes a single cell to its big-endian on-disk bytes.
func EncodeCell(c FatCell) [CellSize]byte {
	var out [CellSize]byte
	binary.BigEndian.PutUint16(out[:], uint16(c))
	return out
}

// DecodeCell deserializes a single cell from 2 big-endian bytes. Decoding
// is total: reserved sentinels are recognized by value, and every other
// 16-bit value decodes to a Data cell.
func DecodeCell(data []byte) FatCell {
	return FatCell(binary.BigEndian.Uint16(data[:CellSize]))
}

// EncodeTable packs cells into consecutive cluster-sized byte slices,
// cellsPerCluster = clusterSize / CellSize cells to a cluster, in order.
// The final cluster is zero-padded if the cell count doesn't fill it evenly.
func EncodeTable(cells []FatCell, clusterSize uint16) [][]byte {
	cellsPerCluster := int(clusterSize) / CellSize
	numClusters := (len(cells) + cellsPerCluster - 1) / cellsPerCluster

	out := make([][]byte, numClusters)
	for i := range out {
		out[i] = make([]byte, clusterSize)
	}

	// bytewriter exposes the concatenation of all destination clusters as a
	// single sequential io.Writer, so the cells can be packed with one pass
	// of binary.Write regardless of where a cluster boundary falls.
	flat := make([]byte, 0, numClusters*int(clusterSize))
	for _, c := range out {
		flat = append(flat, c...)
	}
	w := bytewriter.New(flat)
	for _, cell := range cells {
		raw := EncodeCell(cell)
		_, _ = w.Write(raw[:])
	}

	for i := range out {
		copy(out[i], flat[i*int(clusterSize):(i+1)*int(clusterSize)])
	}
	return out
}

// DecodeTable unpacks cellCount cells from consecutive cluster-sized byte
// slices, the inverse of EncodeTable.
func DecodeTable(clusters [][]byte, cellCount int) []FatCell {
	flat := make([]byte, 0, len(clusters)*len(clusters[0]))
	for _, c := range clusters {
		flat = append(flat, c...)
	}

	cells := make([]FatCell, cellCount)
	for i := range cells {
		cells[i] = DecodeCell(flat[i*CellSize : i*CellSize+CellSize])
	}
	return cells
}
