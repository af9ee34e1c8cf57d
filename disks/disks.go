// Package disks holds named disk geometries for constructing fresh engines
// (the CLI's --preset flag), loaded from an embedded CSV, plus Reformatted,
// which computes the geometry a size-preserving fmt would produce.
package disks

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
)

// Geometry is a named (cluster_size, cluster_count) pair a caller can hand
// to a fresh engine construction or to fmt.
type Geometry struct {
	Slug         string `csv:"slug"`
	Name         string `csv:"name"`
	ClusterSize  uint16 `csv:"cluster_size"`
	ClusterCount uint16 `csv:"cluster_count"`
	Notes        string `csv:"notes"`
}

// TotalSizeBytes returns the disk size this geometry preserves across a
// reformat, per spec.md §4.7.10's "preserving disk size" rule.
func (g Geometry) TotalSizeBytes() uint32 {
	return uint32(g.ClusterSize) * uint32(g.ClusterCount)
}

//go:embed presets.csv
var presetsCSV string

var presets map[string]Geometry

func init() {
	presets = make(map[string]Geometry)
	reader := strings.NewReader(presetsCSV)
	err := gocsv.UnmarshalToCallback(reader, func(row Geometry) error {
		if _, exists := presets[row.Slug]; exists {
			return fmt.Errorf("duplicate disk geometry preset %q", row.Slug)
		}
		presets[row.Slug] = row
		return nil
	})
	if err != nil {
		panic(err)
	}
}

// Preset returns the geometry registered under slug.
func Preset(slug string) (Geometry, error) {
	g, ok := presets[slug]
	if !ok {
		return Geometry{}, fmt.Errorf("no predefined disk geometry with slug %q", slug)
	}
	return g, nil
}

// Reformatted returns the geometry that results from changing the cluster
// size to newClusterSize while preserving total disk size, per
// fmt(new_cluster_size)'s contract in spec.md §4.7.10.
func Reformatted(totalSize uint32, newClusterSize uint16) Geometry {
	return Geometry{
		Slug:         "reformatted",
		ClusterSize:  newClusterSize,
		ClusterCount: uint16(totalSize / uint32(newClusterSize)),
	}
}
