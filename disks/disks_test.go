package disks_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wsami/rodos-go/disks"
)

func TestPresetLoadsFromEmbeddedCSV(t *testing.T) {
	g, err := disks.Preset("floppy-tiny")
	require.NoError(t, err)
	assert.EqualValues(t, 16, g.ClusterSize)
	assert.EqualValues(t, 8192, g.ClusterCount)
}

func TestPresetUnknownSlugErrors(t *testing.T) {
	_, err := disks.Preset("does-not-exist")
	assert.Error(t, err)
}

func TestReformattedPreservesTotalSize(t *testing.T) {
	original, err := disks.Preset("floppy-tiny")
	require.NoError(t, err)
	total := original.TotalSizeBytes()

	reformatted := disks.Reformatted(total, 32)
	assert.Equal(t, total, reformatted.TotalSizeBytes())
	assert.EqualValues(t, 32, reformatted.ClusterSize)
}
