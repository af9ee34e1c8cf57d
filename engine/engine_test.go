package engine_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wsami/rodos-go/content"
	"github.com/wsami/rodos-go/engine"
	"github.com/wsami/rodos-go/errs"
	"github.com/wsami/rodos-go/fatfs"
	"github.com/wsami/rodos-go/store"
	"github.com/wsami/rodos-go/tree"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.Config{
		ClusterSize:  16,
		ClusterCount: 8192,
		Backend:      &store.MemBackend{},
	})
	require.NoError(t, err)
	return e
}

var mtime = time.Date(2023, 3, 14, 9, 26, 53, 0, time.UTC)

// S1
func TestCreateFileSmallSingleChain(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateFile("A", "TXT", 3, 0, mtime, content.KindAlpha))

	got, err := e.Cat("A", "TXT")
	require.NoError(t, err)
	assert.Equal(t, "ABC", got)
}

// S2
func TestCreateFileMultiClusterChainAndTruncatedCat(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateFile("B", "DAT", 40, 0, mtime, content.KindNum))

	got, err := e.Cat("B", "DAT")
	require.NoError(t, err)
	assert.Len(t, got, 40)
	assert.Equal(t, "0123456789012345678901234567890123456789", got)
}

// S3
func TestRenameThenDeleteFreesEverything(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateFile("A", "TXT", 3, 0, mtime, content.KindAlpha))
	require.NoError(t, e.Rename("A", "TXT", "A2", "TXT"))
	require.NoError(t, e.Delete("A2", "TXT"))

	files, err := e.ListFiles([]tree.Filter{{Kind: tree.FilterAllAndHidden}}, tree.SortNameAsc)
	require.NoError(t, err)
	assert.Empty(t, files)

	exists, err := e.Exists("A2", "TXT")
	require.NoError(t, err)
	assert.False(t, exists)
}

// S4
func TestMkdirCdCreateCdUpDeleteFreesDirAndChild(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Mkdir("D", 0, mtime))
	require.NoError(t, e.Cd("D"))
	require.NoError(t, e.CreateFile("X", "TXT", 3, 0, mtime, content.KindAlpha))
	require.NoError(t, e.Cd(".."))
	require.NoError(t, e.Delete("D", ""))

	files, err := e.ListFiles([]tree.Filter{{Kind: tree.FilterAllAndHidden}}, tree.SortNameAsc)
	require.NoError(t, err)
	assert.Empty(t, files)
}

// S5
func TestCreateFileRootFullWhenTableSaturated(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < 64; i++ {
		name := fmt.Sprintf("F%02d", i)
		require.NoError(t, e.CreateFile(name, "T", 1, 0, mtime, content.KindAlpha))
	}

	err := e.CreateFile("Y", "TXT", 1, 0, mtime, content.KindAlpha)
	assert.ErrorIs(t, err, errs.ErrRootFull)
}

// S6
func TestCreateFileOutOfSpace(t *testing.T) {
	e := newTestEngine(t)

	before, err := e.FSStat()
	require.NoError(t, err)

	createErr := e.CreateFile("BIG", "BIN", before.FreeBytes+1000, 0, mtime, content.KindNum)
	assert.ErrorIs(t, createErr, errs.ErrOutOfSpace)

	after, err := e.FSStat()
	require.NoError(t, err)
	assert.Equal(t, before.FreeClusters, after.FreeClusters)
}

// S7
func TestDefragmentCompactsAndPreservesContent(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateFile("ONE", "TXT", 3, 0, mtime, content.KindAlpha))
	require.NoError(t, e.CreateFile("TWO", "TXT", 3, 0, mtime, content.KindAlpha))
	require.NoError(t, e.CreateFile("THREE", "TXT", 3, 0, mtime, content.KindAlpha))
	require.NoError(t, e.Delete("TWO", "TXT"))

	oneBefore, err := e.Cat("ONE", "TXT")
	require.NoError(t, err)
	threeBefore, err := e.Cat("THREE", "TXT")
	require.NoError(t, err)

	require.NoError(t, e.Defragment())

	oneAfter, err := e.Cat("ONE", "TXT")
	require.NoError(t, err)
	threeAfter, err := e.Cat("THREE", "TXT")
	require.NoError(t, err)

	assert.Equal(t, oneBefore, oneAfter)
	assert.Equal(t, threeBefore, threeAfter)
}

// Property 5: monotonic/contiguous allocation immediately after fmt.
func TestMonotonicAllocationAfterFmt(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Fmt(16))

	require.NoError(t, e.CreateFile("A", "TXT", 3, 0, mtime, content.KindAlpha))
	require.NoError(t, e.CreateFile("B", "TXT", 3, 0, mtime, content.KindAlpha))

	files, err := e.ListFiles([]tree.Filter{{Kind: tree.FilterAllAndHidden}}, tree.SortNameAsc)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Less(t, files[0].FirstCluster, files[1].FirstCluster)
}

// Property 6: idempotent setattr.
func TestSetAttributesIdempotent(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateFile("A", "TXT", 3, 0, mtime, content.KindAlpha))

	require.NoError(t, e.SetAttributes("A", "TXT", []fatfs.AttrToken{fatfs.TokenReadOnly}))
	once, err := e.ListFiles([]tree.Filter{{Kind: tree.FilterAllAndHidden}}, tree.SortNameAsc)
	require.NoError(t, err)

	require.NoError(t, e.SetAttributes("A", "TXT", []fatfs.AttrToken{fatfs.TokenReadOnly}))
	twice, err := e.ListFiles([]tree.Filter{{Kind: tree.FilterAllAndHidden}}, tree.SortNameAsc)
	require.NoError(t, err)

	assert.Equal(t, once[0].Attributes, twice[0].Attributes)
}

// Property 7: rename preserves content.
func TestRenamePreservesContent(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateFile("A", "TXT", 3, 0, mtime, content.KindAlpha))
	before, err := e.Cat("A", "TXT")
	require.NoError(t, err)

	require.NoError(t, e.Rename("A", "TXT", "B", "TXT"))
	after, err := e.Cat("B", "TXT")
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

// Property 8: copy preserves content and size.
func TestCopyFilePreservesContentAndSize(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateFile("A", "TXT", 20, 0, mtime, content.KindHex))

	require.NoError(t, e.CopyFile("A", "TXT", "A2", "TXT"))

	src, err := e.Cat("A", "TXT")
	require.NoError(t, err)
	dst, err := e.Cat("A2", "TXT")
	require.NoError(t, err)
	assert.Equal(t, src, dst)

	files, err := e.ListFiles([]tree.Filter{{Kind: tree.FilterAllAndHidden}}, tree.SortNameAsc)
	require.NoError(t, err)
	var a, a2 *tree.Node
	for i := range files {
		if files[i].Name == "A" {
			a = &files[i]
		}
		if files[i].Name == "A2" {
			a2 = &files[i]
		}
	}
	require.NotNil(t, a)
	require.NotNil(t, a2)
	assert.Equal(t, a.Size, a2.Size)
}

func TestCopyDirectoryRecursively(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Mkdir("SRC", 0, mtime))
	require.NoError(t, e.Cd("SRC"))
	require.NoError(t, e.CreateFile("A", "TXT", 3, 0, mtime, content.KindAlpha))
	require.NoError(t, e.Cd(".."))

	require.NoError(t, e.CopyFile("SRC", "", "DST", ""))

	require.NoError(t, e.Cd("DST"))
	got, err := e.Cat("A", "TXT")
	require.NoError(t, err)
	assert.Equal(t, "ABC", got)
}

// Property 4: persistence round-trip across a fresh engine construction.
func TestPersistenceRoundTripAcrossFreshEngine(t *testing.T) {
	backend := &store.MemBackend{}
	e1, err := engine.New(engine.Config{ClusterSize: 16, ClusterCount: 8192, Backend: backend})
	require.NoError(t, err)
	require.NoError(t, e1.CreateFile("A", "TXT", 3, 0, mtime, content.KindAlpha))

	e2, err := engine.New(engine.Config{ClusterSize: 16, ClusterCount: 8192, Backend: backend})
	require.NoError(t, err)

	got, err := e2.Cat("A", "TXT")
	require.NoError(t, err)
	assert.Equal(t, "ABC", got)
}

func TestPwdAndCdNavigation(t *testing.T) {
	e := newTestEngine(t)
	pwd, err := e.Pwd()
	require.NoError(t, err)
	assert.Equal(t, "/", pwd)

	require.NoError(t, e.Mkdir("SUB", 0, mtime))
	require.NoError(t, e.Cd("SUB"))
	pwd, err = e.Pwd()
	require.NoError(t, err)
	assert.Equal(t, "/SUB/", pwd)

	require.NoError(t, e.Cd(".."))
	pwd, err = e.Pwd()
	require.NoError(t, err)
	assert.Equal(t, "/", pwd)

	assert.Error(t, e.Cd(".."))
}

func TestDeleteReadOnlyFails(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateFile("A", "TXT", 3, 0, mtime, content.KindAlpha))
	require.NoError(t, e.SetAttributes("A", "TXT", []fatfs.AttrToken{fatfs.TokenReadOnly}))

	err := e.Delete("A", "TXT")
	assert.ErrorIs(t, err, errs.ErrReadOnly)
}

func TestListFilesByNameAndExtension(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateFile("A", "TXT", 3, 0, mtime, content.KindAlpha))
	require.NoError(t, e.CreateFile("B", "TXT", 3, 0, mtime, content.KindAlpha))
	require.NoError(t, e.CreateFile("C", "BIN", 3, 0, mtime, content.KindAlpha))

	byName, err := e.ListFiles([]tree.Filter{tree.ByName("A", "C")}, tree.SortNameAsc)
	require.NoError(t, err)
	require.Len(t, byName, 2)
	assert.Equal(t, "A", byName[0].Name)
	assert.Equal(t, "C", byName[1].Name)

	byExt, err := e.ListFiles([]tree.Filter{tree.ByExtension("TXT")}, tree.SortNameAsc)
	require.NoError(t, err)
	require.Len(t, byExt, 2)
	assert.Equal(t, "A", byExt[0].Name)
	assert.Equal(t, "B", byExt[1].Name)
}

// Mkdir must size a fresh directory as exactly the `.`/`..` pseudo-entry
// bytes (2 * RootEntryCellSize), per spec.md §4.7.8.
func TestMkdirSizeIsPseudoEntryBytesOnly(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Mkdir("D", 0, mtime))

	files, err := e.ListFiles([]tree.Filter{{Kind: tree.FilterAllAndHidden}}, tree.SortNameAsc)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.EqualValues(t, 2*fatfs.DirentSize, files[0].Size)
}
