package btree

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/siara-cc/sqlite-blaster/internal/cache"
	"github.com/siara-cc/sqlite-blaster/internal/codec"
	"github.com/siara-cc/sqlite-blaster/internal/page"
)

func openTestTree(t *testing.T, pageSize, cacheKB int) *BTree {
	t.Helper()
	r := require.New(t)
	dir := t.TempDir()
	c, _, isNew, err := cache.Open(filepath.Join(dir, "test.db"), pageSize, 1, cacheKB, IsChanged, MarkChanged, logrus.NewEntry(logrus.New()))
	r.NoError(err)
	r.True(isNew)
	c.SetStash(page.New(1, pageSize, page.LeafTable))

	bt := New(c, pageSize, 1, 1, logrus.NewEntry(logrus.New()))
	r.NoError(bt.InitRoot())
	return bt
}

func buildRow(t *testing.T, key int64, value string) []byte {
	t.Helper()
	b := codec.NewRecordBuilder(2)
	require.NoError(t, b.AppendValue(codec.TypeInt, key))
	require.NoError(t, b.AppendValue(codec.TypeText, value))
	buf, err := b.Bytes()
	require.NoError(t, err)
	return buf
}

func buildKey(t *testing.T, key int64) []byte {
	t.Helper()
	b := codec.NewRecordBuilder(1)
	require.NoError(t, b.AppendValue(codec.TypeInt, key))
	buf, err := b.Bytes()
	require.NoError(t, err)
	return buf
}

func rowKey(t *testing.T, row []byte) int64 {
	t.Helper()
	rec, err := codec.ReadRecord(row)
	require.NoError(t, err)
	v, err := rec.Column(0)
	require.NoError(t, err)
	return v.Int
}

func rowValue(t *testing.T, row []byte) string {
	t.Helper()
	rec, err := codec.ReadRecord(row)
	require.NoError(t, err)
	v, err := rec.Column(1)
	require.NoError(t, err)
	return string(v.Bytes)
}

func TestPutGetRoundTrip(t *testing.T) {
	r := require.New(t)
	bt := openTestTree(t, 4096, 64)

	for i := int64(0); i < 50; i++ {
		exists, err := bt.Put(buildRow(t, i, fmt.Sprintf("value-%d", i)))
		r.NoError(err)
		r.False(exists)
	}

	for i := int64(0); i < 50; i++ {
		row, found, err := bt.Get(buildKey(t, i), true)
		r.NoError(err)
		r.True(found)
		r.Equal(fmt.Sprintf("value-%d", i), rowValue(t, row))
	}

	_, found, err := bt.Get(buildKey(t, 999), true)
	r.NoError(err)
	r.False(found)
}

func TestPutUpdatesExistingKey(t *testing.T) {
	r := require.New(t)
	bt := openTestTree(t, 4096, 64)

	exists, err := bt.Put(buildRow(t, 1, "first"))
	r.NoError(err)
	r.False(exists)

	exists, err = bt.Put(buildRow(t, 1, "second"))
	r.NoError(err)
	r.True(exists)

	row, found, err := bt.Get(buildKey(t, 1), true)
	r.NoError(err)
	r.True(found)
	r.Equal("second", rowValue(t, row))
}

// TestManyInsertsForceRootGrowth inserts enough rows on a small page to force
// at least one leaf split and a root split, and verifies every row is still
// reachable afterward in ascending key order via the cursor.
func TestManyInsertsForceRootGrowth(t *testing.T) {
	r := require.New(t)
	bt := openTestTree(t, 512, 16)

	const n = 400
	for i := int64(0); i < n; i++ {
		_, err := bt.Put(buildRow(t, i, fmt.Sprintf("v%04d", i)))
		r.NoError(err)
	}

	root, err := bt.c.Get(RootPage, nil)
	r.NoError(err)
	r.True(root.IsInterior(), "root should have grown into an interior page")

	cur := bt.NewCursor()
	r.NoError(cur.Rewind())
	var got []int64
	for {
		ok, err := cur.Next()
		r.NoError(err)
		if !ok {
			break
		}
		row, err := cur.Current()
		r.NoError(err)
		got = append(got, rowKey(t, row))
	}
	r.Len(got, n)
	for i := int64(1); i < int64(len(got)); i++ {
		r.Less(got[i-1], got[i], "cursor must produce strictly ascending keys")
	}
}

// walkTree visits every page reachable from the root and asserts the
// structural invariants spec.md requires after any split: an interior page
// always has at least one cell plus its right-most child, and a leaf page
// (other than an entirely empty tree) always has at least one cell. It also
// returns the total number of leaf cells visited, for round-trip counting.
func walkTree(t *testing.T, bt *BTree, pageNo int) int {
	t.Helper()
	r := require.New(t)
	p, err := bt.c.Get(pageNo, nil)
	r.NoError(err)

	if !p.IsInterior() {
		r.GreaterOrEqual(p.NumCells(), 1, "leaf page %d has no cells", pageNo)
		return p.NumCells()
	}

	r.GreaterOrEqual(p.NumCells(), 1, "interior page %d has no cells", pageNo)
	total := 0
	for i := 0; i < p.NumCells(); i++ {
		child := bt.interiorCellAt(p, i).Child
		total += walkTree(t, bt, int(child))
	}
	total += walkTree(t, bt, int(p.RightMostChild()))
	return total
}

// TestManyInsertsDescendingForcesSplitAtFront inserts in strictly descending
// order, which always inserts at position 0 of whatever page it lands on --
// the scenario that used to drive chooseSplitIndex's split point to exactly
// 0, corrupting a newly-split interior page down to zero cells.
func TestManyInsertsDescendingForcesSplitAtFront(t *testing.T) {
	r := require.New(t)
	bt := openTestTree(t, 512, 16)

	const n = 400
	for i := int64(n - 1); i >= 0; i-- {
		_, err := bt.Put(buildRow(t, i, fmt.Sprintf("v%04d", i)))
		r.NoError(err)
	}

	root, err := bt.c.Get(RootPage, nil)
	r.NoError(err)
	r.True(root.IsInterior())

	total := walkTree(t, bt, RootPage)
	r.Equal(n, total)

	for i := int64(0); i < n; i++ {
		row, found, err := bt.Get(buildKey(t, i), true)
		r.NoError(err)
		r.True(found)
		r.Equal(fmt.Sprintf("v%04d", i), rowValue(t, row))
	}
}

// TestManyInsertsMiddleForcesSplitNearFront inserts a dense ascending run
// first, then backfills a second dense run of smaller keys, so later
// inserts repeatedly land near the front of an already-full page -- another
// path that can drive the split index toward 0 without being a pure
// descending run.
func TestManyInsertsMiddleForcesSplitNearFront(t *testing.T) {
	r := require.New(t)
	bt := openTestTree(t, 512, 16)

	for i := int64(200); i < 400; i++ {
		_, err := bt.Put(buildRow(t, i, fmt.Sprintf("v%04d", i)))
		r.NoError(err)
	}
	for i := int64(199); i >= 0; i-- {
		_, err := bt.Put(buildRow(t, i, fmt.Sprintf("v%04d", i)))
		r.NoError(err)
	}

	total := walkTree(t, bt, RootPage)
	r.Equal(400, total)

	for i := int64(0); i < 400; i++ {
		row, found, err := bt.Get(buildKey(t, i), true)
		r.NoError(err)
		r.True(found)
		r.Equal(fmt.Sprintf("v%04d", i), rowValue(t, row))
	}
}

func TestChooseSplitIndexNeverReturnsZero(t *testing.T) {
	r := require.New(t)
	for n := 2; n <= 8; n++ {
		costs := make([]int, n)
		for i := range costs {
			costs[i] = 1
		}
		// Weight everything onto the first cell, which previously pushed the
		// accumulated-cost crossing point (and the clamp) to index 0.
		costs[0] = 1000
		idx := chooseSplitIndex(costs)
		r.GreaterOrEqual(idx, 1, "n=%d", n)
		r.LessOrEqual(idx, n-1, "n=%d", n)
	}
}

func TestOverflowChainRoundTrip(t *testing.T) {
	r := require.New(t)
	bt := openTestTree(t, 512, 16)

	big := make([]byte, 3000)
	for i := range big {
		big[i] = byte('a' + i%26)
	}

	exists, err := bt.Put(buildRow(t, 1, string(big)))
	r.NoError(err)
	r.False(exists)

	row, found, err := bt.Get(buildKey(t, 1), true)
	r.NoError(err)
	r.True(found)
	r.Equal(string(big), rowValue(t, row))
}

func TestCursorOnEmptyTree(t *testing.T) {
	r := require.New(t)
	bt := openTestTree(t, 4096, 64)

	cur := bt.NewCursor()
	r.NoError(cur.Rewind())
	ok, err := cur.Next()
	r.NoError(err)
	r.False(ok)
}

func TestGetByPrefixShortcut(t *testing.T) {
	r := require.New(t)
	dir := t.TempDir()
	c, _, isNew, err := cache.Open(filepath.Join(dir, "test.db"), 4096, 1, 64, IsChanged, MarkChanged, logrus.NewEntry(logrus.New()))
	r.NoError(err)
	r.True(isNew)
	c.SetStash(page.New(1, 4096, page.LeafTable))
	bt := New(c, 4096, 1, 1, logrus.NewEntry(logrus.New()))
	r.NoError(bt.InitRoot())

	b := codec.NewRecordBuilder(2)
	r.NoError(b.AppendValue(codec.TypeText, "alpha"))
	r.NoError(b.AppendValue(codec.TypeInt, 7))
	row, err := b.Bytes()
	r.NoError(err)
	_, err = bt.Put(row)
	r.NoError(err)

	got, found, err := bt.Get([]byte("alpha"), false)
	r.NoError(err)
	r.True(found)
	rec, err := codec.ReadRecord(got)
	r.NoError(err)
	v, err := rec.Column(1)
	r.NoError(err)
	r.Equal(int64(7), v.Int)
}
