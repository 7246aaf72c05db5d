package cache

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/siara-cc/sqlite-blaster/internal/page"
)

// testDirtyBit uses byte 0 bit 0x01 as a stand-in for the b-tree's real
// dirty-bit convention (page tail byte, bit 0x40) so these tests don't need
// to know page-format details.
func testDirtyBit(data []byte) bool        { return data[0]&0x01 != 0 }
func setTestDirtyBit(data []byte, v bool) {
	if v {
		data[0] |= 0x01
	} else {
		data[0] &^= 0x01
	}
}

func openTestCache(t *testing.T, cacheKB int) (*Cache, string) {
	t.Helper()
	r := require.New(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	c, stash, isNew, err := Open(dbPath, 512, 0, cacheKB, testDirtyBit, setTestDirtyBit, logrus.NewEntry(logrus.New()))
	r.NoError(err)
	r.True(isNew)
	r.Nil(stash)
	c.SetStash(page.New(1, 512, page.LeafTable))
	return c, dbPath
}

func TestNewPageAllocatesSequentially(t *testing.T) {
	r := require.New(t)
	c, _ := openTestCache(t, 64)

	p2, err := c.NewPage(page.LeafIndex, nil)
	r.NoError(err)
	r.Equal(2, p2.Number)

	p3, err := c.NewPage(page.LeafIndex, nil)
	r.NoError(err)
	r.Equal(3, p3.Number)
	r.Equal(3, c.TotalPages())
}

func TestGetHitsDoNotTouchDisk(t *testing.T) {
	r := require.New(t)
	c, _ := openTestCache(t, 64)

	p2, err := c.NewPage(page.LeafIndex, nil)
	r.NoError(err)
	p2.Data[10] = 0xAB

	again, err := c.Get(2, nil)
	r.NoError(err)
	r.Same(p2, again)
	r.Equal(byte(0xAB), again.Data[10])
	r.Equal(1, c.Hits)
}

func TestGetPastEOFReturnsZeroFilledPage(t *testing.T) {
	r := require.New(t)
	c, _ := openTestCache(t, 64)

	p, err := c.Get(5, nil)
	r.NoError(err)
	r.Equal(5, p.Number)
	for _, b := range p.Data {
		r.Equal(byte(0), b)
	}
}

func TestEvictionRespectsBlockToKeep(t *testing.T) {
	r := require.New(t)
	c, _ := openTestCache(t, 1) // 1 KB / 512 B pages = capacity 2 frames

	pinned, err := c.NewPage(page.LeafIndex, nil)
	r.NoError(err)
	setTestDirtyBit(pinned.Data, false)

	_, err = c.NewPage(page.LeafIndex, nil)
	r.NoError(err)

	// A third distinct page forces eviction; pinned must survive.
	_, err = c.Get(10, pinned)
	r.NoError(err)

	stillThere, err := c.Get(pinned.Number, pinned)
	r.NoError(err)
	r.Same(pinned, stillThere)
}

func TestFlushWritesDirtyPagesAndClearsBit(t *testing.T) {
	r := require.New(t)
	c, dbPath := openTestCache(t, 64)

	p2, err := c.NewPage(page.LeafIndex, nil)
	r.NoError(err)
	p2.Data[20] = 0x42
	r.True(testDirtyBit(p2.Data))

	r.NoError(c.Flush())
	r.False(testDirtyBit(p2.Data))
	r.NoError(c.Close())

	c2, stash, isNew, err := Open(dbPath, 512, 0, 64, testDirtyBit, setTestDirtyBit, logrus.NewEntry(logrus.New()))
	r.NoError(err)
	r.False(isNew)
	r.NotNil(stash)

	reread, err := c2.Get(2, nil)
	r.NoError(err)
	r.Equal(byte(0x42), reread.Data[20])
	r.NoError(c2.Close())
}
