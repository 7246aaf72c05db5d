// Package btree implements the paged, index-organized (WITHOUT ROWID) b-tree
// that sits on top of internal/page and internal/cache: traversal, point
// lookup, insert-or-update, page splitting and root growth, and overflow
// chain I/O for payloads too large to fit on a single page.
package btree

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/siara-cc/sqlite-blaster/internal/cache"
	"github.com/siara-cc/sqlite-blaster/internal/codec"
	"github.com/siara-cc/sqlite-blaster/internal/page"
)

// RootPage is the fixed page number of the tree's root. Its contents change
// shape across a root split (leaf, then interior, then a taller interior),
// but the page number never does, so every stored child pointer and the
// sqlite_master "root" column stay valid for the file's whole lifetime.
const RootPage = 2

// dirtyByteMask is the b-tree's own dirty-bit convention: bit 0x40 of the
// last byte of every page. That byte is carved out of the usable page size
// via reservedBytes so ordinary cell placement never touches it.
const dirtyByteMask = 0x40

// IsChanged and MarkChanged are handed to cache.Open as the cache's
// IsChangedFunc/MarkChangedFunc: the cache stores bytes, it has no opinion on
// where in them a dirty flag lives.
func IsChanged(data []byte) bool { return data[len(data)-1]&dirtyByteMask != 0 }

func MarkChanged(data []byte, dirty bool) {
	if dirty {
		data[len(data)-1] |= dirtyByteMask
	} else {
		data[len(data)-1] &^= dirtyByteMask
	}
}

// maxLevels bounds how deep a traversal path can get before something has
// gone wrong; it mirrors the fixed-size iteration-context array of the
// original C++ engine without needing a fixed array in Go.
const maxLevels = 10

// BTree is a single WITHOUT ROWID b-tree rooted at RootPage within c. pkCols
// is the number of leading columns of every row that make up its sort key.
type BTree struct {
	c             *cache.Cache
	pageSize      int
	reservedBytes int
	pkCols        int
	log           *logrus.Entry
}

// New returns a b-tree view over an already-open cache.
func New(c *cache.Cache, pageSize, reservedBytes, pkCols int, log *logrus.Entry) *BTree {
	return &BTree{c: c, pageSize: pageSize, reservedBytes: reservedBytes, pkCols: pkCols, log: log}
}

func (bt *BTree) usableSize() int { return page.UsableSize(bt.pageSize, bt.reservedBytes) }

func (bt *BTree) markDirty(p *page.Page) { MarkChanged(p.Data, true) }

// newPage allocates a fresh page of type t, pinning pin against eviction
// during the allocation, and reserves the trailing dirty-bit byte before any
// cell is ever written to it.
func (bt *BTree) newPage(t page.Type, pin *page.Page) (*page.Page, error) {
	p, err := bt.c.NewPage(t, pin)
	if err != nil {
		return nil, err
	}
	p.ReserveTrailingBytes(bt.reservedBytes)
	return p, nil
}

// resetPage re-initializes an existing page in place (same number, new
// shape) and re-applies the trailing-byte reservation, since Reset rebuilds
// the cell-content ceiling from scratch.
func (bt *BTree) resetPage(p *page.Page, t page.Type) {
	p.Reset(t, bt.pageSize)
	p.ReserveTrailingBytes(bt.reservedBytes)
}

// InitRoot creates an empty leaf-index root page for a brand new database.
// It must be called exactly once, right after the page-0 schema header has
// been installed, before any Put/Get.
func (bt *BTree) InitRoot() error {
	p, err := bt.newPage(page.LeafIndex, nil)
	if err != nil {
		return err
	}
	if p.Number != RootPage {
		return fmt.Errorf("btree: expected root at page %d, allocated page %d", RootPage, p.Number)
	}
	bt.markDirty(p)
	return nil
}

// comparator compares a candidate cell's record against whatever the caller
// is searching for, returning the same sign convention as bytes.Compare:
// negative when the cell sorts before the target, zero on an exact key
// match, positive when the cell sorts after it.
type comparator func(cellRec *codec.Record) (int, error)

func (bt *BTree) fullRecordComparator(target *codec.Record) comparator {
	return func(cellRec *codec.Record) (int, error) {
		return codec.CompareRecords(cellRec, target, bt.pkCols)
	}
}

func (bt *BTree) prefixComparator(key []byte) comparator {
	return func(cellRec *codec.Record) (int, error) {
		return codec.CompareRecordPrefix(cellRec, key)
	}
}

func (bt *BTree) interiorCellAt(p *page.Page, idx int) page.InteriorIndexCell {
	return page.ParseInteriorIndexCell(p.CellBytes(idx), bt.usableSize())
}

func (bt *BTree) leafCellAt(p *page.Page, idx int) page.LeafIndexCell {
	return page.ParseLeafIndexCell(p.CellBytes(idx), bt.usableSize())
}

func (bt *BTree) recordFor(onPage []byte, payloadLen int, overflowPage uint32) (*codec.Record, error) {
	payload, err := bt.assemblePayload(onPage, payloadLen, overflowPage)
	if err != nil {
		return nil, err
	}
	return codec.ReadRecord(payload)
}

// findChildPage returns the page number of the child an interior page routes
// cmp's target into: the first cell whose separator is >= the target, or the
// right-most child if the target is greater than every separator.
func (bt *BTree) findChildPage(p *page.Page, cmp comparator) (uint32, error) {
	n := p.NumCells()
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		ic := bt.interiorCellAt(p, mid)
		rec, err := bt.recordFor(ic.OnPage, ic.PayloadLen, ic.OverflowPage)
		if err != nil {
			return 0, err
		}
		c, err := cmp(rec)
		if err != nil {
			return 0, err
		}
		if c < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == n {
		return p.RightMostChild(), nil
	}
	return bt.interiorCellAt(p, lo).Child, nil
}

// searchLeaf finds cmp's target within a leaf page, returning its cell index
// and true on an exact match, or the sorted insertion point and false.
func (bt *BTree) searchLeaf(p *page.Page, cmp comparator) (int, bool, error) {
	n := p.NumCells()
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		lc := bt.leafCellAt(p, mid)
		rec, err := bt.recordFor(lc.OnPage, lc.PayloadLen, lc.OverflowPage)
		if err != nil {
			return 0, false, err
		}
		c, err := cmp(rec)
		if err != nil {
			return 0, false, err
		}
		if c == 0 {
			return mid, true, nil
		}
		if c < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, false, nil
}

// traverse walks from the root to the leaf that would hold cmp's target,
// returning the leaf and the page numbers of every interior ancestor visited
// along the way (root first).
func (bt *BTree) traverse(cmp comparator) (*page.Page, []int, error) {
	cur, err := bt.c.Get(RootPage, nil)
	if err != nil {
		return nil, nil, err
	}
	path := make([]int, 0, 4)
	for cur.IsInterior() {
		if len(path) >= maxLevels {
			return nil, nil, fmt.Errorf("btree: traversal exceeded %d levels", maxLevels)
		}
		path = append(path, cur.Number)
		child, err := bt.findChildPage(cur, cmp)
		if err != nil {
			return nil, nil, err
		}
		cur, err = bt.c.Get(int(child), cur)
		if err != nil {
			return nil, nil, err
		}
	}
	return cur, path, nil
}

// Get looks up a row by key. When fullRecord is true, key is a packed record
// of exactly the leading pk-column count, compared column-by-column; when
// false, key is raw bytes compared against the first column only (the
// shortcut for a single text/blob-keyed table). It returns the full packed
// row on a hit.
func (bt *BTree) Get(key []byte, fullRecord bool) ([]byte, bool, error) {
	cmp, err := bt.makeComparator(key, fullRecord)
	if err != nil {
		return nil, false, err
	}
	leaf, _, err := bt.traverse(cmp)
	if err != nil {
		return nil, false, err
	}
	pos, found, err := bt.searchLeaf(leaf, cmp)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	lc := bt.leafCellAt(leaf, pos)
	payload, err := bt.assemblePayload(lc.OnPage, lc.PayloadLen, lc.OverflowPage)
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (bt *BTree) makeComparator(key []byte, fullRecord bool) (comparator, error) {
	if fullRecord {
		probe, err := codec.ReadRecord(key)
		if err != nil {
			return nil, err
		}
		return bt.fullRecordComparator(probe), nil
	}
	return bt.prefixComparator(key), nil
}

// Put inserts recordBytes (a fully packed row, leading pkCols columns acting
// as its key) or overwrites the existing row with the same key. It reports
// whether a prior row with this key existed.
func (bt *BTree) Put(recordBytes []byte) (bool, error) {
	rec, err := codec.ReadRecord(recordBytes)
	if err != nil {
		return false, err
	}
	cmp := bt.fullRecordComparator(rec)

	leaf, path, err := bt.traverse(cmp)
	if err != nil {
		return false, err
	}
	pos, found, err := bt.searchLeaf(leaf, cmp)
	if err != nil {
		return false, err
	}
	if found {
		return true, bt.updateLeafCell(leaf, pos, recordBytes, path)
	}
	return false, bt.insertLeafRecord(leaf, pos, recordBytes, path)
}

// updateLeafCell overwrites an existing row. When the new payload's on-page
// portion is exactly the same size as the old one and neither spills to
// overflow, the bytes are copied in place with no reshape of the page at
// all. Otherwise the old cell is removed and the row is re-inserted as if
// new (this can leave its old overflow chain, if any, orphaned but still
// physically present in the file; this engine never reclaims space).
func (bt *BTree) updateLeafCell(leaf *page.Page, pos int, recordBytes []byte, path []int) error {
	existing := bt.leafCellAt(leaf, pos)
	newOnLen, newOverflow := page.LocalPayloadSize(bt.usableSize(), len(recordBytes))
	if !newOverflow && existing.OverflowPage == 0 && newOnLen == len(existing.OnPage) {
		copy(existing.OnPage, recordBytes[:newOnLen])
		bt.markDirty(leaf)
		return nil
	}
	leaf.RemoveCellAt(pos)
	return bt.insertLeafRecord(leaf, pos, recordBytes, path)
}

// buildSplitCell carves recordBytes into its on-page/overflow split,
// allocating and writing an overflow chain (pinning pin against eviction
// while doing so) if the record doesn't fit entirely on a page.
func (bt *BTree) buildSplitCell(pin *page.Page, recordBytes []byte) (splitCell, error) {
	u := bt.usableSize()
	onLen, overflow := page.LocalPayloadSize(u, len(recordBytes))
	if !bt.fitsEvenEmptyPage(onLen, overflow) {
		return splitCell{}, codec.ErrTooLong
	}
	var overflowPage uint32
	if overflow {
		var err error
		overflowPage, err = bt.writeOverflowChain(recordBytes[onLen:], pin)
		if err != nil {
			return splitCell{}, err
		}
	}
	return splitCell{payloadLen: len(recordBytes), onPage: recordBytes[:onLen], overflowPage: overflowPage}, nil
}

// fitsEvenEmptyPage reports whether a cell built from this on-page/overflow
// split could ever be placed on a completely empty page of this geometry;
// if not, no split will ever make room for it.
func (bt *BTree) fitsEvenEmptyPage(onPageLen int, overflow bool) bool {
	cost := onPageLen + codec.VarintLen(uint64(onPageLen)) + 2 // varint + pointer entry
	if overflow {
		cost += 4
	}
	return page.InteriorHeaderLen+cost <= bt.pageSize-bt.reservedBytes
}

func (bt *BTree) insertLeafRecord(leaf *page.Page, pos int, recordBytes []byte, path []int) error {
	cell, err := bt.buildSplitCell(leaf, recordBytes)
	if err != nil {
		return err
	}
	cellBytes := page.BuildLeafIndexCell(cell.payloadLen, cell.onPage, cell.overflowPage)
	if leaf.Fits(len(cellBytes)) {
		leaf.InsertCellAt(pos, cellBytes)
		bt.markDirty(leaf)
		return nil
	}
	return bt.splitLeaf(leaf, pos, cell, path)
}
