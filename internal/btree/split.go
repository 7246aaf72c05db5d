package btree

import (
	"fmt"

	"github.com/siara-cc/sqlite-blaster/internal/codec"
	"github.com/siara-cc/sqlite-blaster/internal/page"
)

// splitCell is a page-agnostic view of one cell, copied out of its page
// buffer so it survives that page being reset or rewritten out from under
// it. child is only meaningful for interior cells.
type splitCell struct {
	payloadLen   int
	onPage       []byte
	overflowPage uint32
	child        uint32
}

func spliceCell(existing []splitCell, pos int, nc splitCell) []splitCell {
	out := make([]splitCell, 0, len(existing)+1)
	out = append(out, existing[:pos]...)
	out = append(out, nc)
	out = append(out, existing[pos:]...)
	return out
}

// cellCost estimates a cell's encoded byte length, enough to drive the
// split-point search; interior adds the 4-byte child pointer every
// interior-index cell carries.
func cellCost(c splitCell, interior bool) int {
	cost := len(c.onPage) + codec.VarintLen(uint64(c.payloadLen))
	if c.overflowPage != 0 {
		cost += 4
	}
	if interior {
		cost += 4
	}
	return cost
}

// chooseSplitIndex walks cells in order accumulating byte cost, and returns
// the index at which accumulated cost first reaches half the total -- the
// split index -- clamped to the range [1, max(1, n-2)] so the kept (left)
// side of a leaf split has at least 2 cells.
func chooseSplitIndex(costs []int) int {
	n := len(costs)
	total := 0
	for _, c := range costs {
		total += c
	}
	half := total / 2
	idx := n / 2
	acc := 0
	for i, c := range costs {
		acc += c
		if acc >= half {
			idx = i
			break
		}
	}
	// idx must leave at least one cell strictly left of the split and at
	// least one cell strictly right of it: splitLeaf keeps combined[:idx+1]
	// on the left (>= 2 cells, since idx >= 1) and combined[idx+1:] on the
	// right, while splitInterior keeps combined[:idx] on the left (>= 1
	// cell) and combined[idx+1:] on the right. idx == 0 would hand
	// splitInterior a zero-cell left page.
	upper := n - 2
	if upper < 1 {
		upper = 1
	}
	if idx < 1 {
		idx = 1
	}
	if idx > upper {
		idx = upper
	}
	return idx
}

func (bt *BTree) readLeafCellsForSplit(p *page.Page) []splitCell {
	n := p.NumCells()
	out := make([]splitCell, n)
	for i := 0; i < n; i++ {
		lc := bt.leafCellAt(p, i)
		out[i] = splitCell{
			payloadLen:   lc.PayloadLen,
			onPage:       append([]byte(nil), lc.OnPage...),
			overflowPage: lc.OverflowPage,
		}
	}
	return out
}

func (bt *BTree) readInteriorCellsForSplit(p *page.Page) []splitCell {
	n := p.NumCells()
	out := make([]splitCell, n)
	for i := 0; i < n; i++ {
		ic := bt.interiorCellAt(p, i)
		out[i] = splitCell{
			payloadLen:   ic.PayloadLen,
			onPage:       append([]byte(nil), ic.OnPage...),
			overflowPage: ic.OverflowPage,
			child:        ic.Child,
		}
	}
	return out
}

func fillLeaf(p *page.Page, cells []splitCell) {
	for i, c := range cells {
		p.InsertCellAt(i, page.BuildLeafIndexCell(c.payloadLen, c.onPage, c.overflowPage))
	}
}

func fillInterior(p *page.Page, cells []splitCell) {
	for i, c := range cells {
		p.InsertCellAt(i, page.BuildInteriorIndexCell(c.child, c.payloadLen, c.onPage, c.overflowPage))
	}
}

// splitLeaf splits a full leaf page to make room for newCell at insertPos
// among its current cells (in sorted order). The split index's cell is kept
// -- on a leaf, every cell is real row data, and the same bytes are promoted
// as the parent's separator, they don't move out of the leaf level.
func (bt *BTree) splitLeaf(leaf *page.Page, insertPos int, newCell splitCell, path []int) error {
	combined := spliceCell(bt.readLeafCellsForSplit(leaf), insertPos, newCell)
	costs := make([]int, len(combined))
	for i, c := range combined {
		costs[i] = cellCost(c, false)
	}
	spIdx := chooseSplitIndex(costs)

	leftCells := combined[:spIdx+1]
	rightCells := combined[spIdx+1:]
	separator := combined[spIdx]

	if len(path) == 0 {
		return bt.growRootFromLeafSplit(leaf, leftCells, rightCells)
	}

	rightPage, err := bt.newPage(page.LeafIndex, leaf)
	if err != nil {
		return err
	}
	bt.resetPage(leaf, page.LeafIndex)
	fillLeaf(leaf, leftCells)
	fillLeaf(rightPage, rightCells)
	bt.markDirty(leaf)
	bt.markDirty(rightPage)

	return bt.propagateSeparator(path, leaf.Number, uint32(rightPage.Number), separator)
}

// growRootFromLeafSplit handles the case where the root itself is a leaf
// that just overflowed. Two fresh pages receive the split halves; the root
// page is reinitialized in place as an interior page pointing at them, so
// the root's page number never changes even though its contents now mean
// something different.
func (bt *BTree) growRootFromLeafSplit(root *page.Page, leftCells, rightCells []splitCell) error {
	leftPage, err := bt.newPage(page.LeafIndex, root)
	if err != nil {
		return err
	}
	fillLeaf(leftPage, leftCells)
	bt.markDirty(leftPage)

	rightPage, err := bt.newPage(page.LeafIndex, root)
	if err != nil {
		return err
	}
	fillLeaf(rightPage, rightCells)
	bt.markDirty(rightPage)

	separator := leftCells[len(leftCells)-1]
	bt.resetPage(root, page.Interior)
	root.InsertCellAt(0, page.BuildInteriorIndexCell(uint32(leftPage.Number), separator.payloadLen, separator.onPage, separator.overflowPage))
	root.SetRightMostChild(uint32(rightPage.Number))
	bt.markDirty(root)
	return nil
}

// splitInterior splits a full interior page. Unlike a leaf split, the
// split-index cell is consumed: it is promoted whole to the parent and its
// child pointer becomes the left page's new right-most pointer, while the
// new right page inherits whatever right-most pointer the page had before
// the split.
func (bt *BTree) splitInterior(parent *page.Page, insertPos int, newCell splitCell, path []int) error {
	oldRightMost := parent.RightMostChild()
	combined := spliceCell(bt.readInteriorCellsForSplit(parent), insertPos, newCell)
	costs := make([]int, len(combined))
	for i, c := range combined {
		costs[i] = cellCost(c, true)
	}
	spIdx := chooseSplitIndex(costs)

	leftCells := combined[:spIdx]
	separator := combined[spIdx]
	rightCells := combined[spIdx+1:]

	if len(path) == 0 {
		return bt.growRootFromInteriorSplit(parent, leftCells, separator, rightCells, oldRightMost)
	}

	rightPage, err := bt.newPage(page.Interior, parent)
	if err != nil {
		return err
	}
	bt.resetPage(parent, page.Interior)
	fillInterior(parent, leftCells)
	parent.SetRightMostChild(separator.child)
	fillInterior(rightPage, rightCells)
	rightPage.SetRightMostChild(oldRightMost)
	bt.markDirty(parent)
	bt.markDirty(rightPage)

	return bt.propagateSeparator(path, parent.Number, uint32(rightPage.Number), separator)
}

func (bt *BTree) growRootFromInteriorSplit(root *page.Page, leftCells []splitCell, separator splitCell, rightCells []splitCell, oldRightMost uint32) error {
	leftPage, err := bt.newPage(page.Interior, root)
	if err != nil {
		return err
	}
	fillInterior(leftPage, leftCells)
	leftPage.SetRightMostChild(separator.child)
	bt.markDirty(leftPage)

	rightPage, err := bt.newPage(page.Interior, root)
	if err != nil {
		return err
	}
	fillInterior(rightPage, rightCells)
	rightPage.SetRightMostChild(oldRightMost)
	bt.markDirty(rightPage)

	bt.resetPage(root, page.Interior)
	root.InsertCellAt(0, page.BuildInteriorIndexCell(uint32(leftPage.Number), separator.payloadLen, separator.onPage, separator.overflowPage))
	root.SetRightMostChild(uint32(rightPage.Number))
	bt.markDirty(root)
	return nil
}

// interiorInsertPos finds where rec's separator belongs among an interior
// page's existing cells.
func (bt *BTree) interiorInsertPos(p *page.Page, rec *codec.Record) (int, error) {
	n := p.NumCells()
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		ic := bt.interiorCellAt(p, mid)
		cellRec, err := bt.recordFor(ic.OnPage, ic.PayloadLen, ic.OverflowPage)
		if err != nil {
			return 0, err
		}
		c, err := codec.CompareRecords(cellRec, rec, bt.pkCols)
		if err != nil {
			return 0, err
		}
		if c < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// propagateSeparator inserts a new separator into the parent of a page that
// just split into (preservedPageNo, newRightPageNo). preservedPageNo kept
// its original page number (that's the whole trick: it keeps every existing
// pointer into it valid without rewriting them), so whichever existing
// parent slot already referenced it -- a specific cell's child pointer, or
// the right-most pointer if it had no cell of its own -- must now point at
// newRightPageNo instead, and a fresh cell for preservedPageNo is inserted
// immediately before that slot.
func (bt *BTree) propagateSeparator(path []int, preservedPageNo int, newRightPageNo uint32, sep splitCell) error {
	if len(path) == 0 {
		return fmt.Errorf("btree: propagateSeparator called with no parent on path")
	}
	parent, err := bt.c.Get(path[len(path)-1], nil)
	if err != nil {
		return err
	}

	n := parent.NumCells()
	foundIdx := -1
	for i := 0; i < n; i++ {
		if bt.interiorCellAt(parent, i).Child == uint32(preservedPageNo) {
			foundIdx = i
			break
		}
	}

	insertPos := n
	if foundIdx >= 0 {
		insertPos = foundIdx
		cellStart := parent.CellPointer(foundIdx)
		codec.PutUint32(parent.Data[cellStart:], newRightPageNo)
	} else {
		parent.SetRightMostChild(newRightPageNo)
	}

	newCellBytes := page.BuildInteriorIndexCell(uint32(preservedPageNo), sep.payloadLen, sep.onPage, sep.overflowPage)
	if parent.Fits(len(newCellBytes)) {
		parent.InsertCellAt(insertPos, newCellBytes)
		bt.markDirty(parent)
		return nil
	}

	promoted := splitCell{payloadLen: sep.payloadLen, onPage: sep.onPage, overflowPage: sep.overflowPage, child: uint32(preservedPageNo)}
	return bt.splitInterior(parent, insertPos, promoted, path[:len(path)-1])
}
