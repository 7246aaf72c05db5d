package btree

import (
	"fmt"

	"github.com/siara-cc/sqlite-blaster/internal/page"
)

// cursorFrame records an interior ancestor visited during descent and which
// child (by index, or NumCells() for the right-most) the cursor took.
type cursorFrame struct {
	pageNo int
	idx    int
}

// Cursor walks every row of a tree in ascending key order. It generalizes
// the single-parent-level restore the simplest cursors use to a full
// root-to-leaf path, so it works no matter how many levels the tree has
// grown to.
type Cursor struct {
	bt    *BTree
	stack []cursorFrame

	leaf    *page.Page
	pos     int
	started bool
	done    bool
}

// NewCursor returns a cursor over bt, positioned before the first row.
func (bt *BTree) NewCursor() *Cursor { return &Cursor{bt: bt} }

// Rewind resets the cursor to before the first row; Next must be called to
// reach it.
func (c *Cursor) Rewind() error {
	c.stack = c.stack[:0]
	c.leaf = nil
	c.pos = -1
	c.started = false
	c.done = false
	return nil
}

// descendLeftmost walks from pageNo down to its leftmost descendant leaf,
// pushing a frame for every interior page it passes through.
func (c *Cursor) descendLeftmost(pageNo int) error {
	for {
		p, err := c.bt.c.Get(pageNo, nil)
		if err != nil {
			return err
		}
		if !p.IsInterior() {
			c.leaf = p
			return nil
		}
		var child uint32
		if p.NumCells() > 0 {
			child = c.bt.interiorCellAt(p, 0).Child
		} else {
			child = p.RightMostChild()
		}
		c.stack = append(c.stack, cursorFrame{pageNo: pageNo, idx: 0})
		pageNo = int(child)
	}
}

// Next advances the cursor to the next row in key order, returning false
// once the tree is exhausted.
func (c *Cursor) Next() (bool, error) {
	if c.done {
		return false, nil
	}
	if !c.started {
		c.started = true
		if err := c.descendLeftmost(RootPage); err != nil {
			return false, err
		}
		if c.leaf.NumCells() == 0 {
			c.done = true
			return false, nil
		}
		c.pos = 0
		return true, nil
	}

	if c.pos+1 < c.leaf.NumCells() {
		c.pos++
		return true, nil
	}

	for len(c.stack) > 0 {
		top := &c.stack[len(c.stack)-1]
		p, err := c.bt.c.Get(top.pageNo, nil)
		if err != nil {
			return false, err
		}
		nextIdx := top.idx + 1
		if nextIdx > p.NumCells() {
			c.stack = c.stack[:len(c.stack)-1]
			continue
		}
		var child uint32
		if nextIdx < p.NumCells() {
			child = c.bt.interiorCellAt(p, nextIdx).Child
		} else {
			child = p.RightMostChild()
		}
		top.idx = nextIdx
		if err := c.descendLeftmost(int(child)); err != nil {
			return false, err
		}
		if c.leaf.NumCells() == 0 {
			continue
		}
		c.pos = 0
		return true, nil
	}

	c.done = true
	return false, nil
}

// Current returns the full packed row at the cursor's current position.
func (c *Cursor) Current() ([]byte, error) {
	if c.leaf == nil || c.pos < 0 || c.pos >= c.leaf.NumCells() {
		return nil, fmt.Errorf("btree: cursor not positioned on a row")
	}
	lc := c.bt.leafCellAt(c.leaf, c.pos)
	return c.bt.assemblePayload(lc.OnPage, lc.PayloadLen, lc.OverflowPage)
}
