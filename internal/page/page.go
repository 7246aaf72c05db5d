// Package page implements the SQLite b-tree page layout: the 8/12 byte
// header, the growing-upward cell-pointer array, and the growing-downward
// cell-content heap that shares a single page buffer.
package page

import "github.com/siara-cc/sqlite-blaster/internal/codec"

// Type is the one-byte page type tag stored at the page's header offset.
type Type byte

const (
	Interior  Type = 0x02
	LeafIndex Type = 0x0A
	LeafTable Type = 0x0D

	// Overflow is not a real on-disk page-type tag (overflow pages carry no
	// header at all, just a 4-byte next-page link followed by payload bytes)
	// but is used internally to tell New to skip btree-header initialization.
	Overflow Type = 0xFF
)

// InteriorHeaderLen and LeafHeaderLen are the byte lengths of the btree page
// header, excluding the 100-byte file header prefix that precedes page 1.
const (
	InteriorHeaderLen = 12
	LeafHeaderLen     = 8
)

// HeaderOffset returns where the btree page header begins within a page's
// raw bytes. Page 1 reserves the first 100 bytes for the file header.
func HeaderOffset(number int) int {
	if number == 1 {
		return 100
	}
	return 0
}

func headerLen(t Type) int {
	if t == Interior {
		return InteriorHeaderLen
	}
	return LeafHeaderLen
}

// Page is a single fixed-size page buffer with header and cell-pointer-array
// accessors layered over it. Data always holds the whole page, including the
// 100-byte file header prefix when Number == 1.
type Page struct {
	Number int
	Data   []byte
}

// New allocates a zeroed page of pageSize bytes and initializes its header
// for the given type with an empty cell-pointer array. Overflow pages carry
// no such header (they're just a next-page link plus raw payload bytes), so
// for those New only zero-fills and lets the caller write the link directly.
func New(number int, pageSize int, t Type) *Page {
	p := &Page{Number: number, Data: make([]byte, pageSize)}
	if t == Overflow {
		return p
	}
	ho := HeaderOffset(number)
	p.Data[ho] = byte(t)
	p.setCellsOffsetRaw(uint16(pageSize))
	return p
}

// OverflowNext returns the next-page link stored at the front of an overflow
// page (0 terminates the chain).
func (p *Page) OverflowNext() uint32 { return codec.Uint32(p.Data) }

// SetOverflowNext writes the next-page link at the front of an overflow page.
func (p *Page) SetOverflowNext(pageNo uint32) { codec.PutUint32(p.Data, pageNo) }

// OverflowBody returns the payload-carrying portion of an overflow page,
// everything after its 4-byte next-page link.
func (p *Page) OverflowBody() []byte { return p.Data[4:] }

// FromBytes wraps an already-populated page buffer.
func FromBytes(number int, data []byte) *Page {
	return &Page{Number: number, Data: data}
}

func (p *Page) ho() int { return HeaderOffset(p.Number) }

func (p *Page) Type() Type { return Type(p.Data[p.ho()]) }

func (p *Page) SetType(t Type) { p.Data[p.ho()] = byte(t) }

func (p *Page) IsInterior() bool { return p.Type() == Interior }

func (p *Page) FirstFreeblock() uint16 { return codec.Uint16(p.Data[p.ho()+1:]) }

func (p *Page) NumCells() int { return int(codec.Uint16(p.Data[p.ho()+3:])) }

func (p *Page) setNumCells(n int) { codec.PutUint16(p.Data[p.ho()+3:], uint16(n)) }

// CellsOffset returns the start of the cell-content heap, expanding the
// on-disk 0-means-65536 encoding.
func (p *Page) CellsOffset() int {
	v := codec.Uint16(p.Data[p.ho()+5:])
	if v == 0 {
		return 65536
	}
	return int(v)
}

func (p *Page) setCellsOffsetRaw(v uint16) { codec.PutUint16(p.Data[p.ho()+5:], v) }

func (p *Page) setCellsOffset(v int) {
	if v == 65536 {
		p.setCellsOffsetRaw(0)
		return
	}
	p.setCellsOffsetRaw(uint16(v))
}

func (p *Page) FragmentedFreeBytes() byte { return p.Data[p.ho()+7] }

// RightMostChild is valid only on interior pages.
func (p *Page) RightMostChild() uint32 { return codec.Uint32(p.Data[p.ho()+8:]) }

func (p *Page) SetRightMostChild(pageNo uint32) { codec.PutUint32(p.Data[p.ho()+8:], pageNo) }

func (p *Page) headerLen() int { return headerLen(p.Type()) }

func (p *Page) cellPointersStart() int { return p.ho() + p.headerLen() }

// CellPointer returns the absolute offset (within Data) of cell i.
func (p *Page) CellPointer(i int) int {
	off := p.cellPointersStart() + 2*i
	return int(codec.Uint16(p.Data[off:]))
}

func (p *Page) setCellPointer(i int, offset int) {
	off := p.cellPointersStart() + 2*i
	codec.PutUint16(p.Data[off:], uint16(offset))
}

// CellBytes returns the raw bytes from cell i's pointer to the end of the
// page. Callers further parse this via the leaf/interior cell codecs in
// cell.go, which read only as many bytes as the cell encodes.
func (p *Page) CellBytes(i int) []byte {
	start := p.CellPointer(i)
	return p.Data[start:]
}

// Fits reports whether a new cell of cellLen bytes can be added without
// colliding the cell-pointer array with the content heap.
func (p *Page) Fits(cellLen int) bool {
	pointerEnd := p.cellPointersStart() + (p.NumCells()+1)*2
	heapStart := p.CellsOffset() - cellLen
	return pointerEnd <= heapStart
}

// FreeBytes returns how much room remains between the pointer array and the
// content heap.
func (p *Page) FreeBytes() int {
	pointerEnd := p.cellPointersStart() + p.NumCells()*2
	return p.CellsOffset() - pointerEnd
}

// UsedHeapBytes returns the total bytes currently occupied by cell content.
func (p *Page) UsedHeapBytes(pageSize int) int {
	return pageSize - p.CellsOffset()
}

// InsertCellAt writes data into the content heap and splices a pointer to it
// into the cell-pointer array at position pos, shifting later pointers right.
// Callers must have checked Fits first.
func (p *Page) InsertCellAt(pos int, data []byte) {
	n := p.NumCells()
	for i := n; i > pos; i-- {
		p.setCellPointer(i, p.CellPointer(i-1))
	}
	newOffset := p.CellsOffset() - len(data)
	copy(p.Data[newOffset:], data)
	p.setCellPointer(pos, newOffset)
	p.setCellsOffset(newOffset)
	p.setNumCells(n + 1)
}

// RemoveCellAt deletes the pointer-array entry at pos, leaving the
// now-unreferenced bytes in the heap as garbage (this engine never
// compacts/reclaims free space; a page is rebuilt via Reset during a split).
func (p *Page) RemoveCellAt(pos int) {
	n := p.NumCells()
	for i := pos; i < n-1; i++ {
		p.setCellPointer(i, p.CellPointer(i+1))
	}
	p.setNumCells(n - 1)
}

// Reset re-initializes the page in place as an empty page of type t, keeping
// its Number and backing buffer. Used to rebuild the left half of a split
// page and to turn the root page into a fresh interior page on root growth.
func (p *Page) Reset(t Type, pageSize int) {
	ho := p.ho()
	for i := ho; i < ho+InteriorHeaderLen && i < len(p.Data); i++ {
		p.Data[i] = 0
	}
	p.SetType(t)
	p.setCellsOffset(pageSize)
	p.setNumCells(0)
}

// ReserveTrailingBytes shrinks the cell-content heap's ceiling by n bytes so
// InsertCellAt never writes a cell into the page's last n bytes. Callers invoke this once, immediately after New or
// Reset, while NumCells() is still 0 (e.g. to carve out the b-tree's own
// dirty-bit byte from the usable page).
func (p *Page) ReserveTrailingBytes(n int) {
	if n <= 0 {
		return
	}
	p.setCellsOffset(p.CellsOffset() - n)
}
