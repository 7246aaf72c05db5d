package page

import "github.com/siara-cc/sqlite-blaster/internal/codec"

// overflowPtrLen is the width of the "next overflow page" / "first overflow
// page" link stored inline wherever the format calls for one.
const overflowPtrLen = 4

// BuildLeafIndexCell assembles a leaf-index cell: varint(payload length) ||
// on-page payload bytes || optional 4-byte first-overflow-page number.
func BuildLeafIndexCell(fullLen int, onPage []byte, overflowPage uint32) []byte {
	var lenBuf [codec.MaxVarintLen]byte
	ln := codec.WriteVarint(lenBuf[:], uint64(fullLen))

	size := ln + len(onPage)
	if overflowPage != 0 {
		size += overflowPtrLen
	}
	out := make([]byte, size)
	copy(out, lenBuf[:ln])
	copy(out[ln:], onPage)
	if overflowPage != 0 {
		codec.PutUint32(out[ln+len(onPage):], overflowPage)
	}
	return out
}

// LeafIndexCell is a parsed view of a leaf-index cell.
type LeafIndexCell struct {
	PayloadLen    int
	OnPage        []byte
	OverflowPage  uint32
	EncodedLength int
}

// ParseLeafIndexCell decodes a leaf-index cell from buf given the page's
// usable size (needed to know how many on-page bytes to expect).
func ParseLeafIndexCell(buf []byte, usableSize int) LeafIndexCell {
	fullLen64, n, _ := codec.ReadVarint(buf)
	fullLen := int(fullLen64)
	onPageLen, hasOverflow := LocalPayloadSize(usableSize, fullLen)

	c := LeafIndexCell{PayloadLen: fullLen, OnPage: buf[n : n+onPageLen]}
	pos := n + onPageLen
	if hasOverflow {
		c.OverflowPage = codec.Uint32(buf[pos:])
		pos += overflowPtrLen
	}
	c.EncodedLength = pos
	return c
}

// BuildInteriorIndexCell assembles an interior-index cell: 4-byte child page
// number || varint(payload length) || on-page payload || optional 4-byte
// first-overflow-page number.
func BuildInteriorIndexCell(child uint32, fullLen int, onPage []byte, overflowPage uint32) []byte {
	var lenBuf [codec.MaxVarintLen]byte
	ln := codec.WriteVarint(lenBuf[:], uint64(fullLen))

	size := 4 + ln + len(onPage)
	if overflowPage != 0 {
		size += overflowPtrLen
	}
	out := make([]byte, size)
	codec.PutUint32(out, child)
	copy(out[4:], lenBuf[:ln])
	copy(out[4+ln:], onPage)
	if overflowPage != 0 {
		codec.PutUint32(out[4+ln+len(onPage):], overflowPage)
	}
	return out
}

// InteriorIndexCell is a parsed view of an interior-index cell.
type InteriorIndexCell struct {
	Child         uint32
	PayloadLen    int
	OnPage        []byte
	OverflowPage  uint32
	EncodedLength int
}

// ParseInteriorIndexCell decodes an interior-index cell from buf.
func ParseInteriorIndexCell(buf []byte, usableSize int) InteriorIndexCell {
	child := codec.Uint32(buf)
	fullLen64, n, _ := codec.ReadVarint(buf[4:])
	fullLen := int(fullLen64)
	onPageLen, hasOverflow := LocalPayloadSize(usableSize, fullLen)

	c := InteriorIndexCell{Child: child, PayloadLen: fullLen, OnPage: buf[4+n : 4+n+onPageLen]}
	pos := 4 + n + onPageLen
	if hasOverflow {
		c.OverflowPage = codec.Uint32(buf[pos:])
		pos += overflowPtrLen
	}
	c.EncodedLength = pos
	return c
}

// BuildLeafTableCell assembles a leaf-table cell (used only for
// sqlite_master): varint(payload length) || varint(rowid) || payload. The
// sqlite_master row is small enough to never overflow in this engine.
func BuildLeafTableCell(rowid int64, payload []byte) []byte {
	var lenBuf, rowidBuf [codec.MaxVarintLen]byte
	ln := codec.WriteVarint(lenBuf[:], uint64(len(payload)))
	rn := codec.WriteVarint(rowidBuf[:], uint64(rowid))

	out := make([]byte, ln+rn+len(payload))
	copy(out, lenBuf[:ln])
	copy(out[ln:], rowidBuf[:rn])
	copy(out[ln+rn:], payload)
	return out
}

// LeafTableCell is a parsed view of a leaf-table cell.
type LeafTableCell struct {
	RowID         int64
	Payload       []byte
	EncodedLength int
}

// ParseLeafTableCell decodes a leaf-table cell from buf.
func ParseLeafTableCell(buf []byte) LeafTableCell {
	payloadLen64, n1, _ := codec.ReadVarint(buf)
	rowid, n2, _ := codec.ReadVarint(buf[n1:])
	pos := n1 + n2
	payloadLen := int(payloadLen64)
	return LeafTableCell{
		RowID:         int64(rowid),
		Payload:       buf[pos : pos+payloadLen],
		EncodedLength: pos + payloadLen,
	}
}
