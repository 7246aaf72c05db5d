package btree

import (
	"github.com/siara-cc/sqlite-blaster/internal/codec"
	"github.com/siara-cc/sqlite-blaster/internal/page"
)

// writeOverflowChain spills remaining (the tail of a payload past its
// on-page portion) across as many freshly allocated overflow pages as it
// takes, each holding a 4-byte next-page link followed by up to U-4 bytes of
// payload, and returns the first page's number. pin is kept alive across
// every allocation so the cell this chain belongs to isn't evicted mid-write.
func (bt *BTree) writeOverflowChain(remaining []byte, pin *page.Page) (uint32, error) {
	if len(remaining) == 0 {
		return 0, nil
	}
	chunkSize := bt.usableSize() - 4
	var first uint32
	var prev *page.Page
	pos := 0
	for pos < len(remaining) {
		np, err := bt.newPage(page.Overflow, pin)
		if err != nil {
			return 0, err
		}
		if prev == nil {
			first = uint32(np.Number)
		} else {
			prev.SetOverflowNext(uint32(np.Number))
			bt.markDirty(prev)
		}
		take := chunkSize
		if pos+take > len(remaining) {
			take = len(remaining) - pos
		}
		copy(np.OverflowBody(), remaining[pos:pos+take])
		np.SetOverflowNext(0)
		bt.markDirty(np)
		pos += take
		prev = np
	}
	return first, nil
}

// assemblePayload reconstructs a cell's full payload given its on-page
// prefix, declared total length, and first overflow page (0 if none).
func (bt *BTree) assemblePayload(onPage []byte, payloadLen int, overflowPage uint32) ([]byte, error) {
	if overflowPage == 0 {
		return onPage, nil
	}
	buf := make([]byte, payloadLen)
	pos := copy(buf, onPage)
	chunkSize := bt.usableSize() - 4
	next := overflowPage
	for next != 0 {
		p, err := bt.c.Get(int(next), nil)
		if err != nil {
			return nil, err
		}
		take := chunkSize
		if pos+take > payloadLen {
			take = payloadLen - pos
		}
		if take < 0 {
			take = 0
		}
		copy(buf[pos:], p.OverflowBody()[:take])
		pos += take
		next = p.OverflowNext()
	}
	if pos != payloadLen {
		return nil, codec.ErrMalformed
	}
	return buf, nil
}
