// Package cache implements the LRU page buffer pool sitting between the
// b-tree and the backing file: it owns all disk I/O, tracks dirty frames via
// a caller-supplied predicate on the page bytes themselves, and batches
// writeback so a long run of inserts costs far fewer syscalls than pages
// touched.
package cache

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/siara-cc/sqlite-blaster/internal/page"
)

const (
	minBatchSize = 2
	maxBatchSize = 500
)

// IsChangedFunc reports whether a page's bytes carry the dirty bit. It is
// supplied by the caller (the b-tree) so the cache never has to know where
// in a page that bit lives.
type IsChangedFunc func(data []byte) bool

// MarkChangedFunc sets or clears a page's dirty bit in place.
type MarkChangedFunc func(data []byte, dirty bool)

type frame struct {
	page       *page.Page
	prev, next *frame
}

// Cache is the LRU buffer pool. It is not safe for concurrent use.
type Cache struct {
	f             *file
	pageSize      int
	reservedBytes int
	capacity      int

	frames   []frame
	occupied int
	byPage   map[int]*frame
	mruHead  *frame
	lruTail  *frame
	scanFrom *frame

	stash *page.Page // page 1: file header + sqlite_master, always resident

	newlyAllocated map[int]bool
	totalPages     int

	isChanged   IsChangedFunc
	markChanged MarkChangedFunc

	missesSinceFlush      int
	totalMissesSinceFlush int
	flushCount            int
	batchSize             int

	Hits, Misses int

	log *logrus.Entry
}

// Open opens or creates path, returning a Cache sized for cacheKB of
// buffer memory. For an existing file the returned stash is page 1 as read
// from disk, read eagerly because page 1's schema header must exist before
// any other page operation makes sense; for a new file it is nil and the
// caller installs a freshly built page 1 with SetStash.
func Open(path string, pageSize, reservedBytes, cacheKB int, isChanged IsChangedFunc, markChanged MarkChangedFunc, log *logrus.Entry) (*Cache, *page.Page, bool, error) {
	fl, isNew, err := openFile(path, pageSize)
	if err != nil {
		return nil, nil, false, err
	}

	capacity := cacheKB * 1024 / pageSize
	if capacity < 2 {
		capacity = 2
	}

	var stash *page.Page
	totalPages := fl.totalPages
	if isNew {
		totalPages = 1
	} else {
		data, err := fl.readPage(1)
		if err != nil {
			fl.close()
			return nil, nil, false, err
		}
		stash = page.FromBytes(1, data)
	}

	c := &Cache{
		f:              fl,
		pageSize:       pageSize,
		reservedBytes:  reservedBytes,
		capacity:       capacity,
		frames:         make([]frame, capacity),
		byPage:         make(map[int]*frame, capacity),
		stash:          stash,
		newlyAllocated: make(map[int]bool),
		totalPages:     totalPages,
		isChanged:      isChanged,
		markChanged:    markChanged,
		batchSize:      minBatchSize,
		log:            log,
	}
	return c, stash, isNew, nil
}

// SetStash installs the freshly built page 1 for a new database, after the
// cache itself has been constructed.
func (c *Cache) SetStash(p *page.Page) {
	c.stash = p
	c.newlyAllocated[1] = true
}

// TotalPages returns the current file page count, including pages allocated
// but not yet flushed.
func (c *Cache) TotalPages() int { return c.totalPages }

// Stash returns the always-resident page 1 (file header + sqlite_master).
// Callers use this to patch header fields (the page-count field at close)
// without a round trip through Get.
func (c *Cache) Stash() *page.Page { return c.stash }

func (c *Cache) moveToFront(fr *frame) {
	if fr == c.mruHead {
		return
	}
	if fr == c.lruTail {
		c.lruTail = fr.prev
	}
	if fr.prev != nil {
		fr.prev.next = fr.next
	}
	if fr.next != nil {
		fr.next.prev = fr.prev
	}
	fr.next = c.mruHead
	fr.prev = nil
	if c.mruHead != nil {
		c.mruHead.prev = fr
	}
	c.mruHead = fr
	if c.lruTail == nil {
		c.lruTail = fr
	}
}

func (c *Cache) appendTail(fr *frame) {
	fr.prev = c.lruTail
	fr.next = nil
	if c.lruTail != nil {
		c.lruTail.next = fr
	}
	c.lruTail = fr
	if c.mruHead == nil {
		c.mruHead = fr
	}
}

// Get returns the frame's page for pageNo, fetching it from disk on a miss.
// blockToKeep, if non-nil, is never chosen as an eviction victim: callers
// pass their currently pinned working page to avoid it being evicted out
// from under them mid-operation.
func (c *Cache) Get(pageNo int, blockToKeep *page.Page) (*page.Page, error) {
	if pageNo == 1 {
		return c.stash, nil
	}
	if fr, ok := c.byPage[pageNo]; ok {
		c.moveToFront(fr)
		c.Hits++
		return fr.page, nil
	}

	fr, err := c.acquireFrame(pageNo, blockToKeep)
	if err != nil {
		return nil, err
	}
	data, err := c.f.readPage(pageNo)
	if err != nil {
		return nil, err
	}
	fr.page = page.FromBytes(pageNo, data)
	c.byPage[pageNo] = fr
	return fr.page, nil
}

// acquireFrame returns a frame to bind to a new disk page number, evicting
// (and if necessary flushing) as needed. The frame is NOT yet registered in
// byPage or given a page; the caller fills both in.
func (c *Cache) acquireFrame(pageNo int, blockToKeep *page.Page) (*frame, error) {
	if c.occupied < c.capacity {
		fr := &c.frames[c.occupied]
		c.occupied++
		c.appendTail(fr)
		return fr, nil
	}

	c.Misses++
	c.missesSinceFlush++

	victim, err := c.findCleanVictim(blockToKeep)
	if err != nil {
		return nil, err
	}
	if victim == nil {
		if err := c.batchFlush(blockToKeep); err != nil {
			return nil, err
		}
		victim, err = c.findCleanVictim(blockToKeep)
		if err != nil {
			return nil, err
		}
		if victim == nil {
			return nil, fmt.Errorf("cache: no evictable frame among %d (all pinned or dirty after flush)", c.capacity)
		}
	}

	delete(c.byPage, victim.page.Number)
	c.moveToFront(victim)
	return victim, nil
}

// findCleanVictim scans backward from the last-free cursor (or the LRU
// tail) for a clean frame that isn't blockToKeep, within a bounded number of
// frames. Returns nil, nil if none is found.
func (c *Cache) findCleanVictim(blockToKeep *page.Page) (*frame, error) {
	start := c.scanFrom
	if start == nil {
		start = c.lruTail
	}
	cur := start
	for i := 0; cur != nil && i < c.capacity; i++ {
		if (blockToKeep == nil || cur.page != blockToKeep) && !c.isChanged(cur.page.Data) {
			c.scanFrom = cur.prev
			return cur, nil
		}
		cur = cur.prev
	}
	return nil, nil
}

// NewPage allocates the next page number in the file, binds it to a frame
// (evicting/flushing as needed, same as Get), and returns it freshly
// initialized as type t. The page is dirty from the moment it's handed
// back: it exists only in cache until the next flush.
func (c *Cache) NewPage(t page.Type, blockToKeep *page.Page) (*page.Page, error) {
	pageNo := c.totalPages + 1
	fr, err := c.acquireFrame(pageNo, blockToKeep)
	if err != nil {
		return nil, err
	}
	p := page.New(pageNo, c.pageSize, t)
	fr.page = p
	c.byPage[pageNo] = fr
	c.totalPages = pageNo
	c.newlyAllocated[pageNo] = true
	c.markChanged(p.Data, true)
	return p, nil
}

// batchFlush writes out every pending newly-allocated page (in ascending
// order, so the file stays contiguous) plus a self-tuning batch of the
// dirtiest end of the recency list, then clears their dirty bits. The batch
// size grows with the observed miss rate since the last flush, clamped to
// [2, 500].
func (c *Cache) batchFlush(blockToKeep *page.Page) error {
	c.flushCount++
	c.totalMissesSinceFlush += c.missesSinceFlush

	pagesToCheck := c.batchSize
	if c.flushCount > 0 {
		pagesToCheck = (c.totalMissesSinceFlush / c.flushCount) * 2
	}
	if pagesToCheck < minBatchSize {
		pagesToCheck = minBatchSize
	}
	if pagesToCheck > maxBatchSize {
		pagesToCheck = maxBatchSize
	}
	c.batchSize = pagesToCheck

	toWrite := make(map[int][]byte)
	for pg := range c.newlyAllocated {
		if pg == 1 {
			toWrite[1] = c.stash.Data
		} else if fr, ok := c.byPage[pg]; ok {
			toWrite[pg] = fr.page.Data
		}
	}

	cur := c.lruTail
	for i := 0; cur != nil && i < pagesToCheck; i, cur = i+1, cur.prev {
		if (blockToKeep == nil || cur.page != blockToKeep) && c.isChanged(cur.page.Data) {
			toWrite[cur.page.Number] = cur.page.Data
		}
	}

	if err := c.writeAscending(toWrite); err != nil {
		return err
	}
	for pg := range toWrite {
		if fr, ok := c.byPage[pg]; ok {
			c.markChanged(fr.page.Data, false)
		}
		delete(c.newlyAllocated, pg)
	}
	c.missesSinceFlush = 0
	return nil
}

func (c *Cache) writeAscending(pages map[int][]byte) error {
	ordered := make([]int, 0, len(pages))
	for pg := range pages {
		ordered = append(ordered, pg)
	}
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j-1] > ordered[j]; j-- {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
		}
	}
	for _, pg := range ordered {
		if err := c.f.writePage(pg, pages[pg]); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes every dirty frame and every pending newly-allocated page to
// disk, in ascending page-number order, and clears all dirty bits.
func (c *Cache) Flush() error {
	toWrite := make(map[int][]byte)
	for pg := range c.newlyAllocated {
		if fr, ok := c.byPage[pg]; ok {
			toWrite[pg] = fr.page.Data
		}
	}
	for pg, fr := range c.byPage {
		if c.isChanged(fr.page.Data) {
			toWrite[pg] = fr.page.Data
		}
	}
	if c.newlyAllocated[1] || c.isChanged(c.stash.Data) {
		toWrite[1] = c.stash.Data
	}

	if err := c.writeAscending(toWrite); err != nil {
		return err
	}
	for pg := range toWrite {
		if pg == 1 {
			c.markChanged(c.stash.Data, false)
			continue
		}
		if fr, ok := c.byPage[pg]; ok {
			c.markChanged(fr.page.Data, false)
		}
	}
	for pg := range c.newlyAllocated {
		delete(c.newlyAllocated, pg)
	}
	c.flushCount++
	return c.f.sync()
}

// Close flushes all dirty state and releases the backing file.
func (c *Cache) Close() error {
	if err := c.Flush(); err != nil {
		return err
	}
	return c.f.close()
}
