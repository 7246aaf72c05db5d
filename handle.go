// Package sqliteblaster is an embeddable writer that produces files
// byte-compatible with the SQLite 3 database format, optimized for
// high-throughput inserts and updates into a single WITHOUT ROWID indexed
// table. It trades journaling, WAL, and atomic cross-page commit for raw
// insert/update speed: the file a Handle produces is always something stock
// SQLite can open and read, but a crash mid-write is not guaranteed
// recoverable.
//
// A Handle is not safe for concurrent use; callers sharing one across
// goroutines must serialize access externally.
package sqliteblaster

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/siara-cc/sqlite-blaster/internal/btree"
	"github.com/siara-cc/sqlite-blaster/internal/cache"
	"github.com/siara-cc/sqlite-blaster/internal/codec"
	"github.com/siara-cc/sqlite-blaster/internal/schema"
)

// Handle is the public entry point: one open database file, its page cache,
// and the b-tree over its single table.
type Handle struct {
	cfg    Config
	cache  *cache.Cache
	bt     *btree.BTree
	log    *logrus.Entry
	id     string
	closed bool
}

// New creates or opens a database file at path for the table described by
// cfg. Opening an existing file checks its header against cfg.PageSize and
// leaves its sqlite_master row as it is; an on-disk table name that differs
// from cfg.TableName is only logged as a warning.
func New(path string, cfg Config) (*Handle, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	entry := logger.WithFields(logrus.Fields{"handle": id, "table": cfg.tableName()})

	c, stash, isNew, err := cache.Open(path, cfg.PageSize, reservedBytes, cfg.cacheKB(), btree.IsChanged, btree.MarkChanged, entry)
	if err != nil {
		return nil, newErr(CodeIo, err)
	}

	bt := btree.New(c, cfg.PageSize, reservedBytes, cfg.PKColumns, entry)
	h := &Handle{cfg: cfg, cache: c, bt: bt, log: entry, id: id}

	if isNew {
		entry.Debug("initializing new database")
		p0, err := schema.BuildPage0(schema.Config{
			PageSize:      cfg.PageSize,
			ReservedBytes: reservedBytes,
			RootPage:      btree.RootPage,
			TableName:     cfg.tableName(),
			ColumnNames:   cfg.ColumnNames,
			PKColumns:     cfg.PKColumns,
		})
		if err != nil {
			c.Close()
			return nil, newErr(CodeTooLong, err)
		}
		c.SetStash(p0)
		if err := bt.InitRoot(); err != nil {
			c.Close()
			return nil, newErr(CodeIo, err)
		}
	} else {
		if err := schema.ValidateHeader(stash, cfg.PageSize); err != nil {
			entry.WithError(err).Warn("on-disk header does not match Config.PageSize")
			c.Close()
			return nil, newErr(CodeInvalidPageSize, err)
		}
		tableName, _, err := schema.ReadTableInfo(stash)
		if err != nil {
			c.Close()
			return nil, newErr(CodeMalformed, err)
		}
		if tableName != cfg.tableName() {
			entry.WithFields(logrus.Fields{"onDisk": tableName, "requested": cfg.tableName()}).
				Warn("opened database names a different table than Config.TableName")
		}
	}

	return h, nil
}

func (h *Handle) checkOpen() error {
	if h.closed {
		return newErr(CodeClosed, nil)
	}
	return nil
}

// PutRecord inserts a fully packed row (its leading PKColumns columns acting
// as the sort key), or overwrites the existing row with the same key. It
// reports whether a row with this key already existed.
func (h *Handle) PutRecord(record []byte) (exists bool, err error) {
	if err := h.checkOpen(); err != nil {
		return false, err
	}
	exists, err = h.bt.Put(record)
	if err != nil {
		h.log.WithError(err).Warn("put_record failed")
		return false, classifyErr(err)
	}
	h.log.WithFields(logrus.Fields{"bytes": len(record), "existed": exists}).Debug("put_record")
	return exists, nil
}

// Put merges a packed key record (PKColumns columns) with a packed value
// record (the remaining TotalColumns-PKColumns columns) into one full row
// and stores it, the split-buffer convenience form of PutRecord.
func (h *Handle) Put(key, value []byte) (exists bool, err error) {
	if err := h.checkOpen(); err != nil {
		return false, err
	}
	merged, err := mergeKeyValue(key, value)
	if err != nil {
		return false, classifyErr(err)
	}
	return h.PutRecord(merged)
}

// Get looks up a row by its packed key record and reports whether it was
// found, writing the full packed row to *out on a hit.
func (h *Handle) Get(key []byte, out *[]byte) (found bool, err error) {
	if err := h.checkOpen(); err != nil {
		return false, err
	}
	row, found, err := h.bt.Get(key, true)
	if err != nil {
		h.log.WithError(err).Warn("get failed")
		return false, classifyErr(err)
	}
	if !found {
		return false, nil
	}
	*out = row
	return true, nil
}

// ReadCol decodes column `which` of an already-fetched packed row into its
// raw on-disk bytes (the fixed-width encoding for numerics, the verbatim
// bytes for text/blob), writing them to *out and returning their length.
func (h *Handle) ReadCol(which int, record []byte, out *[]byte) (n int, err error) {
	rec, err := codec.ReadRecord(record)
	if err != nil {
		return 0, newErr(CodeMalformed, err)
	}
	if which < 0 || which >= rec.NumColumns() {
		return 0, newErr(CodeTypeMismatch, fmt.Errorf("column %d out of range (0..%d)", which, rec.NumColumns()-1))
	}
	code := rec.Code(which)
	v, err := rec.Column(which)
	if err != nil {
		return 0, newErr(CodeMalformed, err)
	}
	buf := make([]byte, codec.DataLen(code))
	codec.WriteColumn(buf, code, v)
	*out = buf
	return len(buf), nil
}

// MakeNewRec packs values (typed per types[i], optionally length-limited for
// text/blob columns via lens) into a record buffer suitable for PutRecord or
// as one half of Put's key/value split.
func (h *Handle) MakeNewRec(values []interface{}, lens []int, types []codec.ColumnType, out *[]byte) (n int, err error) {
	if len(values) != len(types) {
		return 0, newErr(CodeTypeMismatch, fmt.Errorf("values/types length mismatch: %d vs %d", len(values), len(types)))
	}
	b := codec.NewRecordBuilder(len(values))
	for i, v := range values {
		v := truncateForLen(v, lens, i, types[i])
		if err := b.AppendValue(types[i], v); err != nil {
			return 0, newErr(CodeTypeMismatch, err)
		}
	}
	buf, err := b.Bytes()
	if err != nil {
		return 0, newErr(CodeTooLong, err)
	}
	*out = buf
	return len(buf), nil
}

func truncateForLen(v interface{}, lens []int, i int, typ codec.ColumnType) interface{} {
	if lens == nil || i >= len(lens) || lens[i] < 0 {
		return v
	}
	if typ != codec.TypeText && typ != codec.TypeBlob {
		return v
	}
	switch x := v.(type) {
	case string:
		if lens[i] < len(x) {
			return x[:lens[i]]
		}
	case []byte:
		if lens[i] < len(x) {
			return x[:lens[i]]
		}
	}
	return v
}

// mergeKeyValue splices a packed key record's columns followed by a packed
// value record's columns into one combined record, preserving each column's
// original serial type code exactly.
func mergeKeyValue(key, value []byte) ([]byte, error) {
	keyRec, err := codec.ReadRecord(key)
	if err != nil {
		return nil, err
	}
	valRec, err := codec.ReadRecord(value)
	if err != nil {
		return nil, err
	}
	b := codec.NewRecordBuilder(keyRec.NumColumns() + valRec.NumColumns())
	for i := 0; i < keyRec.NumColumns(); i++ {
		v, err := keyRec.Column(i)
		if err != nil {
			return nil, err
		}
		b.AppendRaw(keyRec.Code(i), v)
	}
	for i := 0; i < valRec.NumColumns(); i++ {
		v, err := valRec.Column(i)
		if err != nil {
			return nil, err
		}
		b.AppendRaw(valRec.Code(i), v)
	}
	return b.Bytes()
}

// CacheStats reports the page cache's cumulative hit and miss counters for
// this handle. Per-handle, not process-global, per spec.md's Design Notes.
func (h *Handle) CacheStats() (hits, misses int) {
	return h.cache.Hits, h.cache.Misses
}

// Flush writes every dirty page and pending new-page allocation to disk
// without closing the handle.
func (h *Handle) Flush() error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	if err := h.cache.Flush(); err != nil {
		h.log.WithError(err).Error("flush failed")
		return newErr(CodeIo, err)
	}
	h.log.Debug("flush")
	return nil
}

// Close finalizes the file: every dirty frame is flushed, the file-header's
// page-count field is stamped with the final page count, and the backing
// file is released. Close is idempotent; calling it twice is a no-op
// returning nil the second time.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	schema.SetPageCount(h.cache.Stash(), h.cache.TotalPages())
	btree.MarkChanged(h.cache.Stash().Data, true)
	if err := h.cache.Close(); err != nil {
		h.log.WithError(err).Error("close failed")
		return newErr(CodeIo, err)
	}
	h.log.Debug("closed")
	return nil
}

// classifyErr maps lower-layer sentinel errors onto this package's Code
// taxonomy; anything unrecognized is reported as Io, matching spec.md
// section 7's propagation policy ("returned verbatim" is implemented here
// as "re-tagged with the closest Code, cause preserved via Unwrap").
func classifyErr(err error) error {
	switch err {
	case codec.ErrTooLong:
		return newErr(CodeTooLong, err)
	case codec.ErrMalformed:
		return newErr(CodeMalformed, err)
	default:
		return newErr(CodeIo, err)
	}
}
