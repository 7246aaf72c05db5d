package sqliteblaster

import "github.com/sirupsen/logrus"

// allowedPageSizes are the only page geometries the SQLite file format
// permits, per spec.md section 3 "Page".
var allowedPageSizes = map[int]bool{
	512: true, 1024: true, 2048: true, 4096: true, 8192: true,
	16384: true, 32768: true, 65536: true,
}

// reservedBytes is fixed at one trailing byte per page: the b-tree's own
// dirty-bit convention (internal/btree.dirtyByteMask) carved out of every
// page's usable size.
const reservedBytes = 1

// Config describes the single WITHOUT ROWID table a Handle manages,
// mirroring dynajoe-tinydb/engine.Config's constructor-parameter shape and
// the sqlite_index_blaster constructor's parameter list.
type Config struct {
	// PageSize must be one of {512, 1024, 2048, 4096, 8192, 16384, 32768,
	// 65536}.
	PageSize int

	// CacheSizeKB sizes the LRU buffer pool; at least two frames are always
	// kept regardless of how small this is.
	CacheSizeKB int

	// TotalColumns is the full column count of the table, including the
	// leading primary-key columns.
	TotalColumns int

	// PKColumns is how many of the leading columns form the sort key.
	PKColumns int

	// ColumnNames names every column in order; len(ColumnNames) must equal
	// TotalColumns. Used only to synthesize the CREATE TABLE text stored in
	// sqlite_master on first creation.
	ColumnNames []string

	// TableName is the table sqlite_master will list. Defaults to "t1" if
	// empty, matching the original engine's default.
	TableName string

	// Logger receives the Handle's structured Debug/Warn/Error entries
	// (opening, PutRecord, Get, Flush, Close). Defaults to a fresh
	// logrus.Logger at Info level.
	Logger *logrus.Logger
}

func (c Config) validate() error {
	if !allowedPageSizes[c.PageSize] {
		return newErr(CodeInvalidPageSize, nil)
	}
	if c.PKColumns <= 0 || c.PKColumns > c.TotalColumns {
		return newErr(CodeInvalidPageSize, nil)
	}
	if len(c.ColumnNames) != c.TotalColumns {
		return newErr(CodeInvalidPageSize, nil)
	}
	return nil
}

func (c Config) tableName() string {
	if c.TableName == "" {
		return "t1"
	}
	return c.TableName
}

func (c Config) cacheKB() int {
	if c.CacheSizeKB <= 0 {
		return 256
	}
	return c.CacheSizeKB
}
