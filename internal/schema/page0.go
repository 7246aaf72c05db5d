// Package schema builds the 100-byte SQLite file header and the single
// sqlite_master row that names this engine's one WITHOUT ROWID table,
// folding the teacher's two page-0 builders (main engine, appendix variant)
// into one routine since only the main engine's shape is in scope here.
package schema

import (
	"fmt"
	"strings"

	"github.com/siara-cc/sqlite-blaster/internal/codec"
	"github.com/siara-cc/sqlite-blaster/internal/page"
)

// appIDSignature marks files produced by this engine, the high byte (0xA5)
// distinguishing them from a stock sqlite3-written file while leaving the
// rest of the field free for future use.
const appIDSignature = 0xA5000000

// sqliteVersionNumber is carried verbatim from the original engine's
// constant; it identifies the SQLite version whose file-format behavior
// this writer targets, not the version of any library linked in.
// sqliteVersionValidFor is its sibling field (offset 92): the
// version-valid-for counter stock SQLite bumps on every header change. This
// writer changes no header field after creation except the page count at
// close, and writes this field once with the same fixed value the original
// engine uses.
const (
	sqliteVersionNumber   = 3016000
	sqliteVersionValidFor = 105
)

// schemaCookie and textEncoding mirror the fixed values every database this
// engine produces carries; neither changes across this writer's lifetime
// since there's exactly one schema version and one encoding (UTF-8).
const (
	schemaCookie = 4
	textEncoding = 1
)

// Config names the single table this database's page 0 describes.
type Config struct {
	PageSize      int
	ReservedBytes int
	RootPage      int
	TableName     string
	ColumnNames   []string
	PKColumns     int
}

// BuildPage0 allocates and fills page 1: the 100-byte file header followed
// by a freshly initialized leaf-table page holding one sqlite_master row
// for cfg.TableName. It does not write anything to disk; callers install the
// result via cache.SetStash.
func BuildPage0(cfg Config) (*page.Page, error) {
	p := page.New(1, cfg.PageSize, page.LeafTable)
	data := p.Data

	copy(data, "SQLite format 3\x00")

	pageSizeField := uint16(cfg.PageSize)
	if cfg.PageSize == 65536 {
		pageSizeField = 1
	}
	codec.PutUint16(data[16:], pageSizeField)

	data[18] = 1 // file format write version
	data[19] = 1 // file format read version
	data[20] = byte(cfg.ReservedBytes)
	data[21] = 64 // max embedded payload fraction
	data[22] = 32 // min embedded payload fraction
	data[23] = 32 // leaf payload fraction

	// 24..27 (file change counter) starts zeroed by page.New. The page-count
	// field at 28 is a placeholder until SetPageCount writes the authoritative
	// count at close; the root page always being allocated immediately after
	// page 0 (per spec.md's fixed RootPage=2), 2 is the same placeholder the
	// original engine writes ("TODO: Update during finalize").
	codec.PutUint32(data[28:], uint32(cfg.RootPage))
	codec.PutUint32(data[44:], schemaCookie)
	codec.PutUint32(data[56:], textEncoding)
	// 60 (user-version cookie): unused by this engine, left zero.
	codec.PutUint32(data[68:], appIDSignature)
	codec.PutUint32(data[92:], sqliteVersionValidFor)
	codec.PutUint32(data[96:], sqliteVersionNumber)

	createSQL := buildCreateTableSQL(cfg.TableName, cfg.ColumnNames, cfg.PKColumns)
	record, err := buildMasterRecord(cfg.TableName, cfg.RootPage, createSQL)
	if err != nil {
		return nil, err
	}

	p.ReserveTrailingBytes(cfg.ReservedBytes)
	cell := page.BuildLeafTableCell(1, record)
	if !p.Fits(len(cell)) {
		return nil, codec.ErrTooLong
	}
	p.InsertCellAt(0, cell)

	return p, nil
}

// SetPageCount writes the file's authoritative page count into the header
// field reserved for it. Called once at Close, per spec.md's "Lifecycle":
// sqlite_master's root column never changes after creation (the root page
// number is fixed for the database's life), so only this field needs
// updating at finalize time.
func SetPageCount(p *page.Page, totalPages int) {
	codec.PutUint32(p.Data[28:], uint32(totalPages))
}

// buildCreateTableSQL synthesizes the CREATE TABLE text stored in
// sqlite_master.sql, mirroring what the original engine assembles
// byte-by-byte in fill_page0: the full column list followed by a PRIMARY KEY
// clause naming the leading pkCols columns, WITHOUT ROWID.
func buildCreateTableSQL(tableName string, columns []string, pkCols int) string {
	if pkCols > len(columns) {
		pkCols = len(columns)
	}
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(tableName)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(", PRIMARY KEY (")
	b.WriteString(strings.Join(columns[:pkCols], ", "))
	b.WriteString(")) WITHOUT ROWID")
	return b.String()
}

// buildMasterRecord packs the one sqlite_master row this engine ever writes:
// (type="table", name=tbl, tbl_name=tbl, rootpage, sql=createSQL).
func buildMasterRecord(tableName string, rootPage int, createSQL string) ([]byte, error) {
	if tableName == "" {
		return nil, fmt.Errorf("schema: table name must not be empty")
	}
	b := codec.NewRecordBuilder(5)
	for _, v := range []string{"table", tableName, tableName} {
		if err := b.AppendValue(codec.TypeText, v); err != nil {
			return nil, err
		}
	}
	if err := b.AppendValue(codec.TypeInt, int64(rootPage)); err != nil {
		return nil, err
	}
	if err := b.AppendValue(codec.TypeText, createSQL); err != nil {
		return nil, err
	}
	return b.Bytes()
}

// ValidateHeader checks an already-read page 1 against the geometry a
// caller is opening it with: the magic signature at bytes 0-16 and the
// page-size field at bytes 16-18 must both match before anything else about
// the file is trusted. Grounded on the equivalent two-line check other
// readers in the pack perform before parsing further (e.g. the signature
// comparison in tinyrange-gosqlite's main.go).
func ValidateHeader(p *page.Page, pageSize int) error {
	if string(p.Data[0:16]) != "SQLite format 3\x00" {
		return fmt.Errorf("schema: missing 'SQLite format 3' signature")
	}
	wantField := uint16(pageSize)
	if pageSize == 65536 {
		wantField = 1
	}
	if codec.Uint16(p.Data[16:18]) != wantField {
		return fmt.Errorf("schema: on-disk page size field does not match configured page size %d", pageSize)
	}
	return nil
}

// ReadTableInfo decodes the sqlite_master leaf page's single row, returning
// the table name and current root page. Used by sqliteblaster.New when it
// opens an already-existing file.
func ReadTableInfo(p *page.Page) (tableName string, rootPage int, err error) {
	if p.NumCells() == 0 {
		return "", 0, fmt.Errorf("schema: sqlite_master has no rows")
	}
	cell := page.ParseLeafTableCell(p.CellBytes(0))
	rec, err := codec.ReadRecord(cell.Payload)
	if err != nil {
		return "", 0, err
	}
	nameVal, err := rec.Column(1)
	if err != nil {
		return "", 0, err
	}
	rootVal, err := rec.Column(3)
	if err != nil {
		return "", 0, err
	}
	return string(nameVal.Bytes), int(rootVal.Int), nil
}
