package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/siara-cc/sqlite-blaster/internal/btree"
	"github.com/siara-cc/sqlite-blaster/internal/codec"
	"github.com/siara-cc/sqlite-blaster/internal/page"
)

func testCfg() Config {
	return Config{
		PageSize:      4096,
		ReservedBytes: 1,
		RootPage:      btree.RootPage,
		TableName:     "rows",
		ColumnNames:   []string{"id", "val"},
		PKColumns:     1,
	}
}

func TestBuildPage0HeaderFields(t *testing.T) {
	r := require.New(t)
	p, err := BuildPage0(testCfg())
	r.NoError(err)

	r.Equal("SQLite format 3\x00", string(p.Data[0:16]))
	r.Equal(byte(1), p.Data[20], "reserved-bytes field")
	r.Equal(uint32(105), codec.Uint32(p.Data[92:96]), "version-valid-for field")
	r.Equal(uint32(3016000), codec.Uint32(p.Data[96:100]), "SQLite version number field")
	r.Equal(1, p.NumCells())
}

func TestBuildPage0LargePageSizeEncodedAsOne(t *testing.T) {
	r := require.New(t)
	cfg := testCfg()
	cfg.PageSize = 65536
	p, err := BuildPage0(cfg)
	r.NoError(err)
	r.Equal(byte(0), p.Data[16])
	r.Equal(byte(1), p.Data[17])
}

func TestBuildPage0RoundTripsThroughReadTableInfo(t *testing.T) {
	r := require.New(t)
	cfg := testCfg()
	p, err := BuildPage0(cfg)
	r.NoError(err)

	name, root, err := ReadTableInfo(p)
	r.NoError(err)
	r.Equal("rows", name)
	r.Equal(btree.RootPage, root)
}

func TestBuildPage0DefaultTableNameRejectsEmpty(t *testing.T) {
	r := require.New(t)
	cfg := testCfg()
	cfg.TableName = ""
	_, err := BuildPage0(cfg)
	r.Error(err)
}

func TestBuildPage0CreateTableSQLNamesPrimaryKey(t *testing.T) {
	r := require.New(t)
	cfg := testCfg()
	cfg.ColumnNames = []string{"id", "ts", "val"}
	cfg.PKColumns = 2
	p, err := BuildPage0(cfg)
	r.NoError(err)

	_, root, err := ReadTableInfo(p)
	r.NoError(err)
	r.Equal(cfg.RootPage, root)

	cell := page.ParseLeafTableCell(p.CellBytes(0))
	rec, err := codec.ReadRecord(cell.Payload)
	r.NoError(err)
	sqlVal, err := rec.Column(4)
	r.NoError(err)
	r.Equal("CREATE TABLE rows (id, ts, val, PRIMARY KEY (id, ts)) WITHOUT ROWID", string(sqlVal.Bytes))
}

func TestValidateHeaderAcceptsMatchingPageSize(t *testing.T) {
	r := require.New(t)
	p, err := BuildPage0(testCfg())
	r.NoError(err)
	r.NoError(ValidateHeader(p, testCfg().PageSize))
}

func TestValidateHeaderRejectsMismatchedPageSize(t *testing.T) {
	r := require.New(t)
	p, err := BuildPage0(testCfg())
	r.NoError(err)
	r.Error(ValidateHeader(p, 8192))
}

func TestValidateHeaderRejectsBadSignature(t *testing.T) {
	r := require.New(t)
	p, err := BuildPage0(testCfg())
	r.NoError(err)
	copy(p.Data[0:16], "not a real sqlite")
	r.Error(ValidateHeader(p, testCfg().PageSize))
}

func TestSetPageCountOverwritesPlaceholder(t *testing.T) {
	r := require.New(t)
	p, err := BuildPage0(testCfg())
	r.NoError(err)

	SetPageCount(p, 57)
	r.Equal(uint32(57), codec.Uint32(p.Data[28:32]), "page-count field")

	name, _, err := ReadTableInfo(p)
	r.NoError(err)
	r.Equal("rows", name)
}
