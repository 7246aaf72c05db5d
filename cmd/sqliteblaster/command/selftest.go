package command

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/siara-cc/sqlite-blaster/internal/codec"

	sqliteblaster "github.com/siara-cc/sqlite-blaster"
)

// SelftestCommand runs a small battery of create/insert/read round trips
// across every legal page size, the way the original utility's "-t" flag
// ran its pre-defined tests.
type SelftestCommand struct{}

func (c *SelftestCommand) Help() string {
	return strings.TrimSpace(`
Usage: sqliteblaster selftest

Runs pre-defined round-trip tests across every legal page size and
reports pass/fail to stdout.
`)
}

func (c *SelftestCommand) Synopsis() string {
	return "Runs pre-defined round-trip tests"
}

func (c *SelftestCommand) Run(args []string) int {
	dir, err := os.MkdirTemp("", "sqliteblaster-selftest-")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "selftest failed: %s\n", err)
		return 1
	}
	defer os.RemoveAll(dir)

	pageSizes := []int{512, 1024, 2048, 4096, 8192, 16384, 32768, 65536}
	for _, ps := range pageSizes {
		if err := c.roundTrip(filepath.Join(dir, fmt.Sprintf("selftest-%d.db", ps)), ps); err != nil {
			fmt.Printf("page_size=%-6d FAIL: %s\n", ps, err)
			return 1
		}
		fmt.Printf("page_size=%-6d OK\n", ps)
	}
	return 0
}

func (c *SelftestCommand) roundTrip(path string, pageSize int) error {
	h, err := sqliteblaster.New(path, sqliteblaster.Config{
		PageSize:     pageSize,
		TotalColumns: 2,
		PKColumns:    1,
		ColumnNames:  []string{"id", "val"},
		TableName:    "selftest",
	})
	if err != nil {
		return err
	}
	defer h.Close()

	const n = 100
	for i := 0; i < n; i++ {
		var rec []byte
		if _, err := h.MakeNewRec(
			[]interface{}{int64(i), fmt.Sprintf("value-%d", i)},
			nil,
			[]codec.ColumnType{codec.TypeInt, codec.TypeText},
			&rec,
		); err != nil {
			return err
		}
		if _, err := h.PutRecord(rec); err != nil {
			return err
		}
	}

	for i := 0; i < n; i++ {
		var key []byte
		if _, err := h.MakeNewRec([]interface{}{int64(i)}, nil, []codec.ColumnType{codec.TypeInt}, &key); err != nil {
			return err
		}
		var row []byte
		found, err := h.Get(key, &row)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("key %d not found after insert", i)
		}
		var col []byte
		n2, err := h.ReadCol(1, row, &col)
		if err != nil {
			return err
		}
		want := fmt.Sprintf("value-%d", i)
		if string(col[:n2]) != want {
			return fmt.Errorf("key %d: got %q, want %q", i, string(col[:n2]), want)
		}
	}

	return h.Close()
}
