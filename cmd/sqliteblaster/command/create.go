package command

import (
	"fmt"
	"os"
	"strings"
)

// CreateCommand creates a new database file for a single table.
//
//	sqliteblaster create <db_name.db> <page_size> <tbl_name>
//	    <total_col_count> <pk_col_count> <col_1>,<col_2>...<col_n>
type CreateCommand struct{}

func (c *CreateCommand) Help() string {
	helpText := `
Usage: sqliteblaster create <db_name.db> <page_size> <tbl_name>
           <total_col_count> <pk_col_count> <col_1>,<col_2>...<col_n>

Creates a Sqlite database with the given name and page size and the
given column names in CSV format. Overwrites any existing file.
`
	return strings.TrimSpace(helpText)
}

func (c *CreateCommand) Synopsis() string {
	return "Creates a database file for a single WITHOUT ROWID table"
}

func (c *CreateCommand) Run(args []string) int {
	if len(args) != 6 {
		_, _ = fmt.Fprintln(os.Stderr, c.Help())
		return 1
	}
	path := args[0]
	tableName := args[2]

	pageSize, err := parseIntArg("page_size", args[1])
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}
	totalCols, err := parseIntArg("total_col_count", args[3])
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}
	pkCols, err := parseIntArg("pk_col_count", args[4])
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}

	columnNames := parseCSV(args[5])
	if len(columnNames) != totalCols {
		_, _ = fmt.Fprintf(os.Stderr, "expected %d column names, got %d\n", totalCols, len(columnNames))
		return 1
	}

	_ = os.Remove(path)

	h, err := openHandle(path, pageSize, totalCols, pkCols, tableName, columnNames)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "create failed: %s\n", err)
		return 1
	}
	if err := h.Close(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "create failed: %s\n", err)
		return 1
	}

	fmt.Printf("Created %s: table %s, page size %d, %d columns (%d key)\n",
		path, tableName, pageSize, totalCols, pkCols)
	return 0
}
