package command

import (
	"fmt"
	"os"
	"strings"
)

// InsertCommand inserts one or more CSV rows into a database created with
// CreateCommand.
//
//	sqliteblaster insert <db_name.db> <page_size>
//	    <total_col_count> <pk_col_count> <csv_1> ... <csv_n>
type InsertCommand struct{}

func (c *InsertCommand) Help() string {
	helpText := `
Usage: sqliteblaster insert <db_name.db> <page_size>
           <total_col_count> <pk_col_count> <csv_1> ... <csv_n>

Inserts into the Sqlite database created using "create" above, with
records in CSV format (page_size, total_col_count and pk_col_count
have to match). Every column is stored as text.
`
	return strings.TrimSpace(helpText)
}

func (c *InsertCommand) Synopsis() string {
	return "Inserts CSV rows into an existing database"
}

func (c *InsertCommand) Run(args []string) int {
	if len(args) < 5 {
		_, _ = fmt.Fprintln(os.Stderr, c.Help())
		return 1
	}
	path := args[0]
	pageSize, err := parseIntArg("page_size", args[1])
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}
	totalCols, err := parseIntArg("total_col_count", args[2])
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}
	pkCols, err := parseIntArg("pk_col_count", args[3])
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}
	rows := args[4:]

	if _, err := os.Stat(path); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "file does not exist")
		return 1
	}

	h, err := openHandle(path, pageSize, totalCols, pkCols, "", syntheticColumnNames(totalCols))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "insert failed: %s\n", err)
		return 1
	}
	defer h.Close()

	for _, row := range rows {
		cols := parseCSV(row)
		if len(cols) != totalCols {
			_, _ = fmt.Fprintf(os.Stderr, "row %q has %d columns, expected %d\n", row, len(cols), totalCols)
			return 1
		}
		var rec []byte
		if _, err := h.MakeNewRec(textValues(cols), nil, textTypes(totalCols), &rec); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "insert failed: %s\n", err)
			return 1
		}
		if _, err := h.PutRecord(rec); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "insert failed: %s\n", err)
			return 1
		}
	}

	if err := h.Close(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "insert failed: %s\n", err)
		return 1
	}

	fmt.Printf("Inserted %d row(s) into %s\n", len(rows), path)
	return 0
}
