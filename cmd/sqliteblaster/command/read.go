package command

import (
	"fmt"
	"os"
	"strings"
)

// ReadCommand looks up a single row by its primary key columns and prints
// all of its columns, comma-separated.
//
//	sqliteblaster read <db_name.db> <page_size> <total_col_count>
//	    <pk_col_count> <pk_val_1>,<pk_val_2>...<pk_val_n>
type ReadCommand struct{}

func (c *ReadCommand) Help() string {
	helpText := `
Usage: sqliteblaster read <db_name.db> <page_size> <total_col_count>
           <pk_col_count> <pk_val_1>,<pk_val_2>...<pk_val_n>

Searches <db_name.db> for the given key and prints the row, or
"Not found" if no row has that key.
`
	return strings.TrimSpace(helpText)
}

func (c *ReadCommand) Synopsis() string {
	return "Reads a single row by primary key"
}

func (c *ReadCommand) Run(args []string) int {
	if len(args) != 5 {
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

	if _, err := os.Stat(path); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "file does not exist")
		return 1
	}

	pkVals := parseCSV(args[4])
	if len(pkVals) != pkCols {
		_, _ = fmt.Fprintf(os.Stderr, "expected %d key values, got %d\n", pkCols, len(pkVals))
		return 1
	}

	h, err := openHandle(path, pageSize, totalCols, pkCols, "", syntheticColumnNames(totalCols))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "read failed: %s\n", err)
		return 1
	}
	defer h.Close()

	var key []byte
	if _, err := h.MakeNewRec(textValues(pkVals), nil, textTypes(pkCols), &key); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "read failed: %s\n", err)
		return 1
	}

	var row []byte
	found, err := h.Get(key, &row)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "read failed: %s\n", err)
		return 1
	}
	if !found {
		fmt.Println("Not found")
		return 0
	}

	cols := make([]string, totalCols)
	for i := 0; i < totalCols; i++ {
		var col []byte
		n, err := h.ReadCol(i, row, &col)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "read failed: %s\n", err)
			return 1
		}
		cols[i] = string(col[:n])
	}
	fmt.Println(strings.Join(cols, ","))
	return 0
}
