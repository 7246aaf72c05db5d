// Package command implements the sqliteblaster CLI subcommands: create,
// insert, read, and selftest. None of them detect column data types — every
// column is treated as text, matching the original test utility's
// documented behavior ("-r and -i do not detect data types").
package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/siara-cc/sqlite-blaster/internal/codec"

	sqliteblaster "github.com/siara-cc/sqlite-blaster"
)

func parseCSV(s string) []string {
	return strings.Split(s, ",")
}

func parseIntArg(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	return n, nil
}

func textTypes(n int) []codec.ColumnType {
	types := make([]codec.ColumnType, n)
	for i := range types {
		types[i] = codec.TypeText
	}
	return types
}

func textValues(cols []string) []interface{} {
	vals := make([]interface{}, len(cols))
	for i, c := range cols {
		vals[i] = c
	}
	return vals
}

func syntheticColumnNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("c%d", i)
	}
	return names
}

func openHandle(path string, pageSize, totalCols, pkCols int, tableName string, columnNames []string) (*sqliteblaster.Handle, error) {
	return sqliteblaster.New(path, sqliteblaster.Config{
		PageSize:     pageSize,
		TotalColumns: totalCols,
		PKColumns:    pkCols,
		ColumnNames:  columnNames,
		TableName:    tableName,
	})
}
