// Package common holds the row handling shared by the adapters that sit on
// database/sql.
package common

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/redbco/sqlbridge/pkg/rowvalue"
)

// Queryer is satisfied by *sql.DB and *sql.Conn.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// CellFunc wraps one scanned value in a backend-specific decoder.
// databaseType is the upper-cased driver type name of the column, or ""
// when the driver does not report one.
type CellFunc func(v interface{}, databaseType string) rowvalue.Cell

// ColumnNamer maps driver column names to the names used in result objects.
type ColumnNamer func(columns []string) []string

// SourceColumnNames keeps the names the driver reports.
func SourceColumnNames(columns []string) []string {
	return columns
}

// SyntheticColumnNames replaces every name with column_<1-based index>.
func SyntheticColumnNames(columns []string) []string {
	names := make([]string, len(columns))
	for i := range columns {
		names[i] = fmt.Sprintf("column_%d", i+1)
	}
	return names
}

// QueryObjects sends query unchanged, scans every row into interface{}
// destinations and normalizes them. Errors are returned unwrapped so each
// adapter can attach its own diagnostics.
func QueryObjects(ctx context.Context, q Queryer, query string, cell CellFunc, namer ColumnNamer) ([]*rowvalue.Object, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if namer == nil {
		namer = SourceColumnNames
	}
	names := namer(columns)
	types := columnTypeNames(rows, len(columns))

	results := make([]*rowvalue.Object, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range columns {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		cells := make([]rowvalue.Cell, len(values))
		for i, v := range values {
			cells[i] = cell(v, types[i])
		}
		results = append(results, rowvalue.NormalizeRow(names, cells))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func columnTypeNames(rows *sql.Rows, n int) []string {
	names := make([]string, n)
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return names
	}
	for i, ct := range columnTypes {
		if i < n {
			names[i] = strings.ToUpper(ct.DatabaseTypeName())
		}
	}
	return names
}

// AcquireConn takes a connection from the pool, waiting at most timeout.
// A zero timeout waits as long as ctx allows.
func AcquireConn(ctx context.Context, db *sql.DB, timeout time.Duration) (*sql.Conn, error) {
	if timeout <= 0 {
		return db.Conn(ctx)
	}
	acquireCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return db.Conn(acquireCtx)
}

// NativeCell is the CellFunc for drivers that only return plain Go values.
func NativeCell(v interface{}, _ string) rowvalue.Cell {
	return rowvalue.NativeCell{V: v}
}
