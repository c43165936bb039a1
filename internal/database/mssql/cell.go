package mssql

import (
	"strconv"
	"strings"

	"github.com/redbco/sqlbridge/pkg/rowvalue"
)

// cell decodes go-mssqldb values. Character data arrives as string; DECIMAL,
// NUMERIC and MONEY arrive as []byte holding the decimal text, and other
// []byte values are binary.
type cell struct {
	v interface{}
}

func newCell(v interface{}, _ string) rowvalue.Cell {
	return cell{v: v}
}

func (c cell) Int() (int64, bool) {
	return rowvalue.NativeCell{V: c.v}.Int()
}

func (c cell) Text() (string, bool) {
	s, ok := c.v.(string)
	return s, ok
}

func (c cell) Bool() (bool, bool) {
	return rowvalue.NativeCell{V: c.v}.Bool()
}

func (c cell) Float() (float64, bool) {
	if b, ok := c.v.([]byte); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return rowvalue.NativeCell{V: c.v}.Float()
}
