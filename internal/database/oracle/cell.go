package oracle

import (
	"strconv"

	"github.com/godror/godror"

	"github.com/redbco/sqlbridge/pkg/rowvalue"
)

// cell decodes godror values. NUMBER columns may arrive as godror.Number,
// which holds the decimal text.
type cell struct {
	v interface{}
}

func newCell(v interface{}, _ string) rowvalue.Cell {
	return cell{v: v}
}

func (c cell) Int() (int64, bool) {
	if n, ok := c.v.(godror.Number); ok {
		i, err := strconv.ParseInt(string(n), 10, 64)
		return i, err == nil
	}
	return rowvalue.NativeCell{V: c.v}.Int()
}

func (c cell) Text() (string, bool) {
	if _, ok := c.v.(godror.Number); ok {
		return "", false
	}
	return rowvalue.NativeCell{V: c.v}.Text()
}

func (c cell) Bool() (bool, bool) {
	return rowvalue.NativeCell{V: c.v}.Bool()
}

func (c cell) Float() (float64, bool) {
	if n, ok := c.v.(godror.Number); ok {
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	}
	return rowvalue.NativeCell{V: c.v}.Float()
}
