package rowvalue

import (
	"database/sql"
	"math"
	"unicode/utf8"
)

// Cell is one native result cell. Each method is a decode attempt that
// reports false when the cell cannot be read as that type.
type Cell interface {
	Int() (int64, bool)
	Text() (string, bool)
	Bool() (bool, bool)
	Float() (float64, bool)
}

// Normalize converts a cell by trying, in order, an integer, a string, a
// boolean and a float decode. A cell that fails all four becomes Null.
// Floats that are NaN or infinite become 0.
func Normalize(c Cell) Value {
	if c == nil {
		return Null()
	}
	if i, ok := c.Int(); ok {
		return Number(float64(i))
	}
	if s, ok := c.Text(); ok {
		return String(s)
	}
	if b, ok := c.Bool(); ok {
		return Bool(b)
	}
	if f, ok := c.Float(); ok {
		return Number(clampFloat(f))
	}
	return Null()
}

// NormalizeRow builds an object from parallel column and cell slices.
// Missing cells are Null.
func NormalizeRow(columns []string, cells []Cell) *Object {
	obj := NewObject(len(columns))
	for i, col := range columns {
		var c Cell
		if i < len(cells) {
			c = cells[i]
		}
		obj.Set(col, Normalize(c))
	}
	return obj
}

func clampFloat(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// NativeCell decodes the plain Go values produced by database/sql drivers and
// by pgx's Values. Types it does not recognize fail every attempt.
type NativeCell struct {
	V interface{}
}

func (c NativeCell) Int() (int64, bool) {
	switch v := c.V.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return uintToInt(uint64(v))
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return uintToInt(v)
	case sql.NullInt64:
		return v.Int64, v.Valid
	case sql.NullInt32:
		return int64(v.Int32), v.Valid
	case sql.NullInt16:
		return int64(v.Int16), v.Valid
	}
	return 0, false
}

func uintToInt(u uint64) (int64, bool) {
	if u > math.MaxInt64 {
		return 0, false
	}
	return int64(u), true
}

func (c NativeCell) Text() (string, bool) {
	switch v := c.V.(type) {
	case string:
		return v, true
	case []byte:
		if v != nil && utf8.Valid(v) {
			return string(v), true
		}
	case sql.RawBytes:
		if v != nil && utf8.Valid(v) {
			return string(v), true
		}
	case sql.NullString:
		return v.String, v.Valid
	}
	return "", false
}

func (c NativeCell) Bool() (bool, bool) {
	switch v := c.V.(type) {
	case bool:
		return v, true
	case sql.NullBool:
		return v.Bool, v.Valid
	}
	return false, false
}

func (c NativeCell) Float() (float64, bool) {
	switch v := c.V.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case uint64:
		// only reached when the value overflows int64
		return float64(v), true
	case uint:
		return float64(v), true
	case sql.NullFloat64:
		return v.Float64, v.Valid
	}
	return 0, false
}

// NativeCells wraps a row of plain values.
func NativeCells(values []interface{}) []Cell {
	cells := make([]Cell, len(values))
	for i, v := range values {
		cells[i] = NativeCell{V: v}
	}
	return cells
}
