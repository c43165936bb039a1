package postgres

import (
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/redbco/sqlbridge/pkg/rowvalue"
)

// cell decodes the values pgx returns from Rows.Values. NUMERIC arrives as
// pgtype.Numeric; everything else is a plain Go value.
type cell struct {
	v interface{}
}

func (c cell) Int() (int64, bool) {
	if n, ok := c.v.(pgtype.Numeric); ok {
		if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite {
			return 0, false
		}
		i, err := n.Int64Value()
		if err != nil || !i.Valid {
			return 0, false
		}
		return i.Int64, true
	}
	return rowvalue.NativeCell{V: c.v}.Int()
}

func (c cell) Text() (string, bool) {
	return rowvalue.NativeCell{V: c.v}.Text()
}

func (c cell) Bool() (bool, bool) {
	return rowvalue.NativeCell{V: c.v}.Bool()
}

func (c cell) Float() (float64, bool) {
	if n, ok := c.v.(pgtype.Numeric); ok {
		f, err := n.Float64Value()
		if err != nil || !f.Valid {
			return 0, false
		}
		return f.Float64, true
	}
	return rowvalue.NativeCell{V: c.v}.Float()
}
