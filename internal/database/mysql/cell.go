package mysql

import (
	"strconv"
	"strings"

	"github.com/redbco/sqlbridge/pkg/rowvalue"
)

// Over the text protocol go-sql-driver/mysql returns DECIMAL as []byte
// holding the decimal text. Temporal columns arrive as time.Time because
// parseTime is always on, except TIME which stays []byte.
type decimalCell struct {
	v interface{}
}

func (c decimalCell) Int() (int64, bool)   { return 0, false }
func (c decimalCell) Text() (string, bool) { return "", false }
func (c decimalCell) Bool() (bool, bool)   { return false, false }

func (c decimalCell) Float() (float64, bool) {
	b, ok := c.v.([]byte)
	if !ok {
		return rowvalue.NativeCell{V: c.v}.Float()
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// temporalCell never decodes, so date and time columns normalize to null.
type temporalCell struct{}

func (temporalCell) Int() (int64, bool)     { return 0, false }
func (temporalCell) Text() (string, bool)   { return "", false }
func (temporalCell) Bool() (bool, bool)     { return false, false }
func (temporalCell) Float() (float64, bool) { return 0, false }

func newCell(v interface{}, databaseType string) rowvalue.Cell {
	switch databaseType {
	case "DECIMAL", "NEWDECIMAL":
		return decimalCell{v: v}
	case "DATE", "DATETIME", "TIMESTAMP", "TIME":
		return temporalCell{}
	}
	return rowvalue.NativeCell{V: v}
}
