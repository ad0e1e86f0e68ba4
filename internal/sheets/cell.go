package sheets

import (
	"strconv"
	"strings"
)

// CellKind identifies which value a CellData carries.
type CellKind int

const (
	KindEmpty CellKind = iota
	KindString
	KindNumber
	KindBool
	KindFormula
)

// CellData is the content of a single cell.
type CellData struct {
	Kind    CellKind
	String  string
	Number  float64
	Bool    bool
	Formula string
}

// RowData is one row of cells, starting at the column given by the enclosing UpdateCells.
type RowData struct {
	Values []CellData
}

func EmptyCell() CellData {
	return CellData{Kind: KindEmpty}
}

func StringCell(s string) CellData {
	return CellData{Kind: KindString, String: s}
}

func NumberCell(f float64) CellData {
	return CellData{Kind: KindNumber, Number: f}
}

func BoolCell(b bool) CellData {
	return CellData{Kind: KindBool, Bool: b}
}

// FormulaCell builds a formula cell. A leading "=" is added if missing.
func FormulaCell(f string) CellData {
	if !strings.HasPrefix(f, "=") {
		f = "=" + f
	}
	return CellData{Kind: KindFormula, Formula: f}
}

// Row is a convenience constructor for a RowData of string cells.
func Row(values ...string) RowData {
	cells := make([]CellData, len(values))
	for i, v := range values {
		cells[i] = StringCell(v)
	}
	return RowData{Values: cells}
}

// Value returns the cell content as a plain Go value, or nil for an empty cell.
func (c CellData) Value() interface{} {
	switch c.Kind {
	case KindString:
		return c.String
	case KindNumber:
		return c.Number
	case KindBool:
		return c.Bool
	case KindFormula:
		return c.Formula
	default:
		return nil
	}
}

func (c CellData) Text() string {
	switch c.Kind {
	case KindString:
		return c.String
	case KindNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(c.Bool)
	case KindFormula:
		return c.Formula
	default:
		return ""
	}
}

// Width returns the number of columns spanned by the widest row.
func Width(rows []RowData) int {
	width := 0
	for _, r := range rows {
		if len(r.Values) > width {
			width = len(r.Values)
		}
	}
	return width
}
