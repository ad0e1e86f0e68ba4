// Package input decodes records for the sheet sink from newline delimited JSON.
package input

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/data-integrations/google-drive-sub000/internal/common/sinkerrors"
	"github.com/data-integrations/google-drive-sub000/internal/sheets"
	"github.com/data-integrations/google-drive-sub000/internal/sheetsink"
)

const maxLineBytes = 16 * 1024 * 1024

// Merge is a merged range relative to the first row of the block it belongs to. Ends are exclusive.
type Merge struct {
	StartRow    int `json:"startRow"`
	EndRow      int `json:"endRow"`
	StartColumn int `json:"startColumn"`
	EndColumn   int `json:"endColumn"`
}

type line struct {
	Document     string              `json:"document"`
	Sheet        string              `json:"sheet"`
	Header       [][]json.RawMessage `json:"header"`
	HeaderMerges []Merge             `json:"headerMerges"`
	Rows         [][]json.RawMessage `json:"rows"`
	Merges       []Merge             `json:"merges"`
}

// Decoder reads one record per line. Blank lines are skipped.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Decoder{scanner: scanner}
}

// Next returns the next record, or io.EOF once the input is exhausted.
func (d *Decoder) Next() (sheetsink.Record, error) {
	for d.scanner.Scan() {
		d.line++
		raw := bytes.TrimSpace(d.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		record, err := decodeLine(raw)
		if err != nil {
			return sheetsink.Record{}, errors.WithMessagef(err, "line %d", d.line)
		}
		return record, nil
	}
	if err := d.scanner.Err(); err != nil {
		return sheetsink.Record{}, errors.Wrapf(err, "failed to read line %d", d.line+1)
	}
	return sheetsink.Record{}, io.EOF
}

func decodeLine(raw []byte) (sheetsink.Record, error) {
	var l line
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	decoder.UseNumber()
	if err := decoder.Decode(&l); err != nil {
		return sheetsink.Record{}, errors.WithStack(&sinkerrors.ErrInvalidArgument{
			Name:    "record",
			Value:   truncate(string(raw), 80),
			Message: err.Error(),
		})
	}

	rows, err := decodeRows(l.Rows)
	if err != nil {
		return sheetsink.Record{}, err
	}
	record := sheetsink.Record{
		Destination: sheetsink.DestinationKey{Document: l.Document, Sheet: l.Sheet},
		Rows:        rows,
		Merges:      toGridRanges(l.Merges),
	}
	if len(l.Header) > 0 {
		header, err := decodeRows(l.Header)
		if err != nil {
			return sheetsink.Record{}, errors.WithMessage(err, "header")
		}
		record.Header = &sheetsink.Header{Rows: header, Merges: toGridRanges(l.HeaderMerges)}
	}
	return record, nil
}

func decodeRows(raw [][]json.RawMessage) ([]sheets.RowData, error) {
	rows := make([]sheets.RowData, len(raw))
	for i, values := range raw {
		cells := make([]sheets.CellData, len(values))
		for j, value := range values {
			cell, err := decodeCell(value)
			if err != nil {
				return nil, errors.WithMessagef(err, "row %d column %d", i, j)
			}
			cells[j] = cell
		}
		rows[i] = sheets.RowData{Values: cells}
	}
	return rows, nil
}

// decodeCell maps a JSON scalar to a cell. Strings starting with = are formulas.
func decodeCell(raw json.RawMessage) (sheets.CellData, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var v interface{}
	if err := decoder.Decode(&v); err != nil {
		return sheets.CellData{}, errors.WithStack(err)
	}
	switch value := v.(type) {
	case nil:
		return sheets.EmptyCell(), nil
	case string:
		if strings.HasPrefix(value, "=") {
			return sheets.FormulaCell(value), nil
		}
		return sheets.StringCell(value), nil
	case json.Number:
		f, err := value.Float64()
		if err != nil {
			return sheets.CellData{}, errors.WithStack(err)
		}
		return sheets.NumberCell(f), nil
	case bool:
		return sheets.BoolCell(value), nil
	default:
		return sheets.CellData{}, errors.WithStack(&sinkerrors.ErrInvalidArgument{
			Name:    "cell",
			Value:   truncate(string(raw), 40),
			Message: fmt.Sprintf("cells must be strings, numbers, booleans or null, not %T", value),
		})
	}
}

func toGridRanges(merges []Merge) []sheets.GridRange {
	if len(merges) == 0 {
		return nil
	}
	out := make([]sheets.GridRange, len(merges))
	for i, m := range merges {
		out[i] = sheets.GridRange{
			StartRow:    m.StartRow,
			EndRow:      m.EndRow,
			StartColumn: m.StartColumn,
			EndColumn:   m.EndColumn,
		}
	}
	return out
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
