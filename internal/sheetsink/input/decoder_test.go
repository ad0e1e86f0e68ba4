package input

import (
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-integrations/google-drive-sub000/internal/common/sinkerrors"
	"github.com/data-integrations/google-drive-sub000/internal/sheets"
	"github.com/data-integrations/google-drive-sub000/internal/sheetsink"
)

func TestDecoder_Next(t *testing.T) {
	in := strings.Join([]string{
		`{"document":"sales","sheet":"q1","header":[["Region","Total"]],"headerMerges":[{"startRow":0,"endRow":1,"startColumn":0,"endColumn":2}],"rows":[["north",12.5,true,null,"=SUM(B1:B2)"]]}`,
		``,
		`  {"document":"sales","sheet":"q2","rows":[["south"],["east"]],"merges":[{"startRow":0,"endRow":2,"startColumn":0,"endColumn":1}]}  `,
	}, "\n")
	decoder := NewDecoder(strings.NewReader(in))

	first, err := decoder.Next()
	require.NoError(t, err)
	assert.Equal(t, sheetsink.Record{
		Destination: sheetsink.DestinationKey{Document: "sales", Sheet: "q1"},
		Header: &sheetsink.Header{
			Rows:   []sheets.RowData{sheets.Row("Region", "Total")},
			Merges: []sheets.GridRange{{StartRow: 0, EndRow: 1, StartColumn: 0, EndColumn: 2}},
		},
		Rows: []sheets.RowData{{Values: []sheets.CellData{
			sheets.StringCell("north"),
			sheets.NumberCell(12.5),
			sheets.BoolCell(true),
			sheets.EmptyCell(),
			sheets.FormulaCell("=SUM(B1:B2)"),
		}}},
	}, first)

	second, err := decoder.Next()
	require.NoError(t, err)
	assert.Nil(t, second.Header)
	assert.Equal(t, []sheets.RowData{sheets.Row("south"), sheets.Row("east")}, second.Rows)
	assert.Equal(t, []sheets.GridRange{{StartRow: 0, EndRow: 2, StartColumn: 0, EndColumn: 1}}, second.Merges)

	_, err = decoder.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoder_InvalidLines(t *testing.T) {
	tests := map[string]string{
		"not json":      `document: sales`,
		"unknown field": `{"document":"sales","sheet":"q1","rows":[["a"]],"colour":"red"}`,
		"nested cell":   `{"document":"sales","sheet":"q1","rows":[[{"a":1}]]}`,
		"array cell":    `{"document":"sales","sheet":"q1","rows":[[["a"]]]}`,
		"bad header":    `{"document":"sales","sheet":"q1","header":[[[1]]],"rows":[["a"]]}`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			decoder := NewDecoder(strings.NewReader("\n" + in + "\n"))
			_, err := decoder.Next()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "line 2")
		})
	}
}

func TestDecoder_InvalidCellType(t *testing.T) {
	decoder := NewDecoder(strings.NewReader(`{"document":"sales","sheet":"q1","rows":[[{"a":1}]]}`))
	_, err := decoder.Next()
	var invalid *sinkerrors.ErrInvalidArgument
	assert.ErrorAs(t, err, &invalid)
}

func TestTruncate(t *testing.T) {
	tests := map[string]struct {
		in   string
		n    int
		want string
	}{
		"short":               {"abc", 5, "abc"},
		"exact":               {"abcde", 5, "abcde"},
		"ascii":               {"abcdef", 3, "abc..."},
		"cut inside a rune":   {"ééé", 3, "é..."},
		"cut on a rune start": {"ééé", 4, "éé..."},
		"first rune too long": {"日本", 2, "..."},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := truncate(tc.in, tc.n)
			assert.Equal(t, tc.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
