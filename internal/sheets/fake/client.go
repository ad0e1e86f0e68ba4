// Package fake provides an in-memory sheets.Client that records every call it receives.
package fake

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/data-integrations/google-drive-sub000/internal/common/sinkerrors"
	"github.com/data-integrations/google-drive-sub000/internal/sheets"
)

const (
	DefaultRowCapacity    = 1000
	DefaultColumnCapacity = 26
)

// BatchUpdateHook is invoked before a BatchUpdate is applied, without the client lock held.
// Returning an error fails the call. Hooks may block to simulate a slow service.
type BatchUpdateHook func(ctx context.Context, documentID string, updates []sheets.UpdateCells) error

type cell struct {
	row    int
	column int
}

type sheet struct {
	sheets.Sheet
	cells     map[cell]sheets.CellData
	rowWrites map[int]int
	merges    []sheets.GridRange
}

type document struct {
	id     string
	name   string
	folder string
	sheets map[int64]*sheet
}

type Client struct {
	mu              sync.Mutex
	initialRows     int
	initialColumns  int
	nextSheetID     int64
	documents       map[string]*document
	calls           map[string]int
	failures        map[string][]error
	batchUpdateHook BatchUpdateHook
}

func NewClient() *Client {
	return NewClientWithCapacity(DefaultRowCapacity, DefaultColumnCapacity)
}

// NewClientWithCapacity creates a Client whose new sheets start with the given grid size.
func NewClientWithCapacity(rows, columns int) *Client {
	return &Client{
		initialRows:    rows,
		initialColumns: columns,
		documents:      map[string]*document{},
		calls:          map[string]int{},
		failures:       map[string][]error{},
	}
}

// FailNext makes the next len(errs) calls of operation return errs in order.
func (c *Client) FailNext(operation string, errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[operation] = append(c.failures[operation], errs...)
}

func (c *Client) SetBatchUpdateHook(hook BatchUpdateHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batchUpdateHook = hook
}

// Calls returns how many times operation was invoked, failed attempts included.
func (c *Client) Calls(operation string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[operation]
}

func (c *Client) CreateDocument(_ context.Context, name string, initialSheetTitle string) (sheets.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(sheets.OpCreateDocument); err != nil {
		return sheets.Document{}, err
	}
	doc := &document{
		id:     uuid.NewString(),
		name:   name,
		sheets: map[int64]*sheet{},
	}
	c.documents[doc.id] = doc
	s := c.addSheet(doc, initialSheetTitle)
	return sheets.Document{ID: doc.id, Name: name, Sheet: s.Sheet}, nil
}

func (c *Client) CreateSheet(_ context.Context, documentID string, title string) (sheets.Sheet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(sheets.OpCreateSheet); err != nil {
		return sheets.Sheet{}, err
	}
	doc, err := c.document(documentID)
	if err != nil {
		return sheets.Sheet{}, err
	}
	for _, s := range doc.sheets {
		if s.Title == title {
			return sheets.Sheet{}, sheets.NewRemoteError(sheets.OpCreateSheet, http.StatusBadRequest, "a sheet with the name %q already exists", title)
		}
	}
	return c.addSheet(doc, title).Sheet, nil
}

func (c *Client) ExtendDimension(_ context.Context, documentID string, sheetID int64, dimension sheets.Dimension, amount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(sheets.OpExtendDimension); err != nil {
		return err
	}
	s, err := c.sheet(documentID, sheetID)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return sheets.NewRemoteError(sheets.OpExtendDimension, http.StatusBadRequest, "invalid extension length %d", amount)
	}
	switch dimension {
	case sheets.Rows:
		s.RowCapacity += amount
	case sheets.Columns:
		s.ColumnCapacity += amount
	default:
		return sheets.NewRemoteError(sheets.OpExtendDimension, http.StatusBadRequest, "unknown dimension %s", dimension)
	}
	return nil
}

func (c *Client) BatchUpdate(ctx context.Context, documentID string, updates []sheets.UpdateCells, merges []sheets.MergeCells) error {
	c.mu.Lock()
	err := c.begin(sheets.OpBatchUpdate)
	hook := c.batchUpdateHook
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		if err := hook(ctx, documentID, updates); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Validate everything first so that a rejected update leaves no trace.
	for _, u := range updates {
		s, err := c.sheet(documentID, u.SheetID)
		if err != nil {
			return err
		}
		endRow := u.StartRow + len(u.Rows)
		endColumn := u.StartColumn + sheets.Width(u.Rows)
		if u.StartRow < 0 || endRow > s.RowCapacity || endColumn > s.ColumnCapacity {
			return sheets.NewRemoteError(sheets.OpBatchUpdate, http.StatusBadRequest,
				"range rows [%d, %d) columns [%d, %d) exceeds grid limits %dx%d of sheet %d",
				u.StartRow, endRow, u.StartColumn, endColumn, s.RowCapacity, s.ColumnCapacity, u.SheetID)
		}
	}
	for _, m := range merges {
		s, err := c.sheet(documentID, m.Range.SheetID)
		if err != nil {
			return err
		}
		if m.Range.EndRow > s.RowCapacity || m.Range.EndColumn > s.ColumnCapacity {
			return sheets.NewRemoteError(sheets.OpBatchUpdate, http.StatusBadRequest, "merge range exceeds grid limits of sheet %d", m.Range.SheetID)
		}
	}

	for _, u := range updates {
		s := c.documents[documentID].sheets[u.SheetID]
		for i, row := range u.Rows {
			r := u.StartRow + i
			s.rowWrites[r]++
			for j, v := range row.Values {
				s.cells[cell{row: r, column: u.StartColumn + j}] = v
			}
		}
	}
	for _, m := range merges {
		s := c.documents[documentID].sheets[m.Range.SheetID]
		s.merges = append(s.merges, m.Range)
	}
	return nil
}

func (c *Client) MoveToFolder(_ context.Context, documentID string, folderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(sheets.OpMoveToFolder); err != nil {
		return err
	}
	doc, err := c.document(documentID)
	if err != nil {
		return err
	}
	doc.folder = folderID
	return nil
}

// DocumentIDs returns the ids of every document created so far, sorted.
func (c *Client) DocumentIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.documents))
	for id := range c.documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Client) DocumentName(documentID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if doc, ok := c.documents[documentID]; ok {
		return doc.name
	}
	return ""
}

func (c *Client) Folder(documentID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if doc, ok := c.documents[documentID]; ok {
		return doc.folder
	}
	return ""
}

// Sheet returns the current state of the sheet with the given title.
func (c *Client) Sheet(documentID string, title string) (sheets.Sheet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.documents[documentID]
	if !ok {
		return sheets.Sheet{}, false
	}
	for _, s := range doc.sheets {
		if s.Title == title {
			return s.Sheet, true
		}
	}
	return sheets.Sheet{}, false
}

// Rows returns every row from zero up to the last row written, as text. Unwritten cells are empty strings.
func (c *Client) Rows(documentID string, sheetID int64) [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.documents[documentID]
	if !ok {
		return nil
	}
	s, ok := doc.sheets[sheetID]
	if !ok {
		return nil
	}
	height, width := 0, 0
	for k := range s.cells {
		if k.row+1 > height {
			height = k.row + 1
		}
		if k.column+1 > width {
			width = k.column + 1
		}
	}
	rows := make([][]string, height)
	for r := range rows {
		rows[r] = make([]string, width)
		for col := range rows[r] {
			rows[r][col] = s.cells[cell{row: r, column: col}].Text()
		}
	}
	return rows
}

// RowWrites returns, for each row index written at least once, the number of times it was written.
func (c *Client) RowWrites(documentID string, sheetID int64) map[int]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[int]int{}
	if doc, ok := c.documents[documentID]; ok {
		if s, ok := doc.sheets[sheetID]; ok {
			for r, n := range s.rowWrites {
				out[r] = n
			}
		}
	}
	return out
}

// TotalRowsWritten sums every row write across all documents and sheets.
func (c *Client) TotalRowsWritten() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, doc := range c.documents {
		for _, s := range doc.sheets {
			for _, n := range s.rowWrites {
				total += n
			}
		}
	}
	return total
}

func (c *Client) Merges(documentID string, sheetID int64) []sheets.GridRange {
	c.mu.Lock()
	defer c.mu.Unlock()
	if doc, ok := c.documents[documentID]; ok {
		if s, ok := doc.sheets[sheetID]; ok {
			return append([]sheets.GridRange(nil), s.merges...)
		}
	}
	return nil
}

// begin counts the call and pops any queued failure. Callers must hold c.mu.
func (c *Client) begin(operation string) error {
	c.calls[operation]++
	if queued := c.failures[operation]; len(queued) > 0 {
		c.failures[operation] = queued[1:]
		return queued[0]
	}
	return nil
}

func (c *Client) addSheet(doc *document, title string) *sheet {
	c.nextSheetID++
	s := &sheet{
		Sheet: sheets.Sheet{
			ID:             c.nextSheetID,
			Title:          title,
			RowCapacity:    c.initialRows,
			ColumnCapacity: c.initialColumns,
		},
		cells:     map[cell]sheets.CellData{},
		rowWrites: map[int]int{},
	}
	doc.sheets[s.ID] = s
	return s
}

func (c *Client) document(documentID string) (*document, error) {
	doc, ok := c.documents[documentID]
	if !ok {
		return nil, &sinkerrors.ErrNotFound{Type: "document", Value: documentID}
	}
	return doc, nil
}

func (c *Client) sheet(documentID string, sheetID int64) (*sheet, error) {
	doc, err := c.document(documentID)
	if err != nil {
		return nil, err
	}
	s, ok := doc.sheets[sheetID]
	if !ok {
		return nil, &sinkerrors.ErrNotFound{Type: "sheet", Value: fmt.Sprintf("%d", sheetID), Message: "document " + documentID}
	}
	return s, nil
}
