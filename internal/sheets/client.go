// Package sheets defines the contract between the sheet sink and a remote spreadsheet service,
// together with client decorators (retry, rate limiting) that any implementation can be wrapped in.
package sheets

import (
	"context"
	"fmt"
)

// Dimension is the axis of a sheet grid.
type Dimension int

const (
	Rows Dimension = iota
	Columns
)

func (d Dimension) String() string {
	switch d {
	case Rows:
		return "ROWS"
	case Columns:
		return "COLUMNS"
	default:
		return fmt.Sprintf("Dimension(%d)", int(d))
	}
}

// Sheet describes a single sheet within a document, including its current grid size.
type Sheet struct {
	ID             int64
	Title          string
	RowCapacity    int
	ColumnCapacity int
}

// Document is returned when a new remote document is created. Sheet is the initial sheet.
type Document struct {
	ID    string
	Name  string
	Sheet Sheet
}

// UpdateCells writes Rows into the sheet starting at (StartRow, StartColumn). Indices are zero based.
type UpdateCells struct {
	SheetID     int64
	StartRow    int
	StartColumn int
	Rows        []RowData
}

// MergeCells merges every cell in Range.
type MergeCells struct {
	Range GridRange
}

// GridRange is a half open rectangle [StartRow, EndRow) x [StartColumn, EndColumn) on a sheet.
type GridRange struct {
	SheetID     int64
	StartRow    int
	EndRow      int
	StartColumn int
	EndColumn   int
}

// Offset returns the range shifted down by rows and bound to sheetID.
func (r GridRange) Offset(sheetID int64, rows int) GridRange {
	return GridRange{
		SheetID:     sheetID,
		StartRow:    r.StartRow + rows,
		EndRow:      r.EndRow + rows,
		StartColumn: r.StartColumn,
		EndColumn:   r.EndColumn,
	}
}

// Client is the remote spreadsheet API. Implementations must be safe for concurrent use: the sink
// issues BatchUpdate calls from several workers at once.
type Client interface {
	CreateDocument(ctx context.Context, name string, initialSheetTitle string) (Document, error)
	CreateSheet(ctx context.Context, documentID string, title string) (Sheet, error)
	ExtendDimension(ctx context.Context, documentID string, sheetID int64, dimension Dimension, amount int) error
	BatchUpdate(ctx context.Context, documentID string, updates []UpdateCells, merges []MergeCells) error
	MoveToFolder(ctx context.Context, documentID string, folderID string) error
}

// Operation names used in logs and metrics.
const (
	OpCreateDocument  = "create_document"
	OpCreateSheet     = "create_sheet"
	OpExtendDimension = "extend_dimension"
	OpBatchUpdate     = "batch_update"
	OpMoveToFolder    = "move_to_folder"
)
