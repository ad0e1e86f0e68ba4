// Package xlsx implements sheets.Client on top of .xlsx workbooks in a local directory. Every
// document is one workbook, saved after each change.
package xlsx

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/data-integrations/google-drive-sub000/internal/common/sinkerrors"
	"github.com/data-integrations/google-drive-sub000/internal/sheets"
)

const (
	DefaultRowCapacity    = 1000
	DefaultColumnCapacity = 26
)

type workbook struct {
	file   *excelize.File
	sheets map[int64]*sheets.Sheet
}

type Client struct {
	mu             sync.Mutex
	rootDir        string
	initialRows    int
	initialColumns int
	nextSheetID    int64
	documents      map[string]*workbook
}

// NewClient creates a Client storing workbooks under rootDir, creating the directory if need be.
func NewClient(rootDir string) (*Client, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create workbook directory %s", rootDir)
	}
	return &Client{
		rootDir:        rootDir,
		initialRows:    DefaultRowCapacity,
		initialColumns: DefaultColumnCapacity,
		documents:      map[string]*workbook{},
	}, nil
}

func (c *Client) CreateDocument(_ context.Context, name string, initialSheetTitle string) (sheets.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), initialSheetTitle); err != nil {
		_ = f.Close()
		return sheets.Document{}, sheets.NewRemoteError(sheets.OpCreateDocument, http.StatusBadRequest, "invalid sheet title %q: %s", initialSheetTitle, err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: name, Creator: "sheetsink"}); err != nil {
		_ = f.Close()
		return sheets.Document{}, errors.WithStack(err)
	}

	id := uuid.NewString()
	if err := f.SaveAs(filepath.Join(c.rootDir, id+".xlsx")); err != nil {
		_ = f.Close()
		return sheets.Document{}, errors.Wrapf(err, "failed to save workbook for document %q", name)
	}
	wb := &workbook{file: f, sheets: map[int64]*sheets.Sheet{}}
	c.documents[id] = wb
	s := c.addSheet(wb, initialSheetTitle)
	log.WithField("document", name).WithField("path", f.Path).Debug("Created workbook")
	return sheets.Document{ID: id, Name: name, Sheet: *s}, nil
}

func (c *Client) CreateSheet(_ context.Context, documentID string, title string) (sheets.Sheet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wb, err := c.workbook(documentID)
	if err != nil {
		return sheets.Sheet{}, err
	}
	if index, err := wb.file.GetSheetIndex(title); err == nil && index >= 0 {
		return sheets.Sheet{}, sheets.NewRemoteError(sheets.OpCreateSheet, http.StatusBadRequest, "a sheet with the name %q already exists", title)
	}
	if _, err := wb.file.NewSheet(title); err != nil {
		return sheets.Sheet{}, sheets.NewRemoteError(sheets.OpCreateSheet, http.StatusBadRequest, "invalid sheet title %q: %s", title, err)
	}
	if err := wb.file.Save(); err != nil {
		return sheets.Sheet{}, errors.Wrapf(err, "failed to save document %s", documentID)
	}
	return *c.addSheet(wb, title), nil
}

func (c *Client) ExtendDimension(_ context.Context, documentID string, sheetID int64, dimension sheets.Dimension, amount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

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

// BatchUpdate writes every update and merge, then saves the workbook. Nothing is written unless
// every range fits the sheet's grid, and a batch that fails halfway leaves the workbook as it was.
func (c *Client) BatchUpdate(_ context.Context, documentID string, updates []sheets.UpdateCells, merges []sheets.MergeCells) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	wb, err := c.workbook(documentID)
	if err != nil {
		return err
	}
	for _, u := range updates {
		s, err := c.sheet(documentID, u.SheetID)
		if err != nil {
			return err
		}
		endRow := u.StartRow + len(u.Rows)
		endColumn := u.StartColumn + sheets.Width(u.Rows)
		if u.StartRow < 0 || u.StartColumn < 0 || endRow > s.RowCapacity || endColumn > s.ColumnCapacity {
			return sheets.NewRemoteError(sheets.OpBatchUpdate, http.StatusBadRequest,
				"range rows [%d, %d) columns [%d, %d) exceeds grid limits %dx%d of sheet %q",
				u.StartRow, endRow, u.StartColumn, endColumn, s.RowCapacity, s.ColumnCapacity, s.Title)
		}
	}
	for _, m := range merges {
		s, err := c.sheet(documentID, m.Range.SheetID)
		if err != nil {
			return err
		}
		if m.Range.EndRow > s.RowCapacity || m.Range.EndColumn > s.ColumnCapacity {
			return sheets.NewRemoteError(sheets.OpBatchUpdate, http.StatusBadRequest, "merge range exceeds grid limits of sheet %q", s.Title)
		}
	}

	if err := apply(wb, updates, merges); err != nil {
		if discardErr := c.discard(documentID, wb); discardErr != nil {
			return multierror.Append(err, discardErr)
		}
		return err
	}
	if err := wb.file.Save(); err != nil {
		return errors.Wrapf(err, "failed to save document %s", documentID)
	}
	return nil
}

// MoveToFolder moves the document's workbook into a sub directory of the root directory.
func (c *Client) MoveToFolder(_ context.Context, documentID string, folderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	wb, err := c.workbook(documentID)
	if err != nil {
		return err
	}
	if folderID == "" || strings.ContainsAny(folderID, `/\`) || folderID == "." || folderID == ".." {
		return sheets.NewRemoteError(sheets.OpMoveToFolder, http.StatusBadRequest, "invalid folder id %q", folderID)
	}
	folder := filepath.Join(c.rootDir, folderID)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create folder %s", folder)
	}
	oldPath := wb.file.Path
	if err := wb.file.SaveAs(filepath.Join(folder, documentID+".xlsx")); err != nil {
		return errors.Wrapf(err, "failed to move document %s", documentID)
	}
	if err := os.Remove(oldPath); err != nil {
		return errors.Wrapf(err, "failed to remove %s after moving document %s", oldPath, documentID)
	}
	return nil
}

// Path returns the location of the document's workbook.
func (c *Client) Path(documentID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	wb, err := c.workbook(documentID)
	if err != nil {
		return "", err
	}
	return wb.file.Path, nil
}

// Close closes every open workbook. Workbooks are saved after every change, so nothing is lost.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var result *multierror.Error
	for id, wb := range c.documents {
		if err := wb.file.Close(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "failed to close document %s", id))
		}
	}
	c.documents = map[string]*workbook{}
	return result.ErrorOrNil()
}

// discard drops unsaved changes to the workbook by reopening it from disk. A workbook that cannot be
// reopened is forgotten.
func (c *Client) discard(documentID string, wb *workbook) error {
	path := wb.file.Path
	if err := wb.file.Close(); err != nil {
		log.WithError(err).Warnf("Failed to close document %s before reloading it", documentID)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		delete(c.documents, documentID)
		return errors.Wrapf(err, "failed to reload document %s", documentID)
	}
	wb.file = f
	return nil
}

func apply(wb *workbook, updates []sheets.UpdateCells, merges []sheets.MergeCells) error {
	for _, u := range updates {
		title := wb.sheets[u.SheetID].Title
		for i, row := range u.Rows {
			for j, value := range row.Values {
				if err := setCell(wb.file, title, u.StartRow+i, u.StartColumn+j, value); err != nil {
					return err
				}
			}
		}
	}
	for _, m := range merges {
		if err := mergeCells(wb.file, wb.sheets[m.Range.SheetID].Title, m.Range); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) addSheet(wb *workbook, title string) *sheets.Sheet {
	c.nextSheetID++
	s := &sheets.Sheet{
		ID:             c.nextSheetID,
		Title:          title,
		RowCapacity:    c.initialRows,
		ColumnCapacity: c.initialColumns,
	}
	wb.sheets[s.ID] = s
	return s
}

func (c *Client) workbook(documentID string) (*workbook, error) {
	wb, ok := c.documents[documentID]
	if !ok {
		return nil, errors.WithStack(&sinkerrors.ErrNotFound{Type: "document", Value: documentID})
	}
	return wb, nil
}

func (c *Client) sheet(documentID string, sheetID int64) (*sheets.Sheet, error) {
	wb, err := c.workbook(documentID)
	if err != nil {
		return nil, err
	}
	s, ok := wb.sheets[sheetID]
	if !ok {
		return nil, errors.WithStack(&sinkerrors.ErrNotFound{Type: "sheet", Value: fmt.Sprintf("%d", sheetID), Message: "document " + documentID})
	}
	return s, nil
}

func setCell(f *excelize.File, sheet string, row int, column int, value sheets.CellData) error {
	cell, err := excelize.CoordinatesToCellName(column+1, row+1)
	if err != nil {
		return errors.WithStack(err)
	}
	switch value.Kind {
	case sheets.KindString:
		err = f.SetCellStr(sheet, cell, value.String)
	case sheets.KindNumber:
		err = f.SetCellFloat(sheet, cell, value.Number, -1, 64)
	case sheets.KindBool:
		err = f.SetCellBool(sheet, cell, value.Bool)
	case sheets.KindFormula:
		err = f.SetCellFormula(sheet, cell, strings.TrimPrefix(value.Formula, "="))
	default:
		err = f.SetCellValue(sheet, cell, nil)
	}
	return errors.Wrapf(err, "failed to set %s!%s", sheet, cell)
}

func mergeCells(f *excelize.File, sheet string, r sheets.GridRange) error {
	topLeft, err := excelize.CoordinatesToCellName(r.StartColumn+1, r.StartRow+1)
	if err != nil {
		return errors.WithStack(err)
	}
	bottomRight, err := excelize.CoordinatesToCellName(r.EndColumn, r.EndRow)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.Wrapf(f.MergeCell(sheet, topLeft, bottomRight), "failed to merge %s!%s:%s", sheet, topLeft, bottomRight)
}
