package sheetsink

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/data-integrations/google-drive-sub000/internal/sheets"
)

// DestinationKey identifies the sheet a record is written to.
type DestinationKey struct {
	Document string
	Sheet    string
}

func (k DestinationKey) String() string {
	return fmt.Sprintf("%s/%s", k.Document, k.Sheet)
}

// destination is the registry entry for a single sheet. It is only ever read or modified on the
// producer's call path; everything handed to the batch former or workers is a copy.
type destination struct {
	key            DestinationKey
	documentID     string
	sheetID        int64
	rowCapacity    int
	columnCapacity int
	// Next free row. Only moves forward
	cursor        int
	headerWritten bool
}

func (d *destination) target() target {
	return target{
		key:        d.key,
		documentID: d.documentID,
		sheetID:    d.sheetID,
	}
}

// registry holds every destination seen so far. Entries are never removed.
type registry struct {
	documents    map[string]string
	destinations map[DestinationKey]*destination
}

func newRegistry() *registry {
	return &registry{
		documents:    map[string]string{},
		destinations: map[DestinationKey]*destination{},
	}
}

// ensureDestination returns the registry entry for key, creating the remote document and/or sheet
// the first time the key is seen.
func (s *Sink) ensureDestination(ctx context.Context, key DestinationKey) (*destination, error) {
	if d, ok := s.registry.destinations[key]; ok {
		return d, nil
	}

	var sheet sheets.Sheet
	documentID, ok := s.registry.documents[key.Document]
	if !ok {
		doc, err := s.client.CreateDocument(ctx, key.Document, key.Sheet)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to create document %q", key.Document)
		}
		documentID = doc.ID
		sheet = doc.Sheet
		s.registry.documents[key.Document] = documentID
		log.WithField("document", key.Document).WithField("documentId", documentID).Info("Created document")

		if s.config.FolderID != "" {
			if err := s.client.MoveToFolder(ctx, documentID, s.config.FolderID); err != nil {
				return nil, errors.WithMessagef(err, "failed to move document %q to folder %q", key.Document, s.config.FolderID)
			}
		}
	} else {
		var err error
		sheet, err = s.client.CreateSheet(ctx, documentID, key.Sheet)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to create sheet %q in document %q", key.Sheet, key.Document)
		}
		log.WithField("destination", key).WithField("sheetId", sheet.ID).Info("Created sheet")
	}

	d := &destination{
		key:            key,
		documentID:     documentID,
		sheetID:        sheet.ID,
		rowCapacity:    sheet.RowCapacity,
		columnCapacity: sheet.ColumnCapacity,
	}
	s.registry.destinations[key] = d
	return d, nil
}

// ensureCapacity grows the destination so that it has at least requiredRows rows and requiredColumns
// columns. Each extension adds at least MinExtension so that a run of small writes doesn't cost one
// remote call each. Calling it again with the same or a smaller requirement does nothing.
func (s *Sink) ensureCapacity(ctx context.Context, d *destination, requiredRows int, requiredColumns int) error {
	if requiredRows > d.rowCapacity {
		amount := max(requiredRows-d.rowCapacity, s.config.MinExtension)
		if err := s.client.ExtendDimension(ctx, d.documentID, d.sheetID, sheets.Rows, amount); err != nil {
			return errors.WithMessagef(err, "failed to add %d rows to %s", amount, d.key)
		}
		d.rowCapacity += amount
		s.metrics.RecordDimensionExtension(sheets.Rows.String())
		log.WithField("destination", d.key).Debugf("Extended rows by %d to %d", amount, d.rowCapacity)
	}
	if requiredColumns > d.columnCapacity {
		amount := max(requiredColumns-d.columnCapacity, s.config.MinExtension)
		if err := s.client.ExtendDimension(ctx, d.documentID, d.sheetID, sheets.Columns, amount); err != nil {
			return errors.WithMessagef(err, "failed to add %d columns to %s", amount, d.key)
		}
		d.columnCapacity += amount
		s.metrics.RecordDimensionExtension(sheets.Columns.String())
		log.WithField("destination", d.key).Debugf("Extended columns by %d to %d", amount, d.columnCapacity)
	}
	return nil
}
