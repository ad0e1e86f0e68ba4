package sheetsink

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/data-integrations/google-drive-sub000/internal/sheets"
)

// batch is an ordered group of requests for a single destination, flushed with one remote call.
type batch struct {
	target   target
	requests []*pendingRequest
}

// rowRange returns the lowest and highest row covered by the batch.
func (b *batch) rowRange() (int, int) {
	first, last := b.requests[0].startRow, b.requests[0].endRow()
	for _, r := range b.requests[1:] {
		first = min(first, r.startRow)
		last = max(last, r.endRow())
	}
	return first, last
}

// updateRequests combines the content of every request into cell updates and merges. Requests whose
// rows follow on directly from the previous request share a single update.
func (b *batch) updateRequests() ([]sheets.UpdateCells, []sheets.MergeCells) {
	var updates []sheets.UpdateCells
	var merges []sheets.MergeCells
	for _, r := range b.requests {
		n := len(updates)
		if n > 0 && updates[n-1].StartRow+len(updates[n-1].Rows) == r.startRow {
			updates[n-1].Rows = append(updates[n-1].Rows, r.rows...)
		} else {
			updates = append(updates, sheets.UpdateCells{
				SheetID:  b.target.sheetID,
				StartRow: r.startRow,
				Rows:     append([]sheets.RowData(nil), r.rows...),
			})
		}
		for _, m := range r.merges {
			merges = append(merges, sheets.MergeCells{Range: m})
		}
	}
	return updates, merges
}

// dispatch runs the batch on a new worker. The caller must already hold a worker slot, which the
// worker gives back when it finishes, whatever the outcome.
func (s *Sink) dispatch(b *batch) {
	s.workers.Add(1)
	s.metrics.RecordBatchDispatched(len(b.requests))
	go func() {
		defer s.workers.Done()
		defer s.slots.Release(1)
		s.metrics.WorkerStarted()
		defer s.metrics.WorkerFinished()

		if err := s.process(b); err != nil {
			s.metrics.RecordBatchFailed()
			s.fail(err)
		}
	}()
}

// process writes every request in the batch with a single remote call. The batch succeeds or fails
// as a whole.
func (s *Sink) process(b *batch) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.BatchTimeout)
	defer cancel()

	first, last := b.rowRange()
	updates, merges := b.updateRequests()
	start := s.clock.Now()
	err := s.client.BatchUpdate(ctx, b.target.documentID, updates, merges)
	if err != nil {
		return errors.WithMessagef(err, "failed to write rows [%d, %d) to %s", first, last, b.target.key)
	}
	log.WithField("destination", b.target.key).
		WithField("requests", len(b.requests)).
		Debugf("Wrote rows [%d, %d) in %dms", first, last, s.clock.Since(start).Milliseconds())
	return nil
}

// waitForWorkers waits for every dispatched batch to finish. Returns true if the wait timed out.
func (s *Sink) waitForWorkers(timeout time.Duration) bool {
	c := make(chan struct{})
	go func() {
		defer close(c)
		s.workers.Wait()
	}()
	select {
	case <-c:
		return false
	case <-s.clock.After(timeout):
		return true
	}
}
