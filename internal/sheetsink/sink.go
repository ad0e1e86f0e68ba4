// Package sheetsink coalesces a stream of row writes into batched updates against a remote
// spreadsheet service.
//
// Records are written one at a time by a single producer. Each record is given its final position
// on its destination sheet straight away and placed on a queue. A batch former, run periodically and
// whenever the queue grows past a threshold, groups queued writes by destination into bounded batches
// and hands them to a fixed pool of workers, each of which flushes a batch with one remote call.
package sheetsink

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"k8s.io/utils/clock"

	"github.com/data-integrations/google-drive-sub000/internal/common/logging"
	"github.com/data-integrations/google-drive-sub000/internal/common/sinkerrors"
	"github.com/data-integrations/google-drive-sub000/internal/common/task"
	"github.com/data-integrations/google-drive-sub000/internal/sheets"
	"github.com/data-integrations/google-drive-sub000/internal/sheetsink/configuration"
	"github.com/data-integrations/google-drive-sub000/internal/sheetsink/metrics"
)

// ErrClosed is returned by Write once Close has been called.
var ErrClosed = errors.New("sheet sink is closed")

type state int32

const (
	running state = iota
	draining
	stopped
)

func (s state) String() string {
	switch s {
	case running:
		return "running"
	case draining:
		return "draining"
	case stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Header is written above the first record of a sheet. Merges are relative to the first header row.
type Header struct {
	Rows   []sheets.RowData
	Merges []sheets.GridRange
}

// Record is a block of rows to append to a destination. Merges are relative to the first row of the
// record. Header is only used if this is the first record written to the destination.
type Record struct {
	Destination DestinationKey
	Header      *Header
	Rows        []sheets.RowData
	Merges      []sheets.GridRange
}

// Sink is the write-coalescing engine. Write must not be called concurrently, nor concurrently with
// Close.
type Sink struct {
	config  configuration.SinkConfiguration
	client  sheets.Client
	clock   clock.Clock
	metrics *metrics.Metrics

	// Producer side only
	registry *registry
	nextSeq  uint64

	queue   *pendingQueue
	cycleMu sync.Mutex
	slots   *semaphore.Weighted
	workers sync.WaitGroup
	tasks   *task.BackgroundTaskManager

	state      int32
	failureMu  sync.Mutex
	failureErr error
	closeOnce  sync.Once
	closeErr   error
}

// NewSink creates a Sink writing through client and starts its periodic flush. Every call to client
// is retried according to config.Retry, and rate limited if config.RateLimit is enabled.
func NewSink(client sheets.Client, config configuration.SinkConfiguration) *Sink {
	return NewSinkWithClock(client, config, clock.RealClock{})
}

func NewSinkWithClock(client sheets.Client, config configuration.SinkConfiguration, clock clock.Clock) *Sink {
	m := metrics.Get()
	remote := client
	if config.RateLimit.Enabled() {
		remote = sheets.NewRateLimitedClient(remote, config.RateLimit)
	}
	remote = sheets.NewRetryingClient(remote, config.Retry, m)

	s := &Sink{
		config:   config,
		client:   remote,
		clock:    clock,
		metrics:  m,
		registry: newRegistry(),
		queue:    &pendingQueue{},
		slots:    semaphore.NewWeighted(int64(config.Workers)),
		tasks:    task.NewBackgroundTaskManagerWithClock(metrics.MetricsPrefix, clock),
		state:    int32(running),
	}
	s.tasks.Register(func() {
		if err := s.flush(flushPeriodic); err != nil {
			logging.WithStacktrace(log.NewEntry(log.StandardLogger()), err).Error("Periodic flush failed")
		}
	}, config.FlushInterval, "periodic_flush")
	return s
}

// Write assigns the record its rows on the destination sheet, creating or growing the sheet as
// needed, and queues it. If the queue has reached its threshold, Write blocks, flushing the queue,
// until it drops back below it. An error from a previous batch is returned by every later Write.
func (s *Sink) Write(ctx context.Context, record Record) error {
	if s.currentState() != running {
		return ErrClosed
	}
	if err := s.failure(); err != nil {
		return err
	}
	if err := validateRecord(record); err != nil {
		return err
	}

	if err := s.enqueue(ctx, record); err != nil {
		s.fail(err)
		return err
	}
	return s.applyBackpressure(ctx)
}

// block is a run of rows written as a single request.
type block struct {
	rows   []sheets.RowData
	merges []sheets.GridRange
}

func (b block) width() int {
	width := sheets.Width(b.rows)
	for _, m := range b.merges {
		width = max(width, m.EndColumn)
	}
	return width
}

func (s *Sink) enqueue(ctx context.Context, record Record) error {
	d, err := s.ensureDestination(ctx, record.Destination)
	if err != nil {
		return err
	}

	var blocks []block
	if !d.headerWritten && record.Header != nil && len(record.Header.Rows) > 0 {
		blocks = append(blocks, block{rows: record.Header.Rows, merges: record.Header.Merges})
	}
	blocks = append(blocks, block{rows: record.Rows, merges: record.Merges})

	requiredRows := d.cursor
	requiredColumns := 0
	for _, b := range blocks {
		requiredRows += len(b.rows)
		requiredColumns = max(requiredColumns, b.width())
	}
	if err := s.ensureCapacity(ctx, d, requiredRows, requiredColumns); err != nil {
		return err
	}

	for _, b := range blocks {
		r, err := s.newRequest(d, b)
		if err != nil {
			return err
		}
		d.cursor = r.endRow()
		s.queue.push(r)
		s.metrics.RecordEnqueued()
	}
	d.headerWritten = true
	return nil
}

// newRequest builds a request for b at the destination's cursor.
func (s *Sink) newRequest(d *destination, b block) (*pendingRequest, error) {
	start := d.cursor
	end := start + len(b.rows)
	if end < start || end > d.rowCapacity || b.width() > d.columnCapacity {
		return nil, errors.WithStack(&sinkerrors.ErrInvariantViolation{
			Invariant: "writes must fit the destination's capacity",
			Message: fmt.Sprintf("rows [%d, %d) and %d columns do not fit %s with capacity %dx%d",
				start, end, b.width(), d.key, d.rowCapacity, d.columnCapacity),
		})
	}

	rows := make([]sheets.RowData, len(b.rows))
	for i, row := range b.rows {
		rows[i] = sheets.RowData{Values: append([]sheets.CellData(nil), row.Values...)}
	}
	merges := make([]sheets.GridRange, len(b.merges))
	for i, m := range b.merges {
		merges[i] = m.Offset(d.sheetID, start)
	}

	s.nextSeq++
	return &pendingRequest{
		seq:      s.nextSeq,
		target:   d.target(),
		startRow: start,
		rows:     rows,
		merges:   merges,
	}, nil
}

// applyBackpressure blocks while the queue is at or over its threshold, running flush cycles and
// waiting BackpressureWait between them.
func (s *Sink) applyBackpressure(ctx context.Context) error {
	for s.queue.len() >= s.config.QueueFlushThreshold {
		if s.currentState() != running {
			return nil
		}
		if err := s.flush(flushBackpressure); err != nil {
			return err
		}
		if err := s.failure(); err != nil {
			return err
		}
		if s.queue.len() < s.config.QueueFlushThreshold {
			return nil
		}
		s.metrics.RecordBackpressureWait()
		select {
		case <-s.clock.After(s.config.BackpressureWait):
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		}
	}
	return nil
}

// Close stops the periodic flush, flushes everything still queued, blocking for workers if need be,
// and waits for all workers to finish. Failing to get a worker or to finish within DrainTimeout is
// an error, as is any earlier batch failure. Calling Close more than once returns the same result.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.close()
	})
	return s.closeErr
}

func (s *Sink) close() error {
	atomic.StoreInt32(&s.state, int32(draining))
	log.Infof("Closing sheet sink with %d pending writes", s.queue.len())

	var result *multierror.Error
	if timedOut := s.tasks.StopAll(s.config.DrainTimeout); timedOut {
		result = multierror.Append(result, errors.WithStack(&sinkerrors.ErrResourceExhausted{
			Resource: "the periodic flush to stop",
			Timeout:  s.config.DrainTimeout,
		}))
	}
	if err := s.flush(flushFinal); err != nil {
		result = multierror.Append(result, err)
	}
	if timedOut := s.waitForWorkers(s.config.DrainTimeout); timedOut {
		result = multierror.Append(result, errors.WithStack(&sinkerrors.ErrResourceExhausted{
			Resource: "outstanding workers",
			Timeout:  s.config.DrainTimeout,
		}))
	}
	if err := s.failure(); err != nil {
		result = multierror.Append(result, err)
	}
	if remaining := s.queue.len(); remaining > 0 {
		log.Errorf("Sheet sink closed with %d writes that were never flushed", remaining)
	}

	atomic.StoreInt32(&s.state, int32(stopped))
	return result.ErrorOrNil()
}

func (s *Sink) currentState() state {
	return state(atomic.LoadInt32(&s.state))
}

// fail records the first error that stops the sink. Later errors are only logged.
func (s *Sink) fail(err error) {
	s.failureMu.Lock()
	defer s.failureMu.Unlock()
	if s.failureErr == nil {
		s.failureErr = err
		logging.WithStacktrace(log.NewEntry(log.StandardLogger()), err).Error("Sheet sink failed")
	} else {
		log.WithError(err).Warn("Sheet sink already failed; ignoring subsequent error")
	}
}

func (s *Sink) failure() error {
	s.failureMu.Lock()
	defer s.failureMu.Unlock()
	return s.failureErr
}

func validateRecord(record Record) error {
	if record.Destination.Document == "" {
		return errors.WithStack(&sinkerrors.ErrInvalidArgument{Name: "document", Value: "", Message: "document name must not be empty"})
	}
	if record.Destination.Sheet == "" {
		return errors.WithStack(&sinkerrors.ErrInvalidArgument{Name: "sheet", Value: "", Message: "sheet title must not be empty"})
	}
	if len(record.Rows) == 0 {
		return errors.WithStack(&sinkerrors.ErrInvalidArgument{Name: "rows", Value: record.Destination.String(), Message: "record has no rows"})
	}
	if err := validateMerges("merges", record.Merges, len(record.Rows)); err != nil {
		return err
	}
	if record.Header != nil {
		return validateMerges("header.merges", record.Header.Merges, len(record.Header.Rows))
	}
	return nil
}

func validateMerges(name string, merges []sheets.GridRange, height int) error {
	for _, m := range merges {
		if m.StartRow < 0 || m.StartColumn < 0 || m.EndRow <= m.StartRow || m.EndColumn <= m.StartColumn || m.EndRow > height {
			return errors.WithStack(&sinkerrors.ErrInvalidArgument{
				Name:    name,
				Value:   fmt.Sprintf("%+v", m),
				Message: fmt.Sprintf("merge must be a non-empty range within the %d rows it belongs to", height),
			})
		}
	}
	return nil
}
