package sheetsink

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/data-integrations/google-drive-sub000/internal/common/sinkerrors"
	"github.com/data-integrations/google-drive-sub000/internal/common/util"
)

type flushMode int

const (
	// Triggered by the flush timer. Never blocks for a worker
	flushPeriodic flushMode = iota
	// Triggered by the producer when the queue is over its threshold. Never blocks for a worker
	flushBackpressure
	// Final cycle while closing. Blocks for a worker so that the queue ends up empty
	flushFinal
)

func (m flushMode) String() string {
	switch m {
	case flushPeriodic:
		return "periodic"
	case flushBackpressure:
		return "backpressure"
	case flushFinal:
		return "final"
	default:
		return "unknown"
	}
}

// formBatches groups requests by destination, keeping their relative order, splits each group into
// batches of at most maxBatchSize and orders the result largest first. Batches of equal size keep the
// order in which their destinations first appear.
func formBatches(requests []*pendingRequest, maxBatchSize int) []*batch {
	var keys []DestinationKey
	byKey := map[DestinationKey][]*pendingRequest{}
	for _, r := range requests {
		if _, ok := byKey[r.target.key]; !ok {
			keys = append(keys, r.target.key)
		}
		byKey[r.target.key] = append(byKey[r.target.key], r)
	}

	var batches []*batch
	for _, key := range keys {
		for _, chunk := range util.Batch(byKey[key], maxBatchSize) {
			batches = append(batches, &batch{
				target:   chunk[0].target,
				requests: chunk,
			})
		}
	}
	sort.SliceStable(batches, func(i, j int) bool {
		return len(batches[i].requests) > len(batches[j].requests)
	})
	return batches
}

// flush runs a single batch former cycle: it drains the queue, forms batches and hands each one to a
// free worker. Outside of the final cycle, batches for which no worker is free go back on the queue.
// Only one cycle runs at a time. The returned error is only ever a resource exhaustion; worker
// failures are reported through s.failure().
func (s *Sink) flush(mode flushMode) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	defer func() { s.metrics.SetQueueLength(s.queue.len()) }()

	if mode != flushFinal && s.currentState() != running {
		return nil
	}
	if s.failure() != nil {
		return nil
	}

	pending := s.queue.drain()
	if len(pending) == 0 {
		return nil
	}
	batches := formBatches(pending, s.config.MaxBatchSize)

	var undispatched []*pendingRequest
	dispatched := 0
	for i, b := range batches {
		if s.failure() != nil {
			undispatched = appendRequests(undispatched, batches[i:])
			break
		}
		if mode == flushFinal {
			if err := s.acquireSlot(); err != nil {
				s.queue.requeue(appendRequests(undispatched, batches[i:]))
				return err
			}
		} else if !s.slots.TryAcquire(1) {
			undispatched = append(undispatched, b.requests...)
			continue
		}
		s.dispatch(b)
		dispatched++
	}

	if len(undispatched) > 0 {
		s.queue.requeue(undispatched)
		s.metrics.RecordRequeued(len(undispatched))
	}
	log.WithField("mode", mode).
		WithField("requests", len(pending)).
		WithField("batches", len(batches)).
		WithField("dispatched", dispatched).
		WithField("requeued", len(undispatched)).
		Debug("Flushed pending writes")
	return nil
}

// acquireSlot blocks until a worker is free, for at most DrainTimeout.
func (s *Sink) acquireSlot() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.clock.After(s.config.DrainTimeout):
			cancel()
		case <-ctx.Done():
		}
	}()
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return errors.WithStack(&sinkerrors.ErrResourceExhausted{
			Resource: "a worker slot",
			Timeout:  s.config.DrainTimeout,
			Message:  "pending writes could not be flushed",
		})
	}
	return nil
}

func appendRequests(requests []*pendingRequest, batches []*batch) []*pendingRequest {
	for _, b := range batches {
		requests = append(requests, b.requests...)
	}
	return requests
}
