package sheetsink

import (
	"sort"
	"sync"

	"github.com/data-integrations/google-drive-sub000/internal/sheets"
)

// target is a copy of the remote identifiers of a destination, taken when a request is created.
type target struct {
	key        DestinationKey
	documentID string
	sheetID    int64
}

// pendingRequest is a block of rows waiting to be written. Its position is fixed when it is created
// and never changes, however long it waits in the queue.
type pendingRequest struct {
	// Enqueue order across all destinations
	seq      uint64
	target   target
	startRow int
	rows     []sheets.RowData
	// Absolute ranges on the target sheet
	merges []sheets.GridRange
}

func (r *pendingRequest) endRow() int {
	return r.startRow + len(r.rows)
}

// pendingQueue holds requests waiting for the batch former. Push and drain may happen concurrently.
type pendingQueue struct {
	mu        sync.Mutex
	items     []*pendingRequest
	highWater int
}

func (q *pendingQueue) push(r *pendingRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, r)
	if len(q.items) > q.highWater {
		q.highWater = len(q.items)
	}
}

// drain removes and returns everything currently queued.
func (q *pendingQueue) drain() []*pendingRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// requeue puts requests that could not be dispatched back at the head of the queue. Anything pushed
// since they were drained is newer, so the queue stays in enqueue order.
func (q *pendingQueue) requeue(requests []*pendingRequest) {
	if len(requests) == 0 {
		return
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].seq < requests[j].seq })
	q.mu.Lock()
	defer q.mu.Unlock()
	items := make([]*pendingRequest, 0, len(requests)+len(q.items))
	items = append(items, requests...)
	q.items = append(items, q.items...)
	if len(q.items) > q.highWater {
		q.highWater = len(q.items)
	}
}

func (q *pendingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// maxLen returns the longest the queue has ever been.
func (q *pendingQueue) maxLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.highWater
}
