package sheetsink

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/data-integrations/google-drive-sub000/internal/sheets"
)

func requests(key DestinationKey, firstSeq uint64, n int) []*pendingRequest {
	out := make([]*pendingRequest, n)
	for i := range out {
		out[i] = &pendingRequest{
			seq:      firstSeq + uint64(i),
			target:   target{key: key},
			startRow: i,
			rows:     []sheets.RowData{sheets.Row("x")},
		}
	}
	return out
}

func seqs(requests []*pendingRequest) []uint64 {
	out := make([]uint64, len(requests))
	for i, r := range requests {
		out[i] = r.seq
	}
	return out
}

func TestFormBatches(t *testing.T) {
	tests := map[string]struct {
		requests     []*pendingRequest
		maxBatchSize int
		expected     [][]uint64
	}{
		"empty": {
			maxBatchSize: 3,
		},
		"single destination fits one batch": {
			requests:     requests(reports, 1, 3),
			maxBatchSize: 3,
			expected:     [][]uint64{{1, 2, 3}},
		},
		"single destination split": {
			requests:     requests(reports, 1, 5),
			maxBatchSize: 2,
			expected:     [][]uint64{{1, 2}, {3, 4}, {5}},
		},
		"largest first": {
			requests:     append(requests(reports, 1, 1), requests(invoices, 2, 3)...),
			maxBatchSize: 5,
			expected:     [][]uint64{{2, 3, 4}, {1}},
		},
		"equal sizes keep first appearance order": {
			requests:     append(requests(invoices, 1, 2), requests(reports, 3, 2)...),
			maxBatchSize: 2,
			expected:     [][]uint64{{1, 2}, {3, 4}},
		},
		"interleaved destinations": {
			requests: []*pendingRequest{
				requests(reports, 1, 1)[0],
				requests(invoices, 2, 1)[0],
				requests(reports, 3, 1)[0],
				requests(invoices, 4, 1)[0],
				requests(reports, 5, 1)[0],
			},
			maxBatchSize: 2,
			expected:     [][]uint64{{1, 3}, {2, 4}, {5}},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			batches := formBatches(tc.requests, tc.maxBatchSize)
			var actual [][]uint64
			for _, b := range batches {
				assert.LessOrEqual(t, len(b.requests), tc.maxBatchSize)
				for _, r := range b.requests {
					assert.Equal(t, b.target.key, r.target.key)
				}
				actual = append(actual, seqs(b.requests))
			}
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestBatch_UpdateRequests(t *testing.T) {
	b := &batch{
		target: target{key: reports, sheetID: 7},
		requests: []*pendingRequest{
			{seq: 1, startRow: 0, rows: []sheets.RowData{sheets.Row("a"), sheets.Row("b")}},
			{seq: 2, startRow: 2, rows: []sheets.RowData{sheets.Row("c")},
				merges: []sheets.GridRange{{SheetID: 7, StartRow: 2, EndRow: 3, StartColumn: 0, EndColumn: 2}}},
			{seq: 3, startRow: 5, rows: []sheets.RowData{sheets.Row("d")}},
		},
	}

	updates, merges := b.updateRequests()
	assert.Equal(t, []sheets.UpdateCells{
		{SheetID: 7, StartRow: 0, Rows: []sheets.RowData{sheets.Row("a"), sheets.Row("b"), sheets.Row("c")}},
		{SheetID: 7, StartRow: 5, Rows: []sheets.RowData{sheets.Row("d")}},
	}, updates)
	assert.Equal(t, []sheets.MergeCells{
		{Range: sheets.GridRange{SheetID: 7, StartRow: 2, EndRow: 3, StartColumn: 0, EndColumn: 2}},
	}, merges)

	first, last := b.rowRange()
	assert.Equal(t, 0, first)
	assert.Equal(t, 6, last)

	// The requests themselves are left untouched
	assert.Len(t, b.requests[0].rows, 2)
}

func TestPendingQueue_RequeueKeepsEnqueueOrder(t *testing.T) {
	q := &pendingQueue{}
	for _, r := range requests(reports, 1, 5) {
		q.push(r)
	}
	drained := q.drain()
	assert.Equal(t, 0, q.len())

	q.push(requests(reports, 6, 1)[0])
	q.requeue([]*pendingRequest{drained[2], drained[0], drained[1]})

	assert.Equal(t, []uint64{1, 2, 3, 6}, seqs(q.drain()))
	assert.Equal(t, 5, q.maxLen())
}
