package sheets_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-integrations/google-drive-sub000/internal/common/sinkerrors"
	"github.com/data-integrations/google-drive-sub000/internal/sheets"
	"github.com/data-integrations/google-drive-sub000/internal/sheets/fake"
)

var testRetryConfig = sheets.RetryConfig{
	MaxAttempts: 5,
	BaseDelay:   time.Millisecond,
	MaxWait:     4 * time.Millisecond,
}

func rateLimited() error {
	return sheets.NewRemoteError(sheets.OpBatchUpdate, http.StatusTooManyRequests, "quota exceeded")
}

type countingRecorder struct {
	calls   map[string]int
	retries map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{calls: map[string]int{}, retries: map[string]int{}}
}

func (r *countingRecorder) RecordRemoteCall(operation string) {
	r.calls[operation]++
}

func (r *countingRecorder) RecordRemoteRetry(operation string) {
	r.retries[operation]++
}

func TestRetryingClient_SucceedsAfterTransientErrors(t *testing.T) {
	remote := fake.NewClient()
	recorder := newCountingRecorder()
	client := sheets.NewRetryingClient(remote, testRetryConfig, recorder)

	doc, err := client.CreateDocument(context.Background(), "doc", "sheet")
	require.NoError(t, err)

	remote.FailNext(sheets.OpBatchUpdate, rateLimited(), rateLimited())
	err = client.BatchUpdate(context.Background(), doc.ID, []sheets.UpdateCells{
		{SheetID: doc.Sheet.ID, Rows: []sheets.RowData{sheets.Row("a")}},
	}, nil)

	assert.NoError(t, err)
	assert.Equal(t, 3, remote.Calls(sheets.OpBatchUpdate))
	assert.Equal(t, [][]string{{"a"}}, remote.Rows(doc.ID, doc.Sheet.ID))
	assert.Equal(t, map[string]int{sheets.OpCreateDocument: 1, sheets.OpBatchUpdate: 3}, recorder.calls)
	assert.Equal(t, map[string]int{sheets.OpBatchUpdate: 2}, recorder.retries)
}

func TestRetryingClient_PermanentErrorNotRetried(t *testing.T) {
	remote := fake.NewClient()
	client := sheets.NewRetryingClient(remote, testRetryConfig, nil)

	permanent := sheets.NewRemoteError(sheets.OpCreateDocument, http.StatusForbidden, "insufficient permissions")
	remote.FailNext(sheets.OpCreateDocument, permanent)

	_, err := client.CreateDocument(context.Background(), "doc", "sheet")

	require.Error(t, err)
	assert.Equal(t, 1, remote.Calls(sheets.OpCreateDocument))
	var remoteErr *sheets.RemoteError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusForbidden, remoteErr.Status)
	var maxRetries *sinkerrors.ErrMaxRetriesExceeded
	assert.False(t, errors.As(err, &maxRetries))
}

func TestRetryingClient_GivesUpAfterMaxAttempts(t *testing.T) {
	remote := fake.NewClient()
	client := sheets.NewRetryingClient(remote, testRetryConfig, nil)

	doc, err := client.CreateDocument(context.Background(), "doc", "sheet")
	require.NoError(t, err)

	unavailable := sheets.NewRemoteError(sheets.OpExtendDimension, http.StatusServiceUnavailable, "backend unavailable")
	remote.FailNext(sheets.OpExtendDimension, unavailable, unavailable, unavailable, unavailable, unavailable, unavailable)

	err = client.ExtendDimension(context.Background(), doc.ID, doc.Sheet.ID, sheets.Rows, 10)

	require.Error(t, err)
	assert.Equal(t, 5, remote.Calls(sheets.OpExtendDimension))
	var maxRetries *sinkerrors.ErrMaxRetriesExceeded
	require.True(t, errors.As(err, &maxRetries))
	assert.ErrorIs(t, err, unavailable)
}

func TestRetryingClient_StopsWhenContextCancelled(t *testing.T) {
	remote := fake.NewClient()
	config := testRetryConfig
	config.BaseDelay = time.Hour
	config.MaxWait = time.Hour
	client := sheets.NewRetryingClient(remote, config, nil)

	remote.FailNext(sheets.OpCreateDocument, rateLimited())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.CreateDocument(ctx, "doc", "sheet")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, remote.Calls(sheets.OpCreateDocument))
}

func TestRetryConfig_Backoff(t *testing.T) {
	config := sheets.RetryConfig{BaseDelay: 100 * time.Millisecond, MaxWait: time.Second}
	tests := map[string]struct {
		n    uint
		want time.Duration
	}{
		"first retry":  {0, 100 * time.Millisecond},
		"second retry": {1, 200 * time.Millisecond},
		"third retry":  {2, 400 * time.Millisecond},
		"capped":       {4, time.Second},
		"overflow":     {200, time.Second},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, config.Backoff(tc.n))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := map[string]struct {
		err  error
		want sheets.ErrorClass
	}{
		"rate limited":          {rateLimited(), sheets.Transient},
		"unavailable":           {sheets.NewRemoteError("", http.StatusServiceUnavailable, "down"), sheets.Transient},
		"wrapped rate limit":    {errors.WithMessage(rateLimited(), "writing"), sheets.Transient},
		"bad request":           {sheets.NewRemoteError("", http.StatusBadRequest, "bad"), sheets.Permanent},
		"internal server error": {sheets.NewRemoteError("", http.StatusInternalServerError, "oops"), sheets.Permanent},
		"plain error":           {errors.New("boom"), sheets.Permanent},
		"deadline":              {context.DeadlineExceeded, sheets.Permanent},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, sheets.Classify(tc.err))
		})
	}
}
