package sheets

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/data-integrations/google-drive-sub000/internal/common/sinkerrors"
)

// RetryConfig controls the backoff applied to every remote call.
type RetryConfig struct {
	// Maximum number of attempts, including the first one
	MaxAttempts uint `validate:"gte=1"`
	// Wait before the first retry; doubled on every subsequent retry
	BaseDelay time.Duration `validate:"gt=0"`
	// Upper bound on the exponential part of the wait
	MaxWait time.Duration `validate:"gtefield=BaseDelay"`
	// Upper bound on the random jitter added to every wait. Zero disables jitter
	MaxJitter time.Duration `validate:"gte=0"`
}

// Backoff returns the wait before retry number n+1 (n is zero based), excluding jitter.
func (c RetryConfig) Backoff(n uint) time.Duration {
	if n >= 62 {
		return c.MaxWait
	}
	d := c.BaseDelay << n
	if d <= 0 || d > c.MaxWait {
		return c.MaxWait
	}
	return d
}

func (c RetryConfig) jitter() time.Duration {
	if c.MaxJitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(c.MaxJitter)))
}

// RetryingClient wraps every call of the underlying Client in an exponential backoff retry loop.
// Only errors classified as Transient are retried.
type RetryingClient struct {
	client   Client
	config   RetryConfig
	recorder CallRecorder
}

// CallRecorder is told about every attempt a RetryingClient makes.
type CallRecorder interface {
	RecordRemoteCall(operation string)
	RecordRemoteRetry(operation string)
}

// NewRetryingClient wraps client. recorder may be nil.
func NewRetryingClient(client Client, config RetryConfig, recorder CallRecorder) *RetryingClient {
	return &RetryingClient{
		client:   client,
		config:   config,
		recorder: recorder,
	}
}

func (c *RetryingClient) CreateDocument(ctx context.Context, name string, initialSheetTitle string) (Document, error) {
	var doc Document
	err := c.withRetry(ctx, OpCreateDocument, func() error {
		var err error
		doc, err = c.client.CreateDocument(ctx, name, initialSheetTitle)
		return err
	})
	return doc, err
}

func (c *RetryingClient) CreateSheet(ctx context.Context, documentID string, title string) (Sheet, error) {
	var sheet Sheet
	err := c.withRetry(ctx, OpCreateSheet, func() error {
		var err error
		sheet, err = c.client.CreateSheet(ctx, documentID, title)
		return err
	})
	return sheet, err
}

func (c *RetryingClient) ExtendDimension(ctx context.Context, documentID string, sheetID int64, dimension Dimension, amount int) error {
	return c.withRetry(ctx, OpExtendDimension, func() error {
		return c.client.ExtendDimension(ctx, documentID, sheetID, dimension, amount)
	})
}

func (c *RetryingClient) BatchUpdate(ctx context.Context, documentID string, updates []UpdateCells, merges []MergeCells) error {
	return c.withRetry(ctx, OpBatchUpdate, func() error {
		return c.client.BatchUpdate(ctx, documentID, updates, merges)
	})
}

func (c *RetryingClient) MoveToFolder(ctx context.Context, documentID string, folderID string) error {
	return c.withRetry(ctx, OpMoveToFolder, func() error {
		return c.client.MoveToFolder(ctx, documentID, folderID)
	})
}

func (c *RetryingClient) withRetry(ctx context.Context, operation string, action func() error) error {
	var attempts uint
	var lastErr error
	err := retry.Do(
		func() error {
			attempts++
			if c.recorder != nil {
				c.recorder.RecordRemoteCall(operation)
				if attempts > 1 {
					c.recorder.RecordRemoteRetry(operation)
				}
			}
			lastErr = action()
			return lastErr
		},
		retry.Context(ctx),
		retry.Attempts(c.config.MaxAttempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRetryable),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return c.config.Backoff(n) + c.config.jitter()
		}),
		retry.OnRetry(func(n uint, err error) {
			if n+1 < c.config.MaxAttempts {
				log.WithError(err).
					WithField("operation", operation).
					WithField("attempt", n+1).
					Warnf("Retryable error calling remote spreadsheet service, backing off for up to %s", c.config.Backoff(n)+c.config.MaxJitter)
			}
		}),
	)
	if err == nil {
		return nil
	}
	if attempts >= c.config.MaxAttempts && IsRetryable(lastErr) {
		return errors.WithStack(&sinkerrors.ErrMaxRetriesExceeded{
			Message:   fmt.Sprintf("gave up on %s after %d attempts", operation, attempts),
			LastError: lastErr,
		})
	}
	return errors.WithStack(err)
}
