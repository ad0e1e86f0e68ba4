package sheets

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitConfig bounds the rate of calls made to the remote service from this process.
type RateLimitConfig struct {
	// Sustained requests per second. Zero disables client-side limiting
	RequestsPerSecond float64 `validate:"gte=0"`
	// Maximum burst above the sustained rate
	Burst int `validate:"gte=0"`
}

func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerSecond > 0
}

// RateLimitedClient waits on a token bucket before forwarding each call. Retries issued by a
// RetryingClient wrapped around it are limited too.
type RateLimitedClient struct {
	client  Client
	limiter *rate.Limiter
}

func NewRateLimitedClient(client Client, config RateLimitConfig) *RateLimitedClient {
	burst := config.Burst
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst),
	}
}

func (c *RateLimitedClient) CreateDocument(ctx context.Context, name string, initialSheetTitle string) (Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Document{}, err
	}
	return c.client.CreateDocument(ctx, name, initialSheetTitle)
}

func (c *RateLimitedClient) CreateSheet(ctx context.Context, documentID string, title string) (Sheet, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Sheet{}, err
	}
	return c.client.CreateSheet(ctx, documentID, title)
}

func (c *RateLimitedClient) ExtendDimension(ctx context.Context, documentID string, sheetID int64, dimension Dimension, amount int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.client.ExtendDimension(ctx, documentID, sheetID, dimension, amount)
}

func (c *RateLimitedClient) BatchUpdate(ctx context.Context, documentID string, updates []UpdateCells, merges []MergeCells) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.client.BatchUpdate(ctx, documentID, updates, merges)
}

func (c *RateLimitedClient) MoveToFolder(ctx context.Context, documentID string, folderID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.client.MoveToFolder(ctx, documentID, folderID)
}
