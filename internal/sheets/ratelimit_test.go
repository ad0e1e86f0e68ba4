package sheets_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-integrations/google-drive-sub000/internal/sheets"
	"github.com/data-integrations/google-drive-sub000/internal/sheets/fake"
)

func TestRateLimitedClient_ForwardsCalls(t *testing.T) {
	remote := fake.NewClient()
	client := sheets.NewRateLimitedClient(remote, sheets.RateLimitConfig{RequestsPerSecond: 1000, Burst: 10})

	doc, err := client.CreateDocument(context.Background(), "doc", "first")
	require.NoError(t, err)
	_, err = client.CreateSheet(context.Background(), doc.ID, "second")
	require.NoError(t, err)
	require.NoError(t, client.ExtendDimension(context.Background(), doc.ID, doc.Sheet.ID, sheets.Columns, 4))
	require.NoError(t, client.MoveToFolder(context.Background(), doc.ID, "folder"))

	assert.Equal(t, 1, remote.Calls(sheets.OpCreateDocument))
	assert.Equal(t, 1, remote.Calls(sheets.OpCreateSheet))
	assert.Equal(t, 1, remote.Calls(sheets.OpExtendDimension))
	assert.Equal(t, "folder", remote.Folder(doc.ID))
	s, ok := remote.Sheet(doc.ID, "first")
	require.True(t, ok)
	assert.Equal(t, fake.DefaultColumnCapacity+4, s.ColumnCapacity)
}

func TestRateLimitedClient_CancelledContext(t *testing.T) {
	remote := fake.NewClient()
	client := sheets.NewRateLimitedClient(remote, sheets.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.CreateDocument(ctx, "doc", "sheet")

	assert.Error(t, err)
	assert.Equal(t, 0, remote.Calls(sheets.OpCreateDocument))
}
