package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-integrations/google-drive-sub000/internal/sheets"
	"github.com/data-integrations/google-drive-sub000/internal/sheets/fake"
	"github.com/data-integrations/google-drive-sub000/internal/sheetsink/configuration"
)

const records = `{"document":"sales","sheet":"q1","header":[["Region","Total"]],"rows":[["north",10]]}
{"document":"sales","sheet":"q1","header":[["Region","Total"]],"rows":[["south",20]]}
{"document":"sales","sheet":"q2","rows":[["east",30]]}
`

func testConfig() configuration.SinkConfiguration {
	return configuration.SinkConfiguration{
		Workers:             2,
		MaxBatchSize:        10,
		QueueFlushThreshold: 100,
		FlushInterval:       time.Hour,
		BatchTimeout:        5 * time.Second,
		MinExtension:        100,
		DrainTimeout:        5 * time.Second,
		BackpressureWait:    time.Millisecond,
		Retry: sheets.RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   time.Millisecond,
			MaxWait:     time.Millisecond,
		},
	}
}

func TestRun_WritesEveryRecord(t *testing.T) {
	client := fake.NewClient()
	err := run(context.Background(), client, testConfig(), io.NopCloser(strings.NewReader(records)))
	require.NoError(t, err)

	require.Len(t, client.DocumentIDs(), 1)
	id := client.DocumentIDs()[0]
	assert.Equal(t, "sales", client.DocumentName(id))

	q1, ok := client.Sheet(id, "q1")
	require.True(t, ok)
	assert.Equal(t, [][]string{{"Region", "Total"}, {"north", "10"}, {"south", "20"}}, client.Rows(id, q1.ID))

	q2, ok := client.Sheet(id, "q2")
	require.True(t, ok)
	assert.Equal(t, [][]string{{"east", "30"}}, client.Rows(id, q2.ID))
}

func TestRun_InvalidInputStillFlushes(t *testing.T) {
	client := fake.NewClient()
	in := records + "not json\n" + `{"document":"sales","sheet":"q3","rows":[["west"]]}` + "\n"

	err := run(context.Background(), client, testConfig(), io.NopCloser(strings.NewReader(in)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 4")

	id := client.DocumentIDs()[0]
	_, ok := client.Sheet(id, "q3")
	assert.False(t, ok)
	assert.Equal(t, 4, client.TotalRowsWritten())
}

func TestRun_CancelledContext(t *testing.T) {
	client := fake.NewClient()
	reader, writer := io.Pipe()
	defer writer.Close()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() {
		done <- run(ctx, client, testConfig(), reader)
	}()
	_, err := writer.Write([]byte(`{"document":"sales","sheet":"q1","rows":[["north"]]}` + "\n"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return client.Calls(sheets.OpCreateDocument) == 1
	}, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.Fail(t, "run did not return after cancellation")
	}
	assert.Equal(t, 1, client.TotalRowsWritten())
}

func TestRun_XlsxBackend(t *testing.T) {
	root := t.TempDir()
	config := configuration.SheetSinkConfiguration{
		Backend: configuration.BackendXlsx,
		Xlsx:    configuration.XlsxConfig{RootDir: root},
		Sink:    testConfig(),
	}
	config.Sink.FolderID = "exports"

	require.NoError(t, Run(context.Background(), config, io.NopCloser(strings.NewReader(records))))

	workbooks, err := filepath.Glob(filepath.Join(root, "exports", "*.xlsx"))
	require.NoError(t, err)
	assert.Len(t, workbooks, 1)
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
