package configuration

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/data-integrations/google-drive-sub000/internal/common/logging"
	"github.com/data-integrations/google-drive-sub000/internal/sheets"
)

// Backend selects the implementation of the remote spreadsheet service.
type Backend string

const (
	// BackendXlsx writes documents as .xlsx workbooks on the local filesystem
	BackendXlsx Backend = "xlsx"
	// BackendMemory keeps documents in memory; useful for dry runs
	BackendMemory Backend = "memory"
)

// UnmarshalText accepts a backend name in any case.
func (b *Backend) UnmarshalText(text []byte) error {
	switch backend := Backend(strings.ToLower(strings.TrimSpace(string(text)))); backend {
	case BackendXlsx, BackendMemory:
		*b = backend
		return nil
	default:
		return errors.Errorf("unknown backend %q; valid backends are %s and %s", string(text), BackendXlsx, BackendMemory)
	}
}

type SheetSinkConfiguration struct {
	// Port on which prometheus metrics are served. Zero disables the metrics server
	MetricsPort uint16
	// Remote spreadsheet implementation
	Backend Backend `validate:"oneof=xlsx memory"`
	// Only used with the xlsx backend
	Xlsx XlsxConfig
	Logging logging.Config
	Sink    SinkConfiguration
}

type XlsxConfig struct {
	// Directory under which workbooks and folders are created
	RootDir string `validate:"required"`
}

type SinkConfiguration struct {
	// Number of batches that may be flushed concurrently
	Workers int `validate:"gt=0"`
	// Maximum number of pending writes in a single batch
	MaxBatchSize int `validate:"gt=0"`
	// Queue length at which the producer is blocked until the queue is drained below it
	QueueFlushThreshold int `validate:"gt=0"`
	// Time between periodic flushes of the queue
	FlushInterval time.Duration `validate:"gt=0"`
	// Maximum time a single batch update, retries included, may take
	BatchTimeout time.Duration `validate:"gt=0"`
	// Minimum number of rows or columns added whenever a sheet has to grow
	MinExtension int `validate:"gt=0"`
	// Maximum time to wait for a worker slot, and then for all workers, when closing
	DrainTimeout time.Duration `validate:"gt=0"`
	// Wait between flush attempts while the producer is blocked
	BackpressureWait time.Duration `validate:"gt=0"`
	// If set, newly created documents are moved into this folder
	FolderID string
	Retry     sheets.RetryConfig
	RateLimit sheets.RateLimitConfig
}
