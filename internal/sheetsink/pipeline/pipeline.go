// Package pipeline streams records from an input into a sheet sink backed by the configured backend.
package pipeline

import (
	"context"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/data-integrations/google-drive-sub000/internal/common"
	"github.com/data-integrations/google-drive-sub000/internal/common/util"
	"github.com/data-integrations/google-drive-sub000/internal/sheets"
	"github.com/data-integrations/google-drive-sub000/internal/sheets/fake"
	"github.com/data-integrations/google-drive-sub000/internal/sheets/xlsx"
	"github.com/data-integrations/google-drive-sub000/internal/sheetsink"
	"github.com/data-integrations/google-drive-sub000/internal/sheetsink/configuration"
	"github.com/data-integrations/google-drive-sub000/internal/sheetsink/input"
)

// Run writes every record read from in until in is exhausted or ctx is cancelled, then closes the
// sink. Cancellation is a clean shutdown: everything already written is still flushed.
func Run(ctx context.Context, config configuration.SheetSinkConfiguration, in io.ReadCloser) error {
	log.WithField("backend", config.Backend).Info("Sheet sink starting")

	client, err := newClient(config)
	if err != nil {
		return err
	}
	if closer, ok := client.(io.Closer); ok {
		defer util.CloseResource("spreadsheet backend", closer)
	}
	if config.MetricsPort > 0 {
		shutdownMetricServer := common.ServeMetrics(config.MetricsPort)
		defer shutdownMetricServer()
	}
	return run(ctx, client, config.Sink, in)
}

func newClient(config configuration.SheetSinkConfiguration) (sheets.Client, error) {
	switch config.Backend {
	case configuration.BackendXlsx:
		client, err := xlsx.NewClient(config.Xlsx.RootDir)
		if err != nil {
			return nil, err
		}
		return client, nil
	case configuration.BackendMemory:
		return fake.NewClient(), nil
	default:
		return nil, errors.Errorf("unknown backend %q", config.Backend)
	}
}

func run(ctx context.Context, client sheets.Client, config configuration.SinkConfiguration, in io.ReadCloser) error {
	sink := sheetsink.NewSink(client, config)
	records := make(chan sheetsink.Record)
	written := 0

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(records)
		return decode(groupCtx, input.NewDecoder(in), in, records)
	})
	g.Go(func() error {
		// Every record the decoder hands over is written, even once the group is cancelled
		for record := range records {
			if err := sink.Write(ctx, record); err != nil {
				return errors.WithMessagef(err, "failed to write record %d to %s", written+1, record.Destination)
			}
			written++
		}
		return nil
	})

	var result *multierror.Error
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			log.Info("Interrupted; flushing records written so far")
		} else {
			result = multierror.Append(result, err)
		}
	}
	if err := sink.Close(); err != nil {
		result = multierror.Append(result, errors.WithMessage(err, "failed to close sheet sink"))
	}
	log.Infof("Wrote %d records", written)
	return result.ErrorOrNil()
}

// decode sends every record from decoder to records. in is closed if ctx is cancelled so that a
// blocked read returns.
func decode(ctx context.Context, decoder *input.Decoder, in io.Closer, records chan<- sheetsink.Record) error {
	stop := context.AfterFunc(ctx, func() {
		_ = in.Close()
	})
	defer stop()

	for {
		record, err := decoder.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		select {
		case records <- record:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
