package cmd

import (
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/data-integrations/google-drive-sub000/internal/common/app"
	"github.com/data-integrations/google-drive-sub000/internal/common/logging"
	"github.com/data-integrations/google-drive-sub000/internal/sheetsink/pipeline"
)

const inputFlag = "input"

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Write JSON-lines records to spreadsheets",
		Long: `Reads one record per line, e.g.

  {"document":"sales","sheet":"q1","header":[["Region","Total"]],"rows":[["north",10]]}

and writes it to the named sheet, creating the document and sheet on first use.`,
		RunE: runSink,
	}
	cmd.Flags().String(inputFlag, "-", "File to read records from; - reads standard input")
	cmd.Flags().Uint16("metricsPort", 0, "Port to serve prometheus metrics on; overrides config when set")
	return cmd
}

func runSink(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := logging.ConfigureApplicationLogging(log.StandardLogger(), config.Logging); err != nil {
		return err
	}

	path, err := cmd.Flags().GetString(inputFlag)
	if err != nil {
		return err
	}
	var in io.ReadCloser = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return errors.WithStack(err)
		}
		in = f
	}
	defer in.Close()

	return pipeline.Run(app.CreateContextWithShutdown(), config, in)
}
