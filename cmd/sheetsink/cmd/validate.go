package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func validateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate configuration, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log.WithField("backend", config.Backend).
				WithField("workers", config.Sink.Workers).
				WithField("maxBatchSize", config.Sink.MaxBatchSize).
				Info("Configuration is valid")
			return nil
		},
	}
}
