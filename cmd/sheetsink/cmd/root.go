package cmd

import (
	"github.com/spf13/cobra"

	"github.com/data-integrations/google-drive-sub000/internal/common"
	"github.com/data-integrations/google-drive-sub000/internal/sheetsink/configuration"
)

const (
	CustomConfigLocation = "config"
	defaultConfigPath    = "./config/sheetsink"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "sheetsink",
		SilenceUsage: true,
		Short:        "Streams row records into spreadsheet documents in coalesced batches",
	}

	cmd.PersistentFlags().StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")

	cmd.AddCommand(
		runCmd(),
		validateConfigCmd(),
	)

	return cmd
}

func loadConfig(cmd *cobra.Command) (configuration.SheetSinkConfiguration, error) {
	var config configuration.SheetSinkConfiguration
	userSpecifiedConfigs, err := cmd.Flags().GetStringSlice(CustomConfigLocation)
	if err != nil {
		return config, err
	}
	_, err = common.LoadConfig(&config, defaultConfigPath, userSpecifiedConfigs, cmd.Flags())
	return config, err
}
