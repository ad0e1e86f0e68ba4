package main

import (
	"os"

	"github.com/data-integrations/google-drive-sub000/cmd/sheetsink/cmd"
	"github.com/data-integrations/google-drive-sub000/internal/common"
)

func main() {
	common.ConfigureLogging()
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
