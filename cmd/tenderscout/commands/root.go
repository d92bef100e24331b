package commands

import (
	"context"
	"eprocure-backend/internal/components/telemetry"
	"eprocure-backend/internal/config"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	debug      *bool

	cfg       config.Config
	tel       telemetry.API
	otelSetup telemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:           "tenderscout",
	SilenceErrors: true,
	Short:         "tenderscout acquires tenders from the central public procurement portal by keyword.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(*debug)
		tel = telemetry.NewSlogAPI(nil)

		loaded, err := config.Load(*configPath, os.LookupEnv)
		if err != nil {
			return err
		}
		cfg = loaded

		setup, err := telemetry.Setup(cmd.Context(), "tenderscout", cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}
		otelSetup = setup
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return otelSetup.Shutdown(context.Background())
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The json5 config file, <name>.local.json5 overrides it.")
	debug = rootCmd.PersistentFlags().Bool("debug", false, "Log debug output.")
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
