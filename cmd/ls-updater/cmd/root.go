package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nkruiper/ls-updater/internal/config"
	"github.com/nkruiper/ls-updater/internal/service/upgrade"
	"github.com/nkruiper/ls-updater/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// catalogURL optionally overrides the releases page address.
	catalogURL string

	// rootCmd represents the base command checking for and applying upgrades.
	rootCmd = &cobra.Command{
		Use:          "ls-updater",
		Short:        "Check for and apply LimeSurvey upgrades",
		Long:         "Detect the installed LimeSurvey version, query the releases catalog for the configured channel, and when an upgrade is due run the scripted upgrade sequence: stop the web server, back up the database and application files, replace the installation, restore user files, fix ownership and permissions, and start the web server again.",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &upgrade.Options{
				ConfigPath: configPath,
				CatalogURL: catalogURL,
			}

			return upgrade.Run(ctx, options)
		},
	}
)

// Execute runs the ls-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVar(&catalogURL, "releases-url", "", "override the releases page URL")
}
