package upgrade

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/nkruiper/ls-updater/internal/config"
	"github.com/nkruiper/ls-updater/internal/domain/release"
	"github.com/nkruiper/ls-updater/internal/logger"
	"github.com/nkruiper/ls-updater/internal/repository/catalog"
	"github.com/nkruiper/ls-updater/internal/repository/installed"
)

// Options are inputs accepted by the upgrade entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// CatalogURL overrides the releases page address; empty selects the
	// public downloads page.
	CatalogURL string
}

// Run executes one upgrade and is the public entry point for the CLI.
// It returns nil when the installation is already up to date.
func Run(ctx context.Context, opts *Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		// Log sinks are configured from the settings file, so failures up to
		// this point can only go to stderr.
		fmt.Fprintf(os.Stderr, "Unable to load and validate configuration. Full error: %v\n", err)
		return err
	}

	if err = logger.Configure(logger.Sinks{
		Stdout: cfg.LogToStdout,
		Syslog: cfg.LogToSyslog,
		File:   cfg.LogToFile,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to set up logging. Full error: %v\n", err)
		return err
	}

	ctx = logger.WithName(ctx, "ls-updater")

	if cfg.LogToStdout || cfg.LogToSyslog || cfg.LogToFile {
		logger.Banner(ctx)
	}

	logger.Info(ctx, "Loaded configuration from disk")

	run, err := newRunner(ctx, cfg, opts)
	if err != nil {
		logger.ErrorKV(ctx, "Upgrade could not start", "error", err)
		return err
	}

	defer run.cleanup(ctx)

	if err = run.Run(ctx); err != nil {
		if errors.Is(err, release.ErrAlreadyUpToDate) {
			logger.Infof(ctx, "No need to upgrade. %v", err)
			return nil
		}

		logger.ErrorKV(ctx, "Upgrade failed", "error", err)

		return err
	}

	logger.Info(ctx, "Upgrade completed. Check your installation now.")

	return nil
}

// newRunner prepares the run and writes a marker to avoid concurrent runs.
func newRunner(ctx context.Context, cfg *config.Config, opts *Options) (*runner, error) {
	if isRunningNow(ctx) {
		return nil, ErrAlreadyRunning
	}

	marker, err := os.Create(MarkerFilename)
	if err != nil {
		return nil, fmt.Errorf("create upgrade marker: %w", err)
	}

	if err = marker.Close(); err != nil {
		return nil, fmt.Errorf("close upgrade marker: %w", err)
	}

	return &runner{
		cfg:           cfg,
		installedRepo: installed.NewFileRepository(cfg.InstallPath),
		catalogRepo:   catalog.NewHTTPRepository(opts.CatalogURL, nil),
		commands:      execRunner{timeout: cfg.CommandTimeout},
		httpClient:    http.DefaultClient,
		downloadDir:   downloadDirectory,
		backupRoot:    backupRoot,
	}, nil
}
