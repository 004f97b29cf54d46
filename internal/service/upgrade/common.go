package upgrade

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/nkruiper/ls-updater/internal/logger"
)

const (
	// MarkerFilename marks that an upgrade is running right now to avoid
	// parallel execution.
	MarkerFilename = "ls-updater-marker.bin"

	// downloadDirectory receives release archives and their extractions.
	downloadDirectory = "ls_downloads"

	// backupRoot receives per-run backup artifact sets.
	backupRoot = "ls_backup"

	// updaterExecutable is the process name killed during stale-marker recovery.
	updaterExecutable = "ls-updater"

	// markerLifetime is the period after which a stale marker is ignored.
	markerLifetime = 30 * time.Second

	// defaultDirectoryMode is used for directories the run creates.
	defaultDirectoryMode os.FileMode = 0o755

	// restoredFileMode is applied to restored configuration descriptors.
	// The permission step later overrides it across the whole tree.
	restoredFileMode os.FileMode = 0o644
)

var (
	// ErrAlreadyRunning is returned when another upgrade holds the marker.
	ErrAlreadyRunning = errors.New("an upgrade is already running")

	// ErrDownload is returned when the release archive cannot be fetched.
	ErrDownload = errors.New("download failed")

	// ErrExtract is returned when the release archive cannot be unpacked.
	ErrExtract = errors.New("extract failed")

	// ErrServiceControl is returned when the web server cannot be stopped or started.
	ErrServiceControl = errors.New("service control failed")

	// ErrBackupExists is returned when a backup artifact from a previous
	// attempt occupies the target path. It is the run's idempotence guard:
	// an earlier backup is never silently clobbered.
	ErrBackupExists = errors.New("backup already exists")

	// ErrBackup is returned when a backup artifact cannot be produced.
	ErrBackup = errors.New("backup failed")

	// ErrFileOperation is returned when a copy, move or delete of
	// installation files fails.
	ErrFileOperation = errors.New("file operation failed")

	// ErrPermissionApply is returned when ownership or permissions cannot be set.
	ErrPermissionApply = errors.New("permission apply failed")
)

// isRunningNow checks presence of the marker file and attempts recovery when
// it looks stale.
func isRunningNow(ctx context.Context) bool {
	logger.Info(ctx, "Checking for the presence of an upgrade marker")

	fileInfo, err := os.Stat(MarkerFilename)
	if err == nil {
		if time.Since(fileInfo.ModTime()) <= markerLifetime {
			return true
		}

		logger.Info(ctx, "The upgrade marker is too old, attempting cleanup")

		if err = terminateProcessByName(updaterExecutable); err != nil {
			return true
		}

		if err = os.Remove(MarkerFilename); err != nil {
			return true
		}

		return false
	}

	if errors.Is(err, os.ErrNotExist) {
		logger.Info(ctx, "Upgrade marker not found, continuing")
		return false
	}

	logger.Infof(ctx, "Unable to read upgrade marker: %v", err)

	return false
}

// terminateProcessByName tries to kill processes with the provided executable name.
func terminateProcessByName(processName string) error {
	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != processName {
			continue
		}

		var runningProcess *os.Process

		runningProcess, err = os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}
	}

	return nil
}
