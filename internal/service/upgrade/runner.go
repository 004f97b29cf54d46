package upgrade

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/nkruiper/ls-updater/internal/config"
	"github.com/nkruiper/ls-updater/internal/domain/release"
	"github.com/nkruiper/ls-updater/internal/logger"
	"github.com/nkruiper/ls-updater/internal/repository/catalog"
	"github.com/nkruiper/ls-updater/internal/repository/installed"
)

// Paths inside the installation tree and the release archive.
const (
	// uploadDirName is the user uploads directory below the installation root.
	uploadDirName = "upload"
	// configRelativePath is the main configuration descriptor.
	configRelativePath = "application/config/config.php"
	// securityRelativePath is the security descriptor; it only exists in
	// 4.x and 5.x installations.
	securityRelativePath = "application/config/security.php"
	// bundledTreeName is the application subtree inside the release archive.
	bundledTreeName = "limesurvey"
	// backupArchiveSuffix names the full-tree archive in the backup set.
	backupArchiveSuffix = "_backup.zip"
)

var errUnexpectedHTTPStatus = errors.New("unexpected http status")

// runner holds the state of a single upgrade execution.
// It is intentionally unexported, call Run(ctx, Options) from callers.
type runner struct {
	cfg           *config.Config       // Validated run configuration.
	installedRepo installed.Repository // Reads the installed version descriptor.
	catalogRepo   catalog.Repository   // Fetches the release catalog.
	commands      CommandRunner        // Executes external commands.
	httpClient    *http.Client         // Downloads the release archive.
	downloadDir   string               // Where archives land and get extracted.
	backupRoot    string               // Root for per-run backup sets.

	installed     release.InstalledVersion // Detected installed version.
	target        *release.Release         // Chosen upgrade target.
	backupPath    string                   // Backup set for this run.
	archivePath   string                   // Downloaded release archive.
	extractedPath string                   // Extraction directory for the archive.
}

// Run resolves the upgrade target and drives the step sequence. Every step
// either succeeds or aborts the whole run; no step is retried and nothing is
// undone on failure.
func (r *runner) Run(ctx context.Context) error {
	if err := r.resolveTarget(ctx); err != nil {
		return err
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"download release", r.downloadRelease},
		{"extract release", r.extractRelease},
		{"stop web server", r.stopService},
		{"back up database", r.backupDatabase},
		{"back up application files", r.backupApplication},
		{"copy files needed for restore", r.copyRestoreFiles},
		{"delete existing application files", r.removeInstallation},
		{"move new application files", r.installRelease},
		{"restore needed files", r.restoreFiles},
		{"apply ownership", r.applyOwnership},
		{"apply permissions", r.applyPermissions},
		{"start web server", r.startService},
	}

	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	return nil
}

// resolveTarget detects the installed version, fetches the catalog and picks
// the release to install. No side effect happens before this completes.
func (r *runner) resolveTarget(ctx context.Context) error {
	current, err := r.installedRepo.Current(ctx)
	if err != nil {
		return fmt.Errorf("determine current version: %w", err)
	}

	r.installed = current
	logger.Infof(ctx, "Current version: %s", current.Code())

	logger.Info(ctx, "Retrieving latest releases")

	releases, err := r.catalogRepo.Releases(ctx)
	if err != nil {
		return err
	}

	for _, entry := range releases {
		logger.InfoKV(ctx, "Available release",
			"code", entry.Code, "channel", entry.Channel, "url", entry.DownloadURL)
	}

	target, err := release.Resolve(current, releases, r.cfg.Channel(), r.cfg.ComparisonMode())
	if err != nil {
		return err
	}

	r.target = target
	r.backupPath = filepath.Join(r.backupRoot, current.Code()+"_to_"+target.Code)
	logger.Infof(ctx, "Version to install: %s", target.Code)

	return nil
}

// downloadRelease fetches the release archive, removing any file a previous
// attempt left at the destination.
func (r *runner) downloadRelease(ctx context.Context) error {
	logger.Infof(ctx, "Downloading release: %s", r.target.DownloadURL)

	if err := os.MkdirAll(r.downloadDir, defaultDirectoryMode); err != nil {
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}

	r.archivePath = filepath.Join(r.downloadDir, r.target.Code+".zip")

	if _, err := os.Stat(r.archivePath); err == nil {
		logger.Infof(ctx, "Removing existing file: %s", r.archivePath)

		if err = os.Remove(r.archivePath); err != nil {
			return fmt.Errorf("%w: %v", ErrDownload, err)
		}
	}

	if err := r.fetchArchive(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}

	logger.Infof(ctx, "Downloaded release: %s", r.archivePath)

	return nil
}

// fetchArchive streams the release archive to the download path.
func (r *runner) fetchArchive(ctx context.Context) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.target.DownloadURL, http.NoBody)
	if err != nil {
		return err
	}

	response, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %w", response.Status, errUnexpectedHTTPStatus)
	}

	outputFile, err := os.Create(r.archivePath)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := outputFile.Close(); err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(outputFile, response.Body)

	return err
}

// extractRelease unpacks the archive into a versioned directory, removing any
// extraction a previous attempt left behind.
func (r *runner) extractRelease(ctx context.Context) error {
	logger.Infof(ctx, "Extracting release from zip: %s", r.archivePath)

	r.extractedPath = filepath.Join(r.downloadDir, r.target.Code)

	if _, err := os.Stat(r.extractedPath); err == nil {
		logger.Infof(ctx, "Removing existing folder: %s", r.extractedPath)

		if err = os.RemoveAll(r.extractedPath); err != nil {
			return fmt.Errorf("%w: %v", ErrExtract, err)
		}
	}

	if err := extractZip(r.archivePath, r.extractedPath); err != nil {
		return fmt.Errorf("%w: %v", ErrExtract, err)
	}

	return nil
}

// stopService stops the web server before any destructive filesystem change,
// so the service never serves or writes files mid-swap. Stopping before the
// backup also keeps the database dump consistent.
func (r *runner) stopService(ctx context.Context) error {
	logger.Infof(ctx, "Stopping web server service: %s with init system: %s",
		r.cfg.WebServerService, r.cfg.WebServerInitSystem)

	if err := r.controlService(ctx, verbStop); err != nil {
		return err
	}

	logger.Info(ctx, "Stopped web server")

	return nil
}

// startService starts the web server again as the final step.
func (r *runner) startService(ctx context.Context) error {
	logger.Infof(ctx, "Starting web server service: %s with init system: %s",
		r.cfg.WebServerService, r.cfg.WebServerInitSystem)

	if err := r.controlService(ctx, verbStart); err != nil {
		return err
	}

	logger.Info(ctx, "Started web server")

	return nil
}

// controlService dispatches the init-system command for the provided verb.
func (r *runner) controlService(ctx context.Context, verb string) error {
	commandLine, err := serviceCommand(r.cfg.WebServerInitSystem, r.cfg.WebServerService, verb)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceControl, err)
	}

	if _, err = r.commands.Run(ctx, commandLine[0], commandLine[1:]...); err != nil {
		return fmt.Errorf("%w: %v", ErrServiceControl, err)
	}

	return nil
}

// backupDatabase dumps the database into the backup set. A dump left by a
// previous attempt is a hard stop, checked before the dump tool runs.
func (r *runner) backupDatabase(ctx context.Context) error {
	logger.Infof(ctx, "Backing up database: %s", r.cfg.DBName)

	dumpPath := filepath.Join(r.backupPath, r.cfg.DBName+".sql")
	if _, err := os.Stat(dumpPath); err == nil {
		return fmt.Errorf("%w: %s", ErrBackupExists, dumpPath)
	}

	if err := os.MkdirAll(r.backupPath, defaultDirectoryMode); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrBackup, r.backupPath, err)
	}

	_, err := r.commands.Run(ctx, "mysqldump",
		"--defaults-extra-file="+r.cfg.DBCnfPath,
		"-h", r.cfg.DBServer,
		"-P", strconv.Itoa(r.cfg.DBPort),
		r.cfg.DBName,
		"--result-file="+dumpPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackup, err)
	}

	return nil
}

// backupApplication archives the whole installation tree into the backup set,
// with the same existence guard as the database dump.
func (r *runner) backupApplication(ctx context.Context) error {
	logger.Infof(ctx, "Backing up application files from %s to %s",
		r.cfg.InstallPath, r.backupPath)

	archivePath := filepath.Join(r.backupPath, r.installed.Code()+backupArchiveSuffix)
	if _, err := os.Stat(archivePath); err == nil {
		return fmt.Errorf("%w: %s", ErrBackupExists, archivePath)
	}

	if err := zipDirectory(r.cfg.InstallPath, archivePath); err != nil {
		return fmt.Errorf("%w: %v", ErrBackup, err)
	}

	return nil
}

// restoreFileSet lists the restore-critical paths, relative to the
// installation root, for the provided installed version.
func restoreFileSet(v release.InstalledVersion) []string {
	files := []string{uploadDirName, configRelativePath}

	// The security descriptor is only present in 4.x and 5.x.
	if major := v.Major(); major == "4" || major == "5" {
		files = append(files, securityRelativePath)
	}

	return files
}

// copyRestoreFiles copies the uploads directory and configuration
// descriptors into the backup set, as a safety copy distinct from the
// full-tree archive.
func (r *runner) copyRestoreFiles(ctx context.Context) error {
	logger.Infof(ctx, "Copying needed files for restore from %s to %s",
		r.cfg.InstallPath, r.backupPath)

	for _, relative := range restoreFileSet(r.installed) {
		source := filepath.Join(r.cfg.InstallPath, relative)
		destination := filepath.Join(r.backupPath, filepath.Base(relative))

		var err error
		if relative == uploadDirName {
			err = copyTree(source, destination)
		} else {
			err = copyFile(source, destination)
		}

		if err != nil {
			return fmt.Errorf("%w: copy %s: %v", ErrFileOperation, relative, err)
		}
	}

	return nil
}

// removeInstallation deletes the live installation tree. From here until the
// restore step completes, the installation is transiently incomplete.
func (r *runner) removeInstallation(ctx context.Context) error {
	logger.Infof(ctx, "Deleting existing application files from %s", r.cfg.InstallPath)

	if err := os.RemoveAll(r.cfg.InstallPath); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	return nil
}

// installRelease moves the extracted application subtree into the
// installation path. The bundled uploads directory is deleted first so the
// restore step provides the authoritative one.
func (r *runner) installRelease(ctx context.Context) error {
	logger.Infof(ctx, "Moving new application files to %s", r.cfg.InstallPath)

	bundled := filepath.Join(r.extractedPath, bundledTreeName)

	if err := os.RemoveAll(filepath.Join(bundled, uploadDirName)); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	if err := moveTree(bundled, r.cfg.InstallPath); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	return nil
}

// restoreFiles moves the uploads directory back and applies the saved
// configuration descriptors at their original locations in the new tree.
func (r *runner) restoreFiles(ctx context.Context) error {
	logger.Infof(ctx, "Restoring needed files from %s to %s",
		r.backupPath, r.cfg.InstallPath)

	for _, relative := range restoreFileSet(r.installed) {
		source := filepath.Join(r.backupPath, filepath.Base(relative))
		destination := filepath.Join(r.cfg.InstallPath, relative)

		var err error
		if relative == uploadDirName {
			err = moveTree(source, destination)
		} else {
			err = applyRestoredFile(source, destination)
		}

		if err != nil {
			return fmt.Errorf("%w: restore %s: %v", ErrFileOperation, relative, err)
		}
	}

	return nil
}

// applyRestoredFile writes the saved descriptor over the destination
// atomically and consumes the backup copy, mirroring a move.
func applyRestoredFile(source, destination string) (err error) {
	inputFile, err := os.Open(source)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := inputFile.Close(); err == nil {
			err = closeErr
		}
	}()

	if _, err = os.Stat(destination); errors.Is(err, os.ErrNotExist) {
		var created *os.File

		if created, err = os.Create(destination); err != nil {
			return err
		}

		if err = created.Close(); err != nil {
			return err
		}
	}

	if err = goupdate.Apply(inputFile, goupdate.Options{
		TargetPath: destination,
		TargetMode: restoredFileMode,
	}); err != nil {
		return err
	}

	oldFileName := destination + ".old"
	if _, statErr := os.Stat(oldFileName); statErr == nil {
		_ = os.Remove(oldFileName)
	}

	return os.Remove(source)
}

// applyOwnership sets the configured owner recursively on the installation path.
func (r *runner) applyOwnership(ctx context.Context) error {
	logger.Infof(ctx, "Setting ownership of install path: %s to owner: %s",
		r.cfg.InstallPath, r.cfg.InstallOwner)

	if _, err := r.commands.Run(ctx, "chown", "-R", r.cfg.InstallOwner, r.cfg.InstallPath); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionApply, err)
	}

	return nil
}

// applyPermissions sets the configured octal mode recursively on the
// installation path.
func (r *runner) applyPermissions(ctx context.Context) error {
	logger.Infof(ctx, "Applying octal permissions: %s to install path: %s",
		r.cfg.InstallOctalPermissions, r.cfg.InstallPath)

	if _, err := r.commands.Run(ctx, "chmod", "-R", r.cfg.InstallOctalPermissions, r.cfg.InstallPath); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionApply, err)
	}

	return nil
}

// cleanup removes the running marker. Downloaded archives and the backup set
// are kept on disk for the operator.
func (r *runner) cleanup(ctx context.Context) {
	if _, err := os.Stat(MarkerFilename); err == nil {
		_ = os.Remove(MarkerFilename)
	}

	logger.Info(ctx, "The updater has been stopped")
}
