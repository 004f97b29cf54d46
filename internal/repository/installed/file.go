package installed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nkruiper/ls-updater/internal/domain/release"
)

// Repository defines read access to the installed version.
type Repository interface {
	Current(ctx context.Context) (release.InstalledVersion, error)
}

// FileRepository reads the installed version from the version descriptor
// inside the installation tree.
type FileRepository struct {
	// installPath is the root of the installation tree.
	installPath string
}

// descriptorRelativePath locates the version descriptor below the
// installation root.
const descriptorRelativePath = "application/config/version.php"

var (
	// ErrNotFound is returned when the version descriptor does not exist.
	ErrNotFound = errors.New("version descriptor not found")

	// ErrFormat is returned when the descriptor exists but the version or
	// build assignment cannot be extracted from it.
	ErrFormat = errors.New("version descriptor format not recognized")
)

// NewFileRepository creates a repository reading the descriptor below the
// provided installation root.
func NewFileRepository(installPath string) *FileRepository {
	return &FileRepository{
		installPath: filepath.Clean(installPath),
	}
}

// Current reads and parses the version descriptor.
func (r *FileRepository) Current(_ context.Context) (release.InstalledVersion, error) {
	path := filepath.Join(r.installPath, descriptorRelativePath)

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return release.InstalledVersion{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}

		return release.InstalledVersion{}, fmt.Errorf("read version descriptor: %w", err)
	}

	return parseDescriptor(string(contents))
}

// parseDescriptor extracts the versionnumber and buildnumber assignments from
// descriptor content. The descriptor is a PHP file, but the two assignments
// are simple one-line statements, so a line scan is sufficient; anything that
// does not yield both values is a format error, never a panic.
func parseDescriptor(content string) (release.InstalledVersion, error) {
	version := extractAssignment(content, "versionnumber")
	if version == "" {
		return release.InstalledVersion{}, fmt.Errorf("%w: missing versionnumber", ErrFormat)
	}

	build := extractAssignment(content, "buildnumber")
	if build == "" {
		return release.InstalledVersion{}, fmt.Errorf("%w: missing buildnumber", ErrFormat)
	}

	return release.InstalledVersion{Version: version, Build: build}, nil
}

// extractAssignment finds the line assigning $config['<key>'] and returns the
// assigned literal with quotes and the trailing semicolon stripped.
func extractAssignment(content, key string) string {
	marker := "$config['" + key + "']"

	for _, line := range strings.Split(content, "\n") {
		if !strings.Contains(line, marker) {
			continue
		}

		_, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		value = strings.TrimSpace(value)
		value = strings.TrimSuffix(value, ";")
		value = strings.Trim(strings.TrimSpace(value), `'"`)

		return value
	}

	return ""
}
