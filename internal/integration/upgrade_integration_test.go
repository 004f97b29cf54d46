package integration

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkruiper/ls-updater/internal/config"
	"github.com/nkruiper/ls-updater/internal/service/upgrade"
)

// writeInstallTree builds a live installation with a version descriptor.
func writeInstallTree(t *testing.T, root, version, build string) {
	t.Helper()

	configDir := filepath.Join(root, "application", "config")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "upload"), 0o755))

	descriptor := "$config['versionnumber'] = '" + version + "';\n" +
		"$config['buildnumber'] = '" + build + "';\n"
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "version.php"), []byte(descriptor), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.php"), []byte("cfg"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.php"), []byte("old"), 0o644))
}

// startCatalogServer serves a downloads page with one LTS release plus the
// release archive itself.
func startCatalogServer(t *testing.T, releaseCode string) *httptest.Server {
	t.Helper()

	var archive bytes.Buffer

	writer := zip.NewWriter(&archive)
	entry, err := writer.Create("limesurvey/index.php")
	require.NoError(t, err)
	_, err = entry.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	mux := http.NewServeMux()

	var server *httptest.Server

	mux.HandleFunc("/downloads/", func(w http.ResponseWriter, _ *http.Request) {
		page := `<html><body><a class="release-button" href="` +
			server.URL + `/lts-releases/limesurvey` + releaseCode + `.zip">LTS</a></body></html>`
		_, _ = w.Write([]byte(page))
	})
	mux.HandleFunc("/lts-releases/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive.Bytes())
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

// writeSettings persists a valid configuration pointing at the install tree,
// with every log sink disabled to keep test runs quiet.
func writeSettings(t *testing.T, dir, installPath string) string {
	t.Helper()

	path := filepath.Join(dir, config.DefaultConfigFilename)
	cfg := &config.Config{
		Branch:                  "lts",
		DBCnfPath:               "/etc/mysql/backup.cnf",
		DBName:                  "limesurvey",
		DBPort:                  3306,
		DBServer:                "127.0.0.1",
		InstallOctalPermissions: "0755",
		InstallOwner:            "www-data:www-data",
		InstallPath:             installPath,
		WebServerInitSystem:     "generic",
		WebServerService:        "ls-updater-missing-service",
	}
	require.NoError(t, config.Save(path, cfg))

	return path
}

// TestRun_AlreadyUpToDate drives the full entry point: config load, catalog
// fetch, resolution, and the clean no-op exit with no mutation and no marker
// left behind.
func TestRun_AlreadyUpToDate(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	installPath := filepath.Join(dir, "limesurvey")
	writeInstallTree(t, installPath, "5.3", "220225")

	server := startCatalogServer(t, "5.3+220225")
	settings := writeSettings(t, dir, installPath)

	err := upgrade.Run(context.Background(), &upgrade.Options{
		ConfigPath: settings,
		CatalogURL: server.URL + "/downloads/",
	})
	require.NoError(t, err)

	// No marker, no downloads, untouched tree.
	_, err = os.Stat(filepath.Join(dir, upgrade.MarkerFilename))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "ls_downloads"))
	require.True(t, os.IsNotExist(err))

	contents, err := os.ReadFile(filepath.Join(installPath, "index.php"))
	require.NoError(t, err)
	require.Equal(t, "old", string(contents))
}

// TestRun_AbortsAtServiceStop verifies an upgrade run downloads and extracts
// the release but aborts at the first external command failure, leaving the
// live tree untouched and cleaning up its marker.
func TestRun_AbortsAtServiceStop(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	installPath := filepath.Join(dir, "limesurvey")
	writeInstallTree(t, installPath, "5.3", "220225")

	server := startCatalogServer(t, "5.4+230901")
	settings := writeSettings(t, dir, installPath)

	err := upgrade.Run(context.Background(), &upgrade.Options{
		ConfigPath: settings,
		CatalogURL: server.URL + "/downloads/",
	})
	// The configured service does not exist on the test host, so the stop
	// step fails after download and extraction succeeded.
	require.ErrorIs(t, err, upgrade.ErrServiceControl)

	_, err = os.Stat(filepath.Join(dir, "ls_downloads", "5.4+230901.zip"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "ls_downloads", "5.4+230901", "limesurvey", "index.php"))
	require.NoError(t, err)

	contents, err := os.ReadFile(filepath.Join(installPath, "index.php"))
	require.NoError(t, err)
	require.Equal(t, "old", string(contents))

	_, err = os.Stat(filepath.Join(dir, upgrade.MarkerFilename))
	require.True(t, os.IsNotExist(err))
}

// TestRun_RefusesParallelRun verifies the fresh-marker guard.
func TestRun_RefusesParallelRun(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	installPath := filepath.Join(dir, "limesurvey")
	writeInstallTree(t, installPath, "5.3", "220225")

	server := startCatalogServer(t, "5.4+230901")
	settings := writeSettings(t, dir, installPath)

	require.NoError(t, os.WriteFile(upgrade.MarkerFilename, nil, 0o644))

	err := upgrade.Run(context.Background(), &upgrade.Options{
		ConfigPath: settings,
		CatalogURL: server.URL + "/downloads/",
	})
	require.ErrorIs(t, err, upgrade.ErrAlreadyRunning)
}

// TestRun_InvalidConfig verifies validation failures abort before anything
// else happens.
func TestRun_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("branch: stable\n"), 0o600))

	err := upgrade.Run(context.Background(), &upgrade.Options{ConfigPath: path})
	require.ErrorIs(t, err, config.ErrInvalid)
}
