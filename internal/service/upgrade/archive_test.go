package upgrade

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestZipDirectoryRoundtrip archives a small tree and extracts it back.
func TestZipDirectoryRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := filepath.Join(dir, "source")
	require.NoError(t, os.MkdirAll(filepath.Join(source, "application", "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(source, "index.php"), []byte("<?php\n"), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(source, "application", "config", "config.php"), []byte("config"), 0o640))

	archive := filepath.Join(dir, "backup.zip")
	require.NoError(t, zipDirectory(source, archive))

	destination := filepath.Join(dir, "restored")
	require.NoError(t, extractZip(archive, destination))

	contents, err := os.ReadFile(filepath.Join(destination, "index.php"))
	require.NoError(t, err)
	require.Equal(t, "<?php\n", string(contents))

	contents, err = os.ReadFile(filepath.Join(destination, "application", "config", "config.php"))
	require.NoError(t, err)
	require.Equal(t, "config", string(contents))
}

// TestExtractZip_RejectsEscapingEntries refuses entries resolving outside the
// destination directory.
func TestExtractZip_RejectsEscapingEntries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.zip")

	archiveFile, err := os.Create(archivePath)
	require.NoError(t, err)

	writer := zip.NewWriter(archiveFile)
	entry, err := writer.Create("../escaped.txt")
	require.NoError(t, err)
	_, err = entry.Write([]byte("nope"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	require.NoError(t, archiveFile.Close())

	err = extractZip(archivePath, filepath.Join(dir, "out"))
	require.ErrorIs(t, err, errUnsafeArchivePath)

	_, err = os.Stat(filepath.Join(dir, "escaped.txt"))
	require.True(t, os.IsNotExist(err))
}
