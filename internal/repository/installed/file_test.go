package installed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// descriptorContent mirrors the layout of a real version.php file.
const descriptorContent = `<?php

$config['versionnumber'] = '5.6.68';
$config['dbversionnumber'] = 489;
$config['buildnumber'] = '240625';
$config['updatable'] = true;
return $config;
`

// writeDescriptor creates an installation tree containing a version
// descriptor with the provided content and returns the tree root.
func writeDescriptor(t *testing.T, content string) string {
	t.Helper()

	root := t.TempDir()
	dir := filepath.Join(root, "application", "config")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "version.php"), []byte(content), 0o644))

	return root
}

// TestCurrent parses a realistic descriptor into the typed record.
func TestCurrent(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(writeDescriptor(t, descriptorContent))

	installed, err := repo.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, "5.6.68", installed.Version)
	require.Equal(t, "240625", installed.Build)
	require.Equal(t, "5.6.68+240625", installed.Code())
}

// TestCurrent_UnquotedBuild accepts the unquoted integer form the descriptor
// has carried in some releases.
func TestCurrent_UnquotedBuild(t *testing.T) {
	t.Parallel()

	content := "$config['versionnumber'] = '6.0.0';\n$config['buildnumber'] = 240101;\n"
	repo := NewFileRepository(writeDescriptor(t, content))

	installed, err := repo.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, "6.0.0+240101", installed.Code())
}

// TestCurrent_Missing reports ErrNotFound for an absent descriptor.
func TestCurrent_Missing(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(t.TempDir())

	_, err := repo.Current(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

// TestCurrent_Malformed reports ErrFormat when an assignment is absent,
// instead of panicking on unexpected content.
func TestCurrent_Malformed(t *testing.T) {
	t.Parallel()

	// No buildnumber at all.
	repo := NewFileRepository(writeDescriptor(t, "$config['versionnumber'] = '5.0.0';\n"))

	_, err := repo.Current(context.Background())
	require.ErrorIs(t, err, ErrFormat)

	// Garbage content.
	repo = NewFileRepository(writeDescriptor(t, "<?php return [];\n"))

	_, err = repo.Current(context.Background())
	require.ErrorIs(t, err, ErrFormat)
}
