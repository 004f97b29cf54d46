package upgrade

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var errUnsafeArchivePath = errors.New("archive entry escapes destination")

// zipDirectory archives the tree rooted at sourceDir into a zip file at
// destination, with entry names relative to sourceDir.
func zipDirectory(sourceDir, destination string) (err error) {
	outputFile, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	defer func() {
		if closeErr := outputFile.Close(); err == nil {
			err = closeErr
		}
	}()

	writer := zip.NewWriter(outputFile)

	defer func() {
		if closeErr := writer.Close(); err == nil {
			err = closeErr
		}
	}()

	err = filepath.WalkDir(sourceDir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		relative, relErr := filepath.Rel(sourceDir, path)
		if relErr != nil {
			return relErr
		}

		if relative == "." {
			return nil
		}

		if entry.IsDir() {
			_, dirErr := writer.Create(relative + "/")
			return dirErr
		}

		if !entry.Type().IsRegular() {
			// Symlinks and special files are not preserved; the live tree
			// should not contain any.
			return nil
		}

		return addFileToZip(writer, path, relative)
	})
	if err != nil {
		return fmt.Errorf("archive %s: %w", sourceDir, err)
	}

	return nil
}

// addFileToZip streams one file into the archive under the provided name.
func addFileToZip(writer *zip.Writer, path, name string) (err error) {
	inputFile, err := os.Open(path)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := inputFile.Close(); err == nil {
			err = closeErr
		}
	}()

	entryWriter, err := writer.Create(name)
	if err != nil {
		return err
	}

	_, err = io.Copy(entryWriter, inputFile)

	return err
}

// extractZip unpacks the archive into destinationDir, refusing entries whose
// resolved path would escape it.
func extractZip(archivePath, destinationDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = reader.Close()
	}()

	for _, entry := range reader.File {
		if err := extractZipEntry(entry, destinationDir); err != nil {
			return fmt.Errorf("extract %s: %w", entry.Name, err)
		}
	}

	return nil
}

// extractZipEntry writes one archive entry below destinationDir.
func extractZipEntry(entry *zip.File, destinationDir string) (err error) {
	destination := filepath.Join(destinationDir, filepath.Clean(entry.Name))
	if !strings.HasPrefix(destination, filepath.Clean(destinationDir)+string(os.PathSeparator)) {
		return fmt.Errorf("%w: %s", errUnsafeArchivePath, entry.Name)
	}

	if entry.FileInfo().IsDir() {
		return os.MkdirAll(destination, defaultDirectoryMode)
	}

	if err = os.MkdirAll(filepath.Dir(destination), defaultDirectoryMode); err != nil {
		return err
	}

	entryReader, err := entry.Open()
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := entryReader.Close(); err == nil {
			err = closeErr
		}
	}()

	outputFile, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode())
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := outputFile.Close(); err == nil {
			err = closeErr
		}
	}()

	//nolint:gosec // Release archives come from the configured catalog.
	_, err = io.Copy(outputFile, entryReader)

	return err
}
