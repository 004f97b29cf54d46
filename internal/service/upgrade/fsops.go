package upgrade

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// copyFile copies a regular file, preserving its mode.
func copyFile(source, destination string) (err error) {
	info, err := os.Stat(source)
	if err != nil {
		return err
	}

	inputFile, err := os.Open(source)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := inputFile.Close(); err == nil {
			err = closeErr
		}
	}()

	outputFile, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := outputFile.Close(); err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(outputFile, inputFile)

	return err
}

// copyTree copies the tree rooted at sourceDir into destinationDir,
// creating destinationDir when necessary.
func copyTree(sourceDir, destinationDir string) error {
	return filepath.WalkDir(sourceDir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		relative, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}

		destination := filepath.Join(destinationDir, relative)

		if entry.IsDir() {
			info, infoErr := entry.Info()
			if infoErr != nil {
				return infoErr
			}

			return os.MkdirAll(destination, info.Mode().Perm())
		}

		if !entry.Type().IsRegular() {
			return fmt.Errorf("unsupported file type: %s", path)
		}

		return copyFile(path, destination)
	})
}

// moveTree renames sourceDir to destination, falling back to copy-and-delete
// when the rename crosses filesystems.
func moveTree(sourceDir, destination string) error {
	if err := os.Rename(sourceDir, destination); err == nil {
		return nil
	}

	if err := copyTree(sourceDir, destination); err != nil {
		return err
	}

	return os.RemoveAll(sourceDir)
}
