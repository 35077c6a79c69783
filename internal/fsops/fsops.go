// Package fsops holds the filesystem plumbing for publishing: recursive tree
// copy, verbose clearing of the publish directory, and marker file creation.
package fsops

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// CopyTree recursively copies a directory tree, preserving file modes.
func CopyTree(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if !srcInfo.IsDir() {
		return fmt.Errorf("source is not a directory: %s", src)
	}

	if err := os.MkdirAll(dst, srcInfo.Mode().Perm()); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read source directory: %w", err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if err := CopyTree(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

// copyFile copies a single regular file, preserving its mode.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.Mode().IsRegular() {
		// Symlinks and specials are skipped; generated doc trees contain none.
		slog.Debug("Skipping non-regular file", logfields.Path(src))
		return nil
	}

	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}

// ClearDir removes the directory and everything beneath it, logging each
// top-level entry as it goes. A missing directory is not an error.
func ClearDir(path string) (int, error) {
	entries, err := os.ReadDir(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read directory %s: %w", path, err)
	}

	removed := 0
	for _, entry := range entries {
		target := filepath.Join(path, entry.Name())
		if err := os.RemoveAll(target); err != nil {
			return removed, fmt.Errorf("remove %s: %w", target, err)
		}
		slog.Info("Removed", logfields.Path(target))
		removed++
	}

	if err := os.Remove(path); err != nil {
		return removed, fmt.Errorf("remove %s: %w", path, err)
	}
	return removed, nil
}

// WriteMarker creates a zero-byte marker file inside dir.
func WriteMarker(dir, name string) error {
	if name == "" {
		return fmt.Errorf("marker file name is empty")
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create marker %s: %w", path, err)
	}
	return f.Close()
}

// CountFiles returns the number of regular files under root.
func CountFiles(root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", root, err)
	}
	return count, nil
}
