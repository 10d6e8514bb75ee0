// SPDX-License-Identifier: MPL-2.0

// Package fsops implements the file-tree primitives used by install
// operations: single-file copy, destructive directory replace, and union
// merge of directory trees.
package fsops

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// ErrSourceNotFound is returned when the source path of a copy or merge does
// not exist.
var ErrSourceNotFound = errors.New("source not found")

type (
	// Visitor is notified of each entry written by MergeDir. Kind is "file"
	// for an overwritten file and "dir" for a subtree copied fresh.
	Visitor func(kind, path string)
)

// CopyFile copies src to dst, creating dst's parent directories. The file
// mode and modification time of src are carried over and an existing dst is
// overwritten.
func CopyFile(src, dst string) error {
	info, err := statSource(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	return copyRegular(src, dst, info)
}

// CopyDir replaces dst with a fresh copy of the src tree. Anything already
// at dst is removed first.
func CopyDir(src, dst string) error {
	info, err := statSource(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}

	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("failed to remove existing destination: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create destination parent: %w", err)
	}
	return copyTree(src, dst)
}

// MergeDir merges the src tree into dst. Files from src overwrite their
// counterparts, subdirectories present on both sides are merged recursively,
// and subdirectories only in src are copied whole. Entries that exist only
// under dst are never touched.
func MergeDir(src, dst string, visit Visitor) error {
	info, err := statSource(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}
	return mergeTree(src, dst, visit)
}

func mergeTree(src, dst string, visit Visitor) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("failed to read source directory: %w", err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		info, err := os.Stat(srcPath)
		if err != nil {
			// Dangling symlink; nothing to merge.
			continue
		}

		switch {
		case info.Mode().IsRegular():
			if err := copyRegular(srcPath, dstPath, info); err != nil {
				return err
			}
			if visit != nil {
				visit("file", dstPath)
			}
		case info.IsDir():
			if _, err := os.Stat(dstPath); err == nil {
				if err := mergeTree(srcPath, dstPath, visit); err != nil {
					return err
				}
				continue
			}
			if err := copyTree(srcPath, dstPath); err != nil {
				return err
			}
			if visit != nil {
				visit("dir", dstPath)
			}
		}
	}

	return nil
}

// copyTree copies src into a dst that must not exist yet. Symlinks are
// recreated rather than followed. Directory modification times are restored
// once the walk is done, since creating entries inside a directory bumps it.
func copyTree(src, dst string) error {
	type dirTime struct {
		path  string
		mtime time.Time
	}
	var dirs []dirTime

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("failed to read symlink: %w", err)
			}
			return os.Symlink(link, target)
		case d.IsDir():
			if err := os.MkdirAll(target, info.Mode().Perm()|0o700); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			dirs = append(dirs, dirTime{path: target, mtime: info.ModTime()})
			return nil
		default:
			return copyRegular(path, target, info)
		}
	})
	if err != nil {
		return err
	}

	// Deepest first: WalkDir visits parents before their children.
	for _, d := range slices.Backward(dirs) {
		if err := os.Chtimes(d.path, d.mtime, d.mtime); err != nil {
			return fmt.Errorf("failed to set directory times: %w", err)
		}
	}
	return nil
}

func copyRegular(src, dst string, info fs.FileInfo) (err error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer func() { _ = srcFile.Close() }() // Read-only file; close error non-critical

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if closeErr := dstFile.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close destination file: %w", closeErr)
		}
		if err == nil {
			err = os.Chtimes(dst, info.ModTime(), info.ModTime())
		}
	}()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	// OpenFile only applies the mode on creation.
	if err := dstFile.Chmod(info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}

	return nil
}

func statSource(src string) (fs.FileInfo, error) {
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, src)
		}
		return nil, fmt.Errorf("failed to stat source: %w", err)
	}
	return info, nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
