// Package local is the local filesystem side of a reconciliation.
package local

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openmined/cloudsync/internal/cloudpath"
	"github.com/openmined/cloudsync/internal/sync"
	"github.com/openmined/cloudsync/internal/utils"
)

// Store maps cloud paths onto a local root directory.
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	abs, err := utils.ResolvePath(root)
	if err != nil {
		return nil, fmt.Errorf("local root: %w", err)
	}
	return &Store{root: abs}, nil
}

func (s *Store) Root() string {
	return s.root
}

// AbsPath returns the local path a cloud path maps to.
func (s *Store) AbsPath(cloudPath string) string {
	rel := cloudpath.StripStartingSlash(cloudpath.Clean(cloudPath))
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// ListFolder lists the direct children of cloudPath. Entries are reported under the
// casing of the requested path. A folder that does not exist is reported as empty.
func (s *Store) ListFolder(ctx context.Context, cloudPath string) (*sync.ListLocalFolderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cloudPath = cloudpath.Clean(cloudPath)
	result := &sync.ListLocalFolderResult{}

	dir, ok := s.resolve(cloudPath)
	if !ok {
		slog.Warn("local folder does not exist", "path", s.AbsPath(cloudPath))
		return result, nil
	}
	slog.Debug("list local folder", "path", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := cloudpath.NormalizeName(entry.Name())
		fullPath := filepath.Join(dir, entry.Name())
		childPath := cloudpath.Join(cloudPath, name)

		switch {
		case entry.IsDir():
			result.Folders = append(result.Folders, &sync.LocalFolderMetadata{
				Name:      name,
				CloudPath: childPath,
				FullPath:  fullPath,
			})
		case entry.Type().IsRegular():
			info, err := entry.Info()
			if err != nil {
				// removed between ReadDir and Info
				slog.Warn("failed to stat local file", "path", fullPath, "error", err)
				continue
			}
			result.Files = append(result.Files, fileMetadata(name, childPath, fullPath, info))
		default:
			slog.Debug("skipping non-regular local entry", "path", fullPath, "mode", entry.Type())
		}
	}

	return result, nil
}

// Stat returns the metadata of the file at cloudPath.
func (s *Store) Stat(cloudPath string) (*sync.LocalFileMetadata, error) {
	cloudPath = cloudpath.Clean(cloudPath)
	fullPath, ok := s.resolve(cloudPath)
	if !ok {
		return nil, fmt.Errorf("stat %s: %w", cloudPath, fs.ErrNotExist)
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("stat %s: is a directory", cloudPath)
	}
	return fileMetadata(cloudpath.NormalizeName(info.Name()), cloudPath, fullPath, info), nil
}

func (s *Store) ReadContent(ctx context.Context, cloudPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, ok := s.resolve(cloudpath.Clean(cloudPath))
	if !ok {
		return nil, fmt.Errorf("read %s: %w", cloudPath, fs.ErrNotExist)
	}
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fullPath, err)
	}
	return content, nil
}

// Save writes content to the path of file, creating parent folders, and sets the
// modification time to the cloud client-modified time.
func (s *Store) Save(ctx context.Context, content []byte, file *sync.CloudFileMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath := s.savePath(file.CloudPath)
	slog.Debug("ensure local folder exists", "path", filepath.Dir(fullPath))
	if err := utils.EnsureParent(fullPath); err != nil {
		return fmt.Errorf("create parent of %s: %w", fullPath, err)
	}
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fullPath, err)
	}
	if !file.ClientModified.IsZero() {
		if err := os.Chtimes(fullPath, time.Now(), file.ClientModified); err != nil {
			return fmt.Errorf("set modification time of %s: %w", fullPath, err)
		}
	}
	slog.Debug("saved local file", "path", fullPath, "modified", file.ClientModified)
	return nil
}

// savePath reuses the casing of existing ancestors so a download into "/Sub" lands in
// an existing local "sub".
func (s *Store) savePath(cloudPath string) string {
	cloudPath = cloudpath.Clean(cloudPath)
	if existing, ok := s.resolve(cloudPath); ok {
		return existing
	}
	parent, name := cloudpath.Parent(cloudPath), cloudpath.Base(cloudPath)
	if dir, ok := s.resolve(parent); ok {
		return filepath.Join(dir, name)
	}
	return s.AbsPath(cloudPath)
}

// resolve finds the local path of cloudPath, matching each element case-insensitively
// when the exact name does not exist.
func (s *Store) resolve(cloudPath string) (string, bool) {
	exact := s.AbsPath(cloudPath)
	if _, err := os.Stat(exact); err == nil {
		return exact, true
	}

	current := s.root
	for _, elem := range cloudpath.Split(cloudPath) {
		next, ok := findEntry(current, elem)
		if !ok {
			return "", false
		}
		current = next
	}
	return current, true
}

func findEntry(dir, name string) (string, bool) {
	candidate := filepath.Join(dir, name)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if strings.EqualFold(cloudpath.NormalizeName(entry.Name()), name) {
			return filepath.Join(dir, entry.Name()), true
		}
	}
	return "", false
}

func fileMetadata(name, cloudPath, fullPath string, info fs.FileInfo) *sync.LocalFileMetadata {
	return &sync.LocalFileMetadata{
		Name:           name,
		CloudPath:      cloudPath,
		ClientModified: ModTime(info),
		Size:           info.Size(),
		FullPath:       fullPath,
		MimeType:       utils.MimeTypeByExtension(name),
	}
}

// ModTime is the modification time as cloud stores report it: UTC, whole seconds.
func ModTime(info fs.FileInfo) time.Time {
	return info.ModTime().UTC().Truncate(time.Second)
}

var _ sync.LocalStore = (*Store)(nil)
