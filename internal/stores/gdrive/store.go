// Package gdrive is a Google Drive API v3 cloud store. Drive addresses files by id, so
// cloud paths are resolved to folder ids by walking down from the root folder.
package gdrive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/openmined/cloudsync/internal/cloudpath"
	"github.com/openmined/cloudsync/internal/sync"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const (
	DefaultRootID = "root"

	mimeFolder   = "application/vnd.google-apps.folder"
	mimeShortcut = "application/vnd.google-apps.shortcut"
	mimeApps     = "application/vnd.google-apps."

	listFields   = "nextPageToken, files(id, name, mimeType, size, modifiedTime, parents)"
	listPageSize = 1000
	folderCache  = 4096
)

var (
	ErrFolderNotFound = errors.New("gdrive: folder not found")
	ErrFileExists     = errors.New("gdrive: file already exists")
)

// Store is the Google Drive side of a reconciliation.
type Store struct {
	service *drive.Service
	rootID  string
	dryRun  bool

	// folder ids by lower-cased cloud path
	folders  *lru.Cache[string, string]
	creating singleflight.Group
}

func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	service, err := newService(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewStoreWithService(service, cfg.RootID, cfg.DryRun), nil
}

// NewStoreWithService uses an already configured Drive service. An empty rootID is the
// user's My Drive.
func NewStoreWithService(service *drive.Service, rootID string, dryRun bool) *Store {
	if rootID == "" {
		rootID = DefaultRootID
	}
	folders, _ := lru.New[string, string](folderCache)
	folders.Add(cloudpath.Root, rootID)
	return &Store{
		service: service,
		rootID:  rootID,
		dryRun:  dryRun,
		folders: folders,
	}
}

// ListFolder lists the direct children of cloudPath. A folder that does not exist on
// Drive is reported as empty.
func (s *Store) ListFolder(ctx context.Context, cloudPath string) (*sync.ListCloudFolderResult, error) {
	cloudPath = cloudpath.Clean(cloudPath)

	folderID, err := s.resolveFolder(ctx, cloudPath, false)
	if errors.Is(err, ErrFolderNotFound) {
		slog.Warn("gdrive folder not found, assumed empty", "path", cloudPath)
		return &sync.ListCloudFolderResult{}, nil
	}
	if err != nil {
		return nil, err
	}

	start := time.Now()
	children, err := s.children(ctx, folderID, "")
	if err != nil {
		return nil, fmt.Errorf("list folder %s: %w", cloudPath, err)
	}
	slog.Debug("gdrive list folder", "path", cloudPath, "id", folderID, "entries", len(children), "took", time.Since(start))

	parent := sync.CloudID{ID: folderID, CloudPath: cloudPath}
	result := &sync.ListCloudFolderResult{}
	for _, f := range children {
		childPath := cloudpath.Join(cloudPath, f.Name)
		switch {
		case f.MimeType == mimeFolder:
			s.folders.Add(cloudpath.Key(childPath), f.Id)
			result.Folders = append(result.Folders, &sync.CloudFolderMetadata{
				ID:        f.Id,
				Name:      f.Name,
				PathLower: cloudpath.Key(childPath),
				CloudPath: childPath,
			})
		case f.MimeType != mimeShortcut && strings.HasPrefix(f.MimeType, mimeApps):
			// docs, sheets and forms have no binary content
			slog.Debug("skipping google apps document", "path", childPath, "mimeType", f.MimeType)
		default:
			result.Files = append(result.Files, convertFile(f, childPath, parent))
		}
	}
	return result, nil
}

// ReadContent downloads the content of the file with the given Drive id.
func (s *Store) ReadContent(ctx context.Context, id string) ([]byte, error) {
	resp, err := s.service.Files.Get(id).Context(ctx).SupportsAllDrives(true).Download()
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", id, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	return content, nil
}

// Save creates the file in its parent folder, creating missing folders on the way, or
// replaces the content of a file with the same name when overwrite is set.
func (s *Store) Save(ctx context.Context, content []byte, file *sync.LocalFileMetadata, overwrite bool) error {
	cloudPath := cloudpath.Clean(file.CloudPath)
	if s.dryRun {
		slog.Info("dry run, skip uploading", "path", cloudPath, "modified", file.ClientModified, "bytes", len(content))
		return nil
	}

	parentID, err := s.resolveFolder(ctx, cloudpath.Parent(cloudPath), true)
	if err != nil {
		return fmt.Errorf("upload %s: %w", cloudPath, err)
	}

	name := cloudpath.Base(cloudPath)
	existing, err := s.findFile(ctx, parentID, name)
	if err != nil {
		return fmt.Errorf("upload %s: %w", cloudPath, err)
	}

	meta := &drive.File{}
	if !file.ClientModified.IsZero() {
		meta.ModifiedTime = file.ClientModified.UTC().Format(time.RFC3339)
	}
	media := googleapi.ContentType(mimeType(file))

	start := time.Now()
	var saved *drive.File
	if existing != nil {
		if !overwrite {
			return fmt.Errorf("upload %s: %w", cloudPath, ErrFileExists)
		}
		saved, err = s.service.Files.Update(existing.Id, meta).
			Context(ctx).
			Media(bytes.NewReader(content), media).
			SupportsAllDrives(true).
			Fields("id, modifiedTime").
			Do()
	} else {
		meta.Name = name
		meta.Parents = []string{parentID}
		meta.MimeType = mimeType(file)
		saved, err = s.service.Files.Create(meta).
			Context(ctx).
			Media(bytes.NewReader(content), media).
			SupportsAllDrives(true).
			Fields("id, modifiedTime").
			Do()
	}
	if err != nil {
		return fmt.Errorf("upload %s: %w", cloudPath, err)
	}
	slog.Debug("gdrive upload", "path", cloudPath, "id", saved.Id, "update", existing != nil, "bytes", len(content), "took", time.Since(start))
	return nil
}

// resolveFolder walks cloudPath element by element, matching names case-insensitively.
// With create set, missing folders are created.
func (s *Store) resolveFolder(ctx context.Context, cloudPath string, create bool) (string, error) {
	cloudPath = cloudpath.Clean(cloudPath)
	if id, ok := s.folders.Get(cloudpath.Key(cloudPath)); ok {
		return id, nil
	}

	current, currentID := cloudpath.Root, s.rootID
	for _, elem := range cloudpath.Split(cloudPath) {
		current = cloudpath.Join(current, elem)
		if id, ok := s.folders.Get(cloudpath.Key(current)); ok {
			currentID = id
			continue
		}

		id, err := s.findFolder(ctx, currentID, elem)
		if err != nil {
			return "", err
		}
		if id == "" {
			if !create {
				return "", fmt.Errorf("%w: %s", ErrFolderNotFound, current)
			}
			if id, err = s.createFolder(ctx, currentID, current); err != nil {
				return "", err
			}
		}
		s.folders.Add(cloudpath.Key(current), id)
		currentID = id
	}
	return currentID, nil
}

// createFolder creates one folder per path even when several uploads need it at once.
func (s *Store) createFolder(ctx context.Context, parentID, cloudPath string) (string, error) {
	id, err, _ := s.creating.Do(cloudpath.Key(cloudPath), func() (any, error) {
		if id, ok := s.folders.Get(cloudpath.Key(cloudPath)); ok {
			return id, nil
		}
		// another caller may have created it before we got here
		name := cloudpath.Base(cloudPath)
		if id, err := s.findFolder(ctx, parentID, name); err != nil || id != "" {
			return id, err
		}

		folder, err := s.service.Files.Create(&drive.File{
			Name:     name,
			MimeType: mimeFolder,
			Parents:  []string{parentID},
		}).Context(ctx).SupportsAllDrives(true).Fields("id").Do()
		if err != nil {
			return "", fmt.Errorf("create folder %s: %w", cloudPath, err)
		}
		slog.Debug("gdrive folder created", "path", cloudPath, "id", folder.Id)
		s.folders.Add(cloudpath.Key(cloudPath), folder.Id)
		return folder.Id, nil
	})
	if err != nil {
		return "", err
	}
	return id.(string), nil
}

func (s *Store) findFolder(ctx context.Context, parentID, name string) (string, error) {
	folders, err := s.children(ctx, parentID, fmt.Sprintf("mimeType = '%s'", mimeFolder))
	if err != nil {
		return "", fmt.Errorf("find folder %q: %w", name, err)
	}
	if f := matchName(folders, name); f != nil {
		return f.Id, nil
	}
	return "", nil
}

func (s *Store) findFile(ctx context.Context, parentID, name string) (*drive.File, error) {
	files, err := s.children(ctx, parentID, fmt.Sprintf("mimeType != '%s'", mimeFolder))
	if err != nil {
		return nil, fmt.Errorf("find file %q: %w", name, err)
	}
	return matchName(files, name), nil
}

// children lists every non-trashed child of folderID, following page tokens.
func (s *Store) children(ctx context.Context, folderID, filter string) ([]*drive.File, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))
	if filter != "" {
		query += " and " + filter
	}

	var files []*drive.File
	err := s.service.Files.List().
		Context(ctx).
		Q(query).
		Fields(listFields).
		PageSize(listPageSize).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Pages(ctx, func(page *drive.FileList) error {
			files = append(files, page.Files...)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// matchName prefers an exact match and falls back to a case-insensitive one.
func matchName(files []*drive.File, name string) *drive.File {
	var folded *drive.File
	for _, f := range files {
		if f.Name == name {
			return f
		}
		if folded == nil && strings.EqualFold(f.Name, name) {
			folded = f
		}
	}
	return folded
}

func convertFile(f *drive.File, cloudPath string, parent sync.CloudID) *sync.CloudFileMetadata {
	size := f.Size
	if f.MimeType == mimeShortcut {
		size = 0
	}

	modified, err := time.Parse(time.RFC3339, f.ModifiedTime)
	if err != nil {
		slog.Warn("invalid gdrive modified time", "path", cloudPath, "modifiedTime", f.ModifiedTime, "error", err)
	}

	return &sync.CloudFileMetadata{
		Name:           f.Name,
		CloudPath:      cloudPath,
		ClientModified: modified.UTC().Truncate(time.Second),
		Size:           size,
		ID:             f.Id,
		Parent:         parent,
	}
}

func mimeType(file *sync.LocalFileMetadata) string {
	if file.MimeType != "" {
		return file.MimeType
	}
	return "application/octet-stream"
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

var _ sync.CloudStore = (*Store)(nil)
