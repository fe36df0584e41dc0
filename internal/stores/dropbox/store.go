package dropbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/cloudsync/internal/cloudpath"
	"github.com/openmined/cloudsync/internal/sync"
)

// Store is the Dropbox side of a reconciliation. Dropbox publishes a block content
// hash for every file, so it pairs with sync.HashContentComparer.
type Store struct {
	client *Client
	dryRun bool
}

func NewStore(cfg *Config) (*Store, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{client: client, dryRun: cfg.DryRun}, nil
}

// ListFolder lists the direct children of cloudPath. A folder Dropbox does not know
// is reported as empty.
func (s *Store) ListFolder(ctx context.Context, cloudPath string) (*sync.ListCloudFolderResult, error) {
	cloudPath = cloudpath.Clean(cloudPath)
	start := time.Now()

	entries, err := s.client.listFolder(ctx, apiPath(cloudPath))
	if errors.Is(err, ErrPathNotFound) {
		slog.Warn("dropbox folder not found, assumed empty", "path", cloudPath)
		return &sync.ListCloudFolderResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	slog.Debug("dropbox list folder", "path", cloudPath, "entries", len(entries), "took", time.Since(start))

	return convertEntries(entries), nil
}

// ReadContent downloads a file by its Dropbox id or path.
func (s *Store) ReadContent(ctx context.Context, id string) ([]byte, error) {
	start := time.Now()
	content, meta, err := s.client.download(ctx, id)
	if err != nil {
		return nil, err
	}
	slog.Debug("dropbox download", "id", id, "path", meta.PathDisplay, "bytes", len(content), "took", time.Since(start))
	return content, nil
}

// Save uploads content to the cloud path of file, keeping its client-modified time.
// Without overwrite an existing file is kept and Dropbox reports a conflict.
func (s *Store) Save(ctx context.Context, content []byte, file *sync.LocalFileMetadata, overwrite bool) error {
	cloudPath := cloudpath.Clean(file.CloudPath)
	mode := modeAdd
	if overwrite {
		mode = modeOverwrite
	}

	if s.dryRun {
		slog.Info("dry run, skip uploading", "path", cloudPath, "modified", file.ClientModified, "mode", mode, "bytes", len(content))
		return nil
	}

	commit := &commitInfo{
		Path:        cloudPath,
		Mode:        mode,
		Mute:        true,
		ContentHash: sync.ContentHashBytes(content),
	}
	if !file.ClientModified.IsZero() {
		commit.ClientModified = file.ClientModified.UTC().Truncate(time.Second).Format(time.RFC3339)
	}

	start := time.Now()
	meta, err := s.client.upload(ctx, content, commit)
	if err != nil {
		return fmt.Errorf("upload %s: %w", cloudPath, err)
	}
	slog.Debug("dropbox upload", "path", meta.PathDisplay, "rev", meta.Rev, "bytes", len(content), "took", time.Since(start))
	return nil
}

// apiPath converts a cloud path to the form Dropbox expects; the root is "".
func apiPath(cloudPath string) string {
	if cloudpath.IsRoot(cloudPath) {
		return ""
	}
	return cloudpath.Clean(cloudPath)
}

func convertEntries(entries []*entry) *sync.ListCloudFolderResult {
	result := &sync.ListCloudFolderResult{}
	for _, e := range entries {
		slog.Debug("dropbox entry", "tag", e.Tag, "path", e.PathDisplay, "name", e.Name)
		switch e.Tag {
		case tagFolder:
			result.Folders = append(result.Folders, convertFolder(e))
		case tagFile:
			result.Files = append(result.Files, convertFile(e))
		case tagDeleted:
			// only listed with include_deleted
		default:
			slog.Warn("unknown dropbox entry", "tag", e.Tag, "path", e.PathDisplay)
		}
	}
	return result
}

func convertFile(e *entry) *sync.CloudFileMetadata {
	parentPath := cloudpath.Parent(e.PathDisplay)
	return &sync.CloudFileMetadata{
		Name:           e.Name,
		CloudPath:      e.PathDisplay,
		ClientModified: e.ClientModified.UTC(),
		Size:           e.Size,
		ID:             fileID(e),
		Parent: sync.CloudID{
			ID:        cloudpath.Parent(e.PathLower),
			CloudPath: parentPath,
		},
		ContentHash: e.ContentHash,
	}
}

func convertFolder(e *entry) *sync.CloudFolderMetadata {
	return &sync.CloudFolderMetadata{
		ID:        e.ID,
		Name:      e.Name,
		PathLower: e.PathLower,
		CloudPath: e.PathDisplay,
	}
}

// fileID falls back to the lower-cased path when the listing carries no id.
func fileID(e *entry) string {
	if e.ID != "" {
		return e.ID
	}
	return e.PathLower
}

var _ sync.CloudStore = (*Store)(nil)
