package local

import (
	"context"
	"log/slog"

	"github.com/openmined/cloudsync/internal/sync"
)

// DryRunStore reads like Store but never writes to disk.
type DryRunStore struct {
	*Store
}

func NewDryRunStore(store *Store) *DryRunStore {
	return &DryRunStore{Store: store}
}

func (s *DryRunStore) Save(ctx context.Context, content []byte, file *sync.CloudFileMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	slog.Warn("dry run, skip saving file", "path", s.savePath(file.CloudPath), "bytes", len(content), "modified", file.ClientModified)
	return nil
}

var _ sync.LocalStore = (*DryRunStore)(nil)
