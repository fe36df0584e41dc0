package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/openmined/cloudsync/internal/cloudpath"
	"golang.org/x/sync/errgroup"
)

// SyncService maps a cloud folder against the local tree and performs the transfers.
type SyncService struct {
	local   LocalStore
	cloud   CloudStore
	mapper  *FolderMapper
	workers int
}

func NewSyncService(local LocalStore, cloud CloudStore, mapper *FolderMapper, cfg *MapperConfig) *SyncService {
	return &SyncService{
		local:   local,
		cloud:   cloud,
		mapper:  mapper,
		workers: cfg.workerCount(),
	}
}

// LocalRoot is the absolute local directory the root cloud path maps to.
func (s *SyncService) LocalRoot() string {
	return s.local.Root()
}

func (s *SyncService) MapFolder(ctx context.Context, cloudPath string) (*MapFolderResult, error) {
	cloudPath = cloudpath.Clean(cloudPath)
	slog.Info("map folder", "path", cloudPath, "localRoot", s.local.Root())
	return s.mapper.MapFolder(ctx, cloudPath)
}

// DownloadFiles copies every file from the cloud to the local tree. Transfers that
// succeed are kept even when others fail; all failures are returned joined.
func (s *SyncService) DownloadFiles(ctx context.Context, files []*CloudFileMetadata) error {
	return s.transfer(ctx, len(files), func(ctx context.Context, i int) error {
		file := files[i]
		slog.Info("downloading", "path", file.CloudPath, "to", s.localPath(file.CloudPath))

		content, err := s.cloud.ReadContent(ctx, file.ID)
		if err != nil {
			return fmt.Errorf("download %s: %w", file.CloudPath, err)
		}
		if err := s.local.Save(ctx, content, file); err != nil {
			return fmt.Errorf("save %s: %w", file.CloudPath, err)
		}
		slog.Debug("downloaded", "file", file, "bytes", len(content))
		return nil
	})
}

// UploadFiles copies every file from the local tree to the cloud, overwriting any
// existing remote file.
func (s *SyncService) UploadFiles(ctx context.Context, files []*LocalFileMetadata) error {
	return s.transfer(ctx, len(files), func(ctx context.Context, i int) error {
		file := files[i]
		slog.Info("uploading", "path", file.FullPath, "to", file.CloudPath)

		content, err := s.local.ReadContent(ctx, file.CloudPath)
		if err != nil {
			return fmt.Errorf("read %s: %w", file.CloudPath, err)
		}
		if err := s.cloud.Save(ctx, content, file, true); err != nil {
			return fmt.Errorf("upload %s: %w", file.CloudPath, err)
		}
		slog.Debug("uploaded", "file", file, "bytes", len(content))
		return nil
	})
}

func (s *SyncService) transfer(ctx context.Context, n int, fn func(context.Context, int) error) error {
	var (
		mu   sync.Mutex
		errs []error
	)

	// errors are collected, not returned, so one failure does not cancel the rest
	eg := errgroup.Group{}
	eg.SetLimit(s.workers)
	for i := range n {
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := fn(ctx, i); err != nil {
				slog.Error("transfer failed", "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *SyncService) localPath(cloudPath string) string {
	return filepath.Join(s.local.Root(), filepath.FromSlash(cloudpath.StripStartingSlash(cloudPath)))
}
