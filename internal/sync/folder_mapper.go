package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// FolderMapper maps a folder tree of the local and cloud stores into one result.
type FolderMapper struct {
	local   LocalStore
	cloud   CloudStore
	files   *FileMapper
	folders *SubfolderMapper
	ignore  *SyncIgnoreList
	cfg     *MapperConfig
	sem     *semaphore.Weighted
}

type FolderMapperOption func(*FolderMapper)

// WithIgnoreList filters listings on both sides before they are mapped.
func WithIgnoreList(ignore *SyncIgnoreList) FolderMapperOption {
	return func(m *FolderMapper) {
		m.ignore = ignore
	}
}

func NewFolderMapper(local LocalStore, cloud CloudStore, decider SyncActionDecider, cfg *MapperConfig, opts ...FolderMapperOption) *FolderMapper {
	if cfg == nil {
		cfg = &MapperConfig{}
	}
	m := &FolderMapper{
		local:   local,
		cloud:   cloud,
		files:   NewFileMapper(decider, cfg),
		folders: NewSubfolderMapper(),
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.workerCount())),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MapFolder lists cloudPath on both sides and maps its files. When the mapper is
// recursive the union of subfolders is mapped as well and merged in sorted order.
func (m *FolderMapper) MapFolder(ctx context.Context, cloudPath string) (*MapFolderResult, error) {
	slog.Info("mapping folder", "path", cloudPath)

	result, subfolders, err := m.mapLevel(ctx, cloudPath)
	if err != nil {
		return nil, err
	}
	if !m.cfg.Recursive || len(subfolders) == 0 {
		return result, nil
	}

	children := make([]*MapFolderResult, len(subfolders))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, subfolder := range subfolders {
		eg.Go(func() error {
			child, err := m.MapFolder(egCtx, subfolder)
			if err != nil {
				return err
			}
			children[i] = child
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, child := range children {
		result.Extend(child)
	}
	return result, nil
}

// mapLevel does the work of one folder while holding a worker slot. The slot is
// released before the caller descends.
func (m *FolderMapper) mapLevel(ctx context.Context, cloudPath string) (*MapFolderResult, []string, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, err
	}
	defer m.sem.Release(1)

	localResult, err := m.local.ListFolder(ctx, cloudPath)
	if err != nil {
		return nil, nil, fmt.Errorf("list local folder %s: %w", cloudPath, err)
	}
	cloudResult, err := m.cloud.ListFolder(ctx, cloudPath)
	if err != nil {
		return nil, nil, fmt.Errorf("list cloud folder %s: %w", cloudPath, err)
	}

	if m.ignore != nil {
		localResult = m.ignore.filterLocal(localResult)
		cloudResult = m.ignore.filterCloud(cloudResult)
	}

	result, err := m.files.MapCloudToLocal(ctx, cloudResult.Files, localResult.Files)
	if err != nil {
		return nil, nil, err
	}

	if !m.cfg.Recursive {
		return result, nil, nil
	}

	subfolders := m.folders.MapCloudToLocal(cloudResult.Folders, localResult.Folders).ToSlice()
	sort.Strings(subfolders)
	return result, subfolders, nil
}
