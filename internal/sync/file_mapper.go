package sync

import (
	"context"
	"log/slog"

	"github.com/openmined/cloudsync/internal/cloudpath"
	"golang.org/x/sync/errgroup"
)

// SyncActionDecider is the part of SyncActionProvider the file mapper depends on.
type SyncActionDecider interface {
	GetSyncAction(ctx context.Context, local *LocalFileMetadata, cloud *CloudFileMetadata) (FileSyncAction, FileComparison, error)
}

// FileMapper partitions the files of one folder level into downloads and uploads.
type FileMapper struct {
	decider  SyncActionDecider
	workers  int
	failFast bool
}

func NewFileMapper(decider SyncActionDecider, cfg *MapperConfig) *FileMapper {
	if cfg == nil {
		cfg = &MapperConfig{}
	}
	return &FileMapper{
		decider:  decider,
		workers:  cfg.workerCount(),
		failFast: cfg.FailFast,
	}
}

type filePair struct {
	local *LocalFileMetadata
	cloud *CloudFileMetadata
}

type fileDecision struct {
	action     FileSyncAction
	comparison FileComparison
	err        error
}

// MapCloudToLocal matches files by lower-cased cloud path. Cloud-only files are
// downloaded, local-only files are uploaded and pairs are resolved by the decider.
// Output order follows the input order of each side.
func (m *FileMapper) MapCloudToLocal(ctx context.Context, cloudFiles []*CloudFileMetadata, localFiles []*LocalFileMetadata) (*MapFolderResult, error) {
	result := NewMapFolderResult()
	localByKey := toLocalFileMap(localFiles)
	cloudByKey := toCloudFileMap(cloudFiles)

	// pairs present on both sides, in cloud order
	var pairs []filePair
	// entries of the cloud scan: a cloud-only file or an index into pairs
	type cloudEntry struct {
		download *CloudFileMetadata
		pair     int
	}
	entries := make([]cloudEntry, 0, cloudByKey.Len())

	for _, key := range cloudByKey.keys {
		cloudFile := cloudByKey.values[key]
		localFile, ok := localByKey.values[key]
		if !ok {
			slog.Info("file does not exist locally, download", "path", cloudFile.CloudPath)
			entries = append(entries, cloudEntry{download: cloudFile, pair: -1})
			continue
		}
		slog.Debug("file exists locally", "path", localFile.CloudPath)
		entries = append(entries, cloudEntry{pair: len(pairs)})
		pairs = append(pairs, filePair{local: localFile, cloud: cloudFile})
	}

	decisions, err := m.decide(ctx, pairs)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.pair < 0 {
			result.AddDownload(entry.download)
			continue
		}
		pair, decision := pairs[entry.pair], decisions[entry.pair]
		if decision.err != nil {
			slog.Error("file decision aborted", "path", pair.cloud.CloudPath, "error", decision.err)
			result.AddFailed(newFileError(pair.cloud.CloudPath, decision.err))
			continue
		}
		switch decision.action {
		case ActionUpload:
			result.AddUpload(pair.local)
		case ActionDownload:
			result.AddDownload(pair.cloud)
		case ActionConflict:
			result.AddConflict(&Conflict{Local: pair.local, Cloud: pair.cloud, Comparison: decision.comparison})
		}
	}

	for _, key := range localByKey.keys {
		if _, ok := cloudByKey.values[key]; ok {
			continue
		}
		localFile := localByKey.values[key]
		slog.Info("file does not exist in the cloud, upload", "path", localFile.FullPath)
		result.AddUpload(localFile)
	}

	return result, nil
}

// decide runs the decider for every pair on a bounded pool. Decisions are returned in
// pair order. A per-pair failure is kept in the decision unless the mapper is fail-fast.
func (m *FileMapper) decide(ctx context.Context, pairs []filePair) ([]fileDecision, error) {
	decisions := make([]fileDecision, len(pairs))
	if len(pairs) == 0 {
		return decisions, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(m.workers)

	for i, pair := range pairs {
		eg.Go(func() error {
			action, comparison, err := m.decider.GetSyncAction(egCtx, pair.local, pair.cloud)
			decisions[i] = fileDecision{action: action, comparison: comparison, err: err}
			if err != nil && m.failFast {
				return newFileError(pair.cloud.CloudPath, err)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return decisions, nil
}

// orderedMap keeps keys in first-seen order. A later value for the same key replaces
// the earlier one.
type orderedMap[V any] struct {
	keys   []string
	values map[string]V
}

func newOrderedMap[V any](capacity int) *orderedMap[V] {
	return &orderedMap[V]{
		keys:   make([]string, 0, capacity),
		values: make(map[string]V, capacity),
	}
}

// Set stores v under key and reports whether an earlier value was replaced.
func (m *orderedMap[V]) Set(key string, v V) (V, bool) {
	prev, exists := m.values[key]
	if !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
	return prev, exists
}

func (m *orderedMap[V]) Len() int {
	return len(m.keys)
}

func toLocalFileMap(files []*LocalFileMetadata) *orderedMap[*LocalFileMetadata] {
	m := newOrderedMap[*LocalFileMetadata](len(files))
	for _, f := range files {
		if prev, replaced := m.Set(cloudpath.Key(f.CloudPath), f); replaced {
			slog.Warn("local files collide case-insensitively, keeping the last", "dropped", prev.CloudPath, "kept", f.CloudPath)
		}
	}
	return m
}

func toCloudFileMap(files []*CloudFileMetadata) *orderedMap[*CloudFileMetadata] {
	m := newOrderedMap[*CloudFileMetadata](len(files))
	for _, f := range files {
		if prev, replaced := m.Set(cloudpath.Key(f.CloudPath), f); replaced {
			slog.Warn("cloud files collide case-insensitively, keeping the last", "dropped", prev.CloudPath, "kept", f.CloudPath)
		}
	}
	return m
}
