package sync

import (
	"context"
	"fmt"
	"log/slog"
)

// SyncActionProvider decides the sync action for one file pair. Metadata is compared
// first; contents are compared only when the dates differ but the sizes match.
type SyncActionProvider struct {
	metadata *MetadataComparer
	content  ContentComparer
}

func NewSyncActionProvider(content ContentComparer) *SyncActionProvider {
	return &SyncActionProvider{
		metadata: NewMetadataComparer(),
		content:  content,
	}
}

// GetSyncAction returns the action together with the metadata classification that led
// to it. A content comparison failure is returned as an error and no action is decided.
func (p *SyncActionProvider) GetSyncAction(ctx context.Context, local *LocalFileMetadata, cloud *CloudFileMetadata) (FileSyncAction, FileComparison, error) {
	cloudPath := cloud.CloudPath
	comparison := p.metadata.Compare(local, cloud)

	switch comparison {
	case ComparisonEqual:
		slog.Info("file already the same by metadata, skip", "path", cloudPath)
		return ActionSkip, comparison, nil

	case ComparisonDifByName:
		slog.Warn("cannot compare local and cloud file, conflict", "path", cloudPath, "local", local.CloudPath)
		return ActionConflict, comparison, nil

	case ComparisonError:
		slog.Warn("local and cloud file have the same date but different size, conflict", "path", cloudPath)
		return ActionConflict, comparison, nil

	case ComparisonDifBySize:
		// sizes already disprove equality, reading contents would be wasted
		return resolveByTime(local, cloud), comparison, nil

	case ComparisonDifByDate:
		slog.Info("file exists with different stats, comparing by content", "path", cloudPath)
		equal, err := p.content.AreEqual(ctx, local, cloud)
		if err != nil {
			return "", comparison, fmt.Errorf("compare content %s: %w", cloudPath, err)
		}
		if equal {
			slog.Info("file already the same by content, skip", "path", cloudPath)
			return ActionSkip, comparison, nil
		}
		slog.Info("local and cloud file differ", "path", cloudPath)
		return resolveByTime(local, cloud), comparison, nil
	}

	return "", comparison, fmt.Errorf("unknown file comparison %q", comparison)
}

// resolveByTime treats the strictly newer side as the source of truth.
func resolveByTime(local *LocalFileMetadata, cloud *CloudFileMetadata) FileSyncAction {
	if local.ClientModified.After(cloud.ClientModified) {
		slog.Info("file changed since last sync, upload", "path", local.FullPath, "cloud", cloud.ClientModified, "local", local.ClientModified)
		return ActionUpload
	}
	slog.Info("file changed since last sync, download", "path", cloud.CloudPath, "cloud", cloud.ClientModified, "local", local.ClientModified)
	return ActionDownload
}
