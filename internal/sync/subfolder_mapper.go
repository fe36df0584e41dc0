package sync

import (
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/cloudsync/internal/cloudpath"
)

// SubfolderMapper computes the subfolders to descend into for one folder level.
type SubfolderMapper struct{}

func NewSubfolderMapper() *SubfolderMapper {
	return &SubfolderMapper{}
}

// MapCloudToLocal returns the case-insensitive union of subfolder cloud paths. When a
// folder exists on both sides the cloud casing is kept.
func (m *SubfolderMapper) MapCloudToLocal(cloudFolders []*CloudFolderMetadata, localFolders []*LocalFolderMetadata) mapset.Set[string] {
	cloudByKey := make(map[string]string, len(cloudFolders))
	for _, folder := range cloudFolders {
		key := cloudpath.Key(folder.CloudPath)
		if prev, ok := cloudByKey[key]; ok && prev != folder.CloudPath {
			slog.Warn("cloud folders collide case-insensitively, keeping the last", "dropped", prev, "kept", folder.CloudPath)
		}
		cloudByKey[key] = folder.CloudPath
	}

	localByKey := make(map[string]string, len(localFolders))
	for _, folder := range localFolders {
		key := cloudpath.Key(folder.CloudPath)
		if prev, ok := localByKey[key]; ok && prev != folder.CloudPath {
			slog.Warn("local folders collide case-insensitively, keeping the last", "dropped", prev, "kept", folder.CloudPath)
		}
		localByKey[key] = folder.CloudPath
	}

	union := mapset.NewThreadUnsafeSetWithSize[string](len(cloudByKey) + len(localByKey))
	for _, cloudPath := range cloudByKey {
		union.Add(cloudPath)
	}
	for key, localPath := range localByKey {
		if _, ok := cloudByKey[key]; !ok {
			union.Add(localPath)
		}
	}
	return union
}
