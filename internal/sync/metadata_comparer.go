package sync

import "log/slog"

// MetadataComparer classifies a local/cloud file pair by name, size and modification time.
type MetadataComparer struct{}

func NewMetadataComparer() *MetadataComparer {
	return &MetadataComparer{}
}

// Compare applies the rules in order; the first match wins.
func (c *MetadataComparer) Compare(local *LocalFileMetadata, cloud *CloudFileMetadata) FileComparison {
	if local.Name != cloud.Name {
		slog.Info("file diff by name", "local", local.Name, "remote", cloud.Name)
		return ComparisonDifByName
	}

	dateDiffers := !local.ClientModified.Equal(cloud.ClientModified)
	sizeDiffers := local.Size != cloud.Size

	switch {
	case dateDiffers && sizeDiffers:
		slog.Info("file diff by size", "file", local.Name, "local", local.Size, "remote", cloud.Size)
		return ComparisonDifBySize
	case dateDiffers:
		slog.Info("file diff by date", "file", local.Name, "local", local.ClientModified, "remote", cloud.ClientModified)
		return ComparisonDifByDate
	case sizeDiffers:
		// same timestamp, different size: the metadata itself is inconsistent
		slog.Warn("file diff by size with equal dates", "file", local.Name, "local", local.Size, "remote", cloud.Size)
		return ComparisonError
	}

	return ComparisonEqual
}
