package sync

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultHashCacheSize = 4096

// ContentComparer decides whether a local and a cloud file hold the same bytes.
type ContentComparer interface {
	AreEqual(ctx context.Context, local *LocalFileMetadata, cloud *CloudFileMetadata) (bool, error)
}

// HashContentComparer compares the cloud-published content hash with the hash of the
// local file computed with the same block scheme. No remote bytes are transferred.
type HashContentComparer struct {
	cache *lru.Cache[string, string]
}

func NewHashContentComparer() *HashContentComparer {
	// only fails for a non-positive size
	cache, _ := lru.New[string, string](defaultHashCacheSize)
	return &HashContentComparer{cache: cache}
}

func (c *HashContentComparer) AreEqual(ctx context.Context, local *LocalFileMetadata, cloud *CloudFileMetadata) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	localHash, err := c.localHash(local)
	if err != nil {
		return false, fmt.Errorf("local content hash: %w", err)
	}

	slog.Debug("content hash", "path", cloud.CloudPath, "local", localHash, "remote", cloud.ContentHash)
	return localHash == cloud.ContentHash, nil
}

func (c *HashContentComparer) localHash(local *LocalFileMetadata) (string, error) {
	key := fmt.Sprintf("%s|%d|%d", local.FullPath, local.Size, local.ClientModified.Unix())
	if sum, ok := c.cache.Get(key); ok {
		return sum, nil
	}

	sum, err := ContentHashFile(local.FullPath)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, sum)
	return sum, nil
}

// StoreContentComparer reads both files in full and compares them byte by byte.
// Costs one remote download per comparison.
type StoreContentComparer struct {
	local LocalStore
	cloud CloudStore
}

func NewStoreContentComparer(local LocalStore, cloud CloudStore) *StoreContentComparer {
	return &StoreContentComparer{local: local, cloud: cloud}
}

func (c *StoreContentComparer) AreEqual(ctx context.Context, local *LocalFileMetadata, cloud *CloudFileMetadata) (bool, error) {
	localContent, err := c.local.ReadContent(ctx, local.CloudPath)
	if err != nil {
		return false, fmt.Errorf("read local %s: %w", local.CloudPath, err)
	}

	cloudContent, err := c.cloud.ReadContent(ctx, cloud.ID)
	if err != nil {
		return false, fmt.Errorf("read cloud %s: %w", cloud.CloudPath, err)
	}

	return bytes.Equal(localContent, cloudContent), nil
}

var (
	_ ContentComparer = (*HashContentComparer)(nil)
	_ ContentComparer = (*StoreContentComparer)(nil)
)
