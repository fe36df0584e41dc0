package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/gabriel-vasile/mimetype"
	"github.com/openmined/cloudsync/internal/cloudpath"
	"github.com/openmined/cloudsync/internal/sync"
	"github.com/openmined/cloudsync/internal/utils"
	"golang.org/x/sync/errgroup"
)

const (
	MetaClientModified = "client-modified"
	MetaContentHash    = "content-hash"

	headConcurrency = 8
)

var ErrObjectExists = errors.New("s3: object already exists")

// Store maps cloud paths to object keys under an optional prefix.
type Store struct {
	api      ObjectAPI
	uploader *manager.Uploader
	bucket   string
	prefix   string
	dryRun   bool
}

func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewStoreWithClient(client, cfg), nil
}

func NewStoreWithClient(api ObjectAPI, cfg *Config) *Store {
	return &Store{
		api:      api,
		uploader: manager.NewUploader(api),
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		dryRun:   cfg.DryRun,
	}
}

// ObjectKey returns the key a cloud path is stored under.
func (s *Store) ObjectKey(cloudPath string) string {
	rel := cloudpath.StripStartingSlash(cloudpath.Clean(cloudPath))
	switch {
	case s.prefix == "":
		return rel
	case rel == "":
		return s.prefix
	default:
		return s.prefix + "/" + rel
	}
}

// CloudPath is the inverse of ObjectKey.
func (s *Store) CloudPath(key string) string {
	if s.prefix != "" {
		key = strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
	}
	return cloudpath.Clean(key)
}

// ListFolder lists one level below cloudPath using "/" as delimiter. Objects carry no
// user metadata in listings, so each file is looked up with HeadObject.
func (s *Store) ListFolder(ctx context.Context, cloudPath string) (*sync.ListCloudFolderResult, error) {
	cloudPath = cloudpath.Clean(cloudPath)
	prefix := s.folderPrefix(cloudPath)
	start := time.Now()

	result := &sync.ListCloudFolderResult{}
	var objects []objectEntry

	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket:    &s.bucket,
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, err)
		}

		for _, cp := range page.CommonPrefixes {
			key := strings.TrimSuffix(aws.ToString(cp.Prefix), "/")
			folderPath := s.CloudPath(key)
			result.Folders = append(result.Folders, &sync.CloudFolderMetadata{
				ID:        key,
				Name:      cloudpath.Base(folderPath),
				PathLower: cloudpath.Key(folderPath),
				CloudPath: folderPath,
			})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// folder markers written by consoles
			if key == prefix || strings.HasSuffix(key, "/") {
				continue
			}
			objects = append(objects, objectEntry{
				key:          key,
				size:         aws.ToInt64(obj.Size),
				lastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	files, err := s.describe(ctx, cloudPath, objects)
	if err != nil {
		return nil, err
	}
	result.Files = files
	slog.Debug("s3 list folder", "path", cloudPath, "prefix", prefix, "files", len(files), "folders", len(result.Folders), "took", time.Since(start))
	return result, nil
}

type objectEntry struct {
	key          string
	size         int64
	lastModified time.Time
}

// describe reads the metadata of every object, keeping the listing order.
func (s *Store) describe(ctx context.Context, folderPath string, objects []objectEntry) ([]*sync.CloudFileMetadata, error) {
	files := make([]*sync.CloudFileMetadata, len(objects))
	parent := sync.CloudID{ID: s.ObjectKey(folderPath), CloudPath: folderPath}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(headConcurrency)
	for i, obj := range objects {
		g.Go(func() error {
			head, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: aws.String(obj.key)})
			if err != nil {
				return fmt.Errorf("head object %s: %w", obj.key, err)
			}
			files[i] = s.convertObject(obj, head.Metadata, parent)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (s *Store) convertObject(obj objectEntry, meta map[string]string, parent sync.CloudID) *sync.CloudFileMetadata {
	filePath := s.CloudPath(obj.key)
	modified := obj.lastModified
	if v, ok := meta[MetaClientModified]; ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			modified = t
		} else {
			slog.Warn("invalid client-modified metadata", "key", obj.key, "value", v, "error", err)
		}
	}
	return &sync.CloudFileMetadata{
		Name:           cloudpath.Base(filePath),
		CloudPath:      filePath,
		ClientModified: modified.UTC().Truncate(time.Second),
		Size:           obj.size,
		ID:             obj.key,
		Parent:         parent,
		ContentHash:    meta[MetaContentHash],
	}
}

// ReadContent downloads the object with the given key.
func (s *Store) ReadContent(ctx context.Context, id string) ([]byte, error) {
	resp, err := s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: aws.String(id)})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", id, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", id, err)
	}
	return content, nil
}

// Save uploads content with the client-modified time and content hash as object
// metadata. Without overwrite the upload only succeeds if the key is free.
func (s *Store) Save(ctx context.Context, content []byte, file *sync.LocalFileMetadata, overwrite bool) error {
	key := s.ObjectKey(file.CloudPath)
	if s.dryRun {
		slog.Info("dry run, skip uploading", "path", file.CloudPath, "key", key, "modified", file.ClientModified, "bytes", len(content))
		return nil
	}

	meta := map[string]string{MetaContentHash: sync.ContentHashBytes(content)}
	if !file.ClientModified.IsZero() {
		meta[MetaClientModified] = file.ClientModified.UTC().Truncate(time.Second).Format(time.RFC3339)
	}

	input := &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType(file, content)),
		Metadata:    meta,
	}
	if !overwrite {
		input.IfNoneMatch = aws.String("*")
	}

	start := time.Now()
	out, err := s.uploader.Upload(ctx, input)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return fmt.Errorf("upload %s: %w", key, ErrObjectExists)
		}
		return fmt.Errorf("upload %s: %w", key, err)
	}
	slog.Debug("s3 upload", "key", key, "etag", strings.Trim(aws.ToString(out.ETag), `"`), "bytes", len(content), "took", time.Since(start))
	return nil
}

func (s *Store) folderPrefix(cloudPath string) string {
	key := s.ObjectKey(cloudPath)
	if key == "" {
		return ""
	}
	return key + "/"
}

// contentType sniffs the content when the extension gave nothing better than the default.
func contentType(file *sync.LocalFileMetadata, content []byte) string {
	if file.MimeType != "" && file.MimeType != utils.DefaultMimeType {
		return file.MimeType
	}
	return mimetype.Detect(content).String()
}

var _ sync.CloudStore = (*Store)(nil)
