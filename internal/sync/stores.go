package sync

import "context"

// LocalStore is the local side of a reconciliation. Paths are cloud paths.
type LocalStore interface {
	ListFolder(ctx context.Context, cloudPath string) (*ListLocalFolderResult, error)
	ReadContent(ctx context.Context, cloudPath string) ([]byte, error)
	Save(ctx context.Context, content []byte, file *CloudFileMetadata) error
	// Root returns the local directory the root cloud path maps to.
	Root() string
}

// CloudStore is the remote side of a reconciliation.
type CloudStore interface {
	ListFolder(ctx context.Context, cloudPath string) (*ListCloudFolderResult, error)
	ReadContent(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, content []byte, file *LocalFileMetadata, overwrite bool) error
}
