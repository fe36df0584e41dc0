package sync

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var ErrUnsupportedBackend = errors.New("unsupported storage backend")

// Backend names a cloud storage provider.
type Backend string

const (
	BackendDropbox Backend = "dropbox"
	BackendGDrive  Backend = "gdrive"
	BackendS3      Backend = "s3"
)

// ParseBackend accepts any casing of a known backend name.
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(name))); b {
	case BackendDropbox, BackendGDrive, BackendS3:
		return b, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedBackend, name)
	}
}

// NewContentComparer picks the cheapest content-equality strategy the backend supports.
func NewContentComparer(backend Backend, local LocalStore, cloud CloudStore) (ContentComparer, error) {
	switch backend {
	case BackendDropbox:
		slog.Debug("creating hash content comparer", "backend", backend)
		return NewHashContentComparer(), nil
	case BackendGDrive, BackendS3:
		slog.Debug("creating store content comparer", "backend", backend)
		return NewStoreContentComparer(local, cloud), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, backend)
	}
}
