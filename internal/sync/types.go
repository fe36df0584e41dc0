package sync

import (
	"fmt"
	"time"
)

// CloudID identifies a remote folder by its opaque id and display path.
type CloudID struct {
	ID        string `json:"id" yaml:"id"`
	CloudPath string `json:"cloudPath" yaml:"cloudPath"`
}

// LocalFileMetadata is one file as seen on local disk, keyed by the cloud path it
// would occupy remotely.
type LocalFileMetadata struct {
	Name           string    `json:"name" yaml:"name"`
	CloudPath      string    `json:"cloudPath" yaml:"cloudPath"`
	ClientModified time.Time `json:"clientModified" yaml:"clientModified"`
	Size           int64     `json:"size" yaml:"size"`
	FullPath       string    `json:"fullPath" yaml:"fullPath"`
	MimeType       string    `json:"mimeType" yaml:"mimeType"`
}

func (f *LocalFileMetadata) String() string {
	return fmt.Sprintf("%s (size=%d, modified=%s)", f.CloudPath, f.Size, f.ClientModified.Format(time.RFC3339))
}

// CloudFileMetadata is one file as seen on the remote store.
type CloudFileMetadata struct {
	Name           string    `json:"name" yaml:"name"`
	CloudPath      string    `json:"cloudPath" yaml:"cloudPath"`
	ClientModified time.Time `json:"clientModified" yaml:"clientModified"`
	Size           int64     `json:"size" yaml:"size"`
	ID             string    `json:"id" yaml:"id"`
	Parent         CloudID   `json:"parent" yaml:"parent"`
	ContentHash    string    `json:"contentHash,omitempty" yaml:"contentHash,omitempty"`
}

func (f *CloudFileMetadata) String() string {
	return fmt.Sprintf("%s (size=%d, modified=%s, id=%s)", f.CloudPath, f.Size, f.ClientModified.Format(time.RFC3339), f.ID)
}

type LocalFolderMetadata struct {
	Name      string
	CloudPath string
	FullPath  string
}

type CloudFolderMetadata struct {
	ID        string
	Name      string
	PathLower string
	CloudPath string
}

type ListLocalFolderResult struct {
	Files   []*LocalFileMetadata
	Folders []*LocalFolderMetadata
}

type ListCloudFolderResult struct {
	Files   []*CloudFileMetadata
	Folders []*CloudFolderMetadata
}

// Conflict is a file pair the engine refused to reconcile automatically.
type Conflict struct {
	Local      *LocalFileMetadata `json:"local" yaml:"local"`
	Cloud      *CloudFileMetadata `json:"cloud" yaml:"cloud"`
	Comparison FileComparison     `json:"comparison" yaml:"comparison"`
}

// FileError is a file pair whose decision was aborted because comparing contents failed.
type FileError struct {
	CloudPath string `json:"cloudPath" yaml:"cloudPath"`
	Err       error  `json:"-" yaml:"-"`
	Message   string `json:"error" yaml:"error"`
}

func newFileError(cloudPath string, err error) *FileError {
	return &FileError{CloudPath: cloudPath, Err: err, Message: err.Error()}
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s", e.CloudPath, e.Message)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// MapFolderResult holds the transfers decided on in one mapping pass. A cloud path
// never appears in both Download and Upload.
type MapFolderResult struct {
	Download  []*CloudFileMetadata `json:"download" yaml:"download"`
	Upload    []*LocalFileMetadata `json:"upload" yaml:"upload"`
	Conflicts []*Conflict          `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	Failed    []*FileError         `json:"failed,omitempty" yaml:"failed,omitempty"`
}

func NewMapFolderResult() *MapFolderResult {
	return &MapFolderResult{
		Download: []*CloudFileMetadata{},
		Upload:   []*LocalFileMetadata{},
	}
}

func (r *MapFolderResult) AddDownload(file *CloudFileMetadata) {
	r.Download = append(r.Download, file)
}

func (r *MapFolderResult) AddUpload(file *LocalFileMetadata) {
	r.Upload = append(r.Upload, file)
}

func (r *MapFolderResult) AddConflict(c *Conflict) {
	r.Conflicts = append(r.Conflicts, c)
}

func (r *MapFolderResult) AddFailed(e *FileError) {
	r.Failed = append(r.Failed, e)
}

// Extend appends all sequences of other to r.
func (r *MapFolderResult) Extend(other *MapFolderResult) {
	if other == nil {
		return
	}
	r.Download = append(r.Download, other.Download...)
	r.Upload = append(r.Upload, other.Upload...)
	r.Conflicts = append(r.Conflicts, other.Conflicts...)
	r.Failed = append(r.Failed, other.Failed...)
}

// IsEmpty reports whether the pass decided on nothing at all.
func (r *MapFolderResult) IsEmpty() bool {
	return len(r.Download) == 0 && len(r.Upload) == 0 && len(r.Conflicts) == 0 && len(r.Failed) == 0
}

// DownloadSize is the total number of bytes the download list transfers.
func (r *MapFolderResult) DownloadSize() int64 {
	var total int64
	for _, f := range r.Download {
		total += f.Size
	}
	return total
}

// UploadSize is the total number of bytes the upload list transfers.
func (r *MapFolderResult) UploadSize() int64 {
	var total int64
	for _, f := range r.Upload {
		total += f.Size
	}
	return total
}
