package sync

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockLocalStore implements LocalStore for testing
type MockLocalStore struct {
	mock.Mock
}

func (m *MockLocalStore) ListFolder(ctx context.Context, cloudPath string) (*ListLocalFolderResult, error) {
	args := m.Called(ctx, cloudPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ListLocalFolderResult), args.Error(1)
}

func (m *MockLocalStore) ReadContent(ctx context.Context, cloudPath string) ([]byte, error) {
	args := m.Called(ctx, cloudPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockLocalStore) Save(ctx context.Context, content []byte, file *CloudFileMetadata) error {
	args := m.Called(ctx, content, file)
	return args.Error(0)
}

func (m *MockLocalStore) Root() string {
	args := m.Called()
	return args.String(0)
}

// MockCloudStore implements CloudStore for testing
type MockCloudStore struct {
	mock.Mock
}

func (m *MockCloudStore) ListFolder(ctx context.Context, cloudPath string) (*ListCloudFolderResult, error) {
	args := m.Called(ctx, cloudPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ListCloudFolderResult), args.Error(1)
}

func (m *MockCloudStore) ReadContent(ctx context.Context, id string) ([]byte, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCloudStore) Save(ctx context.Context, content []byte, file *LocalFileMetadata, overwrite bool) error {
	args := m.Called(ctx, content, file, overwrite)
	return args.Error(0)
}

// MockContentComparer implements ContentComparer for testing
type MockContentComparer struct {
	mock.Mock
}

func (m *MockContentComparer) AreEqual(ctx context.Context, local *LocalFileMetadata, cloud *CloudFileMetadata) (bool, error) {
	args := m.Called(ctx, local, cloud)
	return args.Bool(0), args.Error(1)
}

// MockUI implements UI for testing
type MockUI struct {
	mock.Mock
	outputs  []string
	messages []string
}

func (m *MockUI) Output(msg string) {
	m.outputs = append(m.outputs, msg)
}

func (m *MockUI) Message(msg string) {
	m.messages = append(m.messages, msg)
}

func (m *MockUI) Confirm(question string, defaultAnswer bool) (bool, error) {
	args := m.Called(question, defaultAnswer)
	return args.Bool(0), args.Error(1)
}

// MockSynchronizer implements Synchronizer for testing
type MockSynchronizer struct {
	mock.Mock
}

func (m *MockSynchronizer) LocalRoot() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockSynchronizer) MapFolder(ctx context.Context, cloudPath string) (*MapFolderResult, error) {
	args := m.Called(ctx, cloudPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MapFolderResult), args.Error(1)
}

func (m *MockSynchronizer) DownloadFiles(ctx context.Context, files []*CloudFileMetadata) error {
	args := m.Called(ctx, files)
	return args.Error(0)
}

func (m *MockSynchronizer) UploadFiles(ctx context.Context, files []*LocalFileMetadata) error {
	args := m.Called(ctx, files)
	return args.Error(0)
}

func day(d int) time.Time {
	return time.Date(2023, time.August, d, 20, 14, 14, 0, time.UTC)
}

func localFile(name, cloudPath string, modifiedDay int, size int64) *LocalFileMetadata {
	return &LocalFileMetadata{
		Name:           name,
		CloudPath:      cloudPath,
		ClientModified: day(modifiedDay),
		Size:           size,
		FullPath:       "/root" + cloudPath,
		MimeType:       "application/pdf",
	}
}

func cloudFile(name, cloudPath string, modifiedDay int, size int64) *CloudFileMetadata {
	return &CloudFileMetadata{
		Name:           name,
		CloudPath:      cloudPath,
		ClientModified: day(modifiedDay),
		Size:           size,
		ID:             "id:" + cloudPath,
		ContentHash:    "123321",
	}
}

// memTree is a static folder tree serving both store interfaces in folder mapper tests.
type memTree struct {
	local map[string]*ListLocalFolderResult
	cloud map[string]*ListCloudFolderResult
}

type memLocal struct{ tree *memTree }

func (s memLocal) ListFolder(ctx context.Context, cloudPath string) (*ListLocalFolderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r, ok := s.tree.local[cloudPath]; ok {
		return r, nil
	}
	return &ListLocalFolderResult{}, nil
}

func (s memLocal) ReadContent(ctx context.Context, cloudPath string) ([]byte, error) {
	return nil, nil
}

func (s memLocal) Save(ctx context.Context, content []byte, file *CloudFileMetadata) error {
	return nil
}

func (s memLocal) Root() string { return "/root" }

type memCloud struct{ tree *memTree }

func (s memCloud) ListFolder(ctx context.Context, cloudPath string) (*ListCloudFolderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r, ok := s.tree.cloud[cloudPath]; ok {
		return r, nil
	}
	return &ListCloudFolderResult{}, nil
}

func (s memCloud) ReadContent(ctx context.Context, id string) ([]byte, error) {
	return nil, nil
}

func (s memCloud) Save(ctx context.Context, content []byte, file *LocalFileMetadata, overwrite bool) error {
	return nil
}
