package network

import (
	"context"
	"sync/atomic"
)

// MockBroker is a test double for Broker.
// All function fields must be set before the corresponding method is called.
type MockBroker struct {
	AccountDataFn       func(ctx context.Context) (*AccountStatus, error)
	GetMetadataFn       func(ctx context.Context, key string) ([]byte, error)
	SetMetadataFn       func(ctx context.Context, key string, blob []byte) error
	CreateMetadataFn    func(ctx context.Context, key string) error
	DeleteMetadataFn    func(ctx context.Context, key string) error
	DeleteFileFn        func(ctx context.Context, fileID string) error
	InitUploadFn        func(ctx context.Context, req InitUploadRequest, encryptedMeta []byte) error
	UploadPartFn        func(ctx context.Context, fileID string, partIndex, endIndex int, data []byte) error
	UploadStatusFn      func(ctx context.Context, fileID string) (*UploadStatus, error)
	DownloadURLFn       func(ctx context.Context, fileID string) (string, error)
	FetchFileMetadataFn func(ctx context.Context, downloadURL string) ([]byte, error)
	FetchRangeFn        func(ctx context.Context, downloadURL string, from, to int64) ([]byte, error)

	calls atomic.Int64
}

var _ Broker = (*MockBroker)(nil)

// Calls returns how many Broker methods have been invoked.
func (m *MockBroker) Calls() int64 {
	return m.calls.Load()
}

func (m *MockBroker) AccountData(ctx context.Context) (*AccountStatus, error) {
	m.calls.Add(1)
	return m.AccountDataFn(ctx)
}
func (m *MockBroker) GetMetadata(ctx context.Context, key string) ([]byte, error) {
	m.calls.Add(1)
	return m.GetMetadataFn(ctx, key)
}
func (m *MockBroker) SetMetadata(ctx context.Context, key string, blob []byte) error {
	m.calls.Add(1)
	return m.SetMetadataFn(ctx, key, blob)
}
func (m *MockBroker) CreateMetadata(ctx context.Context, key string) error {
	m.calls.Add(1)
	return m.CreateMetadataFn(ctx, key)
}
func (m *MockBroker) DeleteMetadata(ctx context.Context, key string) error {
	m.calls.Add(1)
	return m.DeleteMetadataFn(ctx, key)
}
func (m *MockBroker) DeleteFile(ctx context.Context, fileID string) error {
	m.calls.Add(1)
	return m.DeleteFileFn(ctx, fileID)
}
func (m *MockBroker) InitUpload(ctx context.Context, req InitUploadRequest, encryptedMeta []byte) error {
	m.calls.Add(1)
	return m.InitUploadFn(ctx, req, encryptedMeta)
}
func (m *MockBroker) UploadPart(ctx context.Context, fileID string, partIndex, endIndex int, data []byte) error {
	m.calls.Add(1)
	return m.UploadPartFn(ctx, fileID, partIndex, endIndex, data)
}
func (m *MockBroker) UploadStatus(ctx context.Context, fileID string) (*UploadStatus, error) {
	m.calls.Add(1)
	return m.UploadStatusFn(ctx, fileID)
}
func (m *MockBroker) DownloadURL(ctx context.Context, fileID string) (string, error) {
	m.calls.Add(1)
	return m.DownloadURLFn(ctx, fileID)
}
func (m *MockBroker) FetchFileMetadata(ctx context.Context, downloadURL string) ([]byte, error) {
	m.calls.Add(1)
	return m.FetchFileMetadataFn(ctx, downloadURL)
}
func (m *MockBroker) FetchRange(ctx context.Context, downloadURL string, from, to int64) ([]byte, error) {
	m.calls.Add(1)
	return m.FetchRangeFn(ctx, downloadURL, from, to)
}
