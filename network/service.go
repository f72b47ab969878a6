package network

import "context"

// Broker is the storage service API used by the transfer engine and the
// directory tree. Every method performs exactly one broker request.
type Broker interface {
	// AccountData returns the subscription and usage of the account.
	AccountData(ctx context.Context) (*AccountStatus, error)

	// GetMetadata returns the encrypted folder document stored under key.
	// A missing document returns ErrNotFound.
	GetMetadata(ctx context.Context, key string) ([]byte, error)

	// SetMetadata replaces the encrypted folder document stored under key.
	SetMetadata(ctx context.Context, key string, blob []byte) error

	// CreateMetadata registers a new folder document. An existing document
	// returns ErrAlreadyExists.
	CreateMetadata(ctx context.Context, key string) error

	// DeleteMetadata removes a folder document registration.
	DeleteMetadata(ctx context.Context, key string) error

	// DeleteFile removes a file blob.
	DeleteFile(ctx context.Context, fileID string) error

	// InitUpload announces a new upload and stores its encrypted file metadata.
	InitUpload(ctx context.Context, req InitUploadRequest, encryptedMeta []byte) error

	// UploadPart stores one encrypted part. partIndex is 1-based.
	UploadPart(ctx context.Context, fileID string, partIndex, endIndex int, data []byte) error

	// UploadStatus reports which parts the broker has not received.
	UploadStatus(ctx context.Context, fileID string) (*UploadStatus, error)

	// DownloadURL returns the presigned location of a file.
	DownloadURL(ctx context.Context, fileID string) (string, error)

	// FetchFileMetadata returns the encrypted file metadata at a presigned location.
	FetchFileMetadata(ctx context.Context, downloadURL string) ([]byte, error)

	// FetchRange returns bytes [from, to) of the stored file at a presigned location.
	FetchRange(ctx context.Context, downloadURL string, from, to int64) ([]byte, error)
}
