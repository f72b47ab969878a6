package network

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Broker endpoints, relative to the base URL.
const (
	EndpointAccountData    = "account-data"
	EndpointMetadataGet    = "metadata/get"
	EndpointMetadataSet    = "metadata/set"
	EndpointMetadataCreate = "metadata/create"
	EndpointMetadataDelete = "metadata/delete"
	EndpointDelete         = "delete"
	EndpointInitUpload     = "init-upload"
	EndpointUpload         = "upload"
	EndpointUploadStatus   = "upload-status"
	EndpointDownload       = "download"
)

// Form attachment field names.
const (
	FieldMetadata  = "metadata"
	FieldChunkData = "chunkData"
)

// AccountData returns the subscription and usage of the account.
func (c *Client) AccountData(ctx context.Context) (*AccountStatus, error) {
	var status AccountStatus
	if err := c.post(ctx, EndpointAccountData, timestampRequest{Timestamp: c.timestamp()}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetMetadata returns the encrypted folder document stored under key.
func (c *Client) GetMetadata(ctx context.Context, key string) ([]byte, error) {
	var resp metadataResponse
	err := c.post(ctx, EndpointMetadataGet, metadataKeyRequest{Timestamp: c.timestamp(), MetadataKey: key}, &resp)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: metadata %s: %w", ErrNotFound, key, err)
		}
		return nil, err
	}
	if resp.Metadata == "" {
		return nil, fmt.Errorf("%w: metadata %s is empty", ErrNotFound, key)
	}
	blob, err := base64.StdEncoding.DecodeString(resp.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata is not base64: %w", ErrInvalidResponse, err)
	}
	return blob, nil
}

// SetMetadata replaces the encrypted folder document stored under key.
func (c *Client) SetMetadata(ctx context.Context, key string, blob []byte) error {
	return c.post(ctx, EndpointMetadataSet, metadataSetRequest{
		Timestamp:   c.timestamp(),
		MetadataKey: key,
		Metadata:    base64.StdEncoding.EncodeToString(blob),
	}, nil)
}

// CreateMetadata registers a new folder document. The broker answers 403 or
// 409 when the document already exists.
func (c *Client) CreateMetadata(ctx context.Context, key string) error {
	err := c.post(ctx, EndpointMetadataCreate, metadataKeyRequest{Timestamp: c.timestamp(), MetadataKey: key}, nil)
	switch statusCode(err) {
	case http.StatusForbidden, http.StatusConflict:
		return fmt.Errorf("%w: %s: %w", ErrAlreadyExists, key, err)
	}
	return err
}

// DeleteMetadata removes a folder document registration. An unknown key
// returns ErrNotFound.
func (c *Client) DeleteMetadata(ctx context.Context, key string) error {
	err := c.post(ctx, EndpointMetadataDelete, metadataKeyRequest{Timestamp: c.timestamp(), MetadataKey: key}, nil)
	if statusCode(err) == http.StatusNotFound {
		return fmt.Errorf("%w: metadata %s: %w", ErrNotFound, key, err)
	}
	return err
}

// DeleteFile removes a file blob. An unknown file returns ErrNotFound.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	err := c.post(ctx, EndpointDelete, deleteFileRequest{FileID: fileID}, nil)
	if statusCode(err) == http.StatusNotFound {
		return fmt.Errorf("%w: file %s: %w", ErrNotFound, fileID, err)
	}
	return err
}

// InitUpload announces a new upload and attaches its encrypted file metadata.
func (c *Client) InitUpload(ctx context.Context, req InitUploadRequest, encryptedMeta []byte) error {
	return c.postForm(ctx, EndpointInitUpload, req, []Attachment{{Field: FieldMetadata, Data: encryptedMeta}}, nil)
}

// UploadPart stores one encrypted part. partIndex is 1-based.
func (c *Client) UploadPart(ctx context.Context, fileID string, partIndex, endIndex int, data []byte) error {
	req := UploadPartRequest{FileHandle: fileID, PartIndex: partIndex, EndIndex: endIndex}
	return c.postForm(ctx, EndpointUpload, req, []Attachment{{Field: FieldChunkData, Data: data}}, nil)
}

// UploadStatus reports which parts the broker has not received.
func (c *Client) UploadStatus(ctx context.Context, fileID string) (*UploadStatus, error) {
	var status UploadStatus
	if err := c.post(ctx, EndpointUploadStatus, fileHandleRequest{FileHandle: fileID}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// DownloadURL returns the presigned location of a file.
func (c *Client) DownloadURL(ctx context.Context, fileID string) (string, error) {
	var resp downloadResponse
	if err := c.post(ctx, EndpointDownload, downloadRequest{FileID: fileID}, &resp); err != nil {
		if statusCode(err) == http.StatusNotFound {
			return "", fmt.Errorf("%w: file %s: %w", ErrNotFound, fileID, err)
		}
		return "", err
	}
	if resp.FileDownloadURL == "" {
		return "", fmt.Errorf("%w: empty download URL", ErrInvalidResponse)
	}
	return strings.TrimSuffix(resp.FileDownloadURL, "/"), nil
}

// FetchFileMetadata returns the encrypted file metadata at downloadURL.
func (c *Client) FetchFileMetadata(ctx context.Context, downloadURL string) ([]byte, error) {
	resp, err := c.get(ctx, downloadURL+"/metadata", "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read metadata: %w", ErrConnectionFailed, err)
	}
	return data, nil
}

// FetchRange returns bytes [from, to) of the stored file. A server that
// ignores the Range header and answers 200 is sliced locally.
func (c *Client) FetchRange(ctx context.Context, downloadURL string, from, to int64) ([]byte, error) {
	if to <= from {
		return []byte{}, nil
	}
	resp, err := c.get(ctx, downloadURL+"/file", fmt.Sprintf("bytes=%d-%d", from, to-1))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	want := to - from
	if resp.StatusCode == http.StatusOK {
		if _, err := io.CopyN(io.Discard, resp.Body, from); err != nil {
			return nil, fmt.Errorf("%w: skip to offset %d: %w", ErrInvalidResponse, from, err)
		}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, want))
	if err != nil {
		return nil, fmt.Errorf("%w: read range: %w", ErrConnectionFailed, err)
	}
	if int64(len(data)) != want {
		return nil, fmt.Errorf("%w: range %d-%d returned %d bytes", ErrInvalidResponse, from, to, len(data))
	}
	return data, nil
}
