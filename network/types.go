package network

const (
	// StatusUploaded is the upload-status value of a complete file.
	StatusUploaded = "File is uploaded"

	// StatusChunksMissing is the upload-status value while parts are outstanding.
	StatusChunksMissing = "chunks missing"
)

// AccountStatus is the account-data response.
type AccountStatus struct {
	PaymentStatus string      `json:"paymentStatus"`
	Account       AccountInfo `json:"account"`
}

// AccountInfo describes the subscription and usage of an account.
type AccountInfo struct {
	CreatedAt             string  `json:"createdAt"`
	UpdatedAt             string  `json:"updatedAt"`
	ExpirationDate        string  `json:"expirationDate"`
	MonthsInSubscription  int     `json:"monthsInSubscription"`
	StorageLimit          float64 `json:"storageLimit"`
	StorageUsed           float64 `json:"storageUsed"`
	TotalFolders          int     `json:"totalFolders"`
	TotalMetadataSizeInMB float64 `json:"totalMetadataSizeInMB"`
	MaxFolders            int     `json:"maxFolders"`
	MaxMetadataSizeInMB   float64 `json:"maxMetadataSizeInMB"`
}

// InitUploadRequest is the signed body of init-upload.
type InitUploadRequest struct {
	FileHandle     string `json:"fileHandle"`
	FileSizeInByte int64  `json:"fileSizeInByte"`
	EndIndex       int    `json:"endIndex"`
}

// UploadPartRequest is the signed body of upload.
type UploadPartRequest struct {
	FileHandle string `json:"fileHandle"`
	PartIndex  int    `json:"partIndex"`
	EndIndex   int    `json:"endIndex"`
}

// UploadStatus is the upload-status response. MissingIndexes are 1-based.
type UploadStatus struct {
	Status         string `json:"status"`
	MissingIndexes []int  `json:"missingIndexes"`
	EndIndex       int    `json:"endIndex"`
}

// Complete reports whether the broker holds every part.
func (s *UploadStatus) Complete() bool {
	if s.Status == StatusUploaded {
		return true
	}
	return s.Status != StatusChunksMissing && len(s.MissingIndexes) == 0
}

type timestampRequest struct {
	Timestamp int64 `json:"timestamp"`
}

type metadataKeyRequest struct {
	Timestamp   int64  `json:"timestamp"`
	MetadataKey string `json:"metadataKey"`
}

type metadataSetRequest struct {
	Timestamp   int64  `json:"timestamp"`
	MetadataKey string `json:"metadataKey"`
	Metadata    string `json:"metadata"`
}

type metadataResponse struct {
	Metadata string `json:"metadata"`
}

type deleteFileRequest struct {
	FileID string `json:"fileId"`
}

type fileHandleRequest struct {
	FileHandle string `json:"fileHandle"`
}

type downloadRequest struct {
	FileID string `json:"fileID"`
}

type downloadResponse struct {
	FileDownloadURL string `json:"fileDownloadUrl"`
}
