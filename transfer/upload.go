package transfer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Mavahu/opacity-go/blockcipher"
	"github.com/Mavahu/opacity-go/metadata"
	"github.com/Mavahu/opacity-go/network"
	"github.com/Mavahu/opacity-go/progress"
	"github.com/Mavahu/opacity-go/storage"
)

// Source is a local file to upload. Parts are read by offset, so the whole
// file is never held in memory.
type Source struct {
	Name   string
	Type   string
	Size   int64
	Reader io.ReaderAt
}

// Uploaded describes a file whose parts have all been accepted by the broker.
type Uploaded struct {
	Handle     string
	FileID     string
	Name       string
	Size       int64
	UploadSize int64
	EndIndex   int
}

type upload struct {
	engine  *Engine
	src     Source
	layout  *storage.Layout
	handle  string
	fileID  string
	key     []byte
	sink    progress.Sink
	log     *logrus.Entry
	limiter *Limiter
}

// Upload encrypts src block by block and uploads it part by part, then
// verifies with upload-status and re-sends missing parts up to the configured
// number of rounds. Progress events are keyed by the new file handle. The
// returned file is not yet linked into any folder.
func (e *Engine) Upload(ctx context.Context, src Source, sink progress.Sink) (*Uploaded, error) {
	if src.Reader == nil {
		return nil, fmt.Errorf("%w: source reader", ErrNilParam)
	}
	if err := metadata.ValidateName(src.Name); err != nil {
		return nil, err
	}
	sink = progress.OrNop(sink)

	layout, err := storage.NewLayout(src.Size, e.blockSize, e.partSize)
	if err != nil {
		return nil, err
	}
	handle, fileID, key, err := newFileHandle()
	if err != nil {
		return nil, err
	}

	limiter, done := e.partLimiter(progress.Upload)
	defer done()

	u := &upload{
		engine:  e,
		src:     src,
		layout:  layout,
		handle:  handle,
		fileID:  fileID,
		key:     key,
		sink:    sink,
		limiter: limiter,
		log: e.log.WithFields(logrus.Fields{
			"file":    src.Name,
			"file_id": shortID(fileID),
			"parts":   layout.EndIndex,
		}),
	}

	sink.OnInit(progress.Upload, handle, src.Name)
	if err := u.run(ctx); err != nil {
		u.log.WithError(err).Error("upload failed")
		sink.OnFailed(progress.Upload, handle, err)
		return nil, err
	}
	u.log.WithField("bytes", layout.UploadSize).Info("upload complete")

	return &Uploaded{
		Handle:     handle,
		FileID:     fileID,
		Name:       src.Name,
		Size:       src.Size,
		UploadSize: layout.UploadSize,
		EndIndex:   layout.EndIndex,
	}, nil
}

func (u *upload) run(ctx context.Context) error {
	meta, err := json.Marshal(metadata.FileMetadata{
		Name: u.src.Name,
		Type: u.src.Type,
		Size: u.src.Size,
		P: metadata.FileMetaOptions{
			BlockSize: u.layout.BlockSize,
			PartSize:  u.layout.PartSize,
		},
	})
	if err != nil {
		return fmt.Errorf("transfer: marshal file metadata: %w", err)
	}
	encMeta, err := blockcipher.Encrypt(meta, u.key)
	if err != nil {
		return err
	}

	err = u.engine.broker.InitUpload(ctx, network.InitUploadRequest{
		FileHandle:     u.fileID,
		FileSizeInByte: u.layout.UploadSize,
		EndIndex:       u.layout.EndIndex,
	}, encMeta)
	if err != nil {
		return fmt.Errorf("%w: init-upload: %w", ErrTransfer, err)
	}

	pending := make([]int, u.layout.EndIndex)
	for i := range pending {
		pending[i] = i
	}

	for round := 0; ; round++ {
		if err := u.sendParts(ctx, pending); err != nil {
			return err
		}

		status, err := u.engine.broker.UploadStatus(ctx, u.fileID)
		if err != nil {
			return fmt.Errorf("%w: upload-status: %w", ErrTransfer, err)
		}
		if status.Complete() {
			return nil
		}
		if round >= u.engine.verifyRetries {
			return fmt.Errorf("%w: %d of %d parts missing after %d retries",
				ErrVerificationExhausted, len(status.MissingIndexes), u.layout.EndIndex, u.engine.verifyRetries)
		}

		pending = u.missingParts(status.MissingIndexes)
		u.log.WithFields(logrus.Fields{
			"round":   round + 1,
			"missing": len(pending),
		}).Warn("parts missing, retrying")
	}
}

// missingParts converts 1-based broker indexes to part indexes. An empty or
// unusable list means every part is re-sent.
func (u *upload) missingParts(indexes []int) []int {
	var parts []int
	for _, idx := range indexes {
		if idx >= 1 && idx <= u.layout.EndIndex {
			parts = append(parts, idx-1)
		}
	}
	if len(parts) == 0 {
		parts = make([]int, u.layout.EndIndex)
		for i := range parts {
			parts[i] = i
		}
	}
	return parts
}

// sendParts uploads parts concurrently under the per-file limiter. Network
// failures of single parts are logged and left for upload-status to report;
// only local read failures and cancellation abort the upload.
func (u *upload) sendParts(ctx context.Context, parts []int) error {
	var g errgroup.Group
	for _, part := range parts {
		if err := u.limiter.Acquire(ctx); err != nil {
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			defer u.limiter.Release()
			return u.sendPart(ctx, part)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (u *upload) sendPart(ctx context.Context, part int) error {
	u.sink.OnProgress(progress.Upload, u.handle, progress.Percent(part, u.layout.EndIndex))

	off, n, err := u.layout.PlainRange(part)
	if err != nil {
		return err
	}
	buf := make([]byte, n)
	read, err := u.src.Reader.ReadAt(buf, off)
	if err != nil && !(errors.Is(err, io.EOF) && int64(read) == n) {
		return fmt.Errorf("%w: read part %d: %w", ErrLocalIO, part, err)
	}

	data, err := blockcipher.EncryptBlocks(buf, u.layout.BlockSize, u.key)
	if err != nil {
		return err
	}

	if err := u.engine.broker.UploadPart(ctx, u.fileID, part+1, u.layout.EndIndex, data); err != nil {
		u.log.WithError(err).WithField("part", part+1).Warn("part upload failed")
	}
	return nil
}

// newFileHandle draws a random 64-byte capability: fileId(32B) || fileKey(32B).
func newFileHandle() (handle, fileID string, key []byte, err error) {
	raw := make([]byte, 64)
	if _, err := rand.Read(raw); err != nil {
		return "", "", nil, fmt.Errorf("transfer: random handle generation failed: %w", err)
	}
	handle = hex.EncodeToString(raw)
	return handle, handle[:metadata.FileIDLen], raw[32:], nil
}
