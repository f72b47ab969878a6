package transfer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Mavahu/opacity-go/blockcipher"
	"github.com/Mavahu/opacity-go/metadata"
	"github.com/Mavahu/opacity-go/progress"
	"github.com/Mavahu/opacity-go/storage"
)

// Downloaded describes a file reconstructed on local disk.
type Downloaded struct {
	Handle string
	Name   string
	Path   string
	Size   int64
}

// Download fetches the file behind handle into destDir/<name>. Ranges are
// fetched concurrently into scratch part files, then decrypted strictly in
// block order. Scratch files are always removed.
func (e *Engine) Download(ctx context.Context, handle, destDir string, sink progress.Sink) (*Downloaded, error) {
	fileID, key, err := metadata.SplitFileHandle(handle)
	if err != nil {
		return nil, err
	}
	sink = progress.OrNop(sink)
	log := e.log.WithField("file_id", shortID(fileID))

	d, err := e.download(ctx, handle, fileID, key, destDir, sink, log)
	if err != nil {
		log.WithError(err).Error("download failed")
		sink.OnFailed(progress.Download, handle, err)
		return nil, err
	}
	log.WithFields(logrus.Fields{"file": d.Name, "bytes": d.Size}).Info("download complete")
	sink.OnFinished(progress.Download, handle)
	return d, nil
}

func (e *Engine) download(ctx context.Context, handle, fileID string, key []byte, destDir string,
	sink progress.Sink, log *logrus.Entry) (*Downloaded, error) {
	url, err := e.broker.DownloadURL(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: download: %w", ErrTransfer, err)
	}
	encMeta, err := e.broker.FetchFileMetadata(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: file metadata: %w", ErrTransfer, err)
	}
	plain, err := blockcipher.Decrypt(encMeta, key)
	if err != nil {
		return nil, fmt.Errorf("file metadata: %w", err)
	}
	meta, err := metadata.ParseFileMetadata(plain)
	if err != nil {
		return nil, err
	}
	if err := metadata.ValidateName(meta.Name); err != nil {
		return nil, err
	}

	sink.OnInit(progress.Download, handle, meta.Name)

	uploadSize := storage.UploadSize(meta.Size, meta.P.BlockSize)
	count := storage.RangeCount(uploadSize, e.downloadPartSize)
	log = log.WithFields(logrus.Fields{"file": meta.Name, "parts": count})

	scratch, err := storage.NewScratch(e.scratchDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := scratch.Cleanup(); err != nil {
			log.WithError(err).Warn("scratch cleanup failed")
		}
	}()

	if err := e.fetchRanges(ctx, url, uploadSize, count, scratch, handle, sink); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(destDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocalIO, err)
	}
	outPath := filepath.Join(destDir, meta.Name)
	if err := reconstruct(outPath, scratch, count, meta, key); err != nil {
		_ = os.Remove(outPath)
		return nil, err
	}

	return &Downloaded{Handle: handle, Name: meta.Name, Path: outPath, Size: meta.Size}, nil
}

// fetchRanges downloads count ranges under the per-file limiter. The first
// failure cancels the remaining requests.
func (e *Engine) fetchRanges(ctx context.Context, url string, total int64, count int,
	scratch *storage.Scratch, handle string, sink progress.Sink) error {
	limiter, done := e.partLimiter(progress.Download)
	defer done()

	var fetched atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		if err := limiter.Acquire(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer limiter.Release()
			from, to := storage.Range(i, total, e.downloadPartSize)
			data, err := e.broker.FetchRange(gctx, url, from, to)
			if err != nil {
				return fmt.Errorf("%w: range %d: %w", ErrTransfer, i, err)
			}
			if err := scratch.WritePart(i, data); err != nil {
				return fmt.Errorf("%w: %w", ErrLocalIO, err)
			}
			sink.OnProgress(progress.Download, handle, progress.Percent(int(fetched.Add(1)), count))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// reconstruct decrypts the scratch parts in order into outPath.
func reconstruct(outPath string, scratch *storage.Scratch, count int, meta *metadata.FileMetadata, key []byte) error {
	f, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLocalIO, err)
	}
	defer f.Close()

	src := scratch.Reader(count)
	defer src.Close()

	w := bufio.NewWriter(f)
	n, err := blockcipher.DecryptStream(w, src, meta.P.BlockSize, key)
	if err != nil {
		if errors.Is(err, blockcipher.ErrAuthentication) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrLocalIO, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrLocalIO, err)
	}
	if n != meta.Size {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, n, meta.Size)
	}
	return f.Close()
}
