package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Mavahu/opacity-go/blockcipher"
	"github.com/Mavahu/opacity-go/network"
	"github.com/Mavahu/opacity-go/progress"
	"github.com/Mavahu/opacity-go/storage"
)

const (
	// DefaultMaxUploadParts is the default number of parts of one file
	// uploaded concurrently.
	DefaultMaxUploadParts = 8

	// DefaultMaxDownloadParts is the default number of ranges of one file
	// fetched concurrently.
	DefaultMaxDownloadParts = 5

	// DefaultVerifyRetries is the number of re-upload rounds after the first
	// upload-status check.
	DefaultVerifyRetries = 3
)

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	Broker           network.Broker
	Logger           *logrus.Logger
	BlockSize        int
	PartSize         int64
	DownloadPartSize int64
	MaxUploadParts   int
	MaxDownloadParts int
	VerifyRetries    int
	ScratchDir       string
}

// Engine moves file bytes between local files and the broker.
type Engine struct {
	broker           network.Broker
	log              *logrus.Entry
	blockSize        int
	partSize         int64
	downloadPartSize int64
	verifyRetries    int
	scratchDir       string

	mu            sync.Mutex
	uploadParts   int
	downloadParts int
	active        map[*Limiter]progress.Op
}

// NewEngine validates opts and returns an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Broker == nil {
		return nil, fmt.Errorf("%w: broker", ErrNilParam)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.BlockSize == 0 {
		opts.BlockSize = blockcipher.DefaultBlockSize
	}
	if opts.PartSize == 0 {
		opts.PartSize = storage.DefaultPartSize
	}
	if opts.DownloadPartSize == 0 {
		opts.DownloadPartSize = storage.DefaultDownloadPartSize
	}
	if opts.MaxUploadParts == 0 {
		opts.MaxUploadParts = DefaultMaxUploadParts
	}
	if opts.MaxDownloadParts == 0 {
		opts.MaxDownloadParts = DefaultMaxDownloadParts
	}
	if opts.VerifyRetries == 0 {
		opts.VerifyRetries = DefaultVerifyRetries
	}
	if opts.ScratchDir == "" {
		opts.ScratchDir = filepath.Join(os.TempDir(), "opacity-download")
	}

	// Validates block and part sizes.
	if _, err := storage.NewLayout(0, opts.BlockSize, opts.PartSize); err != nil {
		return nil, err
	}
	if opts.DownloadPartSize <= 0 {
		return nil, fmt.Errorf("transfer: download part size must be positive")
	}
	for _, n := range []int{opts.MaxUploadParts, opts.MaxDownloadParts} {
		if n < 1 || n > MaxLimit {
			return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
		}
	}

	return &Engine{
		broker:           opts.Broker,
		log:              opts.Logger.WithField("component", "transfer"),
		blockSize:        opts.BlockSize,
		partSize:         opts.PartSize,
		downloadPartSize: opts.DownloadPartSize,
		verifyRetries:    opts.VerifyRetries,
		scratchDir:       opts.ScratchDir,
		uploadParts:      opts.MaxUploadParts,
		downloadParts:    opts.MaxDownloadParts,
		active:           make(map[*Limiter]progress.Op),
	}, nil
}

// SetMaxUploadParts changes how many parts of one file upload concurrently.
// Uploads already running are resized too.
func (e *Engine) SetMaxUploadParts(ctx context.Context, n int) error {
	return e.setPartLimit(ctx, progress.Upload, n)
}

// SetMaxDownloadParts changes how many ranges of one file download
// concurrently. Downloads already running are resized too.
func (e *Engine) SetMaxDownloadParts(ctx context.Context, n int) error {
	return e.setPartLimit(ctx, progress.Download, n)
}

// PartLimits returns the current per-file upload and download part limits.
func (e *Engine) PartLimits() (upload, download int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.uploadParts, e.downloadParts
}

func (e *Engine) setPartLimit(ctx context.Context, op progress.Op, n int) error {
	if n < 1 || n > MaxLimit {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}

	e.mu.Lock()
	if op == progress.Upload {
		e.uploadParts = n
	} else {
		e.downloadParts = n
	}
	var running []*Limiter
	for l, lop := range e.active {
		if lop == op {
			running = append(running, l)
		}
	}
	e.mu.Unlock()

	for _, l := range running {
		if err := l.Resize(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// partLimiter returns a fresh per-file limiter registered for live resizing.
// The returned func unregisters it.
func (e *Engine) partLimiter(op progress.Op) (*Limiter, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.downloadParts
	if op == progress.Upload {
		n = e.uploadParts
	}
	l, _ := NewLimiter(n)
	e.active[l] = op
	return l, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.active, l)
	}
}

// shortID trims a 64-character file id for log fields.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
