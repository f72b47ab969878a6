// Package vault is the account client. Tree keeps the encrypted folder
// hierarchy consistent; Vault drives uploads, downloads and folder
// operations on top of it and reports to the UI through a progress.Sink.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Mavahu/opacity-go/metadata"
	"github.com/Mavahu/opacity-go/network"
	"github.com/Mavahu/opacity-go/progress"
	"github.com/Mavahu/opacity-go/transfer"
	"github.com/Mavahu/opacity-go/wallet"
)

const (
	// DefaultMaxUploads is the default number of files uploaded at once.
	DefaultMaxUploads = 3

	// DefaultMaxDownloads is the default number of files downloaded at once.
	DefaultMaxDownloads = 3
)

// RefreshFunc receives the current document of a folder after a mutation.
type RefreshFunc func(folder string, m *metadata.FolderMetadata)

// Options configures a Vault. Handle is required; the rest have defaults.
type Options struct {
	Handle string

	// Broker overrides the HTTP client built from Client.
	Broker network.Broker
	Client network.ClientConfig

	Logger    *logrus.Logger
	Sink      progress.Sink
	OnRefresh RefreshFunc

	MaxUploads       int
	MaxDownloads     int
	MaxUploadParts   int
	MaxDownloadParts int

	BlockSize        int
	PartSize         int64
	DownloadPartSize int64
	ScratchDir       string

	Journal  Journal
	LockPath string
}

// Vault is a logged-in account.
type Vault struct {
	wallet    *wallet.Wallet
	broker    network.Broker
	tree      *Tree
	engine    *transfer.Engine
	uploads   *transfer.Limiter
	downloads *transfer.Limiter
	sink      progress.Sink
	onRefresh RefreshFunc
	log       *logrus.Entry

	mu       sync.Mutex
	loggedIn bool
}

// New validates the handle and wires the client together. No request is
// sent before Login.
func New(opts *Options) (*Vault, error) {
	if opts == nil {
		return nil, fmt.Errorf("%w: options", ErrNilParam)
	}
	w, err := wallet.NewWallet(opts.Handle)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	broker := opts.Broker
	if broker == nil {
		cfg := opts.Client
		if cfg.BaseURL == "" {
			cfg = network.DefaultClientConfig()
		}
		client, err := network.NewClient(cfg, w, logger)
		if err != nil {
			return nil, err
		}
		broker = client
	}

	tree, err := NewTree(TreeOptions{
		Broker:   broker,
		Keys:     w,
		Logger:   logger,
		Journal:  opts.Journal,
		LockPath: opts.LockPath,
	})
	if err != nil {
		return nil, err
	}
	engine, err := transfer.NewEngine(transfer.Options{
		Broker:           broker,
		Logger:           logger,
		BlockSize:        opts.BlockSize,
		PartSize:         opts.PartSize,
		DownloadPartSize: opts.DownloadPartSize,
		MaxUploadParts:   opts.MaxUploadParts,
		MaxDownloadParts: opts.MaxDownloadParts,
		ScratchDir:       opts.ScratchDir,
	})
	if err != nil {
		return nil, err
	}

	uploads, err := transfer.NewLimiter(orDefault(opts.MaxUploads, DefaultMaxUploads))
	if err != nil {
		return nil, err
	}
	downloads, err := transfer.NewLimiter(orDefault(opts.MaxDownloads, DefaultMaxDownloads))
	if err != nil {
		return nil, err
	}

	return &Vault{
		wallet:    w,
		broker:    broker,
		tree:      tree,
		engine:    engine,
		uploads:   uploads,
		downloads: downloads,
		sink:      progress.OrNop(opts.Sink),
		onRefresh: opts.OnRefresh,
		log:       logger.WithField("component", "vault"),
	}, nil
}

func orDefault(n, def int) int {
	if n == 0 {
		return def
	}
	return n
}

// Tree returns the folder tree of the account.
func (v *Vault) Tree() *Tree { return v.tree }

// PublicKey returns the hex compressed public key that signs requests.
func (v *Vault) PublicKey() string { return v.wallet.PublicKeyHex() }

// Login checks the account with the broker and creates the root folder on
// first use.
func (v *Vault) Login(ctx context.Context) (*network.AccountStatus, error) {
	status, err := v.broker.AccountData(ctx)
	if err != nil {
		return nil, fmt.Errorf("vault: account data: %w", err)
	}
	created, err := v.tree.EnsureRoot(ctx)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.loggedIn = true
	v.mu.Unlock()

	v.log.WithFields(logrus.Fields{
		"payment_status": status.PaymentStatus,
		"root_created":   created,
	}).Info("logged in")
	return status, nil
}

func (v *Vault) requireLogin() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.loggedIn {
		return ErrNotLoggedIn
	}
	return nil
}

// List returns the document of folder.
func (v *Vault) List(ctx context.Context, folder string) (*metadata.FolderMetadata, error) {
	if err := v.requireLogin(); err != nil {
		return nil, err
	}
	f, err := v.tree.Get(ctx, folder)
	if err != nil {
		return nil, err
	}
	return f.Metadata, nil
}

// CreateFolder creates name inside parent. An existing folder is not an error.
func (v *Vault) CreateFolder(ctx context.Context, parent, name string) (bool, error) {
	if err := v.requireLogin(); err != nil {
		return false, err
	}
	if err := metadata.ValidateName(name); err != nil {
		return false, err
	}
	parent, err := metadata.CleanPath(parent)
	if err != nil {
		return false, err
	}
	created, err := v.tree.CreateFolder(ctx, metadata.Join(parent, name))
	if err != nil {
		return false, err
	}
	v.refresh(ctx, parent)
	return created, nil
}

// Delete removes items from folder, deleting file blobs. Each item reports
// delete lifecycle events keyed by its handle.
func (v *Vault) Delete(ctx context.Context, folder string, items []metadata.ItemRef) (*BatchResult, error) {
	if err := v.requireLogin(); err != nil {
		return nil, err
	}
	for _, it := range items {
		v.sink.OnInit(progress.Delete, it.Handle, it.Name)
	}
	res, err := v.tree.Delete(ctx, folder, items, true)
	if res != nil {
		for _, it := range res.Succeeded {
			v.sink.OnFinished(progress.Delete, it.Handle)
		}
		for _, f := range res.Failed {
			v.sink.OnFailed(progress.Delete, f.Item.Handle, f.Err)
		}
	}
	v.refresh(ctx, folder)
	return res, err
}

// Rename renames item inside folder.
func (v *Vault) Rename(ctx context.Context, folder string, item metadata.ItemRef, newName string) error {
	if err := v.requireLogin(); err != nil {
		return err
	}
	if err := v.tree.Rename(ctx, folder, item, newName); err != nil {
		return err
	}
	v.refresh(ctx, folder)
	return nil
}

// Move moves item from one folder to another, reporting move lifecycle
// events keyed by the item handle.
func (v *Vault) Move(ctx context.Context, from string, item metadata.ItemRef, to string) error {
	if err := v.requireLogin(); err != nil {
		return err
	}
	v.sink.OnInit(progress.Move, item.Handle, item.Name)
	if err := v.tree.Move(ctx, from, item, to); err != nil {
		v.sink.OnFailed(progress.Move, item.Handle, err)
		return err
	}
	v.sink.OnFinished(progress.Move, item.Handle)
	v.refresh(ctx, from)
	v.refresh(ctx, to)
	return nil
}

// Reconcile finishes folder relocations interrupted by a crash.
func (v *Vault) Reconcile(ctx context.Context) (int, error) {
	if err := v.requireLogin(); err != nil {
		return 0, err
	}
	return v.tree.Reconcile(ctx)
}

// SetMaxUploads changes how many files upload at once.
func (v *Vault) SetMaxUploads(ctx context.Context, n int) error {
	return v.uploads.Resize(ctx, n)
}

// SetMaxDownloads changes how many files download at once.
func (v *Vault) SetMaxDownloads(ctx context.Context, n int) error {
	return v.downloads.Resize(ctx, n)
}

// SetMaxUploadParts changes how many parts of one file upload at once.
func (v *Vault) SetMaxUploadParts(ctx context.Context, n int) error {
	return v.engine.SetMaxUploadParts(ctx, n)
}

// SetMaxDownloadParts changes how many ranges of one file download at once.
func (v *Vault) SetMaxDownloadParts(ctx context.Context, n int) error {
	return v.engine.SetMaxDownloadParts(ctx, n)
}

// Limits returns the current file and part concurrency limits.
func (v *Vault) Limits() (uploads, downloads, uploadParts, downloadParts int) {
	uploadParts, downloadParts = v.engine.PartLimits()
	return v.uploads.Limit(), v.downloads.Limit(), uploadParts, downloadParts
}

// refresh pushes the current document of folder to OnRefresh.
func (v *Vault) refresh(ctx context.Context, folder string) {
	if v.onRefresh == nil {
		return
	}
	f, err := v.tree.Get(ctx, folder)
	if err != nil {
		v.log.WithError(err).WithField("path", folder).Warn("refresh failed")
		return
	}
	v.onRefresh(f.Path, f.Metadata)
}
