package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Mavahu/opacity-go/blockcipher"
	"github.com/Mavahu/opacity-go/journal"
	"github.com/Mavahu/opacity-go/metadata"
	"github.com/Mavahu/opacity-go/network"
	"github.com/Mavahu/opacity-go/wallet"
)

// KeyDeriver derives the key of a folder path.
type KeyDeriver interface {
	DeriveFolderKey(folderPath string) (*wallet.FolderKey, error)
}

// Journal records in-flight folder relocations.
type Journal interface {
	Begin(e journal.Entry) (uint64, error)
	Done(id uint64) error
	Pending(account string) ([]journal.Entry, error)
}

// Folder is a decrypted folder document together with its keys.
type Folder struct {
	Path      string
	Metadata  *metadata.FolderMetadata
	HashedKey string
	KeyString string

	key []byte
}

// TreeOptions configures a Tree.
type TreeOptions struct {
	Broker  network.Broker
	Keys    KeyDeriver
	Logger  *logrus.Logger
	Journal Journal // optional

	// LockPath, when set, names a lock file taken around every mutation so
	// that several processes on one account serialize too.
	LockPath string

	// DeleteParallelism bounds concurrent blob deletes. Zero means 8.
	DeleteParallelism int
}

// Tree is the encrypted folder hierarchy stored on the broker. Reads are
// lock-free; every mutation runs get, mutate, set while holding one lock for
// the whole account. Methods ending in Locked expect the lock to be held.
type Tree struct {
	broker   network.Broker
	keys     KeyDeriver
	log      *logrus.Entry
	journal  Journal
	lockPath string
	deletes  int
	now      func() time.Time

	mu sync.Mutex
}

// NewTree returns a Tree over opts.Broker.
func NewTree(opts TreeOptions) (*Tree, error) {
	if opts.Broker == nil {
		return nil, fmt.Errorf("%w: broker", ErrNilParam)
	}
	if opts.Keys == nil {
		return nil, fmt.Errorf("%w: keys", ErrNilParam)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.DeleteParallelism <= 0 {
		opts.DeleteParallelism = 8
	}
	return &Tree{
		broker:   opts.Broker,
		keys:     opts.Keys,
		log:      opts.Logger.WithField("component", "tree"),
		journal:  opts.Journal,
		lockPath: opts.LockPath,
		deletes:  opts.DeleteParallelism,
		now:      time.Now,
	}, nil
}

// lock takes the in-process mutex and, if configured, the lock file.
func (t *Tree) lock() (func(), error) {
	t.mu.Lock()
	if t.lockPath == "" {
		return t.mu.Unlock, nil
	}
	f, err := acquireLock(t.lockPath)
	if err != nil {
		t.mu.Unlock()
		return nil, fmt.Errorf("vault: tree lock: %w", err)
	}
	return func() {
		releaseLock(f)
		t.mu.Unlock()
	}, nil
}

// withLock runs fn under the mutation lock.
func (t *Tree) withLock(fn func() error) error {
	unlock, err := t.lock()
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// folderKey derives the keys of a cleaned folder path.
func (t *Tree) folderKey(p string) (*Folder, error) {
	k, err := t.keys.DeriveFolderKey(p)
	if err != nil {
		return nil, err
	}
	return &Folder{
		Path:      p,
		HashedKey: k.HashedKey(),
		KeyString: k.KeyString(),
		key:       k.EncryptionKey(),
	}, nil
}

// HashedKey returns the document key of folder path p.
func (t *Tree) HashedKey(p string) (string, error) {
	p, err := metadata.CleanPath(p)
	if err != nil {
		return "", err
	}
	f, err := t.folderKey(p)
	if err != nil {
		return "", err
	}
	return f.HashedKey, nil
}

// Account returns the hashed key of the root folder, which identifies the
// account in the relocation journal.
func (t *Tree) Account() (string, error) {
	return t.HashedKey(metadata.RootPath)
}

// Get fetches and decrypts the folder document at p. A folder that was never
// created returns network.ErrNotFound.
func (t *Tree) Get(ctx context.Context, p string) (*Folder, error) {
	p, err := metadata.CleanPath(p)
	if err != nil {
		return nil, err
	}
	f, err := t.folderKey(p)
	if err != nil {
		return nil, err
	}

	blob, err := t.broker.GetMetadata(ctx, f.HashedKey)
	if err != nil {
		return nil, fmt.Errorf("vault: get %s: %w", p, err)
	}
	plain, err := blockcipher.Decrypt(blob, f.key)
	if err != nil {
		return nil, fmt.Errorf("vault: decrypt %s: %w", p, err)
	}
	m, err := metadata.Decode(plain)
	if err != nil {
		return nil, fmt.Errorf("vault: decode %s: %w", p, err)
	}
	f.Metadata = m
	return f, nil
}

// Set encrypts and stores f.Metadata under f's key.
func (t *Tree) Set(ctx context.Context, f *Folder) error {
	if f == nil || f.Metadata == nil {
		return fmt.Errorf("%w: folder", ErrNilParam)
	}
	if f.key == nil {
		k, err := t.folderKey(f.Path)
		if err != nil {
			return err
		}
		f.HashedKey, f.KeyString, f.key = k.HashedKey, k.KeyString, k.key
	}

	plain, err := f.Metadata.Encode()
	if err != nil {
		return fmt.Errorf("vault: encode %s: %w", f.Path, err)
	}
	blob, err := blockcipher.Encrypt(plain, f.key)
	if err != nil {
		return err
	}
	if err := t.broker.SetMetadata(ctx, f.HashedKey, blob); err != nil {
		return fmt.Errorf("vault: set %s: %w", f.Path, err)
	}
	return nil
}

// mutateLocked reads the folder at p, applies fn and writes the result.
// Nothing is written when fn fails.
func (t *Tree) mutateLocked(ctx context.Context, p string, fn func(m *metadata.FolderMetadata) error) (*Folder, error) {
	f, err := t.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := fn(f.Metadata); err != nil {
		return nil, err
	}
	f.Metadata.Touch(t.now())
	if err := t.Set(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (t *Tree) mutate(ctx context.Context, p string, fn func(m *metadata.FolderMetadata) error) (*Folder, error) {
	var f *Folder
	err := t.withLock(func() error {
		var err error
		f, err = t.mutateLocked(ctx, p, fn)
		return err
	})
	return f, err
}

// AppendFile adds a file entry to folder p. A name already used by a file or
// folder fails with ErrNameExists.
func (t *Tree) AppendFile(ctx context.Context, p string, entry metadata.FileEntry) (*Folder, error) {
	return t.mutate(ctx, p, func(m *metadata.FolderMetadata) error {
		if m.HasName(entry.Name) {
			return fmt.Errorf("%w: %q", ErrNameExists, entry.Name)
		}
		return m.AddFile(entry)
	})
}

// RemoveFiles unlinks the files with the given handles from folder p.
func (t *Tree) RemoveFiles(ctx context.Context, p string, handles ...string) (*Folder, error) {
	return t.mutate(ctx, p, func(m *metadata.FolderMetadata) error {
		m.RemoveFiles(handles...)
		return nil
	})
}

// AppendFolderRef links a child folder into folder p. A name already used by
// a file or folder fails with ErrNameExists.
func (t *Tree) AppendFolderRef(ctx context.Context, p string, ref metadata.FolderRef) (*Folder, error) {
	return t.mutate(ctx, p, func(m *metadata.FolderMetadata) error {
		if !m.HasFolder(ref.Handle) && m.HasName(ref.Name) {
			return fmt.Errorf("%w: %q in %s", ErrNameExists, ref.Name, p)
		}
		return m.AddFolder(ref)
	})
}

// RemoveFolderRefs unlinks the child folders with the given handles from folder p.
func (t *Tree) RemoveFolderRefs(ctx context.Context, p string, handles ...string) (*Folder, error) {
	return t.mutate(ctx, p, func(m *metadata.FolderMetadata) error {
		m.RemoveFolders(handles...)
		return nil
	})
}

// RenameFile renames the file with handle in folder p.
func (t *Tree) RenameFile(ctx context.Context, p, handle, newName string) (*Folder, error) {
	return t.mutate(ctx, p, func(m *metadata.FolderMetadata) error {
		return renameFileIn(m, handle, newName)
	})
}

func renameFileIn(m *metadata.FolderMetadata, handle, newName string) error {
	if err := metadata.ValidateName(newName); err != nil {
		return err
	}
	entry, ok := m.FindFileByHandle(handle)
	if !ok {
		return fmt.Errorf("%w: file %q", ErrItemNotFound, handle)
	}
	if entry.Name != newName && m.HasName(newName) {
		return fmt.Errorf("%w: %q", ErrNameExists, newName)
	}
	return m.RenameFile(handle, newName)
}

// EnsureRoot creates the root folder document if it does not exist yet.
func (t *Tree) EnsureRoot(ctx context.Context) (created bool, err error) {
	err = t.withLock(func() error {
		created, err = t.createFolderLocked(ctx, metadata.RootPath)
		return err
	})
	return created, err
}

// CreateFolder creates the folder at p and any missing ancestors, and links
// each into its parent. Creating an existing folder is a successful no-op
// that also repairs a missing link in the parent.
func (t *Tree) CreateFolder(ctx context.Context, p string) (created bool, err error) {
	p, err = metadata.CleanPath(p)
	if err != nil {
		return false, err
	}
	if p != metadata.RootPath {
		if err := metadata.ValidateName(metadata.Base(p)); err != nil {
			return false, err
		}
	}
	err = t.withLock(func() error {
		created, err = t.createFolderLocked(ctx, p)
		return err
	})
	return created, err
}

func (t *Tree) createFolderLocked(ctx context.Context, p string) (bool, error) {
	f, err := t.folderKey(p)
	if err != nil {
		return false, err
	}
	log := t.log.WithField("path", p)

	var parent *Folder
	if p != metadata.RootPath {
		if _, err := t.createFolderLocked(ctx, metadata.Parent(p)); err != nil {
			return false, err
		}
		if parent, err = t.Get(ctx, metadata.Parent(p)); err != nil {
			return false, err
		}
		name := metadata.Base(p)
		if !parent.Metadata.HasFolder(f.HashedKey) && parent.Metadata.HasName(name) {
			return false, fmt.Errorf("%w: %q in %s", ErrNameExists, name, parent.Path)
		}
	}

	created := true
	switch err := t.broker.CreateMetadata(ctx, f.HashedKey); {
	case errors.Is(err, network.ErrAlreadyExists):
		created = false
	case err != nil:
		return false, fmt.Errorf("vault: create %s: %w", p, err)
	}

	if created {
		f.Metadata = metadata.NewFolderMetadata(metadata.Base(p), t.now())
		if err := t.Set(ctx, f); err != nil {
			return false, err
		}
		log.Debug("folder created")
	} else if _, err := t.Get(ctx, p); errors.Is(err, network.ErrNotFound) {
		// Registered but never written.
		f.Metadata = metadata.NewFolderMetadata(metadata.Base(p), t.now())
		if err := t.Set(ctx, f); err != nil {
			return false, err
		}
		log.Warn("repaired empty folder document")
	} else if err != nil {
		return false, err
	}

	if parent == nil || parent.Metadata.HasFolder(f.HashedKey) {
		return created, nil
	}
	if err := parent.Metadata.AddFolder(metadata.FolderRef{Name: metadata.Base(p), Handle: f.HashedKey}); err != nil {
		return false, err
	}
	parent.Metadata.Touch(t.now())
	if err := t.Set(ctx, parent); err != nil {
		return false, err
	}
	log.WithField("parent", parent.Path).Debug("folder linked")
	return created, nil
}
