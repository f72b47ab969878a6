package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Mavahu/opacity-go/journal"
	"github.com/Mavahu/opacity-go/metadata"
	"github.com/Mavahu/opacity-go/network"
)

// Rename renames item inside folder p. A file is renamed in place. A folder
// has no native rename: the subtree is copied to the new path and the old
// path is deleted without touching file blobs.
func (t *Tree) Rename(ctx context.Context, p string, item metadata.ItemRef, newName string) error {
	p, err := metadata.CleanPath(p)
	if err != nil {
		return err
	}
	if err := item.Validate(); err != nil {
		return err
	}
	if err := metadata.ValidateName(newName); err != nil {
		return err
	}
	if newName == item.Name {
		return nil
	}

	if item.IsFile() {
		_, err := t.RenameFile(ctx, p, item.Handle, newName)
		return err
	}
	return t.withLock(func() error {
		return t.relocateLocked(ctx, journal.KindRename, p, item, p, newName)
	})
}

// Move moves item from folder from into folder to. A file entry is copied
// into the destination and then removed from the source, keeping its handle.
// A folder is copied and the source deleted like a rename. Moving a folder
// into itself or one of its descendants fails with ErrCyclicMove before any
// broker request.
func (t *Tree) Move(ctx context.Context, from string, item metadata.ItemRef, to string) error {
	from, err := metadata.CleanPath(from)
	if err != nil {
		return err
	}
	to, err = metadata.CleanPath(to)
	if err != nil {
		return err
	}
	if err := item.Validate(); err != nil {
		return err
	}
	if item.IsFolder() && metadata.IsWithin(to, metadata.Join(from, item.Name)) {
		return fmt.Errorf("%w: %s into %s", ErrCyclicMove, metadata.Join(from, item.Name), to)
	}
	if from == to {
		return nil
	}

	return t.withLock(func() error {
		if item.IsFile() {
			return t.moveFileLocked(ctx, from, item, to)
		}
		return t.relocateLocked(ctx, journal.KindMove, from, item, to, item.Name)
	})
}

func (t *Tree) moveFileLocked(ctx context.Context, from string, item metadata.ItemRef, to string) error {
	src, err := t.Get(ctx, from)
	if err != nil {
		return err
	}
	entry, ok := src.Metadata.FindFileByHandle(item.Handle)
	if !ok {
		return fmt.Errorf("%w: file %q in %s", ErrItemNotFound, item.Name, from)
	}
	moved := *entry

	if _, err := t.mutateLocked(ctx, to, func(m *metadata.FolderMetadata) error {
		if _, dup := m.FindFileByHandle(moved.Handle()); dup {
			return nil
		}
		if m.HasName(moved.Name) {
			return fmt.Errorf("%w: %q in %s", ErrNameExists, moved.Name, to)
		}
		return m.AddFile(moved)
	}); err != nil {
		return err
	}

	if _, err := t.mutateLocked(ctx, from, func(m *metadata.FolderMetadata) error {
		m.RemoveFiles(item.Handle)
		return nil
	}); err != nil {
		return err
	}
	t.log.WithFields(logrus.Fields{"file": moved.Name, "from": from, "to": to}).Debug("file moved")
	return nil
}

// relocateLocked moves the folder item of parent from to parent to under
// newName: create the destination, copy the subtree, delete the source. The
// steps are journaled so Reconcile can finish an interrupted relocation.
func (t *Tree) relocateLocked(ctx context.Context, kind journal.Kind, from string, item metadata.ItemRef, to, newName string) error {
	srcPath := metadata.Join(from, item.Name)
	dstPath := metadata.Join(to, newName)

	k, err := t.folderKey(srcPath)
	if err != nil {
		return err
	}
	if k.HashedKey != item.Handle {
		return fmt.Errorf("%w: handle does not belong to %s", metadata.ErrInvalidItem, srcPath)
	}

	parent, err := t.Get(ctx, from)
	if err != nil {
		return err
	}
	if !parent.Metadata.HasFolder(item.Handle) {
		return fmt.Errorf("%w: folder %q in %s", ErrItemNotFound, item.Name, from)
	}
	dst, err := t.Get(ctx, to)
	if err != nil {
		return err
	}
	if dst.Metadata.HasName(newName) {
		return fmt.Errorf("%w: %q in %s", ErrNameExists, newName, to)
	}

	var id uint64
	if t.journal != nil {
		account, err := t.Account()
		if err != nil {
			return err
		}
		id, err = t.journal.Begin(journal.Entry{Account: account, Kind: kind, From: srcPath, To: dstPath, Name: newName})
		if err != nil {
			return err
		}
	}

	if err := t.finishRelocationLocked(ctx, srcPath, dstPath); err != nil {
		return err
	}

	if t.journal != nil {
		if err := t.journal.Done(id); err != nil {
			return err
		}
	}
	t.log.WithFields(logrus.Fields{"op": kind, "from": srcPath, "to": dstPath}).Info("folder relocated")
	return nil
}

// finishRelocationLocked is the create, copy and delete sequence. Every step
// is idempotent so it can be replayed after a crash.
func (t *Tree) finishRelocationLocked(ctx context.Context, srcPath, dstPath string) error {
	if _, err := t.createFolderLocked(ctx, dstPath); err != nil {
		return err
	}
	if err := t.copyLocked(ctx, srcPath, dstPath); err != nil {
		return err
	}

	k, err := t.folderKey(srcPath)
	if err != nil {
		return err
	}
	res := &BatchResult{}
	item := metadata.FolderItem(metadata.Base(srcPath), k.HashedKey)
	if err := t.deleteLocked(ctx, metadata.Parent(srcPath), []metadata.ItemRef{item}, false, res); err != nil {
		return err
	}
	return res.Err()
}

// copyLocked copies the files and subfolders of src into dst, which must
// exist. Files already present in dst by handle are skipped.
func (t *Tree) copyLocked(ctx context.Context, src, dst string) error {
	from, err := t.Get(ctx, src)
	if err != nil {
		return err
	}

	if _, err := t.mutateLocked(ctx, dst, func(m *metadata.FolderMetadata) error {
		for _, f := range from.Metadata.Files {
			if _, dup := m.FindFileByHandle(f.Handle()); dup {
				continue
			}
			if m.HasName(f.Name) {
				return fmt.Errorf("%w: %q in %s", ErrNameExists, f.Name, dst)
			}
			if err := m.AddFile(f); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	for _, ref := range from.Metadata.Folders {
		childSrc := metadata.Join(src, ref.Name)
		childDst := metadata.Join(dst, ref.Name)
		if _, err := t.createFolderLocked(ctx, childDst); err != nil {
			return err
		}
		if err := t.copyLocked(ctx, childSrc, childDst); err != nil {
			return err
		}
	}
	return nil
}

// Copy copies the folder at src to dst, creating dst if needed. Repeating a
// copy never duplicates entries.
func (t *Tree) Copy(ctx context.Context, src, dst string) error {
	src, err := metadata.CleanPath(src)
	if err != nil {
		return err
	}
	dst, err = metadata.CleanPath(dst)
	if err != nil {
		return err
	}
	if metadata.IsWithin(dst, src) {
		return fmt.Errorf("%w: %s into %s", ErrCyclicMove, src, dst)
	}
	return t.withLock(func() error {
		if _, err := t.createFolderLocked(ctx, dst); err != nil {
			return err
		}
		return t.copyLocked(ctx, src, dst)
	})
}

// Reconcile finishes relocations left pending in the journal, e.g. by a
// crash between copy and delete. It returns the number of entries finished.
func (t *Tree) Reconcile(ctx context.Context) (int, error) {
	if t.journal == nil {
		return 0, nil
	}
	account, err := t.Account()
	if err != nil {
		return 0, err
	}
	entries, err := t.journal.Pending(account)
	if err != nil {
		return 0, err
	}

	done := 0
	err = t.withLock(func() error {
		for _, e := range entries {
			log := t.log.WithFields(logrus.Fields{"op": e.Kind, "from": e.From, "to": e.To})

			_, err := t.Get(ctx, e.From)
			switch {
			case errors.Is(err, network.ErrNotFound):
				// Source already deleted; drop a stale ref and make sure
				// the destination is linked.
				if err := t.unlinkLocked(ctx, e.From); err != nil {
					return err
				}
				if _, err := t.createFolderLocked(ctx, e.To); err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				if err := t.finishRelocationLocked(ctx, e.From, e.To); err != nil {
					return err
				}
			}

			if err := t.journal.Done(e.ID); err != nil {
				return err
			}
			done++
			log.Info("relocation reconciled")
		}
		return nil
	})
	return done, err
}

// unlinkLocked removes the ref of folder p from its parent if present.
func (t *Tree) unlinkLocked(ctx context.Context, p string) error {
	k, err := t.folderKey(p)
	if err != nil {
		return err
	}
	parent, err := t.Get(ctx, metadata.Parent(p))
	if err != nil {
		return err
	}
	if !parent.Metadata.HasFolder(k.HashedKey) {
		return nil
	}
	parent.Metadata.RemoveFolders(k.HashedKey)
	parent.Metadata.Touch(t.now())
	return t.Set(ctx, parent)
}
