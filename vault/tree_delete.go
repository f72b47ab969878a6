package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Mavahu/opacity-go/metadata"
	"github.com/Mavahu/opacity-go/network"
)

// Delete removes items from folder p. File blobs are deleted concurrently,
// then every confirmed file is unlinked in a single write. Folders are removed
// depth-first: child folders, then (if deleteFiles) child file blobs, then the
// folder's own registration, before their refs leave p. With deleteFiles
// false the file blobs survive; relocations use this to vacate a path.
//
// Per-item failures are reported in the result; the error is set only when
// the final write of p fails.
func (t *Tree) Delete(ctx context.Context, p string, items []metadata.ItemRef, deleteFiles bool) (*BatchResult, error) {
	p, err := metadata.CleanPath(p)
	if err != nil {
		return nil, err
	}
	res := &BatchResult{}
	err = t.withLock(func() error {
		return t.deleteLocked(ctx, p, items, deleteFiles, res)
	})
	return res, err
}

func (t *Tree) deleteLocked(ctx context.Context, p string, items []metadata.ItemRef, deleteFiles bool, res *BatchResult) error {
	var files, folders []metadata.ItemRef
	for _, it := range items {
		if err := it.Validate(); err != nil {
			res.fail(it, err)
			continue
		}
		if it.IsFile() {
			files = append(files, it)
		} else {
			folders = append(folders, it)
		}
	}

	removed := t.deleteBlobs(ctx, files, deleteFiles, res)
	for _, it := range folders {
		if err := t.deleteFolderItemLocked(ctx, p, it, deleteFiles); err != nil {
			res.fail(it, err)
			continue
		}
		removed = append(removed, it)
	}
	if len(removed) == 0 {
		return nil
	}

	_, err := t.mutateLocked(ctx, p, func(m *metadata.FolderMetadata) error {
		for _, it := range removed {
			if it.IsFile() {
				m.RemoveFiles(it.Handle)
			} else {
				m.RemoveFolders(it.Handle)
			}
		}
		return nil
	})
	if err != nil {
		for _, it := range removed {
			res.fail(it, err)
		}
		return err
	}
	for _, it := range removed {
		res.succeed(it)
	}
	t.log.WithField("path", p).WithField("items", len(removed)).Debug("items deleted")
	return nil
}

// deleteBlobs deletes the blobs of files concurrently and returns the files
// whose blob is gone. Without deleteFiles every file is returned untouched.
func (t *Tree) deleteBlobs(ctx context.Context, files []metadata.ItemRef, deleteFiles bool, res *BatchResult) []metadata.ItemRef {
	if !deleteFiles || len(files) == 0 {
		return append([]metadata.ItemRef(nil), files...)
	}

	var (
		mu   sync.Mutex
		gone []metadata.ItemRef
		g    errgroup.Group
	)
	g.SetLimit(t.deletes)
	for _, it := range files {
		g.Go(func() error {
			fileID, _, err := metadata.SplitFileHandle(it.Handle)
			if err == nil {
				err = t.broker.DeleteFile(ctx, fileID)
			}
			if err != nil && !errors.Is(err, network.ErrNotFound) {
				t.log.WithError(err).WithField("file", it.Name).Warn("blob delete failed")
				res.fail(it, err)
				return nil
			}
			mu.Lock()
			gone = append(gone, it)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return gone
}

// deleteFolderItemLocked checks that the folder item really is the child
// named it.Name of p, then deletes its subtree.
func (t *Tree) deleteFolderItemLocked(ctx context.Context, p string, it metadata.ItemRef, deleteFiles bool) error {
	child := metadata.Join(p, it.Name)
	k, err := t.folderKey(child)
	if err != nil {
		return err
	}
	if k.HashedKey != it.Handle {
		return fmt.Errorf("%w: handle does not belong to %s", metadata.ErrInvalidItem, child)
	}
	return t.deleteFolderLocked(ctx, child, deleteFiles)
}

// deleteFolderLocked removes the subtree rooted at p, depth-first.
func (t *Tree) deleteFolderLocked(ctx context.Context, p string, deleteFiles bool) error {
	f, err := t.Get(ctx, p)
	switch {
	case errors.Is(err, network.ErrNotFound):
		// Registered but never written, or already gone.
		f, err = t.folderKey(p)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		for _, ref := range f.Metadata.Folders {
			if err := t.deleteFolderLocked(ctx, metadata.Join(p, ref.Name), deleteFiles); err != nil {
				return err
			}
		}
		if deleteFiles {
			files := &BatchResult{}
			t.deleteBlobs(ctx, f.Metadata.FileItems(), true, files)
			if err := files.Err(); err != nil {
				return fmt.Errorf("vault: delete files of %s: %w", p, err)
			}
		}
	}

	if err := t.broker.DeleteMetadata(ctx, f.HashedKey); err != nil && !errors.Is(err, network.ErrNotFound) {
		return fmt.Errorf("vault: delete %s: %w", p, err)
	}
	t.log.WithField("path", p).Debug("folder deleted")
	return nil
}
