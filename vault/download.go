package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/Mavahu/opacity-go/metadata"
	"github.com/Mavahu/opacity-go/transfer"
)

// Download fetches item of folder into destDir. A folder is recreated as a
// local directory and downloaded recursively, its files concurrently under
// the whole-file limit.
func (v *Vault) Download(ctx context.Context, folder string, item metadata.ItemRef, destDir string) (*BatchResult, error) {
	if err := v.requireLogin(); err != nil {
		return nil, err
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	folder, err := metadata.CleanPath(folder)
	if err != nil {
		return nil, err
	}

	res := &BatchResult{}
	if item.IsFile() {
		if _, err := v.DownloadFile(ctx, item.Handle, destDir); err != nil {
			res.fail(item, err)
		} else {
			res.succeed(item)
		}
		return res, nil
	}

	src := metadata.Join(folder, item.Name)
	k, err := v.tree.HashedKey(src)
	if err != nil {
		return nil, err
	}
	if k != item.Handle {
		return nil, fmt.Errorf("%w: handle does not belong to %s", metadata.ErrInvalidItem, src)
	}
	if err := v.downloadDir(ctx, src, filepath.Join(destDir, item.Name), res); err != nil {
		return nil, err
	}
	return res, nil
}

// DownloadFile fetches one file by handle into destDir.
func (v *Vault) DownloadFile(ctx context.Context, handle, destDir string) (*transfer.Downloaded, error) {
	if err := v.downloads.Acquire(ctx); err != nil {
		return nil, err
	}
	defer v.downloads.Release()
	return v.engine.Download(ctx, handle, destDir, v.sink)
}

func (v *Vault) downloadDir(ctx context.Context, folder, dir string, res *BatchResult) error {
	f, err := v.tree.Get(ctx, folder)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("%w: %w", transfer.ErrLocalIO, err)
	}

	var g errgroup.Group
	for _, it := range f.Metadata.FileItems() {
		g.Go(func() error {
			if _, err := v.DownloadFile(ctx, it.Handle, dir); err != nil {
				res.fail(it, err)
			} else {
				res.succeed(it)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, ref := range f.Metadata.Folders {
		if err := metadata.ValidateName(ref.Name); err != nil {
			res.fail(metadata.FolderItem(ref.Name, ref.Handle), err)
			continue
		}
		sub := metadata.Join(folder, ref.Name)
		if err := v.downloadDir(ctx, sub, filepath.Join(dir, ref.Name), res); err != nil {
			res.fail(metadata.FolderItem(ref.Name, ref.Handle), err)
		}
	}
	res.succeed(metadata.FolderItem(f.Metadata.Name, f.HashedKey))
	return nil
}
