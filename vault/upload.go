package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Mavahu/opacity-go/metadata"
	"github.com/Mavahu/opacity-go/network"
	"github.com/Mavahu/opacity-go/progress"
	"github.com/Mavahu/opacity-go/transfer"
)

// Upload uploads a local file or, recursively, a local directory into
// folder. Missing folders are created. Files whose name already exists in
// their destination are skipped. Files of one directory upload concurrently
// under the whole-file limit.
func (v *Vault) Upload(ctx context.Context, folder, localPath string) (*BatchResult, error) {
	if err := v.requireLogin(); err != nil {
		return nil, err
	}
	folder, err := metadata.CleanPath(folder)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", transfer.ErrLocalIO, err)
	}

	res := &BatchResult{}
	switch {
	case info.Mode().IsRegular():
		item, skipped, err := v.UploadFile(ctx, folder, localPath)
		switch {
		case err != nil:
			res.fail(metadata.FileItem(filepath.Base(localPath), ""), err)
		case skipped:
			res.skip(item)
		default:
			res.succeed(item)
		}
	case info.IsDir():
		dest := metadata.Join(folder, info.Name())
		if _, err := v.tree.CreateFolder(ctx, dest); err != nil {
			return nil, err
		}
		v.uploadDir(ctx, dest, localPath, res)
		v.refresh(ctx, folder)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, localPath)
	}
	return res, nil
}

// uploadDir uploads the entries of dir into the existing folder.
func (v *Vault) uploadDir(ctx context.Context, folder, dir string, res *BatchResult) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		res.fail(metadata.FolderItem(filepath.Base(dir), ""), fmt.Errorf("%w: %w", transfer.ErrLocalIO, err))
		return
	}

	var g errgroup.Group
	for _, e := range entries {
		local := filepath.Join(dir, e.Name())
		switch {
		case e.IsDir():
			sub := metadata.Join(folder, e.Name())
			if _, err := v.tree.CreateFolder(ctx, sub); err != nil {
				res.fail(metadata.FolderItem(e.Name(), ""), err)
				continue
			}
			v.uploadDir(ctx, sub, local, res)
		case e.Type().IsRegular():
			g.Go(func() error {
				item, skipped, err := v.UploadFile(ctx, folder, local)
				switch {
				case err != nil:
					res.fail(metadata.FileItem(e.Name(), ""), err)
				case skipped:
					res.skip(item)
				default:
					res.succeed(item)
				}
				return nil
			})
		default:
			v.log.WithField("path", local).Debug("skipping non-regular file")
		}
	}
	_ = g.Wait()
}

// UploadFile uploads one local file into folder and links it there. If the
// folder already has an entry of that name nothing is uploaded and skipped
// is true.
func (v *Vault) UploadFile(ctx context.Context, folder, localPath string) (item metadata.ItemRef, skipped bool, err error) {
	if err := v.requireLogin(); err != nil {
		return item, false, err
	}
	folder, err = metadata.CleanPath(folder)
	if err != nil {
		return item, false, err
	}
	name := filepath.Base(localPath)
	if err := metadata.ValidateName(name); err != nil {
		return item, false, err
	}
	log := v.log.WithFields(logrus.Fields{"folder": folder, "file": name})

	dir, err := v.tree.Get(ctx, folder)
	if errors.Is(err, network.ErrNotFound) {
		if _, err := v.tree.CreateFolder(ctx, folder); err != nil {
			return item, false, err
		}
		dir, err = v.tree.Get(ctx, folder)
	}
	if err != nil {
		return item, false, err
	}
	if existing, ok := dir.Metadata.FindFile(name); ok {
		log.Info("file exists, skipping upload")
		return metadata.FileItem(name, existing.Handle()), true, nil
	}
	if dir.Metadata.HasName(name) {
		return item, false, fmt.Errorf("%w: %q in %s", ErrNameExists, name, folder)
	}

	if err := v.uploads.Acquire(ctx); err != nil {
		return item, false, err
	}
	defer v.uploads.Release()

	f, err := os.Open(localPath)
	if err != nil {
		return item, false, fmt.Errorf("%w: %w", transfer.ErrLocalIO, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return item, false, fmt.Errorf("%w: %w", transfer.ErrLocalIO, err)
	}

	up, err := v.engine.Upload(ctx, transfer.Source{
		Name:   name,
		Type:   fileType(name),
		Size:   info.Size(),
		Reader: f,
	}, v.sink)
	if err != nil {
		return item, false, err
	}

	now := time.Now().UnixMilli()
	modified := info.ModTime().UnixMilli()
	entry := metadata.FileEntry{
		Name:     name,
		Created:  now,
		Modified: modified,
		Versions: []metadata.FileVersion{{
			Handle:   up.Handle,
			Size:     up.Size,
			Created:  now,
			Modified: modified,
		}},
	}
	if _, err := v.tree.AppendFile(ctx, folder, entry); err != nil {
		if errors.Is(err, ErrNameExists) {
			// Another upload of the same name linked first; ours stays unreferenced.
			log.Warn("file appeared during upload, skipping")
			v.sink.OnFinished(progress.Upload, up.Handle)
			return metadata.FileItem(name, up.Handle), true, nil
		}
		v.sink.OnFailed(progress.Upload, up.Handle, err)
		return item, false, err
	}

	v.sink.OnFinished(progress.Upload, up.Handle)
	v.refresh(ctx, folder)
	return metadata.FileItem(name, up.Handle), false, nil
}
