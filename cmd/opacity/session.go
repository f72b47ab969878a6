package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Mavahu/opacity-go/config"
	"github.com/Mavahu/opacity-go/journal"
	"github.com/Mavahu/opacity-go/metadata"
	"github.com/Mavahu/opacity-go/network"
	"github.com/Mavahu/opacity-go/secretstore"
	"github.com/Mavahu/opacity-go/vault"
)

// errNoHandle is returned when no account handle is stored.
var errNoHandle = errors.New("not logged in: run 'opacity login' first")

const envHTTPRetries = "OPACITY_HTTP_RETRIES"

// session is a logged-in vault plus the resources it holds open.
type session struct {
	vault   *vault.Vault
	journal *journal.Journal
	sink    *spinnerSink
}

func (s *session) close() {
	if s.sink != nil {
		s.sink.stop()
	}
	if s.journal != nil {
		s.journal.Close()
	}
}

// handle returns the stored account handle.
func (a *app) handle() (string, error) {
	h, err := secretstore.LoadHandle(a.store)
	if errors.Is(err, secretstore.ErrNotFound) {
		return "", errNoHandle
	}
	return h, err
}

// vaultOptions maps the settings onto vault options for handle.
func (a *app) vaultOptions(handle string) (*vault.Options, error) {
	// A non-empty retry count in the environment wins over the file.
	resolved, err := network.ApplyEnv(a.cfg.ClientConfig(), map[string]string{
		envHTTPRetries: os.Getenv(envHTTPRetries),
	})
	if err != nil {
		return nil, err
	}

	return &vault.Options{
		Handle:           handle,
		Broker:           a.broker,
		Client:           *resolved,
		Logger:           a.log,
		MaxUploads:       a.cfg.MaxUploads,
		MaxDownloads:     a.cfg.MaxDownloads,
		MaxUploadParts:   a.cfg.MaxUploadParts,
		MaxDownloadParts: a.cfg.MaxDownloadParts,
		BlockSize:        a.cfg.BlockSize,
		PartSize:         a.cfg.PartSize,
		DownloadPartSize: a.cfg.DownloadPartSize,
		ScratchDir:       a.cfg.ScratchDir(),
		LockPath:         a.cfg.LockPath(),
	}, nil
}

// open logs in with handle. The caller closes the session.
func (a *app) open(ctx context.Context, handle, label string) (*session, *network.AccountStatus, error) {
	opts, err := a.vaultOptions(handle)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(a.cfg.DataDir, 0700); err != nil {
		return nil, nil, err
	}

	j, err := journal.Open(a.cfg.JournalPath())
	if err != nil {
		return nil, nil, err
	}
	s := &session{journal: j, sink: newSpinnerSink(a.out(), label, !a.noProgress && !a.verbose && !a.debug)}
	opts.Journal = j
	opts.Sink = s.sink

	v, err := vault.New(opts)
	if err != nil {
		s.close()
		return nil, nil, err
	}
	status, err := v.Login(ctx)
	if err != nil {
		s.close()
		return nil, nil, err
	}
	s.vault = v
	return s, status, nil
}

// session opens a vault for the stored handle.
func (a *app) session(ctx context.Context, label string) (*session, error) {
	h, err := a.handle()
	if err != nil {
		return nil, err
	}
	s, _, err := a.open(ctx, h, label)
	return s, err
}

// resolve finds the item at remote path p. The root itself has no parent
// and cannot be resolved.
func resolve(ctx context.Context, v *vault.Vault, p string) (folder string, item metadata.ItemRef, err error) {
	clean, err := metadata.CleanPath(p)
	if err != nil {
		return "", item, err
	}
	if clean == "/" {
		return "", item, fmt.Errorf("%w: %s", metadata.ErrInvalidPath, p)
	}

	folder = metadata.Parent(clean)
	name := metadata.Base(clean)
	doc, err := v.List(ctx, folder)
	if err != nil {
		return "", item, err
	}
	for _, it := range doc.Items() {
		if it.Name == name {
			return folder, it, nil
		}
	}
	return "", item, fmt.Errorf("%w: %s", vault.ErrItemNotFound, clean)
}

// report prints the skipped items of a batch and returns its joined error.
// Finished and failed items are printed by the progress sink as they happen.
func (a *app) report(res *vault.BatchResult) error {
	for _, it := range res.Skipped {
		fmt.Fprintf(a.out(), "%s skipped %s %s (already exists)\n",
			warningText.Sprint("-"), it.Kind, pathText.Sprint(it.Name))
	}
	return res.Err()
}

// configExists reports whether the settings file has been written.
func (a *app) configExists() bool {
	_, err := os.Stat(config.ConfigPath(a.cfg.DataDir))
	return err == nil
}
