package vault

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mavahu/opacity-go/journal"
	"github.com/Mavahu/opacity-go/metadata"
	"github.com/Mavahu/opacity-go/network"
	"github.com/Mavahu/opacity-go/network/brokertest"
	"github.com/Mavahu/opacity-go/progress"
	"github.com/Mavahu/opacity-go/wallet"
)

const testHandle = "0101010101010101010101010101010101010101010101010101010101010101" +
	"0202020202020202020202020202020202020202020202020202020202020202"

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type testEnv struct {
	vault    *Vault
	server   *brokertest.Server
	events   *progress.Recorder
	mu       sync.Mutex
	refreshs []string
}

func (e *testEnv) refreshed() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.refreshs...)
}

// newTestEnv logs a vault into a fresh in-memory broker. Small block and
// part sizes keep multi-part files tiny.
func newTestEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()
	server := brokertest.NewServer()
	t.Cleanup(server.Close)

	env := &testEnv{server: server, events: &progress.Recorder{}}
	opts := &Options{
		Handle: testHandle,
		Client: network.ClientConfig{BaseURL: server.BaseURL(), Timeout: 5 * time.Second},
		Logger: quietLogger(),
		Sink:   env.events,
		OnRefresh: func(folder string, _ *metadata.FolderMetadata) {
			env.mu.Lock()
			env.refreshs = append(env.refreshs, folder)
			env.mu.Unlock()
		},
		BlockSize:        64,
		PartSize:         200,
		DownloadPartSize: 250,
		ScratchDir:       filepath.Join(t.TempDir(), "scratch"),
		LockPath:         filepath.Join(t.TempDir(), "tree.lock"),
	}
	for _, m := range mutate {
		m(opts)
	}

	v, err := New(opts)
	require.NoError(t, err)
	_, err = v.Login(context.Background())
	require.NoError(t, err)
	env.vault = v
	return env
}

func writeLocal(t *testing.T, dir, name string, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0700))
	require.NoError(t, os.WriteFile(p, data, 0600))
	return p, data
}

func (e *testEnv) folderItem(t *testing.T, parent, name string) metadata.ItemRef {
	t.Helper()
	h, err := e.vault.Tree().HashedKey(metadata.Join(parent, name))
	require.NoError(t, err)
	return metadata.FolderItem(name, h)
}

func (e *testEnv) fileItem(t *testing.T, folder, name string) metadata.ItemRef {
	t.Helper()
	m, err := e.vault.List(context.Background(), folder)
	require.NoError(t, err)
	entry, ok := m.FindFile(name)
	require.True(t, ok, "file %q in %s", name, folder)
	return metadata.FileItem(name, entry.Handle())
}

func TestNew_InvalidHandle(t *testing.T) {
	_, err := New(&Options{Handle: "abc"})
	assert.ErrorIs(t, err, wallet.ErrInvalidHandle)

	_, err = New(nil)
	assert.ErrorIs(t, err, ErrNilParam)
}

func TestVault_RequiresLogin(t *testing.T) {
	v, err := New(&Options{Handle: testHandle, Broker: &network.MockBroker{}, Logger: quietLogger()})
	require.NoError(t, err)

	_, err = v.List(context.Background(), "/")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	_, err = v.Upload(context.Background(), "/", "x")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestLogin_CreatesRootOnce(t *testing.T) {
	env := newTestEnv(t)
	root, err := env.vault.Tree().HashedKey("/")
	require.NoError(t, err)
	assert.True(t, env.server.HasMetadata(root))

	_, err = env.vault.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{root}, env.server.MetadataKeys())

	m, err := env.vault.List(context.Background(), "/")
	require.NoError(t, err)
	assert.Empty(t, m.Files)
	assert.Empty(t, m.Folders)
}

func TestScenario_Upload200000Bytes(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.BlockSize = 0
		o.PartSize = 0
		o.DownloadPartSize = 0
	})
	ctx := context.Background()
	local, data := writeLocal(t, t.TempDir(), "report.bin", 200000)

	item, skipped, err := env.vault.UploadFile(ctx, "/", local)
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Equal(t, 1, env.server.Calls(network.EndpointUpload))

	fileID, _, err := metadata.SplitFileHandle(item.Handle)
	require.NoError(t, err)
	assert.Equal(t, int64(200128), env.server.StoredSize(fileID))

	m, err := env.vault.List(ctx, "/")
	require.NoError(t, err)
	require.Len(t, m.Files, 1)
	require.Len(t, m.Files[0].Versions, 1)
	assert.Equal(t, "report.bin", m.Files[0].Name)
	assert.Equal(t, int64(200000), m.Files[0].Versions[0].Size)
	assert.Equal(t, item.Handle, m.Files[0].Versions[0].Handle)

	dest := t.TempDir()
	res, err := env.vault.Download(ctx, "/", item, dest)
	require.NoError(t, err)
	require.True(t, res.OK(), "%v", res.Err())
	got, err := os.ReadFile(filepath.Join(dest, "report.bin"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))

	assert.Len(t, env.events.Filter(progress.Upload, progress.KindFinished), 1)
	assert.Len(t, env.events.Filter(progress.Download, progress.KindFinished), 1)
	assert.Contains(t, env.refreshed(), "/")
}

func TestUploadFile_SkipsExistingName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	local, _ := writeLocal(t, t.TempDir(), "a.txt", 100)

	first, _, err := env.vault.UploadFile(ctx, "/", local)
	require.NoError(t, err)
	uploads := env.server.Calls(network.EndpointInitUpload)

	second, skipped, err := env.vault.UploadFile(ctx, "/", local)
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Equal(t, first.Handle, second.Handle)
	assert.Equal(t, uploads, env.server.Calls(network.EndpointInitUpload))
}

func TestUploadFile_CreatesMissingFolder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	local, _ := writeLocal(t, t.TempDir(), "deep.txt", 10)

	_, _, err := env.vault.UploadFile(ctx, "/x/y", local)
	require.NoError(t, err)

	m, err := env.vault.List(ctx, "/x")
	require.NoError(t, err)
	_, ok := m.FindFolder("y")
	assert.True(t, ok)
	m, err = env.vault.List(ctx, "/x/y")
	require.NoError(t, err)
	_, ok = m.FindFile("deep.txt")
	assert.True(t, ok)
}

func TestUploadFile_ConcurrentNoLostUpdate(t *testing.T) {
	const n = 8
	env := newTestEnv(t, func(o *Options) { o.MaxUploads = 4 })
	ctx := context.Background()
	dir := t.TempDir()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		local, _ := writeLocal(t, dir, fmt.Sprintf("f%d.bin", i), 150+i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := env.vault.UploadFile(ctx, "/shared", local)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	m, err := env.vault.List(ctx, "/shared")
	require.NoError(t, err)
	assert.Len(t, m.Files, n)
}

func TestUpload_DirectoryRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	src := filepath.Join(t.TempDir(), "album")
	_, a := writeLocal(t, src, "a.jpg", 300)
	_, b := writeLocal(t, src, "nested/b.jpg", 77)
	_, empty := writeLocal(t, src, "nested/empty", 0)

	res, err := env.vault.Upload(ctx, "/", src)
	require.NoError(t, err)
	require.True(t, res.OK(), "%v", res.Err())
	assert.Len(t, res.Succeeded, 3)

	dest := t.TempDir()
	res, err = env.vault.Download(ctx, "/", env.folderItem(t, "/", "album"), dest)
	require.NoError(t, err)
	require.True(t, res.OK(), "%v", res.Err())

	for rel, want := range map[string][]byte{"a.jpg": a, "nested/b.jpg": b, "nested/empty": empty} {
		got, err := os.ReadFile(filepath.Join(dest, "album", rel))
		require.NoError(t, err, rel)
		assert.True(t, bytes.Equal(want, got), rel)
	}
}

func TestCreateFolder_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.vault.CreateFolder(ctx, "/", "x")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = env.vault.CreateFolder(ctx, "/", "x")
	require.NoError(t, err)
	assert.False(t, created)

	m, err := env.vault.List(ctx, "/")
	require.NoError(t, err)
	count := 0
	for _, f := range m.Folders {
		if f.Name == "x" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCreateFolder_CreatesAncestors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.vault.Tree().CreateFolder(ctx, "/a/b/c")
	require.NoError(t, err)
	assert.True(t, created)

	for _, p := range []string{"/a", "/a/b", "/a/b/c"} {
		_, err := env.vault.List(ctx, p)
		assert.NoError(t, err, p)
	}
	m, err := env.vault.List(ctx, "/a/b")
	require.NoError(t, err)
	_, ok := m.FindFolder("c")
	assert.True(t, ok)
}

func TestCreateFolder_RelinksMissingRef(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tree := env.vault.Tree()

	_, err := tree.CreateFolder(ctx, "/lost")
	require.NoError(t, err)
	item := env.folderItem(t, "/", "lost")
	_, err = tree.RemoveFolderRefs(ctx, "/", item.Handle)
	require.NoError(t, err)

	created, err := tree.CreateFolder(ctx, "/lost")
	require.NoError(t, err)
	assert.False(t, created)
	m, err := env.vault.List(ctx, "/")
	require.NoError(t, err)
	assert.True(t, m.HasFolder(item.Handle))
}

func TestCreateFolder_NameTakenByFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	local, _ := writeLocal(t, t.TempDir(), "clash", 5)
	_, _, err := env.vault.UploadFile(ctx, "/", local)
	require.NoError(t, err)

	_, err = env.vault.CreateFolder(ctx, "/", "clash")
	assert.ErrorIs(t, err, ErrNameExists)
}

func TestMove_CycleGuardWithoutNetwork(t *testing.T) {
	w, err := wallet.NewWallet(testHandle)
	require.NoError(t, err)
	broker := &network.MockBroker{}
	tree, err := NewTree(TreeOptions{Broker: broker, Keys: w, Logger: quietLogger()})
	require.NoError(t, err)

	h, err := tree.HashedKey("/a")
	require.NoError(t, err)
	item := metadata.FolderItem("a", h)

	for _, dst := range []string{"/a", "/a/b", "/a/b/c"} {
		err := tree.Move(context.Background(), "/", item, dst)
		assert.ErrorIs(t, err, ErrCyclicMove, dst)
	}
	assert.Zero(t, broker.Calls())
}

func TestRename_File(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	local, _ := writeLocal(t, t.TempDir(), "old.txt", 20)
	item, _, err := env.vault.UploadFile(ctx, "/", local)
	require.NoError(t, err)

	require.NoError(t, env.vault.Rename(ctx, "/", item, "new.txt"))
	m, err := env.vault.List(ctx, "/")
	require.NoError(t, err)
	entry, ok := m.FindFile("new.txt")
	require.True(t, ok)
	assert.Equal(t, item.Handle, entry.Handle())
	assert.False(t, m.HasName("old.txt"))
}

func TestRename_FileNameExists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dir := t.TempDir()
	a, _ := writeLocal(t, dir, "a", 1)
	b, _ := writeLocal(t, dir, "b", 1)
	item, _, err := env.vault.UploadFile(ctx, "/", a)
	require.NoError(t, err)
	_, _, err = env.vault.UploadFile(ctx, "/", b)
	require.NoError(t, err)

	assert.ErrorIs(t, env.vault.Rename(ctx, "/", item, "b"), ErrNameExists)
}

func TestRename_Folder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	local, data := writeLocal(t, t.TempDir(), "doc.txt", 130)
	_, _, err := env.vault.UploadFile(ctx, "/old/inner", local)
	require.NoError(t, err)
	oldKey, err := env.vault.Tree().HashedKey("/old")
	require.NoError(t, err)
	oldInner, err := env.vault.Tree().HashedKey("/old/inner")
	require.NoError(t, err)

	require.NoError(t, env.vault.Rename(ctx, "/", env.folderItem(t, "/", "old"), "new"))

	assert.False(t, env.server.HasMetadata(oldKey))
	assert.False(t, env.server.HasMetadata(oldInner))
	root, err := env.vault.List(ctx, "/")
	require.NoError(t, err)
	assert.False(t, root.HasName("old"))
	assert.True(t, root.HasName("new"))

	file := env.fileItem(t, "/new/inner", "doc.txt")
	dest := t.TempDir()
	res, err := env.vault.Download(ctx, "/new/inner", file, dest)
	require.NoError(t, err)
	require.True(t, res.OK())
	got, err := os.ReadFile(filepath.Join(dest, "doc.txt"))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestMove_File(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	local, _ := writeLocal(t, t.TempDir(), "m.bin", 40)
	item, _, err := env.vault.UploadFile(ctx, "/src", local)
	require.NoError(t, err)
	_, err = env.vault.CreateFolder(ctx, "/", "dst")
	require.NoError(t, err)

	require.NoError(t, env.vault.Move(ctx, "/src", item, "/dst"))

	src, err := env.vault.List(ctx, "/src")
	require.NoError(t, err)
	assert.Empty(t, src.Files)
	moved := env.fileItem(t, "/dst", "m.bin")
	assert.Equal(t, item.Handle, moved.Handle)

	assert.Len(t, env.events.Filter(progress.Move, progress.KindFinished), 1)
	assert.Contains(t, env.refreshed(), "/dst")
}

func TestMove_FileNameExists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dir := t.TempDir()
	a, _ := writeLocal(t, filepath.Join(dir, "1"), "same", 3)
	b, _ := writeLocal(t, filepath.Join(dir, "2"), "same", 4)
	item, _, err := env.vault.UploadFile(ctx, "/a", a)
	require.NoError(t, err)
	_, _, err = env.vault.UploadFile(ctx, "/b", b)
	require.NoError(t, err)

	err = env.vault.Move(ctx, "/a", item, "/b")
	assert.ErrorIs(t, err, ErrNameExists)
	assert.Len(t, env.events.Filter(progress.Move, progress.KindFailed), 1)

	// Source untouched.
	env.fileItem(t, "/a", "same")
}

func TestMove_Folder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	local, _ := writeLocal(t, t.TempDir(), "f.txt", 10)
	item, _, err := env.vault.UploadFile(ctx, "/a/sub", local)
	require.NoError(t, err)
	_, err = env.vault.CreateFolder(ctx, "/", "b")
	require.NoError(t, err)

	require.NoError(t, env.vault.Move(ctx, "/", env.folderItem(t, "/", "a"), "/b"))

	root, err := env.vault.List(ctx, "/")
	require.NoError(t, err)
	assert.False(t, root.HasName("a"))
	moved := env.fileItem(t, "/b/a/sub", "f.txt")
	assert.Equal(t, item.Handle, moved.Handle)

	fileID, _, err := metadata.SplitFileHandle(item.Handle)
	require.NoError(t, err)
	assert.True(t, env.server.HasFile(fileID), "relocation must keep file blobs")
}

func TestMove_ItemNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.vault.CreateFolder(ctx, "/", "dst")
	require.NoError(t, err)

	ghost := metadata.FileItem("ghost", fmt.Sprintf("%0128x", 1))
	assert.ErrorIs(t, env.vault.Move(ctx, "/", ghost, "/dst"), ErrItemNotFound)
}

func TestDelete_Files(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dir := t.TempDir()
	a, _ := writeLocal(t, dir, "a", 50)
	b, _ := writeLocal(t, dir, "b", 60)
	ia, _, err := env.vault.UploadFile(ctx, "/", a)
	require.NoError(t, err)
	ib, _, err := env.vault.UploadFile(ctx, "/", b)
	require.NoError(t, err)

	res, err := env.vault.Delete(ctx, "/", []metadata.ItemRef{ia, ib})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Len(t, res.Succeeded, 2)
	assert.Zero(t, env.server.FileCount())

	m, err := env.vault.List(ctx, "/")
	require.NoError(t, err)
	assert.Empty(t, m.Files)
	assert.Len(t, env.events.Filter(progress.Delete, progress.KindFinished), 2)
}

func TestDelete_PartialFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dir := t.TempDir()
	a, _ := writeLocal(t, dir, "keep", 50)
	b, _ := writeLocal(t, dir, "gone", 60)
	ia, _, err := env.vault.UploadFile(ctx, "/", a)
	require.NoError(t, err)
	ib, _, err := env.vault.UploadFile(ctx, "/", b)
	require.NoError(t, err)

	fileID, _, err := metadata.SplitFileHandle(ia.Handle)
	require.NoError(t, err)
	env.server.FailDelete(fileID)

	res, err := env.vault.Delete(ctx, "/", []metadata.ItemRef{ia, ib})
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, ia.Handle, res.Failed[0].Item.Handle)
	assert.Equal(t, []metadata.ItemRef{ib}, res.Succeeded)

	m, err := env.vault.List(ctx, "/")
	require.NoError(t, err)
	assert.True(t, m.HasName("keep"))
	assert.False(t, m.HasName("gone"))

	failed := env.events.Filter(progress.Delete, progress.KindFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, ia.Handle, failed[0].Handle)
}

func TestDelete_FolderRecursive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dir := t.TempDir()
	a, _ := writeLocal(t, dir, "a", 10)
	b, _ := writeLocal(t, dir, "b", 10)
	_, _, err := env.vault.UploadFile(ctx, "/d", a)
	require.NoError(t, err)
	_, _, err = env.vault.UploadFile(ctx, "/d/e", b)
	require.NoError(t, err)

	res, err := env.vault.Delete(ctx, "/", []metadata.ItemRef{env.folderItem(t, "/", "d")})
	require.NoError(t, err)
	require.True(t, res.OK(), "%v", res.Err())

	root, err := env.vault.Tree().HashedKey("/")
	require.NoError(t, err)
	assert.Equal(t, []string{root}, env.server.MetadataKeys())
	assert.Zero(t, env.server.FileCount())
}

func TestDelete_InvalidItem(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.vault.Delete(context.Background(), "/", []metadata.ItemRef{
		metadata.FileItem("x", "short"),
		metadata.FolderItem("y", fmt.Sprintf("%064x", 7)),
	})
	require.NoError(t, err)
	require.Len(t, res.Failed, 2)
	assert.ErrorIs(t, res.Failed[0].Err, metadata.ErrInvalidHandle)
	assert.ErrorIs(t, res.Failed[1].Err, metadata.ErrInvalidItem)
}

func TestCopy_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	local, _ := writeLocal(t, t.TempDir(), "c.txt", 10)
	_, _, err := env.vault.UploadFile(ctx, "/src/child", local)
	require.NoError(t, err)

	tree := env.vault.Tree()
	require.NoError(t, tree.Copy(ctx, "/src", "/dup"))
	require.NoError(t, tree.Copy(ctx, "/src", "/dup"))

	m, err := env.vault.List(ctx, "/dup/child")
	require.NoError(t, err)
	assert.Len(t, m.Files, 1)
	m, err = env.vault.List(ctx, "/dup")
	require.NoError(t, err)
	assert.Len(t, m.Folders, 1)

	assert.ErrorIs(t, tree.Copy(ctx, "/src", "/src/child"), ErrCyclicMove)
}

func TestReconcile_FinishesInterruptedRelocation(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()
	env := newTestEnv(t, func(o *Options) { o.Journal = j })
	ctx := context.Background()
	tree := env.vault.Tree()

	local, _ := writeLocal(t, t.TempDir(), "r.txt", 10)
	_, _, err = env.vault.UploadFile(ctx, "/from", local)
	require.NoError(t, err)

	// Crash after the copy, before the source was deleted.
	require.NoError(t, tree.Copy(ctx, "/from", "/to"))
	account, err := tree.Account()
	require.NoError(t, err)
	_, err = j.Begin(journal.Entry{Account: account, Kind: journal.KindRename, From: "/from", To: "/to", Name: "to"})
	require.NoError(t, err)

	n, err := env.vault.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	root, err := env.vault.List(ctx, "/")
	require.NoError(t, err)
	assert.False(t, root.HasName("from"))
	assert.True(t, root.HasName("to"))
	env.fileItem(t, "/to", "r.txt")

	pending, err := j.Pending(account)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReconcile_SourceAlreadyDeleted(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()
	env := newTestEnv(t, func(o *Options) { o.Journal = j })
	ctx := context.Background()

	account, err := env.vault.Tree().Account()
	require.NoError(t, err)
	_, err = j.Begin(journal.Entry{Account: account, Kind: journal.KindMove, From: "/gone", To: "/target", Name: "target"})
	require.NoError(t, err)

	n, err := env.vault.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	root, err := env.vault.List(ctx, "/")
	require.NoError(t, err)
	assert.True(t, root.HasName("target"))
}

func TestRelocation_ClearsJournal(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()
	env := newTestEnv(t, func(o *Options) { o.Journal = j })
	ctx := context.Background()

	_, err = env.vault.CreateFolder(ctx, "/", "r")
	require.NoError(t, err)
	require.NoError(t, env.vault.Rename(ctx, "/", env.folderItem(t, "/", "r"), "s"))

	account, err := env.vault.Tree().Account()
	require.NoError(t, err)
	pending, err := j.Pending(account)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReconcile_IgnoresOtherAccounts(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()
	ctx := context.Background()

	first := newTestEnv(t, func(o *Options) { o.Journal = j })
	firstAccount, err := first.vault.Tree().Account()
	require.NoError(t, err)
	_, err = j.Begin(journal.Entry{Account: firstAccount, Kind: journal.KindMove, From: "/from", To: "/to", Name: "to"})
	require.NoError(t, err)

	otherHandle, err := wallet.GenerateHandle()
	require.NoError(t, err)
	second := newTestEnv(t, func(o *Options) {
		o.Handle = otherHandle
		o.Journal = j
	})
	secondAccount, err := second.vault.Tree().Account()
	require.NoError(t, err)
	require.NotEqual(t, firstAccount, secondAccount)

	n, err := second.vault.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	root, err := second.vault.List(ctx, "/")
	require.NoError(t, err)
	assert.False(t, root.HasName("to"))

	pending, err := j.Pending(firstAccount)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	n, err = first.vault.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	root, err = first.vault.List(ctx, "/")
	require.NoError(t, err)
	assert.True(t, root.HasName("to"))
}

func TestSetLimits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.vault.SetMaxUploads(ctx, 5))
	require.NoError(t, env.vault.SetMaxDownloads(ctx, 1))
	require.NoError(t, env.vault.SetMaxUploadParts(ctx, 2))
	require.NoError(t, env.vault.SetMaxDownloadParts(ctx, 7))

	up, down, upParts, downParts := env.vault.Limits()
	assert.Equal(t, 5, up)
	assert.Equal(t, 1, down)
	assert.Equal(t, 2, upParts)
	assert.Equal(t, 7, downParts)

	assert.Error(t, env.vault.SetMaxUploads(ctx, 0))
}
