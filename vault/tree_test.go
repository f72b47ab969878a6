package vault

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mavahu/opacity-go/blockcipher"
	"github.com/Mavahu/opacity-go/metadata"
	"github.com/Mavahu/opacity-go/network"
	"github.com/Mavahu/opacity-go/wallet"
)

// memBroker is a MockBroker backed by a map of folder documents.
func memBroker(docs map[string][]byte) *network.MockBroker {
	return &network.MockBroker{
		GetMetadataFn: func(_ context.Context, key string) ([]byte, error) {
			blob, ok := docs[key]
			if !ok {
				return nil, network.ErrNotFound
			}
			return blob, nil
		},
		SetMetadataFn: func(_ context.Context, key string, blob []byte) error {
			docs[key] = blob
			return nil
		},
		CreateMetadataFn: func(_ context.Context, key string) error {
			if _, ok := docs[key]; ok {
				return network.ErrAlreadyExists
			}
			return nil
		},
	}
}

func newMemTree(t *testing.T, docs map[string][]byte) (*Tree, *network.MockBroker) {
	t.Helper()
	w, err := wallet.NewWallet(testHandle)
	require.NoError(t, err)
	broker := memBroker(docs)
	tree, err := NewTree(TreeOptions{Broker: broker, Keys: w, Logger: quietLogger()})
	require.NoError(t, err)
	tree.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return tree, broker
}

func TestNewTree_NilParams(t *testing.T) {
	_, err := NewTree(TreeOptions{})
	assert.ErrorIs(t, err, ErrNilParam)
	_, err = NewTree(TreeOptions{Broker: &network.MockBroker{}})
	assert.ErrorIs(t, err, ErrNilParam)
}

func TestTree_SetGetRoundTrip(t *testing.T) {
	docs := map[string][]byte{}
	tree, _ := newMemTree(t, docs)
	ctx := context.Background()

	f := &Folder{Path: "/docs", Metadata: metadata.NewFolderMetadata("docs", tree.now())}
	require.NoError(t, f.Metadata.AddFile(metadata.FileEntry{Name: "a.txt"}))
	require.NoError(t, tree.Set(ctx, f))

	blob := docs[f.HashedKey]
	require.NotEmpty(t, blob)
	assert.NotContains(t, string(blob), "a.txt", "document must be encrypted")

	got, err := tree.Get(ctx, "docs/")
	require.NoError(t, err)
	assert.Equal(t, "/docs", got.Path)
	assert.Equal(t, f.HashedKey, got.HashedKey)
	_, ok := got.Metadata.FindFile("a.txt")
	assert.True(t, ok)
}

func TestTree_GetMissing(t *testing.T) {
	tree, _ := newMemTree(t, map[string][]byte{})
	_, err := tree.Get(context.Background(), "/nope")
	assert.ErrorIs(t, err, network.ErrNotFound)
}

func TestTree_GetWrongKey(t *testing.T) {
	docs := map[string][]byte{}
	tree, _ := newMemTree(t, docs)
	ctx := context.Background()

	key, err := tree.HashedKey("/x")
	require.NoError(t, err)
	blob, err := blockcipher.Encrypt([]byte(`["x",[],[],0,0]`), make([]byte, blockcipher.KeyLen))
	require.NoError(t, err)
	docs[key] = blob

	_, err = tree.Get(ctx, "/x")
	assert.ErrorIs(t, err, blockcipher.ErrAuthentication)
}

func TestTree_AppendFileNameExists(t *testing.T) {
	tree, _ := newMemTree(t, map[string][]byte{})
	ctx := context.Background()
	_, err := tree.CreateFolder(ctx, "/p/sub")
	require.NoError(t, err)

	_, err = tree.AppendFile(ctx, "/p", metadata.FileEntry{Name: "sub"})
	assert.ErrorIs(t, err, ErrNameExists)
}

func TestTree_FolderRefs(t *testing.T) {
	tree, _ := newMemTree(t, map[string][]byte{})
	ctx := context.Background()
	_, err := tree.EnsureRoot(ctx)
	require.NoError(t, err)

	ref := metadata.FolderRef{Name: "linked", Handle: strings.Repeat("c", metadata.FolderHandleLen)}
	f, err := tree.AppendFolderRef(ctx, "/", ref)
	require.NoError(t, err)
	require.Len(t, f.Metadata.Folders, 1)

	// Relinking the same handle is a no-op.
	f, err = tree.AppendFolderRef(ctx, "/", ref)
	require.NoError(t, err)
	assert.Len(t, f.Metadata.Folders, 1)

	other := metadata.FolderRef{Name: "linked", Handle: strings.Repeat("d", metadata.FolderHandleLen)}
	_, err = tree.AppendFolderRef(ctx, "/", other)
	assert.ErrorIs(t, err, ErrNameExists)

	f, err = tree.RemoveFolderRefs(ctx, "/", ref.Handle)
	require.NoError(t, err)
	assert.Empty(t, f.Metadata.Folders)
}

func TestTree_MutationFailureWritesNothing(t *testing.T) {
	docs := map[string][]byte{}
	tree, broker := newMemTree(t, docs)
	ctx := context.Background()
	_, err := tree.EnsureRoot(ctx)
	require.NoError(t, err)

	writes := 0
	set := broker.SetMetadataFn
	broker.SetMetadataFn = func(ctx context.Context, key string, blob []byte) error {
		writes++
		return set(ctx, key, blob)
	}
	_, err = tree.RenameFile(ctx, "/", strings.Repeat("a", metadata.FileHandleLen), "x")
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.Zero(t, writes)
}

func TestTree_CreateFolderInvalid(t *testing.T) {
	tree, broker := newMemTree(t, map[string][]byte{})
	_, err := tree.CreateFolder(context.Background(), "")
	assert.ErrorIs(t, err, metadata.ErrInvalidPath)
	assert.Zero(t, broker.Calls())
}

func TestTree_CreateFolderRepairsEmptyDocument(t *testing.T) {
	docs := map[string][]byte{}
	tree, broker := newMemTree(t, docs)
	ctx := context.Background()
	_, err := tree.EnsureRoot(ctx)
	require.NoError(t, err)

	key, err := tree.HashedKey("/half")
	require.NoError(t, err)
	create := broker.CreateMetadataFn
	broker.CreateMetadataFn = func(ctx context.Context, k string) error {
		if k == key {
			return network.ErrAlreadyExists
		}
		return create(ctx, k)
	}

	created, err := tree.CreateFolder(ctx, "/half")
	require.NoError(t, err)
	assert.False(t, created)
	f, err := tree.Get(ctx, "/half")
	require.NoError(t, err)
	assert.Equal(t, "half", f.Metadata.Name)
}

func TestTree_CreateFolderBrokerError(t *testing.T) {
	tree, broker := newMemTree(t, map[string][]byte{})
	boom := errors.New("boom")
	broker.CreateMetadataFn = func(context.Context, string) error { return boom }

	_, err := tree.CreateFolder(context.Background(), "/x")
	assert.ErrorIs(t, err, boom)
}

func TestBatchResult(t *testing.T) {
	var r BatchResult
	assert.True(t, r.OK())
	assert.NoError(t, r.Err())

	a := metadata.FileItem("a", "h")
	r.succeed(a)
	r.fail(metadata.FileItem("b", "h2"), metadata.ErrInvalidHandle)
	r.skip(metadata.FileItem("c", "h3"))

	assert.False(t, r.OK())
	assert.Len(t, r.Succeeded, 1)
	assert.Len(t, r.Skipped, 1)
	assert.ErrorIs(t, r.Err(), metadata.ErrInvalidHandle)
	assert.Contains(t, r.Err().Error(), `file "b"`)
}
