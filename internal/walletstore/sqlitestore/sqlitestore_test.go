package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keichiri/go-wallet/conf"
	"github.com/keichiri/go-wallet/internal/walletquery"
	"github.com/keichiri/go-wallet/internal/walletrecord"
	"github.com/keichiri/go-wallet/internal/walletstore"
	"github.com/keichiri/go-wallet/internal/wallettags"
	werrors "github.com/keichiri/go-wallet/pkg/errors"
)

func fetchWithTags() walletstore.FetchOptions {
	return walletstore.FetchOptions{RetrieveValue: true, RetrieveTags: true}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wallet.db")
	store, err := Open(conf.DefaultStorageConfig(path))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAddGetDelete(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	class, name := []byte("class1"), []byte("name1")
	value := &walletrecord.StorageValue{Data: []byte("data"), WrappedKey: []byte("key")}
	tags := map[string]wallettags.TagValue{
		"enc-key":   wallettags.EncryptedTagValue("enc-val"),
		"plain-key": wallettags.PlainTagValue("plain-val"),
	}

	require.NoError(t, store.Add(ctx, class, name, value, tags))

	entity, err := store.Get(ctx, class, name, walletstore.DefaultFetchOptions())
	require.NoError(t, err)
	require.Equal(t, value.Data, entity.Value.Data)
	require.Equal(t, value.WrappedKey, entity.Value.WrappedKey)

	require.NoError(t, store.Delete(ctx, class, name))
	_, err = store.Get(ctx, class, name, walletstore.DefaultFetchOptions())
	require.True(t, errors.Is(err, werrors.ErrNotFound))
}

func TestAddDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	class, name := []byte("c"), []byte("n")

	require.NoError(t, store.Add(ctx, class, name, nil, nil))
	err := store.Add(ctx, class, name, nil, nil)
	require.True(t, errors.Is(err, werrors.ErrAlreadyExists))
}

func TestUpdateMissingRejected(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	err := store.Update(ctx, []byte("c"), []byte("missing"), nil)
	require.True(t, errors.Is(err, werrors.ErrNotFound))
}

func TestUpdateReplacesValue(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	class, name := []byte("c"), []byte("n")

	require.NoError(t, store.Add(ctx, class, name, &walletrecord.StorageValue{Data: []byte("a"), WrappedKey: []byte("k1")}, nil))
	require.NoError(t, store.Update(ctx, class, name, &walletrecord.StorageValue{Data: []byte("b"), WrappedKey: []byte("k2")}))

	entity, err := store.Get(ctx, class, name, walletstore.DefaultFetchOptions())
	require.NoError(t, err)
	require.Equal(t, []byte("b"), entity.Value.Data)
}

func TestTagLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	class, name := []byte("c"), []byte("n")

	require.NoError(t, store.Add(ctx, class, name, nil, map[string]wallettags.TagValue{
		"k1": wallettags.PlainTagValue("v1"),
	}))

	require.NoError(t, store.AddTags(ctx, class, name, map[string]wallettags.TagValue{
		"k2": wallettags.EncryptedTagValue("v2"),
	}))

	entity, err := store.Get(ctx, class, name, fetchWithTags())
	require.NoError(t, err)
	require.Len(t, entity.Tags, 2)

	require.NoError(t, store.UpdateTags(ctx, class, name, map[string]wallettags.TagValue{
		"k1": wallettags.PlainTagValue("v1-updated"),
	}))
	entity, err = store.Get(ctx, class, name, fetchWithTags())
	require.NoError(t, err)
	require.Equal(t, wallettags.PlainTagValue("v1-updated"), entity.Tags["k1"])
	require.Len(t, entity.Tags, 2)

	require.NoError(t, store.DeleteTags(ctx, class, name, [][]byte{[]byte("k2")}))
	entity, err = store.Get(ctx, class, name, fetchWithTags())
	require.NoError(t, err)
	require.Len(t, entity.Tags, 1)
}

func TestSearchAndGetAll(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	class := []byte("c")

	require.NoError(t, store.Add(ctx, class, []byte("a"), nil, map[string]wallettags.TagValue{
		"t": wallettags.PlainTagValue("1"),
	}))
	require.NoError(t, store.Add(ctx, class, []byte("b"), nil, map[string]wallettags.TagValue{
		"t": wallettags.PlainTagValue("2"),
	}))

	all, err := store.GetAll(ctx, class)
	require.NoError(t, err)
	count := 0
	for all.Next() {
		count++
	}
	require.NoError(t, all.Err())
	require.Equal(t, 2, count)
	require.NoError(t, all.Close())

	query := walletquery.NewLeaf(walletquery.Eq, wallettags.PlainTagName("t"), walletquery.UnencryptedValue("1"))
	rows, total, err := store.Search(ctx, class, query, walletstore.SearchOptions{FetchOptions: walletstore.FetchOptions{}, RetrieveRecords: true, RetrieveTotalCount: true})
	require.NoError(t, err)
	require.Equal(t, 1, total)

	matched := 0
	for rows.Next() {
		matched++
	}
	require.NoError(t, rows.Err())
	require.Equal(t, 1, matched)
}

func TestSearchCountOnlyOmitsRows(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	class := []byte("c")

	require.NoError(t, store.Add(ctx, class, []byte("a"), nil, map[string]wallettags.TagValue{
		"t": wallettags.PlainTagValue("1"),
	}))

	query := walletquery.NewLeaf(walletquery.Eq, wallettags.PlainTagName("t"), walletquery.UnencryptedValue("1"))
	rows, total, err := store.Search(ctx, class, query, walletstore.SearchOptions{
		RetrieveRecords:    false,
		RetrieveTotalCount: true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Nil(t, rows)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	class := []byte("c")
	require.NoError(t, store.Add(ctx, class, []byte("a"), nil, nil))

	require.NoError(t, store.Clear(ctx))

	_, err := store.Get(ctx, class, []byte("a"), walletstore.DefaultFetchOptions())
	require.True(t, errors.Is(err, werrors.ErrNotFound))
}
