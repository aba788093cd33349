package wallet

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keichiri/go-wallet/conf"
	"github.com/keichiri/go-wallet/internal/walletkeys"
	"github.com/keichiri/go-wallet/internal/walletquery"
	"github.com/keichiri/go-wallet/internal/walletstore"
	"github.com/keichiri/go-wallet/internal/walletstore/sqlitestore"
	"github.com/keichiri/go-wallet/internal/wallettags"
	werrors "github.com/keichiri/go-wallet/pkg/errors"
)

func openTestWallet(t *testing.T) *Wallet {
	t.Helper()
	masterKey := make([]byte, 32)
	for i := range masterKey {
		masterKey[i] = byte(i)
	}
	keys, _, err := keysFor(masterKey)
	require.NoError(t, err)

	store, err := sqlitestoreOpen(t)
	require.NoError(t, err)

	w := New("test-wallet", "test-pool", store, keys)
	t.Cleanup(func() { w.Close() })
	return w
}

func sqlitestoreOpen(t *testing.T) (walletstore.Store, error) {
	t.Helper()
	cfg := conf.DefaultStorageConfig(filepath.Join(t.TempDir(), "wallet.db"))
	return sqlitestore.Open(cfg)
}

func keysFor(masterKey []byte) (*walletkeys.Keys, []byte, error) {
	return walletkeys.GenerateKeys(masterKey)
}

func TestWalletAddGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	w := openTestWallet(t)

	class := "credential"
	value := "s3cr3t"
	require.NoError(t, w.Add(ctx, &class, "record1", &value, map[string]string{
		"issuer":  "acme",
		"~status": "active",
	}))

	rec, err := w.Get(ctx, &class, "record1", walletstore.FetchOptions{RetrieveType: true, RetrieveValue: true, RetrieveTags: true})
	require.NoError(t, err)
	require.Equal(t, "record1", rec.Name)
	require.Equal(t, class, *rec.Class)
	require.Equal(t, value, *rec.Value)
	require.Equal(t, "acme", rec.Tags["issuer"])
	require.Equal(t, "active", rec.Tags["~status"])
}

func TestWalletGetMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	w := openTestWallet(t)
	class := "credential"

	_, err := w.Get(ctx, &class, "nope", walletstore.DefaultFetchOptions())
	require.True(t, errors.Is(err, werrors.ErrNotFound))
}

func TestWalletUpdateReplacesValue(t *testing.T) {
	ctx := context.Background()
	w := openTestWallet(t)
	class := "credential"

	first := "one"
	require.NoError(t, w.Add(ctx, &class, "r1", &first, nil))
	require.NoError(t, w.Update(ctx, &class, "r1", "two"))

	rec, err := w.Get(ctx, &class, "r1", walletstore.DefaultFetchOptions())
	require.NoError(t, err)
	require.Equal(t, "two", *rec.Value)
}

func TestWalletTagLifecycle(t *testing.T) {
	ctx := context.Background()
	w := openTestWallet(t)
	class := "credential"

	require.NoError(t, w.Add(ctx, &class, "r1", nil, map[string]string{"a": "1"}))
	require.NoError(t, w.AddTags(ctx, &class, "r1", map[string]string{"b": "2"}))

	rec, err := w.Get(ctx, &class, "r1", walletstore.FetchOptions{RetrieveTags: true})
	require.NoError(t, err)
	require.Len(t, rec.Tags, 2)

	require.NoError(t, w.UpdateTags(ctx, &class, "r1", map[string]string{"a": "1-updated"}))
	rec, err = w.Get(ctx, &class, "r1", walletstore.FetchOptions{RetrieveTags: true})
	require.NoError(t, err)
	require.Equal(t, "1-updated", rec.Tags["a"])
	require.Len(t, rec.Tags, 2)

	require.NoError(t, w.DeleteTags(ctx, &class, "r1", []string{"b"}))
	rec, err = w.Get(ctx, &class, "r1", walletstore.FetchOptions{RetrieveTags: true})
	require.NoError(t, err)
	require.Len(t, rec.Tags, 1)
}

func TestWalletDelete(t *testing.T) {
	ctx := context.Background()
	w := openTestWallet(t)
	class := "credential"

	require.NoError(t, w.Add(ctx, &class, "r1", nil, nil))
	require.NoError(t, w.Delete(ctx, &class, "r1"))

	_, err := w.Get(ctx, &class, "r1", walletstore.DefaultFetchOptions())
	require.True(t, errors.Is(err, werrors.ErrNotFound))
}

func TestWalletSearchByPlainTag(t *testing.T) {
	ctx := context.Background()
	w := openTestWallet(t)
	class := "credential"

	require.NoError(t, w.Add(ctx, &class, "r1", nil, map[string]string{"~age": "18"}))
	require.NoError(t, w.Add(ctx, &class, "r2", nil, map[string]string{"~age": "30"}))

	query := walletquery.NewLeaf(walletquery.Gt, wallettags.PlainTagName("~age"), walletquery.UnencryptedValue("20"))
	it, total, err := w.Search(ctx, class, query, walletstore.SearchOptions{
		FetchOptions:       walletstore.FetchOptions{RetrieveTags: true},
		RetrieveRecords:    true,
		RetrieveTotalCount: true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)

	require.True(t, it.Next())
	require.Equal(t, "r2", it.Record().Name)
	require.False(t, it.Next())
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
}

func TestWalletGetAll(t *testing.T) {
	ctx := context.Background()
	w := openTestWallet(t)
	class := "credential"

	require.NoError(t, w.Add(ctx, &class, "r1", nil, nil))
	require.NoError(t, w.Add(ctx, &class, "r2", nil, nil))

	it, err := w.GetAll(ctx, class)
	require.NoError(t, err)
	count := 0
	for it.Next() {
		count++
	}
	require.NoError(t, it.Err())
	require.Equal(t, 2, count)
	require.NoError(t, it.Close())
}

func TestWalletClear(t *testing.T) {
	ctx := context.Background()
	w := openTestWallet(t)
	class := "credential"

	require.NoError(t, w.Add(ctx, &class, "r1", nil, nil))
	require.NoError(t, w.Clear(ctx))

	_, err := w.Get(ctx, &class, "r1", walletstore.DefaultFetchOptions())
	require.True(t, errors.Is(err, werrors.ErrNotFound))
}

func TestWalletSearchCountOnlyReturnsUsableIterator(t *testing.T) {
	ctx := context.Background()
	w := openTestWallet(t)
	class := "credential"

	require.NoError(t, w.Add(ctx, &class, "r1", nil, map[string]string{"~age": "18"}))
	require.NoError(t, w.Add(ctx, &class, "r2", nil, map[string]string{"~age": "30"}))

	query := walletquery.NewLeaf(walletquery.Gt, wallettags.PlainTagName("~age"), walletquery.UnencryptedValue("10"))
	it, total, err := w.Search(ctx, class, query, walletstore.SearchOptions{
		RetrieveRecords:    false,
		RetrieveTotalCount: true,
	})
	require.NoError(t, err)
	require.Equal(t, 2, total)

	require.False(t, it.Next())
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
}

func TestWalletSearchRejectsRangeOnEncryptedTag(t *testing.T) {
	ctx := context.Background()
	w := openTestWallet(t)
	class := "credential"

	query := walletquery.NewLeaf(walletquery.Gt, wallettags.EncryptedTagName("issuer"), walletquery.UnencryptedValue("a"))
	_, _, err := w.Search(ctx, class, query, walletstore.DefaultSearchOptions())
	require.True(t, errors.Is(err, werrors.ErrInput))
}
