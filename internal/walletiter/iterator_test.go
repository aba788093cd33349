package walletiter

import (
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keichiri/go-wallet/internal/walletcrypto"
	"github.com/keichiri/go-wallet/internal/walletkeys"
	"github.com/keichiri/go-wallet/internal/walletrecord"
)

func freshKeys(t *testing.T) *walletkeys.Keys {
	t.Helper()
	mk := make([]byte, walletcrypto.KeySize)
	_, err := rand.Read(mk)
	require.NoError(t, err)
	keys, _, err := walletkeys.GenerateKeys(mk)
	require.NoError(t, err)
	return keys
}

type fakeSource struct {
	entities []*walletrecord.StorageEntity
	pos      int
	failAt   int // -1 disables
	closed   bool
	err      error
}

func (f *fakeSource) Next() bool {
	if f.failAt >= 0 && f.pos == f.failAt {
		return false
	}
	if f.pos >= len(f.entities) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeSource) Entity() (*walletrecord.StorageEntity, error) {
	return f.entities[f.pos-1], nil
}

func (f *fakeSource) Err() error {
	if f.failAt >= 0 && f.pos == f.failAt {
		return errors.New("backend failure")
	}
	return f.err
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func strp(s string) *string { return &s }

func TestIteratorYieldsDecryptedRecords(t *testing.T) {
	keys := freshKeys(t)

	e1, err := walletrecord.EncryptRecord(walletrecord.WalletRecord{Name: "one"}, keys)
	require.NoError(t, err)
	e2, err := walletrecord.EncryptRecord(walletrecord.WalletRecord{Name: "two"}, keys)
	require.NoError(t, err)

	src := &fakeSource{entities: []*walletrecord.StorageEntity{e1, e2}, failAt: -1}
	it := NewDecryptingIterator(src, keys)

	var names []string
	for it.Next() {
		names = append(names, it.Record().Name)
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"one", "two"}, names)

	require.NoError(t, it.Close())
	require.True(t, src.closed)
}

func TestIteratorBackendError(t *testing.T) {
	keys := freshKeys(t)
	e1, err := walletrecord.EncryptRecord(walletrecord.WalletRecord{Name: "one"}, keys)
	require.NoError(t, err)

	src := &fakeSource{entities: []*walletrecord.StorageEntity{e1}, failAt: 1}
	it := NewDecryptingIterator(src, keys)

	require.True(t, it.Next())
	require.Equal(t, "one", it.Record().Name)
	require.False(t, it.Next())
	require.Error(t, it.Err())
}

func TestIteratorDecryptionFailureTerminates(t *testing.T) {
	keys := freshKeys(t)
	other := freshKeys(t)

	e1, err := walletrecord.EncryptRecord(walletrecord.WalletRecord{Name: "one", Value: strp("v")}, keys)
	require.NoError(t, err)
	e2, err := walletrecord.EncryptRecord(walletrecord.WalletRecord{Name: "two"}, keys)
	require.NoError(t, err)

	src := &fakeSource{entities: []*walletrecord.StorageEntity{e1, e2}, failAt: -1}
	it := NewDecryptingIterator(src, other)

	require.False(t, it.Next())
	require.Error(t, it.Err())
}

func TestIteratorEmptySource(t *testing.T) {
	keys := freshKeys(t)
	src := &fakeSource{entities: nil, failAt: -1}
	it := NewDecryptingIterator(src, keys)

	require.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestIteratorNilSourceIsUsableNoOp(t *testing.T) {
	keys := freshKeys(t)
	it := NewDecryptingIterator(nil, keys)

	require.False(t, it.Next())
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
}
