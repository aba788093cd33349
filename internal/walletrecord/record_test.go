package walletrecord

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keichiri/go-wallet/internal/walletcrypto"
	"github.com/keichiri/go-wallet/internal/walletkeys"
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

func strp(s string) *string { return &s }

func TestRecordRoundTrip(t *testing.T) {
	keys := freshKeys(t)
	rec := WalletRecord{
		Name:  "test_name",
		Class: strp("test_type"),
		Value: strp("test_value"),
		Tags: map[string]string{
			"tag_name_1":  "tag_value_1",
			"~tag_name_2": "tag_value_2",
		},
	}

	entity, err := EncryptRecord(rec, keys)
	require.NoError(t, err)

	decrypted, err := DecryptRecord(entity, keys)
	require.NoError(t, err)

	require.Equal(t, rec.Name, decrypted.Name)
	require.Equal(t, *rec.Class, *decrypted.Class)
	require.Equal(t, *rec.Value, *decrypted.Value)
	require.Equal(t, rec.Tags, decrypted.Tags)
}

func TestRecordRoundTripNoClassNoValue(t *testing.T) {
	keys := freshKeys(t)
	rec := WalletRecord{Name: "bare"}

	entity, err := EncryptRecord(rec, keys)
	require.NoError(t, err)
	require.Nil(t, entity.Class)
	require.Nil(t, entity.Value)

	decrypted, err := DecryptRecord(entity, keys)
	require.NoError(t, err)
	require.Equal(t, "bare", decrypted.Name)
	require.Nil(t, decrypted.Class)
	require.Nil(t, decrypted.Value)
}

func TestValueEnvelopeFreshness(t *testing.T) {
	keys := freshKeys(t)
	rec := WalletRecord{Name: "n", Value: strp("secret")}

	first, err := EncryptRecord(rec, keys)
	require.NoError(t, err)
	second, err := EncryptRecord(rec, keys)
	require.NoError(t, err)

	require.NotEqual(t, first.Value.Data, second.Value.Data)
	require.NotEqual(t, first.Value.WrappedKey, second.Value.WrappedKey)
}

func TestDecryptRecordTamperDetection(t *testing.T) {
	keys := freshKeys(t)
	rec := WalletRecord{Name: "n", Value: strp("secret")}

	entity, err := EncryptRecord(rec, keys)
	require.NoError(t, err)

	entity.Value.Data[len(entity.Value.Data)-1] ^= 0xFF

	_, err = DecryptRecord(entity, keys)
	require.Error(t, err)
}

func TestDecryptRecordWrongKeyRejected(t *testing.T) {
	keys := freshKeys(t)
	other := freshKeys(t)
	rec := WalletRecord{Name: "n", Value: strp("secret")}

	entity, err := EncryptRecord(rec, keys)
	require.NoError(t, err)

	_, err = DecryptRecord(entity, other)
	require.Error(t, err)
}

func TestDecryptRecordBadValueKeySize(t *testing.T) {
	keys := freshKeys(t)
	rec := WalletRecord{Name: "n", Value: strp("secret")}

	entity, err := EncryptRecord(rec, keys)
	require.NoError(t, err)

	badKey, err := walletcrypto.EncryptRandom([]byte("short"), keys.ValueKey)
	require.NoError(t, err)
	entity.Value.WrappedKey = badKey

	_, err = DecryptRecord(entity, keys)
	require.Error(t, err)
}
