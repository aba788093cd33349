// Package wallet implements the wallet façade: the single object an
// application holds a handle to, tying the crypto, tag, record, query,
// and iterator packages to a concrete storage backend.
package wallet

import (
	"context"

	"github.com/keichiri/go-wallet/internal/walletcrypto"
	"github.com/keichiri/go-wallet/internal/walletiter"
	"github.com/keichiri/go-wallet/internal/walletkeys"
	"github.com/keichiri/go-wallet/internal/walletquery"
	"github.com/keichiri/go-wallet/internal/walletrecord"
	"github.com/keichiri/go-wallet/internal/walletstore"
	"github.com/keichiri/go-wallet/internal/wallettags"
	werrors "github.com/keichiri/go-wallet/pkg/errors"
)

// Wallet is the open, in-memory handle to one encrypted record store. It
// holds an immutable Keys reference and an immutable storage reference;
// concurrent use across goroutines is safe to the extent the underlying
// Store permits it, per the crypto transforms being pure and re-entrant.
type Wallet struct {
	name     string
	poolName string
	store    walletstore.Store
	keys     *walletkeys.Keys
}

// New constructs a Wallet around an already-open Store and an
// already-unwrapped Keys bundle. Most callers should use CreateWallet or
// OpenWallet instead, which also manage the on-disk descriptor and keys
// blob.
func New(name, poolName string, store walletstore.Store, keys *walletkeys.Keys) *Wallet {
	return &Wallet{name: name, poolName: poolName, store: store, keys: keys}
}

// Name returns the wallet's name.
func (w *Wallet) Name() string { return w.name }

// PoolName returns the wallet's associated pool name.
func (w *Wallet) PoolName() string { return w.poolName }

// Add builds the record envelope and inserts it. Returns AlreadyExists if
// (class, name) is already present. class is required: the default
// storage backend indexes every row by (class, name).
func (w *Wallet) Add(ctx context.Context, class *string, name string, value *string, tags map[string]string) error {
	if class == nil {
		return werrors.InputError("class must not be nil")
	}
	entity, err := walletrecord.EncryptRecord(walletrecord.WalletRecord{
		Name: name, Class: class, Value: value, Tags: tags,
	}, w.keys)
	if err != nil {
		return err
	}
	return w.store.Add(ctx, entity.Class, entity.Name, entity.Value, entity.Tags)
}

// Get fetches and decrypts a single record. opts controls which fields
// are populated; class and tags are withheld by default (see
// walletstore.DefaultFetchOptions).
func (w *Wallet) Get(ctx context.Context, class *string, name string, opts walletstore.FetchOptions) (*walletrecord.WalletRecord, error) {
	encClass, encName, err := w.encryptAddress(class, name)
	if err != nil {
		return nil, err
	}

	entity, err := w.store.Get(ctx, encClass, encName, opts)
	if err != nil {
		return nil, err
	}
	return walletrecord.DecryptRecord(entity, w.keys)
}

// Update regenerates the per-record key and replaces the value envelope
// of an existing record. Returns NotFound if no such record exists.
func (w *Wallet) Update(ctx context.Context, class *string, name, value string) error {
	encClass, encName, err := w.encryptAddress(class, name)
	if err != nil {
		return err
	}

	entity, err := walletrecord.EncryptRecord(walletrecord.WalletRecord{Name: name, Value: &value}, w.keys)
	if err != nil {
		return err
	}
	return w.store.Update(ctx, encClass, encName, entity.Value)
}

// AddTags merges tags into the record's tag set, overwriting any
// existing entries with the same ciphertext key.
func (w *Wallet) AddTags(ctx context.Context, class *string, name string, tags map[string]string) error {
	encClass, encName, err := w.encryptAddress(class, name)
	if err != nil {
		return err
	}
	etags, err := wallettags.EncryptTags(tags, w.keys)
	if err != nil {
		return err
	}
	return w.store.AddTags(ctx, encClass, encName, etags)
}

// UpdateTags replaces the values of tags whose ciphertext key matches an
// entry, leaving all other tags on the record untouched.
func (w *Wallet) UpdateTags(ctx context.Context, class *string, name string, tags map[string]string) error {
	encClass, encName, err := w.encryptAddress(class, name)
	if err != nil {
		return err
	}
	etags, err := wallettags.EncryptTags(tags, w.keys)
	if err != nil {
		return err
	}
	return w.store.UpdateTags(ctx, encClass, encName, etags)
}

// DeleteTags removes tags by name.
func (w *Wallet) DeleteTags(ctx context.Context, class *string, name string, tagNames []string) error {
	encClass, encName, err := w.encryptAddress(class, name)
	if err != nil {
		return err
	}
	etagNames, err := wallettags.EncryptTagNames(tagNames, w.keys)
	if err != nil {
		return err
	}
	keys := make([][]byte, len(etagNames))
	for i, n := range etagNames {
		keys[i] = tagNameBytes(n)
	}
	return w.store.DeleteTags(ctx, encClass, encName, keys)
}

// Delete removes the record matching (class, name).
func (w *Wallet) Delete(ctx context.Context, class *string, name string) error {
	encClass, encName, err := w.encryptAddress(class, name)
	if err != nil {
		return err
	}
	return w.store.Delete(ctx, encClass, encName)
}

// Search rewrites query into ciphertext form and returns a decrypting
// iterator over the matching records, plus a total count when
// opts.RetrieveTotalCount is set.
func (w *Wallet) Search(ctx context.Context, class string, query *walletquery.Operator, opts walletstore.SearchOptions) (*walletiter.DecryptingIterator, int, error) {
	encClass, err := w.encryptClass(class)
	if err != nil {
		return nil, 0, err
	}

	rewritten, err := walletquery.Rewrite(query, w.keys)
	if err != nil {
		return nil, 0, err
	}

	rows, total, err := w.store.Search(ctx, encClass, rewritten, opts)
	if err != nil {
		return nil, 0, err
	}
	return walletiter.NewDecryptingIterator(rows, w.keys), total, nil
}

// GetAll returns a decrypting iterator over every record in class.
func (w *Wallet) GetAll(ctx context.Context, class string) (*walletiter.DecryptingIterator, error) {
	encClass, err := w.encryptClass(class)
	if err != nil {
		return nil, err
	}
	rows, err := w.store.GetAll(ctx, encClass)
	if err != nil {
		return nil, err
	}
	return walletiter.NewDecryptingIterator(rows, w.keys), nil
}

// Clear removes every record in the wallet.
func (w *Wallet) Clear(ctx context.Context) error {
	return w.store.Clear(ctx)
}

// Close releases the storage backend and zeroises the key bundle. Safe
// to call more than once.
func (w *Wallet) Close() error {
	w.keys.Close()
	return w.store.Close()
}

// encryptAddress searchably-encrypts the (class, name) pair used to
// address a record, without touching its value or tags. class is
// required: the default storage backend indexes every row by
// (class, name).
func (w *Wallet) encryptAddress(class *string, name string) (encClass, encName []byte, err error) {
	if class == nil {
		return nil, nil, werrors.InputError("class must not be nil")
	}
	encClass, err = w.encryptClass(*class)
	if err != nil {
		return nil, nil, err
	}
	encName, err = walletcrypto.EncryptSearchable([]byte(name), w.keys.NameKey, w.keys.ItemHMACKey)
	if err != nil {
		return nil, nil, err
	}
	return encClass, encName, nil
}

func (w *Wallet) encryptClass(class string) ([]byte, error) {
	if class == "" {
		return nil, werrors.InputError("class must not be empty")
	}
	return walletcrypto.EncryptSearchable([]byte(class), w.keys.ClassKey, w.keys.ItemHMACKey)
}

func tagNameBytes(n wallettags.TagName) []byte {
	switch v := n.(type) {
	case wallettags.EncryptedTagName:
		return []byte(v)
	case wallettags.PlainTagName:
		return []byte(v)
	default:
		return nil
	}
}
