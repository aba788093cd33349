// Package walletstore defines the abstract storage port the wallet core
// depends on. The port performs no cryptography: it stores and queries
// rows of already-encrypted bytes. A single default implementation
// backed by database/sql lives in the sqlitestore subpackage; any other
// conforming implementation is acceptable.
package walletstore

import (
	"context"

	"github.com/keichiri/go-wallet/internal/walletiter"
	"github.com/keichiri/go-wallet/internal/walletquery"
	"github.com/keichiri/go-wallet/internal/walletrecord"
	"github.com/keichiri/go-wallet/internal/wallettags"
)

// FetchOptions controls which fields a single-record fetch populates.
type FetchOptions struct {
	RetrieveType  bool // populate Class
	RetrieveValue bool // decrypt and populate Value
	RetrieveTags  bool // decrypt and populate Tags
}

// DefaultFetchOptions mirrors the wallet's documented external defaults:
// class withheld, value retrieved, tags withheld.
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{RetrieveType: false, RetrieveValue: true, RetrieveTags: false}
}

// SearchOptions extends FetchOptions for iteration.
type SearchOptions struct {
	FetchOptions
	RetrieveRecords    bool // false returns only TotalCount
	RetrieveTotalCount bool
}

// DefaultSearchOptions mirrors the wallet's documented external defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		FetchOptions:       DefaultFetchOptions(),
		RetrieveRecords:    true,
		RetrieveTotalCount: false,
	}
}

// Rows is the backend's raw row stream, consumed by walletiter's
// decrypting iterator. Implementations are single-use and forward-only.
type Rows = walletiter.RawSource

// Reader is the read half of the storage port.
type Reader interface {
	// Get fetches the single row matching (class, name), populating
	// fields per opts. Returns NotFoundError if no such row exists.
	Get(ctx context.Context, class, name []byte, opts FetchOptions) (*walletrecord.StorageEntity, error)

	// Search streams rows in class matching the rewritten predicate
	// tree. A nil query matches every row in class. The backend must
	// support conjunction, disjunction, negation, ciphertext
	// equality, and order/regex/like on plain tag values; it may not
	// and need not decrypt anything. totalCount is populated only
	// when opts.RetrieveTotalCount is set.
	Search(ctx context.Context, class []byte, query *walletquery.Operator, opts SearchOptions) (rows Rows, totalCount int, err error)

	// GetAll streams every row in class.
	GetAll(ctx context.Context, class []byte) (Rows, error)
}

// Writer is the write half of the storage port.
type Writer interface {
	// Add inserts one row. Returns AlreadyExistsError if (class, name)
	// is already present.
	Add(ctx context.Context, class, name []byte, value *walletrecord.StorageValue, tags map[string]wallettags.TagValue) error

	// Update replaces only the value envelope of an existing row.
	// Returns NotFoundError if no such row exists.
	Update(ctx context.Context, class, name []byte, value *walletrecord.StorageValue) error

	// AddTags merges the given tags into the row's tag set, overwriting
	// any existing entries with the same ciphertext key.
	AddTags(ctx context.Context, class, name []byte, tags map[string]wallettags.TagValue) error

	// UpdateTags replaces the values of tags whose ciphertext key
	// matches an entry, leaving all other tags on the row untouched.
	UpdateTags(ctx context.Context, class, name []byte, tags map[string]wallettags.TagValue) error

	// DeleteTags removes tags by ciphertext key.
	DeleteTags(ctx context.Context, class, name []byte, tagKeys [][]byte) error

	// Delete removes the row matching (class, name).
	Delete(ctx context.Context, class, name []byte) error

	// Clear removes every row in the wallet.
	Clear(ctx context.Context) error
}

// Store composes Reader and Writer with lifecycle management. It is the
// full contract the wallet façade depends on.
type Store interface {
	Reader
	Writer

	// Close releases backend resources. Safe to call more than once.
	Close() error
}
