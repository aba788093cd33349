// Package walletiter implements the decrypt-on-read iterator that wraps
// a backend row stream and yields decrypted records, in the idiomatic
// Go database/sql Rows shape (Next/Err/Close) rather than an
// Option-returning iterator.
package walletiter

import (
	"github.com/keichiri/go-wallet/internal/walletkeys"
	"github.com/keichiri/go-wallet/internal/walletrecord"
)

// RawSource is the backend-side stream of raw storage rows this
// iterator decrypts on demand. Implementations are single-use,
// forward-only, and own whatever backend resources they hold.
type RawSource interface {
	// Next advances to the next row and reports whether one was
	// available. It returns false at end of stream or on a prior
	// error; callers must then check Err.
	Next() bool

	// Entity returns the row most recently advanced to by Next.
	// Its result is unspecified before the first Next call or after
	// Next returns false.
	Entity() (*walletrecord.StorageEntity, error)

	// Err returns the first error encountered by Next, if any.
	Err() error

	// Close releases backend resources. Safe to call more than once.
	Close() error
}

// DecryptingIterator decrypts each row pulled from a RawSource, failing
// fast and terminating on the first decryption error. It does not close
// the wallet or its storage handle; only Close releases the underlying
// RawSource.
type DecryptingIterator struct {
	src  RawSource
	keys *walletkeys.Keys

	current *walletrecord.WalletRecord
	err     error
	done    bool
}

// NewDecryptingIterator wraps src, decrypting each yielded row with keys.
func NewDecryptingIterator(src RawSource, keys *walletkeys.Keys) *DecryptingIterator {
	return &DecryptingIterator{src: src, keys: keys}
}

// Next advances the iterator and reports whether a record is available.
// It returns false at end of stream or after the first error; callers
// must check Err to distinguish the two.
func (it *DecryptingIterator) Next() bool {
	if it.src == nil || it.done || it.err != nil {
		return false
	}

	if !it.src.Next() {
		it.done = true
		if err := it.src.Err(); err != nil {
			it.err = err
		}
		return false
	}

	entity, err := it.src.Entity()
	if err != nil {
		it.err = err
		it.done = true
		return false
	}

	rec, err := walletrecord.DecryptRecord(entity, it.keys)
	if err != nil {
		it.err = err
		it.done = true
		return false
	}

	it.current = rec
	return true
}

// Record returns the record most recently advanced to by Next. Its
// result is unspecified before the first Next call or after Next
// returns false.
func (it *DecryptingIterator) Record() *walletrecord.WalletRecord {
	return it.current
}

// Err returns the first error encountered while pulling from the
// backend or decrypting a row, if any.
func (it *DecryptingIterator) Err() error {
	return it.err
}

// Close releases the underlying backend resources. Safe to call on an
// iterator with no backing source (Search with RetrieveRecords false).
func (it *DecryptingIterator) Close() error {
	if it.src == nil {
		return nil
	}
	return it.src.Close()
}
