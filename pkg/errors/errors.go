// Package errors defines the error taxonomy surfaced at the wallet
// boundary. It gives every layer of the wallet — crypto, tags, record
// envelope, query rewriter, storage port, façade — a single place to
// report failures from, so callers can match on error kind with
// errors.Is instead of parsing messages.
package errors

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// =====================
// Sentinel kinds
// =====================

var (
	// ErrInput marks malformed credentials, malformed JSON, or illegal
	// option combinations.
	ErrInput = errors.New("input error")

	// ErrNotFound marks a missing record for the requested class/name.
	ErrNotFound = errors.New("item not found")

	// ErrAlreadyExists marks a duplicate record or duplicate wallet name.
	ErrAlreadyExists = errors.New("item already exists")

	// ErrInvalidHandle marks an unknown or closed wallet handle.
	ErrInvalidHandle = errors.New("invalid wallet handle")

	// ErrUnknownType marks a requested backend type that isn't registered.
	ErrUnknownType = errors.New("unknown storage type")

	// ErrEncryption marks an AEAD authentication failure, malformed
	// ciphertext length, non-UTF-8 plaintext where a string was expected,
	// or a per-record key of the wrong size. Never distinguishes auth
	// failure from corruption in its message, by design.
	ErrEncryption = errors.New("encryption error")

	// ErrStorage wraps a backend I/O failure verbatim.
	ErrStorage = errors.New("storage error")

	// ErrAlreadyOpened marks an attempt to open a wallet that is already
	// open in this process.
	ErrAlreadyOpened = errors.New("wallet already opened")
)

// InputError wraps msg as an ErrInput.
func InputError(msg string) error { return fmt.Errorf("%s: %w", msg, ErrInput) }

// NotFoundError wraps msg as an ErrNotFound.
func NotFoundError(msg string) error { return fmt.Errorf("%s: %w", msg, ErrNotFound) }

// AlreadyExistsError wraps msg as an ErrAlreadyExists.
func AlreadyExistsError(msg string) error { return fmt.Errorf("%s: %w", msg, ErrAlreadyExists) }

// InvalidHandleError wraps msg as an ErrInvalidHandle.
func InvalidHandleError(msg string) error { return fmt.Errorf("%s: %w", msg, ErrInvalidHandle) }

// UnknownTypeError wraps msg as an ErrUnknownType.
func UnknownTypeError(msg string) error { return fmt.Errorf("%s: %w", msg, ErrUnknownType) }

// EncryptionError wraps msg as an ErrEncryption.
func EncryptionError(msg string) error { return fmt.Errorf("%s: %w", msg, ErrEncryption) }

// StorageError wraps cause as an ErrStorage, attaching a stack trace at
// the call site so a backend I/O failure can be traced back to the
// storage call that produced it.
func StorageError(cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStorage, pkgerrors.WithStack(cause))
}

// AlreadyOpenedError wraps msg as an ErrAlreadyOpened.
func AlreadyOpenedError(msg string) error { return fmt.Errorf("%s: %w", msg, ErrAlreadyOpened) }

// =====================
// Helper Functions
// =====================

// Wrap wraps an error with additional context and a stack trace captured
// at the call site. The result still satisfies errors.Is/As against any
// sentinel in err's chain.
func Wrap(err error, message string) error {
	return pkgerrors.Wrap(err, message)
}

// Wrapf wraps an error with a formatted message and a stack trace
// captured at the call site.
func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(err, format, args...)
}

// Cause follows pkgerrors Cause() links from err to the innermost error
// they wrap. It stops at the first error that does not implement Cause,
// such as one built with fmt.Errorf's %w.
func Cause(err error) error {
	return pkgerrors.Cause(err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}

// Errorf formats according to a format specifier and returns the string as
// a value that satisfies error.
func Errorf(format string, a ...interface{}) error {
	return fmt.Errorf(format, a...)
}
