// Package walletregistry tracks wallets currently open in this process.
// It is an explicit handle-allocator structure (monotonically increasing
// id, map from id to owned wallet, single mutex) rather than a hidden
// package-level singleton, so multiple registries can coexist and none
// of its state is implicit.
package walletregistry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/keichiri/go-wallet/log"
	werrors "github.com/keichiri/go-wallet/pkg/errors"
)

// Handle identifies an open wallet within a Registry.
type Handle uint64

// Registry allocates Handles for open wallets and rejects opening the
// same wallet name twice in this process.
type Registry[W any] struct {
	mu      sync.Mutex
	nextID  Handle
	wallets map[Handle]W
	byName  map[string]Handle
	ids     map[Handle]string
	ident   string
}

// NewRegistry constructs an empty registry. ident tags log lines emitted
// against this registry instance, useful when a process runs more than one.
func NewRegistry[W any]() *Registry[W] {
	return &Registry[W]{
		wallets: make(map[Handle]W),
		byName:  make(map[string]Handle),
		ids:     make(map[Handle]string),
		ident:   uuid.NewString(),
	}
}

// Open allocates a new Handle for name, storing wallet under it.
// Returns AlreadyOpenedError if name is already open in this registry.
func (r *Registry[W]) Open(name string, wallet W) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return 0, werrors.AlreadyOpenedError(name)
	}

	r.nextID++
	id := r.nextID
	r.wallets[id] = wallet
	r.byName[name] = id
	r.ids[id] = name
	log.Info("wallet opened", "registry", r.ident, "handle", id, "name", name, "correlation_id", uuid.NewString())
	return id, nil
}

// Get returns the wallet for handle. Returns InvalidHandleError if
// handle is unknown.
func (r *Registry[W]) Get(handle Handle) (W, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.wallets[handle]
	if !ok {
		var zero W
		return zero, werrors.InvalidHandleError("unknown wallet handle")
	}
	return w, nil
}

// Close removes handle from the registry, returning the wallet it held
// so the caller can release its resources. Returns InvalidHandleError if
// handle is unknown.
func (r *Registry[W]) Close(handle Handle) (W, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.wallets[handle]
	if !ok {
		var zero W
		return zero, werrors.InvalidHandleError("unknown wallet handle")
	}

	delete(r.wallets, handle)
	if name, ok := r.ids[handle]; ok {
		delete(r.byName, name)
		delete(r.ids, handle)
		log.Info("wallet closed", "registry", r.ident, "handle", handle, "name", name)
	}
	return w, nil
}

// Len reports how many wallets are currently open.
func (r *Registry[W]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.wallets)
}
