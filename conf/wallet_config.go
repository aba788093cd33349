package conf

import (
	"encoding/json"

	werrors "github.com/keichiri/go-wallet/pkg/errors"
)

// Credentials is the JSON input accepted by wallet open/create. MasterKey
// is the base64 encoding of a 32-byte key used to unwrap the wallet's Keys
// blob; StorageCredentials is opaque and interpreted by the storage
// backend named in the wallet's descriptor.
type Credentials struct {
	MasterKey          string          `json:"master_key"`
	StorageCredentials json.RawMessage `json:"storage_credentials,omitempty"`
}

// ParseCredentials decodes and validates raw JSON credentials input.
func ParseCredentials(raw []byte) (Credentials, error) {
	var c Credentials
	if err := json.Unmarshal(raw, &c); err != nil {
		return Credentials{}, werrors.InputError("malformed credentials JSON: " + err.Error())
	}
	if len(c.MasterKey) == 0 {
		return Credentials{}, werrors.InputError("missing master_key")
	}
	return c, nil
}

// WalletDescriptor is the persisted, per-wallet identity record stored as
// wallet.json alongside the wallet's data files.
type WalletDescriptor struct {
	PoolName string `json:"pool_name"`
	XType    string `json:"xtype"`
	Name     string `json:"name"`
}

// ExportedDescriptor is the shape a WalletDescriptor takes when surfaced
// to callers, renaming xtype/pool_name to their public names.
type ExportedDescriptor struct {
	Name               string `json:"name"`
	Type               string `json:"type"`
	AssociatedPoolName string `json:"associated_pool_name"`
}

// Export converts a WalletDescriptor to its caller-facing shape.
func (d WalletDescriptor) Export() ExportedDescriptor {
	return ExportedDescriptor{
		Name:               d.Name,
		Type:               d.XType,
		AssociatedPoolName: d.PoolName,
	}
}

// Validate rejects a descriptor missing any required field.
func (d WalletDescriptor) Validate() error {
	if d.Name == "" {
		return werrors.InputError("wallet descriptor missing name")
	}
	if d.XType == "" {
		return werrors.InputError("wallet descriptor missing xtype")
	}
	if d.PoolName == "" {
		return werrors.InputError("wallet descriptor missing pool_name")
	}
	return nil
}

// StorageConfig is the default sqlite backend's storage_credentials
// payload: the on-disk database path plus the pragmas that govern
// concurrent access.
type StorageConfig struct {
	// Path is the sqlite database file path. Required.
	Path string `json:"path"`

	// BusyTimeoutMS bounds how long a writer waits on a locked
	// database before giving up, in milliseconds. 0 means 5000 when
	// JournalMode is set; when both are unset the driver defaults
	// apply.
	BusyTimeoutMS int `json:"busy_timeout_ms"`

	// JournalMode sets sqlite's journal_mode pragma, e.g. "WAL" or
	// "DELETE". Empty means "WAL" when BusyTimeoutMS is set; when both
	// are unset the driver defaults apply.
	JournalMode string `json:"journal_mode"`
}

// DefaultStorageConfig returns sane defaults for a new sqlite-backed wallet.
func DefaultStorageConfig(path string) StorageConfig {
	return StorageConfig{
		Path:          path,
		BusyTimeoutMS: 5000,
		JournalMode:   "WAL",
	}
}

// ParseStorageConfig decodes the backend-defined storage_credentials
// payload of a Credentials value into a StorageConfig.
func ParseStorageConfig(raw json.RawMessage) (StorageConfig, error) {
	if len(raw) == 0 {
		return StorageConfig{}, werrors.InputError("missing storage_credentials")
	}
	var sc StorageConfig
	if err := json.Unmarshal(raw, &sc); err != nil {
		return StorageConfig{}, werrors.InputError("malformed storage_credentials: " + err.Error())
	}
	if sc.Path == "" {
		return StorageConfig{}, werrors.InputError("storage_credentials missing path")
	}
	return sc, nil
}
