package wallet

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/keichiri/go-wallet/conf"
	"github.com/keichiri/go-wallet/internal/walletkeys"
	"github.com/keichiri/go-wallet/internal/walletstore/sqlitestore"
	"github.com/keichiri/go-wallet/log"
	werrors "github.com/keichiri/go-wallet/pkg/errors"
)

const (
	descriptorFileName = "wallet.json"
	configFileName     = "config.json"
	keysFileName       = "keys.blob"

	filePerm = 0o600
	dirPerm  = 0o700
)

// CreateWallet lays out a new wallet directory: a descriptor, a key
// bundle wrapped under creds.MasterKey, and the default sqlite backend's
// config. Returns AlreadyExists if dir already holds a descriptor.
func CreateWallet(dir string, descriptor conf.WalletDescriptor, creds conf.Credentials) error {
	if err := descriptor.Validate(); err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(dir, descriptorFileName)); err == nil {
		return werrors.AlreadyExistsError("wallet already exists at " + dir)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return werrors.StorageError(err)
	}

	masterKey, err := decodeMasterKey(creds.MasterKey)
	if err != nil {
		return err
	}

	_, blob, err := walletkeys.GenerateKeys(masterKey)
	if err != nil {
		return err
	}

	storageCfg, err := resolveStorageConfig(dir, creds.StorageCredentials)
	if err != nil {
		return err
	}

	if err := writeJSONFile(filepath.Join(dir, descriptorFileName), descriptor); err != nil {
		return err
	}
	if err := writeJSONFile(filepath.Join(dir, configFileName), storageCfg); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, keysFileName), blob, filePerm); err != nil {
		return werrors.StorageError(err)
	}

	log.Info("wallet created", "dir", dir, "name", descriptor.Name)
	return nil
}

// OpenWallet reads a wallet directory laid out by CreateWallet, unwraps
// its key bundle with creds.MasterKey, and opens its storage backend.
func OpenWallet(dir string, creds conf.Credentials) (*Wallet, error) {
	var descriptor conf.WalletDescriptor
	if err := readJSONFile(filepath.Join(dir, descriptorFileName), &descriptor); err != nil {
		return nil, err
	}

	var storageCfg conf.StorageConfig
	if err := readJSONFile(filepath.Join(dir, configFileName), &storageCfg); err != nil {
		return nil, err
	}

	blob, err := os.ReadFile(filepath.Join(dir, keysFileName))
	if err != nil {
		return nil, werrors.StorageError(err)
	}

	masterKey, err := decodeMasterKey(creds.MasterKey)
	if err != nil {
		return nil, err
	}

	keys, err := walletkeys.DecryptKeys(blob, masterKey)
	if err != nil {
		return nil, err
	}

	store, err := sqlitestore.Open(storageCfg)
	if err != nil {
		return nil, err
	}

	log.Info("wallet opened", "dir", dir, "name", descriptor.Name)
	return New(descriptor.Name, descriptor.PoolName, store, keys), nil
}

func decodeMasterKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, werrors.InputError("master_key is not valid base64")
	}
	if len(key) != 32 {
		return nil, werrors.InputError("master_key must decode to 32 bytes")
	}
	return key, nil
}

// resolveStorageConfig derives a StorageConfig from the caller-supplied
// storage_credentials payload when present, otherwise defaults to a
// sqlite database file inside dir.
func resolveStorageConfig(dir string, raw json.RawMessage) (conf.StorageConfig, error) {
	if len(raw) == 0 {
		return conf.DefaultStorageConfig(filepath.Join(dir, "wallet.db")), nil
	}
	return conf.ParseStorageConfig(raw)
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return werrors.InputError("failed to marshal " + filepath.Base(path) + ": " + err.Error())
	}
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return werrors.StorageError(err)
	}
	return nil
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return werrors.StorageError(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return werrors.InputError("failed to parse " + filepath.Base(path) + ": " + err.Error())
	}
	return nil
}
