package security

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeychainService is the service name used for storing passwords in the keychain
const KeychainService = "chatter"

// Keychain provides secure password storage using the OS keychain
type Keychain struct{}

// NewKeychain creates a new keychain instance
func NewKeychain() *Keychain {
	return &Keychain{}
}

// StorePassword stores a password for a network, keyed by its URL.
func (k *Keychain) StorePassword(network string, password string) error {
	if password == "" {
		return k.DeletePassword(network)
	}
	if err := keyring.Set(KeychainService, network, password); err != nil {
		return fmt.Errorf("failed to store password in keychain: %w", err)
	}
	return nil
}

// GetPassword retrieves a network's password. A missing entry is not an
// error; it returns the empty string.
func (k *Keychain) GetPassword(network string) (string, error) {
	password, err := keyring.Get(KeychainService, network)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to get password from keychain: %w", err)
	}
	return password, nil
}

// DeletePassword removes a network's password from the keychain.
func (k *Keychain) DeletePassword(network string) error {
	if err := keyring.Delete(KeychainService, network); err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("failed to delete password from keychain: %w", err)
	}
	return nil
}
