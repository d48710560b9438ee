// Package auth stores TMDB credentials outside the repository: system
// keychain first, an encrypted file as fallback, environment variables as a
// read-only last resort.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrInvalidCredentials indicates missing or malformed credentials
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCredentialsNotFound indicates no stored credentials exist
	ErrCredentialsNotFound = errors.New("credentials not found")
)

// Credentials holds the TMDB API credentials. ReadToken is the v4 bearer
// token; APIKey is the legacy v3 key. Either is sufficient.
type Credentials struct {
	APIKey       string    `json:"api_key,omitempty"`
	ReadToken    string    `json:"read_token,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Valid reports whether at least one credential is present
func (c *Credentials) Valid() bool {
	return c != nil && (c.APIKey != "" || c.ReadToken != "")
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves the credentials
	Store(creds *Credentials) error

	// Retrieve gets the stored credentials
	Retrieve() (*Credentials, error)

	// Delete removes the stored credentials
	Delete() error

	// Exists checks if credentials are stored
	Exists() bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager with the available storage
// backends, most secure first
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	// Try keyring first (system keychain)
	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	// Always add encrypted file store as fallback
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	// Environment variables as read-only last resort
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves credentials using the first available store
func (m *Manager) Store(creds *Credentials) error {
	if !creds.Valid() {
		return ErrInvalidCredentials
	}

	creds.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(creds); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve returns credentials from the first store holding them
func (m *Manager) Retrieve() (*Credentials, error) {
	for _, store := range m.stores {
		creds, err := store.Retrieve()
		if err == nil && creds.Valid() {
			return creds, nil
		}
	}
	return nil, ErrCredentialsNotFound
}

// Delete removes credentials from every store that holds them
func (m *Manager) Delete() error {
	var lastErr error
	deleted := false
	for _, store := range m.stores {
		if !store.Exists() {
			continue
		}
		if err := store.Delete(); err != nil {
			lastErr = err
		} else {
			deleted = true
		}
	}
	if !deleted && lastErr != nil {
		return lastErr
	}
	return nil
}

// Exists reports whether any store holds credentials
func (m *Manager) Exists() bool {
	for _, store := range m.stores {
		if store.Exists() {
			return true
		}
	}
	return false
}

// getConfigDir returns the cinepipe config directory, creating it if needed
func getConfigDir() (string, error) {
	var configDir string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "cinepipe")
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "cinepipe")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}
