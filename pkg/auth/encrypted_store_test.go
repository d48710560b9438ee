package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestFileStore(t *testing.T) *EncryptedFileStore {
	t.Helper()
	store, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "credentials.enc"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestEncryptedFileStoreRoundtrip(t *testing.T) {
	store := newTestFileStore(t)

	creds := &Credentials{
		APIKey:    "v3-api-key",
		ReadToken: "v4-read-token",
	}
	if err := store.Store(creds); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if !store.Exists() {
		t.Fatal("Expected store to exist after Store")
	}

	loaded, err := store.Retrieve()
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if loaded.APIKey != "v3-api-key" || loaded.ReadToken != "v4-read-token" {
		t.Errorf("Retrieved %+v, want original credentials", loaded)
	}
}

func TestEncryptedFileIsNotPlaintext(t *testing.T) {
	store := newTestFileStore(t)

	secret := "super-secret-token-value"
	if err := store.Store(&Credentials{ReadToken: secret}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	data, err := os.ReadFile(store.filepath)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if strings.Contains(string(data), secret) {
		t.Error("Credential file contains the secret in plaintext")
	}

	// The envelope itself is JSON with salt and ciphertext
	var file encryptedFile
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("File is not a valid envelope: %v", err)
	}
	if file.Salt == "" || file.Encrypted == "" {
		t.Error("Envelope missing salt or ciphertext")
	}
}

func TestEncryptedFileStoreRejectsInvalid(t *testing.T) {
	store := newTestFileStore(t)

	if err := store.Store(&Credentials{}); err != ErrInvalidCredentials {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
}

func TestEncryptedFileStoreMissing(t *testing.T) {
	store := newTestFileStore(t)

	if _, err := store.Retrieve(); err != ErrCredentialsNotFound {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	if store.Exists() {
		t.Error("Expected Exists to be false")
	}
}

func TestEncryptedFileStoreDelete(t *testing.T) {
	store := newTestFileStore(t)

	if err := store.Store(&Credentials{APIKey: "key"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := store.Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if store.Exists() {
		t.Error("Expected store to be gone after delete")
	}

	// Deleting again is not an error
	if err := store.Delete(); err != nil {
		t.Errorf("Second delete failed: %v", err)
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "env-key")
	t.Setenv("TMDB_READ_TOKEN", "env-token")

	store := NewEnvironmentStore()
	if !store.Exists() {
		t.Fatal("Expected environment credentials to exist")
	}

	creds, err := store.Retrieve()
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if creds.APIKey != "env-key" || creds.ReadToken != "env-token" {
		t.Errorf("Retrieved %+v, want env values", creds)
	}

	// Read-only store
	if err := store.Store(creds); err == nil {
		t.Error("Expected Store to fail")
	}
	if err := store.Delete(); err == nil {
		t.Error("Expected Delete to fail")
	}
}

func TestEnvironmentStoreEmpty(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "")
	t.Setenv("TMDB_READ_TOKEN", "")

	store := NewEnvironmentStore()
	if store.Exists() {
		t.Error("Expected no environment credentials")
	}
	if _, err := store.Retrieve(); err != ErrCredentialsNotFound {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
}
