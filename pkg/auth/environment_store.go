package auth

import (
	"errors"
	"os"
)

// EnvironmentStore reads credentials from environment variables. It is the
// last fallback in the credential chain and is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (s *EnvironmentStore) Store(creds *Credentials) error {
	return errors.New("cannot store credentials in environment variables")
}

// Retrieve reads credentials from TMDB_API_KEY and TMDB_READ_TOKEN
func (s *EnvironmentStore) Retrieve() (*Credentials, error) {
	creds := &Credentials{
		APIKey:    os.Getenv("TMDB_API_KEY"),
		ReadToken: os.Getenv("TMDB_READ_TOKEN"),
	}
	if !creds.Valid() {
		return nil, ErrCredentialsNotFound
	}
	return creds, nil
}

// Delete is not supported for environment variables
func (s *EnvironmentStore) Delete() error {
	return errors.New("cannot delete credentials from environment variables")
}

// Exists checks whether either environment variable is set
func (s *EnvironmentStore) Exists() bool {
	return os.Getenv("TMDB_API_KEY") != "" || os.Getenv("TMDB_READ_TOKEN") != ""
}
