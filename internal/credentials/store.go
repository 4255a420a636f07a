// Package credentials persists the bridge connection record produced by pairing.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	ErrNotFound      = errors.New("credential file not found")
	ErrMalformedData = errors.New("credential data malformed")
)

// Credential is the {bridge address, client token} pair issued during pairing.
type Credential struct {
	IPAddress   string `json:"ip_addr"`
	ClientToken string `json:"client_token"`
}

// Validate reports ErrMalformedData when either field is empty.
func (c Credential) Validate() error {
	if c.IPAddress == "" {
		return fmt.Errorf("%w: ip_addr is empty", ErrMalformedData)
	}
	if c.ClientToken == "" {
		return fmt.Errorf("%w: client_token is empty", ErrMalformedData)
	}
	return nil
}

// Load reads the credential stored at path.
// Unknown fields are ignored.
func Load(path string) (Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credential{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Credential{}, fmt.Errorf("failed to read credential file: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	if err := cred.Validate(); err != nil {
		return Credential{}, err
	}

	return cred, nil
}

// Save writes cred to path, creating or truncating the file.
func Save(path string, cred Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create credential directory: %w", err)
		}
	}

	return os.WriteFile(path, data, 0600)
}

// Store binds Load and Save to a single path.
type Store struct {
	path string
}

// NewStore creates a store for the credential file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the credential file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the stored credential.
func (s *Store) Load() (Credential, error) {
	return Load(s.path)
}

// Save replaces the stored credential.
func (s *Store) Save(cred Credential) error {
	return Save(s.path, cred)
}
