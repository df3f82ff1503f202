// Package credentials looks up the Bluesky app password the bot signs in with.
//
// The password comes from SKYFEED_APP_PASSWORD when set, otherwise from the
// system keyring:
// - macOS: Keychain
// - Windows: Credential Manager
// - Linux: Secret Service (libsecret)
//
// Entries are keyed by the account identifier, so several bot accounts can
// coexist on one machine.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// EnvAppPassword overrides the keyring when set.
	EnvAppPassword = "SKYFEED_APP_PASSWORD"

	// DefaultService is the keyring service name.
	DefaultService = "skyfeed"
)

// Source says where a password was found.
type Source string

const (
	SourceEnv     Source = "environment"
	SourceKeyring Source = "keyring"
)

// Common errors.
var (
	// ErrNoCredentials is returned when no password is stored for an account.
	ErrNoCredentials = errors.New("no credentials stored")
	// ErrKeyringUnavailable indicates the system keyring could not be used.
	ErrKeyringUnavailable = errors.New("system keyring unavailable")
	// ErrNoIdentifier is returned when no account identifier is configured.
	ErrNoIdentifier = errors.New("no account identifier configured")
)

// Store reads and writes app passwords.
type Store struct {
	service string
}

// NewStore returns a Store using the default keyring service.
func NewStore() *Store {
	return &Store{service: DefaultService}
}

// NewStoreWithService returns a Store using a custom keyring service name.
func NewStoreWithService(service string) *Store {
	return &Store{service: service}
}

// AppPassword returns the password for identifier and where it came from.
func (s *Store) AppPassword(identifier string) (string, Source, error) {
	if pw := os.Getenv(EnvAppPassword); pw != "" {
		return pw, SourceEnv, nil
	}
	if identifier == "" {
		return "", "", ErrNoIdentifier
	}

	pw, err := keyring.Get(s.service, identifier)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", "", fmt.Errorf("%w for %s", ErrNoCredentials, identifier)
		}
		return "", "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return pw, SourceKeyring, nil
}

// Save stores password for identifier in the keyring.
func (s *Store) Save(identifier, password string) error {
	if identifier == "" {
		return ErrNoIdentifier
	}
	if password == "" {
		return errors.New("password is empty")
	}
	if err := keyring.Set(s.service, identifier, password); err != nil {
		return fmt.Errorf("%w: storing password: %v", ErrKeyringUnavailable, err)
	}
	return nil
}

// Delete removes the stored password. Deleting a missing entry is not an error.
func (s *Store) Delete(identifier string) error {
	if identifier == "" {
		return ErrNoIdentifier
	}
	if err := keyring.Delete(s.service, identifier); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: deleting password: %v", ErrKeyringUnavailable, err)
	}
	return nil
}

// Description returns a description of the keyring backend.
func Description() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS Keychain"
	case "windows":
		return "Windows Credential Manager"
	default:
		return "System Keyring (Secret Service)"
	}
}

// MaskCredential returns a masked version of the credential for display.
func MaskCredential(cred string) string {
	if len(cred) <= 8 {
		return strings.Repeat("*", len(cred))
	}
	return cred[:4] + strings.Repeat("*", len(cred)-8) + cred[len(cred)-4:]
}
