package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service name passwords are stored under.
const KeyringService = "minaops"

// SecretStore reads and writes profile passwords.
type SecretStore interface {
	Get(profile string) (string, error)
	Set(profile, secret string) error
}

// Keyring stores profile passwords in the OS keyring.
type Keyring struct {
	Service string
}

// NewKeyring returns a Keyring using KeyringService.
func NewKeyring() Keyring {
	return Keyring{Service: KeyringService}
}

func (k Keyring) Get(profile string) (string, error) {
	secret, err := keyring.Get(k.Service, profile)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("no password stored in keyring for profile %q", profile)
	}
	if err != nil {
		return "", fmt.Errorf("keyring: %w", err)
	}
	return secret, nil
}

func (k Keyring) Set(profile, secret string) error {
	if err := keyring.Set(k.Service, profile, secret); err != nil {
		return fmt.Errorf("keyring: %w", err)
	}
	return nil
}
