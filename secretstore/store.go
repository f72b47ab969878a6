// Package secretstore keeps the account handle outside the settings file,
// in the OS keyring.
package secretstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/99designs/keyring"
)

const (
	// Service and Account name the keyring entry of the account handle.
	Service = "Opacity"
	Account = "Handle"
)

// Store gets, sets and deletes secrets by service and account name.
type Store interface {
	Get(service, account string) (string, error)
	Set(service, account, secret string) error
	Delete(service, account string) error
}

// KeyringConfig selects the keyring backends. Zero values let the keyring
// library pick the platform default.
type KeyringConfig struct {
	// Backends restricts the allowed backends, e.g. keyring.FileBackend.
	Backends []keyring.BackendType

	// FileDir and FilePassword configure the encrypted file backend. Each
	// service gets its own subdirectory.
	FileDir      string
	FilePassword string
}

// KeyringStore is a Store over github.com/99designs/keyring. One keyring is
// opened per service on first use.
type KeyringStore struct {
	cfg KeyringConfig

	mu    sync.Mutex
	rings map[string]keyring.Keyring
}

var _ Store = (*KeyringStore)(nil)

// NewKeyringStore returns a KeyringStore. Nothing is opened until first use.
func NewKeyringStore(cfg KeyringConfig) *KeyringStore {
	return &KeyringStore{cfg: cfg, rings: make(map[string]keyring.Keyring)}
}

func (s *KeyringStore) ring(service string) (keyring.Keyring, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rings[service]; ok {
		return r, nil
	}

	kc := keyring.Config{
		ServiceName:     service,
		AllowedBackends: s.cfg.Backends,
	}
	if s.cfg.FileDir != "" {
		// The file backend ignores the service name.
		kc.FileDir = filepath.Join(s.cfg.FileDir, service)
	}
	if s.cfg.FilePassword != "" {
		kc.FilePasswordFunc = keyring.FixedStringPrompt(s.cfg.FilePassword)
	}
	r, err := keyring.Open(kc)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrBackend, service, err)
	}
	s.rings[service] = r
	return r, nil
}

// Get returns the secret or ErrNotFound.
func (s *KeyringStore) Get(service, account string) (string, error) {
	r, err := s.ring(service)
	if err != nil {
		return "", err
	}
	item, err := r.Get(account)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s/%s", ErrNotFound, service, account)
	}
	if err != nil {
		return "", fmt.Errorf("%w: get: %w", ErrBackend, err)
	}
	return string(item.Data), nil
}

// Set stores secret, replacing any previous value.
func (s *KeyringStore) Set(service, account, secret string) error {
	r, err := s.ring(service)
	if err != nil {
		return err
	}
	err = r.Set(keyring.Item{
		Key:         account,
		Data:        []byte(secret),
		Label:       service + " " + account,
		Description: "Opacity account handle",
	})
	if err != nil {
		return fmt.Errorf("%w: set: %w", ErrBackend, err)
	}
	return nil
}

// Delete removes the secret. Deleting a missing secret is not an error.
func (s *KeyringStore) Delete(service, account string) error {
	r, err := s.ring(service)
	if err != nil {
		return err
	}
	if _, err := r.Get(account); errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	if err := r.Remove(account); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("%w: delete: %w", ErrBackend, err)
	}
	return nil
}

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	mu      sync.Mutex
	secrets map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]string)}
}

func memKey(service, account string) string { return service + "\x00" + account }

func (m *MemoryStore) Get(service, account string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.secrets[memKey(service, account)]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrNotFound, service, account)
	}
	return v, nil
}

func (m *MemoryStore) Set(service, account, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[memKey(service, account)] = secret
	return nil
}

func (m *MemoryStore) Delete(service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, memKey(service, account))
	return nil
}

// LoadHandle returns the stored account handle.
func LoadHandle(s Store) (string, error) {
	return s.Get(Service, Account)
}

// SaveHandle stores the account handle.
func SaveHandle(s Store, handle string) error {
	return s.Set(Service, Account, handle)
}

// ForgetHandle removes the stored account handle.
func ForgetHandle(s Store) error {
	return s.Delete(Service, Account)
}
