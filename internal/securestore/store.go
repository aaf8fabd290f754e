// Package securestore persists authentication tokens in an encrypted file.
//
// Values are sealed with AES-GCM under a key derived from a passphrase with
// PBKDF2. The salt is random per file and stored alongside the entries.
package securestore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/felixgeelhaar/tasksync/internal/errors"
)

const (
	keyIterations = 100000
	keyLength     = 32
	saltLength    = 16
)

// ErrNotFound is returned by Get when no entry exists under the name.
var ErrNotFound = stderrors.New("credential not found")

// Entry is one sealed value on disk.
type Entry struct {
	Value     string     `json:"value"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type fileFormat struct {
	Salt    string            `json:"salt"`
	Entries map[string]*Entry `json:"entries"`
}

// Store manages encrypted credential storage. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	path    string
	key     []byte
	salt    []byte
	entries map[string]*Entry
	now     func() time.Time
}

// Open loads the store at path, creating an empty one in memory if the
// file does not exist yet. Nothing is written until the first Put.
func Open(path, passphrase string) (*Store, error) {
	s := &Store{
		path:    path,
		entries: make(map[string]*Entry),
		now:     time.Now,
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var f fileFormat
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCredentialStore, "failed to parse credential store", err)
		}
		salt, err := base64.StdEncoding.DecodeString(f.Salt)
		if err != nil || len(salt) == 0 {
			return nil, errors.Wrap(errors.ErrCodeCredentialStore, "credential store has an invalid salt", err)
		}
		s.salt = salt
		if f.Entries != nil {
			s.entries = f.Entries
		}
	case os.IsNotExist(err):
		s.salt = make([]byte, saltLength)
		if _, err := io.ReadFull(rand.Reader, s.salt); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCredentialStore, "failed to generate salt", err)
		}
	default:
		return nil, errors.Wrap(errors.ErrCodeCredentialStore, "failed to read credential store", err)
	}

	s.key = pbkdf2.Key([]byte(passphrase), s.salt, keyIterations, keyLength, sha256.New)
	return s, nil
}

// Put seals value under name and writes the store to disk.
func (s *Store) Put(name, value string, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := s.encrypt(value)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCredentialStore, "failed to encrypt credential", err)
	}

	s.entries[name] = &Entry{
		Value:     sealed,
		UpdatedAt: s.now(),
		ExpiresAt: expiresAt,
	}

	return s.save()
}

// Get returns the plaintext stored under name. Expired entries are
// reported as ErrNotFound.
func (s *Store) Get(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[name]
	if !ok {
		return "", ErrNotFound
	}
	if entry.ExpiresAt != nil && s.now().After(*entry.ExpiresAt) {
		return "", ErrNotFound
	}

	value, err := s.decrypt(entry.Value)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeCredentialStore, fmt.Sprintf("failed to decrypt credential %s", name), err)
	}
	return value, nil
}

// Delete removes name. Deleting a missing entry is not an error.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; !ok {
		return nil
	}
	delete(s.entries, name)
	return s.save()
}

// Names returns the stored entry names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Verify decrypts every entry and reports the first one that fails, which
// happens when the passphrase changed since the entries were written.
func (s *Store) Verify() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for name, entry := range s.entries {
		if _, err := s.decrypt(entry.Value); err != nil {
			return errors.Wrap(errors.ErrCodeCredentialStore, fmt.Sprintf("failed to decrypt credential %s", name), err)
		}
	}
	return nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) encrypt(plaintext string) (string, error) {
	gcm, err := s.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (s *Store) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	gcm, err := s.aead()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (s *Store) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// save must be called with s.mu held.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create credential directory", err)
	}

	data, err := json.MarshalIndent(fileFormat{
		Salt:    base64.StdEncoding.EncodeToString(s.salt),
		Entries: s.entries,
	}, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeCredentialStore, "failed to encode credential store", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write credential store", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to replace credential store", err)
	}
	return nil
}
