// Package securestore provides encrypted local storage for attestation
// state: the attestation key, the monotonic replay counter, and stored
// credentials. Values are kept in a JSON map encrypted with AES-256-GCM
// under an Argon2id-derived key, which keeps them out of casual reach in a
// way plain preference files are not.
package securestore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"golang.org/x/crypto/argon2"
)

// File format constants.
const (
	// magicHeader identifies warden store files.
	magicHeader = "WRDN"
	// version is the current file format version.
	version = byte(0x01)
	// saltLength is the length of the Argon2id salt.
	saltLength = 16
	// nonceLength is the AES-GCM nonce length.
	nonceLength = 12
)

// Argon2id parameters (OWASP recommended).
const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32
)

// Well-known entry names.
const (
	entryCounter = "replay_counter"
)

// ErrNotFound is returned when a requested entry does not exist.
type ErrNotFound struct {
	Name string
}

func (e *ErrNotFound) Error() string {
	return "securestore: entry not found: " + e.Name
}

// Store is an encrypted file-backed key-value store.
//
// All read-modify-write operations, including counter increments, are
// serialized by a single mutex so concurrent callers never observe or emit
// the same counter value.
type Store struct {
	path      string
	masterKey []byte
	mu        sync.Mutex
}

// DefaultPath returns the default store file path.
//   - macOS/Linux: ~/.warden/store.enc
//   - Windows: %USERPROFILE%\.warden\store.enc
func DefaultPath() string {
	var homeDir string

	if runtime.GOOS == "windows" {
		homeDir = os.Getenv("USERPROFILE")
	} else {
		homeDir = os.Getenv("HOME")
	}

	if homeDir == "" {
		return "store.enc"
	}

	return filepath.Join(homeDir, ".warden", "store.enc")
}

// Open creates a Store at the given path. The master key is derived from
// machine-specific data; for stronger protection supply one with OpenWithKey.
func Open(path string) (*Store, error) {
	key, err := deriveMachineKey()
	if err != nil {
		return nil, err
	}
	return &Store{path: path, masterKey: key}, nil
}

// OpenWithKey creates a Store using a caller-supplied master key.
func OpenWithKey(path string, masterKey []byte) *Store {
	return &Store{path: path, masterKey: masterKey}
}

// Set stores a key-value pair.
func (s *Store) Set(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadData()
	if err != nil {
		return err
	}

	data[name] = value
	return s.saveData(data)
}

// Get retrieves a value by name.
func (s *Store) Get(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadData()
	if err != nil {
		return "", err
	}

	value, ok := data[name]
	if !ok {
		return "", &ErrNotFound{Name: name}
	}

	return value, nil
}

// Delete removes an entry by name. Deleting a missing entry is not an error.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadData()
	if err != nil {
		return err
	}

	if _, ok := data[name]; !ok {
		return nil
	}

	delete(data, name)
	return s.saveData(data)
}

// Counter returns the current replay counter value, 0 if unset.
func (s *Store) Counter() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadData()
	if err != nil {
		return 0, err
	}

	return parseCounter(data)
}

// IncrementCounter atomically increments the replay counter by exactly 1 and
// returns the new value. The counter is persisted before the value is
// returned, so a returned value is never emitted twice even across restarts.
func (s *Store) IncrementCounter() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadData()
	if err != nil {
		return 0, err
	}

	current, err := parseCounter(data)
	if err != nil {
		return 0, err
	}

	next := current + 1
	data[entryCounter] = strconv.FormatUint(next, 10)
	if err := s.saveData(data); err != nil {
		return 0, err
	}

	return next, nil
}

// ClearCounter resets the replay counter. Only valid when the attestation
// key is cleared alongside it; a reused key must never see a reset counter.
func (s *Store) ClearCounter() error {
	return s.Delete(entryCounter)
}

func parseCounter(data map[string]string) (uint64, error) {
	raw, ok := data[entryCounter]
	if !ok {
		return 0, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}

// loadData reads and decrypts the store file.
func (s *Store) loadData() (map[string]string, error) {
	data := make(map[string]string)

	ciphertext, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, err
	}

	if len(ciphertext) == 0 {
		return data, nil
	}

	plaintext, err := s.decrypt(ciphertext)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, err
	}

	return data, nil
}

// saveData encrypts and writes the store file.
func (s *Store) saveData(data map[string]string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	plaintext, err := json.Marshal(data)
	if err != nil {
		return err
	}

	ciphertext, err := s.encrypt(plaintext)
	if err != nil {
		return err
	}

	// Restrictive permissions (user only).
	return os.WriteFile(s.path, ciphertext, 0600)
}

// deriveKey derives an encryption key from the master key using Argon2id.
func deriveKey(masterKey, salt []byte) []byte {
	return argon2.IDKey(masterKey, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

// encrypt seals data with AES-256-GCM.
// Format: [magic (4)] [version (1)] [salt (16)] [nonce (12)] [ciphertext]
func (s *Store) encrypt(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	key := deriveKey(s.masterKey, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	header := make([]byte, 0, len(magicHeader)+1+saltLength+nonceLength)
	header = append(header, []byte(magicHeader)...)
	header = append(header, version)
	header = append(header, salt...)
	header = append(header, nonce...)

	ciphertext := gcm.Seal(nil, nonce, plaintext, header)
	return append(header, ciphertext...), nil
}

// decrypt opens data sealed by encrypt.
func (s *Store) decrypt(ciphertext []byte) ([]byte, error) {
	headerLen := len(magicHeader) + 1 + saltLength + nonceLength
	if len(ciphertext) < headerLen {
		return nil, errors.New("securestore: ciphertext too short")
	}
	if string(ciphertext[:len(magicHeader)]) != magicHeader || ciphertext[len(magicHeader)] != version {
		return nil, errors.New("securestore: unrecognized file format")
	}

	offset := len(magicHeader) + 1
	salt := ciphertext[offset : offset+saltLength]
	offset += saltLength
	nonce := ciphertext[offset : offset+nonceLength]
	offset += nonceLength
	encrypted := ciphertext[offset:]
	header := ciphertext[:offset]

	key := deriveKey(s.masterKey, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return gcm.Open(nil, nonce, encrypted, header)
}

// deriveMachineKey creates a machine-specific master key.
// Uses hostname and user as entropy sources, hashed to a 32-byte key.
func deriveMachineKey() ([]byte, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}

	material := hostname + ":" + username + ":warden-store-v1"

	hash := sha256.Sum256([]byte(material))
	return hash[:], nil
}
