package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Fixed keys under which the session tokens are persisted.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

const sessionFile = "session.json"

var (
	// ErrTokenNotFound is returned when no value is stored under a key.
	ErrTokenNotFound = errors.New("token not found")
)

// Store is a persistent key/value store for session tokens.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(keys ...string) error
}

// file is the on-disk layout of the session file.
type file struct {
	Version   int               `json:"version"`
	Values    map[string]string `json:"values"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// FileStore keeps tokens in a single JSON file readable only by the owner.
type FileStore struct {
	baseDir string
	mu      sync.Mutex
}

var _ Store = (*FileStore)(nil)

// DefaultDir returns ~/.certifychain.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".certifychain"), nil
}

// NewFileStore creates a token store rooted at baseDir.
// If baseDir is empty, uses ~/.certifychain/
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		baseDir = dir
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	store := &FileStore{baseDir: baseDir}

	if err := store.ensureFile(); err != nil {
		return nil, err
	}

	log.Debug().Str("baseDir", baseDir).Msg("token store initialized")

	return store, nil
}

// Path returns the location of the session file.
func (s *FileStore) Path() string {
	return filepath.Join(s.baseDir, sessionFile)
}

// Get returns the value stored under key, or ErrTokenNotFound.
func (s *FileStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return "", err
	}

	value, ok := f.Values[key]
	if !ok || value == "" {
		return "", ErrTokenNotFound
	}

	return value, nil
}

// Set stores value under key.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return err
	}

	f.Values[key] = value

	return s.save(f)
}

// Delete removes the given keys. Missing keys are ignored.
func (s *FileStore) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return err
	}

	for _, key := range keys {
		delete(f.Values, key)
	}

	return s.save(f)
}

func (s *FileStore) ensureFile() error {
	if _, err := os.Stat(s.Path()); err == nil {
		return nil
	}

	return s.save(&file{
		Version: 1,
		Values:  make(map[string]string),
	})
}

func (s *FileStore) load() (*file, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}

	if f.Values == nil {
		f.Values = make(map[string]string)
	}

	return &f, nil
}

// save writes the session file atomically.
func (s *FileStore) save(f *file) error {
	f.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session file: %w", err)
	}

	path := s.Path()
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save session file: %w", err)
	}

	return nil
}
