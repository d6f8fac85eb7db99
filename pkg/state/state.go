// Package state persists the client's bearer token, its expiry and the theme
// preference between runs.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Theme is the persisted display preference.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeDark   Theme = "dark"
	ThemeLight  Theme = "light"
)

// ParseTheme validates a theme name; empty means system.
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case "", ThemeSystem:
		return ThemeSystem, nil
	case ThemeDark, ThemeLight:
		return Theme(s), nil
	}
	return "", fmt.Errorf("unknown theme %q: expected dark, light or system", s)
}

// State is the on-disk document.
type State struct {
	BearerToken string    `yaml:"bearer_token,omitempty"`
	TokenExpiry time.Time `yaml:"token_expiry,omitempty"`
	Theme       Theme     `yaml:"theme,omitempty"`
}

// Parse decodes a state document.
func Parse(data []byte) (*State, error) {
	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return &s, nil
}

// Load reads the state file. A missing file yields an empty state.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	return Parse(data)
}

// Save writes the state file atomically with owner-only permissions.
func Save(s *State, path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// FileStore reads and writes individual keys of the state file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (f *FileStore) Path() string { return f.path }

// LoadToken returns the persisted token and expiry (empty when none).
func (f *FileStore) LoadToken() (string, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := Load(f.path)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.BearerToken, s.TokenExpiry, nil
}

// SaveToken persists the token and its expiry.
func (f *FileStore) SaveToken(token string, expiry time.Time) error {
	return f.update(func(s *State) {
		s.BearerToken = token
		s.TokenExpiry = expiry
	})
}

// ClearToken removes the token and expiry keys, keeping the theme.
func (f *FileStore) ClearToken() error {
	return f.update(func(s *State) {
		s.BearerToken = ""
		s.TokenExpiry = time.Time{}
	})
}

// Theme returns the persisted theme, system when unset.
func (f *FileStore) Theme() (Theme, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := Load(f.path)
	if err != nil {
		return ThemeSystem, err
	}
	return ParseTheme(string(s.Theme))
}

// SetTheme persists the theme preference.
func (f *FileStore) SetTheme(t Theme) error {
	return f.update(func(s *State) { s.Theme = t })
}

func (f *FileStore) update(fn func(*State)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := Load(f.path)
	if err != nil {
		return err
	}
	fn(s)
	return Save(s, f.path)
}

// MemoryStore is an in-memory token store.
type MemoryStore struct {
	mu     sync.Mutex
	token  string
	expiry time.Time
	theme  Theme
}

func (m *MemoryStore) LoadToken() (string, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.expiry, nil
}

func (m *MemoryStore) SaveToken(token string, expiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.expiry = token, expiry
	return nil
}

func (m *MemoryStore) ClearToken() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.expiry = "", time.Time{}
	return nil
}

func (m *MemoryStore) Theme() (Theme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.theme == "" {
		return ThemeSystem, nil
	}
	return m.theme, nil
}

func (m *MemoryStore) SetTheme(t Theme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.theme = t
	return nil
}
