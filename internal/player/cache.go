package player

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/park285/hopchess/internal/rules"
)

// Identity is what a client remembers about one game session.
type Identity struct {
	SessionID string      `yaml:"sessionId"`
	Identity  string      `yaml:"identity"`
	Name      string      `yaml:"name"`
	Color     rules.Color `yaml:"color"`
}

// IdentityCache remembers the seat taken in a session so a reload can rejoin
// without fetching the room record again.
type IdentityCache interface {
	Load(sessionID string) (Identity, bool)
	Store(id Identity) error
}

// MemoryCache is an in-process IdentityCache.
type MemoryCache struct {
	mu sync.Mutex
	m  map[string]Identity
}

func NewMemoryCache() *MemoryCache { return &MemoryCache{m: make(map[string]Identity)} }

func (c *MemoryCache) Load(sessionID string) (Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.m[sessionID]
	return id, ok
}

func (c *MemoryCache) Store(id Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[id.SessionID] = id
	return nil
}

// FileCache persists identities as a YAML document keyed by session id.
type FileCache struct {
	mu   sync.Mutex
	path string
}

func NewFileCache(path string) *FileCache { return &FileCache{path: path} }

func (c *FileCache) Load(sessionID string) (Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	all, err := c.read()
	if err != nil {
		return Identity{}, false
	}
	id, ok := all[sessionID]
	return id, ok
}

func (c *FileCache) Store(id Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	all, err := c.read()
	if err != nil {
		return err
	}
	all[id.SessionID] = id
	b, err := yaml.Marshal(all)
	if err != nil {
		return fmt.Errorf("encode identity cache: %w", err)
	}
	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

func (c *FileCache) read() (map[string]Identity, error) {
	all := make(map[string]Identity)
	b, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return all, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, &all); err != nil {
		return nil, fmt.Errorf("decode identity cache %s: %w", c.path, err)
	}
	if all == nil {
		all = make(map[string]Identity)
	}
	return all, nil
}
