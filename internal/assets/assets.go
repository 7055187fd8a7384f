// Package assets loads compiled FaceFX assets from packs and directories.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Faultbox/facefx-go/internal/facefx"
	"github.com/Faultbox/facefx-go/pkg/encoding"
	"github.com/Faultbox/facefx-go/pkg/formats"
	"github.com/Faultbox/facefx-go/pkg/pack"
)

// ErrNotFound is returned when no source holds a file.
var ErrNotFound = errors.New("asset not found")

// source is one place assets are read from.
type source interface {
	Read(name string) ([]byte, error)
	Contains(name string) bool
	Close() error
	String() string
}

type packSource struct{ *pack.Archive }

func (p packSource) String() string { return p.Path() }

type dirSource struct{ root string }

func (d dirSource) file(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(name))
}

func (d dirSource) Read(name string) ([]byte, error) {
	return os.ReadFile(d.file(name))
}

func (d dirSource) Contains(name string) bool {
	st, err := os.Stat(d.file(name))
	return err == nil && !st.IsDir()
}

func (d dirSource) Close() error   { return nil }
func (d dirSource) String() string { return d.root }

// Manager handles asset loading from packs and directories.
type Manager struct {
	sources []source
	cache   *Cache
	mu      sync.RWMutex
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{
		cache: NewCache(),
	}
}

// AddPack adds an .ffxpack archive.
// Sources are searched in reverse order (last added = highest priority).
func (m *Manager) AddPack(path string) error {
	archive, err := pack.Open(path)
	if err != nil {
		return fmt.Errorf("opening pack %s: %w", path, err)
	}

	m.mu.Lock()
	m.sources = append(m.sources, packSource{archive})
	m.mu.Unlock()

	return nil
}

// AddDir adds a directory of loose compiled assets.
func (m *Manager) AddDir(dir string) error {
	st, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("adding asset dir: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("adding asset dir: %s is not a directory", dir)
	}

	m.mu.Lock()
	m.sources = append(m.sources, dirSource{root: dir})
	m.mu.Unlock()

	return nil
}

// Dirs returns the loose asset directories.
func (m *Manager) Dirs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var dirs []string
	for _, s := range m.sources {
		if d, ok := s.(dirSource); ok {
			dirs = append(dirs, d.root)
		}
	}
	return dirs
}

func cleanName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

// Load loads a file from the sources.
func (m *Manager) Load(name string) ([]byte, error) {
	name = cleanName(name)
	key := encoding.NormalizePath(name)

	// Check cache first
	if data, ok := m.cache.Get(key); ok {
		return data, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.sources) - 1; i >= 0; i-- {
		data, err := m.sources[i].Read(name)
		if err == nil {
			m.cache.Set(key, data)
			return data, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Exists reports whether any source holds name.
func (m *Manager) Exists(name string) bool {
	name = cleanName(name)
	if _, ok := m.cache.Peek(encoding.NormalizePath(name)); ok {
		return true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sources {
		if s.Contains(name) {
			return true
		}
	}
	return false
}

// LoadDataset loads the actor, bone set and id table of a dataset.
func (m *Manager) LoadDataset(name string) (*facefx.ActorDataset, error) {
	actor, err := m.Load(name + facefx.ExtActor)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	bones, err := m.Load(name + facefx.ExtBones)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	idData, err := m.Load(name + facefx.ExtIDs)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	ids, err := formats.ParseIDMap(idData)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}

	return &facefx.ActorDataset{
		Name:      path.Base(cleanName(name)),
		ActorData: actor,
		BoneData:  bones,
		IDs:       ids,
	}, nil
}

// LoadAnimation loads a compiled animation. A sound stored next to it is
// linked but not loaded.
func (m *Manager) LoadAnimation(id facefx.AnimID) (*facefx.AnimationAsset, error) {
	if !id.IsValid() {
		return nil, fmt.Errorf("invalid animation id %q", id.String())
	}
	p := facefx.AnimPath(id)
	data, err := m.Load(p)
	if err != nil {
		return nil, fmt.Errorf("animation %s: %w", id, err)
	}

	asset := &facefx.AnimationAsset{ID: id, Data: data}
	base := strings.TrimSuffix(p, facefx.ExtAnim)
	for _, ext := range facefx.SoundExtensions {
		if m.Exists(base + ext) {
			asset.Sound = &facefx.Sound{Path: base + ext}
			break
		}
	}
	return asset, nil
}

// LoadSound loads sound data.
func (m *Manager) LoadSound(path string) ([]byte, error) {
	return m.Load(path)
}

// Invalidate drops a file from the cache.
func (m *Manager) Invalidate(name string) {
	m.cache.Delete(encoding.NormalizePath(cleanName(name)))
}

// InvalidateAll clears the cache.
func (m *Manager) InvalidateAll() {
	m.cache.Clear()
}

// CacheStats returns cache hits and misses.
func (m *Manager) CacheStats() (hits, misses int) {
	return m.cache.Stats()
}

// Close closes all sources.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sources {
		s.Close()
	}
	m.sources = nil
	m.cache.Clear()
}

// Cache is a simple in-memory cache for loaded assets.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Peek retrieves an item without touching the stats.
func (c *Cache) Peek(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.data[key]
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Delete removes an item.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Stats returns hits and misses.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}
