// Package protocache caches analyzed prototypes in memory and, optionally,
// on disk, guaranteeing at-most-one concurrent analysis per type.
package protocache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/relaycore/corebind/internal/prototype"
)

type entry struct {
	proto       *prototype.ServicePrototype
	fingerprint []byte
}

// Cache memoizes prototypes by reflect.Type, with optional disk spill-over
// under CacheDir.
type Cache struct {
	mu       sync.RWMutex
	entries  map[reflect.Type]entry
	group    singleflight.Group
	cacheDir string
}

// New returns a Cache. An empty cacheDir disables disk persistence.
func New(cacheDir string) *Cache {
	return &Cache{entries: make(map[reflect.Type]entry), cacheDir: cacheDir}
}

// Get returns the cached prototype for t, if any, checking the in-memory
// map first and falling back to a cached disk file when CacheDir is set.
func (c *Cache) Get(t reflect.Type) (*prototype.ServicePrototype, bool) {
	c.mu.RLock()
	e, ok := c.entries[t]
	c.mu.RUnlock()
	if ok {
		return e.proto, true
	}
	if c.cacheDir == "" {
		return nil, false
	}
	p, ok := c.readDisk(t)
	if !ok {
		return nil, false
	}
	c.mu.Lock()
	c.entries[t] = entry{proto: p}
	c.mu.Unlock()
	return p, true
}

// Put stores p for t, optionally recording sourceFingerprint for later
// IsFresh comparisons, and persists to disk when CacheDir is set.
func (c *Cache) Put(t reflect.Type, p *prototype.ServicePrototype, fingerprint []byte) {
	c.mu.Lock()
	c.entries[t] = entry{proto: p, fingerprint: fingerprint}
	c.mu.Unlock()
	if c.cacheDir != "" {
		_ = c.writeDisk(t, p)
	}
}

// Invalidate drops the cached entry for t.
func (c *Cache) Invalidate(t reflect.Type) {
	c.mu.Lock()
	delete(c.entries, t)
	c.mu.Unlock()
}

// ClearAll drops every cached entry.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	c.entries = make(map[reflect.Type]entry)
	c.mu.Unlock()
}

// IsFresh compares fingerprint against the stored one for t.
func (c *Cache) IsFresh(t reflect.Type, fingerprint []byte) bool {
	c.mu.RLock()
	e, ok := c.entries[t]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	return bytes.Equal(e.fingerprint, fingerprint)
}

// GetOrAnalyze returns the cached prototype for t, or calls analyze exactly
// once across all concurrent callers racing on a miss for the same t,
// sharing the result (and any error) with the losers.
func (c *Cache) GetOrAnalyze(t reflect.Type, fingerprint []byte, analyze func() (*prototype.ServicePrototype, error)) (*prototype.ServicePrototype, error) {
	if p, ok := c.Get(t); ok {
		return p, nil
	}
	v, err, _ := c.group.Do(t.String(), func() (any, error) {
		if p, ok := c.Get(t); ok {
			return p, nil
		}
		p, err := analyze()
		if err != nil {
			return nil, err
		}
		c.Put(t, p, fingerprint)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*prototype.ServicePrototype), nil
}

func (c *Cache) diskPath(t reflect.Type) string {
	sum := sha256.Sum256([]byte(t.String()))
	return filepath.Join(c.cacheDir, hex.EncodeToString(sum[:])+".json")
}

func (c *Cache) readDisk(t reflect.Type) (*prototype.ServicePrototype, bool) {
	buf, err := os.ReadFile(c.diskPath(t))
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(buf, &m); err != nil {
		return nil, false
	}
	p, err := prototype.FromMap(m)
	if err != nil {
		return nil, false
	}
	return p, true
}

func (c *Cache) writeDisk(t reflect.Type, p *prototype.ServicePrototype) error {
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		return fmt.Errorf("protocache: mkdir cache dir: %w", err)
	}
	m, err := p.ToMap()
	if err != nil {
		return err
	}
	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.diskPath(t), buf, 0o644)
}
