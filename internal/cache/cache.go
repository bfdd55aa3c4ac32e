// Package cache stores weight-search results on disk so repeated runs over
// the same predictions and budget skip the search.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/crediblend/crediblend/internal/models"
	"github.com/crediblend/crediblend/internal/weights"
)

// Cache provides caching for weight-search results
type Cache struct {
	dir string
	mu  sync.Mutex
}

// New creates a new cache instance with the specified directory
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// Key generates the cache key for a search. The key is based on:
// - model names, row ids and every prediction and target value
// - metric, seed and search budget
//
// Jobs is left out since it never changes the result.
func Key(m *models.AlignedMatrix, cfg weights.Config) (string, error) {
	h := sha256.New()

	for _, name := range m.Models {
		if err := writeString(h, name); err != nil {
			return "", err
		}
	}
	for _, id := range m.IDs {
		if err := writeString(h, id); err != nil {
			return "", err
		}
	}
	for _, col := range m.Columns {
		if err := writeFloats(h, col); err != nil {
			return "", err
		}
	}
	if err := writeFloats(h, m.Targets); err != nil {
		return "", err
	}

	if err := writeString(h, string(cfg.Metric)); err != nil {
		return "", err
	}
	if _, err := fmt.Fprintf(h, "%d\x00%d\x00%d\x00", cfg.Seed, cfg.Restarts, cfg.Iterations); err != nil {
		return "", err
	}
	if err := writeFloats(h, []float64{cfg.Step, cfg.Decay}); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get retrieves a cached search result if it exists
func (c *Cache) Get(key string) (*weights.Result, bool) {
	if c.dir == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.cachePath(key))
	if err != nil {
		return nil, false
	}

	var res weights.Result
	if err := json.Unmarshal(data, &res); err != nil {
		// Invalid cache entry, treat as miss
		return nil, false
	}
	return &res, true
}

// Put stores a search result in the cache
func (c *Cache) Put(key string, res *weights.Result) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling search result: %w", err)
	}
	if err := os.WriteFile(c.cachePath(key), data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	return nil
}

// Clear removes all cached results
func (c *Cache) Clear() error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}

	// Refuse to remove a directory that holds anything but cache entries.
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			return fmt.Errorf("cache directory contains subdirectories - refusing to delete for safety")
		}
		if filepath.Ext(entry.Name()) != ".json" {
			return fmt.Errorf("cache directory contains non-cache files - refusing to delete for safety")
		}
	}

	return os.RemoveAll(c.dir)
}

func (c *Cache) cachePath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func writeString(w io.Writer, s string) error {
	// null byte delimiter prevents collisions between adjacent strings
	_, err := w.Write([]byte(s + "\x00"))
	return err
}

func writeFloats(w io.Writer, values []float64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(len(values)))
	if _, err := w.Write(buf); err != nil {
		return err
	}
	for _, v := range values {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
