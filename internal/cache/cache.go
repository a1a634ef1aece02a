package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/richardpark-msft/vigil/internal/models"
)

// Cache stores built timelines on disk so repeated verifications of the same
// plan and recording skip the expensive provider call.
type Cache struct {
	dir string
	mu  sync.Mutex
}

// New creates a cache rooted at dir. An empty dir disables the cache.
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// Key derives the cache key for one verification run. The key covers
// everything that influences timeline construction:
// - plan identity and step content
// - sampling settings
// - the session video content
// - the provider and model that build the timeline
func Key(plan *models.TestPlan, videoPath, provider, model string) (string, error) {
	h := sha256.New()

	if err := writeString(h, plan.Name); err != nil {
		return "", err
	}

	stepsJSON, err := json.Marshal(plan.Steps)
	if err != nil {
		return "", fmt.Errorf("marshaling plan steps: %w", err)
	}
	if _, err := h.Write(stepsJSON); err != nil {
		return "", err
	}

	if err := writeFloat(h, plan.Sampling.FrameIntervalSec); err != nil {
		return "", err
	}
	if err := writeInt(h, plan.Sampling.MaxFrames); err != nil {
		return "", err
	}
	if err := writeInt(h, plan.Sampling.KeyframeCap); err != nil {
		return "", err
	}

	if err := writeString(h, provider); err != nil {
		return "", err
	}
	if err := writeString(h, model); err != nil {
		return "", err
	}

	// Hash the video content itself. A missing file hashes its path instead
	// so the key still changes once the recording appears.
	if err := hashFile(h, videoPath); err != nil {
		if os.IsNotExist(err) {
			if err := writeString(h, videoPath); err != nil {
				return "", err
			}
		} else {
			return "", fmt.Errorf("hashing session video: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get retrieves a cached timeline if present.
func (c *Cache) Get(key string) (*models.Timeline, bool) {
	if c.dir == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.cachePath(key))
	if err != nil {
		// Cache miss
		return nil, false
	}

	var tl models.Timeline
	if err := json.Unmarshal(data, &tl); err != nil {
		// Invalid cache entry, treat as miss
		return nil, false
	}

	return &tl, true
}

// Put stores a built timeline in the cache.
func (c *Cache) Put(key string, tl *models.Timeline) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(tl, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling timeline: %w", err)
	}

	if err := os.WriteFile(c.cachePath(key), data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return nil
}

// Clear removes all cached timelines.
func (c *Cache) Clear() error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}

	// Safety check: only delete a directory that looks like a cache
	// directory, meaning flat and all-JSON.
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}

	if len(entries) > 0 {
		hasValidCache := false
		for _, entry := range entries {
			if entry.IsDir() {
				return fmt.Errorf("cache directory contains subdirectories - refusing to delete for safety")
			}
			if filepath.Ext(entry.Name()) == ".json" {
				hasValidCache = true
			} else {
				return fmt.Errorf("cache directory contains non-cache files - refusing to delete for safety")
			}
		}
		if !hasValidCache {
			return fmt.Errorf("no valid cache files found in directory - refusing to delete for safety")
		}
	}

	return os.RemoveAll(c.dir)
}

func (c *Cache) cachePath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func writeString(w io.Writer, s string) error {
	// Null byte delimiter prevents hash collisions between adjacent fields.
	_, err := w.Write([]byte(s + "\x00"))
	return err
}

func writeInt(w io.Writer, i int) error {
	_, err := fmt.Fprintf(w, "%d\x00", i)
	return err
}

func writeFloat(w io.Writer, f float64) error {
	_, err := fmt.Fprintf(w, "%g\x00", f)
	return err
}

func hashFile(h io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(h, f); err != nil {
		return err
	}

	return nil
}
