package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const cacheFileName = "vector_index.json"

// Cache persists the index artifact (vectors + fingerprint + model) so a
// restarted process skips re-embedding an unchanged catalog.
type Cache struct {
	dir string
}

func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

func (c *Cache) path() string {
	return filepath.Join(c.dir, cacheFileName)
}

// Load returns the cached index, or (nil, nil) when no cache exists.
func (c *Cache) Load() (*VectorIndex, error) {
	data, err := os.ReadFile(c.path())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index cache: %w", err)
	}

	var idx VectorIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decode index cache: %w", err)
	}

	return &idx, nil
}

// Save writes the artifact via a temp file and rename so a crashed write
// never leaves a truncated cache behind.
func (c *Cache) Save(idx *VectorIndex) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	tmp := c.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write index cache: %w", err)
	}
	if err := os.Rename(tmp, c.path()); err != nil {
		return fmt.Errorf("replace index cache: %w", err)
	}

	return nil
}
