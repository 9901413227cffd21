// Package cache is a content-addressed blob store for expensive chain reads.
//
// Blobs are zstd compressed on disk under the sha256 of their key, with a small
// in-memory LRU in front. Concurrent fetches of the same key are collapsed.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/singleflight"
)

// Cache is safe for concurrent use.
type Cache struct {
	dir   string
	mem   *lru.Cache
	group singleflight.Group
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

// Open creates a cache rooted at dir. An empty dir keeps blobs in memory only.
func Open(dir string, memEntries int) (*Cache, error) {
	if memEntries < 1 {
		memEntries = 1
	}
	mem, err := lru.New(memEntries)
	if err != nil {
		return nil, err
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &Cache{dir: dir, mem: mem, enc: enc, dec: dec}, nil
}

// Close releases the codec resources.
func (c *Cache) Close() {
	c.enc.Close()
	c.dec.Close()
}

// Key joins parts into a stable cache key.
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}

func (c *Cache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(c.dir, name[:2], name+".zst")
}

// Get returns the blob stored under key.
func (c *Cache) Get(key string) ([]byte, bool, error) {
	if v, ok := c.mem.Get(key); ok {
		return v.([]byte), true, nil
	}
	if c.dir == "" {
		return nil, false, nil
	}

	compressed, err := os.ReadFile(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache %s: %w", key, err)
	}
	data, err := c.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false, fmt.Errorf("decompress cache %s: %w", key, err)
	}
	c.mem.Add(key, data)
	return data, true, nil
}

// Set stores a blob under key.
func (c *Cache) Set(key string, data []byte) error {
	c.mem.Add(key, data)
	if c.dir == "" {
		return nil
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache shard: %w", err)
	}
	compressed := c.enc.EncodeAll(data, make([]byte, 0, len(data)/4))

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("write cache %s: %w", key, err)
	}
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename cache %s: %w", key, err)
	}
	return nil
}

// Blob returns the cached blob for key, calling fetch and storing its result on a miss.
func (c *Cache) Blob(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	if data, ok, err := c.Get(key); err != nil {
		return nil, err
	} else if ok {
		return data, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Set(key, data); err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Memoize caches the JSON encoding of fetch's result under key.
func Memoize[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (T, error)) (T, error) {
	var out T
	data, err := c.Blob(ctx, key, func(ctx context.Context) ([]byte, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode cache %s: %w", key, err)
	}
	return out, nil
}
