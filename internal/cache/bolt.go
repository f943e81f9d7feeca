package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rohankatakam/paperwalk/internal/logging"
	bolt "go.etcd.io/bbolt"
)

const bucketName = "provider_responses"

// entry wraps a cached payload with its write time
type entry struct {
	StoredAt time.Time       `json:"stored_at"`
	Body     json.RawMessage `json:"body"`
}

// BoltCache is a file-backed cache of provider payloads. Entries older than
// ttl are treated as missing; ttl <= 0 disables expiry.
type BoltCache struct {
	db     *bolt.DB
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Open opens (or creates) the cache file at path.
func Open(path string, ttl time.Duration) (*BoltCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &BoltCache{
		db:     db,
		ttl:    ttl,
		now:    time.Now,
		logger: logging.Component("cache"),
	}, nil
}

// Get returns the payload stored under key if present and fresh.
func (c *BoltCache) Get(key string) ([]byte, bool) {
	var e entry
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !found || c.expired(e) {
		return nil, false
	}
	return e.Body, true
}

// Put stores a JSON payload under key.
func (c *BoltCache) Put(key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("cache value for %s is not valid JSON", key)
	}
	data, err := json.Marshal(entry{StoredAt: c.now(), Body: value})
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), data)
	})
}

// Purge deletes expired entries and returns how many were removed.
func (c *BoltCache) Purge() (int, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	removed := 0
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var e entry
			if json.Unmarshal(v, &e) != nil || c.expired(e) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

// Clear removes every entry.
func (c *BoltCache) Clear() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}

// Len returns the number of stored entries, fresh or not.
func (c *BoltCache) Len() int {
	n := 0
	c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(bucketName)).Stats().KeyN
		return nil
	})
	return n
}

// Close closes the underlying file.
func (c *BoltCache) Close() error {
	return c.db.Close()
}

func (c *BoltCache) expired(e entry) bool {
	return c.ttl > 0 && c.now().Sub(e.StoredAt) > c.ttl
}
