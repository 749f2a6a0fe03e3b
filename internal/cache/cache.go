// Package cache is the ephemeral key-value layer: dedupe markers and
// bounce-guard entries with TTL, job breadcrumbs for external monitoring,
// and a coarse mutual-exclusion lock for the scheduled intake job.
package cache

import (
	"fmt"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Cache wraps a Badger database.
type Cache struct {
	db *badger.DB
}

// Open creates or opens the cache at dataDir/cache.
func Open(dataDir string) (*Cache, error) {
	opts := badger.DefaultOptions(filepath.Join(dataDir, "cache"))
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Set stores a value with no expiry.
func (c *Cache) Set(key, value string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}

// SetTTL stores a value that expires after ttl.
func (c *Cache) SetTTL(key, value string, ttl time.Duration) error {
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), []byte(value)).WithTTL(ttl)
		return txn.SetEntry(e)
	})
}

// Get returns the value for key and whether it exists (expired keys do not).
func (c *Cache) Get(key string) (string, bool, error) {
	var out string
	found := false
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			out = string(v)
			found = true
			return nil
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("cache get: %w", err)
	}
	return out, found, nil
}

// Delete removes a key. Missing keys are not an error.
func (c *Cache) Delete(key string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// SetIfAbsent stores value only when the key does not exist yet. Reports
// whether the write happened. The check and write share one transaction, so
// concurrent callers cannot both win.
func (c *Cache) SetIfAbsent(key, value string, ttl time.Duration) (bool, error) {
	won := false
	err := c.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		e := badger.NewEntry([]byte(key), []byte(value))
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		if err := txn.SetEntry(e); err != nil {
			return err
		}
		won = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("cache set-if-absent: %w", err)
	}
	return won, nil
}

// RunGC runs one round of Badger value-log garbage collection. A "nothing to
// collect" outcome is normal and reported as nil.
func (c *Cache) RunGC() error {
	err := c.db.RunValueLogGC(0.5)
	if err == badger.ErrNoRewrite {
		return nil
	}
	return err
}
