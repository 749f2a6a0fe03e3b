package cache

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Lock is a TTL-guarded mutual-exclusion lock held in the cache. The TTL
// bounds how long a crashed holder can block other workers.
type Lock struct {
	cache *Cache
	key   string
	token string
}

// AcquireLock attempts to take the named lock. Returns (nil, false, nil)
// when another holder has it.
func (c *Cache) AcquireLock(name string, ttl time.Duration) (*Lock, bool, error) {
	var tok [8]byte
	if _, err := rand.Read(tok[:]); err != nil {
		return nil, false, fmt.Errorf("lock token: %w", err)
	}
	token := hex.EncodeToString(tok[:])

	won, err := c.SetIfAbsent("lock:"+name, token, ttl)
	if err != nil {
		return nil, false, err
	}
	if !won {
		return nil, false, nil
	}
	return &Lock{cache: c, key: "lock:" + name, token: token}, true, nil
}

// Release frees the lock if this holder still owns it. A lock that expired
// and was re-acquired by someone else is left alone.
func (l *Lock) Release() error {
	return l.cache.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(l.key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var current string
		if err := item.Value(func(v []byte) error {
			current = string(v)
			return nil
		}); err != nil {
			return err
		}
		if current != l.token {
			return nil
		}
		return txn.Delete([]byte(l.key))
	})
}
