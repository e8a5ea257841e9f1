// Package cache keeps computed cohort series in a bbolt file next to the store.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/rohankatakam/gitcohort/internal/cohort"
	"github.com/rohankatakam/gitcohort/internal/errors"
)

const bucketName = "series"

type entry struct {
	StoredAt time.Time      `json:"stored_at"`
	Series   *cohort.Series `json:"series"`
}

// SeriesCache implements cohort.SeriesCache. Keys already include the store revision,
// so entries never go stale; they only stop being asked for.
type SeriesCache struct {
	db     *bolt.DB
	logger *logrus.Logger
}

// Open opens or creates the cache file
func Open(path string, logger *logrus.Logger) (*SeriesCache, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.StoreErrorf(err, "create cache directory for %s", path)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.StoreErrorf(err, "open series cache %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.StoreError(err, "init series cache")
	}
	return &SeriesCache{db: db, logger: logger}, nil
}

// Get returns the cached series for key. Unreadable entries count as misses.
func (c *SeriesCache) Get(key string) (*cohort.Series, bool) {
	var e entry
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &e)
	})
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Ignoring unreadable cache entry")
		return nil, false
	}
	if !found || e.Series == nil {
		return nil, false
	}
	return e.Series, true
}

func (c *SeriesCache) Put(key string, s *cohort.Series) error {
	data, err := json.Marshal(entry{StoredAt: time.Now().UTC(), Series: s})
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), data)
	})
}

// Len returns the number of cached series
func (c *SeriesCache) Len() int {
	n := 0
	c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(bucketName)).Stats().KeyN
		return nil
	})
	return n
}

// Clear drops every entry; used after the authors table is rebuilt
func (c *SeriesCache) Clear() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}

func (c *SeriesCache) Close() error {
	return c.db.Close()
}
