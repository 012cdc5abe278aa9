// Package history persists the outcome of DNS verification checks so
// operators can see how a domain's records evolved over time.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/indrav/forecourt/internal/dnscheck"
)

var bucketChecks = []byte("checks")

// Check is one recorded verification attempt for a domain.
type Check struct {
	DomainID    string                  `json:"domain_id"`
	Hostname    string                  `json:"hostname"`
	CheckedAt   time.Time               `json:"checked_at"`
	AllVerified bool                    `json:"all_verified"`
	Records     []dnscheck.RecordStatus `json:"records"`
}

// Store keeps verification checks in a BoltDB file, keyed so that
// per-domain scans come back in chronological order.
type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) the history database at path.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketChecks)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Append records a verification check.
func (s *Store) Append(check Check) error {
	if check.CheckedAt.IsZero() {
		check.CheckedAt = time.Now().UTC()
	}

	data, err := json.Marshal(&check)
	if err != nil {
		return fmt.Errorf("failed to marshal check: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		key := makeCheckKey(check.DomainID, check.CheckedAt)
		return tx.Bucket(bucketChecks).Put(key, data)
	})
}

// ListByDomain returns up to limit checks for a domain, newest first.
// A limit <= 0 returns all of them.
func (s *Store) ListByDomain(domainID string, limit int) ([]Check, error) {
	var checks []Check

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketChecks).Cursor()
		prefix := []byte(domainID + ":")

		// Keys sort chronologically per domain, so walk the prefix
		// range backwards to get newest first.
		var last []byte
		for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = c.Next() {
			last = k
		}
		if last == nil {
			return nil
		}

		for k, v := c.Seek(last); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Prev() {
			var check Check
			if err := json.Unmarshal(v, &check); err != nil {
				continue
			}
			checks = append(checks, check)
			if limit > 0 && len(checks) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return checks, nil
}

// Prune deletes checks recorded before the cutoff.
func (s *Store) Prune(olderThan time.Time) (int, error) {
	removed := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketChecks).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var check Check
			if err := json.Unmarshal(v, &check); err != nil {
				continue
			}
			if check.CheckedAt.Before(olderThan) {
				if err := c.Delete(); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// makeCheckKey builds a key that groups checks by domain and sorts
// chronologically within the group. The fractional seconds are
// zero-padded to full width; RFC3339Nano trims trailing zeros, which
// would break lexicographic ordering within a second.
func makeCheckKey(domainID string, t time.Time) []byte {
	return []byte(domainID + ":" + t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"))
}
