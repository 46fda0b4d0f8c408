package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"go.klb.dev/bounceboard/internal/snapshot"
)

var (
	entriesBucket  = []byte("entries")  // big-endian unix nanos -> Entry JSON
	payloadsBucket = []byte("payloads") // hex hash -> payload
)

// ErrNotFound is returned by Bolt.Payload for an unknown hash.
var ErrNotFound = errors.New("history: not found")

// Bolt keeps history in a single bbolt file. Payloads are stored once per
// distinct content hash.
type Bolt struct {
	db  *bbolt.DB
	now func() time.Time
}

// OpenBolt opens (creating if needed) the database at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{entriesBucket, payloadsBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Bolt{db: db, now: time.Now}, nil
}

// Close closes the database.
func (b *Bolt) Close() error { return b.db.Close() }

func (b *Bolt) Record(s *snapshot.Snapshot) error {
	at := b.now()
	meta, err := json.Marshal(entryOf(s, at))
	if err != nil {
		return fmt.Errorf("history meta: %w", err)
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		entries := tx.Bucket(entriesBucket)
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, uint64(at.UnixNano()))
		// Two records in the same nanosecond keep both.
		for entries.Get(key) != nil {
			binary.BigEndian.PutUint64(key, binary.BigEndian.Uint64(key)+1)
		}
		if err := entries.Put(key, meta); err != nil {
			return err
		}

		payloads := tx.Bucket(payloadsBucket)
		h := []byte(s.Hash.String())
		if payloads.Get(h) == nil {
			return payloads.Put(h, s.Payload)
		}
		return nil
	})
}

// List returns up to limit entries, newest first. limit <= 0 means all.
func (b *Bolt) List(limit int) ([]Entry, error) {
	var out []Entry
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(entriesBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("entry %x: %w", k, err)
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// Payload returns the stored payload for hash.
func (b *Bolt) Payload(hash snapshot.Hash) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(payloadsBucket).Get([]byte(hash.String()))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, hash.Short())
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}
