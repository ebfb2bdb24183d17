// Package convlog persists analysed queries and the responses returned for
// them, keyed by session.
package convlog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketConversations = []byte("conversations")

// Record is one query/response pair.
type Record struct {
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id"`
	UserInput string          `json:"user_input"`
	Response  json.RawMessage `json:"response"`
}

// Sink stores records. Implementations must be safe for concurrent use.
type Sink interface {
	Append(ctx context.Context, r Record) error
	// List returns at most limit records, newest first. limit <= 0 means all.
	List(limit int) ([]Record, error)
	Close() error
}

// Nop discards every record.
type Nop struct{}

func (Nop) Append(context.Context, Record) error { return nil }
func (Nop) List(int) ([]Record, error)           { return []Record{}, nil }
func (Nop) Close() error                         { return nil }

// Store is a Sink backed by bbolt. Records live in one bucket under
// big-endian sequence keys so cursor order is insertion order.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path, creating parent directories.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketConversations)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Append writes r. A zero timestamp is replaced by the current time.
func (s *Store) Append(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	if len(r.Response) == 0 {
		r.Response = json.RawMessage("null")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConversations)
		if b == nil {
			return errors.New("conversations bucket missing")
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(itob(seq), data)
	})
}

func (s *Store) List(limit int) ([]Record, error) {
	out := []Record{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConversations)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var r Record
			// Unmarshal copies v, which is only valid inside the transaction.
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode record %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Close() error { return s.db.Close() }

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
