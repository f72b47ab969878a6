// Package journal records folder relocations (rename and move) that are in
// flight. A relocation copies a subtree to a new path and then deletes the
// old one in several broker writes; an entry left behind after a crash tells
// the reconciliation pass which relocation to finish.
package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var bucketRelocations = []byte("relocations")

// Kind names the operation that started a relocation.
type Kind string

const (
	KindRename Kind = "rename"
	KindMove   Kind = "move"
)

// Entry is one in-flight folder relocation from From to To. Name is the
// folder's name in its new parent. Account identifies the account whose
// tree the paths belong to; several accounts may share one journal.
type Entry struct {
	ID      uint64
	Account string
	Kind    Kind
	From    string
	To      string
	Name    string
	Started time.Time
}

// Journal persists relocation entries in a bbolt database.
type Journal struct {
	db *bbolt.DB
}

// Open opens or creates the journal database at dbPath. The parent directory
// is created if it does not exist.
func Open(dbPath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("journal: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRelocations)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: create bucket: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error { return j.db.Close() }

// Begin records a new relocation and returns its id.
func (j *Journal) Begin(e Entry) (uint64, error) {
	if e.Account == "" {
		return 0, fmt.Errorf("%w: missing account", ErrInvalidEntry)
	}
	if e.From == "" || e.To == "" {
		return 0, fmt.Errorf("%w: from %q to %q", ErrInvalidEntry, e.From, e.To)
	}
	if e.Started.IsZero() {
		e.Started = time.Now()
	}

	err := j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRelocations)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		e.ID = id
		data, err := encodeGob(&e)
		if err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}
		return b.Put(idKey(id), data)
	})
	if err != nil {
		return 0, fmt.Errorf("journal: begin: %w", err)
	}
	return e.ID, nil
}

// Done removes a finished relocation.
func (j *Journal) Done(id uint64) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRelocations)
		if b.Get(idKey(id)) == nil {
			return fmt.Errorf("%w: %d", ErrEntryNotFound, id)
		}
		return b.Delete(idKey(id))
	})
}

// Pending returns the unfinished relocations of account, oldest first.
// Entries recorded for other accounts are left untouched.
func (j *Journal) Pending(account string) ([]Entry, error) {
	var entries []Entry
	err := j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRelocations).ForEach(func(_, v []byte) error {
			var e Entry
			if err := decodeGob(v, &e); err != nil {
				return fmt.Errorf("decode entry: %w", err)
			}
			if e.Account == account {
				entries = append(entries, e)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("journal: pending: %w", err)
	}
	return entries, nil
}

// idKey encodes an id as an 8-byte big-endian key so ForEach yields entries
// in insertion order.
func idKey(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
