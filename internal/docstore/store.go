// Package docstore implements a generic document repository over an
// embedded bbolt database. Each entity kind lives in its own named
// bucket as one JSON document per record; typed access goes through
// Collection, and queries are expressed with storage-agnostic
// predicates rather than bucket mechanics.
package docstore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	errs "github.com/alexjbarnes/idp-store/internal/errors"
)

const (
	// storeDirPerm is the permission mode for the database directory.
	storeDirPerm = fs.FileMode(0o700)

	// storeFilePerm is the permission mode for the database file.
	storeFilePerm = fs.FileMode(0o600)

	// storeOpenTimeout is the maximum time to wait for the bolt
	// database lock before reporting a connection failure.
	storeOpenTimeout = 5 * time.Second
)

// Store is a process-lifetime handle over the backing document store.
// Open it once at startup and share it; the handle is immutable and
// safe for unbounded concurrent callers (bbolt serializes writes
// internally).
type Store struct {
	db *bolt.DB
}

// Open opens the database at path, creating the file and its parent
// directory if they do not exist. Failure to open is a connection
// failure: fatal at process level, not per-request.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), storeDirPerm); err != nil {
		return nil, fmt.Errorf("%w: creating store directory: %v", errs.ErrConnectionFailure, err)
	}

	db, err := bolt.Open(path, storeFilePerm, &bolt.Options{Timeout: storeOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", errs.ErrConnectionFailure, path, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// view runs fn in a read transaction. A context that is already done
// yields ErrTimeout without touching the database; the record's
// existence is then unknown, which is why this is distinct from
// ErrNotFound.
func (s *Store) view(ctx context.Context, fn func(tx *bolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrTimeout, err)
	}

	return s.db.View(fn)
}

// update runs fn in a write transaction. Write transactions are
// all-or-nothing, so a failed or abandoned call never leaves a
// half-written record behind.
func (s *Store) update(ctx context.Context, fn func(tx *bolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrTimeout, err)
	}

	return s.db.Update(fn)
}
