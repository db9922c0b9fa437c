package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/tidwall/gjson"
	bolt "go.etcd.io/bbolt"

	errs "github.com/alexjbarnes/idp-store/internal/errors"
)

// Collection is a typed handle over one named bucket. Handles are
// resolved once at startup with an explicit name (no reflection-derived
// naming) and shared read-only afterwards; EnsureUniqueIndex must be
// called before the collection sees concurrent traffic.
type Collection[T any] struct {
	store  *Store
	name   string
	bucket []byte

	// key extracts the primary key from a document. An empty key is
	// rejected on write.
	key func(doc T) string

	// indexes lists the unique-index fields maintained for this
	// collection, registered via EnsureUniqueIndex.
	indexes []string
}

// NewCollection resolves the typed handle for a named collection,
// creating the underlying bucket if it does not exist.
func NewCollection[T any](s *Store, name string, key func(doc T) string) (*Collection[T], error) {
	bucket := []byte(name)

	err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", name, err)
	}

	return &Collection[T]{store: s, name: name, bucket: bucket, key: key}, nil
}

// indexBucketName returns the bucket holding the unique index for a
// field: indexed value -> primary key.
func indexBucketName(collection, field string) []byte {
	return []byte(collection + "!uniq!" + field)
}

// EnsureUniqueIndex registers a unique index on the given document
// field and builds it from the existing documents. Idempotent: safe to
// run on every startup. Existing data that violates the constraint
// fails with ErrDuplicateKey rather than being silently dropped.
// Empty field values are not indexed.
func (c *Collection[T]) EnsureUniqueIndex(field string) error {
	if !slices.Contains(c.indexes, field) {
		c.indexes = append(c.indexes, field)
	}

	err := c.store.db.Update(func(tx *bolt.Tx) error {
		idx, err := tx.CreateBucketIfNotExists(indexBucketName(c.name, field))
		if err != nil {
			return err
		}

		// Collect entries first; the bucket must not be mutated while
		// it is being iterated.
		entries := make(map[string]string)

		err = tx.Bucket(c.bucket).ForEach(func(k, v []byte) error {
			val := gjson.GetBytes(v, field).String()
			if val == "" {
				return nil
			}

			if prev, ok := entries[val]; ok && prev != string(k) {
				return fmt.Errorf("%w: %s index %s has value %q on both %q and %q",
					errs.ErrDuplicateKey, c.name, field, val, prev, string(k))
			}

			entries[val] = string(k)

			return nil
		})
		if err != nil {
			return err
		}

		for val, key := range entries {
			if existing := idx.Get([]byte(val)); existing != nil && string(existing) != key {
				return fmt.Errorf("%w: %s index %s value %q", errs.ErrDuplicateKey, c.name, field, val)
			}

			if err := idx.Put([]byte(val), []byte(key)); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("ensuring index %s.%s: %w", c.name, field, err)
	}

	return nil
}

// indexPut writes the index entries for a document stored under key,
// failing with ErrDuplicateKey when an indexed value already belongs
// to a different document. Runs inside the caller's write transaction,
// so the constraint check and the write commit or abort together.
func (c *Collection[T]) indexPut(tx *bolt.Tx, key string, data []byte) error {
	for _, field := range c.indexes {
		val := gjson.GetBytes(data, field).String()
		if val == "" {
			continue
		}

		idx := tx.Bucket(indexBucketName(c.name, field))

		if existing := idx.Get([]byte(val)); existing != nil && string(existing) != key {
			return fmt.Errorf("%w: %s index %s value %q", errs.ErrDuplicateKey, c.name, field, val)
		}

		if err := idx.Put([]byte(val), []byte(key)); err != nil {
			return err
		}
	}

	return nil
}

// indexDel removes the index entries owned by the document stored
// under key.
func (c *Collection[T]) indexDel(tx *bolt.Tx, key string, data []byte) error {
	for _, field := range c.indexes {
		val := gjson.GetBytes(data, field).String()
		if val == "" {
			continue
		}

		idx := tx.Bucket(indexBucketName(c.name, field))

		if existing := idx.Get([]byte(val)); existing != nil && string(existing) == key {
			if err := idx.Delete([]byte(val)); err != nil {
				return err
			}
		}
	}

	return nil
}

// Single returns the one document matching pred. Zero matches is
// ErrNotFound; more than one is ErrAmbiguousResult, surfacing a
// data-integrity bug instead of silently picking a match.
func (c *Collection[T]) Single(ctx context.Context, pred Predicate) (T, error) {
	var (
		doc   T
		count int
	)

	err := c.store.view(ctx, func(tx *bolt.Tx) error {
		return tx.Bucket(c.bucket).ForEach(func(k, v []byte) error {
			if !pred.match(gjson.ParseBytes(v)) {
				return nil
			}

			count++
			if count > 1 {
				return fmt.Errorf("%w: %s: %s", errs.ErrAmbiguousResult, c.name, pred)
			}

			return json.Unmarshal(v, &doc)
		})
	})
	if err != nil {
		var zero T

		return zero, err
	}

	if count == 0 {
		var zero T

		return zero, fmt.Errorf("%w: %s: %s", errs.ErrNotFound, c.name, pred)
	}

	return doc, nil
}

// Find returns every document matching pred, in no particular order.
func (c *Collection[T]) Find(ctx context.Context, pred Predicate) ([]T, error) {
	var docs []T

	err := c.store.view(ctx, func(tx *bolt.Tx) error {
		return tx.Bucket(c.bucket).ForEach(func(k, v []byte) error {
			if !pred.match(gjson.ParseBytes(v)) {
				return nil
			}

			var doc T
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("decoding %s %q: %w", c.name, string(k), err)
			}

			docs = append(docs, doc)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return docs, nil
}

// Insert stores a new document. The primary-key check, the unique
// index checks, and the write all happen in one write transaction, so
// a conflicting concurrent insert cannot slip between check and act.
func (c *Collection[T]) Insert(ctx context.Context, doc T) error {
	key := c.key(doc)
	if key == "" {
		return fmt.Errorf("%s: empty document key", c.name)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s %q: %w", c.name, key, err)
	}

	return c.store.update(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)

		if b.Get([]byte(key)) != nil {
			return fmt.Errorf("%w: %s %q", errs.ErrDuplicateKey, c.name, key)
		}

		if err := c.indexPut(tx, key, data); err != nil {
			return err
		}

		return b.Put([]byte(key), data)
	})
}

// Update replaces the single document matching pred. Zero matches is
// ErrNotFound, more than one ErrAmbiguousResult. Unique indexes are
// re-maintained in the same transaction, including when the update
// moves the document to a new primary key.
func (c *Collection[T]) Update(ctx context.Context, pred Predicate, doc T) error {
	newKey := c.key(doc)
	if newKey == "" {
		return fmt.Errorf("%s: empty document key", c.name)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s %q: %w", c.name, newKey, err)
	}

	return c.store.update(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)

		var (
			oldKey  string
			oldData []byte
			count   int
		)

		err := b.ForEach(func(k, v []byte) error {
			if !pred.match(gjson.ParseBytes(v)) {
				return nil
			}

			count++
			if count > 1 {
				return fmt.Errorf("%w: %s: %s", errs.ErrAmbiguousResult, c.name, pred)
			}

			oldKey = string(k)
			oldData = slices.Clone(v)

			return nil
		})
		if err != nil {
			return err
		}

		if count == 0 {
			return fmt.Errorf("%w: %s: %s", errs.ErrNotFound, c.name, pred)
		}

		if err := c.indexDel(tx, oldKey, oldData); err != nil {
			return err
		}

		if oldKey != newKey {
			if b.Get([]byte(newKey)) != nil {
				return fmt.Errorf("%w: %s %q", errs.ErrDuplicateKey, c.name, newKey)
			}

			if err := b.Delete([]byte(oldKey)); err != nil {
				return err
			}
		}

		if err := c.indexPut(tx, newKey, data); err != nil {
			return err
		}

		return b.Put([]byte(newKey), data)
	})
}

// Remove deletes every document matching pred in one write
// transaction and returns the number removed. All-or-nothing: a
// failure aborts the whole batch.
func (c *Collection[T]) Remove(ctx context.Context, pred Predicate) (int, error) {
	removed := 0

	err := c.store.update(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)

		type victim struct {
			key  string
			data []byte
		}

		var victims []victim

		err := b.ForEach(func(k, v []byte) error {
			if pred.match(gjson.ParseBytes(v)) {
				victims = append(victims, victim{key: string(k), data: slices.Clone(v)})
			}

			return nil
		})
		if err != nil {
			return err
		}

		for _, vic := range victims {
			if err := c.indexDel(tx, vic.key, vic.data); err != nil {
				return err
			}

			if err := b.Delete([]byte(vic.key)); err != nil {
				return err
			}
		}

		removed = len(victims)

		return nil
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}

// Get returns the document stored under the exact primary key, with
// ok reporting whether it exists.
func (c *Collection[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var (
		doc   T
		found bool
	)

	err := c.store.view(ctx, func(tx *bolt.Tx) error {
		v := tx.Bucket(c.bucket).Get([]byte(key))
		if v == nil {
			return nil
		}

		found = true

		return json.Unmarshal(v, &doc)
	})
	if err != nil {
		var zero T

		return zero, false, err
	}

	return doc, found, nil
}

// GetByIndex returns the document whose indexed field holds the exact
// value. The field must have been registered with EnsureUniqueIndex.
func (c *Collection[T]) GetByIndex(ctx context.Context, field, value string) (T, bool, error) {
	var (
		doc   T
		found bool
	)

	if !slices.Contains(c.indexes, field) {
		var zero T

		return zero, false, fmt.Errorf("%s: no unique index on %s", c.name, field)
	}

	if value == "" {
		var zero T

		return zero, false, nil
	}

	err := c.store.view(ctx, func(tx *bolt.Tx) error {
		key := tx.Bucket(indexBucketName(c.name, field)).Get([]byte(value))
		if key == nil {
			return nil
		}

		v := tx.Bucket(c.bucket).Get(key)
		if v == nil {
			return nil
		}

		found = true

		return json.Unmarshal(v, &doc)
	})
	if err != nil {
		var zero T

		return zero, false, err
	}

	return doc, found, nil
}

// Delete removes the document under key along with its index entries.
// Idempotent: deleting an absent key is not an error.
func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	return c.store.update(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)

		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}

		if err := c.indexDel(tx, key, v); err != nil {
			return err
		}

		return b.Delete([]byte(key))
	})
}

// Take atomically removes and returns the document under key. The
// read and the delete share one write transaction, so of N concurrent
// takers exactly one observes the document; the rest observe absent.
// This is the contract single-use grant redemption relies on.
func (c *Collection[T]) Take(ctx context.Context, key string) (T, bool, error) {
	var (
		doc   T
		found bool
	)

	err := c.store.update(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)

		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}

		if err := json.Unmarshal(v, &doc); err != nil {
			return fmt.Errorf("decoding %s %q: %w", c.name, key, err)
		}

		if err := c.indexDel(tx, key, v); err != nil {
			return err
		}

		if err := b.Delete([]byte(key)); err != nil {
			return err
		}

		found = true

		return nil
	})
	if err != nil {
		var zero T

		return zero, false, err
	}

	return doc, found, nil
}
