// Package grantstore is the lifecycle store for persisted grants:
// authorization codes, refresh tokens, device codes, and consent
// records. Keys are globally unique; single-use grants are redeemed
// with an atomic take so a concurrent second redemption observes
// absent, never a stale payload.
package grantstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexjbarnes/idp-store/internal/docstore"
	errs "github.com/alexjbarnes/idp-store/internal/errors"
	"github.com/alexjbarnes/idp-store/internal/models"
)

// collectionName is the backing collection for persisted grants.
const collectionName = "PersistedGrants"

// defaultReapInterval controls how often physically-expired grants are
// purged. Expired grants are already absent to every reader, so the
// reaper only reclaims space; correctness never depends on it.
const defaultReapInterval = 5 * time.Minute

// Store manages the persisted grant lifecycle.
type Store struct {
	grants *docstore.Collection[models.PersistedGrant]
	logger *slog.Logger

	reapInterval time.Duration
	stopReap     chan struct{}
}

// New resolves the PersistedGrants collection and starts the
// background reaper. A non-positive reapInterval falls back to the
// default. Call Stop to terminate the reaper goroutine.
func New(db *docstore.Store, logger *slog.Logger, reapInterval time.Duration) (*Store, error) {
	grants, err := docstore.NewCollection(db, collectionName, func(g models.PersistedGrant) string { return g.Key })
	if err != nil {
		return nil, err
	}

	if reapInterval <= 0 {
		reapInterval = defaultReapInterval
	}

	s := &Store{
		grants:       grants,
		logger:       logger,
		reapInterval: reapInterval,
		stopReap:     make(chan struct{}),
	}

	go s.reapLoop()

	return s, nil
}

// Stop terminates the background reaper goroutine.
func (s *Store) Stop() {
	close(s.stopReap)
}

func (s *Store) reapLoop() {
	ticker := time.NewTicker(s.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.RemoveExpired(context.Background())
			if err != nil {
				s.logger.Warn("grant reaper sweep failed", slog.String("error", err.Error()))
				continue
			}

			if n > 0 {
				s.logger.Debug("reaped expired grants", slog.Int("count", n))
			}

		case <-s.stopReap:
			return
		}
	}
}

// Create stores a new grant. The key must be unique: a duplicate
// implies a broken key generator or an attack, never legitimate reuse,
// so the conflict is surfaced as ErrDuplicateKey and logged.
func (s *Store) Create(ctx context.Context, grant models.PersistedGrant) error {
	if grant.Key == "" {
		return fmt.Errorf("grant key is required")
	}

	if grant.ExpiresAt.Before(grant.CreatedAt) {
		return fmt.Errorf("grant %q expires before creation", grant.Key)
	}

	if err := s.grants.Insert(ctx, grant); err != nil {
		if errors.Is(err, errs.ErrDuplicateKey) {
			s.logger.Warn("grant key collision",
				slog.String("type", grant.Type),
				slog.String("client_id", grant.ClientID))
		}

		return fmt.Errorf("creating grant: %w", err)
	}

	return nil
}

// GetByKey returns the grant stored under the exact key, or nil when
// the key is unknown or the grant is logically expired. Expiry is a
// read-time decision: a physically present but expired grant is absent
// to every caller, whether or not the reaper has run.
func (s *Store) GetByKey(ctx context.Context, key string) (*models.PersistedGrant, error) {
	grant, ok, err := s.grants.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("getting grant: %w", err)
	}

	if !ok || grant.Expired(time.Now()) {
		return nil, nil
	}

	return &grant, nil
}

// Consume atomically removes and returns the grant under key:
// single-use redemption for authorization and device codes. Of N
// concurrent consumers exactly one observes the payload; the rest, and
// anyone redeeming an expired grant, observe nil.
func (s *Store) Consume(ctx context.Context, key string) (*models.PersistedGrant, error) {
	grant, ok, err := s.grants.Take(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("consuming grant: %w", err)
	}

	// An expired grant is still removed by the take, but the caller
	// must see it as absent.
	if !ok || grant.Expired(time.Now()) {
		return nil, nil
	}

	return &grant, nil
}

// RemoveByKey removes the grant under key. Idempotent: removing an
// absent key is not an error, and a removed key is never retrievable
// again.
func (s *Store) RemoveByKey(ctx context.Context, key string) error {
	if err := s.grants.Delete(ctx, key); err != nil {
		return fmt.Errorf("removing grant: %w", err)
	}

	return nil
}

// RemoveAll bulk-revokes every grant issued to the subject for the
// client, optionally narrowed to the given grant types. The removal is
// one atomic write: no partial revocation is ever left active. Returns
// the number of grants removed.
func (s *Store) RemoveAll(ctx context.Context, subjectID, clientID string, types ...string) (int, error) {
	if subjectID == "" || clientID == "" {
		return 0, fmt.Errorf("subject id and client id are required")
	}

	preds := []docstore.Predicate{
		docstore.Eq("subject_id", subjectID),
		docstore.Eq("client_id", clientID),
	}
	if len(types) > 0 {
		preds = append(preds, docstore.In("type", types...))
	}

	n, err := s.grants.Remove(ctx, docstore.And(preds...))
	if err != nil {
		return 0, fmt.Errorf("removing grants: %w", err)
	}

	if n > 0 {
		s.logger.Info("grants revoked",
			slog.String("subject_id", subjectID),
			slog.String("client_id", clientID),
			slog.Int("count", n))
	}

	return n, nil
}

// RemoveExpired purges grants whose expiration has passed. Invoked
// periodically by the reaper; safe to call manually.
func (s *Store) RemoveExpired(ctx context.Context) (int, error) {
	n, err := s.grants.Remove(ctx, docstore.Before("expires_at", time.Now()))
	if err != nil {
		return 0, fmt.Errorf("removing expired grants: %w", err)
	}

	return n, nil
}
