// Package clientstore resolves registered OAuth2 clients by their
// unique client identifier. Registrations are administrative; request
// paths only read.
package clientstore

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexjbarnes/idp-store/internal/docstore"
	errs "github.com/alexjbarnes/idp-store/internal/errors"
	"github.com/alexjbarnes/idp-store/internal/models"
)

// collectionName is the backing collection for client registrations.
const collectionName = "Clients"

// Store looks up and mutates client registrations.
type Store struct {
	clients *docstore.Collection[models.Client]
	logger  *slog.Logger
}

// New resolves the Clients collection. Call once at startup and share
// the handle.
func New(db *docstore.Store, logger *slog.Logger) (*Store, error) {
	clients, err := docstore.NewCollection(db, collectionName, func(c models.Client) string { return c.ClientID })
	if err != nil {
		return nil, err
	}

	return &Store{clients: clients, logger: logger}, nil
}

// FindClientByID returns the client registered under the exact
// identifier, or nil when unknown. Absence is not an error: the token
// endpoint treats unknown and malformed identifiers identically, so
// nothing here distinguishes them. A multiple-match on the unique
// identifier is a data-integrity fault and is surfaced, never
// first-matched.
func (s *Store) FindClientByID(ctx context.Context, clientID string) (*models.Client, error) {
	client, err := s.clients.Single(ctx, docstore.Eq("client_id", clientID))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}

		if errors.Is(err, errs.ErrAmbiguousResult) {
			s.logger.Error("duplicate client registration detected",
				slog.String("client_id", clientID))
		}

		return nil, fmt.Errorf("finding client: %w", err)
	}

	return &client, nil
}

// Register stores a new client registration. Fails with
// ErrDuplicateKey if the identifier is already taken.
func (s *Store) Register(ctx context.Context, client models.Client) error {
	if client.ClientID == "" {
		return fmt.Errorf("client id is required")
	}

	if err := s.clients.Insert(ctx, client); err != nil {
		return fmt.Errorf("registering client %q: %w", client.ClientID, err)
	}

	s.logger.Info("client registered", slog.String("client_id", client.ClientID))

	return nil
}

// Upsert registers a client or replaces an existing registration with
// the same identifier. Used by administrative seeding, where re-applying
// the same configuration must be safe.
func (s *Store) Upsert(ctx context.Context, client models.Client) error {
	if client.ClientID == "" {
		return fmt.Errorf("client id is required")
	}

	err := s.clients.Insert(ctx, client)
	if errors.Is(err, errs.ErrDuplicateKey) {
		err = s.clients.Update(ctx, docstore.Eq("client_id", client.ClientID), client)
	}

	if err != nil {
		return fmt.Errorf("upserting client %q: %w", client.ClientID, err)
	}

	return nil
}

// Deregister removes a client registration. Idempotent.
func (s *Store) Deregister(ctx context.Context, clientID string) error {
	if err := s.clients.Delete(ctx, clientID); err != nil {
		return fmt.Errorf("deregistering client %q: %w", clientID, err)
	}

	return nil
}

// SecretHash returns the stored form of a client secret: SHA-256 hex.
// Shared secrets are never persisted in the clear.
func SecretHash(secret string) string {
	h := sha256.Sum256([]byte(secret))

	return hex.EncodeToString(h[:])
}

// ValidateSecret reports whether the presented secret matches any of
// the client's unexpired secrets. Every stored secret is compared so
// timing does not reveal which one matched.
func ValidateSecret(client *models.Client, secret string, now time.Time) bool {
	presented := []byte(SecretHash(secret))
	valid := false

	for _, s := range client.Secrets {
		if !s.Expiration.IsZero() && !s.Expiration.After(now) {
			continue
		}

		if subtle.ConstantTimeCompare(presented, []byte(s.Hash)) == 1 {
			valid = true
		}
	}

	return valid
}
