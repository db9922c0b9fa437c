// Package resourcestore resolves API and identity resource definitions
// by name or by requested scope set. Resources validate and enrich
// token contents; they are read-mostly and mutated only by
// administrative configuration.
package resourcestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alexjbarnes/idp-store/internal/docstore"
	errs "github.com/alexjbarnes/idp-store/internal/errors"
	"github.com/alexjbarnes/idp-store/internal/models"
)

// Backing collections. API and identity resources share a shape but
// never a namespace.
const (
	apiCollection      = "ApiResources"
	identityCollection = "IdentityResources"
)

// Store looks up and mutates resource definitions.
type Store struct {
	api      *docstore.Collection[models.Resource]
	identity *docstore.Collection[models.Resource]
	logger   *slog.Logger
}

// New resolves both resource collections. Call once at startup and
// share the handle.
func New(db *docstore.Store, logger *slog.Logger) (*Store, error) {
	keyFn := func(r models.Resource) string { return r.Name }

	api, err := docstore.NewCollection(db, apiCollection, keyFn)
	if err != nil {
		return nil, err
	}

	identity, err := docstore.NewCollection(db, identityCollection, keyFn)
	if err != nil {
		return nil, err
	}

	return &Store{api: api, identity: identity, logger: logger}, nil
}

// FindAPIResourceByName returns the API resource registered under the
// exact name, or nil when unknown.
func (s *Store) FindAPIResourceByName(ctx context.Context, name string) (*models.Resource, error) {
	resource, err := s.api.Single(ctx, docstore.Eq("name", name))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}

		if errors.Is(err, errs.ErrAmbiguousResult) {
			s.logger.Error("duplicate api resource detected", slog.String("name", name))
		}

		return nil, fmt.Errorf("finding api resource: %w", err)
	}

	return &resource, nil
}

// FindAPIResourcesByScope returns the union of API resources exposing
// any of the requested scopes, each resource exactly once and in no
// particular order. An empty scope set returns nothing, never all
// resources.
func (s *Store) FindAPIResourcesByScope(ctx context.Context, scopeNames []string) ([]models.Resource, error) {
	return findByScope(ctx, s.api, scopeNames)
}

// FindIdentityResourcesByScope is FindAPIResourcesByScope over the
// identity resource collection.
func (s *Store) FindIdentityResourcesByScope(ctx context.Context, scopeNames []string) ([]models.Resource, error) {
	return findByScope(ctx, s.identity, scopeNames)
}

func findByScope(ctx context.Context, c *docstore.Collection[models.Resource], scopeNames []string) ([]models.Resource, error) {
	if len(scopeNames) == 0 {
		return nil, nil
	}

	resources, err := c.Find(ctx, docstore.AnyOf("scopes", scopeNames...))
	if err != nil {
		return nil, fmt.Errorf("finding resources by scope: %w", err)
	}

	return resources, nil
}

// RegisterAPI stores or replaces an API resource definition.
func (s *Store) RegisterAPI(ctx context.Context, resource models.Resource) error {
	return upsert(ctx, s.api, resource)
}

// RegisterIdentity stores or replaces an identity resource definition.
func (s *Store) RegisterIdentity(ctx context.Context, resource models.Resource) error {
	return upsert(ctx, s.identity, resource)
}

func upsert(ctx context.Context, c *docstore.Collection[models.Resource], resource models.Resource) error {
	if resource.Name == "" {
		return fmt.Errorf("resource name is required")
	}

	err := c.Insert(ctx, resource)
	if errors.Is(err, errs.ErrDuplicateKey) {
		err = c.Update(ctx, docstore.Eq("name", resource.Name), resource)
	}

	if err != nil {
		return fmt.Errorf("registering resource %q: %w", resource.Name, err)
	}

	return nil
}
