// Package seed loads declarative client and resource registrations
// from a YAML file and applies them to the stores. Seeding is an
// upsert: entries replace any previous registration under the same
// identifier, so re-applying the same file is harmless.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexjbarnes/idp-store/internal/clientstore"
	"github.com/alexjbarnes/idp-store/internal/models"
)

//go:generate go run go.uber.org/mock/mockgen -source=seed.go -destination=mock_registrar_test.go -package=seed

// Registrar is the subset of the client and resource stores that
// seeding needs. Extracted for testability.
type Registrar interface {
	UpsertClient(ctx context.Context, client models.Client) error
	RegisterAPI(ctx context.Context, resource models.Resource) error
	RegisterIdentity(ctx context.Context, resource models.Resource) error
}

// File is the parsed seed document.
type File struct {
	Clients           []ClientEntry   `yaml:"clients"`
	APIResources      []ResourceEntry `yaml:"api_resources"`
	IdentityResources []ResourceEntry `yaml:"identity_resources"`
}

// ClientEntry declares one client registration. Secrets are listed in
// plaintext in the seed file and hashed before storage; the plaintext
// never reaches the store.
type ClientEntry struct {
	ClientID           string        `yaml:"client_id"`
	ClientName         string        `yaml:"client_name"`
	AllowedGrantTypes  []string      `yaml:"allowed_grant_types"`
	AllowedScopes      []string      `yaml:"allowed_scopes"`
	RedirectURIs       []string      `yaml:"redirect_uris"`
	Secrets            []SecretEntry `yaml:"secrets"`
	RequireConsent     bool          `yaml:"require_consent"`
	AllowOfflineAccess bool          `yaml:"allow_offline_access"`
}

// SecretEntry declares one client secret. A zero Expiration means the
// secret never expires.
type SecretEntry struct {
	Value      string    `yaml:"value"`
	Expiration time.Time `yaml:"expiration"`
}

// ResourceEntry declares one API or identity resource registration.
type ResourceEntry struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Scopes      []string `yaml:"scopes"`
	UserClaims  []string `yaml:"user_claims"`
}

// Load reads and validates a seed file.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file %s: %w", path, err)
	}

	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid seed file %s: %w", path, err)
	}

	return &f, nil
}

func (f *File) validate() error {
	seenClients := make(map[string]bool, len(f.Clients))

	for i, c := range f.Clients {
		if c.ClientID == "" {
			return fmt.Errorf("clients[%d]: client_id is required", i)
		}

		if seenClients[c.ClientID] {
			return fmt.Errorf("clients[%d]: duplicate client_id %q", i, c.ClientID)
		}

		seenClients[c.ClientID] = true

		for j, s := range c.Secrets {
			if s.Value == "" {
				return fmt.Errorf("clients[%d].secrets[%d]: value is required", i, j)
			}
		}
	}

	for i, r := range f.APIResources {
		if r.Name == "" {
			return fmt.Errorf("api_resources[%d]: name is required", i)
		}
	}

	for i, r := range f.IdentityResources {
		if r.Name == "" {
			return fmt.Errorf("identity_resources[%d]: name is required", i)
		}
	}

	return nil
}

// Apply registers every entry in the file. Stops on the first failure
// so a broken seed file never half-applies silently.
func Apply(ctx context.Context, f *File, r Registrar, logger *slog.Logger) error {
	for _, entry := range f.Clients {
		if err := r.UpsertClient(ctx, entry.client()); err != nil {
			return fmt.Errorf("seeding client %s: %w", entry.ClientID, err)
		}
	}

	for _, entry := range f.APIResources {
		if err := r.RegisterAPI(ctx, entry.resource()); err != nil {
			return fmt.Errorf("seeding api resource %s: %w", entry.Name, err)
		}
	}

	for _, entry := range f.IdentityResources {
		if err := r.RegisterIdentity(ctx, entry.resource()); err != nil {
			return fmt.Errorf("seeding identity resource %s: %w", entry.Name, err)
		}
	}

	logger.Info("seed applied",
		slog.Int("clients", len(f.Clients)),
		slog.Int("api_resources", len(f.APIResources)),
		slog.Int("identity_resources", len(f.IdentityResources)),
	)

	return nil
}

func (e ClientEntry) client() models.Client {
	secrets := make([]models.Secret, 0, len(e.Secrets))
	for _, s := range e.Secrets {
		secrets = append(secrets, models.Secret{
			Hash:       clientstore.SecretHash(s.Value),
			Expiration: s.Expiration,
		})
	}

	return models.Client{
		ClientID:           e.ClientID,
		ClientName:         e.ClientName,
		AllowedGrantTypes:  e.AllowedGrantTypes,
		AllowedScopes:      e.AllowedScopes,
		RedirectURIs:       e.RedirectURIs,
		Secrets:            secrets,
		RequireConsent:     e.RequireConsent,
		AllowOfflineAccess: e.AllowOfflineAccess,
	}
}

func (e ResourceEntry) resource() models.Resource {
	return models.Resource{
		Name:        e.Name,
		DisplayName: e.DisplayName,
		Scopes:      e.Scopes,
		UserClaims:  e.UserClaims,
	}
}
