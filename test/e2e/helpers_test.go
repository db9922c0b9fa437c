package e2e_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/idp-store/internal/clientstore"
	"github.com/alexjbarnes/idp-store/internal/docstore"
	"github.com/alexjbarnes/idp-store/internal/grantstore"
	"github.com/alexjbarnes/idp-store/internal/identitystore"
	"github.com/alexjbarnes/idp-store/internal/models"
	"github.com/alexjbarnes/idp-store/internal/resourcestore"
	"github.com/alexjbarnes/idp-store/internal/seed"
)

const (
	testClientID = "web-app"
	testSecret   = "correct-horse-battery-staple"
)

const testSeedYAML = `clients:
  - client_id: web-app
    client_name: Web App
    allowed_grant_types: [authorization_code, refresh_token]
    allowed_scopes: [openid, profile, api1.read]
    redirect_uris: [https://app.example.com/callback]
    secrets:
      - value: correct-horse-battery-staple
    allow_offline_access: true
api_resources:
  - name: api1
    display_name: API One
    scopes: [api1.read, api1.write]
identity_resources:
  - name: profile
    scopes: [profile]
    user_claims: [name, family_name]
`

// harness wires every store over one temp database, the way the daemon
// does at startup.
type harness struct {
	clients   *clientstore.Store
	resources *resourcestore.Store
	grants    *grantstore.Store
	identity  *identitystore.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := docstore.Open(filepath.Join(t.TempDir(), "idp-store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clients, err := clientstore.New(db, logger)
	require.NoError(t, err)

	resources, err := resourcestore.New(db, logger)
	require.NoError(t, err)

	grants, err := grantstore.New(db, logger, time.Hour)
	require.NoError(t, err)
	t.Cleanup(grants.Stop)

	identity, err := identitystore.New(db, logger)
	require.NoError(t, err)

	return &harness{
		clients:   clients,
		resources: resources,
		grants:    grants,
		identity:  identity,
	}
}

// applySeed loads the standard seed document into the stores.
func (h *harness) applySeed(t *testing.T) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testSeedYAML), 0o600))

	f, err := seed.Load(path)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, seed.Apply(context.Background(), f, h, logger))
}

func (h *harness) UpsertClient(ctx context.Context, client models.Client) error {
	return h.clients.Upsert(ctx, client)
}

func (h *harness) RegisterAPI(ctx context.Context, resource models.Resource) error {
	return h.resources.RegisterAPI(ctx, resource)
}

func (h *harness) RegisterIdentity(ctx context.Context, resource models.Resource) error {
	return h.resources.RegisterIdentity(ctx, resource)
}
