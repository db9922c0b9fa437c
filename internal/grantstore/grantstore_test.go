package grantstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/idp-store/internal/docstore"
	errs "github.com/alexjbarnes/idp-store/internal/errors"
	"github.com/alexjbarnes/idp-store/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testGrantStore opens a grant store over a temp database with a long
// reap interval, so sweeps never interfere with test assertions.
func testGrantStore(t *testing.T) *Store {
	t.Helper()

	db, err := docstore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := New(db, testLogger(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(s.Stop)

	return s
}

func testGrant(key, grantType string) models.PersistedGrant {
	now := time.Now()

	return models.PersistedGrant{
		Key:       key,
		Type:      grantType,
		ClientID:  "cli1",
		SubjectID: "sub1",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
		Data:      `{"payload":true}`,
	}
}

// --- Create / GetByKey ---

func TestCreateGetRoundTrip(t *testing.T) {
	s := testGrantStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testGrant("k1", models.GrantTypeAuthorizationCode)))

	got, err := s.GetByKey(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.GrantTypeAuthorizationCode, got.Type)
	assert.Equal(t, `{"payload":true}`, got.Data)
}

func TestGetByKey_UnknownIsAbsent(t *testing.T) {
	s := testGrantStore(t)

	got, err := s.GetByKey(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreate_DuplicateKey(t *testing.T) {
	s := testGrantStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testGrant("k1", models.GrantTypeRefreshToken)))

	err := s.Create(ctx, testGrant("k1", models.GrantTypeRefreshToken))
	assert.ErrorIs(t, err, errs.ErrDuplicateKey)
}

func TestCreate_RejectsEmptyKey(t *testing.T) {
	s := testGrantStore(t)

	g := testGrant("", models.GrantTypeRefreshToken)
	assert.Error(t, s.Create(context.Background(), g))
}

func TestCreate_RejectsExpiryBeforeCreation(t *testing.T) {
	s := testGrantStore(t)

	g := testGrant("k1", models.GrantTypeRefreshToken)
	g.ExpiresAt = g.CreatedAt.Add(-time.Second)

	assert.Error(t, s.Create(context.Background(), g))
}

// --- Expiry as derived read-time state ---

func TestGetByKey_ExpiredIsAbsent(t *testing.T) {
	s := testGrantStore(t)
	ctx := context.Background()

	g := testGrant("k1", models.GrantTypeRefreshToken)
	g.CreatedAt = time.Now().Add(-2 * time.Hour)
	g.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.Create(ctx, g))

	// Physically present (the reaper has not run), logically absent.
	got, err := s.GetByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetByKey_ExpiryElapses(t *testing.T) {
	s := testGrantStore(t)
	ctx := context.Background()

	g := testGrant("k1", models.GrantTypeDeviceCode)
	g.ExpiresAt = time.Now().Add(50 * time.Millisecond)
	require.NoError(t, s.Create(ctx, g))

	got, err := s.GetByKey(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got, "grant is live before expiry")

	time.Sleep(60 * time.Millisecond)

	got, err = s.GetByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got, "grant is absent after expiry without an explicit delete")
}

// --- Consume ---

func TestConsume_SingleUse(t *testing.T) {
	s := testGrantStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testGrant("code1", models.GrantTypeAuthorizationCode)))

	got, err := s.Consume(ctx, "code1")
	require.NoError(t, err)
	require.NotNil(t, got)

	second, err := s.Consume(ctx, "code1")
	require.NoError(t, err)
	assert.Nil(t, second, "second redemption observes absent")
}

func TestConsume_ExpiredIsAbsent(t *testing.T) {
	s := testGrantStore(t)
	ctx := context.Background()

	g := testGrant("code1", models.GrantTypeAuthorizationCode)
	g.CreatedAt = time.Now().Add(-2 * time.Hour)
	g.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.Create(ctx, g))

	got, err := s.Consume(ctx, "code1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestConsume_ConcurrentRedemptionSingleWinner(t *testing.T) {
	s := testGrantStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testGrant("race", models.GrantTypeAuthorizationCode)))

	const redeemers = 8

	var (
		wg   sync.WaitGroup
		wins = make(chan *models.PersistedGrant, redeemers)
	)

	for range redeemers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			g, err := s.Consume(ctx, "race")
			assert.NoError(t, err)

			if g != nil {
				wins <- g
			}
		}()
	}

	wg.Wait()
	close(wins)

	var winners []*models.PersistedGrant
	for g := range wins {
		winners = append(winners, g)
	}

	require.Len(t, winners, 1, "exactly one redeemer observes the payload")
	assert.Equal(t, `{"payload":true}`, winners[0].Data)
}

// --- RemoveByKey / RemoveAll ---

func TestRemoveByKey_Idempotent(t *testing.T) {
	s := testGrantStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testGrant("k1", models.GrantTypeRefreshToken)))
	require.NoError(t, s.RemoveByKey(ctx, "k1"))
	require.NoError(t, s.RemoveByKey(ctx, "k1"), "removing an absent key is not an error")

	got, err := s.GetByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got, "no resurrection after removal")
}

func TestRemoveAll_BySubjectAndClient(t *testing.T) {
	s := testGrantStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testGrant("k1", models.GrantTypeRefreshToken)))
	require.NoError(t, s.Create(ctx, testGrant("k2", models.GrantTypeUserConsent)))

	other := testGrant("k3", models.GrantTypeRefreshToken)
	other.SubjectID = "sub2"
	require.NoError(t, s.Create(ctx, other))

	n, err := s.RemoveAll(ctx, "sub1", "cli1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.GetByKey(ctx, "k3")
	require.NoError(t, err)
	assert.NotNil(t, got, "other subjects' grants stay active")
}

func TestRemoveAll_FilteredByType(t *testing.T) {
	s := testGrantStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testGrant("k1", models.GrantTypeRefreshToken)))
	require.NoError(t, s.Create(ctx, testGrant("k2", models.GrantTypeUserConsent)))

	n, err := s.RemoveAll(ctx, "sub1", "cli1", models.GrantTypeRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetByKey(ctx, "k2")
	require.NoError(t, err)
	assert.NotNil(t, got, "consent record survives a refresh-token-only revocation")
}

func TestRemoveAll_RequiresSubjectAndClient(t *testing.T) {
	s := testGrantStore(t)

	_, err := s.RemoveAll(context.Background(), "", "cli1")
	assert.Error(t, err)

	_, err = s.RemoveAll(context.Background(), "sub1", "")
	assert.Error(t, err)
}

// --- Reaper ---

func TestRemoveExpired(t *testing.T) {
	s := testGrantStore(t)
	ctx := context.Background()

	expired := testGrant("old", models.GrantTypeRefreshToken)
	expired.CreatedAt = time.Now().Add(-2 * time.Hour)
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.Create(ctx, expired))
	require.NoError(t, s.Create(ctx, testGrant("live", models.GrantTypeRefreshToken)))

	n, err := s.RemoveExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetByKey(ctx, "live")
	require.NoError(t, err)
	assert.NotNil(t, got)
}
