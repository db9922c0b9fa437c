// Package models defines the entity types persisted by the stores.
// The JSON encoding of each type is the stored document, so field tags
// double as the field paths that docstore predicates address.
package models

import "time"

// Grant types a PersistedGrant can carry.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeDeviceCode        = "device_code"
	GrantTypeUserConsent       = "user_consent"
)

// Secret is a hashed client secret with an optional expiration.
// A zero Expiration means the secret never expires.
type Secret struct {
	Hash       string    `json:"hash"`
	Expiration time.Time `json:"expiration,omitzero"`
}

// Client is a registered OAuth2 relying party. Immutable at request
// time; mutated only through administrative registration.
type Client struct {
	ClientID           string   `json:"client_id"`
	ClientName         string   `json:"client_name,omitempty"`
	AllowedGrantTypes  []string `json:"allowed_grant_types"`
	AllowedScopes      []string `json:"allowed_scopes,omitempty"`
	RedirectURIs       []string `json:"redirect_uris,omitempty"`
	Secrets            []Secret `json:"secrets,omitempty"`
	RequireConsent     bool     `json:"require_consent"`
	AllowOfflineAccess bool     `json:"allow_offline_access"`
}

// Resource is a named set of scopes and claims exposed by an API or
// identity provider. Read-mostly.
type Resource struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
	UserClaims  []string `json:"user_claims,omitempty"`
}

// PersistedGrant backs an OAuth2/OIDC artifact: an authorization code,
// refresh token, device code, or consent record. Key is the primary
// lookup key, typically a hash of the opaque token value. SubjectID is
// empty for client-credentials flows. Data carries the serialized
// protocol-specific payload; this layer never interprets it.
type PersistedGrant struct {
	Key       string    `json:"key"`
	Type      string    `json:"type"`
	ClientID  string    `json:"client_id"`
	SubjectID string    `json:"subject_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Data      string    `json:"data"`
}

// Expired reports whether the grant is logically expired at the given
// instant. Readers treat an expired grant as absent even while it is
// still physically present.
func (g *PersistedGrant) Expired(now time.Time) bool {
	return !g.ExpiresAt.After(now)
}

// User is an end-user account owned by the authentication subsystem.
// Referenced by subject identifier from PersistedGrant but not
// otherwise coupled to token issuance.
type User struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	NormalizedEmail    string    `json:"normalized_email"`
	UserName           string    `json:"user_name"`
	NormalizedUserName string    `json:"normalized_user_name"`
	PasswordHash       string    `json:"password_hash,omitempty"`
	AccessFailedCount  int       `json:"access_failed_count"`
	LockoutEnd         time.Time `json:"lockout_end,omitzero"`
}

// LockedOut reports whether the account lockout window is still open
// at the given instant. Lockout policy itself lives in the
// authentication subsystem; this layer only stores the counters.
func (u *User) LockedOut(now time.Time) bool {
	return u.LockoutEnd.After(now)
}

// Role is a named role assignable to users.
type Role struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	NormalizedName string `json:"normalized_name"`
}
