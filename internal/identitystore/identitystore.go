// Package identitystore stores end-user accounts and roles for the
// authentication subsystem. Uniqueness of the normalized email,
// username, and role name is enforced by unique indexes in the backing
// store, not by application pre-checks, closing the race between check
// and insert. Grants reference users by subject identifier only; the
// two stores are otherwise uncoupled.
package identitystore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"

	"github.com/alexjbarnes/idp-store/internal/docstore"
	"github.com/alexjbarnes/idp-store/internal/models"
)

// Backing collections. The names are fixed by convention shared with
// the authentication subsystem.
const (
	usersCollection = "Users"
	rolesCollection = "Roles"
)

// Indexed fields carrying uniqueness constraints.
const (
	indexNormalizedEmail    = "normalized_email"
	indexNormalizedUserName = "normalized_user_name"
	indexNormalizedRoleName = "normalized_name"
)

// Store manages user accounts and roles.
type Store struct {
	users  *docstore.Collection[models.User]
	roles  *docstore.Collection[models.Role]
	logger *slog.Logger
}

// New resolves the Users and Roles collections and ensures their
// unique indexes. Index creation is idempotent and runs on every
// startup.
func New(db *docstore.Store, logger *slog.Logger) (*Store, error) {
	users, err := docstore.NewCollection(db, usersCollection, func(u models.User) string { return u.ID })
	if err != nil {
		return nil, err
	}

	roles, err := docstore.NewCollection(db, rolesCollection, func(r models.Role) string { return r.ID })
	if err != nil {
		return nil, err
	}

	for _, field := range []string{indexNormalizedEmail, indexNormalizedUserName} {
		if err := users.EnsureUniqueIndex(field); err != nil {
			return nil, err
		}
	}

	if err := roles.EnsureUniqueIndex(indexNormalizedRoleName); err != nil {
		return nil, err
	}

	return &Store{users: users, roles: roles, logger: logger}, nil
}

// Normalize returns the canonical form of an email, username, or role
// name: Unicode case folding, so lookups stay exact-match while
// "User@Example.COM" and "user@example.com" collapse to one identity.
func Normalize(s string) string {
	return cases.Fold().String(s)
}

// CreateUser stores a new account. The ID is assigned here; the
// normalized email and username are computed at write time so the
// unique indexes see canonical values. Fails with ErrDuplicateKey when
// either normalized value is already taken.
func (s *Store) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	if user.ID != "" {
		return nil, fmt.Errorf("user id already assigned")
	}

	if user.Email == "" || user.UserName == "" {
		return nil, fmt.Errorf("email and user name are required")
	}

	user.ID = uuid.NewString()
	user.NormalizedEmail = Normalize(user.Email)
	user.NormalizedUserName = Normalize(user.UserName)

	if err := s.users.Insert(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user created", slog.String("id", user.ID))

	return &user, nil
}

// UpdateUser replaces an existing account, recomputing the normalized
// fields and re-maintaining the unique indexes atomically.
func (s *Store) UpdateUser(ctx context.Context, user models.User) error {
	if user.ID == "" {
		return fmt.Errorf("user id is required")
	}

	user.NormalizedEmail = Normalize(user.Email)
	user.NormalizedUserName = Normalize(user.UserName)

	if err := s.users.Update(ctx, docstore.Eq("id", user.ID), user); err != nil {
		return fmt.Errorf("updating user: %w", err)
	}

	return nil
}

// FindByNormalizedEmail returns the account owning the email, or nil
// when unknown. The input is folded before lookup, so callers may pass
// the address as entered.
func (s *Store) FindByNormalizedEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok, err := s.users.GetByIndex(ctx, indexNormalizedEmail, Normalize(email))
	if err != nil {
		return nil, fmt.Errorf("finding user by email: %w", err)
	}

	if !ok {
		return nil, nil
	}

	return &user, nil
}

// FindByNormalizedUserName returns the account owning the username, or
// nil when unknown.
func (s *Store) FindByNormalizedUserName(ctx context.Context, userName string) (*models.User, error) {
	user, ok, err := s.users.GetByIndex(ctx, indexNormalizedUserName, Normalize(userName))
	if err != nil {
		return nil, fmt.Errorf("finding user by name: %w", err)
	}

	if !ok {
		return nil, nil
	}

	return &user, nil
}

// CreateRole stores a new role, enforcing uniqueness on the normalized
// name.
func (s *Store) CreateRole(ctx context.Context, role models.Role) (*models.Role, error) {
	if role.ID != "" {
		return nil, fmt.Errorf("role id already assigned")
	}

	if role.Name == "" {
		return nil, fmt.Errorf("role name is required")
	}

	role.ID = uuid.NewString()
	role.NormalizedName = Normalize(role.Name)

	if err := s.roles.Insert(ctx, role); err != nil {
		return nil, fmt.Errorf("creating role: %w", err)
	}

	return &role, nil
}

// FindRoleByNormalizedName returns the role owning the name, or nil
// when unknown.
func (s *Store) FindRoleByNormalizedName(ctx context.Context, name string) (*models.Role, error) {
	role, ok, err := s.roles.GetByIndex(ctx, indexNormalizedRoleName, Normalize(name))
	if err != nil {
		return nil, fmt.Errorf("finding role: %w", err)
	}

	if !ok {
		return nil, nil
	}

	return &role, nil
}

// HashPassword returns the bcrypt hash of a password for storage in
// User.PasswordHash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	return string(hash), nil
}

// CheckPassword reports whether the password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
