// Package apikey manages bearer-token credentials backing the dev-grade
// auth surface SPEC_FULL.md §7.3 requires: admin-issued tokens, hashed at
// rest, looked up in constant time at request time by internal/auth.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/coreledger/ledgerd/internal/clock"
	"github.com/coreledger/ledgerd/internal/pagination"
	"github.com/coreledger/ledgerd/internal/storage"
)

// Issued is returned once, at creation time: the only moment the raw token
// is ever available. Callers must persist Token themselves; it cannot be
// recovered later.
type Issued struct {
	Key   storage.APIKey
	Token string
}

// Service exposes API key management operations.
type Service interface {
	Issue(ctx context.Context, principalID uuid.UUID, isAdmin bool) (Issued, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	Resolve(ctx context.Context, rawToken string) (storage.APIKey, error)
	Enumerate(ctx context.Context, page storage.Page) (storage.PageResult[storage.APIKey], error)
}

type service struct {
	store storage.Store
	clock clock.Clock
}

// New constructs the API key service.
func New(store storage.Store, clk clock.Clock) Service {
	return &service{store: store, clock: clk}
}

// HashToken renders the SHA-256 hex digest of a raw bearer token. Only the
// digest is ever persisted; internal/auth compares against it in constant
// time via crypto/subtle.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Issue mints a new bearer token for principalID and persists its hash.
func (s *service) Issue(ctx context.Context, principalID uuid.UUID, isAdmin bool) (Issued, error) {
	raw, err := generateToken()
	if err != nil {
		return Issued{}, err
	}
	key := storage.APIKey{
		ID:          uuid.New(),
		PrincipalID: principalID,
		TokenHash:   HashToken(raw),
		IsAdmin:     isAdmin,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.store.InsertAPIKey(ctx, key); err != nil {
		return Issued{}, err
	}
	return Issued{Key: key, Token: raw}, nil
}

func (s *service) Revoke(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteAPIKeyByID(ctx, id)
}

// Resolve looks up the API key by the hash of rawToken. Unknown or revoked
// tokens surface as errs.ErrUnauthorized through the store's NotFound path,
// mapped by internal/auth.
func (s *service) Resolve(ctx context.Context, rawToken string) (storage.APIKey, error) {
	return s.store.GetAPIKeyByTokenHash(ctx, HashToken(rawToken))
}

func (s *service) Enumerate(ctx context.Context, page storage.Page) (storage.PageResult[storage.APIKey], error) {
	if err := pagination.ValidateMaxResults(page.MaxResults); err != nil {
		return storage.PageResult[storage.APIKey]{}, err
	}
	return s.store.EnumerateAPIKeys(ctx, page)
}
