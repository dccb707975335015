// Package auth resolves an HTTP request's bearer token into a
// ledger.Principal (SPEC_FULL.md §7.3). It replaces the teacher's HS256 JWT
// verifier with a hashed-token store lookup, since the ledger's own token
// issuance (internal/service/apikey) never produces JWTs; the
// parseBearerToken / "allow health endpoints through" shape is kept.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/coreledger/ledgerd/internal/errs"
	"github.com/coreledger/ledgerd/internal/ledger"
	"github.com/coreledger/ledgerd/internal/service/apikey"
)

// Resolver authenticates a raw bearer token into a Principal.
type Resolver struct {
	keys    apikey.Service
	enabled bool
}

// New constructs a Resolver. When enabled is false, Resolve always returns
// the implicit admin principal (spec.md §6: "auth.enabled=false admits an
// implicit admin principal for local/dev use").
func New(keys apikey.Service, enabled bool) *Resolver {
	return &Resolver{keys: keys, enabled: enabled}
}

var implicitAdmin = ledger.Principal{IsAdmin: true}

func parseBearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	if !strings.HasPrefix(h, "Bearer ") && !strings.HasPrefix(h, "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[len("Bearer "):])
	if tok == "" {
		return "", false
	}
	return tok, true
}

// Resolve authenticates r, returning the resolved Principal or
// errs.ErrUnauthorized.
func (a *Resolver) Resolve(r *http.Request) (ledger.Principal, error) {
	if !a.enabled {
		return implicitAdmin, nil
	}
	token, ok := parseBearerToken(r)
	if !ok {
		return ledger.Principal{}, errs.ErrUnauthorized
	}
	hash := apikey.HashToken(token)
	key, err := a.keys.Resolve(r.Context(), token)
	if err != nil {
		return ledger.Principal{}, errs.ErrUnauthorized
	}
	// Resolve already looked up by hash; this constant-time re-check guards
	// against a future backend that resolves by a weaker key and returns a
	// near-miss record.
	if subtle.ConstantTimeCompare([]byte(key.TokenHash), []byte(hash)) != 1 {
		return ledger.Principal{}, errs.ErrUnauthorized
	}
	if key.RevokedAt != nil {
		return ledger.Principal{}, errs.ErrUnauthorized
	}
	return ledger.Principal{ID: key.PrincipalID, IsAdmin: key.IsAdmin}, nil
}
