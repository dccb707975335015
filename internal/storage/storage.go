// Package storage defines the persistence contract the ledger engine
// requires (spec.md §6): typed collections for accounts, entries and API
// keys, plus a transaction boundary that spans the inserts/updates of a
// single Commit. Any backend satisfying these interfaces with serializable
// (or stricter) transaction semantics may back the engine; this repository
// ships two (internal/storage/memory, internal/storage/postgres).
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/ledgerd/internal/ledger"
)

// EntryFilter narrows EntryStore.ListForAccount. Zero values mean "no
// restriction" for that dimension: an empty Kinds list matches every Kind,
// including Balance. The service layer's Enumerate applies spec.md §4.2's
// "excludes Balance by default" policy itself, by setting Kinds explicitly
// before calling ListForAccount.
type EntryFilter struct {
	Kinds                []ledger.Kind
	Committed            *bool
	From, To             *time.Time
	MinAmount, MaxAmount *string // decimal strings; nil means unbounded
	// CommittedByEntryID restricts to entries attributed to one specific
	// Balance entry's commit, used by the BalanceEngine to recover the
	// exact set a commit touched without depending on a page size.
	CommittedByEntryID *uuid.UUID
}

// AccountFilter narrows AccountStore.EnumerateAccounts.
type AccountFilter struct {
	NameContains string
}

// Ordering is the shared sort policy for Enumerate across entity kinds
// (spec.md §4.5).
type Ordering string

const (
	OrderCreatedAsc  Ordering = "created_asc"
	OrderCreatedDesc Ordering = "created_desc"
	OrderAmountAsc   Ordering = "amount_asc"
	OrderAmountDesc  Ordering = "amount_desc"
)

// Page is the paging request shared by every Enumerate call.
type Page struct {
	MaxResults        int
	Skip              int
	ContinuationToken *string
	Ordering          Ordering
}

// PageResult is the paging response shared by every Enumerate call.
type PageResult[T any] struct {
	TotalRecords      int
	Objects           []T
	RecordsRemaining  int
	EndOfResults      bool
	ContinuationToken *string
}

// AccountStore is the account half of the persistence contract.
type AccountStore interface {
	InsertAccount(ctx context.Context, a ledger.Account) error
	GetAccountByID(ctx context.Context, id uuid.UUID) (ledger.Account, error)
	GetAccountByName(ctx context.Context, name string) (ledger.Account, error)
	DeleteAccountByID(ctx context.Context, id uuid.UUID) error
	EnumerateAccounts(ctx context.Context, filter AccountFilter, page Page) (PageResult[ledger.Account], error)
}

// EntryStore is the entry half of the persistence contract.
type EntryStore interface {
	InsertEntry(ctx context.Context, e ledger.Entry) error
	InsertEntryBatch(ctx context.Context, entries []ledger.Entry) error
	GetEntryByID(ctx context.Context, id uuid.UUID) (ledger.Entry, error)
	GetEntriesByIDs(ctx context.Context, ids []uuid.UUID) ([]ledger.Entry, error)
	ListForAccount(ctx context.Context, accountID uuid.UUID, filter EntryFilter, page Page) (PageResult[ledger.Entry], error)
	// ListPending returns every non-committed Credit/Debit for the account,
	// ordered ascending by CreatedAt, optionally restricted to one Kind.
	ListPending(ctx context.Context, accountID uuid.UUID, kind *ledger.Kind) ([]ledger.Entry, error)
	// UpdateCommittedMany marks the given entries committed, atomically, as
	// part of a Commit; see Transactor for the enclosing transaction.
	UpdateCommittedMany(ctx context.Context, entries []ledger.Entry) error
	DeleteEntryByID(ctx context.Context, id uuid.UUID) error
	DeleteEntriesByAccountID(ctx context.Context, accountID uuid.UUID) error
	// LatestBalance returns the most recent Balance entry for the account,
	// or (ledger.Entry{}, false, nil) if none exists yet.
	LatestBalance(ctx context.Context, accountID uuid.UUID) (ledger.Entry, bool, error)
	// BalanceAsOf returns the Balance entry with the greatest CreatedAt <= at,
	// or (ledger.Entry{}, false, nil) if none exists.
	BalanceAsOf(ctx context.Context, accountID uuid.UUID, at time.Time) (ledger.Entry, bool, error)
	// AllBalanceEntries returns every Balance entry for the account ordered
	// ascending by CreatedAt, for chain verification.
	AllBalanceEntries(ctx context.Context, accountID uuid.UUID) ([]ledger.Entry, error)
}

// APIKey is a bearer-token credential bound to a principal.
type APIKey struct {
	ID          uuid.UUID
	PrincipalID uuid.UUID
	// TokenHash is a SHA-256 hash of the raw bearer token; the raw value is
	// never persisted.
	TokenHash string
	IsAdmin   bool
	CreatedAt time.Time
	RevokedAt *time.Time
}

// APIKeyStore is the auth-collaborator half of the persistence contract.
// The ledger core only consumes a resolved ledger.Principal; this exists so
// the shipped transport layer has something concrete to authenticate
// against (spec.md §6, §7.3 of SPEC_FULL.md).
type APIKeyStore interface {
	InsertAPIKey(ctx context.Context, k APIKey) error
	GetAPIKeyByTokenHash(ctx context.Context, hash string) (APIKey, error)
	DeleteAPIKeyByID(ctx context.Context, id uuid.UUID) error
	EnumerateAPIKeys(ctx context.Context, page Page) (PageResult[APIKey], error)
}

// Tx is a transaction boundary spanning arbitrary EntryStore/AccountStore
// operations, satisfying the atomicity requirement of Commit (spec.md
// §4.3.2 step 7) and cascade-delete (spec.md §4.1 Delete).
type Tx interface {
	AccountStore
	EntryStore
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Transactor begins a Tx. Implementations must support nested read
// operations inside the transaction seeing their own uncommitted writes
// (standard SQL transaction semantics).
type Transactor interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// Store composes every collection plus the transaction boundary. Both
// reference backends implement it in full.
type Store interface {
	AccountStore
	EntryStore
	APIKeyStore
	Transactor
	// Ready reports whether the backend is reachable, for health checks.
	Ready(ctx context.Context) error
}
