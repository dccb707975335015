// Package ledger defines the core domain model: accounts, entries and the
// balance-snapshot chain. It holds no persistence or transport concerns.
package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/ledgerd/internal/meta"
	"github.com/coreledger/ledgerd/internal/money"
)

// Kind distinguishes the three entry shapes an account can hold.
type Kind string

const (
	// KindCredit increases an account's balance when committed.
	KindCredit Kind = "credit"
	// KindDebit decreases an account's balance when committed.
	KindDebit Kind = "debit"
	// KindBalance is a snapshot produced only by Commit; always committed.
	KindBalance Kind = "balance"
)

// Account is a named ledger container. Name is unique (case-sensitive)
// across live accounts; ID is immutable once assigned.
type Account struct {
	ID        uuid.UUID
	Name      string
	Notes     string
	CreatedAt time.Time
}

// Entry is one append-only record on an account's history: a pending or
// committed Credit/Debit, or a committed Balance snapshot.
type Entry struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Kind        Kind
	Amount      money.Amount
	Description string
	Metadata    meta.Metadata

	// Replaces is set only on Balance entries: the id of the immediately
	// preceding Balance entry on this account, or uuid.Nil for the genesis
	// snapshot.
	Replaces uuid.UUID

	IsCommitted bool
	// CommittedByEntryID is the Balance entry that committed this
	// Credit/Debit (or, for a Balance entry, its own id).
	CommittedByEntryID uuid.UUID
	CommittedAt        *time.Time
	CreatedAt          time.Time
}

// Principal is an authenticated caller. The engine only consumes it for
// authorization checks; token issuance/validation lives outside the core.
type Principal struct {
	ID      uuid.UUID
	IsAdmin bool
}

// Selection identifies which pending entries a Commit should attribute to
// the new Balance snapshot.
type Selection struct {
	// All, when true, selects every pending Credit/Debit on the account.
	// EntryIDs is ignored in that case.
	All bool
	// EntryIDs is the explicit set of entries to commit when All is false.
	// Must be non-empty.
	EntryIDs []uuid.UUID
}

// SelectAll builds a Selection that commits every pending entry.
func SelectAll() Selection { return Selection{All: true} }

// SelectExplicit builds a Selection that commits exactly the given entries.
func SelectExplicit(ids []uuid.UUID) Selection { return Selection{EntryIDs: ids} }

// Summary aggregates a set of pending entries of one kind.
type Summary struct {
	Count       int
	TotalAmount money.Amount
	Entries     []Entry
}

// BalanceView is the read model returned by balance queries and by Commit.
type BalanceView struct {
	AccountID   uuid.UUID
	AccountName string
	CreatedAt   time.Time

	LatestBalanceEntryID uuid.UUID
	BalanceTimestamp     *time.Time
	CommittedBalance     money.Amount
	PendingBalance       money.Amount

	PendingCredits Summary
	PendingDebits  Summary

	// CommittedEntryIDs are the Credit/Debit entries attributed to
	// LatestBalanceEntryID.
	CommittedEntryIDs []uuid.UUID
}

// HistoricalBalance is the result of GetBalanceAsOf: a point-in-time
// committed balance. Deliberately distinct from BalanceView — it carries no
// pending-side fields, per the Open Question in spec.md resolved in
// SPEC_FULL.md §11.1.
type HistoricalBalance struct {
	AccountID uuid.UUID
	AsOf      time.Time
	Amount    money.Amount
}
