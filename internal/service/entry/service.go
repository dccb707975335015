// Package entry implements the EntryBook (spec.md §4.2): appending pending
// Credit/Debit entries (singly or as an atomic batch), canceling a pending
// entry, and listing/enumerating an account's history.
package entry

import (
	"strings"

	"github.com/google/uuid"

	"context"

	"github.com/coreledger/ledgerd/internal/clock"
	"github.com/coreledger/ledgerd/internal/errs"
	"github.com/coreledger/ledgerd/internal/ledger"
	"github.com/coreledger/ledgerd/internal/locktable"
	"github.com/coreledger/ledgerd/internal/meta"
	"github.com/coreledger/ledgerd/internal/money"
	"github.com/coreledger/ledgerd/internal/observer"
	"github.com/coreledger/ledgerd/internal/pagination"
	"github.com/coreledger/ledgerd/internal/storage"
)

// Draft is one entry to append, before an id/timestamp is assigned.
type Draft struct {
	Kind        ledger.Kind
	Amount      money.Amount
	Description string
	Metadata    map[string]string
}

// Service exposes the EntryBook operations.
type Service interface {
	Append(ctx context.Context, accountID uuid.UUID, d Draft) (ledger.Entry, error)
	AppendBatch(ctx context.Context, accountID uuid.UUID, drafts []Draft) ([]ledger.Entry, error)
	Cancel(ctx context.Context, accountID, entryID uuid.UUID) error
	ListPending(ctx context.Context, accountID uuid.UUID, kind *ledger.Kind) ([]ledger.Entry, error)
	Enumerate(ctx context.Context, accountID uuid.UUID, filter storage.EntryFilter, page storage.Page) (storage.PageResult[ledger.Entry], error)
}

type service struct {
	store storage.Store
	locks *locktable.Table
	clock clock.Clock
	obs   observer.Observer
}

// New constructs the EntryBook service.
func New(store storage.Store, locks *locktable.Table, clk clock.Clock, obs observer.Observer) Service {
	if obs == nil {
		obs = observer.Noop{}
	}
	return &service{store: store, locks: locks, clock: clk, obs: obs}
}

func validateDraft(d Draft) error {
	if d.Kind != ledger.KindCredit && d.Kind != ledger.KindDebit {
		return errs.ErrInvalid
	}
	if !d.Amount.IsPos() {
		return errs.ErrInvalid
	}
	if strings.TrimSpace(d.Description) == "" {
		return errs.ErrInvalid
	}
	return nil
}

func (s *service) build(accountID uuid.UUID, d Draft) (ledger.Entry, error) {
	if err := validateDraft(d); err != nil {
		return ledger.Entry{}, err
	}
	md := meta.New(d.Metadata)
	if err := md.Validate(); err != nil {
		return ledger.Entry{}, errs.ErrInvalid
	}
	return ledger.Entry{
		ID:          uuid.New(),
		AccountID:   accountID,
		Kind:        d.Kind,
		Amount:      d.Amount,
		Description: d.Description,
		Metadata:    md,
		IsCommitted: false,
		CreatedAt:   s.clock.Now(),
	}, nil
}

// Append inserts one pending Credit/Debit entry (spec.md §4.2 Append).
// Pending inserts never touch the balance chain, so this deliberately does
// not take the account lock (spec.md §5): a long-running Commit must never
// block a concurrent Append.
func (s *service) Append(ctx context.Context, accountID uuid.UUID, d Draft) (ledger.Entry, error) {
	if _, err := s.store.GetAccountByID(ctx, accountID); err != nil {
		return ledger.Entry{}, err
	}
	e, err := s.build(accountID, d)
	if err != nil {
		return ledger.Entry{}, err
	}
	if err := s.store.InsertEntry(ctx, e); err != nil {
		return ledger.Entry{}, err
	}
	s.obs.Notify(observer.Event{Kind: observer.KindEntryAppended, At: e.CreatedAt, AccountID: accountID, EntryID: e.ID})
	return e, nil
}

// AppendBatch inserts every draft atomically: either all entries are
// persisted or none are, and their CreatedAt values are strictly increasing
// in draft order (spec.md §4.2 AppendBatch). Like Append, it does not take
// the account lock (spec.md §5).
func (s *service) AppendBatch(ctx context.Context, accountID uuid.UUID, drafts []Draft) ([]ledger.Entry, error) {
	if len(drafts) == 0 {
		return nil, errs.ErrInvalid
	}
	if _, err := s.store.GetAccountByID(ctx, accountID); err != nil {
		return nil, err
	}
	entries := make([]ledger.Entry, 0, len(drafts))
	for _, d := range drafts {
		e, err := s.build(accountID, d)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := s.store.InsertEntryBatch(ctx, entries); err != nil {
		return nil, err
	}
	for _, e := range entries {
		s.obs.Notify(observer.Event{Kind: observer.KindEntryAppended, At: e.CreatedAt, AccountID: accountID, EntryID: e.ID})
	}
	return entries, nil
}

// Cancel removes a pending entry. Committed entries cannot be canceled
// (spec.md §4.2 Cancel: Conflict), and entries on another account or
// nonexistent entries are NotFound.
func (s *service) Cancel(ctx context.Context, accountID, entryID uuid.UUID) error {
	return s.locks.WithLock(accountID, func() error {
		e, err := s.store.GetEntryByID(ctx, entryID)
		if err != nil {
			return err
		}
		if e.AccountID != accountID {
			return errs.ErrNotFound
		}
		if e.Kind == ledger.KindBalance {
			return errs.ErrConflict
		}
		if e.IsCommitted {
			return errs.ErrConflict
		}
		if err := s.store.DeleteEntryByID(ctx, entryID); err != nil {
			return err
		}
		s.obs.Notify(observer.Event{Kind: observer.KindEntryCanceled, At: s.clock.Now(), AccountID: accountID, EntryID: entryID})
		return nil
	})
}

func (s *service) ListPending(ctx context.Context, accountID uuid.UUID, kind *ledger.Kind) ([]ledger.Entry, error) {
	return s.store.ListPending(ctx, accountID, kind)
}

func (s *service) Enumerate(ctx context.Context, accountID uuid.UUID, filter storage.EntryFilter, page storage.Page) (storage.PageResult[ledger.Entry], error) {
	if err := pagination.ValidateMaxResults(page.MaxResults); err != nil {
		return storage.PageResult[ledger.Entry]{}, err
	}
	if len(filter.Kinds) == 0 {
		// spec.md §4.2 Enumerate: default excludes Balance entries.
		filter.Kinds = []ledger.Kind{ledger.KindCredit, ledger.KindDebit}
	}
	return s.store.ListForAccount(ctx, accountID, filter, page)
}
