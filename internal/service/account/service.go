// Package account implements the AccountRegistry (spec.md §4.1): account
// creation with optional genesis balance, lookup, cascade delete, and
// enumeration, grounded on the same Repo/Writer-style service shape the
// teacher uses for its own account service.
package account

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/ledgerd/internal/clock"
	"github.com/coreledger/ledgerd/internal/errs"
	"github.com/coreledger/ledgerd/internal/ledger"
	"github.com/coreledger/ledgerd/internal/locktable"
	"github.com/coreledger/ledgerd/internal/money"
	"github.com/coreledger/ledgerd/internal/observer"
	"github.com/coreledger/ledgerd/internal/pagination"
	"github.com/coreledger/ledgerd/internal/storage"
)

// Service exposes the AccountRegistry operations.
type Service interface {
	Create(ctx context.Context, name, notes string, initialBalance *money.Amount) (ledger.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (ledger.Account, error)
	GetByName(ctx context.Context, name string) (ledger.Account, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Enumerate(ctx context.Context, filter storage.AccountFilter, page storage.Page) (storage.PageResult[ledger.Account], error)
}

type service struct {
	store storage.Store
	locks *locktable.Table
	clock clock.Clock
	obs   observer.Observer
}

// New constructs the AccountRegistry service.
func New(store storage.Store, locks *locktable.Table, clk clock.Clock, obs observer.Observer) Service {
	if obs == nil {
		obs = observer.Noop{}
	}
	return &service{store: store, locks: locks, clock: clk, obs: obs}
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errs.ErrInvalid
	}
	return nil
}

// Create implements spec.md §4.1 Create, including the genesis Balance path.
func (s *service) Create(ctx context.Context, name, notes string, initialBalance *money.Amount) (ledger.Account, error) {
	if err := validateName(name); err != nil {
		return ledger.Account{}, err
	}
	if _, err := s.store.GetAccountByName(ctx, name); err == nil {
		return ledger.Account{}, errs.ErrAlreadyExists
	} else if err != errs.ErrNotFound {
		return ledger.Account{}, err
	}

	acc := ledger.Account{
		ID:        uuid.New(),
		Name:      name,
		Notes:     notes,
		CreatedAt: s.clock.Now(),
	}

	hasInitial := initialBalance != nil && initialBalance.IsPos()

	if !hasInitial {
		if err := s.store.InsertAccount(ctx, acc); err != nil {
			return ledger.Account{}, err
		}
		s.obs.Notify(observer.Event{Kind: observer.KindAccountCreated, At: acc.CreatedAt, AccountID: acc.ID})
		return acc, nil
	}

	// Genesis balance requires the account's lock for the lifetime of the
	// operation (spec.md §4.4): nothing else can reference this account id
	// before InsertAccount commits, but we take the lock anyway per spec.
	var created ledger.Account
	err := s.locks.WithLock(acc.ID, func() error {
		tx, err := s.store.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := tx.InsertAccount(ctx, acc); err != nil {
			return err
		}
		now := s.clock.Now()
		genesis := ledger.Entry{
			ID:          uuid.New(),
			AccountID:   acc.ID,
			Kind:        ledger.KindBalance,
			Amount:      *initialBalance,
			IsCommitted: true,
			CreatedAt:   now,
			CommittedAt: &now,
		}
		genesis.CommittedByEntryID = genesis.ID
		if err := tx.InsertEntry(ctx, genesis); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		created = acc
		return nil
	})
	if err != nil {
		return ledger.Account{}, err
	}
	s.obs.Notify(observer.Event{Kind: observer.KindAccountCreated, At: created.CreatedAt, AccountID: created.ID})
	return created, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (ledger.Account, error) {
	return s.store.GetAccountByID(ctx, id)
}

func (s *service) GetByName(ctx context.Context, name string) (ledger.Account, error) {
	return s.store.GetAccountByName(ctx, name)
}

func (s *service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if _, err := s.store.GetAccountByID(ctx, id); err != nil {
		if err == errs.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete cascades to every entry on the account, atomically with respect to
// concurrent readers (spec.md §4.1): a reader either observes the full
// account with its entries, or NotFound.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.locks.WithLock(id, func() error {
		tx, err := s.store.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if _, err := tx.GetAccountByID(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteEntriesByAccountID(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteAccountByID(ctx, id); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		s.obs.Notify(observer.Event{Kind: observer.KindAccountDeleted, At: time.Now().UTC(), AccountID: id})
		return nil
	})
}

func (s *service) Enumerate(ctx context.Context, filter storage.AccountFilter, page storage.Page) (storage.PageResult[ledger.Account], error) {
	if err := pagination.ValidateMaxResults(page.MaxResults); err != nil {
		return storage.PageResult[ledger.Account]{}, err
	}
	return s.store.EnumerateAccounts(ctx, filter, page)
}
