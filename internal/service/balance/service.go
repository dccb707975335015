// Package balance implements the BalanceEngine (spec.md §4.3): the current
// and historical balance queries, the atomic Commit algorithm, and chain
// verification. This is the hardest subsystem in the service layer.
package balance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/coreledger/ledgerd/internal/clock"
	"github.com/coreledger/ledgerd/internal/errs"
	"github.com/coreledger/ledgerd/internal/ledger"
	"github.com/coreledger/ledgerd/internal/locktable"
	"github.com/coreledger/ledgerd/internal/money"
	"github.com/coreledger/ledgerd/internal/observer"
	"github.com/coreledger/ledgerd/internal/storage"
)

// Service exposes the BalanceEngine operations.
type Service interface {
	GetBalance(ctx context.Context, accountID uuid.UUID) (ledger.BalanceView, error)
	GetBalanceAsOf(ctx context.Context, accountID uuid.UUID, at time.Time) (ledger.HistoricalBalance, error)
	GetAllBalances(ctx context.Context) ([]ledger.BalanceView, error)
	Commit(ctx context.Context, accountID uuid.UUID, selection ledger.Selection) (ledger.BalanceView, error)
	Verify(ctx context.Context, accountID uuid.UUID) (bool, error)
}

type service struct {
	store              storage.Store
	locks              *locktable.Table
	clock              clock.Clock
	obs                observer.Observer
	rejectNegative     bool
	allBalancesFanout  int
}

// Option configures optional service behavior.
type Option func(*service)

// WithRejectNegative enables the BALANCE_REJECT_NEGATIVE policy (spec.md §7
// / SPEC_FULL.md §11.3): a Commit that would drive the balance negative
// fails Invalid instead of succeeding. Default is permit (spec's reference
// behavior).
func WithRejectNegative(reject bool) Option {
	return func(s *service) { s.rejectNegative = reject }
}

// WithFanout bounds the number of concurrent goroutines GetAllBalances uses.
// Zero (the default) leaves the bound to errgroup's unlimited fan-out.
func WithFanout(n int) Option {
	return func(s *service) { s.allBalancesFanout = n }
}

// New constructs the BalanceEngine service.
func New(store storage.Store, locks *locktable.Table, clk clock.Clock, obs observer.Observer, opts ...Option) Service {
	if obs == nil {
		obs = observer.Noop{}
	}
	s := &service{store: store, locks: locks, clock: clk, obs: obs}
	for _, o := range opts {
		o(s)
	}
	return s
}

func summarize(entries []ledger.Entry) (ledger.Summary, error) {
	total := money.Zero
	for _, e := range entries {
		sum, err := money.Add(total, e.Amount)
		if err != nil {
			return ledger.Summary{}, err
		}
		total = sum
	}
	return ledger.Summary{Count: len(entries), TotalAmount: total, Entries: entries}, nil
}

// viewLocked computes the BalanceView for accountID. Caller must already
// hold the account's lock (spec.md §4.3.1: "must read under the account
// lock to prevent tearing").
func (s *service) viewLocked(ctx context.Context, acc ledger.Account) (ledger.BalanceView, error) {
	latest, hasLatest, err := s.store.LatestBalance(ctx, acc.ID)
	if err != nil {
		return ledger.BalanceView{}, err
	}

	committed := money.Zero
	var latestID uuid.UUID
	var ts *time.Time
	var committedEntryIDs []uuid.UUID
	if hasLatest {
		committed = latest.Amount
		latestID = latest.ID
		t := latest.CreatedAt
		ts = &t
		// Filtered by CommittedByEntryID rather than a flat page cap, so an
		// account with more history than one page can never have entries
		// attributed to the latest Balance fall off the edge.
		attributed, err := s.store.ListForAccount(ctx, acc.ID, storage.EntryFilter{Committed: boolPtr(true), CommittedByEntryID: &latestID}, storage.Page{MaxResults: 100000})
		if err != nil {
			return ledger.BalanceView{}, err
		}
		for _, e := range attributed.Objects {
			if e.Kind != ledger.KindBalance {
				committedEntryIDs = append(committedEntryIDs, e.ID)
			}
		}
	}

	creditKind := ledger.KindCredit
	debitKind := ledger.KindDebit
	pendingCredits, err := s.store.ListPending(ctx, acc.ID, &creditKind)
	if err != nil {
		return ledger.BalanceView{}, err
	}
	pendingDebits, err := s.store.ListPending(ctx, acc.ID, &debitKind)
	if err != nil {
		return ledger.BalanceView{}, err
	}

	creditSummary, err := summarize(pendingCredits)
	if err != nil {
		return ledger.BalanceView{}, err
	}
	debitSummary, err := summarize(pendingDebits)
	if err != nil {
		return ledger.BalanceView{}, err
	}

	pending, err := money.Add(committed, creditSummary.TotalAmount)
	if err != nil {
		return ledger.BalanceView{}, err
	}
	pending, err = money.Sub(pending, debitSummary.TotalAmount)
	if err != nil {
		return ledger.BalanceView{}, err
	}

	return ledger.BalanceView{
		AccountID:            acc.ID,
		AccountName:          acc.Name,
		CreatedAt:            acc.CreatedAt,
		LatestBalanceEntryID: latestID,
		BalanceTimestamp:     ts,
		CommittedBalance:     committed,
		PendingBalance:       pending,
		PendingCredits:       creditSummary,
		PendingDebits:        debitSummary,
		CommittedEntryIDs:    committedEntryIDs,
	}, nil
}

func boolPtr(b bool) *bool { return &b }

// GetBalance implements spec.md §4.3.1 GetBalance.
func (s *service) GetBalance(ctx context.Context, accountID uuid.UUID) (ledger.BalanceView, error) {
	var view ledger.BalanceView
	err := s.locks.WithLock(accountID, func() error {
		acc, err := s.store.GetAccountByID(ctx, accountID)
		if err != nil {
			return err
		}
		view, err = s.viewLocked(ctx, acc)
		return err
	})
	return view, err
}

// GetBalanceAsOf implements spec.md §4.3.1 GetBalanceAsOf, returning exactly
// {accountId, asOf, amount} per the Open Question decided in SPEC_FULL.md §11.1.
func (s *service) GetBalanceAsOf(ctx context.Context, accountID uuid.UUID, at time.Time) (ledger.HistoricalBalance, error) {
	if _, err := s.store.GetAccountByID(ctx, accountID); err != nil {
		return ledger.HistoricalBalance{}, err
	}
	entry, ok, err := s.store.BalanceAsOf(ctx, accountID, at)
	if err != nil {
		return ledger.HistoricalBalance{}, err
	}
	amount := money.Zero
	if ok {
		amount = entry.Amount
	}
	return ledger.HistoricalBalance{AccountID: accountID, AsOf: at, Amount: amount}, nil
}

// GetAllBalances implements spec.md §4.3.1 GetAllBalances: each account's
// view is computed under its own lock, concurrently, via errgroup, with the
// enumerated order preserved in the result (SPEC_FULL.md §5.3).
func (s *service) GetAllBalances(ctx context.Context) ([]ledger.BalanceView, error) {
	var accounts []ledger.Account
	var token *string
	for {
		page, err := s.store.EnumerateAccounts(ctx, storage.AccountFilter{}, storage.Page{MaxResults: 1000, ContinuationToken: token})
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, page.Objects...)
		if page.EndOfResults {
			break
		}
		token = page.ContinuationToken
	}

	views := make([]ledger.BalanceView, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	if s.allBalancesFanout > 0 {
		g.SetLimit(s.allBalancesFanout)
	}
	for i, acc := range accounts {
		i, acc := i, acc
		g.Go(func() error {
			return s.locks.WithLock(acc.ID, func() error {
				v, err := s.viewLocked(gctx, acc)
				if err != nil {
					return err
				}
				views[i] = v
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

func (s *service) resolveSelection(ctx context.Context, accountID uuid.UUID, sel ledger.Selection) ([]ledger.Entry, error) {
	if sel.All {
		both, err := s.store.ListPending(ctx, accountID, nil)
		if err != nil {
			return nil, err
		}
		out := make([]ledger.Entry, 0, len(both))
		for _, e := range both {
			if e.Kind == ledger.KindCredit || e.Kind == ledger.KindDebit {
				out = append(out, e)
			}
		}
		return out, nil
	}

	if len(sel.EntryIDs) == 0 {
		return nil, errs.ErrInvalid
	}
	entries, err := s.store.GetEntriesByIDs(ctx, sel.EntryIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]ledger.Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	out := make([]ledger.Entry, 0, len(sel.EntryIDs))
	for _, id := range sel.EntryIDs {
		e, ok := byID[id]
		if !ok {
			return nil, errs.ErrNotFound
		}
		if e.AccountID != accountID || e.Kind == ledger.KindBalance || e.IsCommitted {
			return nil, errs.ErrInvalid
		}
		out = append(out, e)
	}
	// Ascending createdAt order per spec.md §4.3.2 step 3.
	sortByCreatedAt(out)
	return out, nil
}

func sortByCreatedAt(entries []ledger.Entry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].CreatedAt.Before(entries[j-1].CreatedAt); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// Commit implements the atomic Commit algorithm of spec.md §4.3.2.
func (s *service) Commit(ctx context.Context, accountID uuid.UUID, selection ledger.Selection) (ledger.BalanceView, error) {
	var result ledger.BalanceView
	err := s.locks.WithLock(accountID, func() error {
		acc, err := s.store.GetAccountByID(ctx, accountID)
		if err != nil {
			return err
		}

		selected, err := s.resolveSelection(ctx, accountID, selection)
		if err != nil {
			return err
		}

		prior, hasPrior, err := s.store.LatestBalance(ctx, accountID)
		if err != nil {
			return err
		}

		if len(selected) == 0 {
			result, err = s.viewLocked(ctx, acc)
			return err
		}

		currentAmount := money.Zero
		if hasPrior {
			currentAmount = prior.Amount
		}

		newAmount := currentAmount
		for _, e := range selected {
			switch e.Kind {
			case ledger.KindCredit:
				newAmount, err = money.Add(newAmount, e.Amount)
			case ledger.KindDebit:
				newAmount, err = money.Sub(newAmount, e.Amount)
			}
			if err != nil {
				return err
			}
		}

		if s.rejectNegative && newAmount.IsNeg() {
			return errs.ErrInvalid
		}

		now := s.clock.Now()

		balanceID := uuid.New()
		var replaces uuid.UUID
		if hasPrior {
			replaces = prior.ID
		}
		balanceEntry := ledger.Entry{
			ID:                 balanceID,
			AccountID:          accountID,
			Kind:                ledger.KindBalance,
			Amount:             newAmount,
			Replaces:           replaces,
			IsCommitted:        true,
			CommittedByEntryID: balanceID,
			CommittedAt:        &now,
			CreatedAt:          now,
		}

		for i := range selected {
			selected[i].IsCommitted = true
			selected[i].CommittedByEntryID = balanceID
			selected[i].CommittedAt = &now
		}

		write := func() error {
			tx, err := s.store.BeginTx(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback(ctx) }()

			if err := tx.InsertEntry(ctx, balanceEntry); err != nil {
				return err
			}
			if err := tx.UpdateCommittedMany(ctx, selected); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}
		// A Storage failure is retried once with a fresh transaction.
		if err := write(); errors.Is(err, errs.ErrStorage) {
			if err := write(); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		result, err = s.viewLocked(ctx, acc)
		if err != nil {
			return err
		}

		s.obs.Notify(observer.Event{Kind: observer.KindBalanceCommitted, At: now, AccountID: accountID, EntryID: balanceID, Balance: &result})
		for _, e := range selected {
			s.obs.Notify(observer.Event{Kind: observer.KindEntryCommitted, At: now, AccountID: accountID, EntryID: e.ID})
		}
		return nil
	})
	return result, err
}

// Verify implements spec.md §4.3.3 chain verification.
func (s *service) Verify(ctx context.Context, accountID uuid.UUID) (bool, error) {
	if _, err := s.store.GetAccountByID(ctx, accountID); err != nil {
		return false, err
	}
	chain, err := s.store.AllBalanceEntries(ctx, accountID)
	if err != nil {
		return false, err
	}
	if len(chain) == 0 {
		return true, nil
	}

	committed, err := s.store.ListForAccount(ctx, accountID, storage.EntryFilter{Committed: boolPtr(true)}, storage.Page{MaxResults: 100000})
	if err != nil {
		return false, err
	}
	byCommitter := make(map[uuid.UUID][]ledger.Entry)
	for _, e := range committed.Objects {
		if e.Kind == ledger.KindBalance {
			continue
		}
		byCommitter[e.CommittedByEntryID] = append(byCommitter[e.CommittedByEntryID], e)
	}

	var prior *ledger.Entry
	for i := range chain {
		b := chain[i]
		var expectedReplaces uuid.UUID
		if prior != nil {
			expectedReplaces = prior.ID
		}
		if b.Replaces != expectedReplaces {
			return false, nil
		}

		base := money.Zero
		if prior != nil {
			base = prior.Amount
		}
		attributed := byCommitter[b.ID]
		if prior == nil && len(attributed) == 0 {
			// A genesis seeded from an initial balance carries that amount
			// with no attributed entries; it is the chain's starting value.
			prior = &chain[i]
			continue
		}
		for _, e := range attributed {
			switch e.Kind {
			case ledger.KindCredit:
				base, err = money.Add(base, e.Amount)
			case ledger.KindDebit:
				base, err = money.Sub(base, e.Amount)
			}
			if err != nil {
				return false, err
			}
		}
		if money.Cmp(base, b.Amount) != 0 {
			return false, nil
		}
		prior = &chain[i]
	}
	return true, nil
}
