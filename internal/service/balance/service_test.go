package balance_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/ledgerd/internal/clock"
	"github.com/coreledger/ledgerd/internal/errs"
	"github.com/coreledger/ledgerd/internal/ledger"
	"github.com/coreledger/ledgerd/internal/locktable"
	"github.com/coreledger/ledgerd/internal/money"
	"github.com/coreledger/ledgerd/internal/observer"
	"github.com/coreledger/ledgerd/internal/service/account"
	"github.com/coreledger/ledgerd/internal/service/balance"
	"github.com/coreledger/ledgerd/internal/service/entry"
	"github.com/coreledger/ledgerd/internal/storage"
	"github.com/coreledger/ledgerd/internal/storage/memory"
)

type fixture struct {
	store    storage.Store
	accounts account.Service
	entries  entry.Service
	balances balance.Service
}

func newFixture(opts ...balance.Option) fixture {
	store := memory.New()
	locks := locktable.New()
	clk := clock.New()
	return fixture{
		store:    store,
		accounts: account.New(store, locks, clk, observer.Noop{}),
		entries:  entry.New(store, locks, clk, observer.Noop{}),
		balances: balance.New(store, locks, clk, observer.Noop{}, opts...),
	}
}

func (f fixture) mustAccount(t *testing.T) uuid.UUID {
	t.Helper()
	acc, err := f.accounts.Create(context.Background(), "Acct-"+uuid.NewString(), "", nil)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return acc.ID
}

func (f fixture) mustAppend(t *testing.T, accID uuid.UUID, kind ledger.Kind, amt string) ledger.Entry {
	t.Helper()
	e, err := f.entries.Append(context.Background(), accID, entry.Draft{
		Kind: kind, Amount: money.MustNew(amt), Description: "x",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return e
}

func TestCommit_AllPendingAdvancesBalance(t *testing.T) {
	f := newFixture()
	accID := f.mustAccount(t)
	f.mustAppend(t, accID, ledger.KindCredit, "100.00")
	f.mustAppend(t, accID, ledger.KindDebit, "30.00")

	view, err := f.balances.Commit(context.Background(), accID, ledger.Selection{All: true})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if view.CommittedBalance.String() != "70.00" {
		t.Fatalf("expected 70.00, got %s", view.CommittedBalance.String())
	}

	pending, _ := f.entries.ListPending(context.Background(), accID, nil)
	if len(pending) != 0 {
		t.Fatalf("expected no pending entries after commit, got %d", len(pending))
	}
}

func TestCommit_NoopWhenSelectionEmpty(t *testing.T) {
	f := newFixture()
	accID := f.mustAccount(t)

	view, err := f.balances.Commit(context.Background(), accID, ledger.Selection{All: true})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !view.CommittedBalance.IsZero() {
		t.Fatalf("expected zero balance, got %s", view.CommittedBalance.String())
	}
}

func TestCommit_ExplicitSelectionRejectsAlreadyCommittedEntry(t *testing.T) {
	f := newFixture()
	accID := f.mustAccount(t)
	e := f.mustAppend(t, accID, ledger.KindCredit, "10.00")

	if _, err := f.balances.Commit(context.Background(), accID, ledger.Selection{EntryIDs: []uuid.UUID{e.ID}}); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if _, err := f.balances.Commit(context.Background(), accID, ledger.Selection{EntryIDs: []uuid.UUID{e.ID}}); err != errs.ErrInvalid {
		t.Fatalf("expected ErrInvalid re-committing, got %v", err)
	}
}

func TestCommit_RejectNegativeOption(t *testing.T) {
	f := newFixture(balance.WithRejectNegative(true))
	accID := f.mustAccount(t)
	f.mustAppend(t, accID, ledger.KindDebit, "50.00")

	if _, err := f.balances.Commit(context.Background(), accID, ledger.Selection{All: true}); err != errs.ErrInvalid {
		t.Fatalf("expected ErrInvalid for negative balance, got %v", err)
	}
}

func TestVerify_HealthyChain(t *testing.T) {
	f := newFixture()
	accID := f.mustAccount(t)
	f.mustAppend(t, accID, ledger.KindCredit, "100.00")
	if _, err := f.balances.Commit(context.Background(), accID, ledger.Selection{All: true}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	f.mustAppend(t, accID, ledger.KindDebit, "40.00")
	if _, err := f.balances.Commit(context.Background(), accID, ledger.Selection{All: true}); err != nil {
		t.Fatalf("second commit: %v", err)
	}

	ok, err := f.balances.Verify(context.Background(), accID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected chain to verify")
	}
}

func TestVerify_DetectsTamperedChain(t *testing.T) {
	f := newFixture()
	accID := f.mustAccount(t)
	f.mustAppend(t, accID, ledger.KindCredit, "100.00")
	view, err := f.balances.Commit(context.Background(), accID, ledger.Selection{All: true})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	ctx := context.Background()
	balanceEntry, err := f.store.GetEntryByID(ctx, view.LatestBalanceEntryID)
	if err != nil {
		t.Fatalf("get balance entry: %v", err)
	}
	if err := f.store.DeleteEntryByID(ctx, balanceEntry.ID); err != nil {
		t.Fatalf("delete balance entry: %v", err)
	}
	balanceEntry.Amount = money.MustNew("999.00")
	if err := f.store.InsertEntry(ctx, balanceEntry); err != nil {
		t.Fatalf("reinsert tampered balance entry: %v", err)
	}

	ok, err := f.balances.Verify(ctx, accID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatalf("expected tampered chain to fail verification")
	}
}

func TestVerify_EmptyChainIsValid(t *testing.T) {
	f := newFixture()
	accID := f.mustAccount(t)
	ok, err := f.balances.Verify(context.Background(), accID)
	if err != nil || !ok {
		t.Fatalf("expected valid empty chain, ok=%v err=%v", ok, err)
	}
}

func TestGetBalanceAsOf_BeforeAnyCommitIsZero(t *testing.T) {
	f := newFixture()
	accID := f.mustAccount(t)

	hist, err := f.balances.GetBalanceAsOf(context.Background(), accID, time.Now().UTC())
	if err != nil {
		t.Fatalf("get balance as of: %v", err)
	}
	if !hist.Amount.IsZero() {
		t.Fatalf("expected zero amount, got %s", hist.Amount.String())
	}
	if hist.AccountID != accID {
		t.Fatalf("unexpected account id in result")
	}
}

func TestGetAllBalances_PreservesOneEntryPerAccount(t *testing.T) {
	f := newFixture()
	acc1 := f.mustAccount(t)
	acc2 := f.mustAccount(t)
	f.mustAppend(t, acc1, ledger.KindCredit, "5.00")
	f.mustAppend(t, acc2, ledger.KindCredit, "7.00")

	views, err := f.balances.GetAllBalances(context.Background())
	if err != nil {
		t.Fatalf("get all balances: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
}
