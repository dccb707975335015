package entry_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/coreledger/ledgerd/internal/clock"
	"github.com/coreledger/ledgerd/internal/errs"
	"github.com/coreledger/ledgerd/internal/ledger"
	"github.com/coreledger/ledgerd/internal/locktable"
	"github.com/coreledger/ledgerd/internal/money"
	"github.com/coreledger/ledgerd/internal/observer"
	"github.com/coreledger/ledgerd/internal/service/account"
	"github.com/coreledger/ledgerd/internal/service/entry"
	"github.com/coreledger/ledgerd/internal/storage"
	"github.com/coreledger/ledgerd/internal/storage/memory"
)

func newServices() (account.Service, entry.Service) {
	store := memory.New()
	locks := locktable.New()
	clk := clock.New()
	return account.New(store, locks, clk, observer.Noop{}),
		entry.New(store, locks, clk, observer.Noop{})
}

func mustAccount(t *testing.T, accounts account.Service) uuid.UUID {
	t.Helper()
	acc, err := accounts.Create(context.Background(), "Acct-"+uuid.NewString(), "", nil)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return acc.ID
}

func TestAppend_RejectsNonPositiveAmount(t *testing.T) {
	accounts, entries := newServices()
	accID := mustAccount(t, accounts)

	zero := money.MustNew("0.00")
	_, err := entries.Append(context.Background(), accID, entry.Draft{
		Kind: ledger.KindCredit, Amount: zero, Description: "x",
	})
	if err != errs.ErrInvalid {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestAppend_RejectsBalanceKind(t *testing.T) {
	accounts, entries := newServices()
	accID := mustAccount(t, accounts)

	_, err := entries.Append(context.Background(), accID, entry.Draft{
		Kind: ledger.KindBalance, Amount: money.MustNew("1.00"), Description: "x",
	})
	if err != errs.ErrInvalid {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestAppend_UnknownAccountIsNotFound(t *testing.T) {
	_, entries := newServices()
	_, err := entries.Append(context.Background(), uuid.New(), entry.Draft{
		Kind: ledger.KindCredit, Amount: money.MustNew("1.00"), Description: "x",
	})
	if err != errs.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendBatch_EmptyIsInvalid(t *testing.T) {
	accounts, entries := newServices()
	accID := mustAccount(t, accounts)
	if _, err := entries.AppendBatch(context.Background(), accID, nil); err != errs.ErrInvalid {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestAppendBatch_AllOrNothingOnBadDraft(t *testing.T) {
	accounts, entries := newServices()
	accID := mustAccount(t, accounts)

	drafts := []entry.Draft{
		{Kind: ledger.KindCredit, Amount: money.MustNew("10.00"), Description: "ok"},
		{Kind: ledger.KindCredit, Amount: money.MustNew("-5.00"), Description: "bad"},
	}
	if _, err := entries.AppendBatch(context.Background(), accID, drafts); err != errs.ErrInvalid {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}

	pending, err := entries.ListPending(context.Background(), accID, nil)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no entries persisted on partial failure, got %d", len(pending))
	}
}

func TestCancel_PendingEntrySucceeds(t *testing.T) {
	accounts, entries := newServices()
	accID := mustAccount(t, accounts)

	e, err := entries.Append(context.Background(), accID, entry.Draft{
		Kind: ledger.KindCredit, Amount: money.MustNew("10.00"), Description: "x",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := entries.Cancel(context.Background(), accID, e.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	pending, _ := entries.ListPending(context.Background(), accID, nil)
	if len(pending) != 0 {
		t.Fatalf("expected entry removed, got %d pending", len(pending))
	}
}

func TestCancel_WrongAccountIsNotFound(t *testing.T) {
	accounts, entries := newServices()
	accID1 := mustAccount(t, accounts)
	accID2 := mustAccount(t, accounts)

	e, err := entries.Append(context.Background(), accID1, entry.Draft{
		Kind: ledger.KindCredit, Amount: money.MustNew("10.00"), Description: "x",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := entries.Cancel(context.Background(), accID2, e.ID); err != errs.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnumerate_DefaultExcludesBalanceEntries(t *testing.T) {
	accounts, entries := newServices()
	// An initial balance gives the account a genesis Balance entry to exclude.
	initial := money.MustNew("25.00")
	acc, err := accounts.Create(context.Background(), "Acct-"+uuid.NewString(), "", &initial)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	accID := acc.ID

	if _, err := entries.Append(context.Background(), accID, entry.Draft{
		Kind: ledger.KindCredit, Amount: money.MustNew("10.00"), Description: "x",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	page, err := entries.Enumerate(context.Background(), accID, storage.EntryFilter{}, storage.Page{MaxResults: 10})
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	for _, e := range page.Objects {
		if e.Kind == ledger.KindBalance {
			t.Fatalf("expected Balance entries excluded by default, found one")
		}
	}
}
