package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/ledgerd/internal/errs"
	"github.com/coreledger/ledgerd/internal/ledger"
	"github.com/coreledger/ledgerd/internal/money"
	"github.com/coreledger/ledgerd/internal/storage"
	"github.com/coreledger/ledgerd/internal/storage/memory"
)

func TestInsertAccount_DuplicateNameRejected(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	a := ledger.Account{ID: uuid.New(), Name: "Cash", CreatedAt: time.Now().UTC()}
	if err := s.InsertAccount(ctx, a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	dup := ledger.Account{ID: uuid.New(), Name: "Cash", CreatedAt: time.Now().UTC()}
	if err := s.InsertAccount(ctx, dup); err != errs.ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestDeleteAccountByID_RemovesNameIndex(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	a := ledger.Account{ID: uuid.New(), Name: "Cash", CreatedAt: time.Now().UTC()}
	if err := s.InsertAccount(ctx, a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.DeleteAccountByID(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetAccountByName(ctx, "Cash"); err != errs.ErrNotFound {
		t.Fatalf("expected name index cleared, got %v", err)
	}
	// reinserting the same name must now succeed.
	b := ledger.Account{ID: uuid.New(), Name: "Cash", CreatedAt: time.Now().UTC()}
	if err := s.InsertAccount(ctx, b); err != nil {
		t.Fatalf("reinsert after delete: %v", err)
	}
}

func TestTxRollback_RestoresSnapshot(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	a := ledger.Account{ID: uuid.New(), Name: "Cash", CreatedAt: time.Now().UTC()}
	if err := s.InsertAccount(ctx, a); err != nil {
		t.Fatalf("insert: %v", err)
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	e := ledger.Entry{ID: uuid.New(), AccountID: a.ID, Kind: ledger.KindCredit, Amount: money.MustNew("5.00"), CreatedAt: time.Now().UTC()}
	if err := tx.InsertEntry(ctx, e); err != nil {
		t.Fatalf("insert entry in tx: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if _, err := s.GetEntryByID(ctx, e.ID); err != errs.ErrNotFound {
		t.Fatalf("expected entry absent after rollback, got %v", err)
	}
}

func TestTxCommit_PersistsChanges(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	a := ledger.Account{ID: uuid.New(), Name: "Cash", CreatedAt: time.Now().UTC()}
	if err := s.InsertAccount(ctx, a); err != nil {
		t.Fatalf("insert: %v", err)
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	e := ledger.Entry{ID: uuid.New(), AccountID: a.ID, Kind: ledger.KindCredit, Amount: money.MustNew("5.00"), CreatedAt: time.Now().UTC()}
	if err := tx.InsertEntry(ctx, e); err != nil {
		t.Fatalf("insert entry in tx: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := s.GetEntryByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("get entry after commit: %v", err)
	}
	if got.ID != e.ID {
		t.Fatalf("unexpected entry: %+v", got)
	}
}

func TestListForAccount_FiltersByKindAndCommitted(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	a := ledger.Account{ID: uuid.New(), Name: "Cash", CreatedAt: time.Now().UTC()}
	if err := s.InsertAccount(ctx, a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	credit := ledger.Entry{ID: uuid.New(), AccountID: a.ID, Kind: ledger.KindCredit, Amount: money.MustNew("1.00"), CreatedAt: time.Now().UTC()}
	debit := ledger.Entry{ID: uuid.New(), AccountID: a.ID, Kind: ledger.KindDebit, Amount: money.MustNew("1.00"), IsCommitted: true, CreatedAt: time.Now().UTC().Add(time.Millisecond)}
	if err := s.InsertEntry(ctx, credit); err != nil {
		t.Fatalf("insert credit: %v", err)
	}
	if err := s.InsertEntry(ctx, debit); err != nil {
		t.Fatalf("insert debit: %v", err)
	}

	page, err := s.ListForAccount(ctx, a.ID, storage.EntryFilter{Kinds: []ledger.Kind{ledger.KindCredit}}, storage.Page{MaxResults: 10})
	if err != nil {
		t.Fatalf("list for account: %v", err)
	}
	if len(page.Objects) != 1 || page.Objects[0].ID != credit.ID {
		t.Fatalf("expected only the credit entry, got %+v", page.Objects)
	}

	committed := true
	page, err = s.ListForAccount(ctx, a.ID, storage.EntryFilter{Committed: &committed}, storage.Page{MaxResults: 10})
	if err != nil {
		t.Fatalf("list committed: %v", err)
	}
	if len(page.Objects) != 1 || page.Objects[0].ID != debit.ID {
		t.Fatalf("expected only the committed debit entry, got %+v", page.Objects)
	}
}

func TestListForAccount_OrdersByAmountNumerically(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	a := ledger.Account{ID: uuid.New(), Name: "Cash", CreatedAt: time.Now().UTC()}
	if err := s.InsertAccount(ctx, a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	amounts := []string{"10", "150", "20", "100", "60"}
	for i, amt := range amounts {
		e := ledger.Entry{
			ID:        uuid.New(),
			AccountID: a.ID,
			Kind:      ledger.KindCredit,
			Amount:    money.MustNew(amt),
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
		}
		if err := s.InsertEntry(ctx, e); err != nil {
			t.Fatalf("insert entry %q: %v", amt, err)
		}
	}

	page, err := s.ListForAccount(ctx, a.ID, storage.EntryFilter{}, storage.Page{MaxResults: 10, Ordering: storage.OrderAmountAsc})
	if err != nil {
		t.Fatalf("list for account: %v", err)
	}
	want := []string{"10", "20", "60", "100", "150"}
	if len(page.Objects) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(page.Objects))
	}
	for i, e := range page.Objects {
		if e.Amount.String() != want[i] {
			t.Fatalf("position %d: expected %s, got %s (lexicographic string sort would misorder \"100\" before \"20\")", i, want[i], e.Amount.String())
		}
	}

	desc, err := s.ListForAccount(ctx, a.ID, storage.EntryFilter{}, storage.Page{MaxResults: 10, Ordering: storage.OrderAmountDesc})
	if err != nil {
		t.Fatalf("list for account desc: %v", err)
	}
	for i, e := range desc.Objects {
		if e.Amount.String() != want[len(want)-1-i] {
			t.Fatalf("desc position %d: expected %s, got %s", i, want[len(want)-1-i], e.Amount.String())
		}
	}
}

func TestEnumerateAccounts_PaginatesStably(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		a := ledger.Account{ID: uuid.New(), Name: uuid.NewString(), CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Millisecond)}
		if err := s.InsertAccount(ctx, a); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	seen := make(map[uuid.UUID]bool)
	var token *string
	for {
		page, err := s.EnumerateAccounts(ctx, storage.AccountFilter{}, storage.Page{MaxResults: 2, ContinuationToken: token})
		if err != nil {
			t.Fatalf("enumerate: %v", err)
		}
		for _, a := range page.Objects {
			if seen[a.ID] {
				t.Fatalf("duplicate account across pages: %s", a.ID)
			}
			seen[a.ID] = true
		}
		if page.EndOfResults {
			break
		}
		token = page.ContinuationToken
	}
	if len(seen) != 5 {
		t.Fatalf("expected 5 accounts total, got %d", len(seen))
	}
}

func TestAPIKeys_InsertLookupRevoke(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	k := storage.APIKey{ID: uuid.New(), PrincipalID: uuid.New(), TokenHash: "hash-1", CreatedAt: time.Now().UTC()}
	if err := s.InsertAPIKey(ctx, k); err != nil {
		t.Fatalf("insert api key: %v", err)
	}
	got, err := s.GetAPIKeyByTokenHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("get by hash: %v", err)
	}
	if got.ID != k.ID {
		t.Fatalf("unexpected key: %+v", got)
	}
	if err := s.DeleteAPIKeyByID(ctx, k.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetAPIKeyByTokenHash(ctx, "hash-1"); err != errs.ErrNotFound {
		t.Fatalf("expected ErrNotFound after revoke, got %v", err)
	}
}
