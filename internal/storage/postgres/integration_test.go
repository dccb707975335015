package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/coreledger/ledgerd/internal/ledger"
	"github.com/coreledger/ledgerd/internal/money"
	"github.com/coreledger/ledgerd/internal/storage"
	"github.com/coreledger/ledgerd/internal/storage/postgres"
)

// setupContainer brings up a hermetic Postgres instance per test run, per
// SPEC_FULL.md's hermetic, no-setup-required integration path,
// grounded on the testcontainers pattern used for the core-banking
// reference repo's repository tests.
func setupContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledgerd"),
		tcpostgres.WithUsername("ledgerd"),
		tcpostgres.WithPassword("ledgerd_test_pass"),
		tcpostgres.WithInitScripts("../../../db/migrations/0001_init.sql"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start Postgres testcontainer")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Postgres testcontainer: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestIntegration_CommitAndVerifyChain(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping hermetic Postgres integration test in -short mode")
	}
	dsn := setupContainer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := postgres.Open(ctx, dsn, 0, false, nil)
	require.NoError(t, err)
	defer store.Close()

	acc := ledger.Account{ID: uuid.New(), Name: "Integration Cash", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.InsertAccount(ctx, acc))

	credit := ledger.Entry{ID: uuid.New(), AccountID: acc.ID, Kind: ledger.KindCredit, Amount: money.MustNew("50.00"), CreatedAt: time.Now().UTC()}
	require.NoError(t, store.InsertEntry(ctx, credit))

	balanceID := uuid.New()
	balance := ledger.Entry{
		ID:                 balanceID,
		AccountID:          acc.ID,
		Kind:               ledger.KindBalance,
		Amount:             money.MustNew("50.00"),
		IsCommitted:        true,
		CommittedByEntryID: balanceID,
		CreatedAt:          time.Now().UTC(),
	}
	credit.IsCommitted = true
	credit.CommittedByEntryID = balanceID

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertEntry(ctx, balance))
	require.NoError(t, tx.UpdateCommittedMany(ctx, []ledger.Entry{credit}))
	require.NoError(t, tx.Commit(ctx))

	chain, err := store.AllBalanceEntries(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	require.Equal(t, "50.00", chain[0].Amount.String())

	latest, ok, err := store.LatestBalance(ctx, acc.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, balanceID, latest.ID)
}

func TestIntegration_EnumerationStabilityUnderConcurrentAppends(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping hermetic Postgres integration test in -short mode")
	}
	dsn := setupContainer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := postgres.Open(ctx, dsn, 0, false, nil)
	require.NoError(t, err)
	defer store.Close()

	acc := ledger.Account{ID: uuid.New(), Name: "Concurrent Appends", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.InsertAccount(ctx, acc))

	const n = 20
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			e := ledger.Entry{
				ID:        uuid.New(),
				AccountID: acc.ID,
				Kind:      ledger.KindCredit,
				Amount:    money.MustNew("1.00"),
				CreatedAt: time.Now().UTC(),
			}
			errCh <- store.InsertEntry(ctx, e)
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errCh)
	}

	pending, err := store.ListPending(ctx, acc.ID, nil)
	require.NoError(t, err)
	require.Len(t, pending, n)

	// S5: after the concurrent appends above, offset (Skip) paging ascending
	// by created_at must not duplicate or drop rows across pages.
	seen := make(map[uuid.UUID]bool, n)
	skip := 0
	for {
		page, err := store.ListForAccount(ctx, acc.ID, storage.EntryFilter{}, storage.Page{Skip: skip, MaxResults: 5})
		require.NoError(t, err)
		for _, e := range page.Objects {
			require.False(t, seen[e.ID], "duplicate entry across pages")
			seen[e.ID] = true
		}
		if page.EndOfResults {
			break
		}
		skip += len(page.Objects)
	}
	require.Len(t, seen, n)
}
