// Package memory provides a process-local implementation of the storage
// contract, guarded by a single sync.RWMutex, used for development and
// tests. It keeps the teacher's "one mutex, plain maps, sorted-on-read"
// shape but satisfies the new storage.Store contract instead of the
// teacher's Repository/Writer split.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/ledgerd/internal/errs"
	"github.com/coreledger/ledgerd/internal/ledger"
	"github.com/coreledger/ledgerd/internal/money"
	"github.com/coreledger/ledgerd/internal/pagination"
	"github.com/coreledger/ledgerd/internal/storage"
)

// Store is an in-memory storage.Store. Safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	accounts     map[uuid.UUID]ledger.Account
	accountNames map[string]uuid.UUID
	entries      map[uuid.UUID]ledger.Entry
	apiKeys      map[uuid.UUID]storage.APIKey
	apiKeyHashes map[string]uuid.UUID
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:     make(map[uuid.UUID]ledger.Account),
		accountNames: make(map[string]uuid.UUID),
		entries:      make(map[uuid.UUID]ledger.Entry),
		apiKeys:      make(map[uuid.UUID]storage.APIKey),
		apiKeyHashes: make(map[string]uuid.UUID),
	}
}

// Ready always succeeds for the in-memory backend.
func (s *Store) Ready(ctx context.Context) error { return nil }

type snapshot struct {
	accounts     map[uuid.UUID]ledger.Account
	accountNames map[string]uuid.UUID
	entries      map[uuid.UUID]ledger.Entry
	apiKeys      map[uuid.UUID]storage.APIKey
	apiKeyHashes map[string]uuid.UUID
}

func (s *Store) snapshotLocked() snapshot {
	snap := snapshot{
		accounts:     make(map[uuid.UUID]ledger.Account, len(s.accounts)),
		accountNames: make(map[string]uuid.UUID, len(s.accountNames)),
		entries:      make(map[uuid.UUID]ledger.Entry, len(s.entries)),
		apiKeys:      make(map[uuid.UUID]storage.APIKey, len(s.apiKeys)),
		apiKeyHashes: make(map[string]uuid.UUID, len(s.apiKeyHashes)),
	}
	for k, v := range s.accounts {
		snap.accounts[k] = v
	}
	for k, v := range s.accountNames {
		snap.accountNames[k] = v
	}
	for k, v := range s.entries {
		snap.entries[k] = v
	}
	for k, v := range s.apiKeys {
		snap.apiKeys[k] = v
	}
	for k, v := range s.apiKeyHashes {
		snap.apiKeyHashes[k] = v
	}
	return snap
}

func (s *Store) restoreLocked(snap snapshot) {
	s.accounts = snap.accounts
	s.accountNames = snap.accountNames
	s.entries = snap.entries
	s.apiKeys = snap.apiKeys
	s.apiKeyHashes = snap.apiKeyHashes
}

// --- AccountStore ---

func (s *Store) insertAccountLocked(a ledger.Account) error {
	if _, ok := s.accountNames[a.Name]; ok {
		return errs.ErrAlreadyExists
	}
	s.accounts[a.ID] = a
	s.accountNames[a.Name] = a.ID
	return nil
}

func (s *Store) InsertAccount(ctx context.Context, a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertAccountLocked(a)
}

func (s *Store) getAccountByIDLocked(id uuid.UUID) (ledger.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, nil
}

func (s *Store) GetAccountByID(ctx context.Context, id uuid.UUID) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAccountByIDLocked(id)
}

func (s *Store) getAccountByNameLocked(name string) (ledger.Account, error) {
	id, ok := s.accountNames[name]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	return s.accounts[id], nil
}

func (s *Store) GetAccountByName(ctx context.Context, name string) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAccountByNameLocked(name)
}

func (s *Store) deleteAccountByIDLocked(id uuid.UUID) error {
	a, ok := s.accounts[id]
	if !ok {
		return errs.ErrNotFound
	}
	delete(s.accounts, id)
	delete(s.accountNames, a.Name)
	return nil
}

func (s *Store) DeleteAccountByID(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteAccountByIDLocked(id)
}

func (s *Store) EnumerateAccounts(ctx context.Context, filter storage.AccountFilter, page storage.Page) (storage.PageResult[ledger.Account], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enumerateAccountsLocked(filter, page)
}

func (s *Store) enumerateAccountsLocked(filter storage.AccountFilter, page storage.Page) (storage.PageResult[ledger.Account], error) {
	items := make([]ledger.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if filter.NameContains != "" && !strings.Contains(a.Name, filter.NameContains) {
			continue
		}
		items = append(items, a)
	}
	pagination.Sort(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID.String() < items[j].ID.String()
		}
		if page.Ordering == storage.OrderCreatedDesc {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return pagination.Slice(items, page, func(a ledger.Account) uuid.UUID { return a.ID })
}

// --- EntryStore ---

func (s *Store) insertEntryLocked(e ledger.Entry) error {
	if _, ok := s.entries[e.ID]; ok {
		return errs.ErrAlreadyExists
	}
	s.entries[e.ID] = e
	return nil
}

func (s *Store) InsertEntry(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertEntryLocked(e)
}

func (s *Store) InsertEntryBatch(ctx context.Context, entries []ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Check every id first so a rejected batch leaves nothing behind.
	seen := make(map[uuid.UUID]bool, len(entries))
	for _, e := range entries {
		if _, ok := s.entries[e.ID]; ok || seen[e.ID] {
			return errs.ErrAlreadyExists
		}
		seen[e.ID] = true
	}
	for _, e := range entries {
		if err := s.insertEntryLocked(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) getEntryByIDLocked(id uuid.UUID) (ledger.Entry, error) {
	e, ok := s.entries[id]
	if !ok {
		return ledger.Entry{}, errs.ErrNotFound
	}
	return e, nil
}

func (s *Store) GetEntryByID(ctx context.Context, id uuid.UUID) (ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEntryByIDLocked(id)
}

func (s *Store) GetEntriesByIDs(ctx context.Context, ids []uuid.UUID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.entries[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func matchesFilter(e ledger.Entry, filter storage.EntryFilter) bool {
	if len(filter.Kinds) > 0 {
		found := false
		for _, k := range filter.Kinds {
			if e.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Committed != nil && e.IsCommitted != *filter.Committed {
		return false
	}
	if filter.From != nil && e.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && e.CreatedAt.After(*filter.To) {
		return false
	}
	if filter.CommittedByEntryID != nil && e.CommittedByEntryID != *filter.CommittedByEntryID {
		return false
	}
	if filter.MinAmount != nil {
		minAmt, err := money.New(*filter.MinAmount)
		if err == nil && money.Cmp(e.Amount, minAmt) < 0 {
			return false
		}
	}
	if filter.MaxAmount != nil {
		maxAmt, err := money.New(*filter.MaxAmount)
		if err == nil && money.Cmp(e.Amount, maxAmt) > 0 {
			return false
		}
	}
	return true
}

func (s *Store) ListForAccount(ctx context.Context, accountID uuid.UUID, filter storage.EntryFilter, page storage.Page) (storage.PageResult[ledger.Entry], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listForAccountLocked(accountID, filter, page)
}

func (s *Store) listForAccountLocked(accountID uuid.UUID, filter storage.EntryFilter, page storage.Page) (storage.PageResult[ledger.Entry], error) {
	items := make([]ledger.Entry, 0)
	for _, e := range s.entries {
		if e.AccountID != accountID {
			continue
		}
		if !matchesFilter(e, filter) {
			continue
		}
		items = append(items, e)
	}
	pagination.Sort(items, func(i, j int) bool {
		if page.Ordering == storage.OrderAmountAsc || page.Ordering == storage.OrderAmountDesc {
			if c := money.Cmp(items[i].Amount, items[j].Amount); c != 0 {
				if page.Ordering == storage.OrderAmountDesc {
					return c > 0
				}
				return c < 0
			}
		}
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID.String() < items[j].ID.String()
		}
		if page.Ordering == storage.OrderCreatedDesc {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return pagination.Slice(items, page, func(e ledger.Entry) uuid.UUID { return e.ID })
}

func (s *Store) ListPending(ctx context.Context, accountID uuid.UUID, kind *ledger.Kind) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPendingLocked(accountID, kind)
}

func (s *Store) listPendingLocked(accountID uuid.UUID, kind *ledger.Kind) ([]ledger.Entry, error) {
	out := make([]ledger.Entry, 0)
	for _, e := range s.entries {
		if e.AccountID != accountID || e.IsCommitted {
			continue
		}
		if e.Kind != ledger.KindCredit && e.Kind != ledger.KindDebit {
			continue
		}
		if kind != nil && e.Kind != *kind {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateCommittedMany(ctx context.Context, entries []ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if _, ok := s.entries[e.ID]; !ok {
			return errs.ErrNotFound
		}
		s.entries[e.ID] = e
	}
	return nil
}

func (s *Store) DeleteEntryByID(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return errs.ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *Store) DeleteEntriesByAccountID(ctx context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if e.AccountID == accountID {
			delete(s.entries, id)
		}
	}
	return nil
}

func (s *Store) LatestBalance(ctx context.Context, accountID uuid.UUID) (ledger.Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestBalanceLocked(accountID)
}

func (s *Store) latestBalanceLocked(accountID uuid.UUID) (ledger.Entry, bool, error) {
	var latest ledger.Entry
	found := false
	for _, e := range s.entries {
		if e.AccountID != accountID || e.Kind != ledger.KindBalance {
			continue
		}
		if !found || e.CreatedAt.After(latest.CreatedAt) {
			latest = e
			found = true
		}
	}
	return latest, found, nil
}

func (s *Store) BalanceAsOf(ctx context.Context, accountID uuid.UUID, at time.Time) (ledger.Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balanceAsOfLocked(accountID, at)
}

func (s *Store) balanceAsOfLocked(accountID uuid.UUID, at time.Time) (ledger.Entry, bool, error) {
	var best ledger.Entry
	found := false
	for _, e := range s.entries {
		if e.AccountID != accountID || e.Kind != ledger.KindBalance {
			continue
		}
		if e.CreatedAt.After(at) {
			continue
		}
		if !found || e.CreatedAt.After(best.CreatedAt) {
			best = e
			found = true
		}
	}
	return best, found, nil
}

func (s *Store) AllBalanceEntries(ctx context.Context, accountID uuid.UUID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allBalanceEntriesLocked(accountID)
}

func (s *Store) allBalanceEntriesLocked(accountID uuid.UUID) ([]ledger.Entry, error) {
	out := make([]ledger.Entry, 0)
	for _, e := range s.entries {
		if e.AccountID == accountID && e.Kind == ledger.KindBalance {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- APIKeyStore ---

func (s *Store) InsertAPIKey(ctx context.Context, k storage.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apiKeyHashes[k.TokenHash]; ok {
		return errs.ErrAlreadyExists
	}
	s.apiKeys[k.ID] = k
	s.apiKeyHashes[k.TokenHash] = k.ID
	return nil
}

func (s *Store) GetAPIKeyByTokenHash(ctx context.Context, hash string) (storage.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.apiKeyHashes[hash]
	if !ok {
		return storage.APIKey{}, errs.ErrNotFound
	}
	k := s.apiKeys[id]
	if k.RevokedAt != nil {
		return storage.APIKey{}, errs.ErrNotFound
	}
	return k, nil
}

func (s *Store) DeleteAPIKeyByID(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.apiKeys[id]
	if !ok {
		return errs.ErrNotFound
	}
	delete(s.apiKeys, id)
	delete(s.apiKeyHashes, k.TokenHash)
	return nil
}

func (s *Store) EnumerateAPIKeys(ctx context.Context, page storage.Page) (storage.PageResult[storage.APIKey], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]storage.APIKey, 0, len(s.apiKeys))
	for _, k := range s.apiKeys {
		items = append(items, k)
	}
	pagination.Sort(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID.String() < items[j].ID.String()
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return pagination.Slice(items, page, func(k storage.APIKey) uuid.UUID { return k.ID })
}

// --- Transactor ---

// tx is the in-memory transaction: BeginTx takes the store's write lock for
// the transaction's lifetime and snapshots state so Rollback can restore it,
// satisfying the atomicity spec.md §4.3.2 step 7 requires without needing a
// real WAL.
type tx struct {
	s        *Store
	snapshot snapshot
	done     bool
}

func (s *Store) BeginTx(ctx context.Context) (storage.Tx, error) {
	s.mu.Lock()
	return &tx{s: s, snapshot: s.snapshotLocked()}, nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.mu.Unlock()
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.restoreLocked(t.snapshot)
	t.s.mu.Unlock()
	return nil
}

func (t *tx) InsertAccount(ctx context.Context, a ledger.Account) error {
	return t.s.insertAccountLocked(a)
}
func (t *tx) GetAccountByID(ctx context.Context, id uuid.UUID) (ledger.Account, error) {
	return t.s.getAccountByIDLocked(id)
}
func (t *tx) GetAccountByName(ctx context.Context, name string) (ledger.Account, error) {
	return t.s.getAccountByNameLocked(name)
}
func (t *tx) DeleteAccountByID(ctx context.Context, id uuid.UUID) error {
	return t.s.deleteAccountByIDLocked(id)
}
func (t *tx) EnumerateAccounts(ctx context.Context, filter storage.AccountFilter, page storage.Page) (storage.PageResult[ledger.Account], error) {
	return t.s.enumerateAccountsLocked(filter, page)
}

func (t *tx) InsertEntry(ctx context.Context, e ledger.Entry) error {
	return t.s.insertEntryLocked(e)
}
func (t *tx) InsertEntryBatch(ctx context.Context, entries []ledger.Entry) error {
	for _, e := range entries {
		if err := t.s.insertEntryLocked(e); err != nil {
			return err
		}
	}
	return nil
}
func (t *tx) GetEntryByID(ctx context.Context, id uuid.UUID) (ledger.Entry, error) {
	return t.s.getEntryByIDLocked(id)
}
func (t *tx) GetEntriesByIDs(ctx context.Context, ids []uuid.UUID) ([]ledger.Entry, error) {
	out := make([]ledger.Entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := t.s.entries[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}
func (t *tx) ListForAccount(ctx context.Context, accountID uuid.UUID, filter storage.EntryFilter, page storage.Page) (storage.PageResult[ledger.Entry], error) {
	return t.s.listForAccountLocked(accountID, filter, page)
}
func (t *tx) ListPending(ctx context.Context, accountID uuid.UUID, kind *ledger.Kind) ([]ledger.Entry, error) {
	return t.s.listPendingLocked(accountID, kind)
}
func (t *tx) UpdateCommittedMany(ctx context.Context, entries []ledger.Entry) error {
	for _, e := range entries {
		if _, ok := t.s.entries[e.ID]; !ok {
			return errs.ErrNotFound
		}
		t.s.entries[e.ID] = e
	}
	return nil
}
func (t *tx) DeleteEntryByID(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.s.entries[id]; !ok {
		return errs.ErrNotFound
	}
	delete(t.s.entries, id)
	return nil
}
func (t *tx) DeleteEntriesByAccountID(ctx context.Context, accountID uuid.UUID) error {
	for id, e := range t.s.entries {
		if e.AccountID == accountID {
			delete(t.s.entries, id)
		}
	}
	return nil
}
func (t *tx) LatestBalance(ctx context.Context, accountID uuid.UUID) (ledger.Entry, bool, error) {
	return t.s.latestBalanceLocked(accountID)
}
func (t *tx) BalanceAsOf(ctx context.Context, accountID uuid.UUID, at time.Time) (ledger.Entry, bool, error) {
	return t.s.balanceAsOfLocked(accountID, at)
}
func (t *tx) AllBalanceEntries(ctx context.Context, accountID uuid.UUID) ([]ledger.Entry, error) {
	return t.s.allBalanceEntriesLocked(accountID)
}
