// Package postgres is a pgx-backed storage.Store implementation. It mirrors
// internal/storage/memory's semantics exactly (same contract, same error
// mapping) but persists to Postgres with a single connection pool, relying
// on the database's own uniqueness/foreign-key constraints instead of
// in-process maps. Migrations live under db/migrations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"

	"github.com/coreledger/ledgerd/internal/errs"
	"github.com/coreledger/ledgerd/internal/ledger"
	"github.com/coreledger/ledgerd/internal/meta"
	"github.com/coreledger/ledgerd/internal/storage"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting every
// row-mapping method below run unchanged whether or not it's inside a
// transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store holds a pgx connection pool and implements storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

// slogTraceLogger adapts log/slog to pgx's tracelog.Logger so
// STORE_LOG_QUERIES can reuse the process's own structured logger instead of
// pulling in a separate query-logging dependency.
type slogTraceLogger struct{ log *slog.Logger }

func (l slogTraceLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	args := make([]any, 0, len(data)*2)
	for k, v := range data {
		args = append(args, k, v)
	}
	switch level {
	case tracelog.LogLevelError:
		l.log.Error(msg, args...)
	case tracelog.LogLevelWarn:
		l.log.Warn(msg, args...)
	case tracelog.LogLevelDebug, tracelog.LogLevelTrace:
		l.log.Debug(msg, args...)
	default:
		l.log.Info(msg, args...)
	}
}

// Open establishes a pgx pool using the provided connection string and
// verifies connectivity. When logQueries is true, every statement is traced
// through logger, with all pgx trace levels enabled (spec.md §6's
// STORE_LOG_QUERIES); pgx reports completed queries at info level.
func Open(ctx context.Context, dsn string, maxPoolSize int, logQueries bool, logger *slog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if maxPoolSize > 0 {
		cfg.MaxConns = int32(maxPoolSize)
	}
	if logQueries {
		if logger == nil {
			logger = slog.Default()
		}
		cfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   slogTraceLogger{log: logger},
			LogLevel: tracelog.LogLevelDebug,
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

var _ storage.Store = (*Store)(nil)

// --- accounts ---

func insertAccount(ctx context.Context, q querier, a ledger.Account) error {
	_, err := q.Exec(ctx, `
		insert into accounts (id, name, notes, created_at)
		values ($1, $2, $3, $4)
	`, a.ID, a.Name, a.Notes, a.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return wrapStorageErr(err)
}

func (s *Store) InsertAccount(ctx context.Context, a ledger.Account) error {
	return insertAccount(ctx, s.pool, a)
}

func getAccountByID(ctx context.Context, q querier, id uuid.UUID) (ledger.Account, error) {
	var a ledger.Account
	err := q.QueryRow(ctx, `
		select id, name, notes, created_at from accounts where id = $1
	`, id).Scan(&a.ID, &a.Name, &a.Notes, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, wrapStorageErr(err)
}

func (s *Store) GetAccountByID(ctx context.Context, id uuid.UUID) (ledger.Account, error) {
	return getAccountByID(ctx, s.pool, id)
}

func getAccountByName(ctx context.Context, q querier, name string) (ledger.Account, error) {
	var a ledger.Account
	err := q.QueryRow(ctx, `
		select id, name, notes, created_at from accounts where name = $1
	`, name).Scan(&a.ID, &a.Name, &a.Notes, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, wrapStorageErr(err)
}

func (s *Store) GetAccountByName(ctx context.Context, name string) (ledger.Account, error) {
	return getAccountByName(ctx, s.pool, name)
}

func deleteAccountByID(ctx context.Context, q querier, id uuid.UUID) error {
	ct, err := q.Exec(ctx, `delete from accounts where id = $1`, id)
	if err != nil {
		return wrapStorageErr(err)
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAccountByID(ctx context.Context, id uuid.UUID) error {
	return deleteAccountByID(ctx, s.pool, id)
}

// accountOrderBy builds the ORDER BY clause for account enumeration from the
// requested ordering. Accounts carry no amount, so amount orderings fall
// back to created_at like the default.
func accountOrderBy(ordering storage.Ordering) string {
	if ordering == storage.OrderCreatedDesc {
		return "order by created_at desc, id desc"
	}
	return "order by created_at asc, id asc"
}

// entryOrderBy builds the ORDER BY clause for entry enumeration from the
// requested ordering (spec.md §4.5). Amount orderings sort on the entries'
// numeric `amount` column directly, never by its decimal-string rendering.
func entryOrderBy(ordering storage.Ordering) string {
	switch ordering {
	case storage.OrderCreatedDesc:
		return "order by created_at desc, id desc"
	case storage.OrderAmountAsc:
		return "order by amount asc, created_at asc, id asc"
	case storage.OrderAmountDesc:
		return "order by amount desc, created_at asc, id asc"
	default:
		return "order by created_at asc, id asc"
	}
}

func enumerateAccounts(ctx context.Context, q querier, filter storage.AccountFilter, page storage.Page) (storage.PageResult[ledger.Account], error) {
	limit := page.MaxResults
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.Query(ctx, `
		select id, name, notes, created_at from accounts
		where ($1 = '' or name ilike '%' || $1 || '%')
		`+accountOrderBy(page.Ordering)+`
		offset $2 limit $3
	`, filter.NameContains, page.Skip, limit+1)
	if err != nil {
		return storage.PageResult[ledger.Account]{}, wrapStorageErr(err)
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		var a ledger.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Notes, &a.CreatedAt); err != nil {
			return storage.PageResult[ledger.Account]{}, wrapStorageErr(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return storage.PageResult[ledger.Account]{}, wrapStorageErr(err)
	}

	endOfResults := len(out) <= limit
	if !endOfResults {
		out = out[:limit]
	}
	var token *string
	if !endOfResults {
		t := fmt.Sprintf("%d", page.Skip+limit)
		token = &t
	}
	return storage.PageResult[ledger.Account]{
		TotalRecords:      len(out),
		Objects:           out,
		EndOfResults:      endOfResults,
		ContinuationToken: token,
	}, nil
}

func (s *Store) EnumerateAccounts(ctx context.Context, filter storage.AccountFilter, page storage.Page) (storage.PageResult[ledger.Account], error) {
	return enumerateAccounts(ctx, s.pool, filter, page)
}

// --- entries ---

func insertEntry(ctx context.Context, q querier, e ledger.Entry) error {
	md, err := e.Metadata.MarshalStableJSON()
	if err != nil {
		return err
	}
	var replaces, committedBy any
	if e.Replaces != uuid.Nil {
		replaces = e.Replaces
	}
	if e.CommittedByEntryID != uuid.Nil {
		committedBy = e.CommittedByEntryID
	}
	_, execErr := q.Exec(ctx, `
		insert into entries (id, account_id, kind, amount, description, metadata, replaces, is_committed, committed_by_entry_id, committed_at, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, e.ID, e.AccountID, string(e.Kind), e.Amount, e.Description, md, replaces, e.IsCommitted, committedBy, e.CommittedAt, e.CreatedAt)
	return wrapStorageErr(execErr)
}

func (s *Store) InsertEntry(ctx context.Context, e ledger.Entry) error {
	return insertEntry(ctx, s.pool, e)
}

func (s *Store) InsertEntryBatch(ctx context.Context, entries []ledger.Entry) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	for _, e := range entries {
		if err := tx.InsertEntry(ctx, e); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func scanEntry(row pgx.Row) (ledger.Entry, error) {
	var e ledger.Entry
	var kind string
	var mdBytes []byte
	var replaces, committedBy *uuid.UUID
	err := row.Scan(&e.ID, &e.AccountID, &kind, &e.Amount, &e.Description, &mdBytes, &replaces, &e.IsCommitted, &committedBy, &e.CommittedAt, &e.CreatedAt)
	if err != nil {
		return ledger.Entry{}, err
	}
	e.Kind = ledger.Kind(kind)
	if len(mdBytes) > 0 {
		var m meta.Metadata
		if err := m.UnmarshalJSON(mdBytes); err == nil {
			e.Metadata = m
		}
	}
	if replaces != nil {
		e.Replaces = *replaces
	}
	if committedBy != nil {
		e.CommittedByEntryID = *committedBy
	}
	return e, nil
}

const entryColumns = `id, account_id, kind, amount, description, metadata, replaces, is_committed, committed_by_entry_id, committed_at, created_at`

func getEntryByID(ctx context.Context, q querier, id uuid.UUID) (ledger.Entry, error) {
	row := q.QueryRow(ctx, `select `+entryColumns+` from entries where id = $1`, id)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Entry{}, errs.ErrNotFound
	}
	return e, wrapStorageErr(err)
}

func (s *Store) GetEntryByID(ctx context.Context, id uuid.UUID) (ledger.Entry, error) {
	return getEntryByID(ctx, s.pool, id)
}

func getEntriesByIDs(ctx context.Context, q querier, ids []uuid.UUID) ([]ledger.Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := q.Query(ctx, `select `+entryColumns+` from entries where id = any($1)`, ids)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	defer rows.Close()
	var out []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, wrapStorageErr(err)
		}
		out = append(out, e)
	}
	return out, wrapStorageErr(rows.Err())
}

func (s *Store) GetEntriesByIDs(ctx context.Context, ids []uuid.UUID) ([]ledger.Entry, error) {
	return getEntriesByIDs(ctx, s.pool, ids)
}

func listForAccount(ctx context.Context, q querier, accountID uuid.UUID, filter storage.EntryFilter, page storage.Page) (storage.PageResult[ledger.Entry], error) {
	limit := page.MaxResults
	if limit <= 0 {
		limit = 100
	}
	kinds := make([]string, 0, len(filter.Kinds))
	for _, k := range filter.Kinds {
		kinds = append(kinds, string(k))
	}
	rows, err := q.Query(ctx, `
		select `+entryColumns+` from entries
		where account_id = $1
		and (cardinality($2::text[]) = 0 or kind = any($2::text[]))
		and ($3::boolean is null or is_committed = $3)
		and ($4::timestamptz is null or created_at >= $4)
		and ($5::timestamptz is null or created_at <= $5)
		and ($6::numeric is null or amount >= $6::numeric)
		and ($7::numeric is null or amount <= $7::numeric)
		and ($8::uuid is null or committed_by_entry_id = $8)
		`+entryOrderBy(page.Ordering)+`
		offset $9 limit $10
	`, accountID, kinds, filter.Committed, filter.From, filter.To, filter.MinAmount, filter.MaxAmount, filter.CommittedByEntryID, page.Skip, limit+1)
	if err != nil {
		return storage.PageResult[ledger.Entry]{}, wrapStorageErr(err)
	}
	defer rows.Close()
	var out []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return storage.PageResult[ledger.Entry]{}, wrapStorageErr(err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return storage.PageResult[ledger.Entry]{}, wrapStorageErr(err)
	}
	endOfResults := len(out) <= limit
	if !endOfResults {
		out = out[:limit]
	}
	var token *string
	if !endOfResults {
		t := fmt.Sprintf("%d", page.Skip+limit)
		token = &t
	}
	return storage.PageResult[ledger.Entry]{
		TotalRecords:      len(out),
		Objects:           out,
		EndOfResults:      endOfResults,
		ContinuationToken: token,
	}, nil
}

func (s *Store) ListForAccount(ctx context.Context, accountID uuid.UUID, filter storage.EntryFilter, page storage.Page) (storage.PageResult[ledger.Entry], error) {
	return listForAccount(ctx, s.pool, accountID, filter, page)
}

func listPending(ctx context.Context, q querier, accountID uuid.UUID, kind *ledger.Kind) ([]ledger.Entry, error) {
	var kindFilter string
	if kind != nil {
		kindFilter = string(*kind)
	}
	rows, err := q.Query(ctx, `
		select `+entryColumns+` from entries
		where account_id = $1 and is_committed = false and kind in ('credit', 'debit')
		and ($2 = '' or kind = $2)
		order by created_at asc
	`, accountID, kindFilter)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	defer rows.Close()
	var out []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, wrapStorageErr(err)
		}
		out = append(out, e)
	}
	return out, wrapStorageErr(rows.Err())
}

func (s *Store) ListPending(ctx context.Context, accountID uuid.UUID, kind *ledger.Kind) ([]ledger.Entry, error) {
	return listPending(ctx, s.pool, accountID, kind)
}

func updateCommittedMany(ctx context.Context, q querier, entries []ledger.Entry) error {
	for _, e := range entries {
		_, err := q.Exec(ctx, `
			update entries set is_committed = true, committed_by_entry_id = $1, committed_at = $2
			where id = $3
		`, e.CommittedByEntryID, e.CommittedAt, e.ID)
		if err != nil {
			return wrapStorageErr(err)
		}
	}
	return nil
}

func (s *Store) UpdateCommittedMany(ctx context.Context, entries []ledger.Entry) error {
	return updateCommittedMany(ctx, s.pool, entries)
}

func deleteEntryByID(ctx context.Context, q querier, id uuid.UUID) error {
	ct, err := q.Exec(ctx, `delete from entries where id = $1`, id)
	if err != nil {
		return wrapStorageErr(err)
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteEntryByID(ctx context.Context, id uuid.UUID) error {
	return deleteEntryByID(ctx, s.pool, id)
}

func deleteEntriesByAccountID(ctx context.Context, q querier, accountID uuid.UUID) error {
	_, err := q.Exec(ctx, `delete from entries where account_id = $1`, accountID)
	return wrapStorageErr(err)
}

func (s *Store) DeleteEntriesByAccountID(ctx context.Context, accountID uuid.UUID) error {
	return deleteEntriesByAccountID(ctx, s.pool, accountID)
}

func latestBalance(ctx context.Context, q querier, accountID uuid.UUID) (ledger.Entry, bool, error) {
	row := q.QueryRow(ctx, `
		select `+entryColumns+` from entries
		where account_id = $1 and kind = 'balance'
		order by created_at desc limit 1
	`, accountID)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Entry{}, false, nil
	}
	if err != nil {
		return ledger.Entry{}, false, wrapStorageErr(err)
	}
	return e, true, nil
}

func (s *Store) LatestBalance(ctx context.Context, accountID uuid.UUID) (ledger.Entry, bool, error) {
	return latestBalance(ctx, s.pool, accountID)
}

func balanceAsOf(ctx context.Context, q querier, accountID uuid.UUID, at time.Time) (ledger.Entry, bool, error) {
	row := q.QueryRow(ctx, `
		select `+entryColumns+` from entries
		where account_id = $1 and kind = 'balance' and created_at <= $2
		order by created_at desc limit 1
	`, accountID, at)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Entry{}, false, nil
	}
	if err != nil {
		return ledger.Entry{}, false, wrapStorageErr(err)
	}
	return e, true, nil
}

func (s *Store) BalanceAsOf(ctx context.Context, accountID uuid.UUID, at time.Time) (ledger.Entry, bool, error) {
	return balanceAsOf(ctx, s.pool, accountID, at)
}

func allBalanceEntries(ctx context.Context, q querier, accountID uuid.UUID) ([]ledger.Entry, error) {
	rows, err := q.Query(ctx, `
		select `+entryColumns+` from entries
		where account_id = $1 and kind = 'balance'
		order by created_at asc
	`, accountID)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	defer rows.Close()
	var out []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, wrapStorageErr(err)
		}
		out = append(out, e)
	}
	return out, wrapStorageErr(rows.Err())
}

func (s *Store) AllBalanceEntries(ctx context.Context, accountID uuid.UUID) ([]ledger.Entry, error) {
	return allBalanceEntries(ctx, s.pool, accountID)
}

// --- api keys ---

func insertAPIKey(ctx context.Context, q querier, k storage.APIKey) error {
	_, err := q.Exec(ctx, `
		insert into api_keys (id, principal_id, token_hash, is_admin, created_at, revoked_at)
		values ($1,$2,$3,$4,$5,$6)
	`, k.ID, k.PrincipalID, k.TokenHash, k.IsAdmin, k.CreatedAt, k.RevokedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return wrapStorageErr(err)
}

func (s *Store) InsertAPIKey(ctx context.Context, k storage.APIKey) error {
	return insertAPIKey(ctx, s.pool, k)
}

func getAPIKeyByTokenHash(ctx context.Context, q querier, hash string) (storage.APIKey, error) {
	var k storage.APIKey
	err := q.QueryRow(ctx, `
		select id, principal_id, token_hash, is_admin, created_at, revoked_at
		from api_keys where token_hash = $1
	`, hash).Scan(&k.ID, &k.PrincipalID, &k.TokenHash, &k.IsAdmin, &k.CreatedAt, &k.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.APIKey{}, errs.ErrNotFound
	}
	return k, wrapStorageErr(err)
}

func (s *Store) GetAPIKeyByTokenHash(ctx context.Context, hash string) (storage.APIKey, error) {
	return getAPIKeyByTokenHash(ctx, s.pool, hash)
}

func deleteAPIKeyByID(ctx context.Context, q querier, id uuid.UUID) error {
	ct, err := q.Exec(ctx, `delete from api_keys where id = $1`, id)
	if err != nil {
		return wrapStorageErr(err)
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAPIKeyByID(ctx context.Context, id uuid.UUID) error {
	return deleteAPIKeyByID(ctx, s.pool, id)
}

func enumerateAPIKeys(ctx context.Context, q querier, page storage.Page) (storage.PageResult[storage.APIKey], error) {
	limit := page.MaxResults
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.Query(ctx, `
		select id, principal_id, token_hash, is_admin, created_at, revoked_at
		from api_keys order by created_at asc offset $1 limit $2
	`, page.Skip, limit+1)
	if err != nil {
		return storage.PageResult[storage.APIKey]{}, wrapStorageErr(err)
	}
	defer rows.Close()
	var out []storage.APIKey
	for rows.Next() {
		var k storage.APIKey
		if err := rows.Scan(&k.ID, &k.PrincipalID, &k.TokenHash, &k.IsAdmin, &k.CreatedAt, &k.RevokedAt); err != nil {
			return storage.PageResult[storage.APIKey]{}, wrapStorageErr(err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return storage.PageResult[storage.APIKey]{}, wrapStorageErr(err)
	}
	endOfResults := len(out) <= limit
	if !endOfResults {
		out = out[:limit]
	}
	var token *string
	if !endOfResults {
		t := fmt.Sprintf("%d", page.Skip+limit)
		token = &t
	}
	return storage.PageResult[storage.APIKey]{
		TotalRecords:      len(out),
		Objects:           out,
		EndOfResults:      endOfResults,
		ContinuationToken: token,
	}, nil
}

func (s *Store) EnumerateAPIKeys(ctx context.Context, page storage.Page) (storage.PageResult[storage.APIKey], error) {
	return enumerateAPIKeys(ctx, s.pool, page)
}

// --- transactions ---

// Tx wraps a pgx.Tx, implementing storage.Tx by delegating to the same
// row-mapping functions the pool-backed Store methods use.
type Tx struct {
	tx pgx.Tx
}

// BeginTx starts a serializable Postgres transaction. The BalanceEngine's
// Commit retries a Storage failure once with a fresh transaction from here
// (SPEC_FULL.md §8); there is no retry at the pool level.
func (s *Store) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) InsertAccount(ctx context.Context, a ledger.Account) error { return insertAccount(ctx, t.tx, a) }
func (t *Tx) GetAccountByID(ctx context.Context, id uuid.UUID) (ledger.Account, error) {
	return getAccountByID(ctx, t.tx, id)
}
func (t *Tx) GetAccountByName(ctx context.Context, name string) (ledger.Account, error) {
	return getAccountByName(ctx, t.tx, name)
}
func (t *Tx) DeleteAccountByID(ctx context.Context, id uuid.UUID) error {
	return deleteAccountByID(ctx, t.tx, id)
}
func (t *Tx) EnumerateAccounts(ctx context.Context, filter storage.AccountFilter, page storage.Page) (storage.PageResult[ledger.Account], error) {
	return enumerateAccounts(ctx, t.tx, filter, page)
}

func (t *Tx) InsertEntry(ctx context.Context, e ledger.Entry) error { return insertEntry(ctx, t.tx, e) }
func (t *Tx) InsertEntryBatch(ctx context.Context, entries []ledger.Entry) error {
	for _, e := range entries {
		if err := insertEntry(ctx, t.tx, e); err != nil {
			return err
		}
	}
	return nil
}
func (t *Tx) GetEntryByID(ctx context.Context, id uuid.UUID) (ledger.Entry, error) {
	return getEntryByID(ctx, t.tx, id)
}
func (t *Tx) GetEntriesByIDs(ctx context.Context, ids []uuid.UUID) ([]ledger.Entry, error) {
	return getEntriesByIDs(ctx, t.tx, ids)
}
func (t *Tx) ListForAccount(ctx context.Context, accountID uuid.UUID, filter storage.EntryFilter, page storage.Page) (storage.PageResult[ledger.Entry], error) {
	return listForAccount(ctx, t.tx, accountID, filter, page)
}
func (t *Tx) ListPending(ctx context.Context, accountID uuid.UUID, kind *ledger.Kind) ([]ledger.Entry, error) {
	return listPending(ctx, t.tx, accountID, kind)
}
func (t *Tx) UpdateCommittedMany(ctx context.Context, entries []ledger.Entry) error {
	return updateCommittedMany(ctx, t.tx, entries)
}
func (t *Tx) DeleteEntryByID(ctx context.Context, id uuid.UUID) error {
	return deleteEntryByID(ctx, t.tx, id)
}
func (t *Tx) DeleteEntriesByAccountID(ctx context.Context, accountID uuid.UUID) error {
	return deleteEntriesByAccountID(ctx, t.tx, accountID)
}
func (t *Tx) LatestBalance(ctx context.Context, accountID uuid.UUID) (ledger.Entry, bool, error) {
	return latestBalance(ctx, t.tx, accountID)
}
func (t *Tx) BalanceAsOf(ctx context.Context, accountID uuid.UUID, at time.Time) (ledger.Entry, bool, error) {
	return balanceAsOf(ctx, t.tx, accountID, at)
}
func (t *Tx) AllBalanceEntries(ctx context.Context, accountID uuid.UUID) ([]ledger.Entry, error) {
	return allBalanceEntries(ctx, t.tx, accountID)
}

func (t *Tx) InsertAPIKey(ctx context.Context, k storage.APIKey) error { return insertAPIKey(ctx, t.tx, k) }
func (t *Tx) GetAPIKeyByTokenHash(ctx context.Context, hash string) (storage.APIKey, error) {
	return getAPIKeyByTokenHash(ctx, t.tx, hash)
}
func (t *Tx) DeleteAPIKeyByID(ctx context.Context, id uuid.UUID) error {
	return deleteAPIKeyByID(ctx, t.tx, id)
}
func (t *Tx) EnumerateAPIKeys(ctx context.Context, page storage.Page) (storage.PageResult[storage.APIKey], error) {
	return enumerateAPIKeys(ctx, t.tx, page)
}

func (t *Tx) Commit(ctx context.Context) error   { return wrapStorageErr(t.tx.Commit(ctx)) }
func (t *Tx) Rollback(ctx context.Context) error { return wrapStorageErr(t.tx.Rollback(ctx)) }

var _ storage.Tx = (*Tx)(nil)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func wrapStorageErr(err error) error {
	if err == nil || errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrAlreadyExists) {
		return err
	}
	return fmt.Errorf("%w: %v", errs.ErrStorage, err)
}
