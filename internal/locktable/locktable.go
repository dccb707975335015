// Package locktable implements the AccountLockTable (spec.md §4.4): a
// process-local registry mapping each account id to its own mutex, so
// balance-mutating operations on different accounts never block one
// another, and no operation ever holds more than one account's lock at a
// time (deadlock is impossible by construction).
package locktable

import (
	"sync"

	"github.com/google/uuid"
)

// Table is a registry of per-account mutexes.
type Table struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*entry
}

type entry struct {
	mu  sync.Mutex
	refs int
}

// New constructs an empty lock table.
func New() *Table {
	return &Table{locks: make(map[uuid.UUID]*entry)}
}

// Lock blocks until the caller holds exclusive access to accountID.
func (t *Table) Lock(accountID uuid.UUID) {
	t.mu.Lock()
	e, ok := t.locks[accountID]
	if !ok {
		e = &entry{}
		t.locks[accountID] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases accountID's lock. Once the last waiter has released it,
// the entry is removed from the table so deleted accounts do not pin memory
// forever (a memory optimization, not a correctness requirement per
// spec.md §4.4).
func (t *Table) Unlock(accountID uuid.UUID) {
	t.mu.Lock()
	e, ok := t.locks[accountID]
	if !ok {
		t.mu.Unlock()
		panic("locktable: Unlock of account with no held lock")
	}
	e.refs--
	if e.refs == 0 {
		delete(t.locks, accountID)
	}
	t.mu.Unlock()

	e.mu.Unlock()
}

// WithLock runs fn while holding accountID's lock, always releasing it
// afterward even if fn panics.
func (t *Table) WithLock(accountID uuid.UUID, fn func() error) error {
	t.Lock(accountID)
	defer t.Unlock(accountID)
	return fn()
}
