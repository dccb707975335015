// Package observer implements the ledger's event-notification seam: the
// services call Notify after their persistence transaction commits, so an
// observer never sees an event for state that was later rolled back. This
// replaces the source system's per-state-change callback hooks
// (AccountCreated, CreditAdded, ...) with one interface, per SPEC_FULL.md §10.
package observer

import (
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/ledgerd/internal/ledger"
)

// Kind identifies the sort of state change that occurred.
type Kind string

const (
	KindAccountCreated  Kind = "account_created"
	KindAccountDeleted  Kind = "account_deleted"
	KindEntryAppended   Kind = "entry_appended"
	KindEntryCanceled   Kind = "entry_canceled"
	KindEntryCommitted  Kind = "entry_committed"
	KindBalanceCommitted Kind = "balance_committed"
)

// Event is the payload passed to Notify. Only the fields relevant to Kind
// are populated; the rest are zero values.
type Event struct {
	Kind      Kind
	At        time.Time
	AccountID uuid.UUID
	EntryID   uuid.UUID
	Balance   *ledger.BalanceView
}

// Observer receives ledger state-change notifications. Implementations must
// not block the caller for long; slow observers should buffer internally.
type Observer interface {
	Notify(e Event)
}

// Noop discards every event. Useful as a default/zero-value Observer.
type Noop struct{}

func (Noop) Notify(Event) {}

// Multi fans a single event out to every wrapped observer, in order. A
// panicking observer is not recovered here — each Observer implementation is
// responsible for its own safety, mirroring how the HTTP layer's own
// recoverer only guards the request goroutine, not background fan-out.
type Multi struct {
	observers []Observer
}

// NewMulti composes zero or more observers into one.
func NewMulti(observers ...Observer) *Multi {
	return &Multi{observers: observers}
}

func (m *Multi) Notify(e Event) {
	for _, o := range m.observers {
		o.Notify(e)
	}
}
