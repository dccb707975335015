package observer

import (
	"log/slog"

	"github.com/google/uuid"
)

// Logging forwards each domain event as a structured log line, at the same
// logger/level discipline the HTTP request logger uses.
type Logging struct {
	log *slog.Logger
}

// NewLogging wraps l as an Observer.
func NewLogging(l *slog.Logger) *Logging {
	return &Logging{log: l}
}

func (o *Logging) Notify(e Event) {
	attrs := []any{"kind", string(e.Kind), "account_id", e.AccountID.String()}
	if e.EntryID != uuid.Nil {
		attrs = append(attrs, "entry_id", e.EntryID.String())
	}
	if e.Balance != nil {
		attrs = append(attrs, "committed_balance", e.Balance.CommittedBalance.String())
	}
	o.log.Info("ledger event", attrs...)
}
