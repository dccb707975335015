package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/ledgerd/internal/ledger"
	"github.com/coreledger/ledgerd/internal/money"
)

type createAccountRequest struct {
	Name           string  `json:"name"`
	Notes          string  `json:"notes"`
	InitialBalance *string `json:"initial_balance"`
}

type accountResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

func toAccountResponse(a ledger.Account) accountResponse {
	return accountResponse{ID: a.ID, Name: a.Name, Notes: a.Notes, CreatedAt: a.CreatedAt}
}

type pageResponse[T any] struct {
	TotalRecords      int     `json:"total_records"`
	Objects           []T     `json:"objects"`
	RecordsRemaining  int     `json:"records_remaining"`
	EndOfResults      bool    `json:"end_of_results"`
	ContinuationToken *string `json:"continuation_token,omitempty"`
}

type entryResponse struct {
	ID          uuid.UUID      `json:"id"`
	AccountID   uuid.UUID      `json:"account_id"`
	Kind        ledger.Kind    `json:"kind"`
	Amount      money.Amount   `json:"amount"`
	Description string         `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Replaces    *uuid.UUID     `json:"replaces,omitempty"`
	IsCommitted bool           `json:"is_committed"`
	CommittedByEntryID *uuid.UUID `json:"committed_by_entry_id,omitempty"`
	CommittedAt *time.Time     `json:"committed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func toEntryResponse(e ledger.Entry) entryResponse {
	resp := entryResponse{
		ID:          e.ID,
		AccountID:   e.AccountID,
		Kind:        e.Kind,
		Amount:      e.Amount,
		Description: e.Description,
		Metadata:    map[string]string(e.Metadata),
		IsCommitted: e.IsCommitted,
		CommittedAt: e.CommittedAt,
		CreatedAt:   e.CreatedAt,
	}
	if e.Replaces != uuid.Nil {
		id := e.Replaces
		resp.Replaces = &id
	}
	if e.CommittedByEntryID != uuid.Nil {
		id := e.CommittedByEntryID
		resp.CommittedByEntryID = &id
	}
	return resp
}

type appendEntryRequest struct {
	Amount      *string           `json:"amount"`
	Notes       string            `json:"notes"`
	Metadata    map[string]string `json:"metadata"`
	Entries     []appendEntryItem `json:"entries"`
}

type appendEntryItem struct {
	Amount   string            `json:"amount"`
	Notes    string            `json:"notes"`
	Metadata map[string]string `json:"metadata"`
}

type summaryResponse struct {
	Count       int            `json:"count"`
	TotalAmount money.Amount   `json:"total_amount"`
	Entries     []entryResponse `json:"entries"`
}

func toSummaryResponse(s ledger.Summary) summaryResponse {
	entries := make([]entryResponse, 0, len(s.Entries))
	for _, e := range s.Entries {
		entries = append(entries, toEntryResponse(e))
	}
	return summaryResponse{Count: s.Count, TotalAmount: s.TotalAmount, Entries: entries}
}

type balanceViewResponse struct {
	AccountID            uuid.UUID       `json:"account_id"`
	AccountName          string          `json:"account_name"`
	CreatedAt            time.Time       `json:"created_at"`
	LatestBalanceEntryID *uuid.UUID      `json:"latest_balance_entry_id,omitempty"`
	BalanceTimestamp     *time.Time      `json:"balance_timestamp,omitempty"`
	CommittedBalance     money.Amount    `json:"committed_balance"`
	PendingBalance       money.Amount    `json:"pending_balance"`
	PendingCredits       summaryResponse `json:"pending_credits"`
	PendingDebits        summaryResponse `json:"pending_debits"`
	CommittedEntryIDs    []uuid.UUID     `json:"committed_entry_ids,omitempty"`
}

func toBalanceViewResponse(v ledger.BalanceView) balanceViewResponse {
	resp := balanceViewResponse{
		AccountID:         v.AccountID,
		AccountName:       v.AccountName,
		CreatedAt:         v.CreatedAt,
		BalanceTimestamp:  v.BalanceTimestamp,
		CommittedBalance:  v.CommittedBalance,
		PendingBalance:    v.PendingBalance,
		PendingCredits:    toSummaryResponse(v.PendingCredits),
		PendingDebits:     toSummaryResponse(v.PendingDebits),
		CommittedEntryIDs: v.CommittedEntryIDs,
	}
	if v.LatestBalanceEntryID != uuid.Nil {
		id := v.LatestBalanceEntryID
		resp.LatestBalanceEntryID = &id
	}
	return resp
}

type historicalBalanceResponse struct {
	AccountID uuid.UUID    `json:"account_id"`
	AsOf      time.Time    `json:"as_of"`
	Amount    money.Amount `json:"amount"`
}

func toHistoricalBalanceResponse(h ledger.HistoricalBalance) historicalBalanceResponse {
	return historicalBalanceResponse{AccountID: h.AccountID, AsOf: h.AsOf, Amount: h.Amount}
}

type commitRequest struct {
	EntryGUIDs []uuid.UUID `json:"entryGuids"`
}

func (r commitRequest) toSelection() ledger.Selection {
	if len(r.EntryGUIDs) == 0 {
		return ledger.SelectAll()
	}
	return ledger.SelectExplicit(r.EntryGUIDs)
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

type createAPIKeyRequest struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	IsAdmin     bool      `json:"is_admin"`
}

type apiKeyResponse struct {
	ID          uuid.UUID  `json:"id"`
	PrincipalID uuid.UUID  `json:"principal_id"`
	IsAdmin     bool       `json:"is_admin"`
	CreatedAt   time.Time  `json:"created_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	// Token is populated only in the create response — the one moment the
	// raw bearer value is ever returned.
	Token string `json:"token,omitempty"`
}

type serviceInfoResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
}
