package httpapi

import (
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coreledger/ledgerd/internal/errs"
	"github.com/coreledger/ledgerd/internal/ledger"
	"github.com/coreledger/ledgerd/internal/money"
	"github.com/coreledger/ledgerd/internal/service/entry"
	"github.com/coreledger/ledgerd/internal/storage"
)

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	page := parsePage(r)
	result, err := s.entries.Enumerate(r.Context(), id, storage.EntryFilter{}, page)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toEntryPage(result))
}

func (s *Server) enumerateEntries(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	var body struct {
		Kinds     []ledger.Kind `json:"kinds"`
		Committed *bool         `json:"committed"`
		From      *time.Time    `json:"from"`
		To        *time.Time    `json:"to"`
		MinAmount *string       `json:"min_amount"`
		MaxAmount *string       `json:"max_amount"`
		Page      storage.Page  `json:"page"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeMappedError(w, r, err)
		return
	}
	if body.MinAmount != nil {
		if _, err := money.New(*body.MinAmount); err != nil {
			writeMappedError(w, r, errs.ErrInvalid)
			return
		}
	}
	if body.MaxAmount != nil {
		if _, err := money.New(*body.MaxAmount); err != nil {
			writeMappedError(w, r, errs.ErrInvalid)
			return
		}
	}
	filter := storage.EntryFilter{
		Kinds:     body.Kinds,
		Committed: body.Committed,
		From:      body.From,
		To:        body.To,
		MinAmount: body.MinAmount,
		MaxAmount: body.MaxAmount,
	}
	result, err := s.entries.Enumerate(r.Context(), id, filter, body.Page)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toEntryPage(result))
}

func toEntryPage(result storage.PageResult[ledger.Entry]) pageResponse[entryResponse] {
	objects := make([]entryResponse, 0, len(result.Objects))
	for _, e := range result.Objects {
		objects = append(objects, toEntryResponse(e))
	}
	return pageResponse[entryResponse]{
		TotalRecords:      result.TotalRecords,
		Objects:           objects,
		RecordsRemaining:  result.RecordsRemaining,
		EndOfResults:      result.EndOfResults,
		ContinuationToken: result.ContinuationToken,
	}
}

func (s *Server) listPending(kind *ledger.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := accountIDParam(r)
		if err != nil {
			writeMappedError(w, r, err)
			return
		}
		pending, err := s.entries.ListPending(r.Context(), id, kind)
		if err != nil {
			writeMappedError(w, r, err)
			return
		}
		objects := make([]entryResponse, 0, len(pending))
		for _, e := range pending {
			objects = append(objects, toEntryResponse(e))
		}
		writeJSON(w, r, http.StatusOK, objects)
	}
}

func (s *Server) listPendingCredits(w http.ResponseWriter, r *http.Request) {
	k := ledger.KindCredit
	s.listPending(&k)(w, r)
}

func (s *Server) listPendingDebits(w http.ResponseWriter, r *http.Request) {
	k := ledger.KindDebit
	s.listPending(&k)(w, r)
}

func (s *Server) appendOne(w http.ResponseWriter, r *http.Request, kind ledger.Kind) {
	id, err := accountIDParam(r)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	var req appendEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMappedError(w, r, err)
		return
	}

	if len(req.Entries) > 0 {
		drafts := make([]entry.Draft, 0, len(req.Entries))
		for _, item := range req.Entries {
			amt, err := money.New(item.Amount)
			if err != nil {
				writeMappedError(w, r, errs.ErrInvalid)
				return
			}
			drafts = append(drafts, entry.Draft{Kind: kind, Amount: amt, Description: item.Notes, Metadata: item.Metadata})
		}
		created, err := s.entries.AppendBatch(r.Context(), id, drafts)
		if err != nil {
			writeMappedError(w, r, err)
			return
		}
		objects := make([]entryResponse, 0, len(created))
		for _, e := range created {
			objects = append(objects, toEntryResponse(e))
		}
		writeJSON(w, r, http.StatusCreated, objects)
		return
	}

	if req.Amount == nil {
		writeMappedError(w, r, errs.ErrInvalid)
		return
	}
	amt, err := money.New(*req.Amount)
	if err != nil {
		writeMappedError(w, r, errs.ErrInvalid)
		return
	}
	created, err := s.entries.Append(r.Context(), id, entry.Draft{Kind: kind, Amount: amt, Description: req.Notes, Metadata: req.Metadata})
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toEntryResponse(created))
}

func (s *Server) appendCredits(w http.ResponseWriter, r *http.Request) {
	s.appendOne(w, r, ledger.KindCredit)
}

func (s *Server) appendDebits(w http.ResponseWriter, r *http.Request) {
	s.appendOne(w, r, ledger.KindDebit)
}

func (s *Server) cancelEntry(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	entryID, err := uuid.Parse(chi.URLParam(r, "entryId"))
	if err != nil {
		writeMappedError(w, r, errs.ErrInvalid)
		return
	}
	if err := s.entries.Cancel(r.Context(), id, entryID); err != nil {
		writeMappedError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
