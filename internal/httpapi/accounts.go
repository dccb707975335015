package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coreledger/ledgerd/internal/errs"
	"github.com/coreledger/ledgerd/internal/money"
	"github.com/coreledger/ledgerd/internal/storage"
)

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMappedError(w, r, err)
		return
	}

	var initial *money.Amount
	if req.InitialBalance != nil {
		amt, err := money.New(*req.InitialBalance)
		if err != nil {
			writeMappedError(w, r, errs.ErrInvalid)
			return
		}
		initial = &amt
	}

	acc, err := s.accounts.Create(r.Context(), req.Name, req.Notes, initial)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toAccountResponse(acc))
}

func parsePage(r *http.Request) storage.Page {
	q := r.URL.Query()
	page := storage.Page{Ordering: storage.OrderCreatedAsc}
	if v := q.Get("max_results"); v != "" {
		if n := parseInt(v); n > 0 {
			page.MaxResults = n
		}
	}
	if v := q.Get("skip"); v != "" {
		if n := parseInt(v); n > 0 {
			page.Skip = n
		}
	}
	if v := q.Get("continuation_token"); v != "" {
		page.ContinuationToken = &v
	}
	if v := q.Get("order"); v != "" {
		page.Ordering = storage.Ordering(v)
	}
	return page
}

func parseInt(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)
	filter := storage.AccountFilter{NameContains: r.URL.Query().Get("name_contains")}
	result, err := s.accounts.Enumerate(r.Context(), filter, page)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	objects := make([]accountResponse, 0, len(result.Objects))
	for _, a := range result.Objects {
		objects = append(objects, toAccountResponse(a))
	}
	writeJSON(w, r, http.StatusOK, pageResponse[accountResponse]{
		TotalRecords:      result.TotalRecords,
		Objects:           objects,
		RecordsRemaining:  result.RecordsRemaining,
		EndOfResults:      result.EndOfResults,
		ContinuationToken: result.ContinuationToken,
	})
}

func accountIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errs.ErrInvalid
	}
	return id, nil
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	acc, err := s.accounts.GetByID(r.Context(), id)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toAccountResponse(acc))
}

func (s *Server) headAccount(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	ok, err := s.accounts.Exists(r.Context(), id)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getAccountByName(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	acc, err := s.accounts.GetByName(r.Context(), name)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toAccountResponse(acc))
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	if err := s.accounts.Delete(r.Context(), id); err != nil {
		writeMappedError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
