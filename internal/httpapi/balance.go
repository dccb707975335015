package httpapi

import (
	"net/http"
	"time"

	"github.com/coreledger/ledgerd/internal/errs"
)

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	view, err := s.balances.GetBalance(r.Context(), id)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toBalanceViewResponse(view))
}

func (s *Server) getBalanceAsOf(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	raw := r.URL.Query().Get("asOf")
	if raw == "" {
		writeMappedError(w, r, errs.ErrInvalid)
		return
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		writeMappedError(w, r, errs.ErrInvalid)
		return
	}
	hist, err := s.balances.GetBalanceAsOf(r.Context(), id, at)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toHistoricalBalanceResponse(hist))
}

func (s *Server) getAllBalances(w http.ResponseWriter, r *http.Request) {
	views, err := s.balances.GetAllBalances(r.Context())
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	objects := make([]balanceViewResponse, 0, len(views))
	for _, v := range views {
		objects = append(objects, toBalanceViewResponse(v))
	}
	writeJSON(w, r, http.StatusOK, objects)
}

func (s *Server) commit(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	var req commitRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeMappedError(w, r, err)
			return
		}
	}
	view, err := s.balances.Commit(r.Context(), id, req.toSelection())
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toBalanceViewResponse(view))
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	valid, err := s.balances.Verify(r.Context(), id)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, verifyResponse{Valid: valid})
}
