package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coreledger/ledgerd/internal/errs"
)

func (s *Server) listAPIKeys(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)
	result, err := s.apikeys.Enumerate(r.Context(), page)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	objects := make([]apiKeyResponse, 0, len(result.Objects))
	for _, k := range result.Objects {
		objects = append(objects, apiKeyResponse{
			ID:          k.ID,
			PrincipalID: k.PrincipalID,
			IsAdmin:     k.IsAdmin,
			CreatedAt:   k.CreatedAt,
			RevokedAt:   k.RevokedAt,
		})
	}
	writeJSON(w, r, http.StatusOK, pageResponse[apiKeyResponse]{
		TotalRecords:      result.TotalRecords,
		Objects:           objects,
		RecordsRemaining:  result.RecordsRemaining,
		EndOfResults:      result.EndOfResults,
		ContinuationToken: result.ContinuationToken,
	})
}

func (s *Server) createAPIKey(w http.ResponseWriter, r *http.Request) {
	var req createAPIKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMappedError(w, r, err)
		return
	}
	if req.PrincipalID == uuid.Nil {
		writeMappedError(w, r, errs.ErrInvalid)
		return
	}
	issued, err := s.apikeys.Issue(r.Context(), req.PrincipalID, req.IsAdmin)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, apiKeyResponse{
		ID:          issued.Key.ID,
		PrincipalID: issued.Key.PrincipalID,
		IsAdmin:     issued.Key.IsAdmin,
		CreatedAt:   issued.Key.CreatedAt,
		Token:       issued.Token,
	})
}

func (s *Server) deleteAPIKey(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(w, r, errs.ErrInvalid)
		return
	}
	if err := s.apikeys.Revoke(r.Context(), id); err != nil {
		writeMappedError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
