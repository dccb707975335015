package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/coreledger/ledgerd/internal/errs"
)

type errorEnvelope struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, errs.ErrInvalid):
		return http.StatusBadRequest, "invalid"
	case errors.Is(err, errs.ErrCanceled):
		return http.StatusRequestTimeout, "canceled"
	case errors.Is(err, errs.ErrStorage):
		return http.StatusInternalServerError, "storage"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	_, code := statusFor(err)
	writeJSON(w, r, status, errorEnvelope{
		Error:     err.Error(),
		Code:      code,
		RequestID: chimw.GetReqID(r.Context()),
	})
}

// writeMappedError derives the HTTP status from err's errs.* sentinel kind.
func writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := statusFor(err)
	writeError(w, r, status, err)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.ErrInvalid
	}
	return nil
}
