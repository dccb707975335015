package httpapi

import (
	"context"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"log/slog"

	"github.com/coreledger/ledgerd/internal/errs"
	"github.com/coreledger/ledgerd/internal/ledger"
)

type ctxKey string

const ctxKeyPrincipal ctxKey = "principal"

// echoRequestID mirrors chi's RequestID back onto the response as
// X-Request-Id, satisfying spec.md §6's "per-request correlation
// identifier header" requirement literally.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			w.Header().Set("X-Request-Id", id)
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs basic request info at INFO and response status at a
// level derived from the status code, grounded on the teacher's
// requestLogger shape.
func requestLogger(l *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			reqID := chimw.GetReqID(r.Context())

			if r.URL.Path != "/healthz" && r.URL.Path != "/readyz" {
				l.Info("request started", "req_id", reqID, "method", r.Method, "path", r.URL.Path, "ip", clientIP(r))
			}

			next.ServeHTTP(ww, r)

			dur := time.Since(start)
			lvl := levelForStatus(ww.Status())
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
				lvl = slog.LevelDebug
			}
			attrs := []any{
				"req_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", dur.Milliseconds(),
			}
			switch lvl {
			case slog.LevelError:
				l.Error("request complete", attrs...)
			case slog.LevelWarn:
				l.Warn("request complete", attrs...)
			case slog.LevelDebug:
				l.Debug("request complete", attrs...)
			default:
				l.Info("request complete", attrs...)
			}
		})
	}
}

// recoverer logs panics as ERROR and returns 500, grounded on the teacher's recoverer.
func recoverer(l *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					reqID := chimw.GetReqID(r.Context())
					l.Error("panic", "req_id", reqID, "err", rec, "path", r.URL.Path, "method", r.Method, "stack", string(debug.Stack()))
					writeError(w, r, http.StatusInternalServerError, errs.ErrStorage)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// requireAuth resolves the caller's Principal and attaches it to the
// request context; every engine endpoint requires one (spec.md §6).
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := s.authn.Resolve(r)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyPrincipal, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin additionally demands the resolved Principal be an admin, for
// the API-key management endpoints (spec.md §6).
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := principalFrom(r.Context())
		if !p.IsAdmin {
			writeError(w, r, http.StatusForbidden, errs.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func principalFrom(ctx context.Context) ledger.Principal {
	p, _ := ctx.Value(ctxKeyPrincipal).(ledger.Principal)
	return p
}
