// Package httpapi wires the ledger's HTTP surface (spec.md §6 / SPEC_FULL.md
// §7.2): one chi.Mux, handlers that each decode and validate their own
// request body or query, and a uniform JSON error envelope carrying the
// per-request correlation id. Handlers stay thin,
// delegating every business rule to the service layer.
package httpapi

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/coreledger/ledgerd/internal/auth"
	"github.com/coreledger/ledgerd/internal/service/account"
	"github.com/coreledger/ledgerd/internal/service/apikey"
	"github.com/coreledger/ledgerd/internal/service/balance"
	"github.com/coreledger/ledgerd/internal/service/entry"
	"github.com/coreledger/ledgerd/internal/storage"
)

// Server wires handlers and middleware using chi, delegating to the four
// service-layer collaborators.
type Server struct {
	accounts account.Service
	entries  entry.Service
	balances balance.Service
	apikeys  apikey.Service
	authn    *auth.Resolver
	ready    storage.Store
	log      *slog.Logger
	rt       *chi.Mux
}

// New constructs the HTTP server with routes and middleware attached.
// ready backs the /readyz check; it is typically the same Store the
// services were built against.
func New(accounts account.Service, entries entry.Service, balances balance.Service, apikeys apikey.Service, authn *auth.Resolver, ready storage.Store, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(echoRequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{
		accounts: accounts,
		entries:  entries,
		balances: balances,
		apikeys:  apikeys,
		authn:    authn,
		ready:    ready,
		log:      logger,
		rt:       r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

func (s *Server) routes() {
	s.rt.Get("/", s.serviceInfo)
	s.rt.Head("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Get("/metrics", metricsHandler().ServeHTTP)

	s.rt.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Put("/v1/accounts", s.createAccount)
		r.Get("/v1/accounts", s.listAccounts)
		r.Get("/v1/accounts/byname/{name}", s.getAccountByName)
		r.Get("/v1/accounts/{id}", s.getAccount)
		r.Head("/v1/accounts/{id}", s.headAccount)
		r.Delete("/v1/accounts/{id}", s.deleteAccount)

		r.Get("/v1/accounts/{id}/entries", s.listEntries)
		r.Post("/v1/accounts/{id}/entries/enumerate", s.enumerateEntries)
		r.Get("/v1/accounts/{id}/entries/pending", s.listPending(nil))
		r.Get("/v1/accounts/{id}/entries/pending/credits", s.listPendingCredits)
		r.Get("/v1/accounts/{id}/entries/pending/debits", s.listPendingDebits)
		r.Put("/v1/accounts/{id}/credits", s.appendCredits)
		r.Put("/v1/accounts/{id}/debits", s.appendDebits)
		r.Delete("/v1/accounts/{id}/entries/{entryId}", s.cancelEntry)

		r.Get("/v1/accounts/{id}/balance", s.getBalance)
		r.Get("/v1/accounts/{id}/balance/asof", s.getBalanceAsOf)
		r.Get("/v1/balances", s.getAllBalances)
		r.Post("/v1/accounts/{id}/commit", s.commit)
		r.Get("/v1/accounts/{id}/verify", s.verify)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/v1/apikeys", s.listAPIKeys)
			r.Put("/v1/apikeys", s.createAPIKey)
			r.Delete("/v1/apikeys/{id}", s.deleteAPIKey)
		})
	})
}
