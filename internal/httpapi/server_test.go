package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coreledger/ledgerd/internal/auth"
	"github.com/coreledger/ledgerd/internal/clock"
	"github.com/coreledger/ledgerd/internal/httpapi"
	"github.com/coreledger/ledgerd/internal/locktable"
	"github.com/coreledger/ledgerd/internal/observer"
	"github.com/coreledger/ledgerd/internal/service/account"
	"github.com/coreledger/ledgerd/internal/service/apikey"
	"github.com/coreledger/ledgerd/internal/service/balance"
	"github.com/coreledger/ledgerd/internal/service/entry"
	"github.com/coreledger/ledgerd/internal/storage/memory"
)

func newTestServer() *httpapi.Server {
	store := memory.New()
	locks := locktable.New()
	clk := clock.New()
	obs := observer.Noop{}

	accounts := account.New(store, locks, clk, obs)
	entries := entry.New(store, locks, clk, obs)
	balances := balance.New(store, locks, clk, obs)
	keys := apikey.New(store, clk)
	authn := auth.New(keys, false) // auth disabled: implicit admin

	return httpapi.New(accounts, entries, balances, keys, authn, store, discardLogger())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz_AlwaysOK(t *testing.T) {
	srv := newTestServer()
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz_OKForMemoryBackend(t *testing.T) {
	srv := newTestServer()
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreateAccount_ThenGetByID(t *testing.T) {
	srv := newTestServer()
	rec := doRequest(t, srv.Handler(), http.MethodPut, "/v1/accounts", map[string]any{
		"name": "Cash", "notes": "primary",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("expected id in response: %v", created)
	}

	rec2 := doRequest(t, srv.Handler(), http.MethodGet, "/v1/accounts/"+id, nil)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec2.Code, rec2.Body.String())
	}
}

func TestCreateAccount_DuplicateNameReturnsConflict(t *testing.T) {
	srv := newTestServer()
	body := map[string]any{"name": "Cash"}
	doRequest(t, srv.Handler(), http.MethodPut, "/v1/accounts", body)
	rec := doRequest(t, srv.Handler(), http.MethodPut, "/v1/accounts", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetAccount_UnknownIDIsNotFound(t *testing.T) {
	srv := newTestServer()
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/v1/accounts/"+"00000000-0000-0000-0000-000000000000", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAppendCommitAndVerify_FullFlow(t *testing.T) {
	srv := newTestServer()

	rec := doRequest(t, srv.Handler(), http.MethodPut, "/v1/accounts", map[string]any{"name": "Flow"})
	var acc map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &acc)
	id := acc["id"].(string)

	recCredit := doRequest(t, srv.Handler(), http.MethodPut, "/v1/accounts/"+id+"/credits", map[string]any{
		"amount": "100.00", "notes": "deposit",
	})
	if recCredit.Code != http.StatusCreated {
		t.Fatalf("expected 201 appending credit, got %d: %s", recCredit.Code, recCredit.Body.String())
	}

	recCommit := doRequest(t, srv.Handler(), http.MethodPost, "/v1/accounts/"+id+"/commit", nil)
	if recCommit.Code != http.StatusOK {
		t.Fatalf("expected 200 committing, got %d: %s", recCommit.Code, recCommit.Body.String())
	}

	var view map[string]any
	_ = json.Unmarshal(recCommit.Body.Bytes(), &view)
	if view["committed_balance"] != "100.00" {
		t.Fatalf("expected committed_balance 100.00, got %v", view["committed_balance"])
	}

	recVerify := doRequest(t, srv.Handler(), http.MethodGet, "/v1/accounts/"+id+"/verify", nil)
	if recVerify.Code != http.StatusOK {
		t.Fatalf("expected 200 verifying, got %d: %s", recVerify.Code, recVerify.Body.String())
	}
	var verify map[string]any
	_ = json.Unmarshal(recVerify.Body.Bytes(), &verify)
	if verify["valid"] != true {
		t.Fatalf("expected valid chain, got %v", verify)
	}
}
