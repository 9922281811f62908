package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budgetplaner/internal/auth"
	"budgetplaner/internal/core"
	"budgetplaner/internal/services"
	"budgetplaner/internal/storage/memory"

	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

type testAPI struct {
	t     *testing.T
	srv   *Server
	store *memory.Store
	auth  *auth.Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.New()
	clock := func() time.Time { return fixedNow }

	tokens, err := auth.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	tokens.WithClock(clock)
	authSvc := auth.NewService(store, tokens, bcrypt.MinCost).WithClock(clock)

	reports := services.NewReportService(store, store, store, nil)
	ledger := services.NewLedgerService(store, reports).WithClock(clock)

	srv, err := NewServer(":0", Deps{
		Auth:       authSvc,
		Ledger:     ledger,
		Accounts:   services.NewAccountService(store, store, reports).WithClock(clock),
		Categories: services.NewCategoryService(store, reports),
		Settings:   services.NewSettingsService(store),
		Recurring:  services.NewRecurringService(store).WithClock(clock),
		Processor:  services.NewRecurringProcessor(store, ledger),
		Reports:    reports,
		Data:       services.NewDataService(ledger, store).WithClock(clock),
	}, Options{RateLimitPerMinute: 10000, Now: clock})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testAPI{t: t, srv: srv, store: store, auth: authSvc}
}

// do sends body (a value to encode, a string sent as is, or nil) and
// returns the recorded response.
func (a *testAPI) do(method, target, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	req.RemoteAddr = "192.0.2.10:4000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(w, req)
	return w
}

// signup registers a user and returns a session token.
func (a *testAPI) signup(name string) (token, userID string) {
	a.t.Helper()
	email := strings.ToLower(name) + "@example.com"
	if w := a.do(http.MethodPost, "/api/register", "", map[string]string{
		"name": name, "email": email, "password": "geheim",
	}); w.Code != http.StatusCreated {
		a.t.Fatalf("register %s: %d %s", name, w.Code, w.Body)
	}
	w := a.do(http.MethodPost, "/api/login", "", map[string]string{"email": email, "password": "geheim"})
	if w.Code != http.StatusOK {
		a.t.Fatalf("login %s: %d %s", name, w.Code, w.Body)
	}
	var sess struct {
		Token string    `json:"token"`
		User  core.User `json:"user"`
	}
	decode(a.t, w, &sess)
	return sess.Token, sess.User.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

type accountJSON struct {
	ID      string     `json:"id"`
	Balance core.Money `json:"balance"`
}

func (a *testAPI) balance(token, id string) int64 {
	a.t.Helper()
	w := a.do(http.MethodGet, "/api/accounts", token, nil)
	var accounts []accountJSON
	decode(a.t, w, &accounts)
	for _, acc := range accounts {
		if acc.ID == id {
			return acc.Balance.Cents
		}
	}
	a.t.Fatalf("account %s not listed", id)
	return 0
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		w := api.do(http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, w.Code)
		}
		if w.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s has no request id", path)
		}
	}
}

func TestReadyzReportsStoreFailure(t *testing.T) {
	api := newTestAPI(t)
	api.srv.deps.Ready = func(context.Context) error { return io.ErrUnexpectedEOF }
	if w := api.do(http.MethodGet, "/readyz", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodGet, "/api/accounts", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	var body errorBody
	decode(t, w, &body)
	if body.Error.Code != "unauthorized" {
		t.Errorf("code = %q", body.Error.Code)
	}

	if w := api.do(http.MethodPost, "/api/login", "", map[string]string{"email": "x@example.com", "password": "nope00"}); w.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", w.Code)
	}
}

func TestLedgerBalanceFlow(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.signup("Anna")

	w := api.do(http.MethodPost, "/api/accounts", token, map[string]any{
		"name": "Giro", "type": "bank", "balance": 100,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create account: %d %s", w.Code, w.Body)
	}
	var acc accountJSON
	decode(t, w, &acc)
	if got := api.balance(token, acc.ID); got != 10000 {
		t.Fatalf("starting balance = %d, want 10000", got)
	}

	w = api.do(http.MethodPost, "/api/transactions", token, map[string]any{
		"text": "Einkauf", "amount": -30, "category": "Food", "date": "2024-03-10", "accountId": acc.ID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create transaction: %d %s", w.Code, w.Body)
	}
	var tx struct {
		ID    int64  `json:"id"`
		Month string `json:"month"`
	}
	decode(t, w, &tx)
	if tx.Month != "März 2024" {
		t.Errorf("month = %q", tx.Month)
	}
	if got := api.balance(token, acc.ID); got != 7000 {
		t.Fatalf("after create = %d, want 7000", got)
	}

	target := "/api/transactions/" + itoa(tx.ID)
	if w := api.do(http.MethodPatch, target, token, map[string]any{"amount": -10}); w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body)
	}
	if got := api.balance(token, acc.ID); got != 9000 {
		t.Fatalf("after update = %d, want 9000", got)
	}

	if w := api.do(http.MethodDelete, target, token, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", w.Code, w.Body)
	}
	if got := api.balance(token, acc.ID); got != 10000 {
		t.Fatalf("after delete = %d, want 10000", got)
	}
}

func TestOwnershipLooksLikeNotFound(t *testing.T) {
	api := newTestAPI(t)
	alice, _ := api.signup("Alice")
	bob, _ := api.signup("Bob")

	w := api.do(http.MethodPost, "/api/transactions", alice, map[string]any{
		"text": "Miete", "amount": -800, "category": "Housing", "date": "2024-03-01",
	})
	var tx struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &tx)

	foreign := api.do(http.MethodPatch, "/api/transactions/"+itoa(tx.ID), bob, map[string]any{"amount": -1})
	missing := api.do(http.MethodPatch, "/api/transactions/999999", bob, map[string]any{"amount": -1})

	if foreign.Code != http.StatusNotFound || missing.Code != http.StatusNotFound {
		t.Fatalf("status foreign=%d missing=%d, want 404", foreign.Code, missing.Code)
	}
	if foreign.Body.String() != missing.Body.String() {
		t.Errorf("bodies differ: %s vs %s", foreign.Body, missing.Body)
	}

	var list []json.RawMessage
	decode(t, api.do(http.MethodGet, "/api/transactions", bob, nil), &list)
	if len(list) != 0 {
		t.Errorf("bob sees %d transactions", len(list))
	}
}

func TestRequestErrors(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.signup("Anna")

	tests := []struct {
		name   string
		method string
		target string
		body   any
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/transactions", "{", http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/transactions", nil, http.StatusBadRequest},
		{"missing text", http.MethodPost, "/api/transactions", map[string]any{"amount": 1, "date": "2024-03-01"}, http.StatusUnprocessableEntity},
		{"unknown account", http.MethodPost, "/api/transactions", map[string]any{"text": "x", "amount": 1, "date": "2024-03-01", "accountId": "nope"}, http.StatusUnprocessableEntity},
		{"bad id", http.MethodDelete, "/api/transactions/abc", nil, http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/nothing", nil, http.StatusNotFound},
		{"bad export format", http.MethodGet, "/api/export?format=pdf", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(tt.method, tt.target, token, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body)
			}
		})
	}
}

func TestRecurringRunAndLogin(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.signup("Anna")

	w := api.do(http.MethodPost, "/api/recurring", token, map[string]any{
		"text": "Miete", "amount": -800, "category": "Housing", "dayOfMonth": 5, "startDate": "2024-01-01",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create recurring: %d %s", w.Code, w.Body)
	}

	var run runResponse
	decode(t, api.do(http.MethodPost, "/api/recurring/run", token, nil), &run)
	if run.Checked != 1 || len(run.Created) != 1 {
		t.Fatalf("first run = %+v, want one created", run)
	}
	if run.Created[0].Month != "März 2024" || run.Created[0].AccountID != "" {
		t.Errorf("materialized = %+v", run.Created[0])
	}

	decode(t, api.do(http.MethodPost, "/api/recurring/run", token, nil), &run)
	if len(run.Created) != 0 || run.Skipped[services.SkipAlreadyExecuted] != 1 {
		t.Errorf("second run = %+v, want skip", run)
	}

	// A fresh login evaluates again without booking twice.
	api.do(http.MethodPost, "/api/login", "", map[string]string{"email": "anna@example.com", "password": "geheim"})
	var list []json.RawMessage
	decode(t, api.do(http.MethodGet, "/api/transactions", token, nil), &list)
	if len(list) != 1 {
		t.Errorf("transactions = %d, want 1", len(list))
	}
}

func TestLoginBooksDueDefinitions(t *testing.T) {
	api := newTestAPI(t)
	token, userID := api.signup("Anna")

	w := api.do(http.MethodPost, "/api/recurring", token, map[string]any{
		"text": "Gehalt", "amount": 2500, "category": "Salary", "dayOfMonth": 1, "startDate": "2024-01-01",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create recurring: %d %s", w.Code, w.Body)
	}

	if w := api.do(http.MethodPost, "/api/login", "", map[string]string{"email": "anna@example.com", "password": "geheim"}); w.Code != http.StatusOK {
		t.Fatalf("login: %d", w.Code)
	}

	txs, err := api.store.ListTransactions(context.Background(), userID, core.TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 || txs[0].Description != "Gehalt" {
		t.Errorf("transactions = %+v, want the salary booked at login", txs)
	}
}

func TestCategoryDeleteInUse(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.signup("Anna")

	if w := api.do(http.MethodPost, "/api/categories", token, map[string]any{"key": "Pets", "label": "Haustiere"}); w.Code != http.StatusCreated {
		t.Fatalf("create category: %d %s", w.Code, w.Body)
	}
	api.do(http.MethodPost, "/api/transactions", token, map[string]any{
		"text": "Futter", "amount": -20, "category": "Pets", "date": "2024-03-02",
	})

	if w := api.do(http.MethodDelete, "/api/categories/Pets", token, nil); w.Code != http.StatusConflict {
		t.Errorf("delete in use = %d, want 409", w.Code)
	}
	if w := api.do(http.MethodDelete, "/api/categories/Pets?force=true", token, nil); w.Code != http.StatusNoContent {
		t.Errorf("forced delete = %d, want 204", w.Code)
	}
	if w := api.do(http.MethodDelete, "/api/categories/Food", token, nil); w.Code != http.StatusNotFound {
		t.Errorf("delete global = %d, want 404", w.Code)
	}
}

func TestReportsAndSettings(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.signup("Anna")

	for _, body := range []map[string]any{
		{"text": "Gehalt", "amount": 100, "category": "Salary", "date": "2024-03-01"},
		{"text": "Essen", "amount": -60, "category": "Food", "date": "2024-03-02"},
	} {
		if w := api.do(http.MethodPost, "/api/transactions", token, body); w.Code != http.StatusCreated {
			t.Fatalf("create: %d %s", w.Code, w.Body)
		}
	}

	var stats struct {
		Income  core.Money `json:"totalIncome"`
		Expense core.Money `json:"totalExpense"`
		Balance core.Money `json:"balance"`
	}
	decode(t, api.do(http.MethodGet, "/api/reports/statistics?month=M%C3%A4rz+2024", token, nil), &stats)
	if stats.Income.Cents != 10000 || stats.Expense.Cents != 6000 || stats.Balance.Cents != 4000 {
		t.Errorf("stats = %+v", stats)
	}

	if w := api.do(http.MethodPut, "/api/settings", token, map[string]any{"budgetLimit": 120}); w.Code != http.StatusOK {
		t.Fatalf("settings: %d %s", w.Code, w.Body)
	}
	var budget struct {
		Month      string  `json:"month"`
		Percentage float64 `json:"percentage"`
	}
	decode(t, api.do(http.MethodGet, "/api/reports/budget", token, nil), &budget)
	if budget.Month != "März 2024" || budget.Percentage != 50 {
		t.Errorf("budget = %+v, want 50%% of the monthly limit", budget)
	}

	if w := api.do(http.MethodPut, "/api/settings", token, map[string]any{"theme": "neon"}); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid theme = %d, want 422", w.Code)
	}
}

func TestExportImportCSV(t *testing.T) {
	api := newTestAPI(t)
	alice, _ := api.signup("Alice")
	bob, _ := api.signup("Bob")

	api.do(http.MethodPost, "/api/transactions", alice, map[string]any{
		"text": "Döner, scharf", "amount": -7.5, "category": "Food", "date": "2024-03-02",
	})

	w := api.do(http.MethodGet, "/api/export?format=csv", alice, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export: %d %s", w.Code, w.Body)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "budget_2024-03-10.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	csvBody := w.Body.String()
	if !strings.Contains(csvBody, "ID,Datum,Monat,Beschreibung,Betrag,Kategorie") {
		t.Fatalf("export lacks header: %q", csvBody)
	}

	w = api.do(http.MethodPost, "/api/import?format=csv", bob, csvBody)
	if w.Code != http.StatusOK {
		t.Fatalf("import: %d %s", w.Code, w.Body)
	}
	var res services.ImportResult
	decode(t, w, &res)
	if res.Imported != 1 || len(res.Errors) != 0 {
		t.Errorf("import = %+v", res)
	}
}

func TestAdminRoutes(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.signup("Anna")

	if w := api.do(http.MethodGet, "/api/admin/users", token, nil); w.Code != http.StatusForbidden {
		t.Fatalf("user on admin route = %d, want 403", w.Code)
	}

	if _, err := api.auth.Promote(context.Background(), "anna@example.com"); err != nil {
		t.Fatalf("Promote: %v", err)
	}
	// The role travels in the token, so a new session is needed.
	w := api.do(http.MethodPost, "/api/login", "", map[string]string{"email": "anna@example.com", "password": "geheim"})
	var sess struct {
		Token string `json:"token"`
	}
	decode(t, w, &sess)

	w = api.do(http.MethodPost, "/api/admin/users", sess.Token, map[string]string{
		"name": "Ben", "email": "ben@example.com", "password": "geheim", "role": "ADMIN",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create user: %d %s", w.Code, w.Body)
	}

	var users []core.UserSummary
	decode(t, api.do(http.MethodGet, "/api/admin/users", sess.Token, nil), &users)
	if len(users) != 2 {
		t.Errorf("users = %d, want 2", len(users))
	}
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
