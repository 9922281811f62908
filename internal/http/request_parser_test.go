package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"budgetplaner/internal/core"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Text string `json:"text"`
	}

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"valid", `{"text":"Miete"}`, "Miete", false},
		{"unknown fields ignored", `{"text":"Miete","lastExecuted":"2024-01-01"}`, "Miete", false},
		{"trailing whitespace", "{\"text\":\"x\"}\n", "x", false},
		{"empty", ``, "", true},
		{"malformed", `{"text":`, "", true},
		{"trailing value", `{"text":"a"} {"text":"b"}`, "", true},
		{"too large", `{"text":"` + strings.Repeat("a", maxBodyBytes) + `"}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := decodeJSON(httptest.NewRecorder(), r, &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && p.Text != tt.want {
				t.Errorf("text = %q, want %q", p.Text, tt.want)
			}
		})
	}
}

func TestDecodeJSONEmptyBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var v map[string]any
	if err := decodeJSON(httptest.NewRecorder(), r, &v); !errors.Is(err, errEmptyBody) {
		t.Errorf("err = %v, want errEmptyBody", err)
	}
}

func TestTransactionID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.SetPathValue("id", tt.raw)
			got, err := transactionID(r)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("transactionID(%q) = %d, %v", tt.raw, got, err)
			}
		})
	}
}

func TestParseTransactionFilter(t *testing.T) {
	q := url.Values{
		"month":     {" März 2024 "},
		"accountId": {"acc-1"},
		"category":  {"Food"},
		"q":         {"döner\x00"},
	}
	got := ParseTransactionFilter(q)
	want := core.TransactionFilter{Month: "März 2024", AccountID: "acc-1", Category: "Food", Query: "döner"}
	if got != want {
		t.Errorf("filter = %+v, want %+v", got, want)
	}

	if empty := ParseTransactionFilter(url.Values{}); empty != (core.TransactionFilter{}) {
		t.Errorf("empty query = %+v", empty)
	}
}

func TestQueryBool(t *testing.T) {
	tests := map[string]bool{
		"true":  true,
		"1":     true,
		"TRUE":  true,
		"false": false,
		"yes":   false,
		"":      false,
	}
	for raw, want := range tests {
		t.Run(raw, func(t *testing.T) {
			if got := queryBool(url.Values{"force": {raw}}, "force"); got != want {
				t.Errorf("queryBool(%q) = %v, want %v", raw, got, want)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Miete  ", "Miete"},
		{"a\x00b\x1fc", "abc"},
		{"tab\tinside", "tab\tinside"},
		{"Grüße", "Grüße"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
