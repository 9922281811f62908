// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budgetplaner/internal/auth"
	"budgetplaner/internal/core"
)

const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 10 << 20
)

var (
	errEmptyBody = errors.New("request body is empty")
	errBadID     = errors.New("invalid id")
)

// decodeJSON reads one JSON value from the body into v. Unknown fields
// are ignored so that clients may send back whole objects.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON: trailing data")
	}
	return nil
}

// transactionID reads the numeric {id} path value.
func transactionID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

// ParseTransactionFilter reads month, accountId, category and q.
func ParseTransactionFilter(query url.Values) core.TransactionFilter {
	return core.TransactionFilter{
		Month:     sanitizeInput(query.Get("month")),
		AccountID: sanitizeInput(query.Get("accountId")),
		Category:  sanitizeInput(query.Get("category")),
		Query:     sanitizeInput(query.Get("q")),
	}
}

// queryBool accepts the usual spellings of true; anything else is false.
func queryBool(query url.Values, key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(query.Get(key)))
	return err == nil && b
}

// owner returns the authenticated caller. Routes behind the auth
// middleware always have one.
func owner(r *http.Request) string {
	id, _ := auth.IdentityFrom(r.Context())
	return id.UserID
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, s))
}
