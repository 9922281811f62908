package auth

import (
	"context"
	"net/http"
	"strings"

	"budgetplaner/internal/core"
)

type contextKey struct{}

// Identity is the authenticated caller. UserID scopes every operation.
type Identity struct {
	UserID string
	Role   core.Role
}

func (i Identity) IsAdmin() bool { return i.Role == core.RoleAdmin }

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// Middleware requires a valid bearer token. Requests without one are
// passed to deny.
func Middleware(tokens *Tokens, deny func(http.ResponseWriter, *http.Request, int)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				deny(w, r, http.StatusUnauthorized)
				return
			}
			claims, err := tokens.Parse(raw)
			if err != nil {
				deny(w, r, http.StatusUnauthorized)
				return
			}
			ctx := WithIdentity(r.Context(), Identity{UserID: claims.Subject, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin lets only ADMIN identities through.
func RequireAdmin(deny func(http.ResponseWriter, *http.Request, int)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				deny(w, r, http.StatusUnauthorized)
				return
			}
			if !id.IsAdmin() {
				deny(w, r, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
