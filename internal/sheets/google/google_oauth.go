package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"
)

// OAuthCredentials authorize the mirror as a Google user instead of a
// service account. The token is obtained once with cmd/sheets-auth.
type OAuthCredentials struct {
	ClientJSON string
	ClientFile string
	TokenJSON  string
	TokenFile  string
}

func (o OAuthCredentials) configured() bool {
	return strings.TrimSpace(o.ClientJSON) != "" || strings.TrimSpace(o.ClientFile) != ""
}

// OAuthConfig parses the OAuth client for the spreadsheets scope.
func (o OAuthCredentials) OAuthConfig() (*oauth2.Config, error) {
	b, err := readSecret(o.ClientJSON, o.ClientFile, "oauth client")
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	cfg, err := oauthgoogle.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// Token parses the stored user token.
func (o OAuthCredentials) Token() (*oauth2.Token, error) {
	b, err := readSecret(o.TokenJSON, o.TokenFile, "oauth token")
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	return &tok, nil
}

// TokenSource refreshes the stored token as needed.
func (o OAuthCredentials) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	cfg, err := o.OAuthConfig()
	if err != nil {
		return nil, err
	}
	tok, err := o.Token()
	if err != nil {
		return nil, err
	}
	return cfg.TokenSource(ctx, tok), nil
}

// SaveToken writes tok to path readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// readSecret prefers the inline value. Both empty yields nil, nil.
func readSecret(inline, path, what string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s file: %w", what, err)
	}
	return b, nil
}
