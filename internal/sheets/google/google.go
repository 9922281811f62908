package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"budgetplaner/internal/core"
	ports "budgetplaner/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	DefaultSheetName = "Transaktionen"
	defaultCacheTTL  = 2 * time.Minute
	lastColumn       = "H"
)

// Header is written to row 1 of an empty mirror sheet.
var Header = []any{"ID", "Datum", "Monat", "Beschreibung", "Betrag", "Kategorie", "Konto", "Besitzer"}

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	// OAuth is used when no service account is configured.
	OAuth OAuthCredentials
}

// Client mirrors transactions into one sheet, one row per transaction with
// the id in column A.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// mu guards the row index and serializes writes so that two appends
	// never pick the same row.
	mu                 sync.Mutex
	rows               map[int64]int
	accounts           map[int64]string
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

var _ ports.TransactionMirror = (*Client)(nil)

// NewFromEnv creates a Sheets client from GOOGLE_SPREADSHEET_ID,
// GOOGLE_SHEET_NAME and the service account or OAuth variables.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Config{
		SpreadsheetID:      os.Getenv("GOOGLE_SPREADSHEET_ID"),
		SheetName:          os.Getenv("GOOGLE_SHEET_NAME"),
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
		OAuth: OAuthCredentials{
			ClientJSON: os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"),
			ClientFile: os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"),
			TokenJSON:  os.Getenv("GOOGLE_OAUTH_TOKEN_JSON"),
			TokenFile:  os.Getenv("GOOGLE_OAUTH_TOKEN_FILE"),
		},
	})
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = DefaultSheetName
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		sheetName:          sheetName,
		cacheValidDuration: defaultCacheTTL,
	}, nil
}

// newSheetsService initializes a Sheets Service. Service account
// credentials win over an OAuth user token; GOOGLE_APPLICATION_CREDENTIALS
// is the last resort.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		if cfg.OAuth.configured() {
			slog.InfoContext(ctx, "Using OAuth user credentials")
			ts, err := cfg.OAuth.TokenSource(ctx)
			if err != nil {
				return nil, err
			}
			return newService(ctx, goption.WithTokenSource(ts))
		}
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS, or the GOOGLE_OAUTH_* pair)")
	}

	return newService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

func newService(ctx context.Context, opts ...goption.ClientOption) (*gsheet.Service, error) {
	service, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// UpsertTransaction implements ports.TransactionMirror.
func (c *Client) UpsertTransaction(ctx context.Context, t core.Transaction, categoryLabel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureIndex(ctx); err != nil {
		return err
	}

	row, ok := c.rows[t.ID]
	if !ok {
		row = c.cachedRowCount + 1
	}

	vr := &gsheet.ValueRange{Values: [][]any{rowValues(t, categoryLabel)}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rowRange(row), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		c.invalidateLocked()
		return fmt.Errorf("write row %d: %w", row, err)
	}

	c.rows[t.ID] = row
	c.accounts[t.ID] = t.AccountID
	if row > c.cachedRowCount {
		c.cachedRowCount = row
	}

	slog.DebugContext(ctx, "Mirrored transaction", "transaction_id", t.ID, "row", row, "appended", !ok)
	return nil
}

// DeleteTransaction implements ports.TransactionMirror.
func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureIndex(ctx); err != nil {
		return err
	}
	return c.clearLocked(ctx, id)
}

// DeleteAccountRows implements ports.TransactionMirror.
func (c *Client) DeleteAccountRows(ctx context.Context, accountID string) (int, error) {
	if accountID == "" {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureIndex(ctx); err != nil {
		return 0, err
	}

	var ids []int64
	for id, acc := range c.accounts {
		if acc == accountID {
			ids = append(ids, id)
		}
	}
	for n, id := range ids {
		if err := c.clearLocked(ctx, id); err != nil {
			return n, err
		}
	}
	return len(ids), nil
}

// InvalidateRowCache forces the next write to re-read the sheet.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

func (c *Client) clearLocked(ctx context.Context, id int64) error {
	row, ok := c.rows[id]
	if !ok {
		return nil
	}
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, c.rowRange(row), &gsheet.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		c.invalidateLocked()
		return fmt.Errorf("clear row %d: %w", row, err)
	}
	delete(c.rows, id)
	delete(c.accounts, id)
	slog.DebugContext(ctx, "Cleared mirrored transaction", "transaction_id", id, "row", row)
	return nil
}

// ensureIndex reloads the id → row index when it expired. An empty sheet
// gets the header row.
func (c *Client) ensureIndex(ctx context.Context) error {
	if c.indexValid(time.Now()) {
		return nil
	}

	rng := fmt.Sprintf("%s!A:%s", c.sheetName, lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read mirror sheet: %w", err)
	}

	if len(resp.Values) == 0 {
		vr := &gsheet.ValueRange{Values: [][]any{Header}}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rowRange(1), vr).
			ValueInputOption("RAW").
			Context(ctx).
			Do(); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		resp.Values = [][]any{Header}
	}

	c.rows, c.accounts, c.cachedRowCount = indexRows(resp.Values)
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	return nil
}

func (c *Client) indexValid(now time.Time) bool {
	return c.rows != nil && now.Before(c.cacheExpiresAt)
}

func (c *Client) invalidateLocked() {
	c.cacheExpiresAt = time.Time{}
}

func (c *Client) rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", c.sheetName, row, lastColumn, row)
}
