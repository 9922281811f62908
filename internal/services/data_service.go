package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"budgetplaner/internal/backup"
	"budgetplaner/internal/core"
	"budgetplaner/internal/ports"
)

// DataService moves an owner's ledger in and out of backup documents.
// Imported transactions are replayed through LedgerService.Create, so they
// get new ids and their balance effects like any other booking.
type DataService struct {
	ledger     *LedgerService
	categories ports.CategoryStore
	now        func() time.Time
}

func NewDataService(ledger *LedgerService, categories ports.CategoryStore) *DataService {
	return &DataService{ledger: ledger, categories: categories, now: time.Now}
}

func (s *DataService) WithClock(now func() time.Time) *DataService {
	s.now = now
	return s
}

// RowError reports an import row that was not booked.
type RowError struct {
	Line    int    `json:"line"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

type ImportResult struct {
	Imported   int        `json:"imported"`
	Categories int        `json:"categories"`
	Errors     []RowError `json:"errors"`
}

// Export writes every transaction of the owner together with the categories
// the owner sees.
func (s *DataService) Export(ctx context.Context, ownerID string, format backup.Format, w io.Writer) error {
	txs, err := s.ledger.List(ctx, ownerID, core.TransactionFilter{})
	if err != nil {
		return err
	}
	categories, err := s.categories.ListCategories(ctx, ownerID)
	if err != nil {
		return core.StoreFailure(err)
	}

	doc := backup.Document{Transactions: txs, Categories: core.NewCategoryMap(categories)}
	if err := backup.Encode(format, w, doc); err != nil {
		return fmt.Errorf("encode %s export: %w", format, err)
	}
	return nil
}

// Import reads a backup and books its transactions for the owner. A row
// that fails is reported in the result and does not stop the import; only
// an unreadable document fails as a whole.
func (s *DataService) Import(ctx context.Context, ownerID string, format backup.Format, r io.Reader) (ImportResult, error) {
	decoded, err := backup.Decode(format, r, s.now())
	if err != nil {
		return ImportResult{}, core.Invalid(err)
	}

	res := ImportResult{Errors: []RowError{}}
	for _, c := range decoded.Categories {
		if err := s.upsertCategory(ctx, ownerID, c); err != nil {
			res.Errors = append(res.Errors, RowError{ID: c.Key, Message: err.Error()})
			continue
		}
		res.Categories++
	}
	if res.Categories > 0 {
		notify(ctx, s.ledger.notifier, core.LedgerEvent{Type: core.EventCategoryChanged, OwnerID: ownerID, At: s.now()})
	}

	keys, err := s.categoryKeys(ctx, ownerID)
	if err != nil {
		return ImportResult{}, err
	}

	for _, rec := range decoded.Records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if rec.Err != nil {
			res.Errors = append(res.Errors, RowError{Line: rec.Line, ID: rec.ID, Message: rec.Err.Error()})
			continue
		}

		draft := rec.Draft
		if key, ok := keys[strings.ToLower(draft.Category)]; ok {
			draft.Category = key
		}
		if _, err := s.ledger.Create(ctx, ownerID, draft); err != nil {
			res.Errors = append(res.Errors, RowError{Line: rec.Line, ID: rec.ID, Message: err.Error()})
			continue
		}
		res.Imported++
	}

	slog.InfoContext(ctx, "Import complete",
		"owner_id", ownerID,
		"format", format,
		"imported", res.Imported,
		"categories", res.Categories,
		"errors", len(res.Errors))
	return res, nil
}

func (s *DataService) upsertCategory(ctx context.Context, ownerID string, c core.Category) error {
	c.OwnerID = ownerID
	if err := c.Validate(); err != nil {
		return core.Invalid(err)
	}
	existing, err := s.categories.GetCategory(ctx, ownerID, c.Key)
	switch {
	case err == nil && existing.OwnerID == ownerID:
		return s.categories.UpdateCategory(ctx, c)
	case err == nil || core.IsNotFound(err):
		return s.categories.CreateCategory(ctx, c)
	default:
		return core.StoreFailure(err)
	}
}

// categoryKeys maps lower-cased keys and labels to category keys. Spreadsheet
// exports carry labels, so imports resolve them back.
func (s *DataService) categoryKeys(ctx context.Context, ownerID string) (map[string]string, error) {
	list, err := s.categories.ListCategories(ctx, ownerID)
	if err != nil {
		return nil, core.StoreFailure(err)
	}
	keys := make(map[string]string, 2*len(list))
	for _, c := range list {
		keys[strings.ToLower(c.Label)] = c.Key
	}
	for _, c := range list {
		keys[strings.ToLower(c.Key)] = c.Key
	}
	return keys, nil
}
