package backup

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"budgetplaner/internal/core"
)

func encodeJSON(w io.Writer, doc Document) error {
	if doc.Transactions == nil {
		doc.Transactions = []core.Transaction{}
	}
	if doc.Categories == nil {
		doc.Categories = core.CategoryMap{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// jsonTransaction accepts the export shape with lenient dates.
type jsonTransaction struct {
	ID          json.RawMessage `json:"id"`
	Description string          `json:"text"`
	Amount      core.Money      `json:"amount"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
	Month       string          `json:"month"`
	AccountID   string          `json:"accountId"`
}

type jsonDocument struct {
	Transactions []json.RawMessage `json:"transactions"`
	Categories   core.CategoryMap  `json:"categories"`
}

func decodeJSON(r io.Reader, today time.Time) (Decoded, error) {
	var doc jsonDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Decoded{}, fmt.Errorf("decode backup document: %w", err)
	}

	out := Decoded{Categories: doc.Categories.Categories()}
	for i, raw := range doc.Transactions {
		rec := Record{Line: i + 1}
		var t jsonTransaction
		if err := json.Unmarshal(raw, &t); err != nil {
			rec.Err = err
			out.Records = append(out.Records, rec)
			continue
		}
		rec.ID = strings.Trim(string(t.ID), `"`)

		date := core.DateOf(today)
		if t.Date != "" {
			d, err := core.ParseDate(t.Date)
			if err != nil {
				rec.Err = err
				out.Records = append(out.Records, rec)
				continue
			}
			date = d
		}
		if t.Description == "" {
			t.Description = core.ImportedDescription
		}
		rec.Draft = core.TransactionDraft{
			Description: t.Description,
			Amount:      t.Amount,
			Category:    t.Category,
			Date:        date,
			Month:       t.Month,
			AccountID:   t.AccountID,
		}.Normalize()
		out.Records = append(out.Records, rec)
	}
	return out, nil
}
