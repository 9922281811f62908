// Package backup reads and writes ledger exports. JSON carries the full
// document; CSV and XLSX carry the transaction table only.
package backup

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"budgetplaner/internal/core"
)

type Format string

const (
	JSON Format = "json"
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// SheetName is the worksheet XLSX exports write and imports read first.
const SheetName = "Transaktionen"

// Header is the column layout shared by CSV and XLSX.
var Header = []string{"ID", "Datum", "Monat", "Beschreibung", "Betrag", "Kategorie"}

var ErrUnknownFormat = errors.New("unknown backup format")

// ParseFormat accepts json, csv and xlsx in any case. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return JSON, nil
	case JSON, CSV, XLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType is the media type of an encoded document.
func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv; charset=utf-8"
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// Filename names an export taken at t.
func (f Format) Filename(t time.Time) string {
	return fmt.Sprintf("budget_%s.%s", t.Format("2006-01-02"), f)
}

// Document is the JSON export shape.
type Document struct {
	Transactions []core.Transaction `json:"transactions"`
	Categories   core.CategoryMap   `json:"categories"`
}

// Record is one transaction read from an import. Err is set when the row
// could not be read; such a row carries no usable draft.
type Record struct {
	Line  int
	ID    string
	Draft core.TransactionDraft
	Err   error
}

// Decoded is the content of an import.
type Decoded struct {
	Records    []Record
	Categories []core.Category
}

// Encode writes doc in format f. Categories label the CSV and XLSX
// category column; keys without a category are written raw.
func Encode(f Format, w io.Writer, doc Document) error {
	switch f {
	case JSON:
		return encodeJSON(w, doc)
	case CSV:
		return encodeCSV(w, doc)
	case XLSX:
		return encodeXLSX(w, doc)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// Decode reads an import in format f. Rows lacking a date are dated today.
func Decode(f Format, r io.Reader, today time.Time) (Decoded, error) {
	switch f {
	case JSON:
		return decodeJSON(r, today)
	case CSV:
		return decodeCSV(r, today)
	case XLSX:
		return decodeXLSX(r, today)
	default:
		return Decoded{}, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// row renders a transaction in the Header column order.
func row(t core.Transaction, categories core.CategoryMap) []string {
	return []string{
		fmt.Sprint(t.ID),
		t.Date.German(),
		t.Month,
		t.Description,
		t.Amount.String(),
		categories.Label(t.Category),
	}
}

// columns maps header names to their positions. A row that is not a
// recognizable header yields the default layout and false.
func columns(header []string) (map[string]int, bool) {
	idx := map[string]int{}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		for _, name := range Header {
			if strings.EqualFold(h, name) {
				idx[name] = i
			}
		}
	}
	if len(idx) == 0 {
		for i, name := range Header {
			idx[name] = i
		}
		return idx, false
	}
	return idx, true
}

// fromCells applies the import defaults to one table row.
func fromCells(line int, cells []string, idx map[string]int, today time.Time) Record {
	get := func(name string) string {
		i, ok := idx[name]
		if !ok || i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}

	rec := Record{Line: line, ID: get("ID")}

	date := core.DateOf(today)
	if s := get("Datum"); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			rec.Err = err
			return rec
		}
		date = d
	}

	amount, err := core.ParseMoney(get("Betrag"))
	if err != nil {
		amount = core.Money{}
	}

	description := get("Beschreibung")
	if description == "" {
		description = core.ImportedDescription
	}

	rec.Draft = core.TransactionDraft{
		Description: description,
		Amount:      amount,
		Category:    get("Kategorie"),
		Date:        date,
		Month:       get("Monat"),
	}.Normalize()
	return rec
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
