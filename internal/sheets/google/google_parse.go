package google

import (
	"fmt"
	"strconv"
	"strings"

	"budgetplaner/internal/core"
)

// indexRows maps transaction ids to their 1-based sheet row and booked
// account. count is the number of rows the sheet reports, cleared rows
// included. Rows whose first cell is not an id (the header, blanks) are
// skipped.
func indexRows(values [][]any) (rows map[int64]int, accounts map[int64]string, count int) {
	rows = make(map[int64]int, len(values))
	accounts = make(map[int64]string, len(values))
	for i, r := range values {
		if len(r) == 0 {
			continue
		}
		id, ok := parseRowID(r[0])
		if !ok {
			continue
		}
		rows[id] = i + 1
		accounts[id] = safeGet(r, 6)
	}
	return rows, accounts, len(values)
}

// rowValues lays t out as columns A to H.
func rowValues(t core.Transaction, categoryLabel string) []any {
	if categoryLabel == "" {
		categoryLabel = t.Category
	}
	return []any{
		strconv.FormatInt(t.ID, 10),
		t.Date.German(),
		t.Month,
		t.Description,
		t.Amount.Euros(),
		categoryLabel,
		t.AccountID,
		t.OwnerID,
	}
}

func parseRowID(v any) (int64, bool) {
	s := cellString(v)
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func safeGet(r []any, i int) string {
	if i < len(r) {
		return cellString(r[i])
	}
	return ""
}
