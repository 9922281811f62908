package core

import (
	"errors"
	"strings"
	"testing"
)

func TestTransactionDraftNormalizeAndValidate(t *testing.T) {
	d := TransactionDraft{
		Description: "  Miete ",
		Amount:      Cents(-50000),
		Date:        NewDate(2024, 3, 1),
	}.Normalize()

	if d.Description != "Miete" {
		t.Errorf("description not trimmed: %q", d.Description)
	}
	if d.Category != DefaultCategoryKey {
		t.Errorf("category default = %q", d.Category)
	}
	if d.Month != "März 2024" {
		t.Errorf("month default = %q", d.Month)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("expected valid draft, got %v", err)
	}

	bads := []struct {
		name string
		d    TransactionDraft
		err  error
	}{
		{"empty description", TransactionDraft{Date: NewDate(2024, 1, 1), Month: "x", Category: "c"}, ErrEmptyDescription},
		{"long description", TransactionDraft{Description: strings.Repeat("a", 101), Date: NewDate(2024, 1, 1), Month: "x", Category: "c"}, ErrDescriptionTooLong},
		{"zero date", TransactionDraft{Description: "a", Month: "x", Category: "c"}, ErrInvalidDate},
		{"no month", TransactionDraft{Description: "a", Date: NewDate(2024, 1, 1), Category: "c"}, ErrEmptyMonth},
	}
	for _, tt := range bads {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.d.Validate(); !errors.Is(err, tt.err) {
				t.Fatalf("Validate() = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestTransactionPatchApply(t *testing.T) {
	base := Transaction{
		ID: 1, Description: "Kaffee", Amount: Cents(-300), Category: "Food",
		Date: NewDate(2024, 3, 10), Month: "März 2024", AccountID: "acc-1",
	}

	newDate := NewDate(2024, 4, 2)
	got := TransactionPatch{Date: &newDate}.Apply(base)
	if got.Month != "April 2024" {
		t.Errorf("month should follow date, got %q", got.Month)
	}

	month := "Mai 2024"
	got = TransactionPatch{Date: &newDate, Month: &month}.Apply(base)
	if got.Month != month {
		t.Errorf("explicit month ignored, got %q", got.Month)
	}

	detach := ""
	got = TransactionPatch{AccountID: &detach}.Apply(base)
	if got.AccountID != "" {
		t.Errorf("account not detached: %q", got.AccountID)
	}

	got = TransactionPatch{}.Apply(base)
	if got != base {
		t.Errorf("empty patch changed transaction: %+v", got)
	}
}

func TestTransactionFilterMatches(t *testing.T) {
	tx := Transaction{Description: "Wocheneinkauf REWE", Category: "Food", Month: "März 2024", AccountID: "a"}
	tests := []struct {
		name string
		f    TransactionFilter
		want bool
	}{
		{"empty", TransactionFilter{}, true},
		{"query description", TransactionFilter{Query: "rewe"}, true},
		{"query category", TransactionFilter{Query: "foo"}, true},
		{"query miss", TransactionFilter{Query: "miete"}, false},
		{"month", TransactionFilter{Month: "März 2024"}, true},
		{"other month", TransactionFilter{Month: "April 2024"}, false},
		{"account miss", TransactionFilter{AccountID: "b"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Matches(tx); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecurringDefinitionValidate(t *testing.T) {
	end := NewDate(2023, 12, 31)
	good := RecurringDraft{
		Description: "Miete",
		Amount:      Cents(-80000),
		DayOfMonth:  1,
		StartDate:   NewDate(2024, 1, 1),
	}.Definition("id", "owner")

	if !good.IsActive || good.Interval != Monthly || good.Category != DefaultCategoryKey {
		t.Fatalf("unexpected defaults: %+v", good)
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*RecurringDefinition)
		err    error
	}{
		{"zero amount", func(r *RecurringDefinition) { r.Amount = Money{} }, ErrInvalidAmount},
		{"day zero", func(r *RecurringDefinition) { r.DayOfMonth = 0 }, ErrInvalidDay},
		{"day 32", func(r *RecurringDefinition) { r.DayOfMonth = 32 }, ErrInvalidDay},
		{"weekly", func(r *RecurringDefinition) { r.Interval = "weekly" }, ErrInvalidInterval},
		{"end before start", func(r *RecurringDefinition) { r.EndDate = &end }, ErrEndBeforeStart},
		{"no start", func(r *RecurringDefinition) { r.StartDate = Date{} }, ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := good
			tt.mutate(&r)
			if err := r.Validate(); !errors.Is(err, tt.err) {
				t.Fatalf("Validate() = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestSettingsValidate(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	s := DefaultSettings()
	s.Theme = "neon"
	if !errors.Is(s.Validate(), ErrInvalidTheme) {
		t.Error("expected theme error")
	}
	s = DefaultSettings()
	s.BudgetLimit = Cents(100000000)
	if !errors.Is(s.Validate(), ErrInvalidLimit) {
		t.Error("expected limit error")
	}
}

func TestCategoryMapWeakLookup(t *testing.T) {
	m := NewCategoryMap(DefaultCategories)
	if got := m.Label("Food"); got != "Essen & Trinken" {
		t.Errorf("Label(Food) = %q", got)
	}
	if got := m.Label("Gone"); got != "Gone" {
		t.Errorf("unknown key should render raw, got %q", got)
	}
	if c := m.Lookup("Gone"); c.Key != "Gone" || c.Label != "Gone" {
		t.Errorf("Lookup placeholder = %+v", c)
	}
	if len(m.Categories()) != len(DefaultCategories) {
		t.Errorf("Categories() lost entries")
	}
}

func TestCategoryPatchClearsLimit(t *testing.T) {
	limit := Cents(20000)
	c := Category{Key: "Food", Label: "Essen", BudgetLimit: &limit}
	zero := Money{}
	got := CategoryPatch{BudgetLimit: &zero}.Apply(c)
	if got.BudgetLimit != nil {
		t.Fatalf("limit not cleared")
	}
}
