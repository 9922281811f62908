package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"budgetplaner/internal/core"
	"budgetplaner/internal/ports"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedAccount(t *testing.T, repo *SQLiteRepository, id, owner string) {
	t.Helper()
	now := time.Now()
	err := repo.WithinTx(context.Background(), func(tx ports.LedgerTx) error {
		return tx.InsertAccount(context.Background(), core.Account{
			ID: id, OwnerID: owner, Name: "Giro", Type: "bank", Currency: "€", Color: "#000",
			CreatedAt: now, UpdatedAt: now,
		})
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func TestMigrationsSeedDefaults(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cats, err := repo.ListCategories(ctx, "owner")
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != len(core.DefaultCategories) {
		t.Fatalf("expected %d default categories, got %d", len(core.DefaultCategories), len(cats))
	}
	types, err := repo.ListAccountTypes(ctx, "owner")
	if err != nil {
		t.Fatal(err)
	}
	if len(types) != len(core.DefaultAccountTypes) {
		t.Fatalf("expected %d default account types, got %d", len(core.DefaultAccountTypes), len(types))
	}
}

func TestWithinTxCommitsAndRollsBack(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedAccount(t, repo, "acc", "owner")

	var created core.Transaction
	err := repo.WithinTx(ctx, func(tx ports.LedgerTx) error {
		var err error
		created, err = tx.InsertTransaction(ctx, core.Transaction{
			OwnerID: "owner", Description: "Einkauf", Amount: core.Cents(-3000), Category: "Food",
			Date: core.NewDate(2024, 3, 10), Month: "März 2024", AccountID: "acc",
		})
		if err != nil {
			return err
		}
		return tx.AdjustBalance(ctx, "acc", core.Cents(-3000))
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}

	boom := errors.New("boom")
	err = repo.WithinTx(ctx, func(tx ports.LedgerTx) error {
		if err := tx.AdjustBalance(ctx, "acc", core.Cents(99999)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	acc, err := repo.GetAccount(ctx, "acc")
	if err != nil {
		t.Fatal(err)
	}
	if acc.Balance.Cents != -3000 {
		t.Fatalf("rolled back adjustment leaked: balance %d", acc.Balance.Cents)
	}

	got, err := repo.GetTransaction(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Month != "März 2024" || got.AccountID != "acc" || !got.Date.Equal(created.Date.Time) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entries := []core.Transaction{
		{OwnerID: "o", Description: "Gehalt", Amount: core.Cents(300000), Category: "Salary", Date: core.NewDate(2024, 3, 1), Month: "März 2024"},
		{OwnerID: "o", Description: "100% Rabatt_Aktion", Amount: core.Cents(-100), Category: "Shopping", Date: core.NewDate(2024, 3, 5), Month: "März 2024"},
		{OwnerID: "o", Description: "Miete", Amount: core.Cents(-80000), Category: "Housing", Date: core.NewDate(2024, 4, 1), Month: "April 2024"},
		{OwnerID: "other", Description: "Miete", Amount: core.Cents(-1), Category: "Housing", Date: core.NewDate(2024, 4, 1), Month: "April 2024"},
	}
	err := repo.WithinTx(ctx, func(tx ports.LedgerTx) error {
		for _, e := range entries {
			if _, err := tx.InsertTransaction(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		f    core.TransactionFilter
		want []string
	}{
		{"all newest first", core.TransactionFilter{}, []string{"Miete", "100% Rabatt_Aktion", "Gehalt"}},
		{"month", core.TransactionFilter{Month: "März 2024"}, []string{"100% Rabatt_Aktion", "Gehalt"}},
		{"query", core.TransactionFilter{Query: "miet"}, []string{"Miete"}},
		{"like escapes", core.TransactionFilter{Query: "0% r"}, []string{"100% Rabatt_Aktion"}},
		{"category", core.TransactionFilter{Category: "Salary"}, []string{"Gehalt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListTransactions(ctx, "o", tt.f)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d rows, want %d", len(got), len(tt.want))
			}
			for i, w := range tt.want {
				if got[i].Description != w {
					t.Errorf("row %d = %q, want %q", i, got[i].Description, w)
				}
			}
		})
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedAccount(t, repo, "acc", "o")

	err := repo.WithinTx(ctx, func(tx ports.LedgerTx) error {
		for i := 0; i < 3; i++ {
			if _, err := tx.InsertTransaction(ctx, core.Transaction{
				OwnerID: "o", Description: "x", Amount: core.Cents(1), Category: "General",
				Date: core.NewDate(2024, 1, 1), Month: "Januar 2024", AccountID: "acc",
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	var removed int
	err = repo.WithinTx(ctx, func(tx ports.LedgerTx) error {
		var err error
		removed, err = tx.DeleteAccount(ctx, "acc")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
	if _, err := repo.GetAccount(ctx, "acc"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("account still present: %v", err)
	}
	left, _ := repo.ListTransactions(ctx, "o", core.TransactionFilter{})
	if len(left) != 0 {
		t.Fatalf("orphaned transactions: %d", len(left))
	}
}

func TestOccurrenceClaimAndMarker(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	def := core.RecurringDraft{
		Description: "Miete", Amount: core.Cents(-80000), DayOfMonth: 5, StartDate: core.NewDate(2024, 1, 1),
	}.Definition("def", "o")
	if err := repo.CreateRecurring(ctx, def); err != nil {
		t.Fatal(err)
	}

	march := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	err := repo.WithinTx(ctx, func(tx ports.LedgerTx) error {
		if err := tx.ClaimOccurrence(ctx, "def", "2024-03", 1); err != nil {
			return err
		}
		return tx.MarkExecuted(ctx, "def", march)
	})
	if err != nil {
		t.Fatal(err)
	}

	err = repo.WithinTx(ctx, func(tx ports.LedgerTx) error {
		return tx.ClaimOccurrence(ctx, "def", "2024-03", 2)
	})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("duplicate claim err = %v", err)
	}

	// An older marker must not regress the stored one.
	err = repo.WithinTx(ctx, func(tx ports.LedgerTx) error {
		return tx.MarkExecuted(ctx, "def", march.AddDate(0, -1, 0))
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetRecurring(ctx, "def")
	if err != nil {
		t.Fatal(err)
	}
	if got.LastExecuted == nil || !got.LastExecuted.Equal(march) {
		t.Fatalf("marker = %v, want %v", got.LastExecuted, march)
	}

	err = repo.WithinTx(ctx, func(tx ports.LedgerTx) error {
		return tx.MarkExecuted(ctx, "missing", march)
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing definition err = %v", err)
	}
}

func TestDeleteRecurringDropsOccurrences(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	def := core.RecurringDraft{
		Description: "Miete", Amount: core.Cents(-80000), DayOfMonth: 5, StartDate: core.NewDate(2024, 1, 1),
	}.Definition("def", "o")
	if err := repo.CreateRecurring(ctx, def); err != nil {
		t.Fatal(err)
	}
	claim := func() error {
		return repo.WithinTx(ctx, func(tx ports.LedgerTx) error {
			return tx.ClaimOccurrence(ctx, "def", "2024-03", 1)
		})
	}
	if err := claim(); err != nil {
		t.Fatal(err)
	}

	if err := repo.DeleteRecurring(ctx, "def"); err != nil {
		t.Fatalf("DeleteRecurring: %v", err)
	}
	if _, err := repo.GetRecurring(ctx, "def"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("deleted definition err = %v", err)
	}

	// A definition recreated under the same id starts without claims.
	if err := repo.CreateRecurring(ctx, def); err != nil {
		t.Fatal(err)
	}
	if err := claim(); err != nil {
		t.Fatalf("claim after delete: %v", err)
	}

	if err := repo.DeleteRecurring(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing definition err = %v", err)
	}
}

func TestRecurringHistoryRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	end := core.NewDate(2024, 12, 31)
	def := core.RecurringDraft{
		Description: "Netflix", Amount: core.Cents(-1299), Category: "Leisure",
		DayOfMonth: 15, StartDate: core.NewDate(2024, 1, 1), EndDate: &end, Notes: "Familienabo",
	}.Definition("n", "o")
	if err := repo.CreateRecurring(ctx, def); err != nil {
		t.Fatal(err)
	}

	def.History = []core.HistoryEntry{{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Changes: []string{"a"}}}
	def.IsActive = false
	if err := repo.UpdateRecurring(ctx, def); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetRecurring(ctx, "n")
	if err != nil {
		t.Fatal(err)
	}
	if got.IsActive || len(got.History) != 1 || got.History[0].Changes[0] != "a" {
		t.Fatalf("unexpected definition %+v", got)
	}
	if got.EndDate == nil || !got.EndDate.Equal(end.Time) || got.Notes != "Familienabo" {
		t.Fatalf("optional fields lost: %+v", got)
	}

	owners, err := repo.ListRecurringOwners(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(owners) != 0 {
		t.Fatalf("inactive definitions should not list owners: %v", owners)
	}
}

func TestCategoriesOwnerOverride(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	limit := core.Cents(40000)
	if err := repo.CreateCategory(ctx, core.Category{OwnerID: "o", Key: "Food", Label: "Lebensmittel", Color: "#fff", BudgetLimit: &limit}); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateCategory(ctx, core.Category{OwnerID: "o", Key: "Food", Label: "dup", Color: "#fff"}); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("duplicate err = %v", err)
	}

	c, err := repo.GetCategory(ctx, "o", "Food")
	if err != nil {
		t.Fatal(err)
	}
	if c.Label != "Lebensmittel" || c.BudgetLimit == nil || c.BudgetLimit.Cents != 40000 {
		t.Fatalf("owner category not preferred: %+v", c)
	}
	c, err = repo.GetCategory(ctx, "someone-else", "Food")
	if err != nil || c.Label != "Essen & Trinken" {
		t.Fatalf("global category expected, got %+v %v", c, err)
	}
}

func TestSettingsAndUsers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, ok, err := repo.GetSettings(ctx, "o"); err != nil || ok {
		t.Fatalf("expected no settings, ok=%v err=%v", ok, err)
	}
	s := core.DefaultSettings()
	s.Theme = core.ThemeDark
	if err := repo.SaveSettings(ctx, "o", s); err != nil {
		t.Fatal(err)
	}
	s.BudgetLimit = core.Cents(150000)
	if err := repo.SaveSettings(ctx, "o", s); err != nil {
		t.Fatal(err)
	}
	got, ok, err := repo.GetSettings(ctx, "o")
	if err != nil || !ok || got != s {
		t.Fatalf("settings = %+v ok=%v err=%v", got, ok, err)
	}

	u := core.User{ID: "u1", Name: "Anna", Email: "Anna@Example.org", PasswordHash: "h", Role: core.RoleUser, CreatedAt: time.Now()}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	u.ID = "u2"
	if err := repo.CreateUser(ctx, u); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("duplicate email err = %v", err)
	}
	byEmail, err := repo.GetUserByEmail(ctx, "anna@example.org")
	if err != nil || byEmail.ID != "u1" {
		t.Fatalf("GetUserByEmail = %+v, %v", byEmail, err)
	}
	if err := repo.UpdateUserRole(ctx, "u1", core.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	users, err := repo.ListUsers(ctx)
	if err != nil || len(users) != 1 || users[0].Role != core.RoleAdmin {
		t.Fatalf("ListUsers = %+v, %v", users, err)
	}
}
