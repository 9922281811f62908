package services

import (
	"context"
	"testing"

	"budgetplaner/internal/core"
	"budgetplaner/internal/storage/memory"
)

func newAccountService(store *memory.Store) *AccountService {
	return NewAccountService(store, store, nil).WithClock(fixedClock)
}

func TestAccountService_CreateWithStartingBalance(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newAccountService(store)

	a, err := svc.Create(ctx, alice, core.AccountDraft{Name: "Giro", Type: "bank", StartingBalance: core.Cents(150000)})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if a.Balance != core.Cents(150000) || a.Currency != core.DefaultCurrency {
		t.Errorf("Create() = %+v", a)
	}
	if got := balanceOf(t, store, a.ID); got != 150000 {
		t.Errorf("stored balance = %d, want 150000", got)
	}

	txs := transactionsOf(t, store, alice)
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want the opening one", len(txs))
	}
	opening := txs[0]
	if opening.Description != core.StartingBalanceDescription || opening.AccountID != a.ID || opening.Category != core.DefaultCategoryKey {
		t.Errorf("opening transaction = %+v", opening)
	}
}

func TestAccountService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := newAccountService(memory.New())

	tests := []struct {
		name  string
		draft core.AccountDraft
	}{
		{"empty name", core.AccountDraft{Type: "bank"}},
		{"unknown type", core.AccountDraft{Name: "X", Type: "yacht"}},
		{"negative start", core.AccountDraft{Name: "X", Type: "bank", StartingBalance: core.Cents(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, alice, tt.draft); core.ReasonOf(err) != core.ReasonValidation {
				t.Errorf("Create() error = %v, want validation", err)
			}
		})
	}
}

func TestAccountService_UpdateKeepsBalance(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newAccountService(store)
	a, err := svc.Create(ctx, alice, core.AccountDraft{Name: "Giro", Type: "bank", StartingBalance: core.Cents(5000)})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := svc.Update(ctx, alice, a.ID, core.AccountPatch{Name: ptr("Girokonto"), Type: ptr("cash")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "Girokonto" || updated.Type != "cash" || updated.Balance != core.Cents(5000) {
		t.Errorf("Update() = %+v", updated)
	}
	if _, err := svc.Update(ctx, bob, a.ID, core.AccountPatch{Name: ptr("mine")}); !core.IsNotFound(err) {
		t.Errorf("Update() by other owner error = %v", err)
	}
}

func TestAccountService_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newAccountService(store)
	ledger := NewLedgerService(store, nil)

	a, _ := svc.Create(ctx, alice, core.AccountDraft{Name: "Bar", Type: "cash", StartingBalance: core.Cents(1000)})
	b, _ := svc.Create(ctx, alice, core.AccountDraft{Name: "Giro", Type: "bank"})
	for _, acc := range []string{a.ID, a.ID, b.ID} {
		if _, err := ledger.Create(ctx, alice, draft("Einkauf", -100, acc)); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if _, err := ledger.Create(ctx, alice, draft("Ohne Konto", -100, "")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := svc.Delete(ctx, bob, a.ID); !core.IsNotFound(err) {
		t.Errorf("Delete() by other owner error = %v", err)
	}
	removed, err := svc.Delete(ctx, alice, a.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	for _, tr := range transactionsOf(t, store, alice) {
		if tr.AccountID == a.ID {
			t.Errorf("transaction %d still references deleted account", tr.ID)
		}
	}
	if n := len(transactionsOf(t, store, alice)); n != 2 {
		t.Errorf("%d transactions left, want 2", n)
	}
}

func TestAccountService_Transfer(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newAccountService(store)
	from, _ := svc.Create(ctx, alice, core.AccountDraft{Name: "Giro", Type: "bank", StartingBalance: core.Cents(10000)})
	to, _ := svc.Create(ctx, alice, core.AccountDraft{Name: "Sparen", Type: "savings"})
	foreign, _ := svc.Create(ctx, bob, core.AccountDraft{Name: "Bob", Type: "bank"})

	legs, err := svc.Transfer(ctx, alice, TransferRequest{From: from.ID, To: to.ID, Amount: core.Cents(2500)})
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if legs[0].Description != "Übertrag an Sparen" || legs[1].Description != "Übertrag von Giro" {
		t.Errorf("legs = %q / %q", legs[0].Description, legs[1].Description)
	}
	if legs[0].Date != core.DateOf(fixedNow) {
		t.Errorf("default date = %v", legs[0].Date)
	}
	if got := balanceOf(t, store, from.ID); got != 7500 {
		t.Errorf("from balance = %d, want 7500", got)
	}
	if got := balanceOf(t, store, to.ID); got != 2500 {
		t.Errorf("to balance = %d, want 2500", got)
	}

	tests := []struct {
		name string
		req  TransferRequest
		want core.Reason
	}{
		{"same account", TransferRequest{From: from.ID, To: from.ID, Amount: core.Cents(1)}, core.ReasonValidation},
		{"zero amount", TransferRequest{From: from.ID, To: to.ID}, core.ReasonValidation},
		{"foreign target", TransferRequest{From: from.ID, To: foreign.ID, Amount: core.Cents(1)}, core.ReasonNotOwned},
		{"unknown source", TransferRequest{From: "nope", To: to.ID, Amount: core.Cents(1)}, core.ReasonInvalidReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Transfer(ctx, alice, tt.req); core.ReasonOf(err) != tt.want {
				t.Errorf("Transfer() error = %v, want %s", err, tt.want)
			}
		})
	}
	if got := balanceOf(t, store, from.ID); got != 7500 {
		t.Errorf("failed transfers moved money: %d", got)
	}
}

func TestAccountService_Types(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newAccountService(store)

	custom, err := svc.CreateType(ctx, alice, core.AccountType{Label: "Bausparen", Emoji: "🏠"})
	if err != nil {
		t.Fatalf("CreateType() error = %v", err)
	}
	if custom.ID == "" {
		t.Error("CreateType() did not assign an id")
	}

	types, _ := svc.ListTypes(ctx, alice)
	if len(types) != len(core.DefaultAccountTypes)+1 {
		t.Errorf("alice sees %d types", len(types))
	}
	types, _ = svc.ListTypes(ctx, bob)
	if len(types) != len(core.DefaultAccountTypes) {
		t.Errorf("bob sees %d types", len(types))
	}

	if _, err := svc.CreateType(ctx, alice, core.AccountType{ID: "bank", Label: "Bank"}); core.ReasonOf(err) != core.ReasonConflict {
		t.Errorf("CreateType() shadowing a global error = %v", err)
	}

	if _, err := svc.Create(ctx, alice, core.AccountDraft{Name: "Haus", Type: custom.ID}); err != nil {
		t.Fatalf("Create() with custom type error = %v", err)
	}
	if err := svc.DeleteType(ctx, alice, custom.ID); core.ReasonOf(err) != core.ReasonConflict {
		t.Errorf("DeleteType() of used type error = %v", err)
	}
}
