package memory

import (
	"context"
	"errors"
	"testing"

	"budgetplaner/internal/core"
	"budgetplaner/internal/ports"
)

func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.WithinTx(ctx, func(tx ports.LedgerTx) error {
		return tx.InsertAccount(ctx, core.Account{ID: "acc-1", OwnerID: "alice", Name: "Giro", Balance: core.Cents(1000)})
	})
	if err != nil {
		t.Fatalf("WithinTx() error = %v", err)
	}

	boom := errors.New("boom")
	err = s.WithinTx(ctx, func(tx ports.LedgerTx) error {
		if _, err := tx.InsertTransaction(ctx, core.Transaction{OwnerID: "alice", AccountID: "acc-1", Amount: core.Cents(-500)}); err != nil {
			return err
		}
		if err := tx.AdjustBalance(ctx, "acc-1", core.Cents(-500)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx() error = %v, want boom", err)
	}

	acc, err := s.GetAccount(ctx, "acc-1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if acc.Balance != core.Cents(1000) {
		t.Errorf("balance = %v, want 10.00 after rollback", acc.Balance)
	}
	txs, err := s.ListTransactions(ctx, "alice", core.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("got %d transactions after rollback, want 0", len(txs))
	}
}

func TestWithinTx_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := New().WithinTx(ctx, func(ports.LedgerTx) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WithinTx() error = %v, want context.Canceled", err)
	}
	if called {
		t.Error("fn ran on a canceled context")
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.CreateUser(ctx, core.User{ID: "u1", Name: "Anna", Email: "anna@example.com", Role: core.RoleUser}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	err := s.CreateUser(ctx, core.User{ID: "u2", Name: "Anna", Email: "ANNA@example.com", Role: core.RoleUser})
	if core.ReasonOf(err) != core.ReasonConflict {
		t.Errorf("duplicate email error = %v, want conflict", err)
	}

	u, err := s.GetUserByEmail(ctx, "Anna@Example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if u.ID != "u1" {
		t.Errorf("GetUserByEmail() id = %q, want u1", u.ID)
	}

	tests := []struct {
		name string
		get  func() error
	}{
		{"by id", func() error { _, err := s.GetUser(ctx, "missing"); return err }},
		{"by email", func() error { _, err := s.GetUserByEmail(ctx, "nobody@example.com"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.get(); core.ReasonOf(err) != core.ReasonNotFound {
				t.Errorf("error = %v, want not found", err)
			}
		})
	}
}

func TestClaimOccurrence_Once(t *testing.T) {
	ctx := context.Background()
	s := New()

	claim := func() error {
		return s.WithinTx(ctx, func(tx ports.LedgerTx) error {
			return tx.ClaimOccurrence(ctx, "def-1", "2024-03", 7)
		})
	}
	if err := claim(); err != nil {
		t.Fatalf("first claim error = %v", err)
	}
	if err := claim(); core.ReasonOf(err) != core.ReasonConflict {
		t.Errorf("second claim error = %v, want conflict", err)
	}
}
