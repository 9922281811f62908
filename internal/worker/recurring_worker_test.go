package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"budgetplaner/internal/core"
	"budgetplaner/internal/services"
	"budgetplaner/internal/storage/memory"
)

type countingProcessor struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *countingProcessor) ProcessDue(context.Context, time.Time) (services.ProcessResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return services.ProcessResult{Checked: 1}, p.err
}

func (p *countingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestRecurringWorkerRunsAtStartupAndStops(t *testing.T) {
	p := &countingProcessor{}
	w := NewRecurringWorker(p, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for p.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if p.count() != 1 {
		t.Errorf("calls = %d, want one startup pass", p.count())
	}
}

func TestRecurringWorkerTicks(t *testing.T) {
	p := &countingProcessor{err: errors.New("store down")}
	w := NewRecurringWorker(p, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if p.count() < 2 {
		t.Errorf("calls = %d, want failures retried on later ticks", p.count())
	}
}

func TestRecurringWorkerBooksDueDefinitions(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ledger := services.NewLedgerService(store, nil)
	recurring := services.NewRecurringService(store)

	def, err := recurring.Create(ctx, "owner-1", core.RecurringDraft{
		Description: "Miete",
		Amount:      core.Cents(-80000),
		Category:    "Housing",
		DayOfMonth:  1,
		StartDate:   core.NewDate(2024, 1, 1),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	w := NewRecurringWorker(services.NewRecurringProcessor(store, ledger), time.Hour)
	w.now = func() time.Time { return time.Date(2024, time.March, 10, 8, 0, 0, 0, time.UTC) }

	if res := w.RunOnce(ctx); len(res.Created) != 1 {
		t.Fatalf("created = %d, want 1", len(res.Created))
	}
	if res := w.RunOnce(ctx); len(res.Created) != 0 {
		t.Errorf("second pass created %d, want 0", len(res.Created))
	}

	txs, err := store.ListTransactions(ctx, "owner-1", core.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 1 || txs[0].RecurringID != def.ID {
		t.Errorf("transactions = %+v", txs)
	}
}
