//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"budgetplaner/internal/core"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_MirrorFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if os.Getenv("GOOGLE_SPREADSHEET_ID") == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}

	ctx := context.Background()
	client, err := NewFromEnv(ctx)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	id := time.Now().Unix()
	tx := core.Transaction{
		ID:          id,
		OwnerID:     "integration",
		Description: "Integration test",
		Amount:      core.Cents(-123),
		Category:    "General",
		Date:        core.DateOf(time.Now()),
		Month:       core.MonthLabel(time.Now()),
		AccountID:   "integration-account",
	}

	if err := client.UpsertTransaction(ctx, tx, "Allgemein"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	tx.Amount = core.Cents(-456)
	if err := client.UpsertTransaction(ctx, tx, "Allgemein"); err != nil {
		t.Fatalf("Upsert existing: %v", err)
	}

	client.InvalidateRowCache()
	n, err := client.DeleteAccountRows(ctx, tx.AccountID)
	if err != nil {
		t.Fatalf("DeleteAccountRows: %v", err)
	}
	if n != 1 {
		t.Errorf("cleared %d rows, want 1", n)
	}

	if err := client.DeleteTransaction(ctx, id); err != nil {
		t.Errorf("Delete of cleared row: %v", err)
	}
}
