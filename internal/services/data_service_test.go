package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"budgetplaner/internal/backup"
	"budgetplaner/internal/core"
	"budgetplaner/internal/storage/memory"
)

func TestDataService_ExportImportRoundTrip(t *testing.T) {
	for _, format := range []backup.Format{backup.JSON, backup.CSV, backup.XLSX} {
		t.Run(string(format), func(t *testing.T) {
			ctx := context.Background()
			src := memory.New()
			srcLedger := NewLedgerService(src, nil)
			bookAll(t, srcLedger, alice,
				dated("Gehalt", 250000, "Salary", 2024, 3, 1),
				dated("Döner", -750, "Food", 2024, 3, 2),
			)

			var buf bytes.Buffer
			if err := NewDataService(srcLedger, src).Export(ctx, alice, format, &buf); err != nil {
				t.Fatalf("Export() error = %v", err)
			}

			dst := memory.New()
			data := NewDataService(NewLedgerService(dst, nil), dst).WithClock(fixedClock)
			res, err := data.Import(ctx, bob, format, &buf)
			if err != nil {
				t.Fatalf("Import() error = %v", err)
			}
			if res.Imported != 2 || len(res.Errors) != 0 {
				t.Fatalf("Import() = %+v", res)
			}

			txs := transactionsOf(t, dst, bob)
			var total int64
			categories := map[string]bool{}
			for _, tr := range txs {
				total += tr.Amount.Cents
				categories[tr.Category] = true
			}
			if total != 249250 {
				t.Errorf("imported total = %d, want 249250", total)
			}
			// Spreadsheet exports carry labels; import maps them back to keys.
			if !categories["Salary"] || !categories["Food"] {
				t.Errorf("imported categories = %v", categories)
			}
		})
	}
}

func TestDataService_ImportedCategoriesNotify(t *testing.T) {
	ctx := context.Background()
	src := memory.New()
	if _, err := NewCategoryService(src, nil).Create(ctx, alice, core.Category{Key: "Pets", Label: "Tiere"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	var buf bytes.Buffer
	if err := NewDataService(NewLedgerService(src, nil), src).Export(ctx, alice, backup.JSON, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var events []core.LedgerEvent
	recorder := NotifierFunc(func(_ context.Context, e core.LedgerEvent) error {
		events = append(events, e)
		return nil
	})
	dst := memory.New()
	res, err := NewDataService(NewLedgerService(dst, recorder), dst).Import(ctx, bob, backup.JSON, &buf)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Imported != 0 || res.Categories == 0 {
		t.Fatalf("Import() = %+v", res)
	}
	if len(events) != 1 || events[0].Type != core.EventCategoryChanged || events[0].OwnerID != bob {
		t.Errorf("events = %+v, want one category change for bob", events)
	}
}

func TestDataService_ImportReportsRowErrors(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedAccount(t, store, bob, "bob-acc", 0)
	data := NewDataService(NewLedgerService(store, nil), store).WithClock(fixedClock)

	in := `{"transactions":[
		{"text":"ok","amount":-5,"date":"2024-03-01"},
		{"text":"fremdes Konto","amount":-5,"date":"2024-03-01","accountId":"bob-acc"},
		{"text":"kaputt","amount":-5,"date":"irgendwann"},
		{"text":"unbekanntes Konto","amount":-5,"date":"2024-03-01","accountId":"gone"}
	],"categories":{"Pets":{"label":"Haustiere","color":"#123456"}}}`

	res, err := data.Import(ctx, alice, backup.JSON, strings.NewReader(in))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Imported != 1 || res.Categories != 1 || len(res.Errors) != 3 {
		t.Fatalf("Import() = %+v", res)
	}
	if res.Errors[0].Line != 2 || res.Errors[1].Line != 3 || res.Errors[2].Line != 4 {
		t.Errorf("error lines = %+v", res.Errors)
	}
	if balanceOf(t, store, "bob-acc") != 0 {
		t.Error("import touched another owner's account")
	}

	c, err := store.GetCategory(ctx, alice, "Pets")
	if err != nil || c.OwnerID != alice {
		t.Errorf("imported category = %+v, %v", c, err)
	}
}

func TestDataService_ImportRejectsUnreadableDocument(t *testing.T) {
	store := memory.New()
	data := NewDataService(NewLedgerService(store, nil), store)
	_, err := data.Import(context.Background(), alice, backup.JSON, strings.NewReader("{not json"))
	if core.ReasonOf(err) != core.ReasonValidation {
		t.Errorf("Import() error = %v, want validation", err)
	}
}
