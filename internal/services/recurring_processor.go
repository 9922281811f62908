package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budgetplaner/internal/core"
	"budgetplaner/internal/ports"

	"golang.org/x/sync/singleflight"
)

// RecurringProcessor materializes due recurring definitions into ledger
// transactions. Runs for the same owner are serialized: a caller arriving
// while a run is in flight shares its result.
type RecurringProcessor struct {
	store  ports.RecurringStore
	ledger *LedgerService
	group  singleflight.Group
}

// ProcessFailure records a definition whose occurrence could not be booked.
type ProcessFailure struct {
	DefinitionID string
	Err          error
}

// ProcessResult summarizes one evaluation pass.
type ProcessResult struct {
	Checked int
	Created []core.Transaction
	Skipped map[SkipReason]int
	Failed  []ProcessFailure
}

func (r *ProcessResult) merge(o ProcessResult) {
	r.Checked += o.Checked
	r.Created = append(r.Created, o.Created...)
	r.Failed = append(r.Failed, o.Failed...)
	if r.Skipped == nil {
		r.Skipped = map[SkipReason]int{}
	}
	for k, v := range o.Skipped {
		r.Skipped[k] += v
	}
}

// NewRecurringProcessor creates a new recurring definition processor
func NewRecurringProcessor(store ports.RecurringStore, ledger *LedgerService) *RecurringProcessor {
	return &RecurringProcessor{store: store, ledger: ledger}
}

// ProcessDue evaluates the definitions of every owner with active
// definitions. Owners are processed one after another.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (ProcessResult, error) {
	if p.store == nil || p.ledger == nil {
		return ProcessResult{}, fmt.Errorf("processor not properly initialized")
	}

	owners, err := p.store.ListRecurringOwners(ctx)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("failed to list recurring owners: %w", err)
	}

	total := ProcessResult{Skipped: map[SkipReason]int{}}
	for _, ownerID := range owners {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := p.ProcessOwner(ctx, ownerID, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring definitions",
				"owner_id", ownerID,
				"error", err)
			continue
		}
		total.merge(res)
	}
	return total, nil
}

// ProcessOwner evaluates one owner's definitions at now.
func (p *RecurringProcessor) ProcessOwner(ctx context.Context, ownerID string, now time.Time) (ProcessResult, error) {
	if p.store == nil || p.ledger == nil {
		return ProcessResult{}, fmt.Errorf("processor not properly initialized")
	}
	v, err, shared := p.group.Do(ownerID, func() (any, error) {
		return p.processOwner(ctx, ownerID, now)
	})
	if err != nil {
		return ProcessResult{}, err
	}
	if shared {
		slog.DebugContext(ctx, "Joined in-flight recurring run", "owner_id", ownerID)
	}
	return v.(ProcessResult), nil
}

func (p *RecurringProcessor) processOwner(ctx context.Context, ownerID string, now time.Time) (ProcessResult, error) {
	definitions, err := p.store.ListRecurring(ctx, ownerID)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("failed to list recurring definitions: %w", err)
	}

	res := ProcessResult{Checked: len(definitions), Skipped: map[SkipReason]int{}}

	// Sequential on purpose: each definition is one atomic unit in the store.
	for _, def := range definitions {
		reason, err := Evaluate(def, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to check if definition is due",
				"definition_id", def.ID,
				"error", err)
			res.Failed = append(res.Failed, ProcessFailure{DefinitionID: def.ID, Err: err})
			continue
		}
		if reason != "" {
			res.Skipped[reason]++
			continue
		}

		created, err := p.ledger.Materialize(ctx, def, now)
		if core.ReasonOf(err) == core.ReasonConflict {
			// Another run claimed this month first.
			res.Skipped[SkipAlreadyExecuted]++
			continue
		}
		if err != nil {
			slog.ErrorContext(ctx, "Failed to create transaction from recurring definition",
				"definition_id", def.ID,
				"description", def.Description,
				"error", err)
			res.Failed = append(res.Failed, ProcessFailure{DefinitionID: def.ID, Err: err})
			continue
		}

		res.Created = append(res.Created, created)
		slog.InfoContext(ctx, "Created transaction from recurring definition",
			"definition_id", def.ID,
			"transaction_id", created.ID,
			"amount_cents", created.Amount.Cents,
			"month", created.Month)
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"owner_id", ownerID,
		"created", len(res.Created),
		"failed", len(res.Failed),
		"total_checked", res.Checked)

	return res, nil
}
