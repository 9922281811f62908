package services

import (
	"cmp"
	"context"
	"slices"
	"time"

	"budgetplaner/internal/cache"
	"budgetplaner/internal/core"
	"budgetplaner/internal/ports"

	"github.com/shopspring/decimal"
)

// TrendMonths is how many month labels the statistics trend covers.
const TrendMonths = 12

// ReportService derives statistics from the ledger. Results are cached per
// owner; the service is also a Notifier so every ledger event drops the
// owner's cached reports.
type ReportService struct {
	ledger     ports.LedgerStore
	categories ports.CategoryStore
	settings   ports.SettingsStore
	cache      cache.Cache[core.Statistics]
}

// NewReportService creates the service. A nil cache disables caching.
func NewReportService(ledger ports.LedgerStore, categories ports.CategoryStore, settings ports.SettingsStore, c cache.Cache[core.Statistics]) *ReportService {
	return &ReportService{ledger: ledger, categories: categories, settings: settings, cache: c}
}

func statsKey(ownerID, month string) string { return ownerID + "|stats|" + month }

// Notify invalidates the cached reports of the event's owner.
func (s *ReportService) Notify(_ context.Context, e core.LedgerEvent) error {
	if s.cache != nil {
		s.cache.DeletePrefix(e.OwnerID + "|")
	}
	return nil
}

// Statistics summarizes the owner's ledger. An empty month covers every
// transaction; the trend always covers the last TrendMonths month labels.
func (s *ReportService) Statistics(ctx context.Context, owner, month string) (core.Statistics, error) {
	key := statsKey(owner, month)
	if s.cache != nil {
		if st, ok := s.cache.Get(key); ok {
			return st, nil
		}
	}

	all, err := s.ledger.ListTransactions(ctx, owner, core.TransactionFilter{})
	if err != nil {
		return core.Statistics{}, core.StoreFailure(err)
	}
	categories, err := s.categories.ListCategories(ctx, owner)
	if err != nil {
		return core.Statistics{}, core.StoreFailure(err)
	}
	lookup := core.NewCategoryMap(categories)

	st := core.Statistics{Month: month}
	perCategory := map[string]core.Money{}
	for _, t := range all {
		if month != "" && t.Month != month {
			continue
		}
		if t.Amount.IsNegative() {
			st.Expense = st.Expense.Add(t.Amount.Abs())
			perCategory[t.Category] = perCategory[t.Category].Add(t.Amount.Abs())
		} else {
			st.Income = st.Income.Add(t.Amount)
		}
	}
	st.Balance = st.Income.Sub(st.Expense)

	st.Categories = make([]core.CategoryShare, 0, len(perCategory))
	for key, amount := range perCategory {
		c := lookup.Lookup(key)
		st.Categories = append(st.Categories, core.CategoryShare{
			Key:        key,
			Label:      c.Label,
			Color:      c.Color,
			Amount:     amount,
			Percentage: percentage(amount, st.Expense),
		})
	}
	slices.SortFunc(st.Categories, func(a, b core.CategoryShare) int {
		if c := cmp.Compare(b.Amount.Cents, a.Amount.Cents); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})

	st.Trend = monthlyTrend(all, TrendMonths)

	if s.cache != nil {
		s.cache.Set(key, st)
	}
	return st, nil
}

// BudgetStatus compares the expenses of a category in a month with the
// category's limit. An empty category compares all expenses with the
// monthly limit from the owner's settings.
func (s *ReportService) BudgetStatus(ctx context.Context, owner, category, month string) (core.BudgetStatus, error) {
	status := core.BudgetStatus{Category: category, Month: month}

	if category == "" {
		st, ok, err := s.settings.GetSettings(ctx, owner)
		if err != nil {
			return core.BudgetStatus{}, core.StoreFailure(err)
		}
		if ok {
			status.Limit = st.BudgetLimit
		}
	} else {
		c, err := s.categories.GetCategory(ctx, owner, category)
		switch {
		case core.IsNotFound(err):
		case err != nil:
			return core.BudgetStatus{}, core.StoreFailure(err)
		case c.BudgetLimit != nil:
			status.Limit = *c.BudgetLimit
		}
	}

	txs, err := s.ledger.ListTransactions(ctx, owner, core.TransactionFilter{Month: month})
	if err != nil {
		return core.BudgetStatus{}, core.StoreFailure(err)
	}
	for _, t := range txs {
		if !t.Amount.IsNegative() || (category != "" && t.Category != category) {
			continue
		}
		status.Used = status.Used.Add(t.Amount.Abs())
	}
	status.Percentage = percentage(status.Used, status.Limit)
	return status, nil
}

// Search finds the owner's transactions matching f.
func (s *ReportService) Search(ctx context.Context, owner string, f core.TransactionFilter) ([]core.Transaction, error) {
	out, err := s.ledger.ListTransactions(ctx, owner, f)
	if err != nil {
		return nil, core.StoreFailure(err)
	}
	return out, nil
}

// percentage returns part/whole*100 rounded to one decimal, or 0 when whole
// is zero.
func percentage(part, whole core.Money) float64 {
	if whole.IsZero() {
		return 0
	}
	p := part.Decimal().Div(whole.Decimal()).Mul(decimal.NewFromInt(100)).Round(1)
	return p.InexactFloat64()
}

type monthBucket struct {
	order time.Time
	trend core.MonthTrend
}

// monthlyTrend groups transactions by month label and returns the latest n
// months in chronological order. Labels that do not parse sort first.
func monthlyTrend(txs []core.Transaction, n int) []core.MonthTrend {
	buckets := map[string]*monthBucket{}
	for _, t := range txs {
		b, ok := buckets[t.Month]
		if !ok {
			b = &monthBucket{trend: core.MonthTrend{Month: t.Month}}
			if y, m, ok := core.ParseMonthLabel(t.Month); ok {
				b.order = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
			}
			buckets[t.Month] = b
		}
		if t.Amount.IsNegative() {
			b.trend.Expense = b.trend.Expense.Add(t.Amount.Abs())
		} else {
			b.trend.Income = b.trend.Income.Add(t.Amount)
		}
	}

	ordered := make([]*monthBucket, 0, len(buckets))
	for _, b := range buckets {
		b.trend.Balance = b.trend.Income.Sub(b.trend.Expense)
		ordered = append(ordered, b)
	}
	slices.SortFunc(ordered, func(a, b *monthBucket) int {
		if c := a.order.Compare(b.order); c != 0 {
			return c
		}
		return cmp.Compare(a.trend.Month, b.trend.Month)
	})
	if len(ordered) > n {
		ordered = ordered[len(ordered)-n:]
	}

	out := make([]core.MonthTrend, len(ordered))
	for i, b := range ordered {
		out[i] = b.trend
	}
	return out
}
