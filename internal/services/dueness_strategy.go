// This file implements the Strategy Pattern for recurring dueness checking.
// Each interval has its own strategy that decides whether a definition fires
// on a given day. Only the monthly interval exists today.

package services

import (
	"fmt"
	"time"

	"budgetplaner/internal/core"
)

// DuenessChecker is the strategy interface for checking if a recurring
// definition is due.
type DuenessChecker interface {
	// IsDue reports whether a definition last executed at lastExecution (zero
	// if never) and configured for dayOfMonth fires at now.
	IsDue(lastExecution, now time.Time, dayOfMonth int) bool
}

// MonthlyChecker implements DuenessChecker for monthly definitions.
type MonthlyChecker struct{}

// IsDue returns true if nothing ran in now's calendar month yet and the
// target day has been reached. A day beyond the month's length is not
// clamped, so such a definition skips short months.
func (MonthlyChecker) IsDue(lastExecution, now time.Time, dayOfMonth int) bool {
	if !lastExecution.IsZero() && core.SameMonth(lastExecution.In(now.Location()), now) {
		return false
	}
	return now.Day() >= dayOfMonth
}

// duenessStrategies maps intervals to their checkers.
var duenessStrategies = map[core.Interval]DuenessChecker{
	core.Monthly: MonthlyChecker{},
}

// GetDuenessChecker returns the checker for an interval.
func GetDuenessChecker(interval core.Interval) (DuenessChecker, error) {
	checker, ok := duenessStrategies[interval]
	if !ok {
		return nil, fmt.Errorf("unknown interval: %s", interval)
	}
	return checker, nil
}

// RegisterDuenessChecker registers a checker for a new interval.
func RegisterDuenessChecker(interval core.Interval, checker DuenessChecker) {
	duenessStrategies[interval] = checker
}

// SkipReason explains why a definition did not fire.
type SkipReason string

const (
	SkipInactive        SkipReason = "inactive"
	SkipNotStarted      SkipReason = "not_started"
	SkipExpired         SkipReason = "expired"
	SkipAlreadyExecuted SkipReason = "already_executed"
	SkipNotYetDue       SkipReason = "not_yet_due"
)

// Evaluate decides whether d fires at now. It returns an empty reason when
// the definition is due. The decision depends only on d and now.
func Evaluate(d core.RecurringDefinition, now time.Time) (SkipReason, error) {
	if !d.IsActive {
		return SkipInactive, nil
	}

	today := core.DateOf(now)
	if today.Before(d.StartDate) {
		return SkipNotStarted, nil
	}
	if d.EndDate != nil && today.After(*d.EndDate) {
		return SkipExpired, nil
	}

	var last time.Time
	if d.LastExecuted != nil {
		last = *d.LastExecuted
		if core.SameMonth(last.In(now.Location()), now) {
			return SkipAlreadyExecuted, nil
		}
	}

	checker, err := GetDuenessChecker(d.Interval)
	if err != nil {
		return "", err
	}
	if !checker.IsDue(last, now, d.DayOfMonth) {
		return SkipNotYetDue, nil
	}
	return "", nil
}
