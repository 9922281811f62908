package core

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a calendar day without time of day, stored as UTC midnight.
type Date struct {
	time.Time
}

var monthNames = [...]string{
	"Januar", "Februar", "März", "April", "Mai", "Juni",
	"Juli", "August", "September", "Oktober", "November", "Dezember",
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time of day of t, keeping the calendar day t has in its
// own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate accepts ISO dates ("2024-03-10"), RFC 3339 timestamps and the
// German short form ("10.3.2024").
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse("2.1.2006", s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Before and After compare calendar days.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }

// ISO renders the date as "2006-01-02".
func (d Date) ISO() string { return d.Format("2006-01-02") }

// German renders the date the way German locales do, e.g. "10.3.2024".
func (d Date) German() string { return d.Format("2.1.2006") }

// MonthLabel returns the grouping label of the month d falls in.
func (d Date) MonthLabel() string { return MonthLabel(d.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(d.ISO())), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, data)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthLabel returns the German "month year" label used to group
// transactions, e.g. "März 2024".
func MonthLabel(t time.Time) string {
	return fmt.Sprintf("%s %d", monthNames[t.Month()-1], t.Year())
}

// MonthKey returns the sortable "2006-01" key of the month t falls in.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// ParseMonthLabel is the inverse of MonthLabel. It reports false for labels
// it does not recognize.
func ParseMonthLabel(label string) (year int, month time.Month, ok bool) {
	name, yearStr, found := strings.Cut(strings.TrimSpace(label), " ")
	if !found {
		return 0, 0, false
	}
	y, err := strconv.Atoi(yearStr)
	if err != nil {
		return 0, 0, false
	}
	for i, n := range monthNames {
		if strings.EqualFold(n, name) {
			return y, time.Month(i + 1), true
		}
	}
	return 0, 0, false
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return MonthLabel(a) == MonthLabel(b)
}
