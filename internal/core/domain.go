package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Monthly Interval = "monthly"

	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"

	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeAuto  = "auto"

	// MaxHistoryEntries bounds the change history kept per recurring definition.
	MaxHistoryEntries = 20

	maxTextLen = 100
)

type (
	Interval string
	Role     string

	// Transaction is a signed ledger entry. Category is a weak reference:
	// it may name a category that no longer exists.
	Transaction struct {
		ID          int64  `json:"id"`
		OwnerID     string `json:"-"`
		Description string `json:"text"`
		Amount      Money  `json:"amount"`
		Category    string `json:"category"`
		Date        Date   `json:"date"`
		Month       string `json:"month"`
		AccountID   string `json:"accountId,omitempty"`
		RecurringID string `json:"recurringId,omitempty"`
	}

	TransactionDraft struct {
		Description string `json:"text"`
		Amount      Money  `json:"amount"`
		Category    string `json:"category"`
		Date        Date   `json:"date"`
		Month       string `json:"month"`
		AccountID   string `json:"accountId,omitempty"`
		RecurringID string `json:"-"`
	}

	// TransactionPatch carries the fields an update changes; nil means keep.
	// An empty AccountID detaches the transaction from its account.
	TransactionPatch struct {
		Description *string `json:"text,omitempty"`
		Amount      *Money  `json:"amount,omitempty"`
		Category    *string `json:"category,omitempty"`
		Date        *Date   `json:"date,omitempty"`
		Month       *string `json:"month,omitempty"`
		AccountID   *string `json:"accountId,omitempty"`
	}

	TransactionFilter struct {
		Month     string
		AccountID string
		Category  string
		Query     string
	}

	Account struct {
		ID        string    `json:"id"`
		OwnerID   string    `json:"-"`
		Name      string    `json:"name"`
		Type      string    `json:"type"`
		Currency  string    `json:"currency"`
		Color     string    `json:"color"`
		Balance   Money     `json:"balance"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	AccountDraft struct {
		Name            string `json:"name"`
		Type            string `json:"type"`
		Currency        string `json:"currency"`
		Color           string `json:"color"`
		StartingBalance Money  `json:"balance"`
	}

	AccountPatch struct {
		Name     *string `json:"name,omitempty"`
		Type     *string `json:"type,omitempty"`
		Currency *string `json:"currency,omitempty"`
		Color    *string `json:"color,omitempty"`
	}

	// AccountType is one row of the open account-type lookup table. Global
	// types have no owner.
	AccountType struct {
		ID      string `json:"id"`
		OwnerID string `json:"-"`
		Label   string `json:"label"`
		Emoji   string `json:"emoji"`
	}

	Category struct {
		Key         string `json:"key,omitempty"`
		OwnerID     string `json:"-"`
		Label       string `json:"label"`
		Color       string `json:"color"`
		BudgetLimit *Money `json:"budgetLimit,omitempty"`
	}

	// CategoryPatch changes label, color or limit. A zero BudgetLimit removes
	// the limit.
	CategoryPatch struct {
		Label       *string `json:"label,omitempty"`
		Color       *string `json:"color,omitempty"`
		BudgetLimit *Money  `json:"budgetLimit,omitempty"`
	}

	RecurringDefinition struct {
		ID           string         `json:"id"`
		OwnerID      string         `json:"-"`
		Description  string         `json:"text"`
		Amount       Money          `json:"amount"`
		Category     string         `json:"category"`
		Interval     Interval       `json:"interval"`
		DayOfMonth   int            `json:"dayOfMonth"`
		StartDate    Date           `json:"startDate"`
		EndDate      *Date          `json:"endDate,omitempty"`
		IsActive     bool           `json:"isActive"`
		LastExecuted *time.Time     `json:"lastExecuted"`
		NoticePeriod string         `json:"noticePeriod,omitempty"`
		Notes        string         `json:"notes,omitempty"`
		History      []HistoryEntry `json:"history"`
	}

	HistoryEntry struct {
		Date    time.Time `json:"date"`
		Changes []string  `json:"changes"`
	}

	RecurringDraft struct {
		Description  string   `json:"text"`
		Amount       Money    `json:"amount"`
		Category     string   `json:"category"`
		Interval     Interval `json:"interval"`
		DayOfMonth   int      `json:"dayOfMonth"`
		StartDate    Date     `json:"startDate"`
		EndDate      *Date    `json:"endDate,omitempty"`
		NoticePeriod string   `json:"noticePeriod,omitempty"`
		Notes        string   `json:"notes,omitempty"`
	}

	// RecurringPatch holds user-editable fields only; the execution marker
	// and the history are maintained by the system.
	RecurringPatch struct {
		Description  *string `json:"text,omitempty"`
		Amount       *Money  `json:"amount,omitempty"`
		Category     *string `json:"category,omitempty"`
		DayOfMonth   *int    `json:"dayOfMonth,omitempty"`
		StartDate    *Date   `json:"startDate,omitempty"`
		EndDate      *Date   `json:"endDate,omitempty"`
		ClearEndDate bool    `json:"clearEndDate,omitempty"`
		IsActive     *bool   `json:"isActive,omitempty"`
		NoticePeriod *string `json:"noticePeriod,omitempty"`
		Notes        *string `json:"notes,omitempty"`
	}

	Settings struct {
		Currency      string `json:"currency"`
		Theme         string `json:"theme"`
		Notifications bool   `json:"notifications"`
		BudgetLimit   Money  `json:"budgetLimit"`
	}

	SettingsPatch struct {
		Currency      *string `json:"currency,omitempty"`
		Theme         *string `json:"theme,omitempty"`
		Notifications *bool   `json:"notifications,omitempty"`
		BudgetLimit   *Money  `json:"budgetLimit,omitempty"`
	}

	User struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		Role         Role      `json:"role"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	// UserSummary is a user with the size of their data, for administration.
	UserSummary struct {
		User
		Accounts     int `json:"accounts"`
		Transactions int `json:"transactions"`
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", maxTextLen)
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyMonth         = errors.New("empty month label")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyKey           = errors.New("empty key")
	ErrInvalidDay         = errors.New("day of month must be between 1 and 31")
	ErrInvalidInterval    = errors.New("unsupported interval")
	ErrEndBeforeStart     = errors.New("end date must not be before start date")
	ErrInvalidTheme       = errors.New("theme must be light, dark or auto")
	ErrInvalidLimit       = errors.New("limit must be between 0 and 999999.99")
	ErrEmptyCurrency      = errors.New("empty currency symbol")
)

func validText(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(s) > maxTextLen {
		return ErrDescriptionTooLong
	}
	return nil
}

func validLimit(m Money) error {
	if m.IsNegative() || m.Cents > MaxLimit.Cents {
		return ErrInvalidLimit
	}
	return nil
}

// Normalize trims text fields and fills the category and month defaults.
func (d TransactionDraft) Normalize() TransactionDraft {
	d.Description = strings.TrimSpace(d.Description)
	d.Category = strings.TrimSpace(d.Category)
	if d.Category == "" {
		d.Category = DefaultCategoryKey
	}
	d.Month = strings.TrimSpace(d.Month)
	if d.Month == "" && !d.Date.IsZero() {
		d.Month = d.Date.MonthLabel()
	}
	d.AccountID = strings.TrimSpace(d.AccountID)
	return d
}

func (d TransactionDraft) Validate() error {
	if err := validText(d.Description); err != nil {
		return err
	}
	if err := d.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(d.Month) == "" {
		return ErrEmptyMonth
	}
	if strings.TrimSpace(d.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// Transaction builds the entry an owner's draft describes.
func (d TransactionDraft) Transaction(ownerID string) Transaction {
	return Transaction{
		OwnerID:     ownerID,
		Description: d.Description,
		Amount:      d.Amount,
		Category:    d.Category,
		Date:        d.Date,
		Month:       d.Month,
		AccountID:   d.AccountID,
		RecurringID: d.RecurringID,
	}
}

// Apply returns t with the patch applied. When the date changes and no
// month is given the month label follows the date.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = strings.TrimSpace(*p.Category)
	}
	if p.Date != nil {
		t.Date = *p.Date
		if p.Month == nil {
			t.Month = p.Date.MonthLabel()
		}
	}
	if p.Month != nil {
		t.Month = strings.TrimSpace(*p.Month)
	}
	if p.AccountID != nil {
		t.AccountID = strings.TrimSpace(*p.AccountID)
	}
	return t
}

// Draft returns the fields of t as a draft, for validation after a patch.
func (t Transaction) Draft() TransactionDraft {
	return TransactionDraft{
		Description: t.Description,
		Amount:      t.Amount,
		Category:    t.Category,
		Date:        t.Date,
		Month:       t.Month,
		AccountID:   t.AccountID,
		RecurringID: t.RecurringID,
	}
}

// Matches reports whether t passes every criterion of f.
func (f TransactionFilter) Matches(t Transaction) bool {
	if f.Month != "" && t.Month != f.Month {
		return false
	}
	if f.AccountID != "" && t.AccountID != f.AccountID {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(t.Description), q) &&
			!strings.Contains(strings.ToLower(t.Category), q) {
			return false
		}
	}
	return true
}

func (d AccountDraft) Normalize() AccountDraft {
	d.Name = strings.TrimSpace(d.Name)
	d.Type = strings.TrimSpace(d.Type)
	d.Currency = strings.TrimSpace(d.Currency)
	if d.Currency == "" {
		d.Currency = DefaultCurrency
	}
	d.Color = strings.TrimSpace(d.Color)
	if d.Color == "" {
		d.Color = DefaultAccountColor
	}
	return d
}

func (d AccountDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(d.Name) > maxTextLen {
		return ErrDescriptionTooLong
	}
	if strings.TrimSpace(d.Type) == "" {
		return errors.New("empty account type")
	}
	if d.StartingBalance.IsNegative() {
		return fmt.Errorf("%w: starting balance must not be negative", ErrInvalidAmount)
	}
	return nil
}

func (p AccountPatch) Apply(a Account) Account {
	if p.Name != nil {
		a.Name = strings.TrimSpace(*p.Name)
	}
	if p.Type != nil {
		a.Type = strings.TrimSpace(*p.Type)
	}
	if p.Currency != nil {
		a.Currency = strings.TrimSpace(*p.Currency)
	}
	if p.Color != nil {
		a.Color = strings.TrimSpace(*p.Color)
	}
	return a
}

func (a Account) Validate() error {
	return AccountDraft{Name: a.Name, Type: a.Type, Currency: a.Currency}.Validate()
}

func (t AccountType) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyKey
	}
	if strings.TrimSpace(t.Label) == "" {
		return ErrEmptyName
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Key) == "" {
		return ErrEmptyKey
	}
	if utf8.RuneCountInString(c.Key) > maxTextLen {
		return ErrDescriptionTooLong
	}
	if strings.TrimSpace(c.Label) == "" {
		return ErrEmptyName
	}
	if c.BudgetLimit != nil {
		if err := validLimit(*c.BudgetLimit); err != nil {
			return err
		}
	}
	return nil
}

func (p CategoryPatch) Apply(c Category) Category {
	if p.Label != nil {
		c.Label = strings.TrimSpace(*p.Label)
	}
	if p.Color != nil {
		c.Color = strings.TrimSpace(*p.Color)
	}
	if p.BudgetLimit != nil {
		if p.BudgetLimit.IsZero() {
			c.BudgetLimit = nil
		} else {
			limit := *p.BudgetLimit
			c.BudgetLimit = &limit
		}
	}
	return c
}

func (d RecurringDraft) Definition(id, ownerID string) RecurringDefinition {
	interval := d.Interval
	if interval == "" {
		interval = Monthly
	}
	category := strings.TrimSpace(d.Category)
	if category == "" {
		category = DefaultCategoryKey
	}
	return RecurringDefinition{
		ID:           id,
		OwnerID:      ownerID,
		Description:  strings.TrimSpace(d.Description),
		Amount:       d.Amount,
		Category:     category,
		Interval:     interval,
		DayOfMonth:   d.DayOfMonth,
		StartDate:    d.StartDate,
		EndDate:      d.EndDate,
		IsActive:     true,
		NoticePeriod: strings.TrimSpace(d.NoticePeriod),
		Notes:        strings.TrimSpace(d.Notes),
		History:      []HistoryEntry{},
	}
}

func (r RecurringDefinition) Validate() error {
	if err := validText(r.Description); err != nil {
		return err
	}
	if r.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if r.Interval != Monthly {
		return fmt.Errorf("%w: %q", ErrInvalidInterval, r.Interval)
	}
	if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
		return ErrInvalidDay
	}
	if err := r.StartDate.Validate(); err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		return ErrEndBeforeStart
	}
	return nil
}

// Apply returns r with the user-editable fields of the patch applied.
func (p RecurringPatch) Apply(r RecurringDefinition) RecurringDefinition {
	if p.Description != nil {
		r.Description = strings.TrimSpace(*p.Description)
	}
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	if p.Category != nil {
		r.Category = strings.TrimSpace(*p.Category)
	}
	if p.DayOfMonth != nil {
		r.DayOfMonth = *p.DayOfMonth
	}
	if p.StartDate != nil {
		r.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		end := *p.EndDate
		r.EndDate = &end
	}
	if p.ClearEndDate {
		r.EndDate = nil
	}
	if p.IsActive != nil {
		r.IsActive = *p.IsActive
	}
	if p.NoticePeriod != nil {
		r.NoticePeriod = strings.TrimSpace(*p.NoticePeriod)
	}
	if p.Notes != nil {
		r.Notes = strings.TrimSpace(*p.Notes)
	}
	return r
}

func (s Settings) Validate() error {
	if strings.TrimSpace(s.Currency) == "" {
		return ErrEmptyCurrency
	}
	switch s.Theme {
	case ThemeLight, ThemeDark, ThemeAuto:
	default:
		return ErrInvalidTheme
	}
	return validLimit(s.BudgetLimit)
}

func (p SettingsPatch) Apply(s Settings) Settings {
	if p.Currency != nil {
		s.Currency = strings.TrimSpace(*p.Currency)
	}
	if p.Theme != nil {
		s.Theme = strings.TrimSpace(*p.Theme)
	}
	if p.Notifications != nil {
		s.Notifications = *p.Notifications
	}
	if p.BudgetLimit != nil {
		s.BudgetLimit = *p.BudgetLimit
	}
	return s
}

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }
