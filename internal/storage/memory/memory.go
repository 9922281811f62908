// Package memory is an in-process implementation of the store ports. An
// atomic unit works on a copy of the state that replaces the live state only
// when the unit succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"budgetplaner/internal/core"
	"budgetplaner/internal/ports"
)

var _ ports.Store = (*Store)(nil)

type state struct {
	nextTxID     int64
	transactions map[int64]core.Transaction
	accounts     map[string]core.Account
	recurring    map[string]core.RecurringDefinition
	occurrences  map[string]int64
	categories   map[string]core.Category
	accountTypes map[string]core.AccountType
	settings     map[string]core.Settings
	users        map[string]core.User
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// New returns a store seeded with the global categories and account types.
func New() *Store {
	st := &state{
		nextTxID:     1,
		transactions: map[int64]core.Transaction{},
		accounts:     map[string]core.Account{},
		recurring:    map[string]core.RecurringDefinition{},
		occurrences:  map[string]int64{},
		categories:   map[string]core.Category{},
		accountTypes: map[string]core.AccountType{},
		settings:     map[string]core.Settings{},
		users:        map[string]core.User{},
	}
	for _, c := range core.DefaultCategories {
		st.categories[scoped("", c.Key)] = c
	}
	for _, t := range core.DefaultAccountTypes {
		st.accountTypes[scoped("", t.ID)] = t
	}
	return &Store{st: st, now: time.Now}
}

func (s *Store) Close() error { return nil }

func scoped(ownerID, key string) string { return ownerID + "\x00" + key }

func (st *state) clone() *state {
	out := &state{
		nextTxID:     st.nextTxID,
		transactions: make(map[int64]core.Transaction, len(st.transactions)),
		accounts:     make(map[string]core.Account, len(st.accounts)),
		recurring:    make(map[string]core.RecurringDefinition, len(st.recurring)),
		occurrences:  make(map[string]int64, len(st.occurrences)),
		categories:   st.categories,
		accountTypes: st.accountTypes,
		settings:     st.settings,
		users:        st.users,
	}
	for k, v := range st.transactions {
		out.transactions[k] = v
	}
	for k, v := range st.accounts {
		out.accounts[k] = v
	}
	for k, v := range st.recurring {
		out.recurring[k] = v
	}
	for k, v := range st.occurrences {
		out.occurrences[k] = v
	}
	return out
}

// WithinTx runs fn against a private copy of the ledger state and publishes
// the copy only when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(tx ports.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	return t.st.transaction(id)
}

func (t *tx) InsertTransaction(_ context.Context, tr core.Transaction) (core.Transaction, error) {
	tr.ID = t.st.nextTxID
	t.st.nextTxID++
	t.st.transactions[tr.ID] = tr
	return tr, nil
}

func (t *tx) UpdateTransaction(_ context.Context, tr core.Transaction) error {
	if _, err := t.st.transaction(tr.ID); err != nil {
		return err
	}
	t.st.transactions[tr.ID] = tr
	return nil
}

func (t *tx) DeleteTransaction(_ context.Context, id int64) error {
	if _, err := t.st.transaction(id); err != nil {
		return err
	}
	delete(t.st.transactions, id)
	return nil
}

func (t *tx) GetAccount(_ context.Context, id string) (core.Account, error) {
	return t.st.account(id)
}

func (t *tx) InsertAccount(_ context.Context, a core.Account) error {
	if _, ok := t.st.accounts[a.ID]; ok {
		return core.Conflict("account", a.ID, nil)
	}
	t.st.accounts[a.ID] = a
	return nil
}

func (t *tx) UpdateAccount(_ context.Context, a core.Account) error {
	existing, err := t.st.account(a.ID)
	if err != nil {
		return err
	}
	a.Balance = existing.Balance
	a.UpdatedAt = t.now()
	t.st.accounts[a.ID] = a
	return nil
}

func (t *tx) AdjustBalance(_ context.Context, accountID string, delta core.Money) error {
	a, err := t.st.account(accountID)
	if err != nil {
		return err
	}
	a.Balance = a.Balance.Add(delta)
	a.UpdatedAt = t.now()
	t.st.accounts[accountID] = a
	return nil
}

func (t *tx) DeleteAccount(_ context.Context, id string) (int, error) {
	if _, err := t.st.account(id); err != nil {
		return 0, err
	}
	removed := 0
	for txID, tr := range t.st.transactions {
		if tr.AccountID == id {
			delete(t.st.transactions, txID)
			removed++
		}
	}
	delete(t.st.accounts, id)
	return removed, nil
}

func (t *tx) ClaimOccurrence(_ context.Context, definitionID, monthKey string, transactionID int64) error {
	key := scoped(definitionID, monthKey)
	if _, ok := t.st.occurrences[key]; ok {
		return core.Conflict("occurrence", definitionID+"/"+monthKey, nil)
	}
	t.st.occurrences[key] = transactionID
	return nil
}

func (t *tx) MarkExecuted(_ context.Context, definitionID string, at time.Time) error {
	d, ok := t.st.recurring[definitionID]
	if !ok {
		return core.NotFound("recurring definition", definitionID)
	}
	if d.LastExecuted != nil && !at.After(*d.LastExecuted) {
		return nil
	}
	d.LastExecuted = &at
	t.st.recurring[definitionID] = d
	return nil
}

func (st *state) transaction(id int64) (core.Transaction, error) {
	tr, ok := st.transactions[id]
	if !ok {
		return core.Transaction{}, core.NotFound("transaction", strconv.FormatInt(id, 10))
	}
	return tr, nil
}

func (st *state) account(id string) (core.Account, error) {
	a, ok := st.accounts[id]
	if !ok {
		return core.Account{}, core.NotFound("account", id)
	}
	return a, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.transaction(id)
}

// ListTransactions returns the owner's matching transactions, newest first.
func (s *Store) ListTransactions(_ context.Context, ownerID string, f core.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0)
	for _, tr := range s.st.transactions {
		if tr.OwnerID == ownerID && f.Matches(tr) {
			out = append(out, tr)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) GetAccount(_ context.Context, id string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.account(id)
}

func (s *Store) ListAccounts(_ context.Context, ownerID string) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Account, 0)
	for _, a := range s.st.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) GetRecurring(_ context.Context, id string) (core.RecurringDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.st.recurring[id]
	if !ok {
		return core.RecurringDefinition{}, core.NotFound("recurring definition", id)
	}
	return cloneDefinition(d), nil
}

func (s *Store) ListRecurring(_ context.Context, ownerID string) ([]core.RecurringDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RecurringDefinition, 0)
	for _, d := range s.st.recurring {
		if d.OwnerID == ownerID {
			out = append(out, cloneDefinition(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfMonth != out[j].DayOfMonth {
			return out[i].DayOfMonth < out[j].DayOfMonth
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListRecurringOwners(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	for _, d := range s.st.recurring {
		if d.IsActive {
			seen[d.OwnerID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) CreateRecurring(_ context.Context, d core.RecurringDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.recurring[d.ID]; ok {
		return core.Conflict("recurring definition", d.ID, nil)
	}
	s.st.recurring[d.ID] = cloneDefinition(d)
	return nil
}

func (s *Store) UpdateRecurring(_ context.Context, d core.RecurringDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.st.recurring[d.ID]
	if !ok {
		return core.NotFound("recurring definition", d.ID)
	}
	d = cloneDefinition(d)
	d.LastExecuted = existing.LastExecuted
	s.st.recurring[d.ID] = d
	return nil
}

func (s *Store) DeleteRecurring(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.recurring[id]; !ok {
		return core.NotFound("recurring definition", id)
	}
	delete(s.st.recurring, id)
	for key := range s.st.occurrences {
		if strings.HasPrefix(key, id+"\x00") {
			delete(s.st.occurrences, key)
		}
	}
	return nil
}

func cloneDefinition(d core.RecurringDefinition) core.RecurringDefinition {
	d.History = append([]core.HistoryEntry{}, d.History...)
	if d.EndDate != nil {
		end := *d.EndDate
		d.EndDate = &end
	}
	if d.LastExecuted != nil {
		at := *d.LastExecuted
		d.LastExecuted = &at
	}
	return d
}

// ListCategories merges global and owner categories, owner entries winning.
func (s *Store) ListCategories(_ context.Context, ownerID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := core.CategoryMap{}
	for _, c := range s.st.categories {
		if c.OwnerID == "" {
			merged[c.Key] = c
		}
	}
	if ownerID != "" {
		for _, c := range s.st.categories {
			if c.OwnerID == ownerID {
				merged[c.Key] = c
			}
		}
	}
	return merged.Categories(), nil
}

func (s *Store) GetCategory(_ context.Context, ownerID, key string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.st.categories[scoped(ownerID, key)]; ok {
		return c, nil
	}
	if c, ok := s.st.categories[scoped("", key)]; ok {
		return c, nil
	}
	return core.Category{}, core.NotFound("category", key)
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scoped(c.OwnerID, c.Key)
	if _, ok := s.st.categories[k]; ok {
		return core.Conflict("category", c.Key, fmt.Errorf("key already exists"))
	}
	s.st.categories[k] = c
	return nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scoped(c.OwnerID, c.Key)
	if _, ok := s.st.categories[k]; !ok {
		return core.NotFound("category", c.Key)
	}
	s.st.categories[k] = c
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, ownerID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scoped(ownerID, key)
	if _, ok := s.st.categories[k]; !ok {
		return core.NotFound("category", key)
	}
	delete(s.st.categories, k)
	return nil
}

func (s *Store) CountCategoryUsage(_ context.Context, ownerID, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, tr := range s.st.transactions {
		if tr.OwnerID == ownerID && tr.Category == key {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListAccountTypes(_ context.Context, ownerID string) ([]core.AccountType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.AccountType, 0, len(s.st.accountTypes))
	for _, t := range s.st.accountTypes {
		if t.OwnerID == "" || t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if (out[i].OwnerID == "") != (out[j].OwnerID == "") {
			return out[i].OwnerID == ""
		}
		return out[i].Label < out[j].Label
	})
	return out, nil
}

func (s *Store) CreateAccountType(_ context.Context, t core.AccountType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.accountTypes[scoped("", t.ID)]; ok {
		return core.Conflict("account type", t.ID, nil)
	}
	k := scoped(t.OwnerID, t.ID)
	if _, ok := s.st.accountTypes[k]; ok {
		return core.Conflict("account type", t.ID, nil)
	}
	s.st.accountTypes[k] = t
	return nil
}

func (s *Store) DeleteAccountType(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scoped(ownerID, id)
	if _, ok := s.st.accountTypes[k]; !ok {
		return core.NotFound("account type", id)
	}
	delete(s.st.accountTypes, k)
	return nil
}

func (s *Store) GetSettings(_ context.Context, ownerID string) (core.Settings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.st.settings[ownerID]
	return st, ok, nil
}

func (s *Store) SaveSettings(_ context.Context, ownerID string, st core.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.settings[ownerID] = st
	return nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.st.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return core.Conflict("user", u.Email, fmt.Errorf("email already registered"))
		}
	}
	s.st.users[u.ID] = u
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[id]
	if !ok {
		return core.User{}, core.NotFound("user", id)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.st.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return core.User{}, core.NotFound("user", email)
}

func (s *Store) ListUsers(_ context.Context) ([]core.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.UserSummary, 0, len(s.st.users))
	for _, u := range s.st.users {
		sum := core.UserSummary{User: u}
		for _, a := range s.st.accounts {
			if a.OwnerID == u.ID {
				sum.Accounts++
			}
		}
		for _, tr := range s.st.transactions {
			if tr.OwnerID == u.ID {
				sum.Transactions++
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateUserRole(_ context.Context, id string, role core.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[id]
	if !ok {
		return core.NotFound("user", id)
	}
	u.Role = role
	s.st.users[id] = u
	return nil
}
