package core

import "sort"

const (
	DefaultCategoryKey  = "General"
	DefaultCurrency     = "€"
	DefaultAccountColor = "#64748b"

	StartingBalanceDescription = "Startsaldo"
	ImportedDescription        = "Imported"
)

// DefaultCategories are the global categories every owner sees.
var DefaultCategories = []Category{
	{Key: "General", Label: "Allgemein", Color: "#64748b"},
	{Key: "Salary", Label: "Gehalt", Color: "#10b981"},
	{Key: "Food", Label: "Essen & Trinken", Color: "#f59e0b"},
	{Key: "Housing", Label: "Wohnen", Color: "#6366f1"},
	{Key: "Transport", Label: "Transport", Color: "#0ea5e9"},
	{Key: "Leisure", Label: "Freizeit", Color: "#a855f7"},
	{Key: "Shopping", Label: "Shopping", Color: "#ec4899"},
	{Key: "Health", Label: "Gesundheit", Color: "#f43f5e"},
}

// DefaultAccountTypes are the global account types every owner sees.
var DefaultAccountTypes = []AccountType{
	{ID: "cash", Label: "Bargeld", Emoji: "💵"},
	{ID: "bank", Label: "Bankkonto", Emoji: "🏦"},
	{ID: "card", Label: "Kreditkarte", Emoji: "💳"},
	{ID: "wallet", Label: "Wallet", Emoji: "👛"},
	{ID: "savings", Label: "Sparkonto", Emoji: "🏴"},
	{ID: "depot", Label: "Depot", Emoji: "📈"},
}

func DefaultSettings() Settings {
	return Settings{
		Currency:      DefaultCurrency,
		Theme:         ThemeAuto,
		Notifications: true,
	}
}

// CategoryMap indexes categories by key. It is the shape categories take
// in export documents.
type CategoryMap map[string]Category

func NewCategoryMap(categories []Category) CategoryMap {
	m := make(CategoryMap, len(categories))
	for _, c := range categories {
		m[c.Key] = c
	}
	return m
}

// Label resolves key to its display label, falling back to the key itself
// when the category is unknown.
func (m CategoryMap) Label(key string) string {
	if c, ok := m[key]; ok && c.Label != "" {
		return c.Label
	}
	return key
}

// Lookup returns the category for key, or a placeholder carrying the raw
// key when it does not resolve.
func (m CategoryMap) Lookup(key string) Category {
	if c, ok := m[key]; ok {
		c.Key = key
		return c
	}
	return Category{Key: key, Label: key, Color: DefaultAccountColor}
}

// Categories returns the entries sorted by key, with keys filled in.
func (m CategoryMap) Categories() []Category {
	out := make([]Category, 0, len(m))
	for key, c := range m {
		c.Key = key
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
