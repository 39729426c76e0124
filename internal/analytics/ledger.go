package analytics

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"talky/internal/core"
)

// AllValues disables a dropdown constraint, like an empty value.
const AllValues = "all"

// Filter narrows the expense ledger. Category, Subcategory and Provider
// match exactly; Search is a case-insensitive substring of the item name or
// provider; Month is a YYYY-MM key.
type Filter struct {
	Search      string `json:"search,omitempty"`
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Month       string `json:"month,omitempty"`
}

// FilterOptions lists the distinct dropdown values in first-occurrence order.
type FilterOptions struct {
	Categories    []string `json:"categories"`
	Subcategories []string `json:"subcategories"`
	Providers     []string `json:"providers"`
	Months        []string `json:"months"`
}

// Ledger is a filtered view over the records.
type Ledger struct {
	Items   []core.ExpenseRecord `json:"items"`
	Count   int                  `json:"count"`
	Total   float64              `json:"total"`
	Options FilterOptions        `json:"options"`
}

func constrained(v string) bool {
	return v != "" && v != AllValues
}

// Apply returns the records matching f in input order.
func (e *Engine) Apply(records []core.ExpenseRecord, f Filter) []core.ExpenseRecord {
	// A Caser carries state; one per call.
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(f.Search))

	out := make([]core.ExpenseRecord, 0, len(records))
	for _, r := range records {
		if constrained(f.Category) && r.Category != f.Category {
			continue
		}
		if constrained(f.Subcategory) && r.Subcategory != f.Subcategory {
			continue
		}
		if constrained(f.Provider) && r.Provider != f.Provider {
			continue
		}
		if constrained(f.Month) {
			key, ok := core.IssueMonth(r.IssueDate, e.loc)
			if !ok || key != f.Month {
				continue
			}
		}
		if needle != "" &&
			!strings.Contains(fold.String(r.ItemName), needle) &&
			!strings.Contains(fold.String(r.Provider), needle) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Options collects the non-empty categories, subcategories, providers and
// issue months present in records.
func (e *Engine) Options(records []core.ExpenseRecord) FilterOptions {
	opts := FilterOptions{
		Categories:    []string{},
		Subcategories: []string{},
		Providers:     []string{},
		Months:        []string{},
	}
	seen := make(map[string]struct{})
	add := func(kind, v string, dst *[]string) {
		if v == "" {
			return
		}
		k := kind + "\x00" + v
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		*dst = append(*dst, v)
	}
	for _, r := range records {
		add("c", r.Category, &opts.Categories)
		add("s", r.Subcategory, &opts.Subcategories)
		add("p", r.Provider, &opts.Providers)
		if m, ok := core.IssueMonth(r.IssueDate, e.loc); ok {
			add("m", m, &opts.Months)
		}
	}
	return opts
}

// Ledger filters records and totals the result. Options always reflect the
// unfiltered set so dropdowns keep every choice.
func (e *Engine) Ledger(records []core.ExpenseRecord, f Filter) Ledger {
	items := e.Apply(records, f)
	total := decimal.Zero
	for _, r := range items {
		total = total.Add(r.AmountTotal.Decimal())
	}
	return Ledger{
		Items:   items,
		Count:   len(items),
		Total:   round2(total),
		Options: e.Options(records),
	}
}
