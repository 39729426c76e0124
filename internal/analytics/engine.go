// Package analytics computes the reporting views over a snapshot of expense
// records: monthly totals, grouped totals with percentages, summary
// statistics and the filtered ledger.
//
// Every function is a pure computation over its input. Malformed amounts
// contribute zero and unparseable dates are left out of the monthly series;
// both are counted in Diagnostics instead of failing the computation.
package analytics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"talky/internal/core"
)

// ErrUnknownKeyField is returned for a grouping field other than category,
// subcategory or provider.
var ErrUnknownKeyField = errors.New("unknown grouping field")

// KeyField selects the record attribute used by GroupedTotals.
type KeyField string

const (
	KeyCategory    KeyField = "category"
	KeySubcategory KeyField = "subcategory"
	KeyProvider    KeyField = "provider"
)

// ParseKeyField validates s as a grouping field.
func ParseKeyField(s string) (KeyField, error) {
	switch k := KeyField(s); k {
	case KeyCategory, KeySubcategory, KeyProvider:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKeyField, s)
	}
}

func (k KeyField) value(r core.ExpenseRecord) string {
	switch k {
	case KeyCategory:
		return r.Category
	case KeySubcategory:
		return r.Subcategory
	default:
		return r.Provider
	}
}

// MonthlyTotal is the rounded spend of one YYYY-MM month.
type MonthlyTotal struct {
	MonthKey string  `json:"monthKey"`
	Total    float64 `json:"total"`
}

// GroupTotal is the rounded spend of one category, subcategory or provider
// and its share of the grand total in percent.
type GroupTotal struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

// Summary holds the headline statistics of a record set.
type Summary struct {
	GrandTotal        float64 `json:"grandTotal"`
	Count             int     `json:"count"`
	Average           float64 `json:"average"`
	DistinctProviders int     `json:"distinctProviders"`
}

// Diagnostics counts the records that could not be used as-is.
type Diagnostics struct {
	MalformedAmounts int `json:"malformedAmounts"`
	UnparseableDates int `json:"unparseableDates"`
}

// Skipped reports whether any record was degraded during aggregation.
func (d Diagnostics) Skipped() bool {
	return d.MalformedAmounts > 0 || d.UnparseableDates > 0
}

// Report bundles every view computed from one snapshot.
type Report struct {
	Monthly       []MonthlyTotal `json:"monthly"`
	ByCategory    []GroupTotal   `json:"byCategory"`
	BySubcategory []GroupTotal   `json:"bySubcategory"`
	ByProvider    []GroupTotal   `json:"byProvider"`
	Summary       Summary        `json:"summary"`
	Diagnostics   Diagnostics    `json:"diagnostics"`
}

// Engine aggregates records. The zero value is not usable; call New.
// An Engine holds no mutable state and is safe for concurrent use.
type Engine struct {
	loc *time.Location
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocation sets the time zone used to derive month keys. Defaults to
// the local time zone.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// New returns an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{loc: time.Local}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location returns the time zone month keys are computed in.
func (e *Engine) Location() *time.Location { return e.loc }

// MonthlyTotals sums amounts per issue month, sorted ascending by month key.
// Records whose issue date cannot be parsed are skipped.
func (e *Engine) MonthlyTotals(records []core.ExpenseRecord) []MonthlyTotal {
	out, _ := e.monthly(records)
	return out
}

func (e *Engine) monthly(records []core.ExpenseRecord) ([]MonthlyTotal, int) {
	sums := make(map[string]decimal.Decimal)
	skipped := 0
	for _, r := range records {
		key, ok := core.IssueMonth(r.IssueDate, e.loc)
		if !ok {
			skipped++
			continue
		}
		sums[key] = sums[key].Add(r.AmountTotal.Decimal())
	}
	out := make([]MonthlyTotal, 0, len(sums))
	for key, sum := range sums {
		out = append(out, MonthlyTotal{MonthKey: key, Total: round2(sum)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthKey < out[j].MonthKey })
	return out, skipped
}

// GroupedTotals sums amounts per distinct value of field, in order of first
// occurrence. Percentages are all zero when the grand total is zero.
func (e *Engine) GroupedTotals(records []core.ExpenseRecord, field KeyField) ([]GroupTotal, error) {
	if _, err := ParseKeyField(string(field)); err != nil {
		return nil, err
	}
	return groupedTotals(records, field), nil
}

func groupedTotals(records []core.ExpenseRecord, field KeyField) []GroupTotal {
	var order []string
	sums := make(map[string]decimal.Decimal)
	grand := decimal.Zero
	for _, r := range records {
		name := field.value(r)
		if _, seen := sums[name]; !seen {
			order = append(order, name)
		}
		amount := r.AmountTotal.Decimal()
		sums[name] = sums[name].Add(amount)
		grand = grand.Add(amount)
	}

	grand = grand.Round(2)
	out := make([]GroupTotal, 0, len(order))
	for _, name := range order {
		value := sums[name].Round(2)
		g := GroupTotal{Name: name, Value: value.InexactFloat64()}
		if !grand.IsZero() {
			g.Percentage = round2(value.Div(grand).Mul(hundred))
		}
		out = append(out, g)
	}
	return out
}

// SummaryStatistics returns grand total, record count, average per record
// and the number of distinct providers.
func (e *Engine) SummaryStatistics(records []core.ExpenseRecord) Summary {
	grand := decimal.Zero
	providers := make(map[string]struct{})
	for _, r := range records {
		grand = grand.Add(r.AmountTotal.Decimal())
		providers[r.Provider] = struct{}{}
	}
	s := Summary{
		GrandTotal:        round2(grand),
		Count:             len(records),
		DistinctProviders: len(providers),
	}
	if s.Count > 0 {
		s.Average = round2(grand.Round(2).Div(decimal.NewFromInt(int64(s.Count))))
	}
	return s
}

// Diagnose counts malformed amounts and unparseable issue dates.
func (e *Engine) Diagnose(records []core.ExpenseRecord) Diagnostics {
	var d Diagnostics
	for _, r := range records {
		if !r.AmountTotal.Valid() {
			d.MalformedAmounts++
		}
		if _, ok := core.IssueMonth(r.IssueDate, e.loc); !ok {
			d.UnparseableDates++
		}
	}
	return d
}

// Report computes every view of records at once.
func (e *Engine) Report(records []core.ExpenseRecord) Report {
	monthly, badDates := e.monthly(records)
	rep := Report{
		Monthly:       monthly,
		ByCategory:    groupedTotals(records, KeyCategory),
		BySubcategory: groupedTotals(records, KeySubcategory),
		ByProvider:    groupedTotals(records, KeyProvider),
		Summary:       e.SummaryStatistics(records),
	}
	rep.Diagnostics.UnparseableDates = badDates
	for _, r := range records {
		if !r.AmountTotal.Valid() {
			rep.Diagnostics.MalformedAmounts++
		}
	}
	return rep
}

var hundred = decimal.NewFromInt(100)

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
