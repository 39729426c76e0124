// Package core provides the expense record model and the parsing helpers
// shared by every record source.
//
// This file contains the lenient monetary amount used for invoice line totals.
// Extracted invoices carry amounts as JSON numbers, numeric strings, strings
// with a decimal comma, or free text such as "N/A". An Amount keeps the raw
// text so malformed values remain observable instead of silently becoming 0.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value as delivered by the extraction pipeline.
type Amount struct {
	raw     string
	value   decimal.Decimal
	present bool
	valid   bool
}

// NewAmount returns a valid amount holding d.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{raw: d.String(), value: d, present: true, valid: true}
}

// MustAmount parses s and panics when it is not a number. Intended for tests and seeds.
func MustAmount(s string) Amount {
	a := ParseAmount(s)
	if !a.valid {
		panic(fmt.Sprintf("core: invalid amount %q", s))
	}
	return a
}

// ParseAmount converts any decoded JSON or spreadsheet cell value into an Amount.
//
// Examples:
//
//	ParseAmount("12.34")   -> 12.34, valid
//	ParseAmount("12,34 €") -> 12.34, valid
//	ParseAmount(10.5)      -> 10.5, valid
//	ParseAmount("N/A")     -> invalid, raw "N/A"
//	ParseAmount("1e3")     -> invalid, raw "1e3"
//	ParseAmount(nil)       -> missing
func ParseAmount(v any) Amount {
	switch val := v.(type) {
	case nil:
		return Amount{}
	case Amount:
		return val
	case decimal.Decimal:
		return NewAmount(val)
	case string:
		return parseAmountString(val)
	case json.Number:
		// A JSON number token is numeric by construction, exponent included.
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return Amount{raw: val.String(), present: true}
		}
		return Amount{raw: val.String(), value: d, present: true, valid: true}
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return Amount{raw: fmt.Sprint(val), present: true}
		}
		return NewAmount(decimal.NewFromFloat(val))
	case float32:
		return ParseAmount(float64(val))
	case int:
		return NewAmount(decimal.NewFromInt(int64(val)))
	case int64:
		return NewAmount(decimal.NewFromInt(val))
	default:
		return Amount{raw: fmt.Sprint(val), present: true}
	}
}

func parseAmountString(s string) Amount {
	a := Amount{raw: s}
	clean := strings.TrimSpace(s)
	clean = strings.Trim(clean, "€$£ \u00a0")
	if clean == "" {
		return a
	}
	a.present = true
	// Free text such as "1e3" or "2E5" is not an amount.
	if strings.ContainsAny(clean, "eE") {
		return a
	}
	clean = normalizeSeparators(clean)
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return a
	}
	a.value = d
	a.valid = true
	return a
}

// normalizeSeparators rewrites "1.234,56", "1,234.56" and "12,5" to dot notation.
// The right-most separator is the decimal one; a lone comma is a decimal comma.
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma == -1:
		return s
	case lastDot == -1 && strings.Count(s, ",") == 1:
		return strings.Replace(s, ",", ".", 1)
	case lastDot == -1:
		return strings.ReplaceAll(s, ",", "")
	case lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		return strings.Replace(s, ",", ".", 1)
	default:
		return strings.ReplaceAll(s, ",", "")
	}
}

// Value returns the parsed decimal and whether the amount is a usable number.
func (a Amount) Value() (decimal.Decimal, bool) {
	return a.value, a.valid
}

// Decimal returns the parsed value, or zero when the amount is missing or malformed.
func (a Amount) Decimal() decimal.Decimal {
	if !a.valid {
		return decimal.Zero
	}
	return a.value
}

// Valid reports whether the amount parsed as a number.
func (a Amount) Valid() bool { return a.valid }

// Present reports whether any non-blank value was supplied.
func (a Amount) Present() bool { return a.present }

// Raw returns the text the amount was parsed from.
func (a Amount) Raw() string { return a.raw }

func (a Amount) String() string {
	if a.valid {
		return a.value.StringFixed(2)
	}
	return a.raw
}

// MarshalJSON writes valid amounts as JSON numbers, malformed ones as their
// raw string and missing ones as null.
func (a Amount) MarshalJSON() ([]byte, error) {
	switch {
	case a.valid:
		return []byte(a.value.String()), nil
	case a.present:
		return json.Marshal(a.raw)
	default:
		return []byte("null"), nil
	}
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode amount: %w", err)
		}
		*a = parseAmountString(s)
		return nil
	}
	*a = parseAmountString(string(data))
	return nil
}
