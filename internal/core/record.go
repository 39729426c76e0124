package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ExpenseRecord is one invoice line item. Records are immutable snapshots
// once loaded from a source.
type ExpenseRecord struct {
	ID            string `json:"id,omitempty"`
	UserID        string `json:"userId,omitempty"`
	IssueDate     string `json:"issueDate"`
	AmountTotal   Amount `json:"amountTotal"`
	Quantity      Amount `json:"quantity"`
	UnitPrice     Amount `json:"unitPrice"`
	Unit          string `json:"unit,omitempty"`
	Category      string `json:"category"`
	Subcategory   string `json:"subcategory"`
	Provider      string `json:"provider"`
	ItemName      string `json:"itemName,omitempty"`
	InvoiceNumber string `json:"invoiceNumber,omitempty"`
	DocumentKey   string `json:"documentKey,omitempty"`
}

// DecodeRecord builds a record from a loosely typed object such as a decoded
// JSON item or a spreadsheet row keyed by its header. Unknown keys are
// ignored. When several keys name the same field, the alias listed first in
// fieldAliases wins; keys spelling the same alias differently are ordered
// bytewise, so the result never depends on map order.
func DecodeRecord(m map[string]any) ExpenseRecord {
	type choice struct {
		key  string
		rank int
	}
	chosen := make(map[string]choice, len(m))
	for key := range m {
		a, ok := aliasIndex[foldFieldName(key)]
		if !ok {
			continue
		}
		if c, seen := chosen[a.field]; seen && (c.rank < a.rank || c.rank == a.rank && c.key < key) {
			continue
		}
		chosen[a.field] = choice{key: key, rank: a.rank}
	}

	var r ExpenseRecord
	for field, c := range chosen {
		r.set(field, m[c.key])
	}
	return r
}

func (r *ExpenseRecord) set(field string, v any) {
	switch field {
	case FieldAmountTotal:
		r.AmountTotal = ParseAmount(v)
	case FieldQuantity:
		r.Quantity = ParseAmount(v)
	case FieldUnitPrice:
		r.UnitPrice = ParseAmount(v)
	case FieldID:
		r.ID = stringValue(v)
	case FieldUserID:
		r.UserID = stringValue(v)
	case FieldIssueDate:
		r.IssueDate = stringValue(v)
	case FieldUnit:
		r.Unit = stringValue(v)
	case FieldCategory:
		r.Category = stringValue(v)
	case FieldSubcategory:
		r.Subcategory = stringValue(v)
	case FieldProvider:
		r.Provider = stringValue(v)
	case FieldItemName:
		r.ItemName = stringValue(v)
	case FieldInvoiceNumber:
		r.InvoiceNumber = stringValue(v)
	case FieldDocumentKey:
		r.DocumentKey = stringValue(v)
	}
}

// stringValue keeps strings verbatim: grouping keys compare exactly.
func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// UnmarshalJSON accepts any of the known field spellings.
func (r *ExpenseRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return fmt.Errorf("decode expense record: %w", err)
	}
	*r = DecodeRecord(m)
	return nil
}
