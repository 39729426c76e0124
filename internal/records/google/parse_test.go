package google

import (
	"testing"

	"github.com/shopspring/decimal"

	"talky/internal/core"
)

func TestParseRecordRows_SpreadsheetLabels(t *testing.T) {
	values := [][]interface{}{
		{"Fecha de emisión", "Nombre del artículo o servicio", "Categoría del gasto", "Proveedor", "Precio total", "Notas"},
		{"15/01/2024", "Tomates", "Food", "A", "10,00 €", "x"},
		{"", "", "", "", ""},
		{"2024-02-01", "Limpieza", "Services", "B", 20.0},
		{"2024-02-03", "Pan", "Food", "A", "N/A"},
	}
	got := parseRecordRows(values, "u1")
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(got), got)
	}
	first := got[0]
	if first.ID != "row:2" || first.UserID != "u1" || first.IssueDate != "15/01/2024" || first.ItemName != "Tomates" {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if first.AmountTotal.String() != "10.00" {
		t.Fatalf("amount: got %s", first.AmountTotal)
	}
	if got[1].ID != "row:4" || got[1].AmountTotal.String() != "20.00" {
		t.Fatalf("unexpected second record: %+v", got[1])
	}
	if got[2].AmountTotal.Valid() || got[2].AmountTotal.Raw() != "N/A" {
		t.Fatalf("malformed amount should be kept raw: %+v", got[2].AmountTotal)
	}
}

func TestParseRecordRows_FiltersByUserColumn(t *testing.T) {
	values := [][]interface{}{
		{"id", "userId", "issueDate", "totalPrice", "vendor"},
		{"a", "u1", "2024-01-01", "1.00", "A"},
		{"b", "u2", "2024-01-01", "2.00", "B"},
		{"c", "", "2024-01-01", "3.00", "C"},
	}
	got := parseRecordRows(values, "u1")
	if len(got) != 1 || got[0].ID != "a" || got[0].Provider != "A" {
		t.Fatalf("unexpected rows for u1: %+v", got)
	}
}

func TestParseRecordRows_Empty(t *testing.T) {
	if got := parseRecordRows(nil, "u1"); len(got) != 0 {
		t.Fatalf("expected no records, got %+v", got)
	}
	if got := parseRecordRows([][]interface{}{{"Proveedor"}}, "u1"); len(got) != 0 {
		t.Fatalf("header only should give no records, got %+v", got)
	}
}

func TestRecordRowRoundTrip(t *testing.T) {
	r := core.ExpenseRecord{
		ID: "x", UserID: "u1", IssueDate: "2024-01-15", ItemName: "Tomates",
		Category: "Food", Subcategory: "Produce", Provider: "A",
		Quantity: core.MustAmount("2"), Unit: "kg", UnitPrice: core.MustAmount("5"),
		AmountTotal: core.MustAmount("10"),
	}
	got := parseRecordRows([][]interface{}{sheetColumns, recordRow(r)}, "u1")
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	back := got[0]
	if back.ID != "x" || back.Category != "Food" || back.Unit != "kg" || back.AmountTotal.String() != "10.00" || back.Quantity.String() != "2.00" {
		t.Fatalf("unexpected record: %+v", back)
	}
}

func TestRecordRowKeepsPrecision(t *testing.T) {
	r := core.ExpenseRecord{
		ID: "y", IssueDate: "2024-01-05", Provider: "A",
		Quantity: core.MustAmount("0.125"), Unit: "kg", UnitPrice: core.MustAmount("12.345"),
		AmountTotal: core.MustAmount("1.54"),
	}
	row := recordRow(r)
	if row[7] != "0.125" || row[9] != "12.345" || row[10] != "1.54" {
		t.Fatalf("unexpected amount cells: %v %v %v", row[7], row[9], row[10])
	}
	got := parseRecordRows([][]interface{}{sheetColumns, row}, "u1")
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	q, _ := got[0].Quantity.Value()
	if !q.Equal(decimal.RequireFromString("0.125")) || got[0].IssueDate != "2024-01-05" {
		t.Fatalf("unexpected record: %+v", got[0])
	}
}
