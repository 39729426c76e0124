package google

import (
	"fmt"
	"strings"

	"talky/internal/core"
)

// parseRecordRows maps a values matrix with a header row onto records.
// Header labels are resolved through the field alias table; unknown
// columns are ignored. When the sheet has a userId column only the rows of
// userID are returned, otherwise every row belongs to the sheet owner.
func parseRecordRows(values [][]interface{}, userID string) []core.ExpenseRecord {
	if len(values) == 0 {
		return []core.ExpenseRecord{}
	}
	columns := make([]string, len(values[0]))
	hasUser := false
	for i, h := range values[0] {
		field, ok := core.CanonicalField(fmt.Sprint(h))
		if !ok {
			continue
		}
		columns[i] = field
		if field == core.FieldUserID {
			hasUser = true
		}
	}

	out := make([]core.ExpenseRecord, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		row := values[i]
		if blankRow(row) {
			continue
		}
		m := make(map[string]any, len(columns))
		for j, cell := range row {
			if j >= len(columns) || columns[j] == "" {
				continue
			}
			m[columns[j]] = cell
		}
		r := core.DecodeRecord(m)
		if hasUser && r.UserID != userID {
			continue
		}
		r.UserID = userID
		if r.ID == "" {
			// Sheet rows are 1-based and the header is row 1.
			r.ID = fmt.Sprintf("row:%d", i+1)
		}
		out = append(out, r)
	}
	return out
}

func blankRow(row []interface{}) bool {
	for _, cell := range row {
		if strings.TrimSpace(fmt.Sprint(cell)) != "" {
			return false
		}
	}
	return true
}

// recordRow renders r in sheetColumns order.
func recordRow(r core.ExpenseRecord) []interface{} {
	amount := func(a core.Amount) interface{} {
		if d, ok := a.Value(); ok {
			return d.String()
		}
		return a.Raw()
	}
	return []interface{}{
		r.ID, r.UserID, r.IssueDate, r.ItemName, r.Category, r.Subcategory, r.Provider,
		amount(r.Quantity), r.Unit, amount(r.UnitPrice), amount(r.AmountTotal),
		r.InvoiceNumber, r.DocumentKey,
	}
}

// sheetColumns is the header written by SaveRecords when the sheet is empty.
var sheetColumns = []interface{}{
	"id", "userId", "Fecha de emisión", "Nombre del artículo o servicio",
	"Categoría del gasto", "Subcategoría del gasto", "Proveedor",
	"Cantidad de unidades", "Unidad de medida", "Precio por unidad", "Precio total",
	"invoiceNumber", "documentKey",
}
