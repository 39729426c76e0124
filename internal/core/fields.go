package core

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical record field names.
const (
	FieldID            = "id"
	FieldUserID        = "userId"
	FieldIssueDate     = "issueDate"
	FieldAmountTotal   = "amountTotal"
	FieldQuantity      = "quantity"
	FieldUnitPrice     = "unitPrice"
	FieldUnit          = "unit"
	FieldCategory      = "category"
	FieldSubcategory   = "subcategory"
	FieldProvider      = "provider"
	FieldItemName      = "itemName"
	FieldInvoiceNumber = "invoiceNumber"
	FieldDocumentKey   = "documentKey"
)

// The same line item reaches us with GraphQL camelCase names, REST snake_case
// Spanish names and spreadsheet column labels. Keys are compared after
// foldFieldName, so "Fecha de emisión", "fecha_de_emisión" and
// "fechaDeEmision" are the same column. Earlier aliases take precedence over
// later ones when a record carries more than one.
var fieldAliases = map[string][]string{
	FieldID:            {"id", "_id", "itemId"},
	FieldUserID:        {"userId", "userSub", "usuario"},
	FieldIssueDate:     {"issueDate", "fecha_de_emisión", "fecha", "date"},
	FieldAmountTotal:   {"amountTotal", "totalPrice", "precio_total", "total", "amount", "importe"},
	FieldQuantity:      {"quantity", "cantidad_de_unidades", "cantidad"},
	FieldUnitPrice:     {"unitPrice", "precio_por_unidad", "precio_unitario"},
	FieldUnit:          {"unit", "unidad_de_medida", "unidad"},
	FieldCategory:      {"category", "categoría_del_gasto", "categoría"},
	FieldSubcategory:   {"subcategory", "subcategoría_del_gasto", "subcategoría"},
	FieldProvider:      {"provider", "vendor", "proveedor", "supplier"},
	FieldItemName:      {"itemName", "nombre_del_artículo_o_servicio", "artículo", "descripción", "description"},
	FieldInvoiceNumber: {"invoiceNumber", "número_de_factura"},
	FieldDocumentKey:   {"documentKey", "originalFile", "archivo"},
}

type alias struct {
	field string
	rank  int
}

var aliasIndex = buildAliasIndex()

func buildAliasIndex() map[string]alias {
	idx := make(map[string]alias)
	for canonical, aliases := range fieldAliases {
		for rank, a := range aliases {
			idx[foldFieldName(a)] = alias{field: canonical, rank: rank}
		}
	}
	return idx
}

// CanonicalField maps a source column or JSON key to its canonical field name.
func CanonicalField(name string) (string, bool) {
	a, ok := aliasIndex[foldFieldName(name)]
	return a.field, ok
}

// foldFieldName lowercases, strips accents and drops separators.
func foldFieldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '.':
			return -1
		}
		return unicode.ToLower(r)
	}, out)
}
