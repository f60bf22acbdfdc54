package tables

import (
	"strings"

	"github.com/JonMunkholm/rowstream/internal/core"
)

func registerAnrokTransactions() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "anrok_transactions",
			Group: "Anrok",
			Label: "Transactions",
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "Transaction ID", Type: core.FieldText, Required: true},
			{Name: "Customer ID", Type: core.FieldText, AllowEmpty: true},
			{Name: "Customer name", Type: core.FieldText, AllowEmpty: true},
			{Name: "Overall VAT ID validation status", DBColumn: "overall_vat_id_status", Type: core.FieldText, AllowEmpty: true},
			{Name: "Valid VAT IDs", Type: core.FieldText, AllowEmpty: true},
			{Name: "Other VAT IDs", Type: core.FieldText, AllowEmpty: true},
			{Name: "Invoice date", Type: core.FieldDate, AllowEmpty: true},
			{Name: "Tax date", Type: core.FieldDate, AllowEmpty: true},
			{Name: "Transaction currency", Type: core.FieldText, AllowEmpty: true, Normalizer: strings.ToUpper},
			{Name: "Sales amount", Type: core.FieldNumeric, AllowEmpty: true},
			{Name: "Exempt reasons", DBColumn: "exempt_reason", Type: core.FieldText, AllowEmpty: true},
			{Name: "Tax amount", Type: core.FieldNumeric, AllowEmpty: true},
			{Name: "Invoice amount", Type: core.FieldNumeric, AllowEmpty: true},
			{Name: "Void", Type: core.FieldBool, AllowEmpty: true},
			{Name: "Customer address line 1", Type: core.FieldText, AllowEmpty: true},
			{Name: "Customer address city", Type: core.FieldText, AllowEmpty: true},
			{Name: "Customer address region", Type: core.FieldText, AllowEmpty: true, Normalizer: NormalizeUsState},
			{Name: "Customer address postal code", Type: core.FieldText, AllowEmpty: true},
			{Name: "Customer address country", Type: core.FieldText, AllowEmpty: true},
			{Name: "Customer country code", Type: core.FieldText, AllowEmpty: true},
			{Name: "Jurisdictions", Type: core.FieldText, AllowEmpty: true},
			{Name: "Jurisdictions IDs", DBColumn: "jurisdiction_ids", Type: core.FieldText, AllowEmpty: true},
			{Name: "Return IDs", Type: core.FieldText, AllowEmpty: true},
		},
	})
}
