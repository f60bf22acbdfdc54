package tables

import "github.com/JonMunkholm/rowstream/internal/core"

func registerNsCustomers() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "ns_customers",
			Group: "NS",
			Label: "Customers",
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "Internal ID", Type: core.FieldText, Required: true},
			{Name: "Salesforce ID (IO)", DBColumn: "salesforce_id_io", Type: core.FieldText, AllowEmpty: true},
			{Name: "Name", Type: core.FieldText, AllowEmpty: true},
			{Name: "Duplicate", Type: core.FieldBool, AllowEmpty: true},
			{Name: "Company Name", Type: core.FieldText, AllowEmpty: true},
			{Name: "Status", Type: core.FieldEnum, AllowEmpty: true, EnumValues: []string{"Active", "Inactive", "Prospect"}},
			{Name: "Balance", Type: core.FieldNumeric, AllowEmpty: true},
			{Name: "Unbilled Orders", Type: core.FieldNumeric, AllowEmpty: true},
			{Name: "Overdue Balance", Type: core.FieldNumeric, AllowEmpty: true},
			{Name: "Days Overdue", Type: core.FieldInteger, AllowEmpty: true},
		},
	})
}
