package tables

import "github.com/JonMunkholm/rowstream/internal/core"

func registerVehicles() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "vehicles",
			Group: "Demo",
			Label: "Vehicles",
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "Year", Type: core.FieldInteger, Required: true},
			{Name: "Make", Type: core.FieldText, Required: true},
			{Name: "Model", Type: core.FieldText, AllowEmpty: true},
			{Name: "Description", Type: core.FieldText, AllowEmpty: true},
			{Name: "Price", Type: core.FieldNumeric, AllowEmpty: true},
		},
	})
}
