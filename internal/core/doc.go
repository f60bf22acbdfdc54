// Package core provides the table-driven side of CSV decoding.
//
// It can be used by web handlers, CLI tools, or tests without modification.
//
// # Table Registry
//
// Tables are registered at init time using [Register], or loaded from YAML
// with [LoadTablesFile]. Each [TableDefinition] lists the field specs a CSV
// layout must satisfy:
//
//	core.Register(core.TableDefinition{
//	    Info: core.TableInfo{Key: "vehicles", Group: "Demo", Label: "Vehicles"},
//	    FieldSpecs: []core.FieldSpec{
//	        {Name: "Year", Required: true, Type: core.FieldInteger},
//	        {Name: "Price", Type: core.FieldNumeric, AllowEmpty: true},
//	    },
//	})
//
// # Decoding
//
// [NewRecordDecoder] turns a definition into a decode.RowDecoder producing
// [Record] values. [Service.Open] wires that decoder to a stream.Reader over
// a transcoded, BOM-stripped source so callers can pull records lazily.
//
// # Importing
//
// [Service.Import] copies every successfully decoded record into a [Sink]
// in batches of [Options.BatchSize] inside a single transaction. Rows that
// fail to decode are reported in [ImportResult.FailedRows] and skipped. The
// number of concurrent imports is bounded by an [ImportLimiter].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DEC001-DEC010: Row decoding errors (quoting, arity, conversions)
//   - SRC001-SRC003: Source errors (encoding, reads, closed streams)
//   - UPL001-UPL005: Import errors (limits, cancellation, size)
//   - TBL001: Unknown table
//   - DB001-DB007: Database errors (duplicates, constraints, connections)
package core
