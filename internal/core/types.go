package core

import (
	"fmt"
	"strings"
	"time"
)

// FieldType represents the expected data type for a CSV field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
	FieldBool
	FieldInteger
	FieldUUID
)

var fieldTypeNames = map[FieldType]string{
	FieldText:    "text",
	FieldEnum:    "enum",
	FieldDate:    "date",
	FieldNumeric: "numeric",
	FieldBool:    "bool",
	FieldInteger: "integer",
	FieldUUID:    "uuid",
}

// String returns a human-readable name for a field type.
func (ft FieldType) String() string {
	if name, ok := fieldTypeNames[ft]; ok {
		return name
	}
	return "value"
}

// ParseFieldType is the inverse of FieldType.String.
func ParseFieldType(s string) (FieldType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FieldText, nil
	}
	for ft, name := range fieldTypeNames {
		if name == s {
			return ft, nil
		}
	}
	return FieldText, fmt.Errorf("unknown field type %q", s)
}

// SQLType returns the Postgres column type used to store values of ft.
func (ft FieldType) SQLType() string {
	switch ft {
	case FieldDate:
		return "DATE"
	case FieldNumeric:
		return "NUMERIC"
	case FieldBool:
		return "BOOLEAN"
	case FieldInteger:
		return "BIGINT"
	case FieldUUID:
		return "UUID"
	default:
		return "TEXT"
	}
}

// FieldSpec defines validation rules for a single CSV column.
type FieldSpec struct {
	Name       string              // Column header name (matched case-insensitively)
	DBColumn   string              // Database column name (if different from Name, otherwise derived)
	Type       FieldType           // Expected data type
	Required   bool                // Column must exist in CSV header
	AllowEmpty bool                // If true, empty values are allowed even when Required
	EnumValues []string            // Valid values for FieldEnum type
	Normalizer func(string) string // Optional transformation function
}

// Column returns the database column name for the field.
func (f FieldSpec) Column() string {
	if f.DBColumn != "" {
		return f.DBColumn
	}
	return toDBColumnName(f.Name)
}

// TableInfo contains display information about a table.
type TableInfo struct {
	Key     string   `json:"key"`     // Unique identifier: "anrok_transactions"
	Group   string   `json:"group"`   // Data source: "Anrok", "Demo"
	Label   string   `json:"label"`   // Display name: "Transactions"
	Table   string   `json:"table"`   // Database table; defaults to Key
	Columns []string `json:"columns"` // Header column names
}

// TableDefinition contains everything needed to decode and store a table.
type TableDefinition struct {
	Info       TableInfo
	FieldSpecs []FieldSpec
}

// TableName returns the database table the definition imports into.
func (t TableDefinition) TableName() string {
	if t.Info.Table != "" {
		return t.Info.Table
	}
	return t.Info.Key
}

// DBColumns returns the database column names in field order.
func (t TableDefinition) DBColumns() []string {
	cols := make([]string, len(t.FieldSpecs))
	for i, spec := range t.FieldSpecs {
		cols[i] = spec.Column()
	}
	return cols
}

// FailedRow describes a row position that did not produce a record.
type FailedRow struct {
	LineNumber int    `json:"line"`
	Kind       string `json:"kind"`
	Reason     string `json:"reason"`
	Code       string `json:"code"`
}

// ImportResult contains the final result of an import operation.
type ImportResult struct {
	ImportID   string        `json:"importId"`
	TableKey   string        `json:"tableKey"`
	FileName   string        `json:"fileName"`
	TotalRows  int           `json:"totalRows"`
	Inserted   int           `json:"inserted"`
	Skipped    int           `json:"skipped"`
	FailedRows []FailedRow   `json:"failedRows,omitempty"`
	BytesRead  int64         `json:"bytesRead"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"` // Non-empty if the import was aborted
}

// toDBColumnName converts a display column name to a database column name.
// "Transaction ID" -> "transaction_id"
// "account_name" -> "account_name" (no change if already snake_case)
func toDBColumnName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}
