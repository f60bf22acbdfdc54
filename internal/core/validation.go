package core

// validation.go checks and converts single cells against their FieldSpec.
//
// Validation happens at two levels:
//  1. Header validation: Ensures required columns are present
//  2. Cell conversion: Turns each cell into its typed value (type, format, enum values)
//
// Empty cells become NULL values unless the field is required and does not
// allow empty values.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/rowstream/internal/csv"
	"github.com/JonMunkholm/rowstream/internal/decode"
)

var (
	// ErrRequiredEmpty is returned for an empty cell in a required field.
	ErrRequiredEmpty = errors.New("required field is empty")

	// ErrInvalidEnum is returned for a value outside a field's EnumValues.
	ErrInvalidEnum = errors.New("invalid enum value")
)

// ConvertCell cleans raw, applies the field's normalizer, and converts the
// result to the pgtype value for spec.Type.
func ConvertCell(raw string, spec FieldSpec) (any, error) {
	value := decode.CleanCell(raw)

	if value == "" && spec.Required && !spec.AllowEmpty {
		return nil, ErrRequiredEmpty
	}

	if spec.Normalizer != nil && value != "" {
		value = spec.Normalizer(value)
	}

	switch spec.Type {
	case FieldEnum:
		if value == "" {
			return pgtype.Text{}, nil
		}
		for _, ev := range spec.EnumValues {
			if strings.EqualFold(ev, value) {
				return pgtype.Text{String: ev, Valid: true}, nil
			}
		}
		return nil, fmt.Errorf("%w: must be one of %s", ErrInvalidEnum, strings.Join(spec.EnumValues, ", "))
	case FieldDate:
		return decode.ParseDate(value)
	case FieldNumeric:
		return decode.ParseNumeric(value)
	case FieldBool:
		return decode.ParseBool(value)
	case FieldInteger:
		return decode.ParseInt(value)
	case FieldUUID:
		return decode.ParseUUID(value)
	default:
		return decode.ParseText(value), nil
	}
}

// ValidateHeaders checks that all required columns exist in the CSV header.
// Returns a mapping from column name to index, or an error listing missing columns.
func ValidateHeaders(header csv.Row, specs []FieldSpec) (decode.HeaderIndex, error) {
	idx := decode.MakeHeaderIndex(header)
	var missing []string

	for _, spec := range specs {
		if !spec.Required {
			continue
		}
		if _, ok := idx.Lookup(spec.Name); !ok {
			missing = append(missing, spec.Name)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	return idx, nil
}
