package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/rowstream/internal/csv"
	"github.com/JonMunkholm/rowstream/internal/decode"
)

func TestConvertCell(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		spec    FieldSpec
		want    any
		wantErr error
	}{
		{name: "text trimmed", raw: "  Ford ", spec: FieldSpec{Type: FieldText}, want: text("Ford")},
		{name: "excel formula prefix", raw: `="00123"`, spec: FieldSpec{Type: FieldText}, want: text("00123")},
		{name: "empty optional text is null", raw: "", spec: FieldSpec{Type: FieldText}, want: pgtype.Text{}},
		{name: "required empty", raw: " ", spec: FieldSpec{Type: FieldText, Required: true}, wantErr: ErrRequiredEmpty},
		{name: "required allow empty", raw: "", spec: FieldSpec{Type: FieldText, Required: true, AllowEmpty: true}, want: pgtype.Text{}},
		{name: "normalizer applied", raw: "abc", spec: FieldSpec{Type: FieldText, Normalizer: strings.ToUpper}, want: text("ABC")},
		{name: "enum canonical", raw: "ACTIVE", spec: FieldSpec{Type: FieldEnum, EnumValues: []string{"Active", "Closed"}}, want: text("Active")},
		{name: "enum empty", raw: "", spec: FieldSpec{Type: FieldEnum, EnumValues: []string{"Active"}}, want: pgtype.Text{}},
		{name: "enum invalid", raw: "Pending", spec: FieldSpec{Type: FieldEnum, EnumValues: []string{"Active"}}, wantErr: ErrInvalidEnum},
		{name: "integer", raw: "1,997", spec: FieldSpec{Type: FieldInteger}, want: pgtype.Int8{Int64: 1997, Valid: true}},
		{name: "integer invalid", raw: "1.5", spec: FieldSpec{Type: FieldInteger}, wantErr: decode.ErrInvalidInteger},
		{name: "bool", raw: "yes", spec: FieldSpec{Type: FieldBool}, want: pgtype.Bool{Bool: true, Valid: true}},
		{name: "bool invalid", raw: "sometimes", spec: FieldSpec{Type: FieldBool}, wantErr: decode.ErrInvalidBool},
		{name: "date invalid", raw: "tomorrow", spec: FieldSpec{Type: FieldDate}, wantErr: decode.ErrInvalidDate},
		{name: "numeric invalid", raw: "12abc", spec: FieldSpec{Type: FieldNumeric}, wantErr: decode.ErrInvalidNumber},
		{name: "uuid invalid", raw: "not-a-uuid", spec: FieldSpec{Type: FieldUUID}, wantErr: decode.ErrInvalidUUID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertCell(tt.raw, tt.spec)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ConvertCell(%q) error = %v, want %v", tt.raw, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ConvertCell(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ConvertCell(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestConvertCell_Date(t *testing.T) {
	got, err := ConvertCell("1/15/2024", FieldSpec{Type: FieldDate})
	if err != nil {
		t.Fatalf("ConvertCell: %v", err)
	}
	d, ok := got.(pgtype.Date)
	if !ok || !d.Valid || d.Time.Year() != 2024 || d.Time.Month() != 1 || d.Time.Day() != 15 {
		t.Errorf("ConvertCell date = %#v", got)
	}
}

func TestValidateHeaders(t *testing.T) {
	specs := vehiclesDef().FieldSpecs

	idx, err := ValidateHeaders(csv.Row{" year ", "MAKE", "Price"}, specs)
	if err != nil {
		t.Fatalf("ValidateHeaders: %v", err)
	}
	if pos, ok := idx.Lookup("Make"); !ok || pos != 1 {
		t.Errorf("Lookup(Make) = %d, %v; want 1, true", pos, ok)
	}

	_, err = ValidateHeaders(csv.Row{"Model"}, specs)
	if err == nil {
		t.Fatal("ValidateHeaders accepted a header without required columns")
	}
	if !strings.Contains(err.Error(), "Year, Make") {
		t.Errorf("error = %q, want both missing columns listed", err)
	}
}
