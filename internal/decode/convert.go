package decode

// convert.go turns the messy text found in exported spreadsheets into typed
// values:
//   - Multiple date formats (US, EU, ISO, etc.) with 2-digit year pivoting
//   - Currency symbols, thousand separators and accounting negatives in numbers
//   - Various boolean spellings (yes/no, true/false, 1/0)
//   - Excel formula prefixes (="value")
//
// Every Parse* function returns a pgtype value with Valid=false for empty input
// and an error for input that is present but malformed.

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

var (
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidNumber  = errors.New("invalid number")
	ErrInvalidInteger = errors.New("invalid integer")
	ErrInvalidBool    = errors.New("invalid bool")
	ErrInvalidUUID    = errors.New("invalid uuid")
)

// numericRegex matches integers, decimals, and scientific notation after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are moved to
// the previous century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
)

// ParseText trims s. Blank input is NULL.
func ParseText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ParseTime parses s with the supported date layouts.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, nil
		}
	}

	return time.Time{}, ErrInvalidDate
}

// ParseDate converts s to pgtype.Date.
func ParseDate(s string) (pgtype.Date, error) {
	if strings.TrimSpace(s) == "" {
		return pgtype.Date{}, nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return pgtype.Date{}, err
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}

// cleanNumber strips currency symbols, thousands separators and the
// accounting "(123.45)" negative form.
func cleanNumber(s string) string {
	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "").Replace(s)
	s = strings.TrimSpace(s)

	if negative {
		s = "-" + s
	}
	return s
}

// ParseNumeric converts s to pgtype.Numeric.
func ParseNumeric(s string) (pgtype.Numeric, error) {
	if strings.TrimSpace(s) == "" {
		return pgtype.Numeric{}, nil
	}
	s = cleanNumber(s)
	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{}, ErrInvalidNumber
	}
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{}, ErrInvalidNumber
	}
	return n, nil
}

// ParseInt converts s to pgtype.Int8. Thousands separators are accepted.
func ParseInt(s string) (pgtype.Int8, error) {
	if strings.TrimSpace(s) == "" {
		return pgtype.Int8{}, nil
	}
	i, err := strconv.ParseInt(cleanNumber(s), 10, 64)
	if err != nil {
		return pgtype.Int8{}, ErrInvalidInteger
	}
	return pgtype.Int8{Int64: i, Valid: true}, nil
}

// ParseBool converts s to pgtype.Bool.
// Accepts true/false, yes/no, t/f, y/n, 1/0 in any case.
func ParseBool(s string) (pgtype.Bool, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "":
		return pgtype.Bool{}, nil
	case "true", "t", "yes", "y", "1":
		return pgtype.Bool{Bool: true, Valid: true}, nil
	case "false", "f", "no", "n", "0":
		return pgtype.Bool{Bool: false, Valid: true}, nil
	default:
		return pgtype.Bool{}, ErrInvalidBool
	}
}

// ParseUUID converts s to pgtype.UUID.
func ParseUUID(s string) (pgtype.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.UUID{}, nil
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, ErrInvalidUUID
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace and the Excel formula prefix (="..." or =...).
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		return s[2 : len(s)-1]
	}
	return strings.TrimPrefix(s, "=")
}
