package core

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/rowstream/internal/csv"
	"github.com/JonMunkholm/rowstream/internal/decode"
)

// Record is one decoded row of a registered table. Values holds pgtype
// values in the same order as Columns.
type Record struct {
	Columns []string
	Values  []any
}

// Map returns the record as column name to value.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, col := range r.Columns {
		m[col] = r.Values[i]
	}
	return m
}

// Get returns the value of the named column, ignoring case.
func (r Record) Get(column string) (any, bool) {
	for i, col := range r.Columns {
		if strings.EqualFold(col, column) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Project returns a record with only the named columns, in the order given.
// Unknown columns are skipped.
func (r Record) Project(columns []string) Record {
	out := Record{
		Columns: make([]string, 0, len(columns)),
		Values:  make([]any, 0, len(columns)),
	}
	for _, name := range columns {
		for i, col := range r.Columns {
			if strings.EqualFold(col, name) {
				out.Columns = append(out.Columns, col)
				out.Values = append(out.Values, r.Values[i])
				break
			}
		}
	}
	return out
}

// recordDecoder decodes rows into Records using a table's field specs.
type recordDecoder struct {
	def     TableDefinition
	columns []string

	mu        sync.Mutex
	header    csv.Row
	positions []int // -1 for an absent optional column
	missing   string
}

// NewRecordDecoder returns a RowDecoder for def.
//
// With a header, fields are located by name and every row must be as wide as
// the header; a missing required column fails every row with an arity error.
// Without a header, the row must have exactly one field per FieldSpec, in order.
func NewRecordDecoder(def TableDefinition) decode.RowDecoder[Record] {
	cols := make([]string, len(def.FieldSpecs))
	for i, spec := range def.FieldSpecs {
		cols[i] = spec.Name
	}
	return &recordDecoder{def: def, columns: cols}
}

func (d *recordDecoder) Decode(row csv.Row, header csv.Row) decode.Result[Record] {
	var positions []int
	if header == nil {
		if len(row) != len(d.def.FieldSpecs) {
			return decode.Failure[Record](decode.ArityError(len(d.def.FieldSpecs), len(row)))
		}
	} else {
		if len(row) != len(header) {
			return decode.Failure[Record](decode.ArityError(len(header), len(row)))
		}
		var missing string
		positions, missing = d.resolve(header)
		if missing != "" {
			return decode.Failure[Record](&decode.Error{
				Kind:   decode.KindArity,
				Field:  -1,
				Column: missing,
				Err:    decode.ErrMissingColumn,
			})
		}
	}

	values := make([]any, len(d.def.FieldSpecs))
	for i, spec := range d.def.FieldSpecs {
		pos := i
		if positions != nil {
			pos = positions[i]
		}
		raw := ""
		if pos >= 0 {
			raw = row[pos]
		}
		v, err := ConvertCell(raw, spec)
		if err != nil {
			return decode.Failure[Record](decode.ConversionError(pos, spec.Name, raw, spec.Type.String(), err))
		}
		values[i] = v
	}

	return decode.Success(Record{Columns: d.columns, Values: values})
}

// resolve maps field specs to header positions, caching the result for the
// most recent header.
func (d *recordDecoder) resolve(header csv.Row) ([]int, string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.header != nil && equalRows(header, d.header) {
		return d.positions, d.missing
	}

	idx := decode.MakeHeaderIndex(header)
	positions := make([]int, len(d.def.FieldSpecs))
	missing := ""
	for i, spec := range d.def.FieldSpecs {
		pos, ok := idx.Lookup(spec.Name)
		if !ok {
			if spec.Required {
				missing = spec.Name
				break
			}
			pos = -1
		}
		positions[i] = pos
	}
	d.header, d.positions, d.missing = header, positions, missing
	return positions, missing
}

func equalRows(a, b csv.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the record as an object whose keys keep column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FormatValue renders a record value for display. NULLs render as "".
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case pgtype.Text:
		if !val.Valid {
			return ""
		}
		return val.String
	case pgtype.Numeric:
		if !val.Valid {
			return ""
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return ""
		}
		return strconv.FormatFloat(f.Float64, 'f', -1, 64)
	case pgtype.Int8:
		if !val.Valid {
			return ""
		}
		return strconv.FormatInt(val.Int64, 10)
	case pgtype.Date:
		if !val.Valid {
			return ""
		}
		return val.Time.Format("2006-01-02")
	case pgtype.Bool:
		if !val.Valid {
			return ""
		}
		if val.Bool {
			return "Yes"
		}
		return "No"
	case pgtype.UUID:
		if !val.Valid {
			return ""
		}
		return uuid.UUID(val.Bytes).String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Strings returns the record's values formatted with FormatValue.
func (r Record) Strings() []string {
	out := make([]string, len(r.Values))
	for i, v := range r.Values {
		out[i] = FormatValue(v)
	}
	return out
}
