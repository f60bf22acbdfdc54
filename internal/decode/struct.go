package decode

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/rowstream/internal/csv"
)

// ErrMissingColumn is wrapped when a header lacks a column the target needs.
var ErrMissingColumn = errors.New("missing column")

var errEmpty = errors.New("empty value")

type setter func(v reflect.Value, raw string) error

type structField struct {
	index  []int
	name   string
	target string
	set    setter
}

// StructDecoder decodes rows into structs of type T.
//
// Fields are matched by the `csv:"Name"` tag, or the field name when untagged;
// `csv:"-"` skips a field. With a header, columns are matched by name
// (case-insensitive) and every row must be as wide as the header. Without one,
// fields are taken positionally in declaration order and the row must have
// exactly one field per struct field.
//
// Supported field types: string, signed and unsigned integers, floats, bool,
// time.Time, uuid.UUID, pgtype.Text, pgtype.Numeric, pgtype.Date, pgtype.Bool,
// pgtype.Int8, pgtype.UUID, and pointers to any of those (blank cells stay nil).
type StructDecoder[T any] struct {
	fields []structField

	mu        sync.Mutex
	header    csv.Row
	positions []int
	missing   string
}

// NewStructDecoder inspects T and returns a decoder for it.
func NewStructDecoder[T any]() (*StructDecoder[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("decode: %s is not a struct", typ)
	}

	d := &StructDecoder[T]{}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("csv"); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		set, err := setterFor(f.Type)
		if err != nil {
			return nil, fmt.Errorf("decode: field %s: %w", f.Name, err)
		}
		d.fields = append(d.fields, structField{
			index:  f.Index,
			name:   name,
			target: f.Type.String(),
			set:    set,
		})
	}
	if len(d.fields) == 0 {
		return nil, fmt.Errorf("decode: %s has no decodable fields", typ)
	}
	return d, nil
}

// MustStructDecoder is like NewStructDecoder but panics on error.
func MustStructDecoder[T any]() *StructDecoder[T] {
	d, err := NewStructDecoder[T]()
	if err != nil {
		panic(err)
	}
	return d
}

// Decode implements RowDecoder.
func (d *StructDecoder[T]) Decode(row csv.Row, header csv.Row) Result[T] {
	var out T
	v := reflect.ValueOf(&out).Elem()

	if header == nil {
		if len(row) != len(d.fields) {
			return Failure[T](ArityError(len(d.fields), len(row)))
		}
		for i, f := range d.fields {
			if err := f.set(v.FieldByIndex(f.index), row[i]); err != nil {
				return Failure[T](ConversionError(i, f.name, row[i], f.target, err))
			}
		}
		return Success(out)
	}

	if len(row) != len(header) {
		return Failure[T](ArityError(len(header), len(row)))
	}
	positions, missing := d.resolve(header)
	if missing != "" {
		return Failure[T](&Error{Kind: KindArity, Field: -1, Column: missing, Err: ErrMissingColumn})
	}
	for i, f := range d.fields {
		pos := positions[i]
		if err := f.set(v.FieldByIndex(f.index), row[pos]); err != nil {
			return Failure[T](ConversionError(pos, f.name, row[pos], f.target, err))
		}
	}
	return Success(out)
}

// resolve maps struct fields to header positions, caching the result for the
// most recent header.
func (d *StructDecoder[T]) resolve(header csv.Row) ([]int, string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.header != nil && sameRow(header, d.header) {
		return d.positions, d.missing
	}

	idx := MakeHeaderIndex(header)
	positions := make([]int, len(d.fields))
	missing := ""
	for i, f := range d.fields {
		pos, ok := idx.Lookup(f.name)
		if !ok {
			missing = f.name
			break
		}
		positions[i] = pos
	}
	d.header, d.positions, d.missing = header, positions, missing
	return positions, missing
}

func sameRow(a, b csv.Row) bool {
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

var (
	timeType   = reflect.TypeOf(time.Time{})
	uuidType   = reflect.TypeOf(uuid.UUID{})
	pgTextType = reflect.TypeOf(pgtype.Text{})
	pgNumType  = reflect.TypeOf(pgtype.Numeric{})
	pgDateType = reflect.TypeOf(pgtype.Date{})
	pgBoolType = reflect.TypeOf(pgtype.Bool{})
	pgInt8Type = reflect.TypeOf(pgtype.Int8{})
	pgUUIDType = reflect.TypeOf(pgtype.UUID{})
)

func setterFor(t reflect.Type) (setter, error) {
	if t.Kind() == reflect.Pointer {
		elem, err := setterFor(t.Elem())
		if err != nil {
			return nil, err
		}
		return func(v reflect.Value, raw string) error {
			if strings.TrimSpace(raw) == "" {
				v.SetZero()
				return nil
			}
			p := reflect.New(t.Elem())
			if err := elem(p.Elem(), raw); err != nil {
				return err
			}
			v.Set(p)
			return nil
		}, nil
	}

	switch t {
	case timeType:
		return func(v reflect.Value, raw string) error {
			if strings.TrimSpace(raw) == "" {
				return errEmpty
			}
			tm, err := ParseTime(raw)
			if err != nil {
				return err
			}
			v.Set(reflect.ValueOf(tm))
			return nil
		}, nil
	case uuidType:
		return func(v reflect.Value, raw string) error {
			id, err := uuid.Parse(strings.TrimSpace(raw))
			if err != nil {
				return ErrInvalidUUID
			}
			v.Set(reflect.ValueOf(id))
			return nil
		}, nil
	case pgTextType:
		return func(v reflect.Value, raw string) error {
			v.Set(reflect.ValueOf(ParseText(raw)))
			return nil
		}, nil
	case pgNumType:
		return pgSetter(ParseNumeric), nil
	case pgDateType:
		return pgSetter(ParseDate), nil
	case pgBoolType:
		return pgSetter(ParseBool), nil
	case pgInt8Type:
		return pgSetter(ParseInt), nil
	case pgUUIDType:
		return pgSetter(ParseUUID), nil
	}

	switch t.Kind() {
	case reflect.String:
		return func(v reflect.Value, raw string) error {
			v.SetString(raw)
			return nil
		}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		bits := t.Bits()
		return func(v reflect.Value, raw string) error {
			s := strings.TrimSpace(raw)
			if s == "" {
				return errEmpty
			}
			i, err := strconv.ParseInt(s, 10, bits)
			if err != nil {
				return ErrInvalidInteger
			}
			v.SetInt(i)
			return nil
		}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		bits := t.Bits()
		return func(v reflect.Value, raw string) error {
			s := strings.TrimSpace(raw)
			if s == "" {
				return errEmpty
			}
			u, err := strconv.ParseUint(s, 10, bits)
			if err != nil {
				return ErrInvalidInteger
			}
			v.SetUint(u)
			return nil
		}, nil
	case reflect.Float32, reflect.Float64:
		bits := t.Bits()
		return func(v reflect.Value, raw string) error {
			s := strings.TrimSpace(raw)
			if s == "" {
				return errEmpty
			}
			f, err := strconv.ParseFloat(cleanNumber(s), bits)
			if err != nil {
				return ErrInvalidNumber
			}
			v.SetFloat(f)
			return nil
		}, nil
	case reflect.Bool:
		return func(v reflect.Value, raw string) error {
			b, err := ParseBool(raw)
			if err != nil {
				return err
			}
			if !b.Valid {
				return errEmpty
			}
			v.SetBool(b.Bool)
			return nil
		}, nil
	}

	return nil, fmt.Errorf("unsupported type %s", t)
}

func pgSetter[P any](parse func(string) (P, error)) setter {
	return func(v reflect.Value, raw string) error {
		p, err := parse(raw)
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(p))
		return nil
	}
}
