package core

// schema_yaml.go loads table definitions from YAML so new CSV layouts can be
// added without a rebuild:
//
//	tables:
//	  - key: fleet
//	    group: Demo
//	    label: Fleet
//	    fields:
//	      - name: VIN
//	        type: text
//	        required: true
//	        normalizer: upper
//	      - name: Status
//	        type: enum
//	        values: [active, retired]

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type schemaFile struct {
	Tables []schemaTable `yaml:"tables"`
}

type schemaTable struct {
	Key    string        `yaml:"key"`
	Group  string        `yaml:"group"`
	Label  string        `yaml:"label"`
	Table  string        `yaml:"table"`
	Fields []schemaField `yaml:"fields"`
}

type schemaField struct {
	Name       string   `yaml:"name"`
	Column     string   `yaml:"column"`
	Type       string   `yaml:"type"`
	Required   bool     `yaml:"required"`
	AllowEmpty bool     `yaml:"allow_empty"`
	Values     []string `yaml:"values"`
	Normalizer string   `yaml:"normalizer"`
}

// LoadTablesYAML parses table definitions from r. Definitions are validated
// but not registered.
func LoadTablesYAML(r io.Reader) ([]TableDefinition, error) {
	var file schemaFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse table schema: %w", err)
	}

	defs := make([]TableDefinition, 0, len(file.Tables))
	for i, t := range file.Tables {
		def, err := t.definition()
		if err != nil {
			return nil, fmt.Errorf("table schema entry %d: %w", i, err)
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("table schema entry %d: %w", i, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadTablesFile reads table definitions from the YAML file at path.
func LoadTablesFile(path string) ([]TableDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table schema: %w", err)
	}
	defer f.Close()
	return LoadTablesYAML(f)
}

func (t schemaTable) definition() (TableDefinition, error) {
	def := TableDefinition{
		Info: TableInfo{
			Key:   t.Key,
			Group: t.Group,
			Label: t.Label,
			Table: t.Table,
		},
		FieldSpecs: make([]FieldSpec, 0, len(t.Fields)),
	}
	if def.Info.Label == "" {
		def.Info.Label = t.Key
	}

	for _, f := range t.Fields {
		ft, err := ParseFieldType(f.Type)
		if err != nil {
			return TableDefinition{}, fmt.Errorf("field %q: %w", f.Name, err)
		}
		spec := FieldSpec{
			Name:       f.Name,
			DBColumn:   f.Column,
			Type:       ft,
			Required:   f.Required,
			AllowEmpty: f.AllowEmpty,
			EnumValues: f.Values,
		}
		if f.Normalizer != "" {
			fn, ok := NormalizerByName(f.Normalizer)
			if !ok {
				return TableDefinition{}, fmt.Errorf("field %q: unknown normalizer %q", f.Name, f.Normalizer)
			}
			spec.Normalizer = fn
		}
		def.FieldSpecs = append(def.FieldSpecs, spec)
	}
	return def, nil
}
