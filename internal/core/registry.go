package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownTable is returned when a table key is not registered.
var ErrUnknownTable = errors.New("unknown table")

var (
	registry   = make(map[string]TableDefinition)
	registryMu sync.RWMutex
)

// Register adds a table definition to the registry.
// Panics if a table with the same key is already registered or the
// definition is invalid.
func Register(def TableDefinition) {
	if err := def.Validate(); err != nil {
		panic(fmt.Sprintf("invalid table definition: %v", err))
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("table already registered: %s", def.Info.Key))
	}

	// Populate Columns from FieldSpecs if not set
	if len(def.Info.Columns) == 0 {
		def.Info.Columns = make([]string, len(def.FieldSpecs))
		for i, spec := range def.FieldSpecs {
			def.Info.Columns[i] = spec.Name
		}
	}
	if def.Info.Table == "" {
		def.Info.Table = def.Info.Key
	}

	registry[def.Info.Key] = def
}

// Validate checks that a definition can be decoded and stored.
func (t TableDefinition) Validate() error {
	if strings.TrimSpace(t.Info.Key) == "" {
		return errors.New("table key is empty")
	}
	if len(t.FieldSpecs) == 0 {
		return fmt.Errorf("table %s has no fields", t.Info.Key)
	}

	names := make(map[string]bool, len(t.FieldSpecs))
	cols := make(map[string]bool, len(t.FieldSpecs))
	for _, spec := range t.FieldSpecs {
		name := strings.ToLower(strings.TrimSpace(spec.Name))
		if name == "" {
			return fmt.Errorf("table %s has a field without a name", t.Info.Key)
		}
		if names[name] {
			return fmt.Errorf("table %s: duplicate field %q", t.Info.Key, spec.Name)
		}
		names[name] = true

		col := spec.Column()
		if col == "upload_id" || cols[col] {
			return fmt.Errorf("table %s: column %q is reserved or duplicated", t.Info.Key, col)
		}
		cols[col] = true

		if spec.Type == FieldEnum && len(spec.EnumValues) == 0 {
			return fmt.Errorf("table %s: enum field %q has no values", t.Info.Key, spec.Name)
		}
	}
	return nil
}

// Get returns a table definition by key.
// Returns false if not found.
func Get(key string) (TableDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// Lookup is like Get but returns an error wrapping ErrUnknownTable.
func Lookup(key string) (TableDefinition, error) {
	def, ok := Get(key)
	if !ok {
		return TableDefinition{}, fmt.Errorf("%w: %s", ErrUnknownTable, key)
	}
	return def, nil
}

// All returns all registered table definitions.
// Sorted by group then by key for consistent ordering.
func All() []TableDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]TableDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Info.Group != result[j].Info.Group {
			return result[i].Info.Group < result[j].Info.Group
		}
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// ByGroup returns all table definitions for a specific group.
// Sorted by key for consistent ordering.
func ByGroup(group string) []TableDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var result []TableDefinition
	for _, def := range registry {
		if def.Info.Group == group {
			result = append(result, def)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// Groups returns all unique group names.
// Sorted alphabetically.
func Groups() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]bool)
	for _, def := range registry {
		seen[def.Info.Group] = true
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}

	sort.Strings(groups)
	return groups
}

// TableCount returns the number of registered tables.
func TableCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered tables.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]TableDefinition)
}
