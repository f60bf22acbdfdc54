package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	normalizers = map[string]func(string) string{
		"trim":  strings.TrimSpace,
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
	}
	normalizersMu sync.RWMutex
)

// RegisterNormalizer makes fn available to table schema files under name.
// Panics if the name is already taken.
func RegisterNormalizer(name string, fn func(string) string) {
	normalizersMu.Lock()
	defer normalizersMu.Unlock()

	if _, exists := normalizers[name]; exists {
		panic(fmt.Sprintf("normalizer already registered: %s", name))
	}
	normalizers[name] = fn
}

// NormalizerByName returns the normalizer registered under name.
func NormalizerByName(name string) (func(string) string, bool) {
	normalizersMu.RLock()
	defer normalizersMu.RUnlock()

	fn, ok := normalizers[name]
	return fn, ok
}

// NormalizerNames returns the registered normalizer names, sorted.
func NormalizerNames() []string {
	normalizersMu.RLock()
	defer normalizersMu.RUnlock()

	names := make([]string, 0, len(normalizers))
	for name := range normalizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
