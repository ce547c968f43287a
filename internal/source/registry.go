package source

import (
	"fmt"
	"sort"
	"sync"
)

// sourceRegistry holds registered source adapter factories
var (
	sourceMu  sync.RWMutex
	sourceMap = make(map[string]Factory)
)

// RegisterFactory registers a source adapter factory for a specific type.
// Panics if a factory with the same type is already registered.
func RegisterFactory(f Factory) {
	sourceMu.Lock()
	defer sourceMu.Unlock()

	if f.Type == "" {
		panic("source factory type cannot be empty")
	}
	if f.Adapter == nil {
		panic(fmt.Sprintf("source factory %q must have an adapter", f.Type))
	}

	if _, exists := sourceMap[f.Type]; exists {
		panic(fmt.Sprintf("source factory %q already registered", f.Type))
	}

	sourceMap[f.Type] = f
}

// GetFactory returns the factory for a source type, if registered.
func GetFactory(sourceType string) (Factory, bool) {
	sourceMu.RLock()
	defer sourceMu.RUnlock()

	f, ok := sourceMap[sourceType]
	return f, ok
}

// Resolve returns the adapter for a source type, falling back to the
// generic adapter when the type is unknown. Panics only when not even the
// generic adapter is registered, which means registration was skipped.
func Resolve(sourceType string) Adapter {
	sourceMu.RLock()
	defer sourceMu.RUnlock()

	if f, ok := sourceMap[sourceType]; ok {
		return f.Adapter
	}
	if f, ok := sourceMap[TypeGeneric]; ok {
		return f.Adapter
	}
	panic("no source adapters registered; call registration.RegisterBuiltins first")
}

// Types returns all registered source types sorted alphabetically.
func Types() []string {
	sourceMu.RLock()
	defer sourceMu.RUnlock()

	types := make([]string, 0, len(sourceMap))
	for t := range sourceMap {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ClearFactories removes all registered factories. Intended for tests.
func ClearFactories() {
	sourceMu.Lock()
	defer sourceMu.Unlock()

	sourceMap = make(map[string]Factory)
}
