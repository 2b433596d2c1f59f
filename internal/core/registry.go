package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]Definition)
	registryMu sync.RWMutex
)

// Register adds a family definition to the registry.
// Panics if a family with the same key is already registered.
func Register(def Definition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Key]; exists {
		panic(fmt.Sprintf("family already registered: %s", def.Key))
	}

	// Populate table columns from field specs if not set
	if len(def.Table.Columns) == 0 {
		def.Table.Columns = persistedColumns(def)
	}

	registry[def.Key] = def
}

// persistedColumns lists the distinct columns a definition writes or reads,
// excluding id and created_at which every table carries.
func persistedColumns(def Definition) []string {
	var cols []string
	seen := map[string]bool{"id": true, "created_at": true}
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for _, f := range def.Fields {
		add(f.Column)
	}
	if def.Related != nil {
		add(def.Related.Column)
	}
	if def.Table.Lifecycle.Column != "" {
		add(def.Table.Lifecycle.Column)
	}
	return cols
}

// Get returns a family definition by key.
// Returns false if not found.
func Get(key string) (Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// Lookup returns a family definition or ErrUnknownFamily.
func Lookup(key string) (Definition, error) {
	def, ok := Get(key)
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownFamily, key)
	}
	return def, nil
}

// All returns all registered family definitions sorted by key.
func All() []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Definition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// Families returns listing info for every registered family.
func Families() []FamilyInfo {
	defs := All()
	out := make([]FamilyInfo, len(defs))
	for i, def := range defs {
		out[i] = FamilyInfo{
			Key:      def.Key,
			Label:    def.Label,
			Trash:    def.Trash,
			Template: def.TemplateHeaders(),
		}
	}
	return out
}

// FamilyCount returns the number of registered families.
func FamilyCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered families. Only for use in tests.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Definition)
}
