package factory

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// ModuleConfig selects one pluggable module: the registered type name plus
// its raw, still-untyped settings block.
type ModuleConfig struct {
	Type string         `json:"type"`
	Conf map[string]any `json:"conf"`
}

// Factory builds a T from a raw settings block. Implementations decode the
// block with Decode and reject settings they cannot honor.
type Factory[T any] func(map[string]any) (T, error)

// Registry maps type names to factories. Safe for concurrent use; names are
// claimed once and never re-bound.
type Registry[T any] struct {
	mu       sync.RWMutex
	builders map[string]Factory[T]
}

// NewRegistry returns a registry with no types bound.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{builders: make(map[string]Factory[T])}
}

// Register claims name for f. A nil factory or an already-claimed name is
// an error so init-time double registration surfaces at boot.
func (r *Registry[T]) Register(name string, f Factory[T]) error {
	if f == nil {
		return fmt.Errorf("nil factory for type %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.builders[name]; taken {
		return fmt.Errorf("type %q already registered", name)
	}
	r.builders[name] = f
	return nil
}

// Known returns the registered type names, sorted.
func (r *Registry[T]) Known() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create instantiates the module cfg selects. Unknown types name the
// registered alternatives so configuration typos are quick to spot.
func (r *Registry[T]) Create(cfg ModuleConfig) (T, error) {
	r.mu.RLock()
	f, ok := r.builders[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown module type %q (registered: %s)",
			cfg.Type, strings.Join(r.Known(), ", "))
	}
	return f(cfg.Conf)
}

// Decode maps a raw settings block onto out, matching keys by json tag, the
// same tag convention the config loader uses.
func Decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: out})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}
