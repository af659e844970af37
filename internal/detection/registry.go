package detection

import (
	"fmt"
	"sync"

	"github.com/mamamialezatoz/go-wpscan-plugins/internal/parser"
)

// SignalType is a category of document location scanned for plugin evidence
type SignalType struct {
	// Name is the key used for the signal in the ruleset (e.g., "Comment")
	Name string
	// DefaultXPath is used when a rule does not set its own xpath
	DefaultXPath string
}

// Registry maps signal type names to their default path expressions.
// Types are evaluated in registration order.
type Registry struct {
	mu    sync.RWMutex
	types []SignalType
	index map[string]int
}

// NewRegistry creates a registry holding the given types
func NewRegistry(types ...SignalType) (*Registry, error) {
	r := &Registry{index: make(map[string]int)}
	for _, st := range types {
		if err := r.Register(st); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry returns a registry with the built-in Comment and MetaTag types
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Comment, MetaTag)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds a signal type, or replaces the default path of an existing one
func (r *Registry) Register(st SignalType) error {
	if st.Name == "" {
		return fmt.Errorf("signal type has no name")
	}
	if err := parser.ValidateXPath(st.DefaultXPath); err != nil {
		return fmt.Errorf("signal type %s: %w", st.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[st.Name]; ok {
		r.types[i] = st
		return nil
	}
	r.index[st.Name] = len(r.types)
	r.types = append(r.types, st)
	return nil
}

// Lookup returns the signal type registered under name
func (r *Registry) Lookup(name string) (SignalType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return SignalType{}, false
	}
	return r.types[i], true
}

// Types returns the registered signal types in registration order
func (r *Registry) Types() []SignalType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]SignalType, len(r.types))
	copy(types, r.types)
	return types
}

// Builtin returns the signal types shipped with the package, by name
func Builtin(name string) (SignalType, bool) {
	for _, st := range []SignalType{Comment, MetaTag, ScriptTag} {
		if st.Name == name {
			return st, true
		}
	}
	return SignalType{}, false
}
