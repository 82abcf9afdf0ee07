package derive

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/innovationimperial/go-recordkit/pkg/record"
)

// OpContext carries the resolved inputs and declaration params for one rule
// evaluation. Now is only meaningful for clock-reading ops, which must be
// documented as time-dependent.
type OpContext struct {
	Inputs []record.Value
	Params map[string]string
	Now    time.Time
}

// Op computes a derived output from typed inputs. Ops are pure functions of
// their context; insufficient inputs yield record.Unavailable, never an error
// or a fabricated default.
type Op func(ctx OpContext) record.Value

// Registry stores derived-field ops by name, providing discovery and
// duplication safeguards.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]Op
}

// NewRegistry creates an empty registry instance.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Op)}
}

// Register adds an op under a name. Duplicate names return an error.
func (r *Registry) Register(name string, op Op) error {
	if name == "" {
		return fmt.Errorf("derive: op name is required")
	}
	if op == nil {
		return fmt.Errorf("derive: op %q is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ops[name]; exists {
		return fmt.Errorf("derive: op %q already registered", name)
	}
	r.ops[name] = op
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(name string, op Op) {
	if err := r.Register(name, op); err != nil {
		panic(err)
	}
}

// Get retrieves an op by name.
func (r *Registry) Get(name string) (Op, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, ok := r.ops[name]
	if !ok {
		return nil, fmt.Errorf("derive: op %q not found", name)
	}
	return op, nil
}

// Has reports whether an op is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.ops[name]
	return ok
}

// List returns a sorted list of registered op names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry preloaded with the built-in ops.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for name, op := range builtins() {
		r.MustRegister(name, op)
	}
	return r
}
