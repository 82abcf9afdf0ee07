package record

import (
	"sort"

	"github.com/google/uuid"
)

// Instance tracks the raw values, field errors, derived outputs, and
// lifecycle state of one in-progress record. An instance belongs to exactly
// one form session; the validation, derivation, and progress packages read it
// and return fresh results without retaining a reference.
type Instance struct {
	id       string
	schemaID string
	state    State
	values   map[string]any
	errors   map[string]string
	derived  map[string]Value
}

// New creates a draft instance seeded with the schema's default values.
func New(schemaID string, defaults map[string]any) *Instance {
	return &Instance{
		id:       uuid.NewString(),
		schemaID: schemaID,
		state:    StateDraft,
		values:   cloneValues(defaults),
		errors:   make(map[string]string),
		derived:  make(map[string]Value),
	}
}

// ID returns the instance identifier assigned at mount time.
func (in *Instance) ID() string { return in.id }

// SchemaID returns the record type this instance was created for.
func (in *Instance) SchemaID() string { return in.schemaID }

// State returns the current lifecycle state.
func (in *Instance) State() State { return in.state }

// Transition moves the lifecycle forward, rejecting illegal moves.
func (in *Instance) Transition(target State) error {
	if !in.state.CanTransition(target) {
		return &TransitionError{From: in.state, To: target}
	}
	in.state = target
	return nil
}

// Value returns the raw value stored for a field key.
func (in *Instance) Value(key string) (any, bool) {
	v, ok := in.values[key]
	return v, ok
}

// SetValue stores a raw field value.
func (in *Instance) SetValue(key string, value any) {
	if in.values == nil {
		in.values = make(map[string]any)
	}
	in.values[key] = value
}

// ClearValue removes a raw field value.
func (in *Instance) ClearValue(key string) {
	delete(in.values, key)
}

// Values returns a deep copy of the raw value map.
func (in *Instance) Values() map[string]any {
	return cloneValues(in.values)
}

// ErrorFor returns the last recorded error for a field, if any.
func (in *Instance) ErrorFor(key string) (string, bool) {
	msg, ok := in.errors[key]
	return msg, ok
}

// SetError records a field error, replacing any previous message.
func (in *Instance) SetError(key, message string) {
	if in.errors == nil {
		in.errors = make(map[string]string)
	}
	in.errors[key] = message
}

// ClearError removes the error recorded for a field.
func (in *Instance) ClearError(key string) {
	delete(in.errors, key)
}

// ReplaceErrors swaps the whole error map, as after a full validation pass.
func (in *Instance) ReplaceErrors(errs map[string]string) {
	in.errors = make(map[string]string, len(errs))
	for key, msg := range errs {
		in.errors[key] = msg
	}
}

// Errors returns a copy of the current field error map.
func (in *Instance) Errors() map[string]string {
	out := make(map[string]string, len(in.errors))
	for key, msg := range in.errors {
		out[key] = msg
	}
	return out
}

// ErrorKeys returns the invalid field keys in sorted order.
func (in *Instance) ErrorKeys() []string {
	keys := make([]string, 0, len(in.errors))
	for key := range in.errors {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Derived returns the derived output recorded under a key.
func (in *Instance) Derived(key string) Value {
	return in.derived[key]
}

// ReplaceDerived swaps the derived output map after a recomputation pass.
func (in *Instance) ReplaceDerived(values map[string]Value) {
	in.derived = make(map[string]Value, len(values))
	for key, value := range values {
		in.derived[key] = value
	}
}

// DerivedValues returns a copy of the derived output map.
func (in *Instance) DerivedValues() map[string]Value {
	out := make(map[string]Value, len(in.derived))
	for key, value := range in.derived {
		out[key] = value
	}
	return out
}

func cloneValues(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopy(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for k, v := range typed {
			clone[k] = deepCopy(v)
		}
		return clone
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = deepCopy(v)
		}
		return clone
	default:
		return typed
	}
}
