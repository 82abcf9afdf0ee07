// Package derive recomputes a schema's dependent fields from the current raw
// inputs. Formulas are pure; a rule whose inputs are missing or invalid
// yields an explicit unavailable marker instead of a fabricated default.
package derive

import (
	"fmt"
	"time"

	"github.com/innovationimperial/go-recordkit/pkg/constraint"
	"github.com/innovationimperial/go-recordkit/pkg/record"
	"github.com/innovationimperial/go-recordkit/pkg/schema"
)

// Option customises the calculator configuration.
type Option func(*Calculator)

// WithRegistry injects a custom op registry.
func WithRegistry(registry *Registry) Option {
	return func(c *Calculator) {
		if registry != nil {
			c.registry = registry
		}
	}
}

// WithClock overrides the time source consulted by clock-reading ops. Tests
// pin it so recomputation stays reproducible.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

// Calculator evaluates a schema's derived rules against a record instance.
type Calculator struct {
	registry *Registry
	now      func() time.Time
}

// New constructs a Calculator backed by the built-in op registry.
func New(options ...Option) *Calculator {
	c := &Calculator{
		registry: DefaultRegistry(),
		now:      time.Now,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// Recompute evaluates every derived rule in dependency order and returns the
// fresh output map. The instance is only read; callers decide where the
// outputs land. The only error condition is a rule naming an unregistered
// op, which is a schema-authoring fault.
func (c *Calculator) Recompute(s schema.RecordSchema, inst *record.Instance) (map[string]record.Value, error) {
	outputs := make(map[string]record.Value, len(s.Derived))
	now := c.now()

	for _, rule := range s.Derived {
		op, err := c.registry.Get(rule.Op)
		if err != nil {
			return nil, fmt.Errorf("derive: schema %s output %q: %w", s.ID, rule.Output, err)
		}

		inputs := make([]record.Value, len(rule.Inputs))
		for i, key := range rule.Inputs {
			inputs[i] = c.resolveInput(s, inst, outputs, key)
		}

		outputs[rule.Output] = op(OpContext{
			Inputs: inputs,
			Params: rule.Params,
			Now:    now,
		})
	}
	return outputs, nil
}

// resolveInput types a rule input from either an earlier derived output or a
// raw field value. Raw values that fail to coerce to the field's declared
// type resolve as unavailable.
func (c *Calculator) resolveInput(s schema.RecordSchema, inst *record.Instance, outputs map[string]record.Value, key string) record.Value {
	if value, ok := outputs[key]; ok {
		return value
	}

	field, ok := s.Field(key)
	if !ok {
		return record.Unavailable()
	}
	raw, ok := inst.Value(key)
	if !ok || !constraint.Present(raw) {
		return record.Unavailable()
	}

	switch field.Type {
	case schema.FieldTypeNumber:
		num, ok := constraint.Number(raw)
		if !ok {
			return record.Unavailable()
		}
		return record.NumberValue(num)
	case schema.FieldTypeBoolean:
		flag, ok := constraint.Bool(raw)
		if !ok {
			return record.Unavailable()
		}
		return record.BoolValue(flag)
	default:
		return record.TextValue(constraint.Text(raw))
	}
}
