// Package validate evaluates record instances against their schemas,
// producing per-field error maps for interactive feedback and normalized,
// typed records for submission.
package validate

import (
	"sort"

	"github.com/microcosm-cc/bluemonday"

	"github.com/innovationimperial/go-recordkit/pkg/constraint"
	"github.com/innovationimperial/go-recordkit/pkg/record"
	"github.com/innovationimperial/go-recordkit/pkg/schema"
)

// FieldErrorMap collects at most one error message per invalid field, keyed
// by field key. An empty map means the record passed validation.
type FieldErrorMap map[string]string

// Keys returns the invalid field keys in sorted order.
func (m FieldErrorMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Option customises the engine configuration.
type Option func(*Engine)

// WithSanitizer overrides the HTML sanitizer applied to free-text values
// during normalization.
func WithSanitizer(policy *bluemonday.Policy) Option {
	return func(e *Engine) {
		if policy != nil {
			e.sanitizer = policy
		}
	}
}

// Engine validates record instances. It keeps no per-record state; every call
// is a fresh read of the instance passed in, so re-running on each keystroke
// is safe and idempotent.
type Engine struct {
	sanitizer *bluemonday.Policy
}

// New constructs an Engine. Free text is stripped of markup with bluemonday's
// strict policy unless WithSanitizer overrides it.
func New(options ...Option) *Engine {
	e := &Engine{sanitizer: bluemonday.StrictPolicy()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(e)
	}
	return e
}

// Validate runs the full schema against an instance and returns the field
// errors. Fields are checked in schema order and each field stops at its
// first failing constraint. Cross-field rules run in a second pass so they
// never fire against inputs that already failed their own constraints.
func (e *Engine) Validate(s schema.RecordSchema, inst *record.Instance) FieldErrorMap {
	errs := make(FieldErrorMap)

	for _, field := range s.Fields {
		value, _ := inst.Value(field.Key)
		if violation := evaluateOwn(field, value); violation != nil {
			errs[field.Key] = violation.Message
		}
	}

	snap := &snapshot{inst: inst, errs: errs}
	for _, field := range s.Fields {
		if _, invalid := errs[field.Key]; invalid {
			continue
		}
		for _, rule := range field.Constraints {
			if rule.Kind != schema.ConstraintCrossField {
				continue
			}
			if violation := constraint.Evaluate(field, rule, nil, snap); violation != nil {
				errs[field.Key] = violation.Message
				break
			}
		}
	}

	return errs
}

// ValidateField checks a single field, for per-blur feedback. Cross-field
// rules consult the errors already recorded on the instance, so a dependency
// the user has not fixed yet short-circuits the check.
func (e *Engine) ValidateField(s schema.RecordSchema, inst *record.Instance, key string) (string, bool) {
	field, ok := s.Field(key)
	if !ok {
		return "", true
	}

	value, _ := inst.Value(key)
	if violation := evaluateOwn(field, value); violation != nil {
		return violation.Message, false
	}

	snap := &snapshot{inst: inst, errs: nil, skip: key}
	for _, rule := range field.Constraints {
		if rule.Kind != schema.ConstraintCrossField {
			continue
		}
		if violation := constraint.Evaluate(field, rule, nil, snap); violation != nil {
			return violation.Message, false
		}
	}
	return "", true
}

// evaluateOwn runs a field's non-cross constraints in declaration order,
// prepending the implicit required check when the definition demands one.
func evaluateOwn(field schema.FieldDefinition, value any) *constraint.Violation {
	if field.Required {
		rule := schema.ConstraintRule{Kind: schema.ConstraintRequired}
		if violation := constraint.Evaluate(field, rule, value, nil); violation != nil {
			return violation
		}
	}
	for _, rule := range field.Constraints {
		if rule.Kind == schema.ConstraintCrossField {
			continue
		}
		if violation := constraint.Evaluate(field, rule, value, nil); violation != nil {
			return violation
		}
	}
	return typeViolation(field, value)
}

// typeViolation enforces the field's declared value type even when no
// explicit constraint covers it, so normalization cannot fail later.
func typeViolation(field schema.FieldDefinition, value any) *constraint.Violation {
	if !constraint.Present(value) {
		return nil
	}
	switch field.Type {
	case schema.FieldTypeNumber:
		if _, ok := constraint.Number(value); !ok {
			return &constraint.Violation{
				Field:   field.Key,
				Kind:    "type",
				Message: labelOf(field) + " must be a number",
			}
		}
	case schema.FieldTypeBoolean:
		if _, ok := constraint.Bool(value); !ok {
			return &constraint.Violation{
				Field:   field.Key,
				Kind:    "type",
				Message: labelOf(field) + " must be yes or no",
			}
		}
	case schema.FieldTypeEnum:
		candidate := constraint.Text(value)
		for _, option := range field.Options {
			if candidate == option {
				return nil
			}
		}
		return &constraint.Violation{
			Field:   field.Key,
			Kind:    "type",
			Message: labelOf(field) + " is not a valid choice",
		}
	}
	return nil
}

func labelOf(field schema.FieldDefinition) string {
	if field.Label != "" {
		return field.Label
	}
	return field.Key
}

// snapshot adapts an instance plus an in-progress error set to the
// constraint.Snapshot contract.
type snapshot struct {
	inst *record.Instance
	errs FieldErrorMap
	skip string
}

func (s *snapshot) Value(key string) (any, bool) {
	return s.inst.Value(key)
}

func (s *snapshot) Invalid(key string) bool {
	if key == s.skip {
		return false
	}
	if s.errs != nil {
		_, invalid := s.errs[key]
		return invalid
	}
	_, invalid := s.inst.ErrorFor(key)
	return invalid
}
