// Package constraint implements the reusable field validity primitives record
// schemas compose: required, range, oneOf, pattern, and crossField. Every
// check is a pure predicate over the candidate value (and, for crossField
// rules, a snapshot of the whole record); failures come back as structured
// violations, never panics.
package constraint

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/innovationimperial/go-recordkit/pkg/constraint/expr"
	"github.com/innovationimperial/go-recordkit/pkg/schema"
)

const dateLayout = "2006-01-02"

// Snapshot exposes the record state a crossField rule may read.
type Snapshot interface {
	// Value returns the raw value stored for a field key.
	Value(key string) (any, bool)
	// Invalid reports whether the key currently carries a validation error,
	// letting cross-field rules short-circuit on known-bad inputs.
	Invalid(key string) bool
}

// Violation is a single failed constraint. It implements error so callers can
// thread it through ordinary error returns, but it is a value describing user
// input, not a program fault.
type Violation struct {
	Field   string
	Kind    string
	Message string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("constraint: field %q: %s", v.Field, v.Message)
}

// Evaluate runs one constraint against a candidate value. A nil return means
// the constraint holds; otherwise the result is a *Violation carrying the
// user-facing message.
func Evaluate(field schema.FieldDefinition, rule schema.ConstraintRule, value any, rec Snapshot) *Violation {
	switch rule.Kind {
	case schema.ConstraintRequired:
		return evaluateRequired(field, rule, value)
	case schema.ConstraintRange:
		return evaluateRange(field, rule, value)
	case schema.ConstraintOneOf:
		return evaluateOneOf(field, rule, value)
	case schema.ConstraintPattern:
		return evaluatePattern(field, rule, value)
	case schema.ConstraintCrossField:
		return evaluateCrossField(field, rule, rec)
	default:
		return violation(field, rule, fmt.Sprintf("unknown constraint kind %q", rule.Kind))
	}
}

func evaluateRequired(field schema.FieldDefinition, rule schema.ConstraintRule, value any) *Violation {
	if Present(value) {
		return nil
	}
	return violation(field, rule, "{label} is required")
}

func evaluateRange(field schema.FieldDefinition, rule schema.ConstraintRule, value any) *Violation {
	if !Present(value) {
		// Emptiness is the required constraint's concern.
		return nil
	}
	num, ok := Number(value)
	if !ok {
		return violation(field, rule, "{label} must be a number")
	}

	if raw, has := rule.Params["min"]; has {
		min, _ := strconv.ParseFloat(raw, 64)
		if num < min {
			if _, hasMax := rule.Params["max"]; hasMax {
				return violation(field, rule, "{label} must be between {min} and {max}")
			}
			return violation(field, rule, "{label} must be at least {min}")
		}
	}
	if raw, has := rule.Params["max"]; has {
		max, _ := strconv.ParseFloat(raw, 64)
		if num > max {
			if _, hasMin := rule.Params["min"]; hasMin {
				return violation(field, rule, "{label} must be between {min} and {max}")
			}
			return violation(field, rule, "{label} must be at most {max}")
		}
	}
	return nil
}

func evaluateOneOf(field schema.FieldDefinition, rule schema.ConstraintRule, value any) *Violation {
	if !Present(value) {
		return nil
	}
	candidate := Text(value)
	for _, option := range splitList(rule.Params["values"]) {
		if candidate == option {
			return nil
		}
	}
	return violation(field, rule, "{label} must be one of: {values}")
}

func evaluatePattern(field schema.FieldDefinition, rule schema.ConstraintRule, value any) *Violation {
	if !Present(value) {
		return nil
	}
	text := Text(value)

	switch strings.TrimSpace(rule.Params["shape"]) {
	case "date":
		if _, err := time.Parse(dateLayout, text); err != nil {
			return violation(field, rule, "{label} must be a date in YYYY-MM-DD form")
		}
		return nil
	case "":
	default:
		return violation(field, rule, fmt.Sprintf("unknown pattern shape %q", rule.Params["shape"]))
	}

	re, err := regexp.Compile(rule.Params["pattern"])
	if err != nil {
		return violation(field, rule, "pattern is invalid")
	}
	if !re.MatchString(text) {
		return violation(field, rule, "{label} has an invalid format")
	}
	return nil
}

func evaluateCrossField(field schema.FieldDefinition, rule schema.ConstraintRule, rec Snapshot) *Violation {
	if rec == nil {
		return violation(field, rule, "record snapshot unavailable")
	}
	for _, dep := range schema.CrossFieldDependencies(rule) {
		if rec.Invalid(dep) {
			return violation(field, rule, fmt.Sprintf("cannot check %s until %s is valid", labelFor(field), dep))
		}
	}

	ok, err := expr.Eval(rule.Params["rule"], rec.Value)
	if err != nil {
		return violation(field, rule, "rule expression is invalid")
	}
	if ok {
		return nil
	}
	return violation(field, rule, "{label} conflicts with related fields")
}

func violation(field schema.FieldDefinition, rule schema.ConstraintRule, fallback string) *Violation {
	message := rule.Message
	if strings.TrimSpace(message) == "" {
		message = fallback
	}
	return &Violation{
		Field:   field.Key,
		Kind:    rule.Kind,
		Message: expandMessage(message, field, rule),
	}
}

func expandMessage(template string, field schema.FieldDefinition, rule schema.ConstraintRule) string {
	replacer := strings.NewReplacer(
		"{label}", labelFor(field),
		"{min}", rule.Params["min"],
		"{max}", rule.Params["max"],
		"{values}", strings.Join(splitList(rule.Params["values"]), ", "),
	)
	return replacer.Replace(template)
}

func labelFor(field schema.FieldDefinition) string {
	if strings.TrimSpace(field.Label) != "" {
		return field.Label
	}
	return field.Key
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
