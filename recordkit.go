// Package recordkit builds schema-driven record entry flows: declarative
// field constraints, validation, derived-value computation, section
// progress, and submission handling for operational record keeping.
package recordkit

import (
	"context"

	"github.com/innovationimperial/go-recordkit/pkg/derive"
	"github.com/innovationimperial/go-recordkit/pkg/record"
	"github.com/innovationimperial/go-recordkit/pkg/schema"
	"github.com/innovationimperial/go-recordkit/pkg/session"
	"github.com/innovationimperial/go-recordkit/pkg/submit"
	"github.com/innovationimperial/go-recordkit/pkg/validate"
)

// RecordSchema is the static declaration of one record type; alias exported
// via the root package for convenience.
type RecordSchema = schema.RecordSchema

// FieldDefinition describes a single schema field.
type FieldDefinition = schema.FieldDefinition

// ConstraintRule is a declarative validity rule attached to a field.
type ConstraintRule = schema.ConstraintRule

// DerivedRule computes a dependent value from raw inputs.
type DerivedRule = schema.DerivedRule

// Instance is one in-progress record keyed by schema.
type Instance = record.Instance

// Value is a derived computation result that may be unavailable.
type Value = record.Value

// FieldErrorMap maps field keys to their current validation messages.
type FieldErrorMap = validate.FieldErrorMap

// Receipt acknowledges a persisted submission.
type Receipt = submit.Receipt

// ValidationError reports the fields that blocked a submission.
type ValidationError = submit.ValidationError

// Persister stores a normalized record payload.
type Persister = submit.Persister

// PersisterFunc adapts a function to the Persister interface.
type PersisterFunc = submit.PersisterFunc

// Session owns one record instance through edit, validate, and submit.
type Session = session.Session

// NewSession opens an entry session for the given schema, seeding declared
// defaults and computing the initial derived values.
func NewSession(s schema.RecordSchema, options ...session.Option) (*session.Session, error) {
	return session.New(s, options...)
}

// NewEngine exposes the validation engine constructor from the top-level
// module for callers that validate without a session.
func NewEngine(options ...validate.Option) *validate.Engine {
	return validate.New(options...)
}

// NewCalculator returns a derived-field calculator backed by the builtin
// operation registry.
func NewCalculator(options ...derive.Option) *derive.Calculator {
	return derive.New(options...)
}

// Validate runs a full validation pass over an instance using a default
// engine. It is the simplest entry point for one-shot checks.
func Validate(s schema.RecordSchema, inst *record.Instance) validate.FieldErrorMap {
	return validate.New().Validate(s, inst)
}

// Submit validates, normalizes, and persists an instance in one call,
// constructing a coordinator around the supplied persister.
func Submit(ctx context.Context, s schema.RecordSchema, inst *record.Instance, persister submit.Persister, options ...submit.Option) (submit.Receipt, error) {
	opts := append([]submit.Option{submit.WithPersister(persister)}, options...)
	coordinator := submit.New(opts...)
	return coordinator.Submit(ctx, s, inst)
}
