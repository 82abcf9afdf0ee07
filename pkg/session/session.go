// Package session owns the in-memory life of one form: a single record
// instance seeded from schema defaults, edited field by field, and eventually
// submitted. Each session exclusively owns its instance; validation,
// derivation, and progress run as fresh reads on every change.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/innovationimperial/go-recordkit/pkg/derive"
	"github.com/innovationimperial/go-recordkit/pkg/progress"
	"github.com/innovationimperial/go-recordkit/pkg/record"
	"github.com/innovationimperial/go-recordkit/pkg/schema"
	"github.com/innovationimperial/go-recordkit/pkg/submit"
	"github.com/innovationimperial/go-recordkit/pkg/validate"
)

// Option customises the session configuration.
type Option func(*Session)

// WithEngine injects a custom validation engine.
func WithEngine(e *validate.Engine) Option {
	return func(s *Session) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithCalculator injects a custom derived-field calculator.
func WithCalculator(calc *derive.Calculator) Option {
	return func(s *Session) {
		if calc != nil {
			s.calc = calc
		}
	}
}

// WithPersister sets the persistence collaborator used on submit.
func WithPersister(p submit.Persister) Option {
	return func(s *Session) { s.persister = p }
}

// WithNotifier sets the notification collaborator used on submit outcomes.
func WithNotifier(n submit.Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithLogger attaches a structured logger to the submission coordinator.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithClock pins the time source for timestamps and clock-reading derived
// rules.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session is the single logical owner of one record instance.
type Session struct {
	schema    schema.RecordSchema
	inst      *record.Instance
	engine    *validate.Engine
	calc      *derive.Calculator
	coord     *submit.Coordinator
	persister submit.Persister
	notifier  submit.Notifier
	logger    *zap.Logger
	now       func() time.Time
}

// New mounts a form session for a compiled schema: the instance is created in
// Draft, seeded with the schema defaults, and the derived outputs are
// computed once so the display model starts consistent.
func New(s schema.RecordSchema, options ...Option) (*Session, error) {
	if s.ID == "" {
		return nil, errors.New("session: schema is required")
	}

	sess := &Session{
		schema: s,
		engine: validate.New(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(sess)
	}
	if sess.calc == nil {
		if sess.now != nil {
			sess.calc = derive.New(derive.WithClock(sess.now))
		} else {
			sess.calc = derive.New()
		}
	}

	coordOptions := []submit.Option{
		submit.WithEngine(sess.engine),
		submit.WithCalculator(sess.calc),
	}
	if sess.persister != nil {
		coordOptions = append(coordOptions, submit.WithPersister(sess.persister))
	}
	if sess.notifier != nil {
		coordOptions = append(coordOptions, submit.WithNotifier(sess.notifier))
	}
	if sess.logger != nil {
		coordOptions = append(coordOptions, submit.WithLogger(sess.logger))
	}
	if sess.now != nil {
		coordOptions = append(coordOptions, submit.WithClock(sess.now))
	}
	sess.coord = submit.New(coordOptions...)

	sess.inst = record.New(s.ID, s.Defaults())
	if err := sess.recompute(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Schema returns the schema the session was mounted with.
func (s *Session) Schema() schema.RecordSchema { return s.schema }

// Instance exposes the owned record instance.
func (s *Session) Instance() *record.Instance { return s.inst }

// SetField stores a raw value, re-validates that field, and eagerly
// recomputes the derived outputs. Edits pull a non-terminal lifecycle back to
// Draft so the next submit starts clean.
func (s *Session) SetField(key string, value any) error {
	if _, ok := s.schema.Field(key); !ok {
		return fmt.Errorf("session: schema %s has no field %q", s.schema.ID, key)
	}
	if s.inst.State() == record.StateSubmitted {
		return submit.ErrAlreadySubmitted
	}

	s.inst.SetValue(key, value)
	if message, ok := s.engine.ValidateField(s.schema, s.inst, key); !ok {
		s.inst.SetError(key, message)
	} else {
		s.inst.ClearError(key)
	}

	switch s.inst.State() {
	case record.StateValid, record.StateInvalid, record.StateSubmitFailed:
		if err := s.inst.Transition(record.StateDraft); err != nil {
			return err
		}
	}
	return s.recompute()
}

// Touch re-validates a single field without changing its value, as on blur.
func (s *Session) Touch(key string) {
	if message, ok := s.engine.ValidateField(s.schema, s.inst, key); !ok {
		s.inst.SetError(key, message)
	} else {
		s.inst.ClearError(key)
	}
}

// Value returns the raw value currently stored for a field.
func (s *Session) Value(key string) (any, bool) {
	return s.inst.Value(key)
}

// Errors returns a copy of the current field error map.
func (s *Session) Errors() map[string]string {
	return s.inst.Errors()
}

// Derived returns the derived output recorded under a key.
func (s *Session) Derived(key string) record.Value {
	return s.inst.Derived(key)
}

// Progress reports per-section completion for the current state.
func (s *Session) Progress() []progress.SectionProgress {
	return progress.Track(s.schema, s.inst)
}

// Overall reports the overall completion ratio in [0, 1].
func (s *Session) Overall() float64 {
	return progress.Overall(s.Progress())
}

// Submit runs the full submission lifecycle through the coordinator.
func (s *Session) Submit(ctx context.Context) (submit.Receipt, error) {
	return s.coord.Submit(ctx, s.schema, s.inst)
}

func (s *Session) recompute() error {
	outputs, err := s.calc.Recompute(s.schema, s.inst)
	if err != nil {
		return err
	}
	s.inst.ReplaceDerived(outputs)
	return nil
}
