// Package submit owns the draft → validated → submitted lifecycle. The
// coordinator runs full-schema validation, hands validated records to the
// persistence collaborator, and surfaces the outcome through the notification
// collaborator. Persistence is the only suspending call and is serialized per
// record instance.
package submit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/innovationimperial/go-recordkit/pkg/derive"
	"github.com/innovationimperial/go-recordkit/pkg/record"
	"github.com/innovationimperial/go-recordkit/pkg/schema"
	"github.com/innovationimperial/go-recordkit/pkg/validate"
)

var (
	// ErrNoPersister is returned when the coordinator was built without a
	// persistence collaborator.
	ErrNoPersister = errors.New("submit: persister is required")
	// ErrSubmissionInFlight rejects a second submit while one is pending.
	ErrSubmissionInFlight = errors.New("submit: submission already in flight")
	// ErrAlreadySubmitted rejects submits on a terminal instance.
	ErrAlreadySubmitted = errors.New("submit: record already submitted")
)

// Persister is the external persistence collaborator. Any mock, REST call, or
// database write satisfies the contract; the coordinator treats it as an
// opaque asynchronous function.
type Persister interface {
	Persist(ctx context.Context, schemaID string, rec map[string]any) error
}

// PersisterFunc adapts a function to the Persister interface.
type PersisterFunc func(ctx context.Context, schemaID string, rec map[string]any) error

func (f PersisterFunc) Persist(ctx context.Context, schemaID string, rec map[string]any) error {
	return f(ctx, schemaID, rec)
}

// Kind classifies a user-facing notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is the payload handed to the notification collaborator.
type Notification struct {
	Title   string
	Message string
	Kind    Kind
}

// Notifier is the external notification collaborator. It is invoked on
// Submitted and SubmitFailed only; validation errors travel through the field
// error map instead.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// ValidationError reports a submit attempt blocked by invalid fields. The
// persistence collaborator is never invoked on this path.
type ValidationError struct {
	Fields validate.FieldErrorMap
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("submit: record has %d invalid field(s)", len(e.Fields))
}

// Receipt identifies a successful submission.
type Receipt struct {
	ID          string
	SchemaID    string
	RecordID    string
	SubmittedAt time.Time
}

// Option customises the coordinator configuration.
type Option func(*Coordinator)

// WithPersister injects the persistence collaborator.
func WithPersister(p Persister) Option {
	return func(c *Coordinator) { c.persister = p }
}

// WithNotifier injects the notification collaborator.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithEngine injects a custom validation engine.
func WithEngine(e *validate.Engine) Option {
	return func(c *Coordinator) {
		if e != nil {
			c.engine = e
		}
	}
}

// WithCalculator injects a custom derived-field calculator.
func WithCalculator(calc *derive.Calculator) Option {
	return func(c *Coordinator) {
		if calc != nil {
			c.calc = calc
		}
	}
}

// WithLogger attaches a structured logger. The default is a nop logger so
// library consumers opt in explicitly.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the submission timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// Coordinator drives the submission state machine for record instances.
type Coordinator struct {
	engine    *validate.Engine
	calc      *derive.Calculator
	persister Persister
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New constructs a Coordinator applying any provided options. A persister
// must be supplied before Submit is called; every other dependency has a
// working default.
func New(options ...Option) *Coordinator {
	c := &Coordinator{
		engine:   validate.New(),
		calc:     derive.New(),
		logger:   zap.NewNop(),
		now:      time.Now,
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// Submit validates the instance and, when it passes, hands the normalized
// record to the persistence collaborator. On validation failure the instance
// becomes Invalid and the field errors are returned; no collaborator call is
// made. On persistence failure the instance becomes SubmitFailed with every
// raw value retained, and retrying is the user's call. A submit while another
// is pending for the same instance returns ErrSubmissionInFlight.
func (c *Coordinator) Submit(ctx context.Context, s schema.RecordSchema, inst *record.Instance) (Receipt, error) {
	if ctx == nil {
		return Receipt{}, errors.New("submit: context is required")
	}
	if c.persister == nil {
		return Receipt{}, ErrNoPersister
	}
	if inst.State() == record.StateSubmitted {
		return Receipt{}, ErrAlreadySubmitted
	}

	if err := c.acquire(inst.ID()); err != nil {
		return Receipt{}, err
	}
	defer c.release(inst.ID())

	if err := inst.Transition(record.StateValidating); err != nil {
		return Receipt{}, err
	}

	if errs := c.engine.Validate(s, inst); len(errs) > 0 {
		inst.ReplaceErrors(errs)
		if err := inst.Transition(record.StateInvalid); err != nil {
			return Receipt{}, err
		}
		c.logger.Debug("submission blocked by validation",
			zap.String("schema", s.ID),
			zap.String("record", inst.ID()),
			zap.Strings("fields", errs.Keys()),
		)
		return Receipt{}, &ValidationError{Fields: errs}
	}
	inst.ReplaceErrors(nil)
	if err := inst.Transition(record.StateValid); err != nil {
		return Receipt{}, err
	}

	payload, err := c.buildPayload(s, inst)
	if err != nil {
		return Receipt{}, err
	}

	if err := inst.Transition(record.StateSubmitting); err != nil {
		return Receipt{}, err
	}

	if err := c.persister.Persist(ctx, s.ID, payload); err != nil {
		if terr := inst.Transition(record.StateSubmitFailed); terr != nil {
			return Receipt{}, terr
		}
		c.logger.Warn("submission rejected by persistence",
			zap.String("schema", s.ID),
			zap.String("record", inst.ID()),
			zap.Error(err),
		)
		c.notify(ctx, Notification{
			Title:   notificationTitle(s),
			Message: fmt.Sprintf("Could not save the record: %v", err),
			Kind:    KindError,
		})
		return Receipt{}, fmt.Errorf("submit: persist record: %w", err)
	}

	if err := inst.Transition(record.StateSubmitted); err != nil {
		return Receipt{}, err
	}
	receipt := Receipt{
		ID:          uuid.NewString(),
		SchemaID:    s.ID,
		RecordID:    inst.ID(),
		SubmittedAt: c.now(),
	}
	c.logger.Info("record submitted",
		zap.String("schema", s.ID),
		zap.String("record", inst.ID()),
		zap.String("receipt", receipt.ID),
	)
	c.notify(ctx, Notification{
		Title:   notificationTitle(s),
		Message: "Record saved.",
		Kind:    KindSuccess,
	})
	return receipt, nil
}

// buildPayload merges the normalized field values with the derived outputs
// that are currently available.
func (c *Coordinator) buildPayload(s schema.RecordSchema, inst *record.Instance) (map[string]any, error) {
	payload, err := c.engine.Normalize(s, inst)
	if err != nil {
		return nil, err
	}

	derived, err := c.calc.Recompute(s, inst)
	if err != nil {
		return nil, err
	}
	for key, value := range derived {
		if value.Available() {
			payload[key] = value.Interface()
		}
	}
	return payload, nil
}

func (c *Coordinator) acquire(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[id]; busy {
		return ErrSubmissionInFlight
	}
	c.inFlight[id] = struct{}{}
	return nil
}

func (c *Coordinator) release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, id)
}

func (c *Coordinator) notify(ctx context.Context, n Notification) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(ctx, n)
}

func notificationTitle(s schema.RecordSchema) string {
	if s.Title != "" {
		return s.Title
	}
	return s.ID
}
