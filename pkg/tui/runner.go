package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/innovationimperial/go-recordkit/pkg/constraint"
	"github.com/innovationimperial/go-recordkit/pkg/schema"
	"github.com/innovationimperial/go-recordkit/pkg/session"
)

const maxFieldAttempts = 5

// ErrTooManyAttempts is returned when a field stays invalid after repeated
// prompts.
var ErrTooManyAttempts = errors.New("tui: too many invalid attempts")

// Runner walks a record session section by section, prompting for each field
// and surfacing validation errors and derived values as they change.
type Runner struct {
	driver PromptDriver
}

// RunnerOption configures the entry runner.
type RunnerOption func(*Runner)

// WithPromptDriver overrides the prompt driver used by the runner.
func WithPromptDriver(driver PromptDriver) RunnerOption {
	return func(r *Runner) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// NewRunner constructs a runner with defaults (survey driver).
func NewRunner(options ...RunnerOption) *Runner {
	r := &Runner{driver: newSurveyDriver()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

// Run prompts for every field of the session's schema in section order, shows
// the derived readouts, and submits once the user confirms. The session's
// coordinator handles validation gating and persistence.
func (r *Runner) Run(ctx context.Context, sess *session.Session) error {
	if ctx == nil {
		return errors.New("tui: context is required")
	}

	s := sess.Schema()
	if err := r.driver.Info(ctx, fmt.Sprintf("== %s ==", titleOf(s))); err != nil {
		return err
	}

	for _, section := range s.Sections {
		label := section.Label
		if label == "" {
			label = section.Name
		}
		if err := r.driver.Info(ctx, fmt.Sprintf("-- %s --", label)); err != nil {
			return err
		}
		for _, key := range section.Fields {
			field, ok := s.Field(key)
			if !ok {
				continue
			}
			if err := r.promptField(ctx, sess, field); err != nil {
				return err
			}
		}
	}
	if len(s.Sections) == 0 {
		for _, field := range s.Fields {
			if err := r.promptField(ctx, sess, field); err != nil {
				return err
			}
		}
	}

	if err := r.showDerived(ctx, sess); err != nil {
		return err
	}
	if err := r.showProgress(ctx, sess); err != nil {
		return err
	}

	ok, err := r.driver.Confirm(ctx, ConfirmConfig{Message: "Submit this record?", Default: true})
	if err != nil {
		return err
	}
	if !ok {
		return r.driver.Info(ctx, "Submission cancelled; record kept as draft.")
	}

	receipt, err := sess.Submit(ctx)
	if err != nil {
		return err
	}
	return r.driver.Info(ctx, fmt.Sprintf("Submitted. Receipt %s at %s.", receipt.ID, receipt.SubmittedAt.Format("2006-01-02 15:04:05")))
}

func (r *Runner) promptField(ctx context.Context, sess *session.Session, field schema.FieldDefinition) error {
	for attempt := 0; attempt < maxFieldAttempts; attempt++ {
		value, skipped, err := r.askOnce(ctx, sess, field)
		if err != nil {
			return err
		}
		if skipped {
			sess.Touch(field.Key)
		} else if err := sess.SetField(field.Key, value); err != nil {
			return err
		}
		message, invalid := sess.Errors()[field.Key]
		if !invalid {
			return nil
		}
		if err := r.driver.Info(ctx, "  ! "+message); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %s", ErrTooManyAttempts, field.Key)
}

// askOnce collects one raw answer. Blank input on an optional field skips it;
// the third return reports the skip.
func (r *Runner) askOnce(ctx context.Context, sess *session.Session, field schema.FieldDefinition) (any, bool, error) {
	message := field.Label
	if message == "" {
		message = field.Key
	}
	if field.Unit != "" {
		message = fmt.Sprintf("%s (%s)", message, field.Unit)
	}

	switch field.Type {
	case schema.FieldTypeBoolean:
		current, _ := sess.Value(field.Key)
		def, _ := constraint.Bool(current)
		answer, err := r.driver.Confirm(ctx, ConfirmConfig{Message: message, Default: def, Help: field.Help})
		if err != nil {
			return nil, false, err
		}
		return answer, false, nil
	case schema.FieldTypeEnum:
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message:      message,
			Options:      field.Options,
			DefaultIndex: defaultIndex(sess, field),
			Help:         field.Help,
		})
		if err != nil {
			return nil, false, err
		}
		if idx < 0 || idx >= len(field.Options) {
			return nil, true, nil
		}
		return field.Options[idx], false, nil
	default:
		current, _ := sess.Value(field.Key)
		answer, err := r.driver.Input(ctx, InputConfig{
			Message: message,
			Default: constraint.Text(current),
			Help:    field.Help,
		})
		if err != nil {
			return nil, false, err
		}
		if strings.TrimSpace(answer) == "" && !field.Required {
			return nil, true, nil
		}
		return answer, false, nil
	}
}

func (r *Runner) showDerived(ctx context.Context, sess *session.Session) error {
	s := sess.Schema()
	if len(s.Derived) == 0 {
		return nil
	}
	if err := r.driver.Info(ctx, "-- Computed --"); err != nil {
		return err
	}
	for _, rule := range s.Derived {
		label := rule.Label
		if label == "" {
			label = rule.Output
		}
		line := fmt.Sprintf("  %s: %s", label, sess.Derived(rule.Output))
		if rule.Unit != "" {
			line += " " + rule.Unit
		}
		if err := r.driver.Info(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) showProgress(ctx context.Context, sess *session.Session) error {
	for _, sp := range sess.Progress() {
		label := sp.Label
		if label == "" {
			label = sp.Section
		}
		mark := " "
		if sp.Complete() {
			mark = "x"
		}
		line := fmt.Sprintf("  [%s] %s %d/%d", mark, label, sp.FilledValid, sp.TotalFields)
		if err := r.driver.Info(ctx, line); err != nil {
			return err
		}
	}
	return r.driver.Info(ctx, fmt.Sprintf("  overall %.0f%%", sess.Overall()*100))
}

func titleOf(s schema.RecordSchema) string {
	if s.Title != "" {
		return s.Title
	}
	return s.ID
}

func defaultIndex(sess *session.Session, field schema.FieldDefinition) int {
	current, ok := sess.Value(field.Key)
	if !ok {
		return 0
	}
	text := constraint.Text(current)
	for i, option := range field.Options {
		if option == text {
			return i
		}
	}
	return 0
}
