package session_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/innovationimperial/go-recordkit/pkg/record"
	"github.com/innovationimperial/go-recordkit/pkg/schema"
	"github.com/innovationimperial/go-recordkit/pkg/session"
	"github.com/innovationimperial/go-recordkit/pkg/submit"
	"github.com/innovationimperial/go-recordkit/pkg/testsupport"
)

func nopPersister() submit.Persister {
	return submit.PersisterFunc(func(context.Context, string, map[string]any) error {
		return nil
	})
}

func openSession(t *testing.T, options ...session.Option) *session.Session {
	t.Helper()
	s := testsupport.WaterQualitySchema(t)
	sess, err := session.New(s, options...)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return sess
}

func fillValid(t *testing.T, sess *session.Session) {
	t.Helper()
	for key, value := range map[string]any{
		"technician": "J. Moyo",
		"test_date":  "2025-03-14",
		"min_ph":     6.8,
		"max_ph":     7.4,
	} {
		if err := sess.SetField(key, value); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
}

func TestSessionRequiresSchema(t *testing.T) {
	if _, err := session.New(schema.RecordSchema{}); err == nil {
		t.Fatal("expected error for empty schema")
	}
}

func TestSessionSeedsDefaultsAndDerived(t *testing.T) {
	s := testsupport.MustCompile(t, schema.RecordSchema{
		ID: "compliance_checklist",
		Fields: []schema.FieldDefinition{
			{Key: "records_current", Type: schema.FieldTypeBoolean, Default: false},
			{Key: "permits_posted", Type: schema.FieldTypeBoolean, Default: false},
		},
		Derived: []schema.DerivedRule{
			{Output: "completion_pct", Op: "checklist_completion", Inputs: []string{"records_current", "permits_posted"}},
		},
	})

	sess, err := session.New(s)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	if value, ok := sess.Value("records_current"); !ok || value != false {
		t.Fatalf("default not seeded: %v, %v", value, ok)
	}
	if pct, ok := sess.Derived("completion_pct").Number(); !ok || pct != 0 {
		t.Fatalf("initial completion = %v ok=%v, want 0", pct, ok)
	}

	if err := sess.SetField("records_current", true); err != nil {
		t.Fatalf("set field: %v", err)
	}
	if pct, _ := sess.Derived("completion_pct").Number(); pct != 50 {
		t.Fatalf("completion after check = %v, want 50", pct)
	}
}

func TestSessionSetFieldValidatesEagerly(t *testing.T) {
	sess := openSession(t)

	if err := sess.SetField("min_ph", 99.0); err != nil {
		t.Fatalf("set field: %v", err)
	}
	if message := sess.Errors()["min_ph"]; !strings.Contains(message, "between 0 and 14") {
		t.Fatalf("expected range error, got %q", message)
	}

	if err := sess.SetField("min_ph", 6.8); err != nil {
		t.Fatalf("set field: %v", err)
	}
	if _, bad := sess.Errors()["min_ph"]; bad {
		t.Fatal("corrected field still carries an error")
	}
}

func TestSessionRejectsUnknownField(t *testing.T) {
	sess := openSession(t)
	if err := sess.SetField("ghost", 1); err == nil {
		t.Fatal("expected error for unknown field key")
	}
}

func TestSessionTouchValidatesWithoutChanging(t *testing.T) {
	sess := openSession(t)
	sess.Touch("technician")
	if message := sess.Errors()["technician"]; !strings.Contains(message, "required") {
		t.Fatalf("expected required error on blur, got %q", message)
	}
	if _, ok := sess.Value("technician"); ok {
		t.Fatal("touch must not store a value")
	}
}

func TestSessionProgress(t *testing.T) {
	sess := openSession(t)
	if sess.Overall() != 0 {
		t.Fatalf("fresh session overall = %v, want 0", sess.Overall())
	}

	fillValid(t, sess)
	if sess.Overall() != 1 {
		t.Fatalf("complete session overall = %v, want 1", sess.Overall())
	}
	for _, section := range sess.Progress() {
		if !section.Complete() {
			t.Fatalf("section %s incomplete: %+v", section.Section, section)
		}
	}
}

func TestSessionSubmitLifecycle(t *testing.T) {
	sess := openSession(t, session.WithPersister(nopPersister()))
	fillValid(t, sess)

	receipt, err := sess.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if receipt.ID == "" {
		t.Fatal("missing receipt id")
	}
	if sess.Instance().State() != record.StateSubmitted {
		t.Fatalf("state = %s, want submitted", sess.Instance().State())
	}

	// Terminal instances refuse further edits and submits.
	if err := sess.SetField("min_ph", 7.0); !errors.Is(err, submit.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted on edit, got %v", err)
	}
	if _, err := sess.Submit(context.Background()); !errors.Is(err, submit.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted on resubmit, got %v", err)
	}
}

func TestSessionEditAfterFailedSubmitReturnsToDraft(t *testing.T) {
	boom := errors.New("storage offline")
	failing := submit.PersisterFunc(func(context.Context, string, map[string]any) error {
		return boom
	})
	sess := openSession(t, session.WithPersister(failing))
	fillValid(t, sess)

	if _, err := sess.Submit(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if sess.Instance().State() != record.StateSubmitFailed {
		t.Fatalf("state = %s, want submit_failed", sess.Instance().State())
	}

	if err := sess.SetField("min_ph", 6.9); err != nil {
		t.Fatalf("edit after failure: %v", err)
	}
	if sess.Instance().State() != record.StateDraft {
		t.Fatalf("state after edit = %s, want draft", sess.Instance().State())
	}
}

func TestSessionSubmitValidationErrors(t *testing.T) {
	sess := openSession(t, session.WithPersister(nopPersister()))

	_, err := sess.Submit(context.Background())
	var verr *submit.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if sess.Instance().State() != record.StateInvalid {
		t.Fatalf("state = %s, want invalid", sess.Instance().State())
	}

	// Fixing the fields allows a clean resubmit.
	fillValid(t, sess)
	if sess.Instance().State() != record.StateDraft {
		t.Fatalf("state after edits = %s, want draft", sess.Instance().State())
	}
	if _, err := sess.Submit(context.Background()); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
}

func TestSessionClockFlowsToDerivedRules(t *testing.T) {
	s := testsupport.MustCompile(t, schema.RecordSchema{
		ID: "meat_production",
		Fields: []schema.FieldDefinition{
			{Key: "withdrawal_days", Type: schema.FieldTypeNumber},
			{Key: "treatment_date", Type: schema.FieldTypeDate},
		},
		Derived: []schema.DerivedRule{
			{Output: "days_left", Op: "days_remaining", Inputs: []string{"withdrawal_days", "treatment_date"}},
		},
	})

	sess, err := session.New(s, session.WithClock(testsupport.FixedClock(t, "2025-03-06T12:00:00Z")))
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if err := sess.SetField("withdrawal_days", 14.0); err != nil {
		t.Fatalf("set field: %v", err)
	}
	if err := sess.SetField("treatment_date", "2025-03-01"); err != nil {
		t.Fatalf("set field: %v", err)
	}

	left, ok := sess.Derived("days_left").Number()
	if !ok || left != 9 {
		t.Fatalf("days_left = %v ok=%v, want 9", left, ok)
	}
}
