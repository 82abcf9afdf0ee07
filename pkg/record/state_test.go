package record_test

import (
	"errors"
	"testing"

	"github.com/innovationimperial/go-recordkit/pkg/record"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from record.State
		to   record.State
		want bool
	}{
		{record.StateDraft, record.StateValidating, true},
		{record.StateDraft, record.StateSubmitted, false},
		{record.StateValidating, record.StateValid, true},
		{record.StateValidating, record.StateInvalid, true},
		{record.StateValid, record.StateSubmitting, true},
		{record.StateValid, record.StateDraft, true},
		{record.StateInvalid, record.StateValidating, true},
		{record.StateInvalid, record.StateDraft, true},
		{record.StateSubmitting, record.StateSubmitted, true},
		{record.StateSubmitting, record.StateSubmitFailed, true},
		{record.StateSubmitFailed, record.StateValidating, true},
		{record.StateSubmitFailed, record.StateDraft, true},
		{record.StateSubmitted, record.StateDraft, false},
		{record.StateSubmitted, record.StateValidating, false},
	}

	for _, tc := range tests {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	if !record.StateSubmitted.Terminal() {
		t.Fatal("submitted must be terminal")
	}
	for _, state := range []record.State{
		record.StateDraft, record.StateValidating, record.StateValid,
		record.StateInvalid, record.StateSubmitting, record.StateSubmitFailed,
	} {
		if state.Terminal() {
			t.Fatalf("%s must not be terminal", state)
		}
	}
}

func TestInstanceTransition(t *testing.T) {
	inst := record.New("water_quality_test", nil)
	if inst.State() != record.StateDraft {
		t.Fatalf("new instance state = %s, want draft", inst.State())
	}

	if err := inst.Transition(record.StateValidating); err != nil {
		t.Fatalf("draft -> validating: %v", err)
	}

	err := inst.Transition(record.StateSubmitted)
	if err == nil {
		t.Fatal("validating -> submitted must be rejected")
	}
	var terr *record.TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransitionError, got %T", err)
	}
	if inst.State() != record.StateValidating {
		t.Fatalf("failed transition moved state to %s", inst.State())
	}
}

func TestInstanceSeedsDefaults(t *testing.T) {
	defaults := map[string]any{"source": "pond", "flags": []any{"a"}}
	inst := record.New("water_quality_test", defaults)

	if value, ok := inst.Value("source"); !ok || value != "pond" {
		t.Fatalf("default not seeded: %v, %v", value, ok)
	}

	// Seeded values are deep copies; mutating the original map must not leak.
	defaults["flags"].([]any)[0] = "mutated"
	value, _ := inst.Value("flags")
	if value.([]any)[0] != "a" {
		t.Fatal("defaults were not deep copied")
	}
}

func TestInstanceErrorBookkeeping(t *testing.T) {
	inst := record.New("water_quality_test", nil)
	inst.SetError("min_ph", "too high")
	inst.SetError("technician", "missing")

	if keys := inst.ErrorKeys(); len(keys) != 2 || keys[0] != "min_ph" || keys[1] != "technician" {
		t.Fatalf("unexpected error keys %v", keys)
	}

	inst.ClearError("min_ph")
	if _, bad := inst.ErrorFor("min_ph"); bad {
		t.Fatal("cleared error still recorded")
	}

	inst.ReplaceErrors(nil)
	if len(inst.Errors()) != 0 {
		t.Fatalf("replace with nil left errors: %v", inst.Errors())
	}
}

func TestInstanceValuesCopy(t *testing.T) {
	inst := record.New("water_quality_test", nil)
	inst.SetValue("min_ph", 6.8)

	copied := inst.Values()
	copied["min_ph"] = 0.0
	if value, _ := inst.Value("min_ph"); value != 6.8 {
		t.Fatal("Values() exposed internal state")
	}
}

func TestInstanceDerivedBookkeeping(t *testing.T) {
	inst := record.New("water_quality_test", nil)
	inst.ReplaceDerived(map[string]record.Value{
		"ph_midpoint": record.NumberValue(7.1),
	})

	if value := inst.Derived("ph_midpoint"); !value.Available() {
		t.Fatal("derived output lost")
	}
	if value := inst.Derived("missing"); value.Available() {
		t.Fatal("unknown derived key should be unavailable")
	}
}

func TestUniqueInstanceIDs(t *testing.T) {
	a := record.New("water_quality_test", nil)
	b := record.New("water_quality_test", nil)
	if a.ID() == "" || a.ID() == b.ID() {
		t.Fatalf("expected distinct ids, got %q and %q", a.ID(), b.ID())
	}
}
