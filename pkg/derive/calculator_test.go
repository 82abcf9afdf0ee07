package derive_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/innovationimperial/go-recordkit/pkg/derive"
	"github.com/innovationimperial/go-recordkit/pkg/record"
	"github.com/innovationimperial/go-recordkit/pkg/schema"
	"github.com/innovationimperial/go-recordkit/pkg/testsupport"
)

func seedingSchema(t *testing.T) schema.RecordSchema {
	t.Helper()
	return testsupport.MustCompile(t, schema.RecordSchema{
		ID: "crop_planting",
		Fields: []schema.FieldDefinition{
			{Key: "seeds_per_acre", Label: "Seeds per Acre", Type: schema.FieldTypeNumber},
			{Key: "seeds_per_pound", Label: "Seeds per Pound", Type: schema.FieldTypeNumber},
		},
		Derived: []schema.DerivedRule{
			{Output: "seeding_rate_lbs_acre", Op: derive.OpQuotient, Inputs: []string{"seeds_per_acre", "seeds_per_pound"}},
		},
	})
}

func TestRecomputeQuotient(t *testing.T) {
	s := seedingSchema(t)
	inst := record.New(s.ID, nil)
	inst.SetValue("seeds_per_acre", 56000.0)
	inst.SetValue("seeds_per_pound", 25000.0)

	outputs, err := derive.New().Recompute(s, inst)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}

	rate, ok := outputs["seeding_rate_lbs_acre"].Number()
	if !ok {
		t.Fatalf("expected numeric output, got %v", outputs)
	}
	if math.Abs(rate-2.24) > 1e-9 {
		t.Fatalf("seeding rate = %v, want 2.24", rate)
	}
}

func TestRecomputeUnavailableInputs(t *testing.T) {
	s := seedingSchema(t)
	calc := derive.New()

	tests := []struct {
		name   string
		values map[string]any
	}{
		{"both absent", nil},
		{"denominator absent", map[string]any{"seeds_per_acre": 56000.0}},
		{"denominator zero", map[string]any{"seeds_per_acre": 56000.0, "seeds_per_pound": 0.0}},
		{"denominator negative", map[string]any{"seeds_per_acre": 56000.0, "seeds_per_pound": -3.0}},
		{"numerator negative", map[string]any{"seeds_per_acre": -1.0, "seeds_per_pound": 25000.0}},
		{"non numeric", map[string]any{"seeds_per_acre": "lots", "seeds_per_pound": 25000.0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inst := record.New(s.ID, nil)
			for key, value := range tc.values {
				inst.SetValue(key, value)
			}
			outputs, err := calc.Recompute(s, inst)
			if err != nil {
				t.Fatalf("recompute: %v", err)
			}
			if outputs["seeding_rate_lbs_acre"].Available() {
				t.Fatalf("expected unavailable output, got %v", outputs["seeding_rate_lbs_acre"])
			}
		})
	}
}

func TestRecomputeChainsThroughEarlierOutputs(t *testing.T) {
	s := testsupport.WaterQualitySchema(t)
	inst := record.New(s.ID, nil)
	inst.SetValue("min_ph", 6.8)
	inst.SetValue("max_ph", 7.4)

	outputs, err := derive.New().Recompute(s, inst)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}

	mid, ok := outputs["ph_midpoint"].Number()
	if !ok || math.Abs(mid-7.1) > 1e-9 {
		t.Fatalf("midpoint = %v ok=%v, want 7.1", mid, ok)
	}
	band, ok := outputs["ph_band"].Text()
	if !ok || band != "optimal" {
		t.Fatalf("band = %q ok=%v, want optimal", band, ok)
	}
}

func TestRecomputeIsPure(t *testing.T) {
	s := seedingSchema(t)
	inst := record.New(s.ID, nil)
	inst.SetValue("seeds_per_acre", 56000.0)
	inst.SetValue("seeds_per_pound", 25000.0)
	before := inst.Values()

	calc := derive.New()
	first, err := calc.Recompute(s, inst)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	second, err := calc.Recompute(s, inst)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}

	if diff := cmp.Diff(first, second, cmp.AllowUnexported(record.Value{})); diff != "" {
		t.Fatalf("repeated recompute diverged (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(before, inst.Values()); diff != "" {
		t.Fatalf("recompute mutated the instance (-before +after):\n%s", diff)
	}
}

func TestRecomputeRejectsUnknownOp(t *testing.T) {
	s := seedingSchema(t)
	s.Derived[0].Op = "haruspicy"
	if _, err := derive.New().Recompute(s, record.New(s.ID, nil)); err == nil {
		t.Fatal("expected error for unregistered op")
	}
}

func TestRecomputeUsesInjectedClock(t *testing.T) {
	s := testsupport.MustCompile(t, schema.RecordSchema{
		ID: "meat_production",
		Fields: []schema.FieldDefinition{
			{Key: "withdrawal_days", Label: "Withdrawal Period", Type: schema.FieldTypeNumber},
			{Key: "treatment_date", Label: "Treatment Date", Type: schema.FieldTypeDate},
		},
		Derived: []schema.DerivedRule{
			{Output: "withdrawal_days_remaining", Op: derive.OpDaysRemaining, Inputs: []string{"withdrawal_days", "treatment_date"}},
		},
	})

	inst := record.New(s.ID, nil)
	inst.SetValue("withdrawal_days", 14.0)
	inst.SetValue("treatment_date", "2025-03-01")

	calc := derive.New(derive.WithClock(testsupport.FixedClock(t, "2025-03-06T12:00:00Z")))
	outputs, err := calc.Recompute(s, inst)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	remaining, ok := outputs["withdrawal_days_remaining"].Number()
	if !ok || remaining != 9 {
		t.Fatalf("remaining = %v ok=%v, want 9", remaining, ok)
	}

	// Past the window the readout clamps to zero.
	calc = derive.New(derive.WithClock(testsupport.FixedClock(t, "2025-04-01T12:00:00Z")))
	outputs, err = calc.Recompute(s, inst)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if remaining, _ := outputs["withdrawal_days_remaining"].Number(); remaining != 0 {
		t.Fatalf("remaining = %v, want 0", remaining)
	}
}

func TestRegistryRegistersCustomOps(t *testing.T) {
	registry := derive.DefaultRegistry()
	if err := registry.Register("negate", func(ctx derive.OpContext) record.Value {
		num, ok := ctx.Inputs[0].Number()
		if !ok {
			return record.Unavailable()
		}
		return record.NumberValue(-num)
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := registry.Register("negate", func(derive.OpContext) record.Value {
		return record.Unavailable()
	}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if !registry.Has(derive.OpQuotient) {
		t.Fatal("builtin ops should be present")
	}
}
