// Package testsupport carries shared helpers for the package test suites.
package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/innovationimperial/go-recordkit/pkg/schema"
)

// Context returns a background context for contract tests.
func Context() context.Context {
	return context.Background()
}

// Compare diffs two values, returning an empty string when they match.
func Compare(want, got any) string {
	return cmp.Diff(want, got)
}

// FixedClock returns a deterministic time source for clock-reading code.
func FixedClock(t *testing.T, value string) func() time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse clock value: %v", err)
	}
	return func() time.Time { return parsed }
}

// MustCompile compiles a schema declaration, failing the test on authoring
// errors.
func MustCompile(t *testing.T, decl schema.RecordSchema) schema.RecordSchema {
	t.Helper()
	compiled, err := decl.Compile()
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	return compiled
}

// WaterQualitySchema returns a small schema used across the suites: two pH
// readings with a cross-field ordering rule and a derived midpoint band.
func WaterQualitySchema(t *testing.T) schema.RecordSchema {
	t.Helper()
	return MustCompile(t, schema.RecordSchema{
		ID:    "water_quality_test",
		Title: "Water Quality Test",
		Fields: []schema.FieldDefinition{
			{Key: "technician", Label: "Technician", Type: schema.FieldTypeString, Required: true},
			{Key: "test_date", Label: "Test Date", Type: schema.FieldTypeDate, Required: true, Constraints: []schema.ConstraintRule{
				{Kind: schema.ConstraintPattern, Params: map[string]string{"shape": "date"}},
			}},
			{Key: "min_ph", Label: "Minimum pH", Type: schema.FieldTypeNumber, Required: true, Constraints: []schema.ConstraintRule{
				{Kind: schema.ConstraintRange, Params: map[string]string{"min": "0", "max": "14"}},
			}},
			{Key: "max_ph", Label: "Maximum pH", Type: schema.FieldTypeNumber, Required: true, Constraints: []schema.ConstraintRule{
				{Kind: schema.ConstraintRange, Params: map[string]string{"min": "0", "max": "14"}},
				{Kind: schema.ConstraintCrossField, Params: map[string]string{
					"fields": "min_ph",
					"rule":   "max_ph >= min_ph",
				}},
			}},
		},
		Sections: []schema.Section{
			{Name: "sample", Fields: []string{"technician", "test_date"}},
			{Name: "readings", Fields: []string{"min_ph", "max_ph"}},
		},
		Derived: []schema.DerivedRule{
			{Output: "ph_band", Label: "pH Band", Op: "band", Inputs: []string{"ph_midpoint"}, Params: map[string]string{
				"thresholds": "6.5,8.5",
				"labels":     "acidic,optimal,alkaline",
			}},
			{Output: "ph_midpoint", Label: "pH Midpoint", Op: "midpoint", Inputs: []string{"min_ph", "max_ph"}},
		},
	})
}
