package schema_test

import (
	"strings"
	"testing"

	"github.com/innovationimperial/go-recordkit/pkg/schema"
)

func minimalSchema() schema.RecordSchema {
	return schema.RecordSchema{
		ID: "harvest_log",
		Fields: []schema.FieldDefinition{
			{Key: "crop", Label: "Crop", Type: schema.FieldTypeString, Required: true},
			{Key: "yield_kg", Label: "Yield", Type: schema.FieldTypeNumber},
		},
	}
}

func TestCompileAcceptsMinimalSchema(t *testing.T) {
	if _, err := minimalSchema().Compile(); err != nil {
		t.Fatalf("compile minimal schema: %v", err)
	}
}

func TestCompileRejectsAuthoringMistakes(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*schema.RecordSchema)
		wantErr string
	}{
		{
			name:    "missing id",
			mutate:  func(s *schema.RecordSchema) { s.ID = "" },
			wantErr: "id is required",
		},
		{
			name:    "no fields",
			mutate:  func(s *schema.RecordSchema) { s.Fields = nil },
			wantErr: "at least one field",
		},
		{
			name: "duplicate field key",
			mutate: func(s *schema.RecordSchema) {
				s.Fields = append(s.Fields, schema.FieldDefinition{Key: "crop", Type: schema.FieldTypeString})
			},
			wantErr: "duplicate field key",
		},
		{
			name: "enum without options",
			mutate: func(s *schema.RecordSchema) {
				s.Fields = append(s.Fields, schema.FieldDefinition{Key: "grade", Type: schema.FieldTypeEnum})
			},
			wantErr: "enum field requires options",
		},
		{
			name: "unknown field type",
			mutate: func(s *schema.RecordSchema) {
				s.Fields = append(s.Fields, schema.FieldDefinition{Key: "odd", Type: "decimal"})
			},
			wantErr: "unknown field type",
		},
		{
			name: "range without bounds",
			mutate: func(s *schema.RecordSchema) {
				s.Fields[1].Constraints = []schema.ConstraintRule{{Kind: schema.ConstraintRange}}
			},
			wantErr: "range constraint needs",
		},
		{
			name: "range with non numeric bound",
			mutate: func(s *schema.RecordSchema) {
				s.Fields[1].Constraints = []schema.ConstraintRule{
					{Kind: schema.ConstraintRange, Params: map[string]string{"min": "low"}},
				}
			},
			wantErr: "not numeric",
		},
		{
			name: "pattern without shape or expression",
			mutate: func(s *schema.RecordSchema) {
				s.Fields[0].Constraints = []schema.ConstraintRule{{Kind: schema.ConstraintPattern}}
			},
			wantErr: "pattern constraint needs",
		},
		{
			name: "pattern with broken regex",
			mutate: func(s *schema.RecordSchema) {
				s.Fields[0].Constraints = []schema.ConstraintRule{
					{Kind: schema.ConstraintPattern, Params: map[string]string{"pattern": "(["}},
				}
			},
			wantErr: "pattern expression",
		},
		{
			name: "crossField referencing unknown field",
			mutate: func(s *schema.RecordSchema) {
				s.Fields[1].Constraints = []schema.ConstraintRule{
					{Kind: schema.ConstraintCrossField, Params: map[string]string{
						"fields": "missing",
						"rule":   "yield_kg >= missing",
					}},
				}
			},
			wantErr: "unknown field",
		},
		{
			name: "section referencing unknown field",
			mutate: func(s *schema.RecordSchema) {
				s.Sections = []schema.Section{{Name: "main", Fields: []string{"missing"}}}
			},
			wantErr: "unknown field",
		},
		{
			name: "field claimed by two sections",
			mutate: func(s *schema.RecordSchema) {
				s.Sections = []schema.Section{
					{Name: "one", Fields: []string{"crop"}},
					{Name: "two", Fields: []string{"crop"}},
				}
			},
			wantErr: "appears in sections",
		},
		{
			name: "derived output shadowing a field",
			mutate: func(s *schema.RecordSchema) {
				s.Derived = []schema.DerivedRule{
					{Output: "crop", Op: "product", Inputs: []string{"yield_kg"}},
				}
			},
			wantErr: "collides with a field key",
		},
		{
			name: "derived rule cycle",
			mutate: func(s *schema.RecordSchema) {
				s.Derived = []schema.DerivedRule{
					{Output: "a", Op: "scale", Inputs: []string{"b"}},
					{Output: "b", Op: "scale", Inputs: []string{"a"}},
				}
			},
			wantErr: "cycle",
		},
		{
			name: "derived rule with unknown input",
			mutate: func(s *schema.RecordSchema) {
				s.Derived = []schema.DerivedRule{
					{Output: "a", Op: "scale", Inputs: []string{"missing"}},
				}
			},
			wantErr: "unknown input",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := minimalSchema()
			tc.mutate(&s)
			_, err := s.Compile()
			if err == nil {
				t.Fatalf("expected compile error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %q", tc.wantErr, err)
			}
		})
	}
}

func TestCompileOrdersDerivedRules(t *testing.T) {
	s := minimalSchema()
	s.Derived = []schema.DerivedRule{
		{Output: "band", Op: "band", Inputs: []string{"midpoint"}},
		{Output: "midpoint", Op: "midpoint", Inputs: []string{"yield_kg", "doubled"}},
		{Output: "doubled", Op: "scale", Inputs: []string{"yield_kg"}, Params: map[string]string{"factor": "2"}},
	}

	compiled, err := s.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	position := make(map[string]int, len(compiled.Derived))
	for i, rule := range compiled.Derived {
		position[rule.Output] = i
	}
	if position["doubled"] > position["midpoint"] {
		t.Fatalf("expected doubled before midpoint, got order %v", position)
	}
	if position["midpoint"] > position["band"] {
		t.Fatalf("expected midpoint before band, got order %v", position)
	}
}

func TestCompileDoesNotMutateInput(t *testing.T) {
	s := minimalSchema()
	s.Derived = []schema.DerivedRule{
		{Output: "band", Op: "band", Inputs: []string{"midpoint"}},
		{Output: "midpoint", Op: "midpoint", Inputs: []string{"yield_kg", "yield_kg"}},
	}

	if _, err := s.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if s.Derived[0].Output != "band" {
		t.Fatalf("input declaration was reordered: %v", s.Derived)
	}
}

func TestCrossFieldDependencies(t *testing.T) {
	rule := schema.ConstraintRule{
		Kind:   schema.ConstraintCrossField,
		Params: map[string]string{"fields": " min_ph , max_ph ,"},
	}
	deps := schema.CrossFieldDependencies(rule)
	if len(deps) != 2 || deps[0] != "min_ph" || deps[1] != "max_ph" {
		t.Fatalf("unexpected dependencies: %v", deps)
	}
}
