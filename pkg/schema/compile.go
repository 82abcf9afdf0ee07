package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	errSchemaIDMissing = errors.New("schema: id is required")
	errNoFields        = errors.New("schema: at least one field is required")
)

// Compile validates a schema declaration and returns a copy whose derived
// rules are topologically ordered. Authoring mistakes (duplicate keys, unknown
// references, dependency cycles) are fatal here so they never surface at data
// entry time.
func (s RecordSchema) Compile() (RecordSchema, error) {
	if strings.TrimSpace(s.ID) == "" {
		return RecordSchema{}, errSchemaIDMissing
	}
	if len(s.Fields) == 0 {
		return RecordSchema{}, errNoFields
	}

	keys := make(map[string]struct{}, len(s.Fields))
	for _, field := range s.Fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			return RecordSchema{}, fmt.Errorf("schema %s: field with empty key", s.ID)
		}
		if _, exists := keys[key]; exists {
			return RecordSchema{}, fmt.Errorf("schema %s: duplicate field key %q", s.ID, key)
		}
		keys[key] = struct{}{}

		if err := validateField(field); err != nil {
			return RecordSchema{}, fmt.Errorf("schema %s: field %q: %w", s.ID, key, err)
		}
	}

	if err := validateSections(s, keys); err != nil {
		return RecordSchema{}, err
	}

	for _, field := range s.Fields {
		for _, rule := range field.Constraints {
			if rule.Kind != ConstraintCrossField {
				continue
			}
			for _, dep := range CrossFieldDependencies(rule) {
				if _, ok := keys[dep]; !ok {
					return RecordSchema{}, fmt.Errorf("schema %s: field %q: crossField references unknown field %q", s.ID, field.Key, dep)
				}
			}
		}
	}

	ordered, err := orderDerivedRules(s, keys)
	if err != nil {
		return RecordSchema{}, err
	}

	compiled := s
	compiled.Derived = ordered
	return compiled, nil
}

// MustCompile panics on authoring errors. Intended for static declarations
// wired at init time.
func MustCompile(s RecordSchema) RecordSchema {
	compiled, err := s.Compile()
	if err != nil {
		panic(err)
	}
	return compiled
}

// CrossFieldDependencies returns the dependency keys a crossField rule
// declares under Params["fields"].
func CrossFieldDependencies(rule ConstraintRule) []string {
	raw := rule.Params["fields"]
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

func validateField(field FieldDefinition) error {
	switch field.Type {
	case FieldTypeString, FieldTypeNumber, FieldTypeDate, FieldTypeBoolean:
	case FieldTypeEnum:
		if len(field.Options) == 0 {
			return errors.New("enum field requires options")
		}
	case "":
		return errors.New("field type is required")
	default:
		return fmt.Errorf("unknown field type %q", field.Type)
	}

	for _, rule := range field.Constraints {
		if err := validateConstraint(rule); err != nil {
			return err
		}
	}
	return nil
}

func validateConstraint(rule ConstraintRule) error {
	switch rule.Kind {
	case ConstraintRequired:
		return nil
	case ConstraintRange:
		min, hasMin := rule.Params["min"]
		max, hasMax := rule.Params["max"]
		if !hasMin && !hasMax {
			return errors.New("range constraint needs min and/or max")
		}
		if hasMin {
			if _, err := strconv.ParseFloat(min, 64); err != nil {
				return fmt.Errorf("range min %q is not numeric", min)
			}
		}
		if hasMax {
			if _, err := strconv.ParseFloat(max, 64); err != nil {
				return fmt.Errorf("range max %q is not numeric", max)
			}
		}
		return nil
	case ConstraintOneOf:
		if strings.TrimSpace(rule.Params["values"]) == "" {
			return errors.New("oneOf constraint needs values")
		}
		return nil
	case ConstraintPattern:
		shape := strings.TrimSpace(rule.Params["shape"])
		expr := strings.TrimSpace(rule.Params["pattern"])
		if shape == "" && expr == "" {
			return errors.New("pattern constraint needs a shape or expression")
		}
		if expr != "" {
			if _, err := regexp.Compile(expr); err != nil {
				return fmt.Errorf("pattern expression: %w", err)
			}
		}
		return nil
	case ConstraintCrossField:
		if strings.TrimSpace(rule.Params["rule"]) == "" {
			return errors.New("crossField constraint needs a rule expression")
		}
		if len(CrossFieldDependencies(rule)) == 0 {
			return errors.New("crossField constraint needs dependency fields")
		}
		return nil
	case "":
		return errors.New("constraint kind is required")
	default:
		return fmt.Errorf("unknown constraint kind %q", rule.Kind)
	}
}

func validateSections(s RecordSchema, keys map[string]struct{}) error {
	seen := make(map[string]string)
	names := make(map[string]struct{}, len(s.Sections))
	for _, section := range s.Sections {
		name := strings.TrimSpace(section.Name)
		if name == "" {
			return fmt.Errorf("schema %s: section with empty name", s.ID)
		}
		if _, exists := names[name]; exists {
			return fmt.Errorf("schema %s: duplicate section %q", s.ID, name)
		}
		names[name] = struct{}{}

		for _, key := range section.Fields {
			if _, ok := keys[key]; !ok {
				return fmt.Errorf("schema %s: section %q references unknown field %q", s.ID, name, key)
			}
			if owner, claimed := seen[key]; claimed {
				return fmt.Errorf("schema %s: field %q appears in sections %q and %q", s.ID, key, owner, name)
			}
			seen[key] = name
		}
	}
	return nil
}

// orderDerivedRules checks output/input references and returns the rules in
// dependency order. Outputs must not shadow field keys; cycles are rejected.
func orderDerivedRules(s RecordSchema, fieldKeys map[string]struct{}) ([]DerivedRule, error) {
	if len(s.Derived) == 0 {
		return nil, nil
	}

	byOutput := make(map[string]DerivedRule, len(s.Derived))
	for _, rule := range s.Derived {
		output := strings.TrimSpace(rule.Output)
		if output == "" {
			return nil, fmt.Errorf("schema %s: derived rule with empty output", s.ID)
		}
		if _, collides := fieldKeys[output]; collides {
			return nil, fmt.Errorf("schema %s: derived output %q collides with a field key", s.ID, output)
		}
		if _, exists := byOutput[output]; exists {
			return nil, fmt.Errorf("schema %s: duplicate derived output %q", s.ID, output)
		}
		if strings.TrimSpace(rule.Op) == "" {
			return nil, fmt.Errorf("schema %s: derived output %q has no op", s.ID, output)
		}
		byOutput[output] = rule
	}

	for _, rule := range s.Derived {
		for _, input := range rule.Inputs {
			if _, isField := fieldKeys[input]; isField {
				continue
			}
			if _, isDerived := byOutput[input]; isDerived {
				continue
			}
			return nil, fmt.Errorf("schema %s: derived output %q references unknown input %q", s.ID, rule.Output, input)
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(byOutput))
	ordered := make([]DerivedRule, 0, len(s.Derived))

	var visit func(output string) error
	visit = func(output string) error {
		switch state[output] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("schema %s: derived rule cycle through %q", s.ID, output)
		}
		state[output] = visiting
		rule := byOutput[output]
		for _, input := range rule.Inputs {
			if _, isDerived := byOutput[input]; isDerived {
				if err := visit(input); err != nil {
					return err
				}
			}
		}
		state[output] = done
		ordered = append(ordered, rule)
		return nil
	}

	for _, rule := range s.Derived {
		if err := visit(rule.Output); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
