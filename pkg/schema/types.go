package schema

// FieldType enumerates the value kinds a record field can hold.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeDate    FieldType = "date"
	FieldTypeEnum    FieldType = "enum"
	FieldTypeBoolean FieldType = "boolean"
)

const (
	ConstraintRequired   = "required"
	ConstraintRange      = "range"
	ConstraintOneOf      = "oneOf"
	ConstraintPattern    = "pattern"
	ConstraintCrossField = "crossField"
)

// ConstraintRule is a declarative validity rule attached to a field. Rules are
// evaluated in declaration order and the first failure determines the field's
// error. Numeric bounds live in Params ("min"/"max"), oneOf choices under
// Params["values"] (comma separated), pattern shapes under Params["shape"] or a
// raw expression under Params["pattern"]. Cross-field rules carry the dependency
// list in Params["fields"] and the rule expression in Params["rule"]. Message
// overrides the built-in failure text; "{label}", "{min}", "{max}" and
// "{values}" placeholders are expanded.
type ConstraintRule struct {
	Kind    string            `json:"kind" yaml:"kind"`
	Params  map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Message string            `json:"message,omitempty" yaml:"message,omitempty"`
}

// FieldDefinition describes a single input of a record type. Definitions are
// immutable once the schema compiles.
type FieldDefinition struct {
	Key         string           `json:"key" yaml:"key"`
	Label       string           `json:"label,omitempty" yaml:"label,omitempty"`
	Type        FieldType        `json:"type" yaml:"type"`
	Required    bool             `json:"required,omitempty" yaml:"required,omitempty"`
	Options     []string         `json:"options,omitempty" yaml:"options,omitempty"`
	Constraints []ConstraintRule `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Default     any              `json:"default,omitempty" yaml:"default,omitempty"`
	Unit        string           `json:"unit,omitempty" yaml:"unit,omitempty"`
	Help        string           `json:"help,omitempty" yaml:"help,omitempty"`
}

// Section names an ordered subset of a schema's fields shown together.
type Section struct {
	Name   string   `json:"name" yaml:"name"`
	Label  string   `json:"label,omitempty" yaml:"label,omitempty"`
	Fields []string `json:"fields" yaml:"fields"`
}

// DerivedRule computes a dependent value from raw inputs. Op names a formula
// registered with the derive registry; Inputs reference field keys or the
// outputs of rules that sort before this one.
type DerivedRule struct {
	Output string            `json:"output" yaml:"output"`
	Label  string            `json:"label,omitempty" yaml:"label,omitempty"`
	Op     string            `json:"op" yaml:"op"`
	Inputs []string          `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Unit   string            `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// RecordSchema is the static declaration of one record type: its fields,
// sections, and derived rules. Schemas are authored once per record type and
// loaded at form-mount time; nothing mutates them at runtime.
type RecordSchema struct {
	ID          string            `json:"id" yaml:"id"`
	Title       string            `json:"title,omitempty" yaml:"title,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []FieldDefinition `json:"fields" yaml:"fields"`
	Sections    []Section         `json:"sections,omitempty" yaml:"sections,omitempty"`
	Derived     []DerivedRule     `json:"derived,omitempty" yaml:"derived,omitempty"`
}

// Field looks up a field definition by key.
func (s RecordSchema) Field(key string) (FieldDefinition, bool) {
	for _, field := range s.Fields {
		if field.Key == key {
			return field, true
		}
	}
	return FieldDefinition{}, false
}

// FieldKeys returns the field keys in declaration order.
func (s RecordSchema) FieldKeys() []string {
	keys := make([]string, 0, len(s.Fields))
	for _, field := range s.Fields {
		keys = append(keys, field.Key)
	}
	return keys
}

// Defaults returns the declared default values keyed by field.
func (s RecordSchema) Defaults() map[string]any {
	out := make(map[string]any)
	for _, field := range s.Fields {
		if field.Default != nil {
			out[field.Key] = field.Default
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// DerivedRuleFor looks up a derived rule by its output key.
func (s RecordSchema) DerivedRuleFor(output string) (DerivedRule, bool) {
	for _, rule := range s.Derived {
		if rule.Output == output {
			return rule, true
		}
	}
	return DerivedRule{}, false
}
