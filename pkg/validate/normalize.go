package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/innovationimperial/go-recordkit/pkg/constraint"
	"github.com/innovationimperial/go-recordkit/pkg/record"
	"github.com/innovationimperial/go-recordkit/pkg/schema"
)

const dateLayout = "2006-01-02"

// Normalize converts the raw values of a validated instance into a typed
// record: numbers as float64, booleans as bool, dates in canonical
// YYYY-MM-DD form, and free text sanitized and trimmed. Absent optional
// fields are omitted. Call only after Validate returns no errors; a value
// that still fails to coerce reports a programmer error.
func (e *Engine) Normalize(s schema.RecordSchema, inst *record.Instance) (map[string]any, error) {
	out := make(map[string]any, len(s.Fields))
	for _, field := range s.Fields {
		raw, ok := inst.Value(field.Key)
		if !ok || !constraint.Present(raw) {
			continue
		}

		switch field.Type {
		case schema.FieldTypeNumber:
			num, ok := constraint.Number(raw)
			if !ok {
				return nil, fmt.Errorf("validate: field %q: %v is not numeric", field.Key, raw)
			}
			out[field.Key] = num
		case schema.FieldTypeBoolean:
			flag, ok := constraint.Bool(raw)
			if !ok {
				return nil, fmt.Errorf("validate: field %q: %v is not boolean", field.Key, raw)
			}
			out[field.Key] = flag
		case schema.FieldTypeDate:
			parsed, err := time.Parse(dateLayout, strings.TrimSpace(constraint.Text(raw)))
			if err != nil {
				return nil, fmt.Errorf("validate: field %q: %w", field.Key, err)
			}
			out[field.Key] = parsed.Format(dateLayout)
		case schema.FieldTypeEnum:
			out[field.Key] = strings.TrimSpace(constraint.Text(raw))
		default:
			out[field.Key] = strings.TrimSpace(e.sanitizer.Sanitize(constraint.Text(raw)))
		}
	}
	return out, nil
}
