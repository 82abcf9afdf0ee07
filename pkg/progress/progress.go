// Package progress reports per-section and overall completion for
// multi-section forms. Progress is derived display state only; submission
// gating belongs to the validation engine.
package progress

import (
	"github.com/innovationimperial/go-recordkit/pkg/constraint"
	"github.com/innovationimperial/go-recordkit/pkg/record"
	"github.com/innovationimperial/go-recordkit/pkg/schema"
)

// SectionProgress counts the filled, currently-valid fields of one section.
type SectionProgress struct {
	Section     string
	Label       string
	TotalFields int
	FilledValid int
}

// Complete reports whether every field in the section is filled and valid.
func (p SectionProgress) Complete() bool {
	return p.TotalFields > 0 && p.FilledValid == p.TotalFields
}

// Track recomputes section progress from the current instance state. A field
// counts as filled-valid when it holds a present value and carries no error.
func Track(s schema.RecordSchema, inst *record.Instance) []SectionProgress {
	if len(s.Sections) == 0 {
		return nil
	}

	out := make([]SectionProgress, 0, len(s.Sections))
	for _, section := range s.Sections {
		p := SectionProgress{
			Section:     section.Name,
			Label:       section.Label,
			TotalFields: len(section.Fields),
		}
		for _, key := range section.Fields {
			value, ok := inst.Value(key)
			if !ok || !constraint.Present(value) {
				continue
			}
			if _, invalid := inst.ErrorFor(key); invalid {
				continue
			}
			p.FilledValid++
		}
		out = append(out, p)
	}
	return out
}

// Overall folds section progress into a single completion ratio in [0, 1].
func Overall(sections []SectionProgress) float64 {
	total := 0
	filled := 0
	for _, section := range sections {
		total += section.TotalFields
		filled += section.FilledValid
	}
	if total == 0 {
		return 0
	}
	return float64(filled) / float64(total)
}
