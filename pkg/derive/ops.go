package derive

import (
	"strconv"
	"strings"
	"time"

	"github.com/innovationimperial/go-recordkit/pkg/record"
)

const dateLayout = "2006-01-02"

// Built-in op names.
const (
	OpQuotient            = "quotient"
	OpProduct             = "product"
	OpDifference          = "difference"
	OpScale               = "scale"
	OpPercentOf           = "percent_of"
	OpMidpoint            = "midpoint"
	OpBand                = "band"
	OpLookup              = "lookup"
	OpDaysRemaining       = "days_remaining"
	OpChecklistCompletion = "checklist_completion"
)

func builtins() map[string]Op {
	return map[string]Op{
		OpQuotient:            opQuotient,
		OpProduct:             opProduct,
		OpDifference:          opDifference,
		OpScale:               opScale,
		OpPercentOf:           opPercentOf,
		OpMidpoint:            opMidpoint,
		OpBand:                opBand,
		OpLookup:              opLookup,
		OpDaysRemaining:       opDaysRemaining,
		OpChecklistCompletion: opChecklistCompletion,
	}
}

// opQuotient divides the first input by the second, or by the constant
// Params["divisor"] when only one input is declared. Zero or negative
// denominators and negative numerators are out of domain.
func opQuotient(ctx OpContext) record.Value {
	nums, ok := numericInputs(ctx, 1)
	if !ok {
		return record.Unavailable()
	}

	numerator := nums[0]
	var denominator float64
	switch {
	case len(nums) >= 2:
		denominator = nums[1]
	default:
		raw, has := ctx.Params["divisor"]
		if !has {
			return record.Unavailable()
		}
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return record.Unavailable()
		}
		denominator = parsed
	}

	if numerator < 0 || denominator <= 0 {
		return record.Unavailable()
	}
	return record.NumberValue(numerator / denominator)
}

func opProduct(ctx OpContext) record.Value {
	nums, ok := numericInputs(ctx, 1)
	if !ok {
		return record.Unavailable()
	}
	result := 1.0
	for _, num := range nums {
		result *= num
	}
	return record.NumberValue(result)
}

func opDifference(ctx OpContext) record.Value {
	nums, ok := numericInputs(ctx, 2)
	if !ok {
		return record.Unavailable()
	}
	return record.NumberValue(nums[0] - nums[1])
}

func opScale(ctx OpContext) record.Value {
	nums, ok := numericInputs(ctx, 1)
	if !ok {
		return record.Unavailable()
	}
	factor, err := strconv.ParseFloat(ctx.Params["factor"], 64)
	if err != nil {
		return record.Unavailable()
	}
	return record.NumberValue(nums[0] * factor)
}

// opPercentOf computes (a / b) * 100, e.g. dressing percentage from carcass
// and live weight.
func opPercentOf(ctx OpContext) record.Value {
	nums, ok := numericInputs(ctx, 2)
	if !ok {
		return record.Unavailable()
	}
	if nums[0] < 0 || nums[1] <= 0 {
		return record.Unavailable()
	}
	return record.NumberValue(nums[0] / nums[1] * 100)
}

func opMidpoint(ctx OpContext) record.Value {
	nums, ok := numericInputs(ctx, 2)
	if !ok {
		return record.Unavailable()
	}
	return record.NumberValue((nums[0] + nums[1]) / 2)
}

// opBand maps a numeric input onto a label, splitting the domain at
// Params["thresholds"] (ascending, comma separated) with len(thresholds)+1
// labels under Params["labels"]. Used for pH banding and similar readouts.
func opBand(ctx OpContext) record.Value {
	nums, ok := numericInputs(ctx, 1)
	if !ok {
		return record.Unavailable()
	}

	thresholds, err := parseFloats(ctx.Params["thresholds"])
	if err != nil || len(thresholds) == 0 {
		return record.Unavailable()
	}
	labels := splitList(ctx.Params["labels"])
	if len(labels) != len(thresholds)+1 {
		return record.Unavailable()
	}

	for i, threshold := range thresholds {
		if nums[0] < threshold {
			return record.TextValue(labels[i])
		}
	}
	return record.TextValue(labels[len(labels)-1])
}

// opLookup maps a text input through the Params["table"] declaration, e.g.
// "corn=1800,soybeans=2800". Unknown keys are unavailable.
func opLookup(ctx OpContext) record.Value {
	if len(ctx.Inputs) < 1 {
		return record.Unavailable()
	}
	key, ok := ctx.Inputs[0].Text()
	if !ok {
		return record.Unavailable()
	}

	for _, entry := range splitList(ctx.Params["table"]) {
		name, raw, found := strings.Cut(entry, "=")
		if !found || strings.TrimSpace(name) != key {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return record.Unavailable()
		}
		return record.NumberValue(value)
	}
	return record.Unavailable()
}

// opDaysRemaining reads the clock: given a period in days and a start date it
// reports max(0, period - days since start). Declared time-dependent; the
// calculator injects Now.
func opDaysRemaining(ctx OpContext) record.Value {
	if len(ctx.Inputs) < 2 {
		return record.Unavailable()
	}
	period, ok := ctx.Inputs[0].Number()
	if !ok || period < 0 {
		return record.Unavailable()
	}
	start, ok := ctx.Inputs[1].Text()
	if !ok {
		return record.Unavailable()
	}
	began, err := time.Parse(dateLayout, start)
	if err != nil {
		return record.Unavailable()
	}

	elapsed := ctx.Now.Sub(began).Hours() / 24
	remaining := period - float64(int(elapsed))
	if remaining < 0 {
		remaining = 0
	}
	return record.NumberValue(remaining)
}

// opChecklistCompletion reports the percentage of boolean inputs that are
// checked. Unset items count as unchecked rather than making the whole
// readout unavailable, since checklists seed to false.
func opChecklistCompletion(ctx OpContext) record.Value {
	if len(ctx.Inputs) == 0 {
		return record.Unavailable()
	}
	checked := 0
	for _, input := range ctx.Inputs {
		if flag, ok := input.Bool(); ok && flag {
			checked++
		}
	}
	return record.NumberValue(float64(checked) / float64(len(ctx.Inputs)) * 100)
}

// numericInputs unwraps every input as a number, requiring at least min of
// them. Any unavailable or non-numeric input makes the whole op unavailable.
func numericInputs(ctx OpContext, min int) ([]float64, bool) {
	if len(ctx.Inputs) < min {
		return nil, false
	}
	nums := make([]float64, len(ctx.Inputs))
	for i, input := range ctx.Inputs {
		num, ok := input.Number()
		if !ok {
			return nil, false
		}
		nums[i] = num
	}
	return nums, true
}

func parseFloats(raw string) ([]float64, error) {
	parts := splitList(raw)
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}

func splitList(raw string) []string {
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
