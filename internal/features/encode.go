package features

import "fmt"

// Domains lists every value a categorical field can take, in form order.
var Domains = map[string][]string{
	FieldCity:               {"Urban", "Suburban", "Rural"},
	FieldDegree:             {"Engineering", "Arts", "Science", "Business"},
	FieldDietaryHabits:      {"Healthy", "Unhealthy", "Moderate"},
	FieldFamilyHistory:      {"Yes", "No"},
	FieldRelationshipIssues: {"Yes", "No"},
	FieldSupportSystem:      {"Yes", "No"},
	FieldSubstanceUse:       {"Yes", "No"},
}

// EncodingMode selects how categorical fields become indicator columns.
type EncodingMode int

const (
	// EncodeFullDomain emits one indicator per known domain value, so the
	// encoded record carries the same columns the model was trained on.
	EncodeFullDomain EncodingMode = iota
	// EncodeSingleRow emits only the indicator of the selected value, as a
	// one-row get_dummies would. Columns for the other values are left to
	// Project to fill with zero.
	EncodeSingleRow
)

func (m EncodingMode) String() string {
	switch m {
	case EncodeFullDomain:
		return "full_domain"
	case EncodeSingleRow:
		return "single_row"
	default:
		return fmt.Sprintf("EncodingMode(%d)", int(m))
	}
}

// ParseEncodingMode maps a config value onto an EncodingMode. The empty
// string selects EncodeFullDomain.
func ParseEncodingMode(s string) (EncodingMode, error) {
	switch s {
	case "", "full_domain":
		return EncodeFullDomain, nil
	case "single_row":
		return EncodeSingleRow, nil
	default:
		return 0, fmt.Errorf("unknown encoding mode %q (want full_domain or single_row)", s)
	}
}

// Vector is an encoded record keyed by column name.
type Vector map[string]float64

// IndicatorName is the column name for value of a categorical field,
// e.g. "City_Urban".
func IndicatorName(field, value string) string {
	return field + "_" + value
}

// Encode expands every categorical field of in into indicator columns and
// copies numeric fields through unchanged. A value outside the field's
// domain still gets its own indicator; Project drops it if the schema does
// not know it.
func Encode(in Input, mode EncodingMode) Vector {
	v := make(Vector, 32)
	for _, f := range in.Fields() {
		switch val := f.Value.(type) {
		case int:
			v[f.Name] = float64(val)
		case float64:
			v[f.Name] = val
		case string:
			encodeCategory(v, f.Name, val, mode)
		}
	}
	return v
}

func encodeCategory(v Vector, field, value string, mode EncodingMode) {
	v[IndicatorName(field, value)] = 1
	if mode == EncodeSingleRow {
		return
	}
	for _, option := range Domains[field] {
		if option != value {
			v[IndicatorName(field, option)] = 0
		}
	}
}
