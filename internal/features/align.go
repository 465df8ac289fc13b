package features

import (
	"errors"
	"fmt"
	"strings"
)

// Schema is the ordered list of columns the scaler and classifier were fit
// on. Treat it as read-only once built.
type Schema []string

// NewSchema validates and copies cols. Names must be non-empty and unique.
func NewSchema(cols []string) (Schema, error) {
	if len(cols) == 0 {
		return nil, errors.New("schema has no columns")
	}
	seen := make(map[string]struct{}, len(cols))
	for i, c := range cols {
		if strings.TrimSpace(c) == "" {
			return nil, fmt.Errorf("schema column %d is empty", i)
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("schema column %q appears twice", c)
		}
		seen[c] = struct{}{}
	}
	return Schema(append([]string(nil), cols...)), nil
}

// Index returns the position of name in the schema, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c == name {
			return i
		}
	}
	return -1
}

// Aligned is a feature vector projected onto a Schema: Values[i] belongs to
// Schema[i] and len(Values) == len(Schema) always.
type Aligned struct {
	Schema Schema
	Values []float64
}

// Value returns the value of the named column.
func (a Aligned) Value(name string) (float64, bool) {
	i := a.Schema.Index(name)
	if i < 0 {
		return 0, false
	}
	return a.Values[i], true
}

// Project reconciles v with schema: columns the schema expects but v lacks
// are set to 0, columns v has but the schema does not are dropped, and the
// result follows schema order.
func Project(v Vector, schema Schema) Aligned {
	values := make([]float64, len(schema))
	for i, col := range schema {
		values[i] = v[col]
	}
	return Aligned{Schema: schema, Values: values}
}

// Align derives Total Pressure, encodes raw and projects it onto schema.
func Align(raw Input, schema Schema, mode EncodingMode) Aligned {
	return Project(Encode(raw.WithTotalPressure(), mode), schema)
}
