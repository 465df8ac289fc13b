// Package testutil provides shared test helpers and model artifact fixtures.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/risk.report/internal/features"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// TrainingColumns returns the column set a full-data get_dummies would
// produce: every numeric field, then one indicator per domain value.
func TrainingColumns() []string {
	var cols, categorical []string
	for _, f := range features.DefaultInput().Fields() {
		if f.Categorical() {
			categorical = append(categorical, f.Name)
			continue
		}
		cols = append(cols, f.Name)
	}
	for _, name := range categorical {
		for _, v := range features.Domains[name] {
			cols = append(cols, features.IndicatorName(name, v))
		}
	}
	return cols
}

// Fixture model parameters. Only Total Pressure carries weight, centred on
// 10 with scale 5, so Total Pressure 14 scores about 0.83 (at risk) and
// Total Pressure 4 about 0.08 (no risk).
const (
	FixturePressureMean  = 10.0
	FixturePressureScale = 5.0
	FixturePressureCoef  = 2.0
	FixtureModelVersion  = "fixture-v1"
)

// WriteArtifacts writes a consistent schema, scaler and model into dir and
// returns dir.
func WriteArtifacts(t testing.TB, dir string) string {
	t.Helper()

	cols := TrainingColumns()
	mean := make([]float64, len(cols))
	scale := make([]float64, len(cols))
	coef := make([]float64, len(cols))
	for i, c := range cols {
		scale[i] = 1
		if c == features.FieldTotalPressure {
			mean[i] = FixturePressureMean
			scale[i] = FixturePressureScale
			coef[i] = FixturePressureCoef
		}
	}

	WriteJSON(t, filepath.Join(dir, "feature_columns.json"), cols)
	WriteJSON(t, filepath.Join(dir, "scaler.json"), map[string]any{"mean": mean, "scale": scale})
	WriteJSON(t, filepath.Join(dir, "model.json"), map[string]any{
		"type":      "logistic_regression",
		"coef":      coef,
		"intercept": 0.0,
		"version":   FixtureModelVersion,
	})
	return dir
}

// WriteJSON marshals v to path, failing the test on error.
func WriteJSON(t testing.TB, path string, v any) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// AtRiskInput is a valid input the fixture model scores as at risk.
func AtRiskInput() features.Input {
	in := features.DefaultInput()
	in.AcademicPressure, in.WorkPressure = 8, 6
	in.FamilyHistory, in.RelationshipIssues, in.SupportSystem, in.SubstanceUse = "No", "No", "No", "No"
	return in.WithTotalPressure()
}

// NoRiskInput is a valid input the fixture model scores as no risk.
func NoRiskInput() features.Input {
	in := features.DefaultInput()
	in.AcademicPressure, in.WorkPressure = 2, 2
	return in.WithTotalPressure()
}
