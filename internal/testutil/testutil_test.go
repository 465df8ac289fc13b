package testutil

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/risk.report/internal/features"
)

func TestAssertHelpersPass(t *testing.T) {
	t.Parallel()
	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertNoError(t, nil)
}

func TestNewTestRequest(t *testing.T) {
	t.Parallel()
	req := NewTestRequest(http.MethodGet, "/history")
	if req.Method != http.MethodGet || req.URL.Path != "/history" {
		t.Errorf("unexpected request %s %s", req.Method, req.URL.Path)
	}
}

func TestTrainingColumns(t *testing.T) {
	t.Parallel()
	cols := TrainingColumns()

	if _, err := features.NewSchema(cols); err != nil {
		t.Fatalf("training columns do not form a schema: %v", err)
	}
	// 10 numeric fields, 3+4+3 multi-valued indicators, 4 yes/no pairs
	if len(cols) != 10+10+8 {
		t.Errorf("got %d columns, want 28", len(cols))
	}
}

func TestWriteArtifacts(t *testing.T) {
	t.Parallel()
	dir := WriteArtifacts(t, t.TempDir())

	for _, name := range []string{"feature_columns.json", "scaler.json", "model.json"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !json.Valid(data) {
			t.Errorf("%s is not valid JSON", name)
		}
	}
}

func TestFixtureInputsAreValid(t *testing.T) {
	t.Parallel()
	for _, in := range []features.Input{AtRiskInput(), NoRiskInput()} {
		if err := in.Validate(); err != nil {
			t.Errorf("fixture input invalid: %v", err)
		}
	}
	if AtRiskInput().TotalPressure != 14 {
		t.Errorf("AtRiskInput total pressure = %d, want 14", AtRiskInput().TotalPressure)
	}
}
