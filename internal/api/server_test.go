package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/risk.report/internal/features"
	"github.com/banshee-data/risk.report/internal/fsutil"
	"github.com/banshee-data/risk.report/internal/history"
	"github.com/banshee-data/risk.report/internal/model"
	"github.com/banshee-data/risk.report/internal/predlog"
	"github.com/banshee-data/risk.report/internal/testutil"
	"github.com/banshee-data/risk.report/internal/timeutil"
)

type testEnv struct {
	server *Server
	mux    *http.ServeMux
	fs     *fsutil.MemoryFileSystem
	log    *predlog.CSVSink
}

func loadFixtureArtifacts(t *testing.T) *model.Artifacts {
	t.Helper()
	arts, err := model.LoadArtifacts(fsutil.OSFileSystem{}, testutil.WriteArtifacts(t, t.TempDir()))
	require.NoError(t, err)
	return arts
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, loadFixtureArtifacts(t), nil)
}

// newTestEnvWith builds a server over an in-memory CSV log. A non-nil sink
// replaces the CSV log as the write side.
func newTestEnvWith(t *testing.T, arts *model.Artifacts, sink predlog.Sink) *testEnv {
	t.Helper()
	fsys := fsutil.NewMemoryFileSystem()
	csv := predlog.NewCSVSink(fsys, predlog.DefaultCSVPath)
	if sink == nil {
		sink = csv
	}
	writer := predlog.NewSerialized(sink, 4)
	t.Cleanup(func() { writer.Close() })

	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.Local))
	clock.AutoAdvance(time.Minute)

	srv := NewServer(arts, writer, csv, Options{Clock: clock})
	return &testEnv{server: srv, mux: srv.ServeMux(), fs: fsys, log: csv}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func formValues(in features.Input) url.Values {
	v := url.Values{}
	for _, f := range in.Fields() {
		if f.Name == features.FieldTotalPressure {
			continue
		}
		v.Set(features.FieldKey(f.Name), fmt.Sprint(f.Value))
	}
	return v
}

func postForm(v url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(v.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(t *testing.T, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/api/predict", &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestShowForm(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(testutil.NewTestRequest(http.MethodGet, "/"))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	body := w.Body.String()
	for _, want := range []string{
		"Student Depression Prediction",
		"Student Information",
		"Mental &amp; Emotional Factors",
		`name="work_study_hours"`,
		`name="family_history"`,
		`value="7.00"`,
		"<option value=\"Suburban\">Suburban</option>",
		"Clear All",
	} {
		assert.Contains(t, body, want)
	}
	assert.NotContains(t, body, `name="total_pressure"`)
	assert.NotContains(t, body, "Prediction Result")

	w = env.do(testutil.NewTestRequest(http.MethodGet, "/nope"))
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)

	w = env.do(testutil.NewTestRequest(http.MethodDelete, "/"))
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}

func TestPredictForm(t *testing.T) {
	tests := []struct {
		name      string
		input     features.Input
		wantText  string
		wantPct   string
		wantClass int
		wantScore float64
	}{
		{"at risk", testutil.AtRiskInput(), "At Risk of Depression", "83.2%", 1, 0.832},
		{"no risk", testutil.NoRiskInput(), "No Depression Risk", "8.3%", 0, 0.0832},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			w := env.do(postForm(formValues(tt.input)))
			testutil.AssertStatusCode(t, w.Code, http.StatusOK)
			body := w.Body.String()
			assert.Contains(t, body, tt.wantText)
			assert.Contains(t, body, tt.wantPct)
			assert.Contains(t, body, "<progress")
			assert.Contains(t, body, "Recent Predictions")
			assert.Contains(t, body, "Download Predictions (CSV)")
			assert.Contains(t, body, "<th>Work/Study Hours</th>")

			entries, err := env.log.All(context.Background())
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantClass, entries[0].Prediction)
			assert.Equal(t, tt.wantScore, entries[0].RiskScore)
			assert.Equal(t, "2025-06-01 09:00:00", entries[0].Timestamp)
			assert.Equal(t, tt.input, entries[0].Input)
		})
	}
}

func TestPredictForm_KeepsSubmittedValues(t *testing.T) {
	env := newTestEnv(t)
	in := testutil.AtRiskInput()
	in.City = "Rural"

	w := env.do(postForm(formValues(in)))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Contains(t, w.Body.String(), `<option value="Rural" selected>Rural</option>`)
}

func TestPredictForm_PreviewTail(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 12; i++ {
		w := env.do(postForm(formValues(testutil.NoRiskInput())))
		testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	}

	w := env.do(postForm(formValues(testutil.AtRiskInput())))
	body := w.Body.String()
	assert.Equal(t, 10, strings.Count(body, "<tr><td>"))
	assert.NotContains(t, body, "2025-06-01 09:02:00")
	assert.Contains(t, body, "2025-06-01 09:03:00")
	assert.Contains(t, body, "2025-06-01 09:12:00")
}

func TestPredictForm_DerivesTotalPressure(t *testing.T) {
	env := newTestEnv(t)
	v := formValues(testutil.NoRiskInput())
	v.Set("total_pressure", "20")

	w := env.do(postForm(v))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Contains(t, w.Body.String(), "No Depression Risk")
	assert.Contains(t, w.Body.String(), "Total Pressure: 4")
}

func TestPredictForm_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(url.Values)
		problem string
	}{
		{"age below range", func(v url.Values) { v.Set("age", "5") }, "Age must be at least 10"},
		{"cgpa above range", func(v url.Values) { v.Set("cgpa", "10.5") }, "CGPA must be at most 10"},
		{"slider above range", func(v url.Values) { v.Set("financial_stress", "11") }, "Financial Stress must be at most 10"},
		{"missing city", func(v url.Values) { v.Del("city") }, "City is required"},
		{"unknown degree", func(v url.Values) { v.Set("degree", "Law") }, "Degree must be one of Engineering, Arts, Science, Business"},
		{"not a number", func(v url.Values) { v.Set("age", "twenty") }, "Age: invalid integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			v := formValues(features.DefaultInput())
			tt.mutate(v)

			w := env.do(postForm(v))
			testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
			assert.Contains(t, w.Body.String(), tt.problem)
			assert.NotContains(t, w.Body.String(), "Prediction Result")

			_, err := env.log.All(context.Background())
			assert.ErrorIs(t, err, predlog.ErrLogNotFound)
		})
	}
}

func TestPredictForm_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(testutil.NewTestRequest(http.MethodGet, "/predict"))
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
	assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
}

// brokenArtifacts passes loading checks that LoadArtifacts would catch, so
// the scaler fails at request time.
func brokenArtifacts() *model.Artifacts {
	return &model.Artifacts{
		Schema:       features.Schema{features.FieldAge},
		Scaler:       &model.StandardScaler{Mean: []float64{0, 0}, Scale: []float64{1, 1}},
		Classifier:   &model.LogisticRegression{Coef: []float64{1, 1}},
		ModelVersion: "broken",
	}
}

func TestPredict_InferenceError(t *testing.T) {
	env := newTestEnvWith(t, brokenArtifacts(), nil)

	w := env.do(postForm(formValues(features.DefaultInput())))
	testutil.AssertStatusCode(t, w.Code, http.StatusInternalServerError)
	assert.Contains(t, w.Body.String(), "Error during prediction: transform")
	assert.NotContains(t, w.Body.String(), "Prediction Result")

	w = env.do(postJSON(t, features.DefaultInput()))
	testutil.AssertStatusCode(t, w.Code, http.StatusInternalServerError)
	assert.Contains(t, w.Body.String(), "Error during prediction")

	_, err := env.log.All(context.Background())
	assert.ErrorIs(t, err, predlog.ErrLogNotFound)
}

type failingSink struct{}

func (failingSink) Append(context.Context, predlog.Entry) error {
	return errors.New("disk full")
}

func TestPredict_LogFailureStillShowsResult(t *testing.T) {
	env := newTestEnvWith(t, loadFixtureArtifacts(t), failingSink{})

	w := env.do(postForm(formValues(testutil.AtRiskInput())))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	body := w.Body.String()
	assert.Contains(t, body, "At Risk of Depression")
	assert.Contains(t, body, "Prediction could not be saved to the log: disk full")
	assert.Contains(t, body, history.MsgLogNotFound)

	w = env.do(postJSON(t, testutil.AtRiskInput()))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var resp predictResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Logged)
	assert.Equal(t, "disk full", resp.LogError)
}

func TestPredictJSON(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(postJSON(t, testutil.AtRiskInput()))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp predictResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Prediction)
	assert.InDelta(t, 0.832, resp.RiskScore, 1e-3)
	assert.Equal(t, "At Risk", resp.Label)
	assert.Equal(t, "At Risk of Depression", resp.Result)
	assert.Equal(t, testutil.FixtureModelVersion, resp.ModelVersion)
	assert.Equal(t, "2025-06-01 09:00:00", resp.Timestamp)
	assert.True(t, resp.Logged)
	assert.Len(t, resp.Features, len(testutil.TrainingColumns()))
	assert.Equal(t, 1.0, resp.Features["City_Urban"])
	assert.Equal(t, 0.0, resp.Features["City_Rural"])
	assert.Equal(t, 14.0, resp.Features[features.FieldTotalPressure])

	entries, err := env.log.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPredictJSON_Defaults(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/predict",
		strings.NewReader(`{"academic_pressure": 9, "work_pressure": 9, "total_pressure": 0}`))

	w := env.do(req)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var resp predictResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 18, resp.Input.TotalPressure)
	assert.Equal(t, 20, resp.Input.Age)
	assert.Equal(t, 1, resp.Prediction)
}

func TestPredictJSON_Errors(t *testing.T) {
	env := newTestEnv(t)

	t.Run("malformed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"age":`))
		w := env.do(req)
		testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
	})

	t.Run("unknown field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{"height": 180}`))
		w := env.do(req)
		testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
	})

	t.Run("out of range", func(t *testing.T) {
		in := features.DefaultInput()
		in.Age, in.SleepDuration = 101, 25
		w := env.do(postJSON(t, in))
		testutil.AssertStatusCode(t, w.Code, http.StatusUnprocessableEntity)

		var resp validationResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.ElementsMatch(t, []string{
			"Age must be at most 100",
			"Sleep Duration must be at most 24",
		}, resp.Problems)
	})

	t.Run("wrong method", func(t *testing.T) {
		w := env.do(testutil.NewTestRequest(http.MethodGet, "/api/predict"))
		testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
	})

	_, err := env.log.All(context.Background())
	assert.ErrorIs(t, err, predlog.ErrLogNotFound)
}

func TestConcurrentPredictions(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.mux)
	defer ts.Close()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := testutil.NoRiskInput()
			if i%2 == 0 {
				in = testutil.AtRiskInput()
			}
			body, _ := json.Marshal(in)
			resp, err := http.Post(ts.URL+"/api/predict", "application/json", bytes.NewReader(body))
			if err != nil {
				errs <- err
				return
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)
			if resp.StatusCode != http.StatusOK {
				errs <- fmt.Errorf("status %d", resp.StatusCode)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	entries, err := env.log.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, n)

	atRisk := 0
	for _, e := range entries {
		atRisk += e.Prediction
	}
	assert.Equal(t, n/2, atRisk)
}
