package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/banshee-data/risk.report/internal/features"
	"github.com/banshee-data/risk.report/internal/history"
	"github.com/banshee-data/risk.report/internal/httputil"
	"github.com/banshee-data/risk.report/internal/model"
	"github.com/banshee-data/risk.report/internal/monitoring"
	"github.com/banshee-data/risk.report/internal/predlog"
)

// maxBodyBytes caps form and JSON submissions.
const maxBodyBytes = 64 * 1024

const (
	resultAtRisk = "At Risk of Depression"
	resultNoRisk = "No Depression Risk"
)

type resultView struct {
	Text          string
	AtRisk        bool
	Percent       string
	Probability   float64
	TotalPressure int
}

type previewView struct {
	Header  []string
	Rows    [][]string
	Message string
}

type predictPage struct {
	Title    string
	Sections []formSection
	Problems []string
	Error    string
	Result   *resultView
	LogError string
	Preview  *previewView
}

func newPredictPage(in features.Input, posted url.Values) *predictPage {
	return &predictPage{
		Title:    "Student Depression Risk",
		Sections: buildForm(in, posted),
	}
}

// outcome is a scored and stamped prediction. LogErr is set when the entry
// could not be appended; the result is still valid.
type outcome struct {
	Entry   predlog.Entry
	Result  model.Result
	Aligned features.Aligned
	LogErr  error
}

// predict scores in and appends it to the log. Inference failures are
// returned as errors and nothing is logged.
func (s *Server) predict(ctx context.Context, in features.Input) (outcome, error) {
	vec, res, err := s.arts.Infer(in, s.opts.Encoding)
	if err != nil {
		predictionErrors.Inc()
		return outcome{}, err
	}

	e := predlog.NewEntry(s.clock.Now(), in, res)
	predictionsTotal.WithLabelValues(e.Label()).Inc()
	riskScores.Observe(res.Probability)

	out := outcome{Entry: e, Result: res, Aligned: vec}
	if err := s.sink.Append(ctx, e); err != nil {
		logAppendFailures.Inc()
		monitoring.Logf("failed to log prediction: %v", err)
		out.LogErr = err
	}
	return out, nil
}

func resultText(r model.Result) string {
	if r.AtRisk() {
		return resultAtRisk
	}
	return resultNoRisk
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

// parseForm reads every user-supplied field from form. Total Pressure is
// always derived from the two pressure sliders.
func parseForm(form url.Values) (features.Input, error) {
	in := features.DefaultInput()
	var problems []string
	for _, name := range features.FieldNames() {
		if name == features.FieldTotalPressure {
			continue
		}
		raw := strings.TrimSpace(form.Get(features.FieldKey(name)))
		if raw == "" {
			problems = append(problems, name+" is required")
			continue
		}
		if err := in.Set(name, raw); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return in, &features.ValidationError{Problems: problems}
	}

	in = in.WithTotalPressure()
	if err := in.Validate(); err != nil {
		return in, err
	}
	return in, nil
}

func (s *Server) showForm(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodHead)
		return
	}
	renderPage(w, http.StatusOK, "index.html", newPredictPage(features.DefaultInput(), nil))
}

func (s *Server) predictForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		page := newPredictPage(features.DefaultInput(), nil)
		page.Problems = []string{"could not read form: " + err.Error()}
		renderPage(w, http.StatusBadRequest, "index.html", page)
		return
	}

	in, err := parseForm(r.PostForm)
	page := newPredictPage(in, r.PostForm)
	if err != nil {
		invalidInputs.Inc()
		var verr *features.ValidationError
		if errors.As(err, &verr) {
			page.Problems = verr.Problems
		} else {
			page.Problems = []string{err.Error()}
		}
		renderPage(w, http.StatusBadRequest, "index.html", page)
		return
	}

	out, err := s.predict(r.Context(), in)
	if err != nil {
		page.Error = "Error during prediction: " + err.Error()
		renderPage(w, http.StatusInternalServerError, "index.html", page)
		return
	}

	page.Result = &resultView{
		Text:          resultText(out.Result),
		AtRisk:        out.Result.AtRisk(),
		Percent:       formatPercent(out.Result.Probability),
		Probability:   out.Result.Probability,
		TotalPressure: in.TotalPressure,
	}
	if out.LogErr != nil {
		page.LogError = "Prediction could not be saved to the log: " + out.LogErr.Error()
	}
	page.Preview = s.preview(r.Context())
	renderPage(w, http.StatusOK, "index.html", page)
}

// preview reads the last rows of the log for the result page.
func (s *Server) preview(ctx context.Context) *previewView {
	entries, err := s.log.Tail(ctx, s.opts.PreviewLimit)
	switch {
	case errors.Is(err, predlog.ErrLogNotFound):
		return &previewView{Message: history.MsgLogNotFound}
	case err != nil:
		monitoring.Logf("failed to read prediction log: %v", err)
		return &previewView{Message: "Could not read the prediction log: " + err.Error()}
	case len(entries) == 0:
		return &previewView{Message: history.MsgEmpty}
	}

	p := &previewView{Header: predlog.Header()}
	for _, e := range entries {
		p.Rows = append(p.Rows, e.Record())
	}
	return p
}

type predictResponse struct {
	Prediction   int                `json:"prediction"`
	RiskScore    float64            `json:"risk_score"`
	Label        string             `json:"label"`
	Result       string             `json:"result"`
	Timestamp    string             `json:"timestamp"`
	ModelVersion string             `json:"model_version"`
	Input        features.Input     `json:"input"`
	Features     map[string]float64 `json:"features"`
	Logged       bool               `json:"logged"`
	LogError     string             `json:"log_error,omitempty"`
}

type validationResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems"`
}

// predictJSON scores a JSON body. Omitted fields take the form defaults and
// total_pressure is always recomputed.
func (s *Server) predictJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}

	in := features.DefaultInput()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		invalidInputs.Inc()
		httputil.BadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	in = in.WithTotalPressure()

	if err := in.Validate(); err != nil {
		invalidInputs.Inc()
		var verr *features.ValidationError
		if errors.As(err, &verr) {
			httputil.WriteJSON(w, http.StatusUnprocessableEntity, validationResponse{Error: "invalid input", Problems: verr.Problems})
			return
		}
		httputil.UnprocessableEntity(w, err.Error())
		return
	}

	out, err := s.predict(r.Context(), in)
	if err != nil {
		httputil.InternalServerError(w, "Error during prediction: "+err.Error())
		return
	}

	resp := predictResponse{
		Prediction:   out.Result.Class,
		RiskScore:    out.Result.Probability,
		Label:        out.Entry.Label(),
		Result:       resultText(out.Result),
		Timestamp:    out.Entry.Timestamp,
		ModelVersion: s.arts.ModelVersion,
		Input:        in,
		Features:     make(map[string]float64, len(out.Aligned.Values)),
		Logged:       out.LogErr == nil,
	}
	for i, col := range out.Aligned.Schema {
		resp.Features[col] = out.Aligned.Values[i]
	}
	if out.LogErr != nil {
		resp.LogError = out.LogErr.Error()
	}
	httputil.WriteJSONOK(w, resp)
}
