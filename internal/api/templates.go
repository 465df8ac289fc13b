package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/banshee-data/risk.report/internal/features"
	"github.com/banshee-data/risk.report/internal/httputil"
	"github.com/banshee-data/risk.report/internal/monitoring"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type formField struct {
	Label   string
	Key     string
	Kind    string // number, slider or select
	Min     string
	Max     string
	Step    string
	Options []string
	Value   string
}

type formSection struct {
	Title  string
	Fields []formField
}

// controls describes the widget for every field a user fills in. Total
// Pressure is derived and has no control.
var controls = map[string]formField{
	features.FieldAge:                {Label: "Age", Kind: "number", Min: "10", Max: "100", Step: "1"},
	features.FieldAcademicPressure:   {Label: "Academic Pressure", Kind: "slider", Min: "0", Max: "10", Step: "1"},
	features.FieldWorkPressure:       {Label: "Work Pressure", Kind: "slider", Min: "0", Max: "10", Step: "1"},
	features.FieldCGPA:               {Label: "CGPA", Kind: "number", Min: "0", Max: "10", Step: "0.01"},
	features.FieldStudySatisfaction:  {Label: "Study Satisfaction", Kind: "slider", Min: "0", Max: "10", Step: "1"},
	features.FieldJobSatisfaction:    {Label: "Job Satisfaction", Kind: "slider", Min: "0", Max: "10", Step: "1"},
	features.FieldSleepDuration:      {Label: "Sleep Duration (hours)", Kind: "number", Min: "0", Max: "24", Step: "0.01"},
	features.FieldWorkStudyHours:     {Label: "Work/Study Hours", Kind: "number", Min: "0", Max: "24", Step: "1"},
	features.FieldCity:               {Label: "City", Kind: "select"},
	features.FieldDegree:             {Label: "Degree Program", Kind: "select"},
	features.FieldDietaryHabits:      {Label: "Dietary Habits", Kind: "select"},
	features.FieldFamilyHistory:      {Label: "Family History of Mental Illness", Kind: "select"},
	features.FieldFinancialStress:    {Label: "Financial Stress", Kind: "slider", Min: "0", Max: "10", Step: "1"},
	features.FieldRelationshipIssues: {Label: "Relationship Issues", Kind: "select"},
	features.FieldSupportSystem:      {Label: "Support System Available", Kind: "select"},
	features.FieldSubstanceUse:       {Label: "Substance Use", Kind: "select"},
}

// The form splits after Dietary Habits.
const firstSectionEnd = features.FieldDietaryHabits

// buildForm lays out the form with values from in, preferring any raw
// values the user posted so a rejected submission is shown as typed.
func buildForm(in features.Input, posted url.Values) []formSection {
	sections := []formSection{{Title: "Student Information"}, {Title: "Mental & Emotional Factors"}}
	cur := 0
	for _, f := range in.Fields() {
		ctl, ok := controls[f.Name]
		if !ok {
			continue
		}
		ctl.Key = features.FieldKey(f.Name)
		ctl.Value = formatValue(f.Name, f.Value)
		if raw, ok := posted[ctl.Key]; ok && len(raw) > 0 {
			ctl.Value = raw[0]
		}
		if ctl.Kind == "select" {
			ctl.Options = features.Domains[f.Name]
		}
		sections[cur].Fields = append(sections[cur].Fields, ctl)
		if f.Name == firstSectionEnd {
			cur = 1
		}
	}
	return sections
}

func formatValue(name string, v any) string {
	switch v := v.(type) {
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case string:
		return v
	default:
		monitoring.Logf("unexpected value type %T for %s", v, name)
		return ""
	}
}

func renderPage(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		monitoring.Logf("failed to render %s: %v", name, err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	httputil.WriteHTML(w, status, buf.Bytes())
}
