// Package features turns a student's form answers into the fixed, ordered
// feature vector the risk classifier was trained on.
package features

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Column names as they appear in the training data and in the prediction log.
const (
	FieldAge                = "Age"
	FieldAcademicPressure   = "Academic Pressure"
	FieldWorkPressure       = "Work Pressure"
	FieldCGPA               = "CGPA"
	FieldStudySatisfaction  = "Study Satisfaction"
	FieldJobSatisfaction    = "Job Satisfaction"
	FieldSleepDuration      = "Sleep Duration"
	FieldWorkStudyHours     = "Work/Study Hours"
	FieldTotalPressure      = "Total Pressure"
	FieldCity               = "City"
	FieldDegree             = "Degree"
	FieldDietaryHabits      = "Dietary Habits"
	FieldFamilyHistory      = "Family History of Mental Illness"
	FieldFinancialStress    = "Financial Stress"
	FieldRelationshipIssues = "Relationship Issues"
	FieldSupportSystem      = "Support System Available"
	FieldSubstanceUse       = "Substance Use"
)

// fieldNames is the canonical column order of an Input.
var fieldNames = []string{
	FieldAge,
	FieldAcademicPressure,
	FieldWorkPressure,
	FieldCGPA,
	FieldStudySatisfaction,
	FieldJobSatisfaction,
	FieldSleepDuration,
	FieldWorkStudyHours,
	FieldTotalPressure,
	FieldCity,
	FieldDegree,
	FieldDietaryHabits,
	FieldFamilyHistory,
	FieldFinancialStress,
	FieldRelationshipIssues,
	FieldSupportSystem,
	FieldSubstanceUse,
}

// FieldNames returns the input column names in canonical order.
func FieldNames() []string {
	return append([]string(nil), fieldNames...)
}

// fieldKeys maps column names to the snake_case keys used in JSON bodies
// and form posts.
var fieldKeys = func() map[string]string {
	keys := make(map[string]string, len(fieldNames))
	t := reflect.TypeOf(Input{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		keys[f.Tag.Get("col")] = f.Tag.Get("json")
	}
	return keys
}()

// FieldKey returns the JSON and form key for a column name, e.g.
// "work_study_hours" for "Work/Study Hours".
func FieldKey(name string) string {
	return fieldKeys[name]
}

// Input is one student's answers. TotalPressure is derived from the two
// pressure sliders and is never taken from the caller; see WithTotalPressure.
type Input struct {
	Age                int     `json:"age" col:"Age" validate:"gte=10,lte=100"`
	AcademicPressure   int     `json:"academic_pressure" col:"Academic Pressure" validate:"gte=0,lte=10"`
	WorkPressure       int     `json:"work_pressure" col:"Work Pressure" validate:"gte=0,lte=10"`
	CGPA               float64 `json:"cgpa" col:"CGPA" validate:"gte=0,lte=10"`
	StudySatisfaction  int     `json:"study_satisfaction" col:"Study Satisfaction" validate:"gte=0,lte=10"`
	JobSatisfaction    int     `json:"job_satisfaction" col:"Job Satisfaction" validate:"gte=0,lte=10"`
	SleepDuration      float64 `json:"sleep_duration" col:"Sleep Duration" validate:"gte=0,lte=24"`
	WorkStudyHours     int     `json:"work_study_hours" col:"Work/Study Hours" validate:"gte=0,lte=24"`
	TotalPressure      int     `json:"total_pressure" col:"Total Pressure" validate:"gte=0,lte=20"`
	City               string  `json:"city" col:"City" validate:"oneof=Urban Suburban Rural"`
	Degree             string  `json:"degree" col:"Degree" validate:"oneof=Engineering Arts Science Business"`
	DietaryHabits      string  `json:"dietary_habits" col:"Dietary Habits" validate:"oneof=Healthy Unhealthy Moderate"`
	FamilyHistory      string  `json:"family_history" col:"Family History of Mental Illness" validate:"oneof=Yes No"`
	FinancialStress    int     `json:"financial_stress" col:"Financial Stress" validate:"gte=0,lte=10"`
	RelationshipIssues string  `json:"relationship_issues" col:"Relationship Issues" validate:"oneof=Yes No"`
	SupportSystem      string  `json:"support_system" col:"Support System Available" validate:"oneof=Yes No"`
	SubstanceUse       string  `json:"substance_use" col:"Substance Use" validate:"oneof=Yes No"`
}

// DefaultInput returns the values the form starts with.
func DefaultInput() Input {
	in := Input{
		Age:                20,
		AcademicPressure:   5,
		WorkPressure:       5,
		CGPA:               7.0,
		StudySatisfaction:  5,
		JobSatisfaction:    5,
		SleepDuration:      7.0,
		WorkStudyHours:     8,
		City:               Domains[FieldCity][0],
		Degree:             Domains[FieldDegree][0],
		DietaryHabits:      Domains[FieldDietaryHabits][0],
		FamilyHistory:      Domains[FieldFamilyHistory][0],
		FinancialStress:    5,
		RelationshipIssues: Domains[FieldRelationshipIssues][0],
		SupportSystem:      Domains[FieldSupportSystem][0],
		SubstanceUse:       Domains[FieldSubstanceUse][0],
	}
	return in.WithTotalPressure()
}

// WithTotalPressure returns a copy of in with TotalPressure recomputed as
// AcademicPressure + WorkPressure.
func (in Input) WithTotalPressure() Input {
	in.TotalPressure = in.AcademicPressure + in.WorkPressure
	return in
}

// Field is one named value of an Input. Value is an int, float64 or string.
type Field struct {
	Name  string
	Value any
}

// Categorical reports whether the field holds a category label.
func (f Field) Categorical() bool {
	_, ok := f.Value.(string)
	return ok
}

// Fields returns the input's values in canonical column order.
func (in Input) Fields() []Field {
	return []Field{
		{FieldAge, in.Age},
		{FieldAcademicPressure, in.AcademicPressure},
		{FieldWorkPressure, in.WorkPressure},
		{FieldCGPA, in.CGPA},
		{FieldStudySatisfaction, in.StudySatisfaction},
		{FieldJobSatisfaction, in.JobSatisfaction},
		{FieldSleepDuration, in.SleepDuration},
		{FieldWorkStudyHours, in.WorkStudyHours},
		{FieldTotalPressure, in.TotalPressure},
		{FieldCity, in.City},
		{FieldDegree, in.Degree},
		{FieldDietaryHabits, in.DietaryHabits},
		{FieldFamilyHistory, in.FamilyHistory},
		{FieldFinancialStress, in.FinancialStress},
		{FieldRelationshipIssues, in.RelationshipIssues},
		{FieldSupportSystem, in.SupportSystem},
		{FieldSubstanceUse, in.SubstanceUse},
	}
}

// Set parses raw into the field with the given column name. Numeric fields
// accept anything strconv can parse; surrounding whitespace is ignored.
func (in *Input) Set(name, raw string) error {
	raw = strings.TrimSpace(raw)

	setInt := func(dst *int) error {
		v, err := strconv.Atoi(raw)
		if err != nil {
			// The log may hold "8.0" for integer columns.
			f, ferr := strconv.ParseFloat(raw, 64)
			if ferr != nil || f != float64(int(f)) {
				return fmt.Errorf("%s: invalid integer %q", name, raw)
			}
			v = int(f)
		}
		*dst = v
		return nil
	}
	setFloat := func(dst *float64) error {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid number %q", name, raw)
		}
		*dst = v
		return nil
	}

	switch name {
	case FieldAge:
		return setInt(&in.Age)
	case FieldAcademicPressure:
		return setInt(&in.AcademicPressure)
	case FieldWorkPressure:
		return setInt(&in.WorkPressure)
	case FieldCGPA:
		return setFloat(&in.CGPA)
	case FieldStudySatisfaction:
		return setInt(&in.StudySatisfaction)
	case FieldJobSatisfaction:
		return setInt(&in.JobSatisfaction)
	case FieldSleepDuration:
		return setFloat(&in.SleepDuration)
	case FieldWorkStudyHours:
		return setInt(&in.WorkStudyHours)
	case FieldTotalPressure:
		return setInt(&in.TotalPressure)
	case FieldFinancialStress:
		return setInt(&in.FinancialStress)
	case FieldCity:
		in.City = raw
	case FieldDegree:
		in.Degree = raw
	case FieldDietaryHabits:
		in.DietaryHabits = raw
	case FieldFamilyHistory:
		in.FamilyHistory = raw
	case FieldRelationshipIssues:
		in.RelationshipIssues = raw
	case FieldSupportSystem:
		in.SupportSystem = raw
	case FieldSubstanceUse:
		in.SubstanceUse = raw
	default:
		return fmt.Errorf("unknown field %q", name)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("col")
	})
	return v
}

// ValidationError lists every field that is out of bounds.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Problems, "; ")
}

// Validate checks the form bounds: Age 10-100, CGPA 0-10, Sleep Duration
// 0-24, Work/Study Hours 0-24, sliders 0-10 and categoricals within their
// domains.
func (in Input) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate input: %w", err)
	}

	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		verr.Problems = append(verr.Problems, describe(fe))
	}
	return verr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s failed %s check", fe.Field(), fe.Tag())
	}
}
