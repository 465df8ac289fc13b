package features

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultInput(t *testing.T) {
	t.Parallel()
	in := DefaultInput()

	require.NoError(t, in.Validate())
	assert.Equal(t, 20, in.Age)
	assert.Equal(t, 10, in.TotalPressure)
	assert.Equal(t, "Urban", in.City)
	assert.Equal(t, "Engineering", in.Degree)
}

func TestFieldsFollowFieldNames(t *testing.T) {
	t.Parallel()
	fields := DefaultInput().Fields()
	names := FieldNames()

	require.Len(t, fields, len(names))
	for i, f := range fields {
		assert.Equal(t, names[i], f.Name)
	}
}

func TestInputSetRoundTrip(t *testing.T) {
	t.Parallel()
	want := scenarioInput().WithTotalPressure()

	var got Input
	for _, f := range want.Fields() {
		var raw string
		switch v := f.Value.(type) {
		case int:
			raw = strconv.Itoa(v)
		case float64:
			raw = "7.0"
		case string:
			raw = v
		}
		require.NoError(t, got.Set(f.Name, raw), f.Name)
	}
	assert.Equal(t, want, got)
}

func TestInputSet_Errors(t *testing.T) {
	t.Parallel()
	var in Input

	assert.Error(t, in.Set(FieldAge, "twenty"))
	assert.Error(t, in.Set(FieldAge, "20.5"))
	assert.Error(t, in.Set(FieldCGPA, ""))
	assert.Error(t, in.Set("Favourite Colour", "blue"))

	require.NoError(t, in.Set(FieldWorkStudyHours, " 8.0 "))
	assert.Equal(t, 8, in.WorkStudyHours)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*Input)
		problem string
	}{
		{"age too low", func(in *Input) { in.Age = 9 }, "Age must be at least 10"},
		{"age too high", func(in *Input) { in.Age = 101 }, "Age must be at most 100"},
		{"cgpa above ten", func(in *Input) { in.CGPA = 10.01 }, "CGPA must be at most 10"},
		{"negative sleep", func(in *Input) { in.SleepDuration = -1 }, "Sleep Duration must be at least 0"},
		{"hours above day", func(in *Input) { in.WorkStudyHours = 25 }, "Work/Study Hours must be at most 24"},
		{"slider above ten", func(in *Input) { in.FinancialStress = 11 }, "Financial Stress must be at most 10"},
		{"unknown city", func(in *Input) { in.City = "Atlantis" }, "City must be one of Urban, Suburban, Rural"},
		{"unknown answer", func(in *Input) { in.SubstanceUse = "Maybe" }, "Substance Use must be one of Yes, No"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := DefaultInput()
			tt.mutate(&in)

			err := in.Validate()
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Contains(t, verr.Problems, tt.problem)
		})
	}
}

func TestValidate_Bounds(t *testing.T) {
	t.Parallel()
	in := DefaultInput()
	in.Age, in.CGPA, in.SleepDuration, in.WorkStudyHours = 100, 10, 24, 24
	in.AcademicPressure, in.WorkPressure = 10, 10
	in = in.WithTotalPressure()
	assert.NoError(t, in.Validate())

	in.Age, in.CGPA, in.SleepDuration, in.WorkStudyHours = 10, 0, 0, 0
	assert.NoError(t, in.Validate())
}
