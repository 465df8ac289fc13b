package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when a vector's width differs from the width
// an artifact was fit on.
var ErrShapeMismatch = errors.New("shape mismatch")

// Scaler transforms raw feature rows into the space the classifier was
// trained in.
type Scaler interface {
	Transform(x mat.Matrix) (*mat.Dense, error)
}

// StandardScaler holds the parameters of a fitted standard scaler:
// transform is (x - Mean) / Scale, column-wise. A zero Scale entry is
// treated as 1, matching a constant training column.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Width is the number of columns the scaler was fit on.
func (s *StandardScaler) Width() int { return len(s.Mean) }

// Validate checks the parameter vectors agree in length and are finite.
func (s *StandardScaler) Validate() error {
	if len(s.Mean) == 0 {
		return errors.New("scaler has no columns")
	}
	if len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("scaler mean has %d values but scale has %d", len(s.Mean), len(s.Scale))
	}
	for i := range s.Mean {
		if !finite(s.Mean[i]) || !finite(s.Scale[i]) {
			return fmt.Errorf("scaler column %d is not finite", i)
		}
	}
	return nil
}

// Transform scales every row of x. The column count must equal Width.
func (s *StandardScaler) Transform(x mat.Matrix) (*mat.Dense, error) {
	r, c := x.Dims()
	if c != s.Width() {
		return nil, fmt.Errorf("%w: scaler expects %d features, got %d", ErrShapeMismatch, s.Width(), c)
	}

	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		scale := s.Scale[j]
		if scale == 0 {
			scale = 1
		}
		return (v - s.Mean[j]) / scale
	}, x)
	return out, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
