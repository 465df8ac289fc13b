package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Classifier is a binary classifier over scaled feature rows.
type Classifier interface {
	// Predict returns the class label (0 or 1) of every row.
	Predict(x mat.Matrix) ([]int, error)
	// PredictProba returns one row per input row with the probabilities of
	// class 0 and class 1, in that order.
	PredictProba(x mat.Matrix) (*mat.Dense, error)
}

// DefaultThreshold is the positive-class probability above which
// LogisticRegression predicts class 1.
const DefaultThreshold = 0.5

// LogisticRegression is a fitted binary logistic regression.
type LogisticRegression struct {
	Coef      []float64
	Intercept float64
	// Threshold defaults to DefaultThreshold when zero.
	Threshold float64
}

// Width is the number of features the model was fit on.
func (m *LogisticRegression) Width() int { return len(m.Coef) }

// Validate checks coefficients and threshold.
func (m *LogisticRegression) Validate() error {
	if len(m.Coef) == 0 {
		return errors.New("model has no coefficients")
	}
	for i, c := range m.Coef {
		if !finite(c) {
			return fmt.Errorf("coefficient %d is not finite", i)
		}
	}
	if !finite(m.Intercept) {
		return errors.New("intercept is not finite")
	}
	if m.Threshold < 0 || m.Threshold >= 1 {
		return fmt.Errorf("threshold must be in [0, 1), got %g", m.Threshold)
	}
	return nil
}

// EffectiveThreshold is Threshold, or DefaultThreshold when unset.
func (m *LogisticRegression) EffectiveThreshold() float64 {
	if m.Threshold == 0 {
		return DefaultThreshold
	}
	return m.Threshold
}

// decision returns x·coef + intercept for every row.
func (m *LogisticRegression) decision(x mat.Matrix) (*mat.VecDense, error) {
	r, c := x.Dims()
	if c != m.Width() {
		return nil, fmt.Errorf("%w: model expects %d features, got %d", ErrShapeMismatch, m.Width(), c)
	}

	z := mat.NewVecDense(r, nil)
	z.MulVec(x, mat.NewVecDense(c, m.Coef))
	for i := 0; i < r; i++ {
		z.SetVec(i, z.AtVec(i)+m.Intercept)
	}
	return z, nil
}

// PredictProba applies the logistic function to the decision values.
func (m *LogisticRegression) PredictProba(x mat.Matrix) (*mat.Dense, error) {
	z, err := m.decision(x)
	if err != nil {
		return nil, err
	}

	n := z.Len()
	out := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		p := sigmoid(z.AtVec(i))
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Predict labels a row 1 when its positive-class probability exceeds the
// threshold.
func (m *LogisticRegression) Predict(x mat.Matrix) ([]int, error) {
	proba, err := m.PredictProba(x)
	if err != nil {
		return nil, err
	}

	n, _ := proba.Dims()
	labels := make([]int, n)
	for i := range labels {
		if proba.At(i, 1) > m.EffectiveThreshold() {
			labels[i] = 1
		}
	}
	return labels, nil
}

// sigmoid avoids overflow in exp for large |z|.
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
