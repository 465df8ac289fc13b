// Package model runs the pre-trained scaler and classifier over aligned
// feature vectors.
package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/risk.report/internal/features"
)

// Result is the classifier's verdict for one input.
type Result struct {
	Class       int     `json:"prediction"`
	Probability float64 `json:"risk_score"`
}

// AtRisk reports whether the positive class was predicted.
func (r Result) AtRisk() bool { return r.Class == 1 }

// InferenceError wraps any failure raised while scaling or classifying.
// Stage is one of "transform", "predict" or "predict_proba".
type InferenceError struct {
	Stage string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// Predict scales vec, classifies it and takes the positive-class
// probability. Errors and panics from the scaler or classifier come back
// as *InferenceError; nothing is retried.
func Predict(vec features.Aligned, scaler Scaler, clf Classifier) (res Result, err error) {
	stage := "transform"
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = &InferenceError{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if len(vec.Values) == 0 {
		return Result{}, &InferenceError{Stage: stage, Err: errors.New("empty feature vector")}
	}

	x := mat.NewDense(1, len(vec.Values), append([]float64(nil), vec.Values...))
	scaled, err := scaler.Transform(x)
	if err != nil {
		return Result{}, &InferenceError{Stage: stage, Err: err}
	}

	stage = "predict"
	labels, err := clf.Predict(scaled)
	if err != nil {
		return Result{}, &InferenceError{Stage: stage, Err: err}
	}
	if len(labels) != 1 {
		return Result{}, &InferenceError{Stage: stage, Err: fmt.Errorf("expected 1 label, got %d", len(labels))}
	}

	stage = "predict_proba"
	proba, err := clf.PredictProba(scaled)
	if err != nil {
		return Result{}, &InferenceError{Stage: stage, Err: err}
	}
	rows, cols := proba.Dims()
	if rows != 1 || cols < 2 {
		return Result{}, &InferenceError{Stage: stage, Err: fmt.Errorf("%w: probabilities are %dx%d", ErrShapeMismatch, rows, cols)}
	}
	p := proba.At(0, 1)
	if math.IsNaN(p) || p < 0 || p > 1 {
		return Result{}, &InferenceError{Stage: stage, Err: fmt.Errorf("probability %v outside [0, 1]", p)}
	}

	return Result{Class: labels[0], Probability: p}, nil
}
