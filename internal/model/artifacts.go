package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/banshee-data/risk.report/internal/features"
	"github.com/banshee-data/risk.report/internal/fsutil"
	"github.com/banshee-data/risk.report/internal/security"
)

// Default artifact file names inside the artifact directory.
const (
	ManifestFile = "manifest.json"
	SchemaFile   = "feature_columns.json"
	ScalerFile   = "scaler.json"
	ModelFile    = "model.json"
)

// maxArtifactSize caps every artifact file at 4MB.
const maxArtifactSize = 4 * 1024 * 1024

// Manifest optionally renames the artifact files. Names are relative to
// the artifact directory and may not escape it.
type Manifest struct {
	Schema string `json:"schema,omitempty"`
	Scaler string `json:"scaler,omitempty"`
	Model  string `json:"model,omitempty"`
}

type modelFile struct {
	Type      string    `json:"type"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
	Threshold float64   `json:"threshold"`
	Version   string    `json:"version"`
}

// Artifacts is the immutable bundle loaded once at start-up and shared by
// every request. Nothing mutates it after LoadArtifacts returns.
type Artifacts struct {
	Schema       features.Schema
	Scaler       *StandardScaler
	Classifier   *LogisticRegression
	ModelVersion string
	Dir          string
}

// LoadArtifacts reads the schema, scaler and model from dir and checks they
// agree on the feature width.
func LoadArtifacts(fsys fsutil.FileSystem, dir string) (*Artifacts, error) {
	manifest := Manifest{Schema: SchemaFile, Scaler: ScalerFile, Model: ModelFile}
	if err := readArtifact(fsys, dir, ManifestFile, &manifest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var cols []string
	if err := readArtifact(fsys, dir, manifest.Schema, &cols); err != nil {
		return nil, err
	}
	schema, err := features.NewSchema(cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", manifest.Schema, err)
	}

	scaler := &StandardScaler{}
	if err := readArtifact(fsys, dir, manifest.Scaler, scaler); err != nil {
		return nil, err
	}
	if err := scaler.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", manifest.Scaler, err)
	}

	var mf modelFile
	if err := readArtifact(fsys, dir, manifest.Model, &mf); err != nil {
		return nil, err
	}
	if mf.Type != "" && mf.Type != "logistic_regression" {
		return nil, fmt.Errorf("%s: unsupported model type %q", manifest.Model, mf.Type)
	}
	clf := &LogisticRegression{Coef: mf.Coef, Intercept: mf.Intercept, Threshold: mf.Threshold}
	if err := clf.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", manifest.Model, err)
	}

	if scaler.Width() != len(schema) {
		return nil, fmt.Errorf("%w: scaler was fit on %d features but schema has %d", ErrShapeMismatch, scaler.Width(), len(schema))
	}
	if clf.Width() != len(schema) {
		return nil, fmt.Errorf("%w: model was fit on %d features but schema has %d", ErrShapeMismatch, clf.Width(), len(schema))
	}

	version := mf.Version
	if version == "" {
		version = "unversioned"
	}

	return &Artifacts{
		Schema:       schema,
		Scaler:       scaler,
		Classifier:   clf,
		ModelVersion: version,
		Dir:          dir,
	}, nil
}

func readArtifact(fsys fsutil.FileSystem, dir, name string, v any) error {
	path, err := security.ResolveWithin(dir, name)
	if err != nil {
		return fmt.Errorf("artifact %s: %w", name, err)
	}

	info, err := fsys.Stat(path)
	if err != nil {
		return fmt.Errorf("artifact %s: %w", name, err)
	}
	if info.Size() > maxArtifactSize {
		return fmt.Errorf("artifact %s too large: %d bytes (max %d)", name, info.Size(), maxArtifactSize)
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		return fmt.Errorf("artifact %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Infer aligns in against the schema and runs the scaler and classifier.
// The aligned vector is returned alongside the result for display.
func (a *Artifacts) Infer(in features.Input, mode features.EncodingMode) (features.Aligned, Result, error) {
	vec := features.Align(in, a.Schema, mode)
	res, err := Predict(vec, a.Scaler, a.Classifier)
	return vec, res, err
}
