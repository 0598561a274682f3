// Package model loads and serves the trained fraud classifier.
//
// The classifier is an external, versioned artifact produced by the offline
// training job and loaded once at process start. The pipeline treats it as an
// opaque scorer: feature vector in, fraud probability out. The only coupling
// is the feature contract: the artifact records the field list it was
// trained with, and Load rejects any artifact that disagrees with the
// encoder.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/mbd888/fraudgate/internal/features"
)

// ErrVectorSize is returned when a vector's length doesn't match the model.
var ErrVectorSize = errors.New("model: feature vector length mismatch")

// Scorer produces a fraud probability in [0,1] for an encoded transaction.
// Implementations must be pure and safe for concurrent use.
type Scorer interface {
	Predict(vector []float64) (float64, error)
	Version() string
}

// LogisticModel is a logistic-regression classifier deserialized from a JSON
// artifact.
type LogisticModel struct {
	ModelVersion string    `json:"version"`
	Features     []string  `json:"features"`
	Weights      []float64 `json:"weights"`
	Intercept    float64   `json:"intercept"`
}

// Load reads a model artifact from disk and validates it against the
// feature-encoder contract.
func Load(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config, not request input
	if err != nil {
		return nil, fmt.Errorf("model: read artifact: %w", err)
	}

	var m LogisticModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("model: parse artifact: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *LogisticModel) validate() error {
	if m.ModelVersion == "" {
		return errors.New("model: artifact missing version")
	}
	if len(m.Weights) != len(m.Features) {
		return fmt.Errorf("model: %d weights for %d features", len(m.Weights), len(m.Features))
	}
	if len(m.Features) != features.VectorSize {
		return fmt.Errorf("model: artifact has %d features, encoder produces %d", len(m.Features), features.VectorSize)
	}
	for i, name := range m.Features {
		if name != features.FieldNames[i] {
			return fmt.Errorf("model: feature %d is %q, encoder contract says %q", i, name, features.FieldNames[i])
		}
	}
	return nil
}

// Predict returns the fraud probability for an encoded transaction.
func (m *LogisticModel) Predict(vector []float64) (float64, error) {
	if len(vector) != len(m.Weights) {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrVectorSize, len(vector), len(m.Weights))
	}
	z := m.Intercept
	for i, w := range m.Weights {
		z += w * vector[i]
	}
	return 1.0 / (1.0 + math.Exp(-z)), nil
}

// Version returns the artifact version string.
func (m *LogisticModel) Version() string {
	return m.ModelVersion
}

// Default returns a baked-in demo model for running without an artifact
// (local development and the in-memory storage mode). It leans on amount and
// odd-hours and is NOT the trained production classifier.
func Default() *LogisticModel {
	return &LogisticModel{
		ModelVersion: "demo-0",
		Features:     features.FieldNames,
		// Mild positive weight on amount, negative on daytime hours.
		Weights:   []float64{0.0004, 0.05, 0.01, 0.01, 0.02, -0.08, 0.0, 0.0},
		Intercept: -1.2,
	}
}

var _ Scorer = (*LogisticModel)(nil)
