package model

import (
	"errors"
	"fmt"
)

const (
	// KindLogistic is a binary logistic regression.
	KindLogistic = "logistic"
	// KindForest is an averaged ensemble of decision trees.
	KindForest = "forest"

	binaryClasses = 2
)

var (
	// ErrNotFound is returned when the artifact does not exist.
	ErrNotFound = errors.New("model artifact not found")
	// ErrInvalid is returned when the artifact cannot be decoded or fails validation.
	ErrInvalid = errors.New("invalid model artifact")
	// ErrShape is returned when the input batch does not match the model.
	ErrShape = errors.New("feature shape mismatch")
)

// Classifier estimates per-class probabilities for a batch of rows.
type Classifier interface {
	PredictProba(rows [][]float64) ([][]float64, error)
	Features() int
	Classes() int
}

// Artifact is the serialized form of a trained classifier.
type Artifact struct {
	Kind     string          `yaml:"kind" json:"kind"`
	Version  string          `yaml:"version,omitempty" json:"version,omitempty"`
	Features int             `yaml:"features" json:"features"`
	Classes  int             `yaml:"classes" json:"classes"`
	Logistic *LogisticParams `yaml:"logistic,omitempty" json:"logistic,omitempty"`
	Forest   *ForestParams   `yaml:"forest,omitempty" json:"forest,omitempty"`
}

// Classifier validates the artifact and builds the matching classifier.
func (a *Artifact) Classifier() (Classifier, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalid)
	}
	if a.Features <= 0 {
		return nil, fmt.Errorf("%w: features must be positive, got %d", ErrInvalid, a.Features)
	}
	if a.Classes != binaryClasses {
		return nil, fmt.Errorf("%w: only binary classifiers are supported, got %d classes", ErrInvalid, a.Classes)
	}

	switch a.Kind {
	case KindLogistic:
		return newLogistic(a.Features, a.Logistic)
	case KindForest:
		return newForest(a.Features, a.Classes, a.Forest)
	default:
		return nil, fmt.Errorf("%w: unsupported kind %q", ErrInvalid, a.Kind)
	}
}

func checkBatch(rows [][]float64, features int) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: empty batch", ErrShape)
	}
	for i, r := range rows {
		if len(r) != features {
			return fmt.Errorf("%w: row %d has %d features, model expects %d", ErrShape, i, len(r), features)
		}
	}
	return nil
}
