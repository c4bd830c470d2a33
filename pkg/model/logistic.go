package model

import (
	"fmt"
	"math"
)

// LogisticParams holds the coefficients of a binary logistic regression.
type LogisticParams struct {
	Weights   []float64 `yaml:"weights" json:"weights"`
	Intercept float64   `yaml:"intercept" json:"intercept"`
}

type logistic struct {
	features  int
	weights   []float64
	intercept float64
}

func newLogistic(features int, p *LogisticParams) (*logistic, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: logistic parameters missing", ErrInvalid)
	}
	if len(p.Weights) != features {
		return nil, fmt.Errorf("%w: %d weights for %d features", ErrInvalid, len(p.Weights), features)
	}
	w := make([]float64, len(p.Weights))
	copy(w, p.Weights)
	return &logistic{
		features:  features,
		weights:   w,
		intercept: p.Intercept,
	}, nil
}

func (l *logistic) Features() int { return l.features }

func (l *logistic) Classes() int { return binaryClasses }

func (l *logistic) PredictProba(rows [][]float64) ([][]float64, error) {
	if err := checkBatch(rows, l.features); err != nil {
		return nil, err
	}

	out := make([][]float64, len(rows))
	for i, r := range rows {
		z := l.intercept
		for j, x := range r {
			z += l.weights[j] * x
		}
		p := sigmoid(z)
		out[i] = []float64{1 - p, p}
	}
	return out, nil
}

// sigmoid is split by sign so large magnitudes do not overflow exp.
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
