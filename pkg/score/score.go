package score

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/mchmarny/fraudscore/pkg/model"
)

const (
	// DefaultModelPath is resolved against the working directory.
	DefaultModelPath = "models/fraud_model.bin"
	// DefaultFallbackProbability is reported when no model score is available.
	DefaultFallbackProbability = 0.1

	fraudClass = 1
)

// Status tells a genuine model score apart from a substituted one.
type Status string

const (
	StatusScored   Status = "scored"
	StatusFallback Status = "fallback"
)

// ErrInference is returned when the classifier output is unusable.
var ErrInference = errors.New("inference failed")

// Result is the outcome of scoring a single transaction.
type Result struct {
	Probability float64
	Status      Status
	// Err is set when Status is StatusFallback.
	Err      error
	Model    string
	Checksum string
}

// Fallback reports whether Probability is the configured substitute.
func (r Result) Fallback() bool {
	return r.Status == StatusFallback
}

// IsFraud applies the decision threshold. A fallback is never labeled fraud.
func (r Result) IsFraud(threshold float64) bool {
	return !r.Fallback() && r.Probability >= threshold
}

// String formats the probability the way the CLI prints it.
func (r Result) String() string {
	return fmt.Sprintf("%.6f", r.Probability)
}

// LoaderFunc loads a model from a path.
type LoaderFunc func(ctx context.Context, path string) (*model.Model, error)

// Scorer turns a feature vector into a fraud probability.
type Scorer struct {
	modelPath string
	fallback  float64
	load      LoaderFunc
	logger    *slog.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

func WithModelPath(path string) Option {
	return func(s *Scorer) {
		s.modelPath = path
	}
}

func WithFallback(p float64) Option {
	return func(s *Scorer) {
		s.fallback = p
	}
}

// WithLoader replaces the artifact loader, e.g. to pass a remote token.
// The default loader logs through the Scorer logger.
func WithLoader(fn LoaderFunc) Option {
	return func(s *Scorer) {
		s.load = fn
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scorer) {
		s.logger = l
	}
}

// NewScorer creates a Scorer with the default model path and fallback.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		modelPath: DefaultModelPath,
		fallback:  DefaultFallbackProbability,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.load == nil {
		s.load = func(ctx context.Context, path string) (*model.Model, error) {
			return model.Load(ctx, path, model.WithLogger(s.logger))
		}
	}
	return s
}

// Score loads the model and returns the fraud class probability for f.
// It never fails: load and inference errors produce a fallback result.
func (s *Scorer) Score(ctx context.Context, f model.Features) Result {
	r := Result{Model: s.modelPath}

	p, checksum, err := s.predict(ctx, f)
	r.Checksum = checksum
	if err != nil {
		s.logger.Error("scoring failed, using fallback",
			"error", err,
			"model", s.modelPath,
			"fallback", s.fallback,
		)
		r.Probability = s.fallback
		r.Status = StatusFallback
		r.Err = err
		return r
	}

	r.Probability = p
	r.Status = StatusScored
	s.logger.Debug("transaction scored", "probability", p, "model", s.modelPath)
	return r
}

func (s *Scorer) predict(ctx context.Context, f model.Features) (p float64, checksum string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic: %v", ErrInference, rec)
		}
	}()

	m, err := s.load(ctx, s.modelPath)
	if err != nil {
		return 0, "", err
	}
	if m == nil || m.Classifier == nil {
		return 0, "", fmt.Errorf("%w: loader returned no model", ErrInference)
	}

	out, err := m.PredictProba([][]float64{f.Row()})
	if err != nil {
		return 0, m.Checksum, fmt.Errorf("%w: %w", ErrInference, err)
	}
	if len(out) != 1 || len(out[0]) <= fraudClass {
		return 0, m.Checksum, fmt.Errorf("%w: unexpected output shape", ErrInference)
	}

	p = out[0][fraudClass]
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, m.Checksum, fmt.Errorf("%w: probability %v out of range", ErrInference, p)
	}

	return p, m.Checksum, nil
}
