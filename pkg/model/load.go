package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mchmarny/fraudscore/pkg/net"
)

// Model is a decoded, validated artifact ready for inference.
type Model struct {
	Classifier
	Kind     string
	Version  string
	Source   string
	Checksum string
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	token  string
	logger *slog.Logger
}

// WithToken sets the bearer token used for remote artifacts.
func WithToken(token string) LoadOption {
	return func(o *loadOptions) {
		o.token = token
	}
}

// WithLogger sets the logger for load diagnostics, slog.Default when unset.
func WithLogger(l *slog.Logger) LoadOption {
	return func(o *loadOptions) {
		o.logger = l
	}
}

// Load reads the artifact at path, a local file or an http(s) URL, and
// builds its classifier.
func Load(ctx context.Context, path string, opts ...LoadOption) (*Model, error) {
	if path == "" {
		return nil, errors.New("model path required")
	}

	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	b, err := read(ctx, path, o.token)
	if err != nil {
		return nil, err
	}

	a, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	c, err := a.Classifier()
	if err != nil {
		return nil, fmt.Errorf("building classifier from %s: %w", path, err)
	}

	sum := sha256.Sum256(b)
	m := &Model{
		Classifier: c,
		Kind:       a.Kind,
		Version:    a.Version,
		Source:     path,
		Checksum:   hex.EncodeToString(sum[:]),
	}

	o.logger.Debug("model loaded",
		"source", m.Source,
		"kind", m.Kind,
		"version", m.Version,
		"features", c.Features(),
		"checksum", m.Checksum,
	)

	return m, nil
}

func read(ctx context.Context, path, token string) ([]byte, error) {
	if net.IsRemote(path) {
		b, err := net.Fetch(ctx, path, token)
		if errors.Is(err, net.ErrorURLNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", path, err)
		}
		return b, nil
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return b, nil
}
