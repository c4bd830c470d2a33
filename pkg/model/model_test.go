package model

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logisticArtifact(p float64) *Artifact {
	return &Artifact{
		Kind:     KindLogistic,
		Version:  "test",
		Features: FeatureCount,
		Classes:  2,
		Logistic: &LogisticParams{
			Weights:   make([]float64, FeatureCount),
			Intercept: math.Log(p / (1 - p)),
		},
	}
}

// forestArtifact splits on high_risk_country: risky rows land on a leaf
// with 9:1 fraud odds in the first tree and 7:3 in the second.
func forestArtifact() *Artifact {
	return &Artifact{
		Kind:     KindForest,
		Features: FeatureCount,
		Classes:  2,
		Forest: &ForestParams{
			Trees: []Tree{
				{Nodes: []Node{
					{Feature: HighRiskCountry, Threshold: 0.5, Left: 1, Right: 2},
					{Left: -1, Right: -1, Value: []float64{90, 10}},
					{Left: -1, Right: -1, Value: []float64{1, 9}},
				}},
				{Nodes: []Node{
					{Feature: Amount, Threshold: 50, Left: 1, Right: 2},
					{Left: -1, Right: -1, Value: []float64{1, 0}},
					{Left: -1, Right: -1, Value: []float64{0.3, 0.7}},
				}},
			},
		},
	}
}

func writeArtifact(t *testing.T, a *Artifact, c Compression) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, a, c))
	path := filepath.Join(t.TempDir(), "fraud_model.bin")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
	return path
}

func TestParseFeatures(t *testing.T) {
	f, err := ParseFeatures([]string{"100.0", "1", "23", "6", "1", "2"})
	require.NoError(t, err)
	assert.Equal(t, Features{100, 1, 23, 6, 1, 2}, f)
	assert.Equal(t, []float64{100, 1, 23, 6, 1, 2}, f.Row())
	assert.Equal(t, 23.0, f.Map()["hour"])

	f, err = ParseFeatures([]string{"-5e2", " 0 ", "99", "-1", "0.5", "NaN"})
	require.NoError(t, err)
	assert.Equal(t, -500.0, f[Amount])
	assert.True(t, math.IsNaN(f[TransactionType]))
}

func TestParseFeatures_Errors(t *testing.T) {
	_, err := ParseFeatures([]string{"1", "2"})
	assert.Error(t, err)

	_, err = ParseFeatures([]string{"100", "abc", "23", "6", "1", "2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "high_risk_country")
}

func TestNames(t *testing.T) {
	names := Names()
	assert.Len(t, names, FeatureCount)
	assert.Equal(t, "amount", names[Amount])
	assert.Equal(t, "transaction_type", names[TransactionType])
}

func TestLogistic_PredictProba(t *testing.T) {
	c, err := logisticArtifact(0.87).Classifier()
	require.NoError(t, err)
	assert.Equal(t, FeatureCount, c.Features())
	assert.Equal(t, 2, c.Classes())

	out, err := c.PredictProba([][]float64{{100, 1, 23, 6, 1, 2}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0], 2)
	assert.InDelta(t, 0.87, out[0][1], 1e-9)
	assert.InDelta(t, 1.0, out[0][0]+out[0][1], 1e-12)
}

func TestLogistic_Extremes(t *testing.T) {
	a := logisticArtifact(0.5)
	a.Logistic.Weights[Amount] = 1
	c, err := a.Classifier()
	require.NoError(t, err)

	out, err := c.PredictProba([][]float64{
		{1e6, 0, 0, 0, 0, 0},
		{-1e6, 0, 0, 0, 0, 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, out[0][1])
	assert.Equal(t, 0.0, out[1][1])
}

func TestForest_PredictProba(t *testing.T) {
	c, err := forestArtifact().Classifier()
	require.NoError(t, err)

	out, err := c.PredictProba([][]float64{
		{100, 1, 23, 6, 1, 2},
		{10, 0, 12, 2, 0, 1},
	})
	require.NoError(t, err)
	assert.InDelta(t, (0.9+0.7)/2, out[0][1], 1e-12)
	assert.InDelta(t, (0.1+0.0)/2, out[1][1], 1e-12)
}

func TestPredictProba_Shape(t *testing.T) {
	c, err := logisticArtifact(0.3).Classifier()
	require.NoError(t, err)

	_, err = c.PredictProba(nil)
	assert.ErrorIs(t, err, ErrShape)

	_, err = c.PredictProba([][]float64{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrShape)
}

func TestArtifact_Invalid(t *testing.T) {
	cycle := forestArtifact()
	cycle.Forest.Trees[0].Nodes[1] = Node{Feature: Amount, Left: 0, Right: 0}

	tests := []struct {
		name string
		mod  func(a *Artifact) *Artifact
	}{
		{"nil", func(a *Artifact) *Artifact { return nil }},
		{"unknown kind", func(a *Artifact) *Artifact { a.Kind = "svm"; return a }},
		{"multiclass", func(a *Artifact) *Artifact { a.Classes = 3; return a }},
		{"no features", func(a *Artifact) *Artifact { a.Features = 0; return a }},
		{"missing params", func(a *Artifact) *Artifact { a.Logistic = nil; return a }},
		{"weight count", func(a *Artifact) *Artifact { a.Logistic.Weights = []float64{1}; return a }},
		{"no trees", func(a *Artifact) *Artifact { return &Artifact{Kind: KindForest, Features: 6, Classes: 2, Forest: &ForestParams{}} }},
		{"bad split feature", func(a *Artifact) *Artifact {
			f := forestArtifact()
			f.Forest.Trees[0].Nodes[0].Feature = 9
			return f
		}},
		{"child out of range", func(a *Artifact) *Artifact {
			f := forestArtifact()
			f.Forest.Trees[1].Nodes[0].Right = 7
			return f
		}},
		{"leaf width", func(a *Artifact) *Artifact {
			f := forestArtifact()
			f.Forest.Trees[0].Nodes[1].Value = []float64{1}
			return f
		}},
		{"leaf weight", func(a *Artifact) *Artifact {
			f := forestArtifact()
			f.Forest.Trees[0].Nodes[2].Value = []float64{0, 0}
			return f
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.mod(logisticArtifact(0.5)).Classifier()
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	// a node pointing back at the root passes validation but never reaches a leaf
	c, err := cycle.Classifier()
	require.NoError(t, err)
	_, err = c.PredictProba([][]float64{{100, 0, 0, 0, 0, 0}})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestCodec_RoundTrip(t *testing.T) {
	row := [][]float64{{100, 1, 23, 6, 1, 2}}

	for _, c := range []Compression{CompressionNone, CompressionGzip, CompressionZstd} {
		t.Run(string(c), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, forestArtifact(), c))
			assert.Equal(t, c, DetectCompression(buf.Bytes()))

			a, err := Decode(buf.Bytes())
			require.NoError(t, err)
			cl, err := a.Classifier()
			require.NoError(t, err)

			out, err := cl.PredictProba(row)
			require.NoError(t, err)
			assert.InDelta(t, 0.8, out[0][1], 1e-12)
		})
	}
}

func TestDecode_JSON(t *testing.T) {
	doc := `{"kind": "logistic", "features": 6, "classes": 2, "logistic": {"weights": [0, 0, 0, 0, 0, 0], "intercept": 0}}`
	a, err := Decode([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, KindLogistic, a.Kind)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"blank", []byte("\n")},
		{"pickle", []byte{0x80, 0x04, 0x95, 0xff, 0xfe, 0x00, 0x8c}},
		{"scalar", []byte("not a model")},
		{"unknown field", []byte("kind: logistic\nfoo: bar\n")},
		{"truncated gzip", []byte{0x1f, 0x8b, 0x08}},
		{"truncated zstd", []byte{0x28, 0xb5, 0x2f, 0xfd, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestEncode_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Encode(&buf, nil, CompressionNone))
	assert.Error(t, Encode(&buf, forestArtifact(), Compression("lz4")))
}

func TestLoad(t *testing.T) {
	path := writeArtifact(t, logisticArtifact(0.87), CompressionZstd)

	m, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, KindLogistic, m.Kind)
	assert.Equal(t, "test", m.Version)
	assert.Equal(t, path, m.Source)
	assert.Len(t, m.Checksum, 64)

	again, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, m.Checksum, again.Checksum)
}

func TestLoad_Logger(t *testing.T) {
	path := writeArtifact(t, forestArtifact(), CompressionNone)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m, err := Load(context.Background(), path, WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "model loaded")
	assert.Contains(t, buf.String(), m.Checksum)
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Load(ctx, "")
	assert.Error(t, err)

	_, err = Load(ctx, filepath.Join(t.TempDir(), "missing.bin"))
	assert.ErrorIs(t, err, ErrNotFound)

	corrupt := filepath.Join(t.TempDir(), "corrupt.bin")
	require.NoError(t, os.WriteFile(corrupt, []byte{0x80, 0x04, 0x95}, 0600))
	_, err = Load(ctx, corrupt)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_Remote(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, forestArtifact(), CompressionGzip))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fraud_model.bin" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	m, err := Load(context.Background(), srv.URL+"/fraud_model.bin", WithToken("t"))
	require.NoError(t, err)
	assert.Equal(t, KindForest, m.Kind)

	_, err = Load(context.Background(), srv.URL+"/other.bin")
	assert.ErrorIs(t, err, ErrNotFound)
}
