package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mchmarny/fraudscore/pkg/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, score.DefaultModelPath, c.ModelPath)
	assert.Equal(t, score.DefaultFallbackProbability, c.FallbackProbability())
	assert.Equal(t, DefaultThreshold, c.DecisionThreshold())
	assert.Equal(t, DefaultLogLevel, c.LogLevel)
	assert.False(t, c.Strict)
	assert.NoError(t, c.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	c1 := Default()
	c1.ModelPath = "/srv/models/fraud.bin"
	zero := 0.0
	c1.Fallback = &zero
	c1.Strict = true
	c1.HistoryPath = "history.db"

	require.NoError(t, Save(path, c1))

	c2, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c1.ModelPath, c2.ModelPath)
	assert.Equal(t, 0.0, c2.FallbackProbability())
	assert.Equal(t, DefaultThreshold, c2.DecisionThreshold())
	assert.True(t, c2.Strict)
	assert.Equal(t, "history.db", c2.HistoryPath)
}

func TestLoad_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("threshold: 0.8\n"), 0600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, score.DefaultModelPath, c.ModelPath)
	assert.Equal(t, score.DefaultFallbackProbability, c.FallbackProbability())
	assert.Equal(t, 0.8, c.DecisionThreshold())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("model: [unterminated"), 0600))
	_, err = Load(bad)
	assert.Error(t, err)

	outOfRange := filepath.Join(dir, "range.yaml")
	require.NoError(t, os.WriteFile(outOfRange, []byte("fallback: 1.5\n"), 0600))
	_, err = Load(outOfRange)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mod     func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"nil pointers", func(c *Config) { c.Fallback, c.Threshold = nil, nil }, false},
		{"empty model", func(c *Config) { c.ModelPath = "" }, true},
		{"negative fallback", func(c *Config) { v := -0.1; c.Fallback = &v }, true},
		{"threshold above one", func(c *Config) { v := 1.01; c.Threshold = &v }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mod(c)
			if tt.wantErr {
				assert.Error(t, c.Validate())
			} else {
				assert.NoError(t, c.Validate())
			}
		})
	}
}

func TestSave_Errors(t *testing.T) {
	assert.Error(t, Save("", Default()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
}
