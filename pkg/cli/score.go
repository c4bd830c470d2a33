package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mchmarny/fraudscore/pkg/config"
	"github.com/mchmarny/fraudscore/pkg/data"
	"github.com/mchmarny/fraudscore/pkg/model"
	"github.com/mchmarny/fraudscore/pkg/score"
	urfave "github.com/urfave/cli/v3"
)

const (
	envPrefix = "FRAUDSCORE_"

	modelFlagName     = "model"
	tokenFlagName     = "token"
	fallbackFlagName  = "fallback"
	thresholdFlagName = "threshold"
	formatFlagName    = "format"
	strictFlagName    = "strict"
	configFlagName    = "config"
	dbFlagName        = "db"
	logLevelFlagName  = "log-level"
	debugFlagName     = "debug"
	colorFlagName     = "color"
)

// newFlags builds a fresh flag set; urfave flags keep parse state and are
// not shared between runs.
func newFlags() []urfave.Flag {
	return []urfave.Flag{
		&urfave.StringFlag{
			Name:    modelFlagName,
			Aliases: []string{"m"},
			Usage:   "Path or http(s) URL of the model artifact",
			Value:   score.DefaultModelPath,
			Sources: urfave.EnvVars(envPrefix + "MODEL"),
		},
		&urfave.StringFlag{
			Name:    tokenFlagName,
			Usage:   "Bearer token for remote model artifacts",
			Sources: urfave.EnvVars(envPrefix + "MODEL_TOKEN"),
		},
		&urfave.FloatFlag{
			Name:    fallbackFlagName,
			Usage:   "Probability reported when the model cannot score",
			Value:   score.DefaultFallbackProbability,
			Sources: urfave.EnvVars(envPrefix + "FALLBACK"),
		},
		&urfave.FloatFlag{
			Name:    thresholdFlagName,
			Usage:   "Probability at which a transaction is labeled fraud",
			Value:   config.DefaultThreshold,
			Sources: urfave.EnvVars(envPrefix + "THRESHOLD"),
		},
		&urfave.StringFlag{
			Name:    formatFlagName,
			Aliases: []string{"o"},
			Usage:   "Output format [text, json, yaml]",
			Value:   formatText,
		},
		&urfave.BoolFlag{
			Name:    strictFlagName,
			Usage:   "Exit with status 2 when the fallback probability is reported",
			Sources: urfave.EnvVars(envPrefix + "STRICT"),
		},
		&urfave.StringFlag{
			Name:    configFlagName,
			Aliases: []string{"c"},
			Usage:   "Path to a YAML config file",
			Sources: urfave.EnvVars(envPrefix + "CONFIG"),
		},
		&urfave.StringFlag{
			Name:    dbFlagName,
			Usage:   fmt.Sprintf("Path to the Sqlite score history file, e.g. %s (disabled when empty)", data.DataFileName),
			Sources: urfave.EnvVars(envPrefix + "DB"),
		},
		&urfave.StringFlag{
			Name:    logLevelFlagName,
			Usage:   "Log level [debug, info, warn, error]",
			Value:   config.DefaultLogLevel,
			Sources: urfave.EnvVars(envPrefix + "LOG_LEVEL"),
		},
		&urfave.BoolFlag{
			Name:  debugFlagName,
			Usage: "Prints verbose logs (optional, default: false)",
		},
		&urfave.BoolFlag{
			Name:  colorFlagName,
			Usage: "Colorize warnings and errors",
		},
	}
}

// scoreOutput is the structured form of a result.
type scoreOutput struct {
	Probability float64 `json:"probability" yaml:"probability"`
	Status      string  `json:"status" yaml:"status"`
	Fraud       bool    `json:"fraud" yaml:"fraud"`
	Threshold   float64 `json:"threshold" yaml:"threshold"`
	Model       string  `json:"model" yaml:"model"`
	Checksum    string  `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	Error       string  `json:"error,omitempty" yaml:"error,omitempty"`
}

func cmdScore(ctx context.Context, c *urfave.Command) error {
	w := c.Root().Writer

	args := c.Args().Slice()
	if len(args) != model.FeatureCount {
		fmt.Fprintf(w, "Usage: %s\n", usageText)
		return &exitError{code: exitUsage}
	}

	features, err := model.ParseFeatures(args)
	if err != nil {
		slog.Error("invalid arguments", "error", err)
		return &exitError{code: exitUsage, err: err}
	}

	format, err := outputFormat(c)
	if err != nil {
		slog.Error("invalid arguments", "error", err)
		return &exitError{code: exitUsage, err: err}
	}

	cfg, err := resolveConfig(c)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		return &exitError{code: exitUsage, err: err}
	}
	if !c.IsSet(logLevelFlagName) && !c.Bool(debugFlagName) && cfg.LogLevel != config.DefaultLogLevel {
		initLogging(c.Root().ErrWriter, cfg.LogLevel, false, c.Bool(colorFlagName))
	}

	slog.Debug("scoring transaction",
		"model", cfg.ModelPath,
		"fallback", cfg.FallbackProbability(),
		"features", features.Map(),
	)

	s := score.NewScorer(
		score.WithModelPath(cfg.ModelPath),
		score.WithFallback(cfg.FallbackProbability()),
		score.WithLoader(func(ctx context.Context, path string) (*model.Model, error) {
			return model.Load(ctx, path, model.WithToken(cfg.ModelToken), model.WithLogger(slog.Default()))
		}),
		score.WithLogger(slog.Default()),
	)
	r := s.Score(ctx, features)

	threshold := cfg.DecisionThreshold()
	if cfg.HistoryPath != "" {
		recordHistory(cfg.HistoryPath, features, r, threshold)
	}

	if format == formatText {
		fmt.Fprintln(w, r.String())
	} else {
		out := &scoreOutput{
			Probability: r.Probability,
			Status:      string(r.Status),
			Fraud:       r.IsFraud(threshold),
			Threshold:   threshold,
			Model:       r.Model,
			Checksum:    r.Checksum,
		}
		if r.Err != nil {
			out.Error = r.Err.Error()
		}
		if err := encode(w, format, out); err != nil {
			return fmt.Errorf("error encoding result: %w", err)
		}
	}

	if r.Fallback() && cfg.Strict {
		return &exitError{code: exitFallback, err: r.Err}
	}
	return nil
}

// outputFormat returns the normalized --format value.
func outputFormat(c *urfave.Command) (string, error) {
	format := strings.ToLower(c.String(formatFlagName))
	if format == "yml" {
		format = formatYAML
	}
	if format != formatText && format != formatJSON && format != formatYAML {
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
	return format, nil
}

// resolveConfig layers set flags and env vars over the config file.
func resolveConfig(c *urfave.Command) (*config.Config, error) {
	cfg, err := config.Load(c.String(configFlagName))
	if err != nil {
		return nil, err
	}

	if c.IsSet(modelFlagName) {
		cfg.ModelPath = c.String(modelFlagName)
	}
	if c.IsSet(tokenFlagName) {
		cfg.ModelToken = c.String(tokenFlagName)
	}
	if c.IsSet(fallbackFlagName) {
		v := c.Float(fallbackFlagName)
		cfg.Fallback = &v
	}
	if c.IsSet(thresholdFlagName) {
		v := c.Float(thresholdFlagName)
		cfg.Threshold = &v
	}
	if c.IsSet(strictFlagName) {
		cfg.Strict = c.Bool(strictFlagName)
	}
	if c.IsSet(dbFlagName) {
		cfg.HistoryPath = c.String(dbFlagName)
	}
	if c.IsSet(logLevelFlagName) {
		cfg.LogLevel = c.String(logLevelFlagName)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// recordHistory appends the result to the history database. Failures are
// logged and never change the command outcome.
func recordHistory(path string, f model.Features, r score.Result, threshold float64) {
	if err := data.Init(path); err != nil {
		slog.Warn("history unavailable", "error", err)
		return
	}

	db, err := data.GetDB(path)
	if err != nil {
		slog.Warn("history unavailable", "error", err)
		return
	}
	defer db.Close()

	rec := &data.ScoreRecord{
		Features:    f,
		Probability: r.Probability,
		Status:      string(r.Status),
		Fraud:       r.IsFraud(threshold),
		Model:       r.Model,
		Checksum:    r.Checksum,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}

	if err := data.SaveScore(db, rec); err != nil {
		slog.Warn("failed to record score", "error", err)
		return
	}
	slog.Debug("score recorded", "id", rec.ID, "db", path)
}
