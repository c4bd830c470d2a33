package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mchmarny/fraudscore/pkg/config"
	"github.com/mchmarny/fraudscore/pkg/data"
	urfave "github.com/urfave/cli/v3"
)

const (
	historyLimitDefault = 20
	limitFlagName       = "limit"
	timeLayout          = time.RFC3339
)

var errHistoryDisabled = errors.New("history database not set, use --db or the history config key")

func newHistoryCmd() *urfave.Command {
	return &urfave.Command{
		Name:  "history",
		Usage: "List recently recorded scores, newest first",
		Flags: []urfave.Flag{
			&urfave.IntFlag{
				Name:  limitFlagName,
				Usage: "Limits number of result returned",
				Value: historyLimitDefault,
			},
		},
		Action: cmdHistory,
	}
}

func cmdHistory(_ context.Context, c *urfave.Command) error {
	root := c.Root()

	format, err := outputFormat(root)
	if err != nil {
		slog.Error("invalid arguments", "error", err)
		return &exitError{code: exitUsage, err: err}
	}

	path := root.String(dbFlagName)
	if path == "" {
		cfg, err := config.Load(root.String(configFlagName))
		if err != nil {
			slog.Error("invalid configuration", "error", err)
			return &exitError{code: exitUsage, err: err}
		}
		path = cfg.HistoryPath
	}
	if path == "" {
		slog.Error("history unavailable", "error", errHistoryDisabled)
		return &exitError{code: exitUsage, err: errHistoryDisabled}
	}

	limit := c.Int(limitFlagName)
	if limit < 1 {
		err := fmt.Errorf("limit must be positive, got %d", limit)
		slog.Error("invalid arguments", "error", err)
		return &exitError{code: exitUsage, err: err}
	}

	if err := data.Init(path); err != nil {
		return fmt.Errorf("error initializing history %s: %w", path, err)
	}

	db, err := data.GetDB(path)
	if err != nil {
		return fmt.Errorf("error opening history %s: %w", path, err)
	}
	defer db.Close()

	list, err := data.ListScores(db, limit)
	if err != nil {
		return fmt.Errorf("error listing scores: %w", err)
	}
	slog.Debug("history listed", "db", path, "records", len(list))

	w := root.Writer
	if format != formatText {
		if err := encode(w, format, list); err != nil {
			return fmt.Errorf("error encoding history: %w", err)
		}
		return nil
	}

	for _, r := range list {
		fmt.Fprintf(w, "%s %.6f %s\n", r.ScoredAt.Format(timeLayout), r.Probability, r.Status)
	}
	return nil
}
