package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mchmarny/fraudscore/pkg/config"
	urfave "github.com/urfave/cli/v3"
)

const (
	configFileDefault = "fraudscore.yaml"
	forceFlagName     = "force"
)

func newConfigCmd() *urfave.Command {
	return &urfave.Command{
		Name:  "config",
		Usage: "Manage the config file",
		Commands: []*urfave.Command{
			{
				Name:      "init",
				Usage:     "Write the effective settings to a config file",
				ArgsUsage: fmt.Sprintf("[path, default: %s]", configFileDefault),
				Flags: []urfave.Flag{
					&urfave.BoolFlag{
						Name:  forceFlagName,
						Usage: "Overwrite an existing file",
					},
				},
				Action: cmdConfigInit,
			},
		},
	}
}

func cmdConfigInit(_ context.Context, c *urfave.Command) error {
	path := c.Args().First()
	if path == "" {
		path = configFileDefault
	}

	if _, err := os.Stat(path); err == nil && !c.Bool(forceFlagName) {
		err := fmt.Errorf("config file %s already exists, use --%s to overwrite", path, forceFlagName)
		slog.Error("config not saved", "error", err)
		return &exitError{code: exitUsage, err: err}
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error checking config file %s: %w", path, err)
	}

	cfg, err := resolveConfig(c.Root())
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		return &exitError{code: exitUsage, err: err}
	}

	if err := config.Save(path, cfg); err != nil {
		return err
	}
	slog.Info("config saved", "path", path)
	return nil
}
