package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mchmarny/fraudscore/pkg/logging"
	"github.com/mchmarny/fraudscore/pkg/model"
	urfave "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName = "fraudscore"

	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"

	exitOK       = 0
	exitUsage    = 1
	exitFallback = 2
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	usageText = fmt.Sprintf("%s <%s>", appName, strings.Join(model.Names(), "> <"))
)

// exitError carries the process exit code for a failed run.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// Execute runs the CLI against the process arguments and exits.
func Execute() {
	os.Exit(Run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

// Run executes the CLI with args (program name first) and returns the exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	initLogging(stderr, "info", false, false)

	cmd := newApp(stdout, stderr)
	err := cmd.Run(ctx, terminateValues(cmd, args))
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	slog.Error("fatal error", "error", err)
	return exitUsage
}

func newApp(stdout, stderr io.Writer) *urfave.Command {
	return &urfave.Command{
		Name:      appName,
		Version:   fmt.Sprintf("%s (%s - %s)", version, commit, date),
		Usage:     "Score the fraud probability of a single transaction",
		UsageText: usageText,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     newFlags(),
		Before: func(ctx context.Context, c *urfave.Command) (context.Context, error) {
			initLogging(c.Root().ErrWriter, c.String(logLevelFlagName), c.Bool(debugFlagName), c.Bool(colorFlagName))
			return ctx, nil
		},
		Action: cmdScore,
		Commands: []*urfave.Command{
			newHistoryCmd(),
			newConfigCmd(),
		},
		ExitErrHandler: func(_ context.Context, _ *urfave.Command, _ error) {
			// exit codes are resolved by Run
		},
	}
}

func initLogging(w io.Writer, level string, debug, color bool) {
	if debug {
		level = "debug"
	}
	logging.SetDefaultCLILogger(w, level, color)
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatYAML:
		e := yaml.NewEncoder(w)
		defer e.Close()
		return e.Encode(v)
	case formatJSON:
		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		return e.Encode(v)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
