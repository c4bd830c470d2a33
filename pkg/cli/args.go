package cli

import (
	"slices"
	"strconv"
	"strings"

	urfave "github.com/urfave/cli/v3"
)

// builtin flags added by urfave, none of them take a value.
var builtinFlags = []string{"help", "h", "version", "v"}

// terminateValues rewrites args so positional values that start with a dash,
// like -inf, reach the action instead of the flag parser. Known flags are kept
// ahead of a "--" terminator and the values follow it in their original order.
// Args are returned unchanged when no such value is present.
func terminateValues(cmd *urfave.Command, args []string) []string {
	if len(args) < 2 {
		return args
	}

	known := make(map[string]bool)
	for _, n := range builtinFlags {
		known[n] = false
	}
	for _, f := range cmd.Flags {
		_, isBool := f.(*urfave.BoolFlag)
		for _, n := range f.Names() {
			known[n] = !isBool
		}
	}

	var (
		flags  []string
		values []string
		dashed bool
	)
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		a := rest[i]
		if a == "--" {
			values = append(values, rest[i+1:]...)
			break
		}
		if a == "-" || !strings.HasPrefix(a, "-") {
			values = append(values, a)
			continue
		}

		name, _, inline := strings.Cut(strings.TrimLeft(a, "-"), "=")
		takesValue, isFlag := known[name]
		if !isFlag && isNumber(a) {
			values = append(values, a)
			dashed = true
			continue
		}

		flags = append(flags, a)
		if takesValue && !inline && i+1 < len(rest) {
			i++
			flags = append(flags, rest[i])
		}
	}

	if !dashed || (len(values) > 0 && isCommand(cmd, values[0])) {
		return args
	}

	out := make([]string, 0, len(args)+1)
	out = append(out, args[0])
	out = append(out, flags...)
	out = append(out, "--")
	return append(out, values...)
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func isCommand(cmd *urfave.Command, name string) bool {
	return slices.ContainsFunc(cmd.Commands, func(c *urfave.Command) bool {
		return c.HasName(name)
	})
}
