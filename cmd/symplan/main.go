// Command symplan is the command-line driver: it loads a task file,
// builds the symbolic search core, drains the solution registry through a
// configured plan selector, and writes accepted plans through a plan
// manager.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "symplan",
		Short:         "Symbolic bidirectional classical planner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSolveCmd())
	return root
}

// newLogger tags every line with a fresh run id, so log lines from
// concurrent or back-to-back solve invocations (e.g. piped into a shared
// aggregator) can be told apart without relying on timestamps alone.
func newLogger(silent bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if silent {
		level = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).
		Level(level).
		With().Timestamp().Str("run_id", uuid.NewString()).Logger()
}
