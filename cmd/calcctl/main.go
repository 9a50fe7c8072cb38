// Command calcctl runs the condition compilers and the calc engine from the
// command line.
//
// Logging:
//   - A text logger on stderr is built here; --log-level sets its level
//   - The logger is injected into the runtime; nothing touches slog.Default
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "calcctl",
		Short:         "Inspect and run predicate compilation",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("output", "o", "table", "output format: table or json")
	root.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn or error")

	root.AddCommand(
		newParseCmd(),
		newAliasCmd(),
		newKeysCmd(),
		newSQLCmd(),
		newUpdateKeysCmd(),
		newDeleteKeysCmd(),
		newJoinCmd(),
		newCalcCmd(),
	)
	return root
}

func loggerFromCmd(cmd *cobra.Command) (*slog.Logger, error) {
	name, _ := cmd.Flags().GetString("log-level")
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", name, err)
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})), nil
}
