package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hugr-lab/sqlcalc/condition"
)

// readArg returns the document named by arg: "-" reads stdin, "@path" reads
// a file and anything else is the document itself.
func readArg(cmd *cobra.Command, arg string) ([]byte, error) {
	switch {
	case arg == "-":
		return io.ReadAll(cmd.InOrStdin())
	case strings.HasPrefix(arg, "@"):
		return os.ReadFile(arg[1:])
	default:
		return []byte(arg), nil
	}
}

// conditionArg parses the condition given as the first argument.
func conditionArg(cmd *cobra.Command, args []string) (condition.Node, error) {
	data, err := readArg(cmd, args[0])
	if err != nil {
		return nil, fmt.Errorf("read condition: %w", err)
	}
	return condition.Parse(data)
}

// parseMapping parses "from=to" pairs.
func parseMapping(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		from, to, ok := strings.Cut(p, "=")
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("invalid mapping %q: want from=to", p)
		}
		m[from] = to
	}
	return m, nil
}
