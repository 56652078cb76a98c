package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/metricc/internal/compiler"
	"github.com/roach88/metricc/internal/ir"
)

// SortOptions holds flags for the sort command.
type SortOptions struct {
	*RootOptions
	Known []string
}

// SortResult holds definitions in dependency order.
type SortResult struct {
	Definitions []ir.MetricDefinition `json:"definitions"`
}

// NewSortCommand creates the sort command.
func NewSortCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SortOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sort <definitions-file>",
		Short: "Order metric definitions by their references",
		Long: `Order metric definitions so that every definition follows the
definitions its expression references.

References to identifiers passed with --known are treated as satisfied.
Definitions caught in a cycle or referencing an unknown identifier are
reported and nothing is printed in order.

Exit codes:
  0 - All definitions ordered
  1 - Unsatisfiable dependencies
  2 - Command error (unreadable input)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSort(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Known, "known", nil, "identifiers that exist outside the file")

	return cmd
}

func runSort(opts *SortOptions, file string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	defs, err := LoadDefinitions(file)
	if err != nil {
		return formatter.FailWith(err)
	}
	formatter.VerboseLog("Loaded %d definition(s) from %s", len(defs), file)

	sorted, err := compiler.SortDefinitions(defs, opts.Known...)
	if err != nil {
		var de *compiler.DependencyError
		if errors.As(err, &de) {
			return outputDependencyError(formatter, de)
		}
		return formatter.Fail(ErrCodeGeneric, err.Error())
	}

	if formatter.JSON() {
		return formatter.Success(SortResult{Definitions: sorted})
	}
	for _, d := range sorted {
		fmt.Fprintf(formatter.Writer, "%s\t%s\n", d.Identifier, d.Expression)
	}
	return nil
}

// outputDependencyError reports every unresolved definition and cycle.
func outputDependencyError(formatter *OutputFormatter, de *compiler.DependencyError) error {
	e := errorOf(de)
	msg := fmt.Sprintf("%d definition(s) cannot be ordered", len(de.Unresolved))

	if formatter.JSON() {
		encoder := json.NewEncoder(formatter.Writer)
		if err := encoder.Encode(CLIResponse{Status: "error", Error: e}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✗ %s\n\n", msg)
	for _, u := range de.Unresolved {
		fmt.Fprintf(w, "  %s: missing %s\n", u.Identifier, strings.Join(u.Missing, ", "))
	}
	if len(de.Cycles) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Cycles:")
		for _, c := range de.Cycles {
			fmt.Fprintf(w, "  %s\n", strings.Join(c.Path, " → "))
		}
	}
	if dangling := de.Dangling(); len(dangling) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Undefined: %s\n", strings.Join(dangling, ", "))
	}
	return NewExitError(ExitFailure, msg)
}
