package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/metricc/internal/ir"
	"github.com/roach88/metricc/internal/store"
)

// DefinitionsOptions holds flags for the definitions command.
type DefinitionsOptions struct {
	*RootOptions
	DB           string
	Compilation  string // list definitions of one compilation
	Identifier   string // show one definition
	Compilations bool   // list compilations instead of definitions
}

// NewDefinitionsCommand creates the definitions command.
func NewDefinitionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DefinitionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "definitions --db <path>",
		Short: "Inspect the definition registry",
		Long: `Inspect the definition registry written by compile --db.

Without selectors, lists every stored definition by identifier.

Examples:
  metricc definitions --db ./metricc.db
  metricc definitions --db ./metricc.db --compilation 0192...
  metricc definitions --db ./metricc.db --identifier fact_p_10.generated.abc_sum
  metricc definitions --db ./metricc.db --compilations`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDefinitions(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "definition registry database path (required)")
	cmd.Flags().StringVar(&opts.Compilation, "compilation", "", "list the definitions of one compilation")
	cmd.Flags().StringVar(&opts.Identifier, "identifier", "", "show one definition")
	cmd.Flags().BoolVar(&opts.Compilations, "compilations", false, "list compilations")
	cmd.MarkFlagsMutuallyExclusive("compilation", "identifier", "compilations")

	return cmd
}

func runDefinitions(opts *DefinitionsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	if opts.DB == "" {
		return formatter.Fail(ErrCodeInvalidFlag, "--db is required")
	}
	// Open would create an empty registry; a missing file is a user error.
	if _, err := os.Stat(opts.DB); os.IsNotExist(err) {
		return formatter.Fail(ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.DB))
	}

	st, err := store.Open(opts.DB)
	if err != nil {
		return formatter.Fail(ErrCodeDatabase, err.Error())
	}
	defer st.Close()

	switch {
	case opts.Identifier != "":
		d, err := st.ReadDefinition(ctx, opts.Identifier)
		if errors.Is(err, store.ErrNotFound) {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("definition not found: %s", opts.Identifier), nil)
			return NewExitError(ExitFailure, fmt.Sprintf("definition not found: %s", opts.Identifier))
		}
		if err != nil {
			return formatter.Fail(ErrCodeDatabase, err.Error())
		}
		return outputDefinitions(formatter, []ir.MetricDefinition{d}, true)

	case opts.Compilations:
		compilations, err := st.ReadCompilations(ctx)
		if err != nil {
			return formatter.Fail(ErrCodeDatabase, err.Error())
		}
		return outputCompilations(formatter, compilations)

	case opts.Compilation != "":
		if _, err := st.ReadCompilation(ctx, opts.Compilation); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("compilation not found: %s", opts.Compilation), nil)
				return NewExitError(ExitFailure, fmt.Sprintf("compilation not found: %s", opts.Compilation))
			}
			return formatter.Fail(ErrCodeDatabase, err.Error())
		}
		defs, err := st.ReadCompilationDefinitions(ctx, opts.Compilation)
		if err != nil {
			return formatter.Fail(ErrCodeDatabase, err.Error())
		}
		return outputDefinitions(formatter, defs, opts.Verbose)

	default:
		defs, err := st.ReadDefinitions(ctx)
		if err != nil {
			return formatter.Fail(ErrCodeDatabase, err.Error())
		}
		return outputDefinitions(formatter, defs, opts.Verbose)
	}
}

func outputDefinitions(formatter *OutputFormatter, defs []ir.MetricDefinition, detailed bool) error {
	if formatter.JSON() {
		return formatter.Success(defs)
	}

	w := formatter.Writer
	if len(defs) == 0 {
		fmt.Fprintln(w, "No definitions found.")
		return nil
	}
	for _, d := range defs {
		fmt.Fprintln(w, d.Identifier)
		if detailed {
			fmt.Fprintf(w, "  expression: %s\n", d.Expression)
			fmt.Fprintf(w, "  title:      %s\n", d.Title)
			fmt.Fprintf(w, "  format:     %s\n", d.Format)
		}
	}
	return nil
}

func outputCompilations(formatter *OutputFormatter, compilations []store.Compilation) error {
	if formatter.JSON() {
		return formatter.Success(compilations)
	}

	w := formatter.Writer
	if len(compilations) == 0 {
		fmt.Fprintln(w, "No compilations found.")
		return nil
	}
	for _, c := range compilations {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.Seq, c.ID, c.HashName, c.Source)
		formatter.VerboseLog("  digest %s (compiler %s, model %s)", c.RequestDigest, c.CompilerVersion, c.ModelVersion)
	}
	return nil
}
