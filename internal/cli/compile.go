package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/metricc/internal/execution"
	"github.com/roach88/metricc/internal/ir"
	"github.com/roach88/metricc/internal/observability"
	"github.com/roach88/metricc/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Attributes      string   // attributes map file
	Definitions     string   // caller definitions file
	Known           []string // identifiers that exist outside the request
	DB              string   // registry database path
	Hash            string   // identifier hash (md5|sha256)
	RemoveDateItems bool
	Jobs            int
	MetricsFile     string // Prometheus textfile output
	Output          string // output file path
}

// FileResult is the outcome of compiling one visualization file.
type FileResult struct {
	File          string             `json:"file"`
	Request       *execution.Request `json:"request,omitempty"`
	CompilationID string             `json:"compilationId,omitempty"`
	Seq           int64              `json:"seq,omitempty"`
	Inserted      int                `json:"inserted,omitempty"`
	DuplicateOf   string             `json:"duplicateOf,omitempty"`
	Error         *CLIError          `json:"error,omitempty"`

	err error
}

// CompileResult holds every file result, in argument order.
type CompileResult struct {
	Files     []FileResult `json:"files"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <visualization-file>...",
		Short: "Compile visualizations to execution requests",
		Long: `Compile visualizations to execution requests.

Every measure becomes a column; measures that need a generated metric get a
definition with a content-derived identifier. Definitions are ordered so
that each one follows the definitions it references.

Visualization, attributes and definitions files may be YAML, JSON or CUE.
With --db, each request is recorded in the definition registry, and
registry definitions referenced by --definitions are sent with the request.

Exit codes:
  0 - All visualizations compiled
  1 - One or more visualizations failed to compile
  2 - Command error (unreadable input, invalid flags, database errors)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Attributes, "attributes", "", "attributes map file (display form URI -> attribute)")
	cmd.Flags().StringVar(&opts.Definitions, "definitions", "", "caller-supplied metric definitions file")
	cmd.Flags().StringSliceVar(&opts.Known, "known", nil, "identifiers that exist outside the request")
	cmd.Flags().StringVar(&opts.DB, "db", "", "definition registry database path")
	cmd.Flags().StringVar(&opts.Hash, "hash", "md5", "identifier hash (md5|sha256)")
	cmd.Flags().BoolVar(&opts.RemoveDateItems, "remove-date-items", false, "drop date attributes from the columns")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 4, "visualizations compiled in parallel")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, files []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.logger(cmd)
	ctx := cmd.Context()

	hasher, err := ir.HasherByName(opts.Hash)
	if err != nil {
		return formatter.Fail(ErrCodeInvalidFlag, err.Error())
	}
	if opts.Jobs < 1 {
		return formatter.Fail(ErrCodeInvalidFlag, fmt.Sprintf("--jobs must be at least 1, got %d", opts.Jobs))
	}

	attrs := ir.AttributesMap{}
	if opts.Attributes != "" {
		if attrs, err = LoadAttributes(opts.Attributes); err != nil {
			return formatter.FailWith(err)
		}
	}
	var defs []ir.MetricDefinition
	if opts.Definitions != "" {
		if defs, err = LoadDefinitions(opts.Definitions); err != nil {
			return formatter.FailWith(err)
		}
	}

	var st *store.Store
	if opts.DB != "" {
		st, err = store.Open(opts.DB)
		if err != nil {
			return formatter.Fail(ErrCodeDatabase, err.Error())
		}
		defer st.Close()

		// Generated metrics exist only inside the request that carries
		// them, so referenced registry definitions travel with the caller's.
		stored, err := st.ReferencedDefinitions(ctx, defs, opts.Known...)
		if err != nil {
			return formatter.Fail(ErrCodeDatabase, err.Error())
		}
		formatter.VerboseLog("Loaded %d referenced definition(s) from %s", len(stored), opts.DB)
		defs = append(defs, stored...)
	}

	metrics := observability.NewMetrics()
	assembleOpts := []execution.Option{
		execution.WithHasher(hasher),
		execution.WithLogger(logger),
		execution.WithRemoveDateItems(opts.RemoveDateItems),
		execution.WithKnownIdentifiers(opts.Known...),
		execution.WithRecorder(metrics),
	}

	results := compileFiles(ctx, files, attrs, defs, opts.Jobs, assembleOpts)

	if st != nil {
		if err := recordResults(ctx, st, results, hasher, metrics); err != nil {
			return formatter.Fail(ErrCodeDatabase, err.Error())
		}
	}

	if opts.MetricsFile != "" {
		if err := metrics.WriteTextfile(opts.MetricsFile); err != nil {
			return formatter.Fail(ErrCodeWriteFailed, err.Error())
		}
	}

	result := CompileResult{Files: results}
	for _, r := range results {
		if r.err != nil {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}

	if opts.Output != "" {
		if err := writeJSONFile(opts.Output, result); err != nil {
			return formatter.Fail(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	logger.Debug("compile finished", "files", len(results), "failed", result.Failed)
	return outputCompileResult(formatter, result, opts.Output)
}

// compileFiles compiles each file on a bounded worker pool. Results keep
// argument order; per-file failures are recorded, not returned.
func compileFiles(ctx context.Context, files []string, attrs ir.AttributesMap, defs []ir.MetricDefinition, jobs int, opts []execution.Option) []FileResult {
	results := make([]FileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, file := range files {
		g.Go(func() error {
			results[i] = compileFile(ctx, file, attrs, defs, opts)
			return nil
		})
	}
	_ = g.Wait() // workers never fail; errors live in the results

	return results
}

func compileFile(ctx context.Context, file string, attrs ir.AttributesMap, defs []ir.MetricDefinition, opts []execution.Option) FileResult {
	r := FileResult{File: file}
	if err := ctx.Err(); err != nil {
		r.err = err
		r.Error = errorOf(err)
		return r
	}

	vis, err := LoadVisualization(file)
	if err != nil {
		r.err = err
		r.Error = errorOf(err)
		return r
	}

	req, err := execution.Assemble(execution.Input{
		Visualization: vis,
		Attributes:    attrs,
		Definitions:   defs,
	}, opts...)
	if err != nil {
		r.err = err
		r.Error = errorOf(err)
		return r
	}
	r.Request = req
	return r
}

// recordResults writes successful requests to the registry in argument
// order, so seq follows the command line.
func recordResults(ctx context.Context, st *store.Store, results []FileResult, hasher ir.Hasher, metrics *observability.Metrics) error {
	for i := range results {
		r := &results[i]
		if r.Request == nil {
			continue
		}

		canonical, err := r.Request.Canonical()
		if err != nil {
			return fmt.Errorf("%s: canonical request: %w", r.File, err)
		}
		digest, err := r.Request.Digest()
		if err != nil {
			return fmt.Errorf("%s: request digest: %w", r.File, err)
		}

		previous, err := st.FindCompilationsByDigest(ctx, digest)
		if err != nil {
			return fmt.Errorf("%s: %w", r.File, err)
		}
		if len(previous) > 0 {
			r.DuplicateOf = previous[0].ID
		}

		id, err := store.NewCompilationID()
		if err != nil {
			return err
		}
		seq, inserted, err := st.WriteCompilation(ctx, store.Compilation{
			ID:              id,
			Source:          r.File,
			HashName:        hasher.Name(),
			RequestDigest:   digest,
			Request:         string(canonical),
			CompilerVersion: ir.CompilerVersion,
			ModelVersion:    ir.ModelVersion,
		}, r.Request.Definitions)
		if err != nil {
			return fmt.Errorf("%s: %w", r.File, err)
		}
		metrics.DefinitionsStored(inserted)

		r.CompilationID = id
		r.Seq = seq
		r.Inserted = inserted
	}
	return nil
}

// outputCompileResult prints the results. Any load failure is a command
// error (exit 2); otherwise any compile failure exits 1.
func outputCompileResult(formatter *OutputFormatter, result CompileResult, outputFile string) error {
	exitErr := compileExitError(result)

	if formatter.JSON() {
		response := CLIResponse{Status: "ok", Data: result}
		if exitErr != nil {
			response.Status = "error"
			response.Error = &CLIError{Code: ErrCodeCompileFailed, Message: exitErr.Error()}
		}
		if err := json.NewEncoder(formatter.Writer).Encode(response); err != nil {
			return err
		}
		return exitErr
	}

	w := formatter.Writer
	for _, r := range result.Files {
		if r.err != nil {
			fmt.Fprintf(w, "✗ %s\n", r.File)
			fmt.Fprintf(w, "  %s: %s\n", r.Error.Code, r.Error.Message)
			continue
		}

		fmt.Fprintf(w, "✓ %s: %d column(s), %d definition(s)\n",
			r.File, len(r.Request.Columns), len(r.Request.Definitions))
		for _, d := range r.Request.Definitions {
			fmt.Fprintf(w, "  %s\n", d.Identifier)
			formatter.VerboseLog("    %s", d.Expression)
		}
		if r.CompilationID != "" {
			fmt.Fprintf(w, "  recorded as %s (seq %d, %d new definition(s))\n", r.CompilationID, r.Seq, r.Inserted)
		}
		if r.DuplicateOf != "" {
			fmt.Fprintf(w, "  same request as %s\n", r.DuplicateOf)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Compiled %d of %d visualization(s)\n", result.Succeeded, len(result.Files))
	if outputFile != "" {
		fmt.Fprintf(w, "Wrote requests to %s\n", outputFile)
	}
	return exitErr
}

// compileExitError returns nil when every file compiled.
func compileExitError(result CompileResult) error {
	if result.Failed == 0 {
		return nil
	}
	msg := fmt.Sprintf("%d of %d visualization(s) failed", result.Failed, len(result.Files))
	for _, r := range result.Files {
		var le *LoadError
		if errors.As(r.err, &le) {
			return NewExitError(ExitCommandError, msg)
		}
	}
	return NewExitError(ExitFailure, msg)
}

// writeJSONFile writes v as indented JSON.
func writeJSONFile(filename string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
