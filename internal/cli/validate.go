package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/metricc/internal/compiler"
	"github.com/roach88/metricc/internal/execution"
	"github.com/roach88/metricc/internal/ir"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Attributes  string
	Definitions string
	Known       []string
}

// ValidationIssue is one problem found in a visualization.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <visualization-file>",
		Short: "Check a visualization without recording anything",
		Long: `Check a visualization against its attributes map.

Runs structural validation, reports every display form the attributes map
cannot resolve, then compiles the visualization without writing output.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Attributes, "attributes", "", "attributes map file (display form URI -> attribute)")
	cmd.Flags().StringVar(&opts.Definitions, "definitions", "", "caller-supplied metric definitions file")
	cmd.Flags().StringSliceVar(&opts.Known, "known", nil, "identifiers that exist outside the request")

	return cmd
}

func runValidate(opts *ValidateOptions, file string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	vis, err := LoadVisualization(file)
	if err != nil {
		return formatter.FailWith(err)
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

	issues := ValidateInputs(vis, attrs, defs, opts.Known, opts.logger(cmd))
	formatter.VerboseLog("Checked %s: %d issue(s)", file, len(issues))

	if len(issues) > 0 {
		return outputValidationIssues(formatter, issues)
	}
	return outputValidateSuccess(formatter)
}

// ValidateInputs checks vis in three passes and stops after the first pass
// that finds anything: structure, display form coverage, then a dry-run
// compilation.
func ValidateInputs(vis *ir.Visualization, attrs ir.AttributesMap, defs []ir.MetricDefinition, known []string, logger *slog.Logger) []ValidationIssue {
	var issues []ValidationIssue

	if err := ir.ValidateVisualization(vis); err != nil {
		var ve *ir.ValidationError
		if errors.As(err, &ve) {
			for _, f := range ve.Fields {
				issues = append(issues, ValidationIssue{Code: string(compiler.ErrCodeInvalidInput), Message: f})
			}
		} else {
			issues = append(issues, ValidationIssue{Code: string(compiler.ErrCodeInvalidInput), Message: err.Error()})
		}
		return issues
	}

	for _, df := range execution.MissingDisplayForms(vis, attrs) {
		issues = append(issues, ValidationIssue{
			Code:    string(compiler.ErrCodeMissingAttribute),
			Message: fmt.Sprintf("no attribute for display form %s", df),
		})
	}
	if len(issues) > 0 {
		return issues
	}

	req, err := execution.Assemble(execution.Input{
		Visualization: vis,
		Attributes:    attrs,
		Definitions:   defs,
	}, execution.WithKnownIdentifiers(known...))
	if err != nil {
		e := errorOf(err)
		return []ValidationIssue{{Code: e.Code, Message: e.Message}}
	}
	logger.Debug("dry run compiled", "columns", len(req.Columns), "definitions", len(req.Definitions))
	return nil
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter) error {
	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true})
	}

	fmt.Fprintln(formatter.Writer, "✓ Visualization valid")
	return nil
}

// outputValidationIssues outputs every validation issue.
func outputValidationIssues(formatter *OutputFormatter, issues []ValidationIssue) error {
	if formatter.JSON() {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Issues: issues},
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", issue.Code, issue.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
}
