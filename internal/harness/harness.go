package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/metricc/internal/compiler"
	"github.com/roach88/metricc/internal/execution"
	"github.com/roach88/metricc/internal/ir"
	"github.com/roach88/metricc/internal/store"
)

// Harness runs scenarios against the real assembler and an isolated
// registry.
type Harness struct {
	store  *store.Store
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Create fresh in-memory registry
//  2. Assemble the request with the scenario's options
//  3. Record the compilation in the registry
//  4. Evaluate assertions
//
// An assembly error is recorded in the result; only harness failures
// are returned as errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with compiler and harness logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{store: st, logger: logger}
	ctx := context.Background()

	result, err := h.assemble(scenario)
	if err != nil {
		return nil, err
	}

	compilationID := "scenario:" + scenario.Name
	if result.Request != nil {
		if err := h.record(ctx, compilationID, scenario, result.Request); err != nil {
			return nil, err
		}
	}

	actx := &AssertionContext{
		Store:         st,
		Ctx:           ctx,
		CompilationID: compilationID,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"errors", len(result.Errors),
	)
	return result, nil
}

func (h *Harness) assemble(scenario *Scenario) (*Result, error) {
	hasher, err := hasherFor(scenario.Options)
	if err != nil {
		return nil, err
	}

	vis := scenario.Visualization
	in := execution.Input{
		Visualization: &vis,
		Attributes:    scenario.Attributes,
		Definitions:   scenario.Definitions,
	}
	req, err := execution.Assemble(in,
		execution.WithHasher(hasher),
		execution.WithLogger(h.logger),
		execution.WithRemoveDateItems(scenario.Options.RemoveDateItems),
		execution.WithKnownIdentifiers(scenario.Known...),
	)

	result := NewResult()
	if err != nil {
		result.Err = err
		result.ErrorCode = string(compiler.CodeOf(err))
		h.logger.Info("assembly failed", "scenario", scenario.Name, "code", result.ErrorCode)
		return result, nil
	}
	result.Request = req
	return result, nil
}

// record writes the request to the registry the way the compile command
// does, with a deterministic compilation ID.
func (h *Harness) record(ctx context.Context, id string, scenario *Scenario, req *execution.Request) error {
	canonical, err := req.Canonical()
	if err != nil {
		return fmt.Errorf("canonical request: %w", err)
	}
	digest, err := req.Digest()
	if err != nil {
		return fmt.Errorf("request digest: %w", err)
	}
	hasher, err := hasherFor(scenario.Options)
	if err != nil {
		return err
	}

	c := store.Compilation{
		ID:              id,
		Source:          scenario.Name,
		HashName:        hasher.Name(),
		RequestDigest:   digest,
		Request:         string(canonical),
		CompilerVersion: ir.CompilerVersion,
		ModelVersion:    ir.ModelVersion,
	}
	if _, _, err := h.store.WriteCompilation(ctx, c, req.Definitions); err != nil {
		return fmt.Errorf("record compilation: %w", err)
	}
	return nil
}

func hasherFor(o Options) (ir.Hasher, error) {
	if o.Hash == "" {
		return ir.MD5Hasher{}, nil
	}
	return ir.HasherByName(o.Hash)
}
