package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/metricc/internal/ir"
)

// LoadError represents an error that occurred while loading an input file.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands.
// Compilation failures use the compiler's own codes.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeReadFailed    = "E002" // File read error
	ErrCodeUnsupported   = "E003" // Unsupported file extension
	ErrCodeDecodeFailed  = "E004" // YAML/JSON decode failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeBuildFailed   = "E006" // CUE build failed
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeDatabase      = "E008" // Registry open/read/write error
	ErrCodeInvalidFlag   = "E009" // Invalid flag value
	ErrCodeTestFailed    = "E010" // One or more scenarios failed
	ErrCodeCompileFailed = "E011" // One or more visualizations failed to compile
)

// Top-level CUE fields read by the loaders. A CUE file without the field
// is decoded as a whole.
const (
	cueVisualizationField = "visualization"
	cueAttributesField    = "attributes"
	cueDefinitionsField   = "definitions"
)

// LoadVisualization reads a visualization from a .yaml, .yml, .json or
// .cue file. Unknown fields are rejected.
func LoadVisualization(path string) (*ir.Visualization, error) {
	var vis ir.Visualization
	if err := loadFile(path, cueVisualizationField, &vis); err != nil {
		return nil, err
	}
	return &vis, nil
}

// LoadAttributes reads an attributes map keyed by display form URI and
// validates every entry.
func LoadAttributes(path string) (ir.AttributesMap, error) {
	attrs := ir.AttributesMap{}
	if err := loadFile(path, cueAttributesField, &attrs); err != nil {
		return nil, err
	}
	if err := ir.ValidateAttributesMap(attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

// LoadDefinitions reads a list of caller-supplied definitions and
// validates them.
func LoadDefinitions(path string) ([]ir.MetricDefinition, error) {
	var defs []ir.MetricDefinition
	if err := loadFile(path, cueDefinitionsField, &defs); err != nil {
		return nil, err
	}
	if err := ir.ValidateDefinitions(defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func loadFile(path, cueField string, out any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("file not found: %s", path)}
	}
	if err != nil {
		return &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}

	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml", ".json":
		return decodeYAML(path, data, out)
	case ".cue":
		return decodeCUE(path, data, cueField, out)
	default:
		return &LoadError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("unsupported file type %q: %s", ext, path)}
	}
}

// decodeYAML decodes YAML or JSON (a YAML subset) strictly.
func decodeYAML(path string, data []byte, out any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return &LoadError{Code: ErrCodeDecodeFailed, Message: fmt.Sprintf("empty file: %s", path)}
		}
		return &LoadError{Code: ErrCodeDecodeFailed, Message: fmt.Sprintf("decoding %s: %v", path, err)}
	}
	return nil
}

func decodeCUE(path string, data []byte, field string, out any) error {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return cueLoadError(ErrCodeBuildFailed, "building CUE value", err)
	}

	if v := value.LookupPath(cue.ParsePath(field)); v.Exists() {
		value = v
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return cueLoadError(ErrCodeBuildFailed, "validating CUE value", err)
	}
	if err := value.Decode(out); err != nil {
		return cueLoadError(ErrCodeDecodeFailed, "decoding CUE value", err)
	}
	return nil
}

func cueLoadError(code, action string, err error) *LoadError {
	le := &LoadError{Code: code, Message: fmt.Sprintf("%s: %v", action, err)}
	if positions := cueerrors.Positions(err); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
