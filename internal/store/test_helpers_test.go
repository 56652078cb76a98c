package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/metricc/internal/ir"
)

// createTestStore creates a new on-disk store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCompilation creates a compilation with minimal required fields.
func createTestCompilation(id, source string) Compilation {
	return Compilation{
		ID:              id,
		Source:          source,
		HashName:        "md5",
		RequestDigest:   "digest-" + id,
		Request:         `{"columns":[]}`,
		CompilerVersion: ir.CompilerVersion,
		ModelVersion:    ir.ModelVersion,
	}
}

// createTestDefinition creates a definition whose fields derive from id.
func createTestDefinition(id string) ir.MetricDefinition {
	return ir.MetricDefinition{
		Identifier: id,
		Expression: "SELECT [/gdc/md/p/obj/" + id + "]",
		Title:      "Title " + id,
		Format:     "#,##0",
	}
}
