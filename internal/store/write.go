package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/metricc/internal/ir"
)

// Compilation is one assembled request as recorded in the registry.
type Compilation struct {
	// ID is a UUIDv7, so IDs sort by creation order across processes.
	ID string `json:"id"`

	// Seq is assigned by the store on write.
	Seq int64 `json:"seq"`

	Source          string `json:"source"`
	HashName        string `json:"hash"`
	RequestDigest   string `json:"requestDigest"`
	Request         string `json:"request"` // canonical JSON
	CompilerVersion string `json:"compilerVersion"`
	ModelVersion    string `json:"modelVersion"`
}

// NewCompilationID returns a fresh UUIDv7.
func NewCompilationID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate compilation id: %w", err)
	}
	return id.String(), nil
}

// WriteCompilation records c and the definitions it carried, in order,
// in one transaction, and returns the seq it assigned. c.Seq is ignored.
//
// Definitions already in the registry are left untouched; the returned
// count is the number of definitions newly inserted. Writing the same
// compilation ID twice is a no-op that returns the existing seq.
func (s *Store) WriteCompilation(ctx context.Context, c Compilation, defs []ir.MetricDefinition) (seq int64, inserted int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("write compilation: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM compilations
	`).Scan(&seq); err != nil {
		return 0, 0, fmt.Errorf("write compilation: next seq: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO compilations
		(id, seq, source, hash_name, request_digest, request, compiler_version, model_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		c.ID,
		seq,
		c.Source,
		c.HashName,
		c.RequestDigest,
		c.Request,
		c.CompilerVersion,
		c.ModelVersion,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("write compilation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("write compilation: rows affected: %w", err)
	}
	if rows == 0 {
		// Already recorded; the first write owns the links.
		if err := tx.QueryRowContext(ctx, `SELECT seq FROM compilations WHERE id = ?`, c.ID).Scan(&seq); err != nil {
			return 0, 0, fmt.Errorf("write compilation: existing seq: %w", err)
		}
		return seq, 0, tx.Commit()
	}

	for i, d := range defs {
		n, err := writeDefinition(ctx, tx, d)
		if err != nil {
			return 0, 0, err
		}
		inserted += n

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO compilation_definitions (compilation_id, position, identifier)
			VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING
		`, c.ID, i, d.Identifier); err != nil {
			return 0, 0, fmt.Errorf("write compilation definition %q: %w", d.Identifier, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("write compilation: commit: %w", err)
	}
	return seq, inserted, nil
}

// WriteDefinitions stores defs outside any compilation and returns how
// many were new.
func (s *Store) WriteDefinitions(ctx context.Context, defs []ir.MetricDefinition) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write definitions: begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, d := range defs {
		n, err := writeDefinition(ctx, tx, d)
		if err != nil {
			return 0, err
		}
		inserted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write definitions: commit: %w", err)
	}
	return inserted, nil
}

func writeDefinition(ctx context.Context, tx *sql.Tx, d ir.MetricDefinition) (int, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO definitions (identifier, expression, title, format)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(identifier) DO NOTHING
	`, d.Identifier, d.Expression, d.Title, d.Format)
	if err != nil {
		return 0, fmt.Errorf("write definition %q: %w", d.Identifier, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("write definition %q: rows affected: %w", d.Identifier, err)
	}
	return int(n), nil
}
