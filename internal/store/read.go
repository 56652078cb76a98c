package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/metricc/internal/ir"
)

// ReadDefinition returns the definition with the given identifier, or
// ErrNotFound.
func (s *Store) ReadDefinition(ctx context.Context, identifier string) (ir.MetricDefinition, error) {
	var d ir.MetricDefinition
	err := s.db.QueryRowContext(ctx, `
		SELECT identifier, expression, title, format
		FROM definitions
		WHERE identifier = ?
	`, identifier).Scan(&d.Identifier, &d.Expression, &d.Title, &d.Format)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.MetricDefinition{}, fmt.Errorf("definition %q: %w", identifier, ErrNotFound)
	}
	if err != nil {
		return ir.MetricDefinition{}, fmt.Errorf("read definition: %w", err)
	}
	return d, nil
}

// ReadDefinitions returns every stored definition ordered by identifier.
//
// Returns an empty slice (not nil) if the registry is empty.
func (s *Store) ReadDefinitions(ctx context.Context) ([]ir.MetricDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identifier, expression, title, format
		FROM definitions
		ORDER BY identifier COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}
	return scanDefinitions(rows)
}

// ReadCompilationDefinitions returns the definitions carried by one
// compilation, in request order.
func (s *Store) ReadCompilationDefinitions(ctx context.Context, compilationID string) ([]ir.MetricDefinition, error) {
	if _, err := s.ReadCompilation(ctx, compilationID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.identifier, d.expression, d.title, d.format
		FROM compilation_definitions cd
		JOIN definitions d ON d.identifier = cd.identifier
		WHERE cd.compilation_id = ?
		ORDER BY cd.position ASC
	`, compilationID)
	if err != nil {
		return nil, fmt.Errorf("query compilation definitions: %w", err)
	}
	return scanDefinitions(rows)
}

// ReferencedDefinitions returns the stored definitions that defs reference,
// directly or through other stored definitions, in discovery order.
// Identifiers defined by defs or listed in exclude are not looked up.
// References the registry does not hold are skipped; the dependency check
// reports them.
func (s *Store) ReferencedDefinitions(ctx context.Context, defs []ir.MetricDefinition, exclude ...string) ([]ir.MetricDefinition, error) {
	visited := make(map[string]bool, len(defs)+len(exclude))
	for _, d := range defs {
		visited[d.Identifier] = true
	}
	for _, id := range exclude {
		visited[id] = true
	}

	var queue []string
	enqueue := func(d ir.MetricDefinition) {
		for _, ref := range d.References() {
			if !visited[ref] {
				visited[ref] = true
				queue = append(queue, ref)
			}
		}
	}
	for _, d := range defs {
		enqueue(d)
	}

	out := []ir.MetricDefinition{}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		d, err := s.ReadDefinition(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, d)
		enqueue(d)
	}
	return out, nil
}

// ReadCompilation returns one compilation, or ErrNotFound.
func (s *Store) ReadCompilation(ctx context.Context, id string) (Compilation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, source, hash_name, request_digest, request, compiler_version, model_version
		FROM compilations
		WHERE id = ?
	`, id)
	c, err := scanCompilation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Compilation{}, fmt.Errorf("compilation %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Compilation{}, fmt.Errorf("read compilation: %w", err)
	}
	return c, nil
}

// ReadCompilations returns every compilation in write order:
// ORDER BY seq ASC, id ASC COLLATE BINARY.
func (s *Store) ReadCompilations(ctx context.Context) ([]Compilation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, source, hash_name, request_digest, request, compiler_version, model_version
		FROM compilations
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	defer rows.Close()

	compilations := []Compilation{}
	for rows.Next() {
		c, err := scanCompilation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan compilation: %w", err)
		}
		compilations = append(compilations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return compilations, nil
}

// FindCompilationsByDigest returns compilations that produced an identical
// request, in write order.
func (s *Store) FindCompilationsByDigest(ctx context.Context, digest string) ([]Compilation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, source, hash_name, request_digest, request, compiler_version, model_version
		FROM compilations
		WHERE request_digest = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, digest)
	if err != nil {
		return nil, fmt.Errorf("query compilations by digest: %w", err)
	}
	defer rows.Close()

	compilations := []Compilation{}
	for rows.Next() {
		c, err := scanCompilation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan compilation: %w", err)
		}
		compilations = append(compilations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return compilations, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCompilation(row scanner) (Compilation, error) {
	var c Compilation
	err := row.Scan(
		&c.ID,
		&c.Seq,
		&c.Source,
		&c.HashName,
		&c.RequestDigest,
		&c.Request,
		&c.CompilerVersion,
		&c.ModelVersion,
	)
	return c, err
}

func scanDefinitions(rows *sql.Rows) ([]ir.MetricDefinition, error) {
	defer rows.Close()

	defs := []ir.MetricDefinition{}
	for rows.Next() {
		var d ir.MetricDefinition
		if err := rows.Scan(&d.Identifier, &d.Expression, &d.Title, &d.Format); err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate definitions: %w", err)
	}
	return defs, nil
}
