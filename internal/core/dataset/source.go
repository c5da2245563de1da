// Package dataset introspects data-source schemas and executes previews.
//
// The schema source lists tables and classifies their columns into semantic
// types for the condition builder; the executor runs compiled preview
// queries. Both work against the same connection as the registry, with
// per-driver introspection (information_schema for PostgreSQL, PRAGMA for
// SQLite).
package dataset

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/NguyenLeGiangHa/cohort/internal/segment"
	"github.com/NguyenLeGiangHa/cohort/internal/types"
)

// Source provides dataset and attribute discovery for a connection.
type Source struct {
	db     *sqlx.DB
	schema string
}

// NewSource creates a schema source. schema applies to PostgreSQL only;
// SQLite has a single namespace.
func NewSource(conn *sqlx.DB, schema string) *Source {
	if schema == "" {
		schema = segment.DefaultSchema
	}
	return &Source{db: conn, schema: schema}
}

// Datasets lists the table names available as segment root datasets.
func (s *Source) Datasets(ctx context.Context) ([]string, error) {
	var query string
	var args []any
	if s.db.DriverName() == "sqlite3" {
		query = `SELECT name FROM sqlite_master
			WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
			ORDER BY name`
	} else {
		query = `SELECT table_name FROM information_schema.tables
			WHERE table_schema = $1 AND table_type = 'BASE TABLE'
			ORDER BY table_name`
		args = append(args, s.schema)
	}

	var names []string
	if err := s.db.SelectContext(ctx, &names, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	return names, nil
}

// Attributes lists the columns of a dataset with resolved semantic types.
// Returns types.ErrUnknownDataset when the table does not exist.
func (s *Source) Attributes(ctx context.Context, dataset string) ([]segment.Attribute, error) {
	if s.db.DriverName() == "sqlite3" {
		return s.sqliteAttributes(ctx, dataset)
	}
	return s.postgresAttributes(ctx, dataset)
}

func (s *Source) postgresAttributes(ctx context.Context, dataset string) ([]segment.Attribute, error) {
	rows := []struct {
		Name string `db:"column_name"`
		Type string `db:"data_type"`
	}{}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT column_name, data_type FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`,
		s.schema, dataset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect %s: %w", dataset, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownDataset, dataset)
	}

	attrs := make([]segment.Attribute, len(rows))
	for i, r := range rows {
		attrs[i] = segment.Attribute{
			Name: r.Name,
			Type: segment.ResolveFieldType(r.Name, r.Type),
		}
	}
	return attrs, nil
}

func (s *Source) sqliteAttributes(ctx context.Context, dataset string) ([]segment.Attribute, error) {
	// PRAGMA does not take bind parameters; table_info returns zero rows for
	// an unknown table rather than failing.
	rows := []struct {
		CID     int     `db:"cid"`
		Name    string  `db:"name"`
		Type    string  `db:"type"`
		NotNull int     `db:"notnull"`
		Default *string `db:"dflt_value"`
		PK      int     `db:"pk"`
	}{}
	query := fmt.Sprintf("PRAGMA table_info(%q)", dataset)
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to introspect %s: %w", dataset, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownDataset, dataset)
	}

	attrs := make([]segment.Attribute, len(rows))
	for i, r := range rows {
		attrs[i] = segment.Attribute{
			Name: r.Name,
			Type: segment.ResolveFieldType(r.Name, r.Type),
		}
	}
	return attrs, nil
}
