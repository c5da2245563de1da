package dataset

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/NguyenLeGiangHa/cohort/internal/types"
)

// Preview is the result of executing a compiled segment query.
type Preview struct {
	Columns  []string
	Rows     []map[string]any
	RowCount int
}

// Executor runs compiled segment queries against the data source.
type Executor struct {
	db *sqlx.DB
}

// NewExecutor creates an Executor over a connection.
func NewExecutor(conn *sqlx.DB) *Executor {
	return &Executor{db: conn}
}

// Run executes a compiled query and materializes the result set. The query
// carries its own LIMIT, so the result is bounded by the compile options.
func (e *Executor) Run(ctx context.Context, query string) (Preview, error) {
	rows, err := e.db.QueryxContext(ctx, query)
	if err != nil {
		return Preview{}, fmt.Errorf("preview query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Preview{}, err
	}

	preview := Preview{Columns: columns}
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return Preview{}, fmt.Errorf("failed to scan preview row: %w", err)
		}
		// Drivers return []byte for text columns; stringify for display.
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		preview.Rows = append(preview.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return Preview{}, err
	}

	preview.RowCount = len(preview.Rows)
	return preview, nil
}

// EstimateSize counts the rows a compiled query matches against the dataset's
// total. The count is bounded by the query's own LIMIT and therefore advisory.
func (e *Executor) EstimateSize(ctx context.Context, query, table string) (types.EstimatedSize, error) {
	var matched int
	counted := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS candidates", query)
	if err := e.db.GetContext(ctx, &matched, counted); err != nil {
		return types.EstimatedSize{}, fmt.Errorf("size estimate failed: %w", err)
	}

	var total int
	if err := e.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)); err != nil {
		return types.EstimatedSize{}, fmt.Errorf("size estimate failed: %w", err)
	}

	est := types.EstimatedSize{Count: matched}
	if total > 0 {
		est.Percentage = float64(matched) / float64(total) * 100
	}
	return est, nil
}

// MemberIDs executes a compiled query and collects the values of idColumn,
// for materializing a membership snapshot.
func (e *Executor) MemberIDs(ctx context.Context, query, idColumn string) ([]string, error) {
	preview, err := e.Run(ctx, query)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(preview.Rows))
	for _, row := range preview.Rows {
		v, ok := row[idColumn]
		if !ok || v == nil {
			continue
		}
		ids = append(ids, fmt.Sprintf("%v", v))
	}
	return ids, nil
}
