// Package registry persists segment definitions and membership snapshots.
//
// Definitions are stored as JSON documents keyed by their immutable segment
// id, with a unique slug alias for inclusion/exclusion references. All SQL
// goes through named queries in internal/core/db; this package owns only
// the mapping between rows and the domain model.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NguyenLeGiangHa/cohort/internal/core/db"
	"github.com/NguyenLeGiangHa/cohort/internal/types"
)

// Registry stores and retrieves segment definitions.
type Registry struct {
	queries *db.Queries
}

// New creates a Registry over a loaded query set.
func New(queries *db.Queries) *Registry {
	return &Registry{queries: queries}
}

// segmentRow mirrors the segments table.
type segmentRow struct {
	SegmentID   string    `db:"segment_id"`
	Slug        string    `db:"slug"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Dataset     string    `db:"dataset"`
	Definition  string    `db:"definition"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r segmentRow) toDefinition() (types.SegmentDefinition, error) {
	var def types.SegmentDefinition
	if err := json.Unmarshal([]byte(r.Definition), &def); err != nil {
		return types.SegmentDefinition{}, fmt.Errorf("failed to decode segment %s: %w", r.SegmentID, err)
	}
	// Row columns are authoritative for identity and naming; the document
	// may lag after a direct column update.
	def.SegmentID = types.SegmentID(r.SegmentID)
	def.Slug = r.Slug
	def.Name = r.Name
	def.Description = r.Description
	def.Dataset = r.Dataset
	return def, nil
}

// Create persists a new segment definition. The definition must carry a
// SegmentID (from types.NewSegmentID); returns types.ErrSegmentExists when
// the id or slug is already taken.
func (r *Registry) Create(ctx context.Context, def types.SegmentDefinition) error {
	if def.SegmentID == "" {
		return errors.New("segment definition has no id")
	}
	if _, err := r.GetBySlug(ctx, def.Slug); err == nil {
		return fmt.Errorf("%w: %s", types.ErrSegmentExists, def.Slug)
	} else if !errors.Is(err, types.ErrSegmentNotFound) {
		return err
	}

	doc, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode segment: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.queries.Exec(ctx, "insert-segment",
		string(def.SegmentID), def.Slug, def.Name, def.Description, def.Dataset,
		string(doc), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert segment: %w", err)
	}
	return nil
}

// Update replaces the stored definition for def.SegmentID. The slug column
// follows the definition, so renames update the alias atomically.
func (r *Registry) Update(ctx context.Context, def types.SegmentDefinition) error {
	doc, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode segment: %w", err)
	}

	res, err := r.queries.Exec(ctx, "update-segment",
		def.Slug, def.Name, def.Description, def.Dataset, string(doc),
		time.Now().UTC(), string(def.SegmentID),
	)
	if err != nil {
		return fmt.Errorf("failed to update segment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrSegmentNotFound, def.SegmentID)
	}
	return nil
}

// Get retrieves a segment by its immutable id.
func (r *Registry) Get(ctx context.Context, id types.SegmentID) (types.SegmentDefinition, error) {
	var row segmentRow
	if err := r.queries.Get(ctx, "get-segment", &row, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.SegmentDefinition{}, fmt.Errorf("%w: %s", types.ErrSegmentNotFound, id)
		}
		return types.SegmentDefinition{}, fmt.Errorf("failed to get segment: %w", err)
	}
	return row.toDefinition()
}

// GetBySlug retrieves a segment by its slug alias (segment:<slug> form).
func (r *Registry) GetBySlug(ctx context.Context, slug string) (types.SegmentDefinition, error) {
	var row segmentRow
	if err := r.queries.Get(ctx, "get-segment-by-slug", &row, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.SegmentDefinition{}, fmt.Errorf("%w: %s", types.ErrSegmentNotFound, slug)
		}
		return types.SegmentDefinition{}, fmt.Errorf("failed to get segment: %w", err)
	}
	return row.toDefinition()
}

// List returns all persisted segments in creation order.
func (r *Registry) List(ctx context.Context) ([]types.SegmentDefinition, error) {
	var rows []segmentRow
	if err := r.queries.Select(ctx, "list-segments", &rows); err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}

	defs := make([]types.SegmentDefinition, 0, len(rows))
	for _, row := range rows {
		def, err := row.toDefinition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Refs returns slug references for every persisted segment, with membership
// counts where a snapshot exists. This is the candidate list for building
// inclusion/exclusion relationships.
func (r *Registry) Refs(ctx context.Context) ([]types.SegmentRef, error) {
	defs, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	refs := make([]types.SegmentRef, 0, len(defs))
	for _, def := range defs {
		var count int
		if err := r.queries.Get(ctx, "count-membership", &count, def.Slug); err != nil {
			return nil, fmt.Errorf("failed to count membership for %s: %w", def.Slug, err)
		}
		refs = append(refs, types.SegmentRef{ID: def.Slug, Name: def.Name, Count: count})
	}
	return refs, nil
}

// Delete removes a segment and its membership snapshot.
func (r *Registry) Delete(ctx context.Context, id types.SegmentID) error {
	def, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := r.queries.Exec(ctx, "clear-membership", def.Slug); err != nil {
		return fmt.Errorf("failed to clear membership: %w", err)
	}
	if _, err := r.queries.Exec(ctx, "delete-segment", string(id)); err != nil {
		return fmt.Errorf("failed to delete segment: %w", err)
	}
	return nil
}

// ReplaceMembership swaps the membership snapshot for a slug with the given
// member ids. An empty member list clears the snapshot.
func (r *Registry) ReplaceMembership(ctx context.Context, slug string, memberIDs []string) error {
	if _, err := r.queries.Exec(ctx, "clear-membership", slug); err != nil {
		return fmt.Errorf("failed to clear membership: %w", err)
	}
	now := time.Now().UTC()
	for _, memberID := range memberIDs {
		if _, err := r.queries.Exec(ctx, "replace-membership", slug, memberID, now); err != nil {
			return fmt.Errorf("failed to insert membership: %w", err)
		}
	}
	return nil
}
