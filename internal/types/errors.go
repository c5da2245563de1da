package types

import "errors"

// Sentinel errors for cohort operations.
var (
	// ErrNoWhereClause indicates an edited query had no WHERE clause the
	// parser could locate. The caller must not replace its live condition
	// model when this is returned.
	ErrNoWhereClause = errors.New("no WHERE clause found in query")

	// ErrUnknownConditionKind indicates a condition with an unrecognized
	// type discriminator, typically from hand-edited persisted definitions.
	ErrUnknownConditionKind = errors.New("unknown condition kind")

	// ErrSegmentNotFound indicates a registry lookup by slug or id missed.
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrSegmentExists indicates a create collided with a persisted slug.
	ErrSegmentExists = errors.New("segment already exists")

	// ErrUnknownDataset indicates a dataset name with no declared relation
	// to the current root dataset.
	ErrUnknownDataset = errors.New("unknown dataset")
)
