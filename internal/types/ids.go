package types

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// SegmentID is the immutable UUIDv7 identity of a segment.
// Assigned once at creation; renames never change it. Time-ordering keeps
// sequential inserts clustered in B-tree indexes.
type SegmentID string

// NewSegmentID generates a UUIDv7 segment identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewSegmentID() SegmentID {
	return SegmentID(uuid.Must(uuid.NewV7()).String())
}

// ParseSegmentID validates and converts a string to SegmentID.
func ParseSegmentID(s string) (SegmentID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return SegmentID(s), nil
}

// SlugPrefix namespaces slug-derived segment references.
const SlugPrefix = "segment:"

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugSpaces   = regexp.MustCompile(`\s+`)
	slugCollapse = regexp.MustCompile(`-+`)
)

// DeriveSlug computes the slug-derived reference id for a segment name:
// lower-case, strip non-word/non-space/non-hyphen runes, collapse whitespace
// to hyphens, collapse repeated hyphens, prefix "segment:".
//
// Pure and stable: the same name always yields the same slug. Two distinct
// names may collide; the SegmentID stays authoritative for identity.
func DeriveSlug(name string) string {
	slug := strings.ToLower(name)
	slug = slugStrip.ReplaceAllString(slug, "")
	slug = strings.TrimSpace(slug)
	slug = slugSpaces.ReplaceAllString(slug, "-")
	slug = slugCollapse.ReplaceAllString(slug, "-")
	return SlugPrefix + slug
}
