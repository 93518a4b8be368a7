package store

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases s and collapses runs of non-alphanumeric characters to
// a single underscore, trimming leading/trailing underscores -- the
// normalization rule used both for workspace slugs (§3) and for fuzzy
// knowledge-page token matching (§4.B), so it lives once here and the
// knowledge package reuses the same shape independently (see
// internal/knowledge's normalize, kept package-local to avoid a
// store->knowledge dependency for a three-line helper).
func slugify(s string) string {
	lower := strings.ToLower(s)
	collapsed := nonAlnum.ReplaceAllString(lower, "_")
	return strings.Trim(collapsed, "_")
}
