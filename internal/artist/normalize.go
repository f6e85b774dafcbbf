package artist

import (
	"fmt"
	"regexp"
	"strings"
)

// Normalized holds the canonical forms of a free-text artist name.
type Normalized struct {
	// Slug is the URL-safe unique key: lowercase, hyphen-separated,
	// restricted to [a-z0-9-].
	Slug string
	// Key is the comparison key used for exact-equality matching:
	// the slug with separators removed.
	Key string
}

// InvalidNameError indicates a name too short or too garbled to canonicalize.
// Callers must not create a Profile for such a name.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid artist name: %q", e.Name)
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	hyphenRun     = regexp.MustCompile(`-{2,}`)
)

// Normalize canonicalizes a free-text artist name. It lower-cases, trims,
// converts whitespace runs to single hyphens, strips everything outside
// [a-z0-9-], collapses repeated hyphens, and strips leading/trailing hyphens.
// Names whose slug comes out shorter than two characters are rejected.
func Normalize(name string) (Normalized, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	s = whitespaceRun.ReplaceAllString(s, "-")

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}

	slug := hyphenRun.ReplaceAllString(b.String(), "-")
	slug = strings.Trim(slug, "-")

	if len(slug) < 2 {
		return Normalized{}, &InvalidNameError{Name: name}
	}

	return Normalized{
		Slug: slug,
		Key:  strings.ReplaceAll(slug, "-", ""),
	}, nil
}
