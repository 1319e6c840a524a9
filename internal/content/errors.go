package content

import "errors"

// Sentinel errors for content parsing. They are wrapped in classified errors
// so callers should test with errors.Is.
var (
	ErrMissingFrontmatter = errors.New("missing frontmatter")
	ErrInvalidFrontmatter = errors.New("invalid frontmatter")
	ErrValidation         = errors.New("frontmatter validation failed")
)
