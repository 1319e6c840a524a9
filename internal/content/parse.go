package content

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/contentbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuild/internal/frontmatter"
)

// Parse splits raw into validated frontmatter and a markdown body.
//
// The body has CRLF normalized to LF and leading/trailing blank lines
// removed. Errors wrap ErrMissingFrontmatter, ErrInvalidFrontmatter or
// ErrValidation.
func Parse(raw []byte) (Frontmatter, string, error) {
	block, body, had, err := frontmatter.Split(raw)
	if err != nil {
		return Frontmatter{}, "", errors.WrapError(fmt.Errorf("%w: %w", ErrInvalidFrontmatter, err), errors.CategoryParse, "unterminated frontmatter block").
			UserAction().
			Build()
	}
	if !had {
		return Frontmatter{}, "", errors.WrapError(ErrMissingFrontmatter, errors.CategoryParse, "document must start with a --- line").
			UserAction().
			Build()
	}

	fields, err := frontmatter.ParseYAML(block, textKeys...)
	if err != nil {
		return Frontmatter{}, "", errors.WrapError(fmt.Errorf("%w: %w", ErrInvalidFrontmatter, err), errors.CategoryParse, "failed to decode frontmatter").
			UserAction().
			Build()
	}

	fm, err := decodeFrontmatter(fields)
	if err != nil {
		return Frontmatter{}, "", errors.WrapError(err, errors.CategoryValidation, "frontmatter rejected").
			UserAction().
			Build()
	}

	return fm, trimBlankLines(string(body)), nil
}

func trimBlankLines(body string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
