package content

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// Canonical frontmatter keys.
const (
	KeyTitle       = "title"
	KeyDescription = "description"
	KeyTagline     = "tagline"
	KeyPublishedAt = "published_at"
	KeyUpdatedAt   = "updated_at"
	KeyIsDraft     = "is_draft"
	KeyTags        = "tags"
	KeyImage       = "image"
)

// aliases maps legacy key names onto canonical ones. The canonical key wins
// when both are present.
var aliases = map[string]string{
	"published":      KeyPublishedAt,
	"updated":        KeyUpdatedAt,
	"draft":          KeyIsDraft,
	"featured_image": KeyImage,
}

// textKeys are decoded as their source text, including alias spellings.
var textKeys = []string{
	KeyTitle, KeyDescription, KeyTagline, KeyPublishedAt, KeyUpdatedAt, KeyImage, KeyTags,
	"published", "updated", "featured_image",
}

// Frontmatter is the decoded metadata block of an item. Dates are kept
// verbatim; interpretation happens in the sitemap and feed generators.
type Frontmatter struct {
	Title       string
	Description string
	Tagline     string
	PublishedAt string
	UpdatedAt   string
	IsDraft     bool
	Tags        []string
	Image       string
	// Extra holds keys this package does not interpret.
	Extra map[string]any
}

// Fields returns the frontmatter as a canonical key map, including Extra.
// Empty optional values are omitted.
func (f Frontmatter) Fields() map[string]any {
	out := make(map[string]any, 8+len(f.Extra))
	maps.Copy(out, f.Extra)
	out[KeyTitle] = f.Title
	for k, v := range map[string]string{
		KeyDescription: f.Description,
		KeyTagline:     f.Tagline,
		KeyPublishedAt: f.PublishedAt,
		KeyUpdatedAt:   f.UpdatedAt,
		KeyImage:       f.Image,
	} {
		if v != "" {
			out[k] = v
		}
	}
	if f.IsDraft {
		out[KeyIsDraft] = true
	}
	if len(f.Tags) > 0 {
		out[KeyTags] = append([]string(nil), f.Tags...)
	}
	return out
}

// Summary returns description, falling back to tagline.
func (f Frontmatter) Summary() string {
	if f.Description != "" {
		return f.Description
	}
	return f.Tagline
}

// EffectiveDate returns updated_at when set, otherwise published_at.
func (f Frontmatter) EffectiveDate() string {
	if f.UpdatedAt != "" {
		return f.UpdatedAt
	}
	return f.PublishedAt
}

// HasTag reports whether the item is tagged with tag, ignoring case.
func (f Frontmatter) HasTag(tag string) bool {
	for _, t := range f.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func decodeFrontmatter(fields map[string]any) (Frontmatter, error) {
	canonical := make(map[string]any, len(fields))
	for k, v := range fields {
		if target, ok := aliases[k]; ok {
			if _, set := fields[target]; !set {
				canonical[target] = v
			}
			continue
		}
		canonical[k] = v
	}

	var fm Frontmatter
	var err error
	str := func(key string) string {
		if err != nil {
			return ""
		}
		var s string
		s, err = scalarString(key, canonical[key])
		return s
	}

	fm.Title = strings.TrimSpace(str(KeyTitle))
	fm.Description = str(KeyDescription)
	fm.Tagline = str(KeyTagline)
	fm.PublishedAt = strings.TrimSpace(str(KeyPublishedAt))
	fm.UpdatedAt = strings.TrimSpace(str(KeyUpdatedAt))
	fm.Image = strings.TrimSpace(str(KeyImage))
	if err != nil {
		return Frontmatter{}, err
	}

	if fm.Title == "" {
		return Frontmatter{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if fm.IsDraft, err = draftFlag(canonical[KeyIsDraft]); err != nil {
		return Frontmatter{}, err
	}
	if fm.Tags, err = tagList(canonical[KeyTags]); err != nil {
		return Frontmatter{}, err
	}

	for k, v := range canonical {
		switch k {
		case KeyTitle, KeyDescription, KeyTagline, KeyPublishedAt, KeyUpdatedAt, KeyIsDraft, KeyTags, KeyImage:
			continue
		}
		if fm.Extra == nil {
			fm.Extra = make(map[string]any)
		}
		fm.Extra[k] = v
	}
	return fm, nil
}

func scalarString(key string, v any) (string, error) {
	switch vv := v.(type) {
	case nil:
		return "", nil
	case string:
		return vv, nil
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(vv), nil
	default:
		return "", fmt.Errorf("%w: %s must be a scalar, got %T", ErrValidation, key, v)
	}
}

func draftFlag(v any) (bool, error) {
	switch vv := v.(type) {
	case nil:
		return false, nil
	case bool:
		return vv, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(vv))
		if err != nil {
			return false, fmt.Errorf("%w: is_draft must be a boolean, got %q", ErrValidation, vv)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%w: is_draft must be a boolean, got %T", ErrValidation, v)
	}
}

// tagList accepts a YAML sequence or a comma separated string.
func tagList(v any) ([]string, error) {
	var raw []string
	switch vv := v.(type) {
	case nil:
		return nil, nil
	case string:
		raw = strings.Split(vv, ",")
	case []any:
		for _, item := range vv {
			s, err := scalarString(KeyTags, item)
			if err != nil {
				return nil, err
			}
			raw = append(raw, s)
		}
	default:
		return nil, fmt.Errorf("%w: tags must be a list, got %T", ErrValidation, v)
	}

	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags, nil
}
