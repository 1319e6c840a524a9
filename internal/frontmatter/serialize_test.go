package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
		want   string
	}{
		{"empty", map[string]any{}, ""},
		{"sorted keys", map[string]any{"b": "two", "a": "one", "c": 3}, "a: one\nb: two\nc: 3\n"},
		{"nested map", map[string]any{"outer": map[string]any{"b": 2, "a": 1}}, "outer:\n  a: 1\n  b: 2\n"},
		{"tag order kept", map[string]any{"title": "Hello", "tags": []any{"go", "featured"}}, "tags:\n  - go\n  - featured\ntitle: Hello\n"},
		{"draft flag", map[string]any{"is_draft": true}, "is_draft: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Canonical(tt.fields)
			if err != nil {
				t.Fatalf("Canonical() error = %v", err)
			}
			if string(out) != tt.want {
				t.Errorf("Canonical() = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestCanonical_RoundTripsParsedFrontmatter(t *testing.T) {
	fields, err := ParseYAML([]byte("title: Hi\ntags: [b, a]\npublished_at: 2024-01-02\n"))
	require.NoError(t, err)

	first, err := Canonical(fields)
	require.NoError(t, err)
	second, err := Canonical(fields)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Contains(t, string(first), "tags:\n  - b\n  - a\ntitle: Hi\n")
}

func TestCanonical_UnsupportedValue(t *testing.T) {
	_, err := Canonical(map[string]any{"bad": struct{}{}})
	require.Error(t, err)
}
