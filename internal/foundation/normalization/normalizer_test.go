package normalization

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type backend string

const (
	backendJSON   backend = "json"
	backendSQLite backend = "sqlite"
)

func newBackends() *Normalizer[backend] {
	return New("cache backend", map[string]backend{
		"json":   backendJSON,
		"sqlite": backendSQLite,
	})
}

func TestNormalize(t *testing.T) {
	n := newBackends()
	tests := []struct {
		input string
		want  backend
	}{
		{"json", backendJSON},
		{"JSON", backendJSON},
		{"  SQLite ", backendSQLite},
	}
	for _, tt := range tests {
		got, err := n.Normalize(tt.input)
		if err != nil {
			t.Errorf("Normalize(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalize_Unknown(t *testing.T) {
	_, err := newBackends().Normalize("redis")
	require.Error(t, err)
	require.Contains(t, err.Error(), `invalid cache backend "redis"`)
	require.Contains(t, err.Error(), "json, sqlite")
}

func TestValidKeys_ReturnsCopy(t *testing.T) {
	n := newBackends()
	keys := n.ValidKeys()
	keys[0] = "mutated"
	require.Equal(t, []string{"json", "sqlite"}, n.ValidKeys())
}
