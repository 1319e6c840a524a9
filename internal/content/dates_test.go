package content

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{" 2024-03-01 ", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"2024-03-01T10:20:30Z", time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC), true},
		{"2024-03-01T10:20:30+02:00", time.Date(2024, 3, 1, 8, 20, 30, 0, time.UTC), true},
		{"2024-03-01T10:20:30", time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC), true},
		{"2024-03-01 10:20:30", time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"yesterday", time.Time{}, false},
		{"2024-13-01", time.Time{}, false},
	}
	for _, tc := range cases {
		got, ok := ParseDate(tc.in)
		if ok != tc.ok {
			t.Errorf("ParseDate(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && !got.Equal(tc.want) {
			t.Errorf("ParseDate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
