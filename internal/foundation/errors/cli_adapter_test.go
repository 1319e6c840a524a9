package errors

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation error", err: ValidationError("unknown topic").Build(), expected: 2},
		{name: "not found error", err: NotFoundError("no content").Build(), expected: 3},
		{name: "parse error", err: ParseError("bad yaml").Build(), expected: 4},
		{name: "config error", err: ConfigError("bad config").Build(), expected: 7},
		{name: "internal error", err: InternalError("bug").Build(), expected: 10},
		{name: "filesystem error", err: WrapError(errors.New("disk full"), CategoryFileSystem, "write failed").Build(), expected: 11},
		{name: "wrapped build error", err: fmt.Errorf("run: %w", BuildError("failed").Build()), expected: 11},
		{name: "cache error", err: CacheError("flush").Build(), expected: 12},
		{name: "runtime error", err: NewError(CategoryRuntime, "canceled").Build(), expected: 12},
		{name: "unclassified error", err: errors.New("unknown error"), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adapter.ExitCodeFor(tt.err)
			if got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, slog.Default())
	verbose := NewCLIErrorAdapter(true, slog.Default())

	userErr := WrapError(errors.New("no such topic"), CategoryValidation, "invalid topic").Build()
	if got := quiet.FormatError(userErr); got != "Error: invalid topic: no such topic" {
		t.Errorf("unexpected user-facing message: %q", got)
	}

	buildErr := BuildError("aggregate failed").Build()
	if got := quiet.FormatError(buildErr); !strings.Contains(got, "use -v for details") {
		t.Errorf("expected hint for non-user error, got %q", got)
	}
	if got := verbose.FormatError(buildErr); got != buildErr.Error() {
		t.Errorf("expected full error in verbose mode, got %q", got)
	}
	if got := quiet.FormatError(errors.New("plain")); got != "Error: plain" {
		t.Errorf("unexpected unclassified message: %q", got)
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var logBuf, out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	adapter := NewCLIErrorAdapter(false, logger)
	adapter.out = &out

	code := -1
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(ConfigError("missing site url").WithContext("file", "x.yaml").Build())

	if code != 7 {
		t.Errorf("expected exit code 7, got %d", code)
	}
	if !strings.Contains(out.String(), "missing site url") {
		t.Errorf("expected message on output, got %q", out.String())
	}
	if !strings.Contains(logBuf.String(), "category=config") {
		t.Errorf("expected fatal error to be logged with category, got %q", logBuf.String())
	}
}
