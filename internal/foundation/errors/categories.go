package errors

// ErrorCategory is the broad class of an error. It drives CLI exit codes
// and the failure kind recorded for each item in a build report.
type ErrorCategory string

const (
	// User input: configuration, request flags and content files.
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"
	CategoryParse      ErrorCategory = "parse"

	// Pipeline stages.
	CategoryDiscovery  ErrorCategory = "discovery"
	CategoryBuild      ErrorCategory = "build"
	CategoryRender     ErrorCategory = "render"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryCache      ErrorCategory = "cache"

	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// ExitCode maps the category to the process exit status.
func (c ErrorCategory) ExitCode() int {
	switch c {
	case CategoryValidation:
		return 2
	case CategoryNotFound:
		return 3
	case CategoryParse:
		return 4
	case CategoryConfig:
		return 7
	case CategoryInternal:
		return 10
	case CategoryBuild, CategoryRender, CategoryFileSystem, CategoryDiscovery:
		return 11
	case CategoryCache, CategoryRuntime:
		return 12
	default:
		return 1
	}
}

// userFacing reports whether errors of this category describe something the
// user wrote, so the underlying cause is worth printing without -v.
func (c ErrorCategory) userFacing() bool {
	switch c {
	case CategoryConfig, CategoryValidation, CategoryNotFound, CategoryParse:
		return true
	}
	return false
}

// ErrorSeverity indicates how far an error propagates.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // aborts the invocation
	SeverityError   ErrorSeverity = "error"   // fails the current item or artifact
	SeverityWarning ErrorSeverity = "warning" // logged, build continues
)

// ErrorContext carries structured key/value details for logging.
type ErrorContext map[string]any

// GetString returns the value for key when it is a string.
func (c ErrorContext) GetString(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}
