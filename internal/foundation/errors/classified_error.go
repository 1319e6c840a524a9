package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
)

// ClassifiedError is an error with a category, severity and context. Every
// error that crosses a package boundary in contentbuild is one of these, so
// the CLI can pick an exit code and the executor can record a failure kind.
type ClassifiedError struct {
	category    ErrorCategory
	severity    ErrorSeverity
	userFixable bool
	message     string
	cause       error
	context     ErrorContext
}

func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.category, e.severity, e.message, e.cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.category, e.severity, e.message)
}

// Unwrap exposes the cause so errors.Is matches package sentinels.
func (e *ClassifiedError) Unwrap() error { return e.cause }

func (e *ClassifiedError) Category() ErrorCategory { return e.category }
func (e *ClassifiedError) Severity() ErrorSeverity { return e.severity }
func (e *ClassifiedError) Message() string         { return e.message }
func (e *ClassifiedError) Cause() error            { return e.cause }
func (e *ClassifiedError) Context() ErrorContext   { return e.context }

// UserFixable reports whether the user can resolve the error by editing
// configuration or content.
func (e *ClassifiedError) UserFixable() bool { return e.userFixable }

// WithContext returns a copy of the error with key set in its context.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	cp := *e
	cp.context = maps.Clone(e.context)
	if cp.context == nil {
		cp.context = make(ErrorContext)
	}
	cp.context[key] = value
	return &cp
}

// AsClassified returns the first ClassifiedError in the chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	if stderrors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// HasCategory reports whether the first classified error in the chain
// belongs to category.
func HasCategory(err error, category ErrorCategory) bool {
	classified, ok := AsClassified(err)
	return ok && classified.category == category
}

// GetCategory extracts the category from err, or returns CategoryInternal.
func GetCategory(err error) ErrorCategory {
	if classified, ok := AsClassified(err); ok {
		return classified.category
	}
	return CategoryInternal
}

// GetSeverity extracts the severity from err, or returns SeverityError.
func GetSeverity(err error) ErrorSeverity {
	if classified, ok := AsClassified(err); ok {
		return classified.severity
	}
	return SeverityError
}
