// Package errors provides the classified error primitives used across
// contentbuild.
//
// A ClassifiedError carries an ErrorCategory (config, parse, discovery,
// cache, render, ...), an ErrorSeverity and a context map. Categories map to
// CLI exit codes through CLIErrorAdapter.
//
//	err := errors.WrapError(ioErr, errors.CategoryFileSystem, "write artifact").
//		WithContext("path", path).
//		Build()
package errors
