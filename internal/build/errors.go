package build

import "errors"

// Sentinel errors for pipeline-level failures. They are wrapped in
// ClassifiedErrors at the call site.
var (
	ErrNothingMatched = errors.New("contentbuild: filter matched no content")
	ErrNoContent      = errors.New("contentbuild: no content to build")
	ErrItemsFailed    = errors.New("contentbuild: one or more items failed")
	ErrAggregate      = errors.New("contentbuild: aggregate generation failed")
)
