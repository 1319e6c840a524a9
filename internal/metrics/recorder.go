package metrics

import "time"

// ResultLabel enumerates stage and item result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped"
)

// BuildOutcomeLabel is the final status of a pipeline run.
type BuildOutcomeLabel string

const (
	BuildOutcomeSuccess  BuildOutcomeLabel = "success"
	BuildOutcomePartial  BuildOutcomeLabel = "partial"
	BuildOutcomeFailed   BuildOutcomeLabel = "failed"
	BuildOutcomeNoop     BuildOutcomeLabel = "noop"
	BuildOutcomeCanceled BuildOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for build metrics. All methods must be
// safe to call concurrently from executor workers.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	ObserveItemDuration(d time.Duration, result ResultLabel)
	SetDelta(dirty, clean int)
	IncCacheFlush(success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)     {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)             {}
func (NoopRecorder) IncStageResult(string, ResultLabel)             {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)              {}
func (NoopRecorder) ObserveItemDuration(time.Duration, ResultLabel) {}
func (NoopRecorder) SetDelta(int, int)                              {}
func (NoopRecorder) IncCacheFlush(bool)                             {}
