package build

import (
	"fmt"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/contentbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/contentbuild/internal/metrics"
)

// Failure describes one item that could not be built.
type Failure struct {
	Path     string                `json:"path"`
	Key      string                `json:"key"`
	Category ferrors.ErrorCategory `json:"category"`
	Message  string                `json:"message"`
}

// Report captures the outcome of an executor run. Counters are updated
// concurrently by workers; read them after Build returns.
type Report struct {
	mu sync.Mutex

	BuildID    string
	Start      time.Time
	End        time.Time
	Successful int
	Failed     int
	// Skipped counts clean items the cache let us skip. The executor never
	// sees them; the service fills this in.
	Skipped  int
	Failures []Failure
	// Outputs lists every artifact written by successful items.
	Outputs []string

	NothingToRebuild bool
	Canceled         bool
}

func newReport(buildID string, start time.Time) *Report {
	return &Report{BuildID: buildID, Start: start}
}

func (r *Report) recordSuccess(outputs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Successful++
	r.Outputs = append(r.Outputs, outputs...)
}

func (r *Report) recordFailure(path, key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed++
	r.Failures = append(r.Failures, Failure{
		Path:     path,
		Key:      key,
		Category: ferrors.GetCategory(err),
		Message:  err.Error(),
	})
}

func (r *Report) markCanceled() {
	r.mu.Lock()
	r.Canceled = true
	r.mu.Unlock()
}

// Summary renders the one-line human summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d built, %d failed, %d skipped (cached)", r.Successful, r.Failed, r.Skipped)
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.End.IsZero() {
		return 0
	}
	return r.End.Sub(r.Start)
}

// Outcome maps the counters onto a metrics label.
func (r *Report) Outcome() metrics.BuildOutcomeLabel {
	switch {
	case r.Canceled:
		return metrics.BuildOutcomeCanceled
	case r.NothingToRebuild:
		return metrics.BuildOutcomeNoop
	case r.Failed > 0 && r.Successful == 0:
		return metrics.BuildOutcomeFailed
	case r.Failed > 0:
		return metrics.BuildOutcomePartial
	default:
		return metrics.BuildOutcomeSuccess
	}
}
