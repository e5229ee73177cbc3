package domain

import "time"

// Outcome is the pipeline-level result condition. Only these outcomes cross
// the service boundary; adapter-level failures are absorbed into diagnostics.
type Outcome string

const (
	// OutcomeComplete means the target result count was reached.
	OutcomeComplete Outcome = "complete"

	// OutcomePartial means every filter tier was exhausted without reaching
	// the target count; the result holds everything eligible, ranked.
	OutcomePartial Outcome = "partial"

	// OutcomeNoResults means every adapter returned zero records.
	OutcomeNoResults Outcome = "no_results"

	// OutcomeDeadlineExceeded means the overall time budget elapsed before
	// any adapter completed. Callers treat it like no_results; operations
	// dashboards distinguish the two.
	OutcomeDeadlineExceeded Outcome = "deadline_exceeded"
)

// SourceReport records how one adapter behaved during a single gather.
type SourceReport struct {
	Source   SourceType    `json:"source"`
	Records  int           `json:"records"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Diagnostics is the per-run transparency block threaded through the pipeline
// stages and returned with the result. It is owned by a single pipeline
// invocation; there is no process-wide mutable state behind it.
type Diagnostics struct {
	// Sources reports per-adapter contribution counts and errors, ordered
	// by source type for reproducible output.
	Sources []SourceReport `json:"sources"`

	// RawRecords is the total record count seen before deduplication.
	RawRecords int `json:"raw_records"`

	// DuplicatesCollapsed is how many records merged into canonical ones.
	DuplicatesCollapsed int `json:"duplicates_collapsed"`

	// TierReached is the label of the filter tier that satisfied the run,
	// or the most permissive tier when the run ended partial.
	TierReached string `json:"tier_reached,omitempty"`

	// DeadlineExpired is true when the overall gather deadline elapsed.
	DeadlineExpired bool `json:"deadline_expired,omitempty"`
}

// SucceededSources returns the number of adapters that completed without error.
func (d *Diagnostics) SucceededSources() int {
	n := 0
	for _, s := range d.Sources {
		if s.Error == "" {
			n++
		}
	}
	return n
}

// Result is the final ranked record list plus diagnostics for one search.
type Result struct {
	Records     []Record    `json:"records"`
	Outcome     Outcome     `json:"outcome"`
	Diagnostics Diagnostics `json:"diagnostics"`
}
