package pipeline

import (
	"github.com/helixir/evidence-aggregation-service/internal/domain"
)

// defaultDiversityWindow bounds how far a record may move during source
// diversity rebalancing. Small on purpose: diversity is a best-effort
// adjustment, never worth a large rank violation.
const defaultDiversityWindow = 3

// assemble produces the final Result from the filtered, ranked record list
// and the diagnostics accumulated through the run.
func assemble(records []domain.Record, outcome domain.Outcome, diag domain.Diagnostics, diversityWindow int) domain.Result {
	if diversityWindow > 0 {
		rebalanceDiversity(records, diversityWindow)
	}
	return domain.Result{
		Records:     records,
		Outcome:     outcome,
		Diagnostics: diag,
	}
}

// rebalanceDiversity breaks up long same-source runs in the ranked list by
// pulling the nearest different-source record forward, but never from more
// than window positions away. Rank order is otherwise preserved; when every
// nearby record shares the source, the run stands.
func rebalanceDiversity(records []domain.Record, window int) {
	const maxRun = 2

	run := 0
	for i := range records {
		if i > 0 && sameLeadSource(&records[i], &records[i-1]) {
			run++
		} else {
			run = 0
		}
		if run < maxRun {
			continue
		}

		// Find the nearest following record from another source within the
		// window and rotate it into this position.
		limit := i + window
		if limit >= len(records) {
			limit = len(records) - 1
		}
		for j := i + 1; j <= limit; j++ {
			if !sameLeadSource(&records[j], &records[i]) {
				rec := records[j]
				copy(records[i+1:j+1], records[i:j])
				records[i] = rec
				run = 0
				break
			}
		}
	}
}

// sameLeadSource compares the first (alphabetically lowest) contributing
// source of two records. Merged records are attributed to their lead source
// for diversity accounting.
func sameLeadSource(a, b *domain.Record) bool {
	return leadSource(a) == leadSource(b)
}

func leadSource(r *domain.Record) domain.SourceType {
	if len(r.Sources) == 0 {
		return ""
	}
	return r.Sources[0]
}
