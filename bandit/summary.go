package bandit

import (
	"strconv"

	"probebandit/models"
)

// ArmSummary is the per-arm row of the aggregate report.
type ArmSummary struct {
	Name          string       `json:"name"`
	Successes     int          `json:"successes"`
	Failures      int          `json:"failures"`
	Runs          int          `json:"runs"`
	ObservedRate  float64      `json:"observed_rate"`
	PosteriorMean float64      `json:"posterior_mean"`
	Weight        float64      `json:"weight"`
	Limit         string       `json:"limit"`
	State         models.State `json:"state"`
}

// Summary is a read-only aggregate over the whole arm set.
type Summary struct {
	Arms           []ArmSummary `json:"arms"`
	TotalSuccesses int          `json:"total_successes"`
	TotalRuns      int          `json:"total_runs"`
}

// Summarize builds the report. Rows come out in rank order so the most
// promising arm reads first.
func Summarize(arms []models.Arm) Summary {
	ranked := Rank(arms)

	sum := Summary{Arms: make([]ArmSummary, 0, len(ranked))}
	for i := range ranked {
		a := &ranked[i]

		runs := a.Runs()
		rate := float64(a.Successes) / float64(max(1, runs))

		limit := "unbounded"
		if a.Limit != nil {
			limit = strconv.Itoa(*a.Limit)
		}

		sum.Arms = append(sum.Arms, ArmSummary{
			Name:          a.Name,
			Successes:     a.Successes,
			Failures:      a.Failures,
			Runs:          runs,
			ObservedRate:  rate,
			PosteriorMean: Mean(a.Successes, a.Failures),
			Weight:        a.Weight,
			Limit:         limit,
			State:         a.State(),
		})
		sum.TotalSuccesses += a.Successes
		sum.TotalRuns += runs
	}
	return sum
}
