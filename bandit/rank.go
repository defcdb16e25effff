package bandit

import (
	"sort"

	"probebandit/models"
)

// Rank orders arms from most to least promising by mean * weight.
// Ties break toward more total observations, then lexically by name.
// Broken arms sort last regardless of score. The input is not modified.
func Rank(arms []models.Arm) []models.Arm {
	ranked := make([]models.Arm, len(arms))
	copy(ranked, arms)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := &ranked[i], &ranked[j]
		if a.Broken != b.Broken {
			return !a.Broken
		}
		sa := Score(a.Successes, a.Failures, a.Weight)
		sb := Score(b.Successes, b.Failures, b.Weight)
		if sa != sb {
			return sa > sb
		}
		if a.Runs() != b.Runs() {
			return a.Runs() > b.Runs()
		}
		return a.Name < b.Name
	})
	return ranked
}
