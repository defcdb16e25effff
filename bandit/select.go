package bandit

import (
	"math/rand"

	"probebandit/models"
)

// Select performs one round of weighted Thompson sampling over the given
// arms and returns the index of the winner, or -1 if the slice is empty.
//
// Each arm's posterior is sampled once and the sample is multiplied by
// the arm's weight, so a weight-k arm wins roughly k times as often as a
// weight-1 arm with an identical posterior. Ties break toward the
// lexically lowest name so runs are reproducible for a fixed seed.
//
// Callers filter to selectable arms before calling; Select itself does
// not inspect Active or Broken.
func Select(arms []models.Arm, rng *rand.Rand) int {
	selected := -1
	best := -1.0

	for i := range arms {
		score := Sample(arms[i].Successes, arms[i].Failures, rng) * arms[i].Weight

		switch {
		case selected < 0 || score > best:
			selected = i
			best = score
		case score == best && arms[i].Name < arms[selected].Name:
			selected = i
		}
	}
	return selected
}
