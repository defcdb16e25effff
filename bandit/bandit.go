// Package bandit holds the Beta-Bernoulli belief model and the pure
// selection, ranking and summary views over a set of arms. Nothing in
// this package mutates an arm; counter updates belong to the scheduler.
package bandit

import (
	"math/rand"

	"probebandit/beta"
)

// Sample draws one value from the arm's posterior Beta(1+s, 1+f) by
// inverse-CDF: a uniform draw pushed through the beta quantile function.
func Sample(successes, failures int, rng *rand.Rand) float64 {
	return beta.InvIbeta(float64(successes+1), float64(failures+1), rng.Float64())
}

// Mean returns the posterior mean (1+s)/(2+s+f).
func Mean(successes, failures int) float64 {
	return float64(successes+1) / float64(successes+failures+2)
}

// Score is the deterministic ranking score: posterior mean scaled by the
// arm's weight. Weight biases priority without touching the posterior
// itself, so Mean stays a clean estimate of the true rate.
func Score(successes, failures int, weight float64) float64 {
	return Mean(successes, failures) * weight
}
