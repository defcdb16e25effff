package bandit

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"probebandit/models"
)

func TestMean(t *testing.T) {
	assert.InDelta(t, 0.5, Mean(0, 0), 1e-12)
	assert.InDelta(t, 101.0/102.0, Mean(100, 0), 1e-12)
	assert.InDelta(t, 1.0/102.0, Mean(0, 100), 1e-12)
	assert.InDelta(t, 0.5, Mean(50, 50), 1e-12)
}

func TestSampleWithinUnitInterval(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cases := []struct{ s, f int }{
		{0, 0},
		{100, 0},
		{0, 100},
		{1000, 1000},
	}
	for _, tc := range cases {
		for i := 0; i < 200; i++ {
			x := Sample(tc.s, tc.f, rng)
			assert.GreaterOrEqual(t, x, 0.0)
			assert.LessOrEqual(t, x, 1.0)
		}
	}
}

func TestSampleConcentratesWithEvidence(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	// An arm with 100/0 should sample high, 0/100 low, nearly always.
	high, low := 0, 0
	for i := 0; i < 1000; i++ {
		if Sample(100, 0, rng) > 0.9 {
			high++
		}
		if Sample(0, 100, rng) < 0.1 {
			low++
		}
	}
	assert.Greater(t, high, 950)
	assert.Greater(t, low, 950)
}

func TestSelectEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Equal(t, -1, Select(nil, rng))
}

func TestSelectSingle(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	arms := []models.Arm{{Name: "only", Weight: 1}}
	assert.Equal(t, 0, Select(arms, rng))
}

func TestSelectPrefersInteresting(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	arms := []models.Arm{
		{Name: "dud", Weight: 1, Successes: 0, Failures: 100},
		{Name: "gold", Weight: 1, Successes: 100, Failures: 0},
	}

	counts := make(map[string]int)
	for i := 0; i < 1000; i++ {
		counts[arms[Select(arms, rng)].Name]++
	}
	assert.Greater(t, counts["gold"], counts["dud"])
	assert.Greater(t, counts["gold"], 950)
}

func TestSelectExplorationPersists(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	// A has no observations, B is a proven winner. B should dominate but
	// A must still be tried a non-zero number of times.
	arms := []models.Arm{
		{Name: "a-fresh", Weight: 1},
		{Name: "b-proven", Weight: 1, Successes: 100, Failures: 0},
	}

	counts := make(map[string]int)
	for i := 0; i < 2000; i++ {
		counts[arms[Select(arms, rng)].Name]++
	}
	assert.Greater(t, counts["b-proven"], counts["a-fresh"])
	assert.Greater(t, counts["a-fresh"], 0)
}

func TestSelectWeightBias(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	// Identical posteriors, weights 1 and 10: the heavy arm should win
	// roughly ten times as often.
	arms := []models.Arm{
		{Name: "light", Weight: 1, Successes: 50, Failures: 50},
		{Name: "heavy", Weight: 10, Successes: 50, Failures: 50},
	}

	counts := make(map[string]int)
	rounds := 5000
	for i := 0; i < rounds; i++ {
		counts[arms[Select(arms, rng)].Name]++
	}
	assert.Greater(t, counts["heavy"], counts["light"])
	assert.Greater(t, counts["heavy"], rounds*8/10)
}

func TestSelectDeterministicForFixedSeed(t *testing.T) {
	arms := []models.Arm{
		{Name: "a", Weight: 1, Successes: 3, Failures: 2},
		{Name: "b", Weight: 1, Successes: 2, Failures: 3},
		{Name: "c", Weight: 2, Successes: 1, Failures: 1},
	}

	pick := func(seed int64) []int {
		rng := rand.New(rand.NewSource(seed))
		var order []int
		for i := 0; i < 50; i++ {
			order = append(order, Select(arms, rng))
		}
		return order
	}

	assert.Equal(t, pick(99), pick(99))
}

func TestRankOrdersByScore(t *testing.T) {
	arms := []models.Arm{
		{Name: "mid", Weight: 1, Successes: 5, Failures: 5, Active: true},
		{Name: "best", Weight: 1, Successes: 9, Failures: 1, Active: true},
		{Name: "worst", Weight: 1, Successes: 1, Failures: 9, Active: true},
	}

	ranked := Rank(arms)
	assert.Equal(t, "best", ranked[0].Name)
	assert.Equal(t, "mid", ranked[1].Name)
	assert.Equal(t, "worst", ranked[2].Name)

	// Input order preserved.
	assert.Equal(t, "mid", arms[0].Name)
}

func TestRankWeightScalesScore(t *testing.T) {
	// Same posterior, higher weight ranks first.
	arms := []models.Arm{
		{Name: "light", Weight: 1, Successes: 5, Failures: 5},
		{Name: "heavy", Weight: 3, Successes: 5, Failures: 5},
	}
	ranked := Rank(arms)
	assert.Equal(t, "heavy", ranked[0].Name)
}

func TestRankTieBreaks(t *testing.T) {
	// Equal scores: more observations first, then lexical order.
	arms := []models.Arm{
		{Name: "b", Weight: 1, Successes: 1, Failures: 1},
		{Name: "a", Weight: 1, Successes: 1, Failures: 1},
		{Name: "c", Weight: 1, Successes: 2, Failures: 2},
	}
	ranked := Rank(arms)
	assert.Equal(t, "c", ranked[0].Name)
	assert.Equal(t, "a", ranked[1].Name)
	assert.Equal(t, "b", ranked[2].Name)
}

func TestRankBrokenLast(t *testing.T) {
	arms := []models.Arm{
		{Name: "broken-star", Weight: 1, Successes: 99, Failures: 1, Broken: true},
		{Name: "modest", Weight: 1, Successes: 1, Failures: 9, Active: true},
	}
	ranked := Rank(arms)
	assert.Equal(t, "modest", ranked[0].Name)
	assert.Equal(t, "broken-star", ranked[1].Name)
}

func TestRankStable(t *testing.T) {
	arms := []models.Arm{
		{Name: "x", Weight: 2, Successes: 4, Failures: 6},
		{Name: "y", Weight: 1, Successes: 8, Failures: 2},
		{Name: "z", Weight: 1, Successes: 0, Failures: 0, Broken: true},
	}
	first := Rank(arms)
	second := Rank(arms)
	assert.Equal(t, first, second)
}

func TestSummarize(t *testing.T) {
	limit := 10
	arms := []models.Arm{
		{Name: "capped", Weight: 2, Limit: &limit, Successes: 10, Failures: 5},
		{Name: "open", Weight: 1, Successes: 3, Failures: 7, Active: true},
		{Name: "dead", Weight: 1, Successes: 0, Failures: 2, Broken: true},
	}

	sum := Summarize(arms)
	assert.Len(t, sum.Arms, 3)
	assert.Equal(t, 13, sum.TotalSuccesses)
	assert.Equal(t, 27, sum.TotalRuns)

	rows := make(map[string]ArmSummary)
	for _, row := range sum.Arms {
		rows[row.Name] = row
	}

	assert.Equal(t, "10", rows["capped"].Limit)
	assert.Equal(t, models.StateLimitReached, rows["capped"].State)
	assert.InDelta(t, 10.0/15.0, rows["capped"].ObservedRate, 1e-12)
	assert.InDelta(t, 11.0/17.0, rows["capped"].PosteriorMean, 1e-12)

	assert.Equal(t, "unbounded", rows["open"].Limit)
	assert.Equal(t, models.StateActive, rows["open"].State)

	assert.Equal(t, models.StateBroken, rows["dead"].State)
	assert.Equal(t, 0.0, rows["dead"].ObservedRate)

	// Rows come out in rank order: broken last.
	assert.Equal(t, "dead", sum.Arms[2].Name)
}

func TestSummarizeNoRuns(t *testing.T) {
	sum := Summarize([]models.Arm{{Name: "fresh", Weight: 1, Active: true}})
	assert.Equal(t, 0.0, sum.Arms[0].ObservedRate)
	assert.InDelta(t, 0.5, sum.Arms[0].PosteriorMean, 1e-12)
	assert.Equal(t, 0, sum.TotalRuns)
}
