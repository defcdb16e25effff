// Package scheduler runs the selection loop: pick an arm by weighted
// Thompson sampling, hand its command to an ArmRunner, fold the observed
// outcome back into the arm's posterior and deactivate arms that hit
// their limit or break.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"probebandit/bandit"
	"probebandit/models"
)

// ArmRunner executes an arm's probe command and reports exactly one
// outcome. The command string is opaque to the scheduler. Run may block
// for the duration of the probe; it must honor ctx cancellation.
type ArmRunner interface {
	Run(ctx context.Context, command string) models.Result
}

// ErrExhausted signals that no active arms remain. It is a normal
// terminal condition, not a failure.
var ErrExhausted = errors.New("scheduler: no active arms remain")

// Config tunes a scheduler run.
type Config struct {
	// Concurrency is the number of execution slots. Values below 1 are
	// treated as 1, which makes rounds strictly sequential.
	Concurrency int

	// MaxRounds caps the number of dispatched rounds. Zero means run
	// until exhaustion or stop.
	MaxRounds int

	// Rand is the selection source. Runs with the same seed, arm set and
	// Concurrency of 1 reproduce the same selection order and counters.
	// Nil falls back to a time-seeded source.
	Rand *rand.Rand
}

// armRecord is one slot in the arm arena. Each record carries its own
// lock so completions on unrelated arms never serialize.
type armRecord struct {
	mu       sync.Mutex
	arm      models.Arm
	inflight int // dispatched rounds not yet completed
}

// selectable reports whether the arm may be dispatched right now.
// The limit check counts in-flight dispatches, so the cap cannot be
// overshot even when concurrent slots race toward it.
func (r *armRecord) selectable() bool {
	if !r.arm.Active || r.arm.Broken {
		return false
	}
	if r.arm.Limit != nil && r.arm.Successes+r.inflight >= *r.arm.Limit {
		return false
	}
	return true
}

// Scheduler owns an arena of arm records and drives rounds against an
// external ArmRunner. Ranker and Summarizer views read consistent
// per-arm snapshots via Arms while a run is in progress.
type Scheduler struct {
	runner ArmRunner
	logger *slog.Logger
	cfg    Config

	selMu sync.Mutex // serializes selection (rng draws)
	rng   *rand.Rand

	names []string // insertion order, for reproducible scans
	arms  map[string]*armRecord

	statsMu       sync.Mutex
	interesting   int
	uninteresting int
	fatals        map[string]string

	stop     chan struct{}
	stopOnce sync.Once
	wake     chan struct{}
}

// Report describes how a run ended.
type Report struct {
	Dispatched    int               `json:"dispatched"`
	Interesting   int               `json:"interesting"`
	Uninteresting int               `json:"uninteresting"`
	Exhausted     bool              `json:"exhausted"`
	Stopped       bool              `json:"stopped"`
	Fatals        map[string]string `json:"fatals,omitempty"`
}

// New builds a scheduler over the given arm set. The arms are copied
// into the internal arena; the caller's slice is not retained.
//
// Input is expected to be validated configuration, but the cheap
// structural checks (unique names, positive weights, sane limits) are
// repeated here so a broken caller fails fast.
func New(arms []models.Arm, runner ArmRunner, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler: runner required")
	}
	if len(arms) == 0 {
		return nil, errors.New("scheduler: at least one arm required")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	s := &Scheduler{
		runner: runner,
		logger: logger,
		cfg:    cfg,
		rng:    rng,
		arms:   make(map[string]*armRecord, len(arms)),
		fatals: make(map[string]string),
		stop:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
	}

	for _, arm := range arms {
		if arm.Name == "" {
			return nil, errors.New("scheduler: arm name required")
		}
		if _, dup := s.arms[arm.Name]; dup {
			return nil, fmt.Errorf("scheduler: duplicate arm %q", arm.Name)
		}
		if arm.Weight <= 0 {
			return nil, fmt.Errorf("scheduler: arm %q has non-positive weight %v", arm.Name, arm.Weight)
		}
		if arm.Limit != nil && *arm.Limit < 0 {
			return nil, fmt.Errorf("scheduler: arm %q has negative limit %d", arm.Name, *arm.Limit)
		}
		// An arm created at or past its cap starts deactivated.
		if arm.LimitReached() {
			arm.Active = false
		}
		s.names = append(s.names, arm.Name)
		s.arms[arm.Name] = &armRecord{arm: arm}
	}
	return s, nil
}

// Stop requests a graceful stop: in-flight probes complete and their
// outcomes are applied, but no new rounds are dispatched. Safe to call
// from any goroutine, more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Arms returns a point-in-time copy of every arm, in creation order.
func (s *Scheduler) Arms() []models.Arm {
	arms := make([]models.Arm, 0, len(s.names))
	for _, name := range s.names {
		rec := s.arms[name]
		rec.mu.Lock()
		arms = append(arms, rec.arm)
		rec.mu.Unlock()
	}
	return arms
}

// Step performs one synchronous round: select, dispatch, apply.
// Returns ErrExhausted when no arm is selectable.
func (s *Scheduler) Step(ctx context.Context) (models.Result, error) {
	name, command, ok := s.selectArm()
	if !ok {
		return models.Result{}, ErrExhausted
	}
	return s.executeRound(ctx, name, command), nil
}

// selectArm snapshots the selectable arms, draws one weighted Thompson
// sample per arm and reserves the winner for dispatch. Selection
// tolerates posteriors going slightly stale under concurrency; only the
// reservation itself is synchronized.
func (s *Scheduler) selectArm() (name, command string, ok bool) {
	candidates := make([]models.Arm, 0, len(s.names))
	for _, n := range s.names {
		rec := s.arms[n]
		rec.mu.Lock()
		if rec.selectable() {
			candidates = append(candidates, rec.arm)
		}
		rec.mu.Unlock()
	}
	if len(candidates) == 0 {
		return "", "", false
	}

	s.selMu.Lock()
	idx := bandit.Select(candidates, s.rng)
	s.selMu.Unlock()

	chosen := candidates[idx]
	rec := s.arms[chosen.Name]
	rec.mu.Lock()
	rec.inflight++
	rec.mu.Unlock()

	s.logger.Debug("arm selected",
		"arm", chosen.Name,
		"successes", chosen.Successes,
		"failures", chosen.Failures,
		"weight", chosen.Weight,
	)
	return chosen.Name, chosen.Command, true
}

// executeRound dispatches the probe and applies its outcome atomically
// to the arm record.
//
// Rounds cut short by ctx cancellation are discarded: a killed probe is
// not evidence that the arm is broken, and the trial produced no valid
// binary observation.
func (s *Scheduler) executeRound(ctx context.Context, name, command string) models.Result {
	if ctx.Err() != nil {
		s.discardRound(name)
		return models.Result{}
	}

	res := s.runner.Run(ctx, command)
	if res.Outcome == models.OutcomeFatal && ctx.Err() != nil {
		s.discardRound(name)
		return res
	}

	arm := s.applyOutcome(name, res)

	switch res.Outcome {
	case models.OutcomeInteresting:
		s.statsMu.Lock()
		s.interesting++
		s.statsMu.Unlock()
		s.logger.Debug("interesting outcome", "arm", name, "successes", arm.Successes)
		if !arm.Active {
			s.logger.Info("arm reached limit", "arm", name, "successes", arm.Successes)
		}
	case models.OutcomeUninteresting:
		s.statsMu.Lock()
		s.uninteresting++
		s.statsMu.Unlock()
		s.logger.Debug("uninteresting outcome", "arm", name, "failures", arm.Failures)
	case models.OutcomeFatal:
		s.statsMu.Lock()
		s.fatals[name] = res.Reason
		s.statsMu.Unlock()
		s.logger.Warn("arm broken", "arm", name, "reason", res.Reason)
	}

	// Wake the dispatch loop in case it was waiting on this completion.
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return res
}

// applyOutcome serializes the counter update and deactivation check for
// one arm. Fatal outcomes do not touch the counters: the trial produced
// no binary observation.
func (s *Scheduler) applyOutcome(name string, res models.Result) models.Arm {
	rec := s.arms[name]
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.inflight--
	switch res.Outcome {
	case models.OutcomeInteresting:
		rec.arm.Successes++
		if rec.arm.LimitReached() {
			rec.arm.Active = false
		}
	case models.OutcomeUninteresting:
		rec.arm.Failures++
	case models.OutcomeFatal:
		rec.arm.Broken = true
		rec.arm.Active = false
	}
	rec.arm.UpdatedAt = time.Now()
	return rec.arm
}

// discardRound releases a reserved dispatch without recording an
// observation.
func (s *Scheduler) discardRound(name string) {
	rec := s.arms[name]
	rec.mu.Lock()
	rec.inflight--
	rec.mu.Unlock()

	s.logger.Debug("round discarded", "arm", name)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// inflightTotal counts dispatches that have not completed yet.
func (s *Scheduler) inflightTotal() int {
	total := 0
	for _, name := range s.names {
		rec := s.arms[name]
		rec.mu.Lock()
		total += rec.inflight
		rec.mu.Unlock()
	}
	return total
}
