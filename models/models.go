package models

import "time"

// Outcome is the result of running an arm's probe once.
type Outcome int

const (
	// OutcomeUninteresting means the probe completed without finding anything.
	OutcomeUninteresting Outcome = iota
	// OutcomeInteresting means the probe found something worth keeping.
	OutcomeInteresting
	// OutcomeFatal means the probe could not produce a binary observation.
	OutcomeFatal
)

// String returns the outcome name used in logs and reports.
func (o Outcome) String() string {
	switch o {
	case OutcomeUninteresting:
		return "uninteresting"
	case OutcomeInteresting:
		return "interesting"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Result pairs an outcome with a reason. Reason is only set for fatal
// outcomes, where it describes why the probe broke.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// State describes where an arm is in its lifecycle.
type State string

const (
	StateActive       State = "active"
	StateLimitReached State = "limit-reached"
	StateBroken       State = "broken"
)

// Arm represents a single probe competing for execution slots
type Arm struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Command   string    `json:"command"`
	Weight    float64   `json:"weight"`
	Limit     *int      `json:"limit,omitempty"`
	Successes int       `json:"successes"`
	Failures  int       `json:"failures"`
	Active    bool      `json:"active"`
	Broken    bool      `json:"broken"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewArm creates an arm with default counters, unit weight and no limit.
func NewArm(name, command string) Arm {
	now := time.Now()
	return Arm{
		Name:      name,
		Command:   command,
		Weight:    1.0,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Runs returns the number of completed binary observations.
func (a *Arm) Runs() int {
	return a.Successes + a.Failures
}

// LimitReached reports whether the arm has collected its cap of
// interesting outcomes. Always false for unbounded arms.
func (a *Arm) LimitReached() bool {
	return a.Limit != nil && a.Successes >= *a.Limit
}

// State derives the lifecycle state from the arm's flags.
func (a *Arm) State() State {
	switch {
	case a.Broken:
		return StateBroken
	case a.LimitReached():
		return StateLimitReached
	case a.Active:
		return StateActive
	default:
		// Deactivated without a broken flag means the limit fired.
		return StateLimitReached
	}
}

// Reset zeroes the counters and reactivates the arm. A non-empty command
// replaces the existing one.
func (a *Arm) Reset(command string) {
	a.Successes = 0
	a.Failures = 0
	a.Active = true
	a.Broken = false
	if command != "" {
		a.Command = command
	}
	a.UpdatedAt = time.Now()
}
