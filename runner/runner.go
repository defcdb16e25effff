// Package runner provides the exec-based ArmRunner: it launches an
// arm's command as an external process and maps the exit status to a
// binary outcome.
//
// Probe protocol: exit status 0 is uninteresting, exit status 1 is
// interesting, any other termination (bad status, unstartable command,
// signal) is fatal for the arm.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"

	"probebandit/models"
)

// ExecRunner runs probe commands via os/exec.
type ExecRunner struct {
	logger *slog.Logger
}

// New creates an ExecRunner. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{logger: logger}
}

// Run executes the command and reports the probe outcome. The command
// string is split on whitespace; the first field is the executable.
func (r *ExecRunner) Run(ctx context.Context, command string) models.Result {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return models.Result{Outcome: models.OutcomeFatal, Reason: "empty command"}
	}

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	output, err := cmd.CombinedOutput()

	if err == nil {
		r.logger.Debug("probe uninteresting", "command", command)
		return models.Result{Outcome: models.OutcomeUninteresting}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		r.logger.Debug("probe interesting", "command", command, "output", string(output))
		return models.Result{Outcome: models.OutcomeInteresting}
	}

	r.logger.Warn("probe failed", "command", command, "error", err)
	return models.Result{Outcome: models.OutcomeFatal, Reason: err.Error()}
}
