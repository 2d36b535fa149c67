// SPDX-License-Identifier: MPL-2.0

package session

import (
	"time"

	"github.com/gauntlet-run/gauntlet/pkg/envfile"
	"github.com/gauntlet-run/gauntlet/pkg/types"
)

type (
	// Outcome classifies how an environment run ended.
	Outcome string

	// Phase names the part of an environment run a command belongs to.
	Phase string
)

const (
	// OutcomePassed means every phase finished with exit code zero (or a
	// failure was swallowed by the "-" prefix).
	OutcomePassed Outcome = "passed"
	// OutcomeFailed means a phase failed and the environment does not
	// declare allow_failure.
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped means the environment never ran: platform or tag
	// mismatch, a failed dependency, fail-fast, or an interrupted run.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeIgnored means the environment failed but declares
	// allow_failure, so the run's exit status does not count it.
	OutcomeIgnored Outcome = "ignored"
)

const (
	// PhaseInstall is the dependency installation phase.
	PhaseInstall Phase = "install"
	// PhaseCommand is the main command phase.
	PhaseCommand Phase = "command"
)

// String returns the string representation of the Outcome.
func (o Outcome) String() string { return string(o) }

// String returns the string representation of the Phase.
func (p Phase) String() string { return string(p) }

type (
	// CommandResult records one executed command line.
	CommandResult struct {
		// Phase says whether this was the install command or a regular one.
		Phase Phase
		// Script is the command text after placeholder substitution.
		Script string
		// ExitCode is the status the command finished with.
		ExitCode types.ExitCode
		// Duration is the command's wall-clock time.
		Duration time.Duration
		// Err is set when the runtime failed around the command (binary not
		// found, validation), not for a plain non-zero exit.
		Err error
		// Ignored marks a failure swallowed by the "-" prefix.
		Ignored bool
	}

	// EnvResult is the outcome of one environment.
	EnvResult struct {
		// Name identifies the environment.
		Name envfile.EnvName
		// Outcome classifies the result.
		Outcome Outcome
		// Reason explains skipped and failed outcomes in one line.
		Reason string
		// Duration is the environment's wall-clock time; zero for
		// environments that never ran.
		Duration time.Duration
		// Commands lists what actually ran, install phase included.
		Commands []CommandResult
		// Err is the error that failed the environment, when one did.
		Err error
	}

	// RunResult aggregates a whole run.
	RunResult struct {
		// Suite is the suite the run executed.
		Suite *envfile.Suite
		// StartedAt is when the run began.
		StartedAt time.Time
		// Duration is the whole run's wall-clock time.
		Duration time.Duration
		// Envs holds one result per planned environment, in selection order.
		Envs []EnvResult
		// Interrupted is set when the run context was cancelled before every
		// environment finished.
		Interrupted bool
	}

	// Tally counts environment results per outcome.
	Tally struct {
		Passed  int
		Failed  int
		Skipped int
		Ignored int
	}
)

// Succeeded reports whether the command exited zero without a runtime error.
func (c CommandResult) Succeeded() bool {
	return c.Err == nil && c.ExitCode == types.ExitOK
}

// Tally counts the run's environment outcomes.
func (r *RunResult) Tally() Tally {
	var t Tally
	for _, env := range r.Envs {
		switch env.Outcome {
		case OutcomePassed:
			t.Passed++
		case OutcomeFailed:
			t.Failed++
		case OutcomeSkipped:
			t.Skipped++
		case OutcomeIgnored:
			t.Ignored++
		}
	}
	return t
}

// ExitCode maps the run to the process exit status: 0 when no environment
// failed (skipped and ignored do not count), 1 when at least one did, 130
// when the run was interrupted.
func (r *RunResult) ExitCode() types.ExitCode {
	if r.Interrupted {
		return types.ExitInterrupted
	}
	if r.Tally().Failed > 0 {
		return types.ExitEnvFailure
	}
	return types.ExitOK
}
