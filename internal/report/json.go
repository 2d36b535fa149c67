// SPDX-License-Identifier: MPL-2.0

package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gauntlet-run/gauntlet/internal/session"
)

type (
	// JSONReport is the machine-readable form of one run.
	JSONReport struct {
		// Version is the gauntlet build that produced the report.
		Version     string    `json:"version"`
		SuiteFile   string    `json:"suite_file"`
		StartedAt   time.Time `json:"started_at"`
		DurationMS  int64     `json:"duration_ms"`
		ExitCode    int       `json:"exit_code"`
		Interrupted bool      `json:"interrupted,omitempty"`
		Envs        []JSONEnv `json:"envs"`
	}

	// JSONEnv is one environment's result.
	JSONEnv struct {
		Name       string        `json:"name"`
		Outcome    string        `json:"outcome"`
		Reason     string        `json:"reason,omitempty"`
		DurationMS int64         `json:"duration_ms"`
		Commands   []JSONCommand `json:"commands,omitempty"`
	}

	// JSONCommand is one executed command line, install phase included.
	JSONCommand struct {
		Phase      string `json:"phase"`
		Script     string `json:"script"`
		ExitCode   int    `json:"exit_code"`
		DurationMS int64  `json:"duration_ms"`
		Ignored    bool   `json:"ignored,omitempty"`
		Error      string `json:"error,omitempty"`
	}
)

// BuildJSON converts a run result into its report document.
func BuildJSON(res *session.RunResult, version string) *JSONReport {
	doc := &JSONReport{
		Version:     version,
		StartedAt:   res.StartedAt,
		DurationMS:  res.Duration.Milliseconds(),
		ExitCode:    int(res.ExitCode()),
		Interrupted: res.Interrupted,
		Envs:        make([]JSONEnv, 0, len(res.Envs)),
	}
	if res.Suite != nil {
		doc.SuiteFile = res.Suite.FilePath.String()
	}

	for _, env := range res.Envs {
		jsonEnv := JSONEnv{
			Name:       env.Name.String(),
			Outcome:    env.Outcome.String(),
			Reason:     env.Reason,
			DurationMS: env.Duration.Milliseconds(),
		}
		for _, cmd := range env.Commands {
			jsonCmd := JSONCommand{
				Phase:      cmd.Phase.String(),
				Script:     cmd.Script,
				ExitCode:   int(cmd.ExitCode),
				DurationMS: cmd.Duration.Milliseconds(),
				Ignored:    cmd.Ignored,
			}
			if cmd.Err != nil {
				jsonCmd.Error = cmd.Err.Error()
			}
			jsonEnv.Commands = append(jsonEnv.Commands, jsonCmd)
		}
		doc.Envs = append(doc.Envs, jsonEnv)
	}
	return doc
}

// WriteJSON encodes the run result onto w, indented for human diffing.
func WriteJSON(w io.Writer, res *session.RunResult, version string) error {
	if w == nil {
		return errors.New("writer is nil")
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(BuildJSON(res, version)); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
