// SPDX-License-Identifier: MPL-2.0

package session

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gauntlet-run/gauntlet/pkg/envfile"
)

// plannedEnv pairs a selected environment with an optional pre-run skip
// reason (tag or platform mismatch).
type plannedEnv struct {
	env  *envfile.Environment
	skip string
}

// plan resolves a selection into execution order. Named environments run in
// the given order, duplicates collapsing onto the first mention; an empty
// selection falls back to the suite's defaults, then to file order. Tag and
// platform mismatches stay in the plan as skips so the report shows them.
func plan(suite *envfile.Suite, names []envfile.EnvName, tags []string, host envfile.Platform) ([]plannedEnv, error) {
	if len(names) == 0 {
		names = suite.DefaultSelection()
	}

	envs, err := suite.ResolveEnvNames(dedupeNames(names))
	if err != nil {
		return nil, err
	}

	planned := make([]plannedEnv, 0, len(envs))
	for _, env := range envs {
		planned = append(planned, plannedEnv{env: env, skip: skipReason(env, tags, host)})
	}
	return planned, nil
}

// skipReason decides whether the environment must not run at all.
func skipReason(env *envfile.Environment, tags []string, host envfile.Platform) string {
	if len(tags) > 0 && !slices.ContainsFunc(tags, env.HasTag) {
		return fmt.Sprintf("not tagged %s", strings.Join(tags, ", "))
	}
	if !env.MatchesPlatform(host) {
		return fmt.Sprintf("requires platform %s, host is %s", joinPlatforms(env.Platforms), host)
	}
	return ""
}

func joinPlatforms(platforms []envfile.Platform) string {
	parts := make([]string, len(platforms))
	for i, p := range platforms {
		parts[i] = p.String()
	}
	return strings.Join(parts, "|")
}

func dedupeNames(names []envfile.EnvName) []envfile.EnvName {
	seen := make(map[envfile.EnvName]bool, len(names))
	out := make([]envfile.EnvName, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
