// SPDX-License-Identifier: MPL-2.0

// Package session orchestrates `gauntlet run`: it plans the environment
// selection, prepares each environment's work area and process variables,
// drives the install and command phases through the runtime registry, and
// schedules environments serially or on a worker pool honoring depends_on
// edges. Results come back as a RunResult the report package renders.
package session
