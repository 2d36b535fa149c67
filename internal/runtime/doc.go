// SPDX-License-Identifier: MPL-2.0

// Package runtime provides the execution runtimes environment commands run
// through.
//
// Three implementations are available:
//   - native: the host shell ($SHELL/bash/sh, or PowerShell/cmd on Windows)
//   - virtual: the embedded POSIX interpreter (mvdan.cc/sh), hermetic from
//     whatever shells the host has installed
//   - container: a long-lived per-environment container (Docker/Podman) that
//     commands are exec'd into, with the suite directory mounted at /workspace
//
// All runtimes implement the Runtime interface; the container runtime
// additionally implements EnvLifecycle for its per-environment setup and
// teardown. The session layer resolves one fully-expanded ExecutionContext
// per command and a Registry maps runtime kinds to implementations.
//
// Environment variable construction follows an 8-level precedence managed by
// EnvBuilder; see env_builder.go for the order, from inherited host
// environment (lowest) to --env-var flags (highest).
package runtime
