// SPDX-License-Identifier: MPL-2.0

// Package hostcall runs the loopback SSH server that gives container
// environments a way back onto the host.
//
// Environments declaring host_access receive GAUNTLET_CALLBACK_* variables
// pointing at this server. In-container commands authenticate with a
// single-use, TTL-bound token scoped to their environment run and execute
// host-side commands for the environment's lifetime. Interactive sessions
// get a PTY on Unix hosts.
package hostcall
