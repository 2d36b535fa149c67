// SPDX-License-Identifier: MPL-2.0

// Package envfile defines the suite file format: the schema, the Go types it
// decodes into, and the structural validation both surfaces share.
//
// A suite file (gauntlet.cue or gauntlet.toml) declares named test
// environments. Each environment carries an ordered command list plus the
// machinery around it: dependencies installed first, host variables passed
// through, an optional platform filter, a working-directory override, and
// the runtime the commands execute in.
//
// CUE files are unified against the embedded schema before decoding; TOML
// files decode directly and rely on the Go-side validators to enforce the
// same rules, so the two formats cannot drift apart.
package envfile
