// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include environment variable management (MustSetenv,
// MustUnsetenv), directory operations (MustMkdirAll, SetHomeDir), resource
// cleanup (MustClose, MustStop), a controllable Clock for time-dependent
// code, and a process-wide semaphore bounding concurrent container tests.
package testutil
