// SPDX-License-Identifier: MPL-2.0

// Package discovery locates the suite file that governs a gauntlet
// invocation. The search starts in the working directory and walks up
// parent directories to the filesystem root; an explicit --file path
// bypasses the walk. The directory containing the suite file anchors
// every relative path the suite declares.
package discovery
