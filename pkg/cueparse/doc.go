// SPDX-License-Identifier: MPL-2.0

// Package cueparse provides shared CUE parsing utilities.
//
// Both user-facing CUE surfaces (the suite file and the app config) follow
// the same 3-step flow, which this package consolidates:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify it with the schema
//  3. Validate and decode into a Go struct
//
// # Usage
//
//	//go:embed gauntlet_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueparse.Decode[Suite](
//	    schemaBytes,
//	    userFileBytes,
//	    "#Suite",
//	    cueparse.WithFilename("gauntlet.cue"),
//	)
//	if err != nil {
//	    return nil, err // error carries the CUE path of the offending field
//	}
//	return result.Value, nil
package cueparse
