// SPDX-License-Identifier: MPL-2.0

package main

import (
	cmd "github.com/gauntlet-run/gauntlet/cmd/gauntlet"
)

func main() {
	cmd.Execute()
}
