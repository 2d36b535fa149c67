// SPDX-License-Identifier: MPL-2.0

//go:build windows

package hostcall

import (
	"io"
	"os"
	"os/exec"
)

// startPty starts a command without a PTY; Windows sessions get plain
// pipes instead.
func startPty(cmd *exec.Cmd) (*os.File, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	// Return the stdin pipe as the "file" to write to.
	return os.NewFile(stdin.(*os.File).Fd(), "stdin"), nil
}

// setWinsize is a no-op on Windows.
func setWinsize(f *os.File, width, height int) {
}

// copyBuffer copies from src to dst.
func copyBuffer(dst io.Writer, src io.Reader) (int64, error) {
	return io.Copy(dst, src)
}
