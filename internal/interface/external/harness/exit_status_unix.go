//go:build !windows

package harness

import (
	"errors"
	"os/exec"
	"syscall"
)

// exitStatus maps a Wait error to a process exit code. Termination by
// signal N maps to 128+N, matching shell conventions, so the retry
// classifier can recognize crash signals.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}
