//go:build windows

package harness

import (
	"errors"
	"os/exec"
)

// exitStatus maps a Wait error to a process exit code. Windows has no
// signal exits, so the raw exit code is used as-is.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
