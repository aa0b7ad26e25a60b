//go:build windows
// +build windows

package run

import (
	"os"
	"syscall"
)

// getSignalsToHandle returns the stop signals watched on Windows.
// SIGTSTP does not exist here, so only SIGINT and SIGTERM apply.
func getSignalsToHandle() []os.Signal {
	return []os.Signal{
		os.Interrupt,    // Ctrl+C (SIGINT)
		syscall.SIGTERM, // kill command
	}
}

// isSIGTSTP reports whether the signal is SIGTSTP. Always false on
// Windows.
func isSIGTSTP(sig os.Signal) bool {
	return false
}
