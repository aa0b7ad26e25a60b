//go:build !windows
// +build !windows

package run

import (
	"os"
	"syscall"
)

// getSignalsToHandle returns the stop signals watched on Unix.
// SIGTSTP is included so Ctrl+Z shuts the loop down instead of
// suspending it with a harness still running.
func getSignalsToHandle() []os.Signal {
	return []os.Signal{
		os.Interrupt,    // Ctrl+C (SIGINT)
		syscall.SIGTERM, // kill command
		syscall.SIGTSTP, // Ctrl+Z
	}
}

// isSIGTSTP reports whether the signal is SIGTSTP (Ctrl+Z)
func isSIGTSTP(sig os.Signal) bool {
	return sig == syscall.SIGTSTP
}
