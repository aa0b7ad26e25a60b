package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

// SetupSignalHandler returns a context cancelled by the first
// interrupt-style signal. Cancellation propagates through the loop,
// which kills any in-flight harness process group, emits the abort
// audit event, and unwinds with the cancelled exit code.
func SetupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, getSignalsToHandle()...)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			if isSIGTSTP(sig) {
				// Suspending a loop mid-iteration leaves the harness
				// running unattended, so treat Ctrl+Z as a stop request.
				fmt.Fprintln(os.Stderr, "\nCtrl+Z detected; shutting down instead of suspending. Use Ctrl+C to stop.")
			} else {
				fmt.Fprintf(os.Stderr, "\nReceived %v; finishing up...\n", sig)
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
