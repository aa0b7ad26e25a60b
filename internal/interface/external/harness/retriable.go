package harness

// retriableExitCodes are exit codes that indicate a transient process
// crash rather than a logical agent failure. They cover the common
// 128+signal terminations (137 = SIGKILL, 139 = SIGSEGV, 130 = SIGINT)
// plus the generic fatal 128. Crashes in this set are retried in place
// and never counted against the error threshold.
var retriableExitCodes = map[int]bool{
	128: true, // generic fatal signal
	129: true, // SIGHUP
	130: true, // SIGINT
	131: true, // SIGQUIT
	132: true, // SIGILL
	134: true, // SIGABRT
	135: true, // SIGBUS
	136: true, // SIGFPE
	137: true, // SIGKILL
	139: true, // SIGSEGV
	141: true, // SIGPIPE
	143: true, // SIGTERM
}

// MaxRetriableRetries caps consecutive retriable-exit retries so a
// consistently crashing harness cannot retry forever.
const MaxRetriableRetries = 3

// IsRetriable reports whether the exit code indicates a transient
// process crash that should be retried without reselecting a target.
func (r *RunResult) IsRetriable() bool {
	return retriableExitCodes[r.ExitCode]
}
