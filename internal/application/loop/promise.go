package loop

import "strings"

// Promise delimiters in harness stdout.
const (
	promiseOpen  = "<promise>"
	promiseClose = "</promise>"
)

// Promise is the ephemeral result of scanning one iteration's stdout
// for a completion marker. It is never persisted.
type Promise struct {
	Detected bool
	Token    string
}

// ScanPromise reports whether stdout contains a completion promise for
// token. Every delimiter pair is checked; the inner text is trimmed, so
// whitespace and newlines around the token are tolerated. Detection
// reads stdout only, never stderr.
func ScanPromise(stdout, token string) Promise {
	rest := stdout
	for {
		start := strings.Index(rest, promiseOpen)
		if start < 0 {
			return Promise{}
		}
		rest = rest[start+len(promiseOpen):]
		end := strings.Index(rest, promiseClose)
		if end < 0 {
			return Promise{}
		}
		if strings.TrimSpace(rest[:end]) == token {
			return Promise{Detected: true, Token: token}
		}
		rest = rest[end+len(promiseClose):]
	}
}
