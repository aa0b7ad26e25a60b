package harness

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInactivityTimeout applies when RunConfig.InactivityTimeout is
// zero.
const DefaultInactivityTimeout = 15 * time.Minute

// watchdogPollInterval is how often the watchdog checks for inactivity.
const watchdogPollInterval = time.Second

// streamingHarness runs an agent CLI binary, teeing its stdout and
// stderr to the terminal while collecting both for inspection. A
// watchdog goroutine kills the process when no output has been seen
// for the inactivity timeout; it is always joined before Run returns.
type streamingHarness struct {
	name   Name
	binary string
	args   func(RunConfig) []string

	// Tee destinations. Nil means os.Stdout / os.Stderr; tests inject
	// buffers here.
	outW io.Writer
	errW io.Writer

	mu  sync.Mutex
	cmd *exec.Cmd
}

func (h *streamingHarness) Name() Name {
	return h.name
}

func (h *streamingHarness) StreamsOutput() bool {
	return true
}

// Stop kills the in-flight process, if any.
func (h *streamingHarness) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd != nil && h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
}

// Run spawns the harness binary and supervises it until exit, kill, or
// context cancellation.
func (h *streamingHarness) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	cmd := exec.CommandContext(ctx, h.binary, h.args(cfg)...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		env := os.Environ()
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", h.binary, err)
	}

	h.mu.Lock()
	h.cmd = cmd
	h.mu.Unlock()

	activity := newActivityClock()
	var timedOut atomic.Bool
	done := make(chan struct{})

	var stdout, stderr string
	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		stdout = streamPipe(stdoutPipe, h.stdout(), activity)
	}()
	go func() {
		defer readers.Done()
		stderr = streamPipe(stderrPipe, h.stderr(), activity)
	}()

	timeout := cfg.InactivityTimeout
	if timeout <= 0 {
		timeout = DefaultInactivityTimeout
	}
	var watchdog sync.WaitGroup
	watchdog.Add(1)
	go func() {
		defer watchdog.Done()
		h.watchInactivity(cmd.Process, timeout, activity, &timedOut, done)
	}()

	// Pipes must be fully drained before Wait closes them.
	readers.Wait()
	waitErr := cmd.Wait()
	close(done)
	watchdog.Wait()

	h.mu.Lock()
	h.cmd = nil
	h.mu.Unlock()

	result := &RunResult{
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: time.Since(start),
		TimedOut: timedOut.Load(),
	}
	if result.TimedOut {
		result.ExitCode = -1
	} else {
		result.ExitCode = exitStatus(waitErr)
	}
	return result, nil
}

func (h *streamingHarness) stdout() io.Writer {
	if h.outW != nil {
		return h.outW
	}
	return os.Stdout
}

func (h *streamingHarness) stderr() io.Writer {
	if h.errW != nil {
		return h.errW
	}
	return os.Stderr
}

// watchInactivity polls the activity clock and kills the process once
// idle time crosses the timeout. It returns as soon as the done channel
// closes.
func (h *streamingHarness) watchInactivity(proc *os.Process, timeout time.Duration, activity *activityClock, timedOut *atomic.Bool, done <-chan struct{}) {
	ticker := time.NewTicker(watchdogPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		// Re-check after waking so a process that exited during the
		// sleep is not reported as timed out.
		select {
		case <-done:
			return
		default:
		}

		if activity.idle() < timeout {
			continue
		}

		fmt.Fprintf(h.stderr(), "\n=== Inactivity timeout (%s) reached, killing process... ===\n\n", timeout)
		timedOut.Store(true)
		if proc != nil {
			_ = proc.Kill()
		}
		return
	}
}

// streamPipe tees pipe output to w while collecting it, marking
// activity on every read.
func streamPipe(r io.Reader, w io.Writer, activity *activityClock) string {
	var collected strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			activity.touch()
			collected.Write(buf[:n])
			_, _ = w.Write(buf[:n])
		}
		if err != nil {
			return collected.String()
		}
	}
}

// activityClock tracks when harness output was last observed.
type activityClock struct {
	mu   sync.Mutex
	last time.Time
}

func newActivityClock() *activityClock {
	return &activityClock{last: time.Now()}
}

func (c *activityClock) touch() {
	c.mu.Lock()
	c.last = time.Now()
	c.mu.Unlock()
}

func (c *activityClock) idle() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.last)
}
