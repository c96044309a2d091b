package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	// stderrCap bounds how much child stderr is kept for error reports.
	stderrCap = 3500
	// cancelGracePeriod is how long a cancelled child gets to exit after
	// SIGTERM before it is killed.
	cancelGracePeriod = 5 * time.Second
)

// Command is one FFmpeg invocation. Build it with CommandBuilder; a Command
// runs at most once.
type Command struct {
	Binary string
	Args   []string

	stderrMu   sync.Mutex
	stderrHead []byte
}

func newCommand(binary string, args []string) *Command {
	return &Command{Binary: binary, Args: args}
}

// String renders the argv for logging. Never pass this to a shell.
func (c *Command) String() string {
	return c.Binary + " " + strings.Join(c.Args, " ")
}

// RunError is a child failure carrying the captured stderr head.
type RunError struct {
	Stderr string
	err    error
}

func (e *RunError) Error() string {
	line, _, _ := strings.Cut(strings.TrimSpace(e.Stderr), "\n")
	if line == "" {
		return e.err.Error()
	}
	return e.err.Error() + ": " + line
}

func (e *RunError) Unwrap() error {
	return e.err
}

// Run starts the child and waits for it. When ctx is cancelled the child
// receives SIGTERM and, if still alive after the grace period, SIGKILL; Run
// then returns the context error. Other failures return a RunError with the
// stderr head attached.
func (c *Command) Run(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.Binary, c.Args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = cancelGracePeriod

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", c.Binary, err)
	}

	// Drain stderr to EOF before Wait closes the pipe.
	c.consumeStderr(stderr)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if waitErr != nil {
		return &RunError{Stderr: c.StderrHead(), err: waitErr}
	}
	return nil
}

// consumeStderr reads the child's stderr to EOF, keeping the first
// stderrCap bytes.
func (c *Command) consumeStderr(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			c.stderrMu.Lock()
			if room := stderrCap - len(c.stderrHead); room > 0 {
				if n > room {
					n = room
				}
				c.stderrHead = append(c.stderrHead, buf[:n]...)
			}
			c.stderrMu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// StderrHead returns up to the first 3500 bytes of child stderr.
func (c *Command) StderrHead() string {
	c.stderrMu.Lock()
	defer c.stderrMu.Unlock()
	return string(c.stderrHead)
}
