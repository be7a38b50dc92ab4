package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/CZERTAINLY/piperepro/internal/redirect"
)

// Child is a running process started by Start. Methods are meant to be
// called from a single goroutine, except Kill.
type Child struct {
	spec   Spec
	policy redirect.Policy
	cmd    *exec.Cmd

	// read ends of the pipes, nil unless policy.Destination() == redirect.Pipe
	// or once moved out by TakeOutputs
	stdout *os.File
	stderr *os.File
}

// Start spawns the process described by spec with both output streams
// connected according to policy. The process runs concurrently with the
// caller once Start returns nil. Spawn failures are returned as *SpawnError.
// Start never times out, ctx only carries logging attributes.
func Start(ctx context.Context, spec Spec, policy redirect.Policy, parent Streams) (*Child, error) {
	if spec.Path() == "" {
		return nil, ErrEmptyCommand
	}
	parent = parent.WithDefaults()

	c := &Child{
		spec:   spec,
		policy: policy,
		cmd:    exec.Command(spec.Path(), spec.Args()...),
	}

	var writeEnds []*os.File
	switch policy.Destination() {
	case redirect.Parent:
		c.cmd.Stdout = parent.Stdout
		c.cmd.Stderr = parent.Stderr
	case redirect.Null:
		// os/exec connects nil streams to os.DevNull
		c.cmd.Stdout = nil
		c.cmd.Stderr = nil
	case redirect.Pipe:
		stdoutW, err := c.pipe(&c.stdout)
		if err != nil {
			return nil, &SpawnError{Argv: spec.Argv(), Err: err}
		}
		writeEnds = append(writeEnds, stdoutW)
		stderrW, err := c.pipe(&c.stderr)
		if err != nil {
			closeAll(writeEnds...)
			c.closeOutputs()
			return nil, &SpawnError{Argv: spec.Argv(), Err: err}
		}
		writeEnds = append(writeEnds, stderrW)
		c.cmd.Stdout = stdoutW
		c.cmd.Stderr = stderrW
	}

	err := c.cmd.Start()
	// write ends belong to the child now, readers see EOF only once
	// every copy is closed
	closeAll(writeEnds...)
	if err != nil {
		c.closeOutputs()
		return nil, &SpawnError{Argv: spec.Argv(), Err: err}
	}

	slog.DebugContext(ctx, "process started",
		"path", spec.Path(),
		"args", spec.Args(),
		"pid", c.cmd.Process.Pid,
		"policy", policy.String(),
	)
	return c, nil
}

func (c *Child) pipe(readEnd **os.File) (*os.File, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating pipe: %w", err)
	}
	*readEnd = r
	return w, nil
}

// Spec returns the launched command.
func (c *Child) Spec() Spec { return c.spec }

// Policy returns the redirection policy the child was started with.
func (c *Child) Policy() redirect.Policy { return c.policy }

// Pid returns the OS process id.
func (c *Child) Pid() int { return c.cmd.Process.Pid }

// TakeOutputs moves the read ends of the stdout and stderr pipes to the
// caller, which becomes responsible for closing them. It returns false for
// non piped policies or when the outputs were already taken.
func (c *Child) TakeOutputs() (stdout, stderr io.ReadCloser, ok bool) {
	if c.stdout == nil || c.stderr == nil {
		return nil, nil, false
	}
	stdout, stderr = c.stdout, c.stderr
	c.stdout, c.stderr = nil, nil
	return stdout, stderr, true
}

// Wait blocks until the process terminates and returns its exit code.
// A process killed by a signal yields *AbnormalTerminationError. Read ends
// still owned by the child are closed once the process is gone.
func (c *Child) Wait() (int, error) {
	err := c.cmd.Wait()
	c.closeOutputs()

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return -1, fmt.Errorf("waiting for %s: %w", c.spec.Path(), err)
	}

	state := c.cmd.ProcessState
	if state == nil || !state.Exited() {
		reason := "state is nil"
		if state != nil {
			reason = state.String()
		}
		return -1, &AbnormalTerminationError{Path: c.spec.Path(), State: reason}
	}
	return state.ExitCode(), nil
}

// Kill terminates the process immediately.
func (c *Child) Kill() error {
	err := c.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (c *Child) closeOutputs() {
	closeAll(c.stdout, c.stderr)
	c.stdout, c.stderr = nil, nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}
