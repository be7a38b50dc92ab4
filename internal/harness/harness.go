// Package harness runs a single child process under a redirection policy
// and reports its exit code.
//
// Overview
// Start spawns the child through proc.Start. With redirect.PipedDrained it
// moves both pipe read ends out of the child and starts two named drain
// tasks, stdout and stderr, each relaying into the matching parent stream.
// Wait first waits for the child, then joins the drain tasks, and only then
// returns the Result.
//
//	Configured -> Spawned -> (Draining)? -> ChildExited -> (Drained)? -> Reported
//
// Invariants:
//   - exactly one policy governs a run
//   - with PipedDrained exactly two drain tasks exist, each reading its own pipe
//   - no Result is returned before every drain task has terminated
//   - every failure is fatal, there is no retry and no timeout
//
// With redirect.PipedUndrained a child writing more than the pipe capacity
// never terminates and Wait never returns. Use Run.Kill to bound it.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/CZERTAINLY/piperepro/internal/drain"
	"github.com/CZERTAINLY/piperepro/internal/log"
	"github.com/CZERTAINLY/piperepro/internal/proc"
	"github.com/CZERTAINLY/piperepro/internal/redirect"
)

var ErrNoOutputs = errors.New("piped outputs not available")

// Run is a started child process. Wait must be called exactly once.
type Run struct {
	ctx         context.Context
	id          string
	child       *proc.Child
	drains      *errgroup.Group // nil unless the policy is drained
	started     time.Time
	transitions []State
}

// Result describes a finished run.
type Result struct {
	RunID       string
	Spec        proc.Spec
	Policy      redirect.Policy
	ExitCode    int
	Started     time.Time
	Stopped     time.Time
	Transitions []State
}

// Summary is the single human readable line printed after a run.
func (r Result) Summary() string {
	return fmt.Sprintf("Executed '%q' with '%q', got exit code '%d'",
		r.Spec.Path(),
		r.Spec.Args(),
		r.ExitCode,
	)
}

// Execute starts the child and waits for it.
func Execute(ctx context.Context, spec proc.Spec, policy redirect.Policy, parent proc.Streams) (Result, error) {
	run, err := Start(ctx, spec, policy, parent)
	if err != nil {
		return Result{}, err
	}
	return run.Wait()
}

// Start spawns the child and, for redirect.PipedDrained, its two drain tasks.
// Nil parent streams default to os.Stdout and os.Stderr.
func Start(ctx context.Context, spec proc.Spec, policy redirect.Policy, parent proc.Streams) (*Run, error) {
	id := uuid.NewString()
	ctx = log.ContextAttrs(ctx, slog.Group("run",
		slog.String("id", id),
		slog.String("policy", policy.String()),
	))
	parent = parent.WithDefaults()

	r := &Run{
		ctx: ctx,
		id:  id,
	}
	r.transition(Configured)

	child, err := proc.Start(ctx, spec, policy, parent)
	if err != nil {
		return nil, err
	}
	r.child = child
	r.started = time.Now().UTC()
	r.transition(Spawned)

	if !policy.Drained() {
		return r, nil
	}

	stdout, stderr, ok := child.TakeOutputs()
	if !ok {
		_ = child.Kill()
		_, _ = child.Wait()
		return nil, fmt.Errorf("%s: %w", policy, ErrNoOutputs)
	}

	r.drains = new(errgroup.Group)
	r.drains.Go(func() error {
		defer func() { _ = stdout.Close() }()
		return drain.Relay(ctx, "stdout", stdout, parent.Stdout)
	})
	r.drains.Go(func() error {
		defer func() { _ = stderr.Close() }()
		return drain.Relay(ctx, "stderr", stderr, parent.Stderr)
	})
	r.transition(Draining)
	return r, nil
}

// ID returns the unique id of the run, also present in its log records.
func (r *Run) ID() string { return r.id }

// Pid returns the child process id.
func (r *Run) Pid() int { return r.child.Pid() }

// Kill terminates the child. Wait then fails with
// proc.ErrAbnormalTermination.
func (r *Run) Kill() error {
	slog.WarnContext(r.ctx, "killing process", "pid", r.child.Pid())
	return r.child.Kill()
}

// Wait blocks until the child exits and every drain task has finished.
func (r *Run) Wait() (Result, error) {
	code, waitErr := r.child.Wait()
	if waitErr != nil {
		// the child is gone, so are its write ends: the drain tasks end too
		return Result{}, errors.Join(waitErr, r.joinDrains())
	}
	r.transition(ChildExited)

	if r.drains != nil {
		if err := r.joinDrains(); err != nil {
			return Result{}, err
		}
		r.transition(Drained)
	}
	stopped := time.Now().UTC()
	r.transition(Reported)

	slog.DebugContext(r.ctx, "run finished",
		"exit_code", code,
		"duration", stopped.Sub(r.started),
	)
	return Result{
		RunID:       r.id,
		Spec:        r.child.Spec(),
		Policy:      r.child.Policy(),
		ExitCode:    code,
		Started:     r.started,
		Stopped:     stopped,
		Transitions: append([]State(nil), r.transitions...),
	}, nil
}

func (r *Run) joinDrains() error {
	if r.drains == nil {
		return nil
	}
	return r.drains.Wait()
}

func (r *Run) transition(s State) {
	r.transitions = append(r.transitions, s)
	slog.DebugContext(r.ctx, "run state", "state", s.String())
}
