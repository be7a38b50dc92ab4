package proc

import (
	"errors"
	"fmt"
)

var (
	ErrSpawn               = errors.New("spawn failed")
	ErrAbnormalTermination = errors.New("process did not have a valid exit code")
)

// SpawnError is returned when the executable can't be found or started.
type SpawnError struct {
	Argv []string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn process %q: %v", e.Argv, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

func (e *SpawnError) Is(target error) bool { return target == ErrSpawn }

// AbnormalTerminationError is returned when the process terminated without
// an exit code, typically killed by a signal.
type AbnormalTerminationError struct {
	Path  string
	State string // os.ProcessState.String(), e.g. "signal: killed"
}

func (e *AbnormalTerminationError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Path, ErrAbnormalTermination, e.State)
}

func (e *AbnormalTerminationError) Is(target error) bool { return target == ErrAbnormalTermination }
