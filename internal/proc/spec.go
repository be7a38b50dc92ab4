// Package proc launches a child process with its output streams redirected.
package proc

import (
	"errors"
	"io"
	"os"
)

var ErrEmptyCommand = errors.New("empty command")

// Spec is the executable path followed by its arguments.
// The zero value is not valid, use NewSpec.
type Spec struct {
	argv []string
}

// NewSpec copies argv into a new Spec. It returns ErrEmptyCommand for an
// empty vector or an empty executable.
func NewSpec(argv []string) (Spec, error) {
	if len(argv) == 0 || argv[0] == "" {
		return Spec{}, ErrEmptyCommand
	}
	return Spec{argv: append([]string(nil), argv...)}, nil
}

// Path returns the executable.
func (s Spec) Path() string {
	if len(s.argv) == 0 {
		return ""
	}
	return s.argv[0]
}

// Args returns a copy of the arguments, never nil.
func (s Spec) Args() []string {
	if len(s.argv) < 2 {
		return []string{}
	}
	return append([]string(nil), s.argv[1:]...)
}

// Argv returns a copy of the whole vector.
func (s Spec) Argv() []string {
	return append([]string(nil), s.argv...)
}

// Streams are the parent side output streams.
type Streams struct {
	Stdout io.Writer
	Stderr io.Writer
}

// OSStreams returns the streams of the current process.
func OSStreams() Streams {
	return Streams{Stdout: os.Stdout, Stderr: os.Stderr}
}

// WithDefaults replaces nil streams by os.Stdout and os.Stderr.
func (s Streams) WithDefaults() Streams {
	if s.Stdout == nil {
		s.Stdout = os.Stdout
	}
	if s.Stderr == nil {
		s.Stderr = os.Stderr
	}
	return s
}
