// Package redirect defines how the standard output and standard error
// streams of a child process are connected.
package redirect

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownPolicy = errors.New("unknown redirection policy")

// Policy selects the treatment of both child output streams. A single
// Policy governs stdout and stderr identically.
type Policy int

const (
	// Inherit connects the child streams to the parent streams.
	Inherit Policy = iota
	// Discard connects the child streams to the null device.
	Discard
	// PipedUndrained connects the child streams to kernel pipes which are
	// never read. A child writing more than the pipe capacity blocks forever.
	PipedUndrained
	// PipedDrained connects the child streams to kernel pipes which are
	// relayed line by line to the parent streams.
	PipedDrained
)

// Destination is where a child output stream ends up.
type Destination int

const (
	Parent Destination = iota
	Null
	Pipe
)

func (d Destination) String() string {
	switch d {
	case Parent:
		return "parent"
	case Null:
		return "null"
	case Pipe:
		return "pipe"
	}
	return fmt.Sprintf("destination(%d)", int(d))
}

var names = [...]string{
	Inherit:        "default",
	Discard:        "null",
	PipedUndrained: "piped",
	PipedDrained:   "piped-process",
}

// Policies returns all policies in declaration order.
func Policies() []Policy {
	return []Policy{Inherit, Discard, PipedUndrained, PipedDrained}
}

// Names returns the command line names of all policies.
func Names() []string {
	return append([]string(nil), names[:]...)
}

// ParsePolicy is the inverse of Policy.String.
func ParsePolicy(s string) (Policy, error) {
	for i, name := range names {
		if s == name {
			return Policy(i), nil
		}
	}
	return Inherit, fmt.Errorf("%w %q: possible values (%s)", ErrUnknownPolicy, s, strings.Join(names[:], ","))
}

func (p Policy) valid() bool {
	return p >= Inherit && p <= PipedDrained
}

func (p Policy) String() string {
	if !p.valid() {
		return fmt.Sprintf("policy(%d)", int(p))
	}
	return names[p]
}

// Destination maps the policy to the destination of both output streams.
func (p Policy) Destination() Destination {
	switch p {
	case Inherit:
		return Parent
	case Discard:
		return Null
	case PipedUndrained, PipedDrained:
		return Pipe
	}
	panic("redirect: invalid policy " + p.String())
}

// Drained reports whether the piped streams are actively consumed.
func (p Policy) Drained() bool {
	return p == PipedDrained
}

// Set implements pflag.Value.
func (p *Policy) Set(s string) error {
	v, err := ParsePolicy(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Type implements pflag.Value.
func (p *Policy) Type() string {
	return "mode"
}
