package harness

import "strconv"

// State is a step of a single run.
type State int

const (
	Configured State = iota
	Spawned
	Draining
	ChildExited
	Drained
	Reported
)

func (s State) String() string {
	switch s {
	case Configured:
		return "configured"
	case Spawned:
		return "spawned"
	case Draining:
		return "draining"
	case ChildExited:
		return "child_exited"
	case Drained:
		return "drained"
	case Reported:
		return "reported"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}
