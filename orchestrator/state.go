package orchestrator

// State is a stage of one query run.
type State int

const (
	StateRouting State = iota
	StateDispatching
	StateFusing
	StateFormatting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRouting:
		return "routing"
	case StateDispatching:
		return "dispatching"
	case StateFusing:
		return "fusing"
	case StateFormatting:
		return "formatting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// next is the only successor of each non-terminal state besides StateFailed.
var next = map[State]State{
	StateRouting:     StateDispatching,
	StateDispatching: StateFusing,
	StateFusing:      StateFormatting,
	StateFormatting:  StateDone,
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	return to == StateFailed || next[from] == to
}
