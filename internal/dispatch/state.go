package dispatch

// State is a step of the command cycle.
type State int

const (
	Idle State = iota
	Classifying
	Executing
	Composing
	Done
	ErrorFallback
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Classifying:
		return "classifying"
	case Executing:
		return "executing"
	case Composing:
		return "composing"
	case Done:
		return "done"
	case ErrorFallback:
		return "error_fallback"
	}
	return "unknown"
}
