package gateway

// State is the explicit session state machine:
// Disconnected → Binding → Bound → (Error|Closed) → Disconnected.
// Callers never see raw connection flags; they go through EnsureConnection.
type State int32

const (
	StateDisconnected State = iota
	StateBinding
	StateBound
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateBinding:
		return "binding"
	case StateBound:
		return "bound"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return "disconnected"
	}
}
