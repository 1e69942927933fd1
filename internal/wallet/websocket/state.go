package websocket

// State is the lifecycle of an Engine.
type State int

const (
	StateClosed State = iota
	StateHandshaking
	StateOpen
	StateClosing
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHandshaking:
		return "handshaking"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Observer receives engine events. Implementations must be cheap; they run
// inline on the single thread of control.
type Observer interface {
	FrameSent(opcode string)
	FrameReceived(opcode string)
	HandshakeCompleted(err error)
	StateChanged(state string)
}

type nopObserver struct{}

func (nopObserver) FrameSent(string)         {}
func (nopObserver) FrameReceived(string)     {}
func (nopObserver) HandshakeCompleted(error) {}
func (nopObserver) StateChanged(string)      {}
