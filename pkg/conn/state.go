package conn

// State is the handshake phase of a connection. Transitions are
// monotone: no transition returns to an earlier non-terminal state, and
// Disabled absorbs every failure path.
type State int

const (
	// StateInit is the untouched connection record.
	StateInit State = iota

	// StateDisabled means TLS is not (or no longer) active on this
	// connection. Terminal.
	StateDisabled

	// StatePreHandshake means TLS is enabled and no session exists yet.
	StatePreHandshake

	// StateHandshakeGeneric means the generic hello-capturing session is
	// consuming client bytes.
	StateHandshakeGeneric

	// StateHandshakeBound means the rebound session for the resolved
	// server is performing the real handshake.
	StateHandshakeBound

	// StatePostHandshake means the handshake completed; negotiated
	// values are final.
	StatePostHandshake
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateDisabled:
		return "disabled"
	case StatePreHandshake:
		return "pre_handshake"
	case StateHandshakeGeneric:
		return "handshake_generic"
	case StateHandshakeBound:
		return "handshake_bound"
	case StatePostHandshake:
		return "post_handshake"
	default:
		return "unknown"
	}
}

// Active reports whether TLS is enabled on a connection in this state.
func (s State) Active() bool {
	switch s {
	case StatePreHandshake, StateHandshakeGeneric, StateHandshakeBound, StatePostHandshake:
		return true
	default:
		return false
	}
}
