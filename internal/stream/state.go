package stream

// ConnectionState is the lifecycle state of the client's live connection.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateOpen
	StateReconnectScheduled
	StateClosed // torn down by the caller
	StateGaveUp // reconnect attempts exhausted
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnectScheduled:
		return "reconnect-scheduled"
	case StateClosed:
		return "closed"
	case StateGaveUp:
		return "gave-up"
	default:
		return "unknown"
	}
}

// Terminal reports whether the client will not reconnect on its own.
func (s ConnectionState) Terminal() bool {
	return s == StateClosed || s == StateGaveUp
}
