package crawler

// State is the lifecycle state of a Crawler.
type State int

const (
	// StateIdle is the state after New.
	StateIdle State = iota

	// StateRunning means URLs are dispatched to workers.
	StateRunning

	// StatePaused means no new URLs are dispatched; in-flight fetches
	// complete.
	StatePaused

	// StateStopped is final. In-flight work was drained or canceled.
	StateStopped

	// StateError means an internal fault stopped the crawler.
	StateError
)

// String returns a lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
