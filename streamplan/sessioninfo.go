package streamplan

// SessionState is the lifecycle state of one session. Transitions are
// monotonic, a session never goes backward.
type SessionState int

const (
	SessionStateNotStarted SessionState = iota
	SessionStatePreparing
	SessionStatePrepared
	SessionStateStreaming
	SessionStateCompleted
	SessionStateFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionStateNotStarted:
		return "notStarted"
	case SessionStatePreparing:
		return "preparing"
	case SessionStatePrepared:
		return "prepared"
	case SessionStateStreaming:
		return "streaming"
	case SessionStateCompleted:
		return "completed"
	case SessionStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is possible.
func (s SessionState) IsTerminal() bool {
	return s == SessionStateCompleted || s == SessionStateFailed
}

// SessionInfo is a point-in-time status record of one per-peer session.
type SessionInfo struct {
	Peer             string
	SessionIndex     int
	FilesToSend      int
	BytesToSend      uint64
	FilesToReceive   int
	BytesToReceive   uint64
	BytesTransferred uint64
	State            SessionState
}

func (si SessionInfo) Failed() bool {
	return si.State == SessionStateFailed
}

// ProgressInfo reports incremental transfer progress of one file within a
// session. BytesDelta merges additively into the session's cumulative counter.
type ProgressInfo struct {
	Peer         string
	SessionIndex int
	FileId       string
	BytesDelta   uint64
	TotalBytes   uint64
}

// StreamState is an immutable snapshot of a whole plan as of capture time.
type StreamState struct {
	PlanId      string
	Description string
	Sessions    []SessionInfo
}

// AnyFailed reports whether at least one session ended up failed.
func (st StreamState) AnyFailed() bool {
	for _, si := range st.Sessions {
		if si.Failed() {
			return true
		}
	}
	return false
}
