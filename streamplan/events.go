package streamplan

// EventKind discriminates StreamEvent payloads.
type EventKind int

const (
	EventSessionPrepared EventKind = iota
	EventSessionComplete
	EventProgress
)

func (k EventKind) String() string {
	switch k {
	case EventSessionPrepared:
		return "sessionPrepared"
	case EventSessionComplete:
		return "sessionComplete"
	case EventProgress:
		return "progress"
	default:
		return "unknown"
	}
}

// StreamEvent is a closed variant over the plan notifications.
// Session is set for EventSessionPrepared and EventSessionComplete,
// Progress for EventProgress.
type StreamEvent struct {
	Kind     EventKind
	PlanId   string
	Session  SessionInfo
	Progress ProgressInfo
}

// EventListener observes plan events. Events are delivered synchronously, in
// listener registration order, from inside the plan's critical section:
// handlers must not block and must not call back into the StreamResult.
type EventListener interface {
	HandleStreamEvent(ev StreamEvent)
}

// EventListenerFunc adapts a plain function to EventListener.
type EventListenerFunc func(ev StreamEvent)

func (f EventListenerFunc) HandleStreamEvent(ev StreamEvent) {
	f(ev)
}
