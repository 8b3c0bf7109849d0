//go:generate mockgen -destination mock_streamplan/mock_streamplan.go github.com/anyproto/any-stream/streamplan Coordinator,Session

// Package streamplan aggregates the outcomes of the per-peer sessions of one
// streaming plan into a single resolve-once result.
//
// A plan is one logical transfer job between the local node and a set of
// peers, with one independent session per peer. Sessions are owned and driven
// by an external coordinator; they report their lifecycle into a StreamResult
// through the EventSink callbacks. Once every session is terminal the
// StreamResult resolves exactly once: with the final StreamState snapshot on
// success, or with a *StreamError when any session failed.
package streamplan

import (
	"context"
)

// Coordinator owns session creation, connection setup and the authoritative
// session table. The aggregator only consumes this narrow status surface.
type Coordinator interface {
	// IsReceiving reports whether the plan expects inbound sessions
	IsReceiving() bool
	// HasActiveSessions reports whether at least one session is not terminal yet
	HasActiveSessions() bool
	// Sessions enumerates the currently known sessions
	Sessions() []Session
	// ConnectAll opens the connections of all sessions
	ConnectAll(ctx context.Context) error
}

// Session is the transfer with one peer for one plan.
type Session interface {
	// Init wires the sink the session will report its lifecycle into
	Init(sink EventSink)
	Peer() string
	SessionIndex() int
	// SessionInfo returns the session's current status record
	SessionInfo() SessionInfo
}

// EventSink is the callback capability sessions drive the aggregation
// through. Callbacks may arrive from concurrent per-session flows; the
// implementation serializes them.
type EventSink interface {
	OnSessionPrepared(s Session)
	OnSessionComplete(s Session)
	OnProgress(p ProgressInfo)
}
