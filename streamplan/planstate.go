package streamplan

import (
	"errors"
	"sync"
)

var (
	ErrUnknownSession         = errors.New("progress for unknown session")
	ErrSessionStateRegression = errors.New("session state regression")
)

type sessionKey struct {
	peer  string
	index int
}

// PlanState keeps the latest SessionInfo per (peer, session index). It is
// shared between the aggregator and the coordinator and is safe for
// concurrent use. Records are only added or updated in place, never removed.
type PlanState struct {
	mu       sync.Mutex
	sessions map[sessionKey]SessionInfo
	order    []sessionKey
}

func NewPlanState() *PlanState {
	return &PlanState{
		sessions: make(map[sessionKey]SessionInfo),
	}
}

// UpsertSessionInfo replaces the whole record of info's session.
// A state going backward is rejected with ErrSessionStateRegression and
// leaves the record unchanged.
func (ps *PlanState) UpsertSessionInfo(info SessionInfo) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	key := sessionKey{peer: info.Peer, index: info.SessionIndex}
	if prev, ok := ps.sessions[key]; ok {
		if info.State < prev.State {
			return ErrSessionStateRegression
		}
	} else {
		ps.order = append(ps.order, key)
	}
	ps.sessions[key] = info
	return nil
}

// MergeProgress adds p's delta into the cumulative counter of an already
// prepared session. Progress for a session that was never upserted is a
// contract violation of the reporting side and returns ErrUnknownSession.
// Counters of a terminal session are frozen, late progress is ignored.
func (ps *PlanState) MergeProgress(p ProgressInfo) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	key := sessionKey{peer: p.Peer, index: p.SessionIndex}
	info, ok := ps.sessions[key]
	if !ok {
		return ErrUnknownSession
	}
	if info.State.IsTerminal() {
		return nil
	}
	info.BytesTransferred += p.BytesDelta
	ps.sessions[key] = info
	return nil
}

// SessionInfos returns a deep copy of all records in first-seen order, so a
// snapshot taken mid-update can never change after capture.
func (ps *PlanState) SessionInfos() []SessionInfo {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	infos := make([]SessionInfo, 0, len(ps.order))
	for _, key := range ps.order {
		infos = append(infos, ps.sessions[key])
	}
	return infos
}

func (ps *PlanState) Len() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.sessions)
}
