package streamplan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anyproto/any-sync/app/logger"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var log = logger.NewNamed("common.streamplan")

// StreamError is the aggregate failure of a plan, produced exactly once at
// resolution time. It carries the final snapshot.
type StreamError struct {
	State StreamState
	Msg   string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("[stream %s] %s", e.State.PlanId, e.Msg)
}

// StreamResult is a future on the final StreamState of one streaming plan.
//
// It groups the plan's sessions: every session reports its lifecycle through
// the EventSink side of this object, and once every session is terminal the
// result resolves exactly once, never changing afterwards. Attach an
// EventListener to track progress, or OnComplete / Wait / Done to observe the
// resolved value.
//
// The aggregator has no thread of its own and never polls: listener fan-out,
// snapshot updates and the resolution cell are all serialized under a single
// mutex driven by the session callbacks.
type StreamResult struct {
	planId      string
	description string
	coordinator Coordinator
	state       *PlanState

	mu         sync.Mutex
	listeners  []EventListener
	onComplete []func(st StreamState, err error)

	resolved atomic.Bool
	result   StreamState
	err      error
	done     chan struct{}

	log logger.CtxLogger
}

// NewStreamResult creates the aggregator for a plan. A plan with neither
// receiving activity nor active sessions is vacuously successful and resolves
// right away with an empty snapshot.
func NewStreamResult(planId, description string, coordinator Coordinator, state *PlanState) *StreamResult {
	r := &StreamResult{
		planId:      planId,
		description: description,
		coordinator: coordinator,
		state:       state,
		done:        make(chan struct{}),
		log:         log.With(zap.String("planId", planId)),
	}
	if !coordinator.IsReceiving() && !coordinator.HasActiveSessions() {
		r.mu.Lock()
		r.resolveLocked(r.currentState(), nil)
		r.mu.Unlock()
	}
	return r
}

func (r *StreamResult) PlanId() string {
	return r.planId
}

func (r *StreamResult) Description() string {
	return r.description
}

// Start attaches the given listeners, wires this aggregator into every
// session and only then lets the coordinator open connections, so the first
// session to finish cannot resolve the plan before the remaining sessions are
// registered as active.
func (r *StreamResult) Start(ctx context.Context, listeners ...EventListener) error {
	for _, l := range listeners {
		r.AddEventListener(l)
	}
	r.log.Info("executing streaming plan", zap.String("description", r.description))
	for _, s := range r.coordinator.Sessions() {
		s.Init(r)
	}
	return r.coordinator.ConnectAll(ctx)
}

// AddEventListener appends a listener; subsequent events are delivered in
// registration order. A listener added after resolution gets no replay.
func (r *StreamResult) AddEventListener(l EventListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// CurrentState returns a snapshot of the plan's progress as of now.
func (r *StreamResult) CurrentState() StreamState {
	return r.currentState()
}

func (r *StreamResult) currentState() StreamState {
	return StreamState{
		PlanId:      r.planId,
		Description: r.description,
		Sessions:    r.state.SessionInfos(),
	}
}

// OnSessionPrepared records the session's negotiated counts and notifies the
// listeners.
func (r *StreamResult) OnSessionPrepared(s Session) {
	info := s.SessionInfo()
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.state.UpsertSessionInfo(info); err != nil {
		r.log.Error("session prepared rejected",
			zap.Error(err),
			zap.String("peer", info.Peer),
			zap.Int("sessionIndex", info.SessionIndex))
		return
	}
	r.log.Info("prepare completed",
		zap.Int("sessionIndex", info.SessionIndex),
		zap.Int("filesToReceive", info.FilesToReceive),
		zap.Uint64("bytesToReceive", info.BytesToReceive),
		zap.Int("filesToSend", info.FilesToSend),
		zap.Uint64("bytesToSend", info.BytesToSend))
	r.fireEventLocked(StreamEvent{Kind: EventSessionPrepared, PlanId: r.planId, Session: info})
}

// OnSessionComplete records the session's terminal state, notifies the
// listeners and checks whether the whole plan can resolve.
func (r *StreamResult) OnSessionComplete(s Session) {
	info := s.SessionInfo()
	r.mu.Lock()
	if err := r.state.UpsertSessionInfo(info); err != nil {
		r.mu.Unlock()
		r.log.Error("session complete rejected",
			zap.Error(err),
			zap.String("peer", info.Peer),
			zap.Int("sessionIndex", info.SessionIndex))
		return
	}
	r.log.Info("session complete",
		zap.String("peer", info.Peer),
		zap.Int("sessionIndex", info.SessionIndex),
		zap.Stringer("state", info.State))
	r.fireEventLocked(StreamEvent{Kind: EventSessionComplete, PlanId: r.planId, Session: info})
	callbacks, st, err := r.maybeCompleteLocked()
	r.mu.Unlock()
	for _, cb := range callbacks {
		cb(st, err)
	}
}

// OnProgress merges the delta into the session's cumulative counter and
// notifies the listeners. Progress alone never resolves the plan, only a
// session completion can.
func (r *StreamResult) OnProgress(p ProgressInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.state.MergeProgress(p); err != nil {
		r.log.Error("progress rejected",
			zap.Error(err),
			zap.String("peer", p.Peer),
			zap.Int("sessionIndex", p.SessionIndex),
			zap.String("fileId", p.FileId))
		return
	}
	r.fireEventLocked(StreamEvent{Kind: EventProgress, PlanId: r.planId, Progress: p})
}

// fireEventLocked delivers ev to every listener in registration order.
// A panicking listener is isolated so its siblings and the aggregation are
// unaffected.
func (r *StreamResult) fireEventLocked(ev StreamEvent) {
	for _, l := range r.listeners {
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.log.Error("event listener panic", zap.Any("panic", p), zap.Stringer("event", ev.Kind))
				}
			}()
			l.HandleStreamEvent(ev)
		}()
	}
}

// maybeCompleteLocked resolves the plan when no session is active anymore.
// Repeated checks after resolution are no-ops. The returned callbacks must be
// run by the caller after releasing the lock.
func (r *StreamResult) maybeCompleteLocked() (callbacks []func(StreamState, error), st StreamState, err error) {
	if r.resolved.Load() {
		return
	}
	if r.coordinator.HasActiveSessions() {
		return
	}
	st = r.currentState()
	if st.AnyFailed() {
		r.log.Warn("stream failed")
		err = &StreamError{State: st, Msg: "stream failed"}
	} else {
		r.log.Info("all sessions completed")
	}
	callbacks = r.resolveLocked(st, err)
	return
}

// resolveLocked writes the one-shot cell. The resolved fields must be set
// before the atomic flag flips so that lock-free readers observe them.
func (r *StreamResult) resolveLocked(st StreamState, err error) []func(StreamState, error) {
	r.result = st
	r.err = err
	r.resolved.Store(true)
	close(r.done)
	callbacks := r.onComplete
	r.onComplete = nil
	return callbacks
}

// IsDone reports whether the plan has resolved.
func (r *StreamResult) IsDone() bool {
	return r.resolved.Load()
}

// Done is closed once the plan resolves.
func (r *StreamResult) Done() <-chan struct{} {
	return r.done
}

// TryResult polls the resolution cell without blocking or locking.
// ok is false while the plan is still pending.
func (r *StreamResult) TryResult() (st StreamState, ok bool, err error) {
	if !r.resolved.Load() {
		return
	}
	return r.result, true, r.err
}

// Wait blocks until the plan resolves or ctx is done.
func (r *StreamResult) Wait(ctx context.Context) (StreamState, error) {
	select {
	case <-r.done:
		return r.result, r.err
	case <-ctx.Done():
		return StreamState{}, ctx.Err()
	}
}

// OnComplete registers cb to run once the plan resolves; cb runs immediately
// when the plan is already resolved. cb is never called under the
// aggregator's lock.
func (r *StreamResult) OnComplete(cb func(st StreamState, err error)) {
	r.mu.Lock()
	if r.resolved.Load() {
		st, err := r.result, r.err
		r.mu.Unlock()
		cb(st, err)
		return
	}
	r.onComplete = append(r.onComplete, cb)
	r.mu.Unlock()
}

// Close force-resolves a still pending plan as failed with the final snapshot
// taken at close time. The plan registry uses it on removal and shutdown.
func (r *StreamResult) Close() error {
	r.mu.Lock()
	if r.resolved.Load() {
		r.mu.Unlock()
		return nil
	}
	r.log.Warn("closing pending plan")
	st := r.currentState()
	err := &StreamError{State: st, Msg: "stream closed"}
	callbacks := r.resolveLocked(st, err)
	r.mu.Unlock()
	for _, cb := range callbacks {
		cb(st, err)
	}
	return nil
}

// TryClose refuses to collect a plan that is still pending.
func (r *StreamResult) TryClose(objectTTL time.Duration) (bool, error) {
	if !r.resolved.Load() {
		return false, nil
	}
	return true, r.Close()
}
