package streamplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanState_UpsertSessionInfo(t *testing.T) {
	t.Run("replaces the whole record", func(t *testing.T) {
		ps := NewPlanState()
		require.NoError(t, ps.UpsertSessionInfo(SessionInfo{
			Peer:        "peerA",
			State:       SessionStatePrepared,
			FilesToSend: 2,
			BytesToSend: 100,
		}))
		require.NoError(t, ps.UpsertSessionInfo(SessionInfo{
			Peer:        "peerA",
			State:       SessionStateCompleted,
			FilesToSend: 3,
			BytesToSend: 300,
		}))
		infos := ps.SessionInfos()
		require.Len(t, infos, 1)
		assert.Equal(t, SessionStateCompleted, infos[0].State)
		assert.Equal(t, 3, infos[0].FilesToSend)
	})
	t.Run("regression rejected", func(t *testing.T) {
		ps := NewPlanState()
		require.NoError(t, ps.UpsertSessionInfo(SessionInfo{Peer: "peerA", State: SessionStateCompleted}))
		err := ps.UpsertSessionInfo(SessionInfo{Peer: "peerA", State: SessionStatePrepared})
		require.ErrorIs(t, err, ErrSessionStateRegression)
		infos := ps.SessionInfos()
		require.Len(t, infos, 1)
		assert.Equal(t, SessionStateCompleted, infos[0].State)
	})
	t.Run("same peer different session index", func(t *testing.T) {
		ps := NewPlanState()
		require.NoError(t, ps.UpsertSessionInfo(SessionInfo{Peer: "peerA", SessionIndex: 0, State: SessionStatePrepared}))
		require.NoError(t, ps.UpsertSessionInfo(SessionInfo{Peer: "peerA", SessionIndex: 1, State: SessionStatePrepared}))
		assert.Equal(t, 2, ps.Len())
	})
}

func TestPlanState_MergeProgress(t *testing.T) {
	t.Run("adds delta", func(t *testing.T) {
		ps := NewPlanState()
		require.NoError(t, ps.UpsertSessionInfo(SessionInfo{Peer: "peerA", State: SessionStatePrepared}))
		require.NoError(t, ps.MergeProgress(ProgressInfo{Peer: "peerA", FileId: "f1", BytesDelta: 100}))
		require.NoError(t, ps.MergeProgress(ProgressInfo{Peer: "peerA", FileId: "f2", BytesDelta: 50}))
		assert.Equal(t, uint64(150), ps.SessionInfos()[0].BytesTransferred)
	})
	t.Run("unknown session", func(t *testing.T) {
		ps := NewPlanState()
		err := ps.MergeProgress(ProgressInfo{Peer: "peerA", BytesDelta: 100})
		require.ErrorIs(t, err, ErrUnknownSession)
		assert.Equal(t, 0, ps.Len())
	})
	t.Run("terminal session counters are frozen", func(t *testing.T) {
		ps := NewPlanState()
		require.NoError(t, ps.UpsertSessionInfo(SessionInfo{
			Peer:             "peerA",
			State:            SessionStateCompleted,
			BytesTransferred: 500,
		}))
		require.NoError(t, ps.MergeProgress(ProgressInfo{Peer: "peerA", BytesDelta: 100}))
		assert.Equal(t, uint64(500), ps.SessionInfos()[0].BytesTransferred)
	})
}

func TestPlanState_SessionInfos(t *testing.T) {
	t.Run("first-seen order", func(t *testing.T) {
		ps := NewPlanState()
		for _, peer := range []string{"peerC", "peerA", "peerB"} {
			require.NoError(t, ps.UpsertSessionInfo(SessionInfo{Peer: peer, State: SessionStatePrepared}))
		}
		require.NoError(t, ps.UpsertSessionInfo(SessionInfo{Peer: "peerA", State: SessionStateCompleted}))
		var peers []string
		for _, si := range ps.SessionInfos() {
			peers = append(peers, si.Peer)
		}
		assert.Equal(t, []string{"peerC", "peerA", "peerB"}, peers)
	})
	t.Run("snapshot is isolated", func(t *testing.T) {
		ps := NewPlanState()
		require.NoError(t, ps.UpsertSessionInfo(SessionInfo{Peer: "peerA", State: SessionStatePrepared}))
		snap := ps.SessionInfos()
		snap[0].State = SessionStateFailed
		snap[0].BytesTransferred = 42
		fresh := ps.SessionInfos()
		assert.Equal(t, SessionStatePrepared, fresh[0].State)
		assert.Equal(t, uint64(0), fresh[0].BytesTransferred)
	})
}
