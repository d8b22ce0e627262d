package veto

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournament-engine/models"
)

func TestReconcilerMergesSpeculativeActions(t *testing.T) {
	base := Calculate(newSession(models.VetoStatusInProgress, intp(home)), threeBans(), Options{})
	r := NewReconciler(base, Options{})

	tag, _, err := r.Assume(Proposal{TeamID: home, MapID: "split"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, tag)

	view := r.View()
	assert.Equal(t, []int{4}, view.SpeculativePositions)
	assert.Equal(t, []uuid.UUID{tag}, view.Pending)
	assert.Equal(t, 5, view.State.CurrentPosition)
	assert.True(t, view.State.CanTeamAct(away))
	assert.Nil(t, view.State.TurnSyncError)

	// the merged view already moved on, home cannot stack another ban
	_, _, err = r.Assume(Proposal{TeamID: home, MapID: "lotus"})
	assert.ErrorIs(t, err, ErrNotYourTurn)

	// authoritative state is untouched
	assert.Equal(t, 4, r.Authoritative().CurrentPosition)
}

func TestReconcilerRefreshConfirms(t *testing.T) {
	session := newSession(models.VetoStatusInProgress, intp(home))
	r := NewReconciler(Calculate(session, threeBans(), Options{}), Options{})

	tag, _, err := r.Assume(Proposal{TeamID: home, MapID: "split"})
	require.NoError(t, err)

	confirmed := append(threeBans(), ban(4, home, "split"))
	session.CurrentTurnTeamID = intp(away)
	res := r.Refresh(Calculate(session, confirmed, Options{}))

	assert.Equal(t, []uuid.UUID{tag}, res.Confirmed)
	assert.Empty(t, res.Rejected)
	assert.Empty(t, r.View().Pending)
	assert.Equal(t, 5, r.View().State.CurrentPosition)
}

func TestReconcilerRefreshContradicts(t *testing.T) {
	session := newSession(models.VetoStatusInProgress, intp(home))
	r := NewReconciler(Calculate(session, threeBans(), Options{}), Options{})

	tag, _, err := r.Assume(Proposal{TeamID: home, MapID: "split"})
	require.NoError(t, err)

	// the other tab of the same captain banned a different map first
	winner := append(threeBans(), ban(4, home, "icebox"))
	session.CurrentTurnTeamID = intp(away)
	res := r.Refresh(Calculate(session, winner, Options{}))

	assert.Empty(t, res.Confirmed)
	assert.Equal(t, []uuid.UUID{tag}, res.Rejected)
	view := r.View()
	assert.Empty(t, view.SpeculativePositions)
	assert.Contains(t, view.State.BannedMaps, "icebox")
	assert.NotContains(t, view.State.BannedMaps, "split")
}

func TestReconcilerReject(t *testing.T) {
	r := NewReconciler(Calculate(newSession(models.VetoStatusInProgress, intp(home)), threeBans(), Options{}), Options{})

	tag, _, err := r.Assume(Proposal{TeamID: home, MapID: "split"})
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{tag}, r.Reject())
	assert.Equal(t, 4, r.View().State.CurrentPosition)
	assert.Empty(t, r.Reject())
}
