package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournament-engine/events"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/realtime"
	"github.com/Dosada05/tournament-engine/veto"
)

const (
	homeCaptain = 100 // seed 1
	awayCaptain = 103 // seed 4
)

// banOrder follows the 7 map sequence: home, away, away, home, away, home.
var banOrder = []struct {
	user int
	mapID string
}{
	{homeCaptain, "ancient"},
	{awayCaptain, "anubis"},
	{awayCaptain, "inferno"},
	{homeCaptain, "mirage"},
	{awayCaptain, "nuke"},
	{homeCaptain, "overpass"},
}

func startVeto(t *testing.T, e *env) (*models.Match, *veto.State) {
	t.Helper()
	tournament, _ := liveTournament(t, e, 4)
	match := matchAt(t, e, tournament.ID, 1, 1)
	st, err := e.vetoes.StartSession(context.Background(), match.ID)
	require.NoError(t, err)
	return match, st
}

func ban(t *testing.T, e *env, sessionID, user int, mapID string) *veto.State {
	t.Helper()
	st, err := e.vetoes.SubmitAction(context.Background(), SubmitVetoInput{SessionID: sessionID, ActingUserID: user, MapID: mapID})
	require.NoError(t, err)
	return st
}

func TestVetoFullFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	match, st := startVeto(t, e)

	assert.Equal(t, models.VetoStatusPending, st.Status)
	assert.Equal(t, *match.SlotA, st.Session.HomeTeamID)
	assert.True(t, st.CanTeamAct(*match.SlotA))
	sessionID := st.Session.ID

	for i, b := range banOrder {
		st = ban(t, e, sessionID, b.user, b.mapID)
		assert.Equal(t, i+2, st.CurrentPosition)
		assert.Nil(t, st.TurnSyncError)
	}
	assert.Equal(t, veto.StepSideChoice, st.Step)
	assert.Equal(t, "vertigo", st.DeciderMap)

	_, err := e.vetoes.SubmitAction(ctx, SubmitVetoInput{SessionID: sessionID, ActingUserID: homeCaptain})
	require.ErrorIs(t, err, veto.ErrSideRequired)

	side := models.SideDefense
	_, err = e.vetoes.SubmitAction(ctx, SubmitVetoInput{SessionID: sessionID, ActingUserID: awayCaptain, Side: &side})
	require.ErrorIs(t, err, veto.ErrNotYourTurn)

	st, err = e.vetoes.SubmitAction(ctx, SubmitVetoInput{SessionID: sessionID, ActingUserID: homeCaptain, Side: &side})
	require.NoError(t, err)
	assert.Equal(t, models.VetoStatusCompleted, st.Status)
	assert.Equal(t, "vertigo", st.PickedMap)
	require.NotNil(t, st.SideChoice)
	assert.Equal(t, models.SideDefense, *st.SideChoice)

	stored, err := e.vetoes.GetState(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.VetoStatusCompleted, stored.Session.Status)
	assert.Nil(t, stored.Session.CurrentTurnTeamID)

	payload, ok := e.publisher.last(events.MatchReadyV1)
	require.True(t, ok)
	assert.Equal(t, "vertigo", payload.(events.MatchReady).MapID)
	assert.Contains(t, e.publisher.subjects(), events.VetoCompletedV1)
	assert.Equal(t, []int{sessionID}, e.archiver.logs)
	assert.Equal(t, realtime.MessageVetoState, e.hub.lastType(realtime.VetoRoom(sessionID)))

	_, err = e.vetoes.SubmitAction(ctx, SubmitVetoInput{SessionID: sessionID, ActingUserID: homeCaptain, Side: &side})
	assert.ErrorIs(t, err, veto.ErrSessionCompleted)

	_, err = e.vetoes.ResetSession(ctx, sessionID)
	assert.ErrorIs(t, err, veto.ErrSessionCompleted)
}

func TestVetoSubmissionRejections(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, st := startVeto(t, e)
	sessionID := st.Session.ID

	cases := []struct {
		name    string
		input   SubmitVetoInput
		wantErr error
	}{
		{"outsider", SubmitVetoInput{ActingUserID: 555, MapID: "nuke"}, ErrCaptainActionForbidden},
		{"away opens", SubmitVetoInput{ActingUserID: awayCaptain, MapID: "nuke"}, veto.ErrNotYourTurn},
		{"map outside pool", SubmitVetoInput{ActingUserID: homeCaptain, MapID: "dust2"}, veto.ErrMapNotInPool},
		{"outdated position", SubmitVetoInput{ActingUserID: homeCaptain, MapID: "nuke", ExpectedPosition: 2}, veto.ErrStalePosition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.input.SessionID = sessionID
			_, err := e.vetoes.SubmitAction(ctx, tc.input)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	ban(t, e, sessionID, homeCaptain, "nuke")
	_, err := e.vetoes.SubmitAction(ctx, SubmitVetoInput{SessionID: sessionID, ActingUserID: awayCaptain, MapID: "nuke"})
	assert.ErrorIs(t, err, veto.ErrMapUnavailable)

	_, err = e.vetoes.SubmitAction(ctx, SubmitVetoInput{SessionID: 9999, ActingUserID: awayCaptain, MapID: "nuke"})
	assert.ErrorIs(t, err, ErrVetoSessionNotFound)
}

func TestVetoConcurrentSubmissionLoses(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, st := startVeto(t, e)
	sessionID := st.Session.ID

	// another connection commits position 1 between validation and append
	e.vetoRepo.beforeAppend = func(id int) {
		e.vetoRepo.beforeAppend = nil
		home, away := st.Session.HomeTeamID, st.Session.AwayTeamID
		e.store.commitOutsideTx(func(s *memStore) {
			s.actions[id] = append(s.actions[id], models.VetoAction{
				ID: s.id(), SessionID: id, OrderNumber: 1, ActionType: models.VetoActionBan, TeamID: &home, MapID: "anubis",
			})
			session := s.sessions[id]
			session.Status = models.VetoStatusInProgress
			session.CurrentTurnTeamID = &away
			s.sessions[id] = session
		})
	}

	_, err := e.vetoes.SubmitAction(ctx, SubmitVetoInput{SessionID: sessionID, ActingUserID: homeCaptain, MapID: "ancient"})
	require.ErrorIs(t, err, ErrVetoPositionTaken)

	// only the winning write is in the log and the pointer follows it
	after, err := e.vetoes.GetState(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, after.Actions, 1)
	assert.Equal(t, 1, after.Actions[0].OrderNumber)
	assert.Equal(t, "anubis", after.Actions[0].MapID)
	assert.Equal(t, models.VetoStatusInProgress, after.Status)
	assert.Nil(t, after.TurnSyncError)
	assert.Equal(t, 2, after.CurrentPosition)
	assert.NotContains(t, e.publisher.subjects(), events.VetoActionRecordedV1)
}

func TestVetoTurnSyncBlocksUntilResync(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, st := startVeto(t, e)
	sessionID := st.Session.ID
	ban(t, e, sessionID, homeCaptain, "ancient")

	// the pointer drifts back to home although away must move
	session, err := e.vetoRepo.GetSession(ctx, nil, sessionID)
	require.NoError(t, err)
	session.CurrentTurnTeamID = &session.HomeTeamID
	require.NoError(t, e.vetoRepo.UpdateTurn(ctx, nil, session))

	drifted, err := e.vetoes.GetState(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, drifted.TurnSyncError)
	assert.Equal(t, veto.RoleHome, drifted.TurnSyncError.Persisted)
	assert.Equal(t, veto.RoleAway, drifted.TurnSyncError.Expected)
	assert.False(t, drifted.CanAct)

	for _, user := range []int{homeCaptain, awayCaptain} {
		_, err := e.vetoes.SubmitAction(ctx, SubmitVetoInput{SessionID: sessionID, ActingUserID: user, MapID: "nuke"})
		assert.ErrorIs(t, err, veto.ErrNotYourTurn)
	}

	audits, err := e.vetoes.AuditSessions(ctx)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.True(t, audits[0].NeedsAttention())

	fixed, err := e.vetoes.ResyncSession(ctx, sessionID)
	require.NoError(t, err)
	assert.Nil(t, fixed.TurnSyncError)
	require.NotNil(t, fixed.Session.CurrentTurnTeamID)
	assert.Equal(t, fixed.Session.AwayTeamID, *fixed.Session.CurrentTurnTeamID)

	ban(t, e, sessionID, awayCaptain, "nuke")
}

func TestVetoResetAndForceComplete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	match, st := startVeto(t, e)
	sessionID := st.Session.ID
	ban(t, e, sessionID, homeCaptain, "ancient")
	ban(t, e, sessionID, awayCaptain, "anubis")

	reset, err := e.vetoes.ResetSession(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, reset.Actions)
	assert.Equal(t, models.VetoStatusPending, reset.Status)
	assert.True(t, reset.CanTeamAct(*match.SlotA))
	assert.Equal(t, []int{sessionID}, e.archiver.dropped)
	assert.Contains(t, e.publisher.subjects(), events.VetoSessionResetV1)

	for _, b := range banOrder {
		ban(t, e, sessionID, b.user, b.mapID)
	}

	side := models.SideAttack
	done, err := e.vetoes.ForceCompleteSession(ctx, sessionID, &side)
	require.NoError(t, err)
	assert.Equal(t, models.VetoStatusCompleted, done.Status)
	assert.Equal(t, "vertigo", done.PickedMap)

	payload, ok := e.publisher.last(events.VetoCompletedV1)
	require.True(t, ok)
	assert.True(t, payload.(events.VetoCompleted).Forced)

	// the match may start now
	_, err = e.matches.StartMatch(ctx, match.ID)
	assert.NoError(t, err)
}

func TestVetoForceCompleteMidBanLeavesMatchWithoutMap(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, st := startVeto(t, e)
	sessionID := st.Session.ID
	ban(t, e, sessionID, homeCaptain, "ancient")
	ban(t, e, sessionID, awayCaptain, "anubis")

	done, err := e.vetoes.ForceCompleteSession(ctx, sessionID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.VetoStatusCompleted, done.Status)
	assert.Empty(t, done.PickedMap)
	assert.Len(t, done.RemainingMaps, 5)

	payload, ok := e.publisher.last(events.VetoCompletedV1)
	require.True(t, ok)
	assert.True(t, payload.(events.VetoCompleted).Forced)
	assert.NotContains(t, e.publisher.subjects(), events.MatchReadyV1)
}

func TestVetoForceCompleteAtDeciderNeedsSide(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, st := startVeto(t, e)
	sessionID := st.Session.ID
	for _, b := range banOrder {
		ban(t, e, sessionID, b.user, b.mapID)
	}

	_, err := e.vetoes.ForceCompleteSession(ctx, sessionID, nil)
	require.ErrorIs(t, err, veto.ErrSideRequired)

	open, err := e.vetoes.GetState(ctx, sessionID)
	require.NoError(t, err)
	assert.NotEqual(t, models.VetoStatusCompleted, open.Status)
	assert.Equal(t, veto.StepSideChoice, open.Step)
	assert.NotContains(t, e.publisher.subjects(), events.MatchReadyV1)

	side := models.SideDefense
	done, err := e.vetoes.ForceCompleteSession(ctx, sessionID, &side)
	require.NoError(t, err)
	assert.Equal(t, "vertigo", done.PickedMap)
	payload, ok := e.publisher.last(events.MatchReadyV1)
	require.True(t, ok)
	assert.Equal(t, "vertigo", payload.(events.MatchReady).MapID)
}

func TestVetoCompletedMatchCannotRestart(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	match, st := startVeto(t, e)
	sessionID := st.Session.ID
	for _, b := range banOrder {
		ban(t, e, sessionID, b.user, b.mapID)
	}
	side := models.SideAttack
	_, err := e.vetoes.SubmitAction(ctx, SubmitVetoInput{SessionID: sessionID, ActingUserID: homeCaptain, Side: &side})
	require.NoError(t, err)

	_, err = e.vetoes.StartSession(ctx, match.ID)
	require.ErrorIs(t, err, ErrVetoAlreadyDecided)

	stored, err := e.vetoes.GetState(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.VetoStatusCompleted, stored.Status)
	assert.Equal(t, "vertigo", stored.PickedMap)
	active, err := e.vetoRepo.ListActiveSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = e.matches.StartMatch(ctx, match.ID)
	assert.NoError(t, err)
}

func TestVetoStartRequirements(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	match, _ := startVeto(t, e)

	_, err := e.vetoes.StartSession(ctx, match.ID)
	assert.ErrorIs(t, err, ErrVetoSessionExists)

	final := matchAt(t, e, match.TournamentID, 2, 1)
	_, err = e.vetoes.StartSession(ctx, final.ID)
	assert.ErrorIs(t, err, ErrMatchNotReady)
}

func TestAuditFlagsStaleSessions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, st := startVeto(t, e)
	ban(t, e, st.Session.ID, homeCaptain, "ancient")

	audits, err := e.vetoes.AuditSessions(ctx)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.False(t, audits[0].Stale)

	e.store.now = e.store.now.Add(time.Hour)
	audits, err = e.vetoes.AuditSessions(ctx)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.True(t, audits[0].Stale)
	assert.Equal(t, 2, audits[0].CurrentPosition)
}
