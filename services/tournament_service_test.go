package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournament-engine/events"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
)

// seededTournament registers n teams with strictly decreasing weight, so team i gets seed i+1.
func seededTournament(t *testing.T, e *env, n int) (*models.Tournament, []*models.Team) {
	t.Helper()
	ctx := context.Background()
	tournament, err := e.tournaments.CreateTournament(ctx, CreateTournamentInput{
		Name:          fmt.Sprintf("cup-%d", e.store.nextID+1),
		Format:        models.FormatSingleElimination,
		MapPoolPreset: "competitive",
	})
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		_, err := e.teams.RegisterTeam(ctx, tournament.ID, RegisterTeamInput{
			Name:          fmt.Sprintf("team-%d", i+1),
			Weight:        float64(1000 - i*10),
			CaptainUserID: 100 + i,
		})
		require.NoError(t, err)
	}
	teams, err := e.teams.AssignSeeds(ctx, tournament.ID)
	require.NoError(t, err)
	return tournament, teams
}

func liveTournament(t *testing.T, e *env, n int) (*models.Tournament, []*models.Team) {
	t.Helper()
	ctx := context.Background()
	tournament, teams := seededTournament(t, e, n)
	_, err := e.brackets.GenerateBracket(ctx, tournament.ID)
	require.NoError(t, err)
	tournament, err = e.tournaments.UpdateStatus(ctx, tournament.ID, models.StatusLive)
	require.NoError(t, err)
	return tournament, teams
}

func matchAt(t *testing.T, e *env, tournamentID, round, number int) *models.Match {
	t.Helper()
	m, err := memMatches{s: e.store}.GetByPosition(context.Background(), nil, tournamentID, round, number)
	require.NoError(t, err)
	return m
}

func TestCreateTournament(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		input   CreateTournamentInput
		wantErr error
	}{
		{"preset pool", CreateTournamentInput{Name: "a", Format: models.FormatSingleElimination, MapPoolPreset: "competitive"}, nil},
		{"explicit pool", CreateTournamentInput{Name: "b", Format: models.FormatRoundRobin, MapPool: []string{"nuke", "inferno", "mirage"}}, nil},
		{"blank name", CreateTournamentInput{Name: "  ", Format: models.FormatSingleElimination, MapPoolPreset: "competitive"}, ErrValidationFailed},
		{"unknown preset", CreateTournamentInput{Name: "c", Format: models.FormatSingleElimination, MapPoolPreset: "casual"}, ErrUnknownMapPoolPreset},
		{"one map", CreateTournamentInput{Name: "d", Format: models.FormatSingleElimination, MapPool: []string{"nuke"}}, ErrValidationFailed},
		{"duplicate maps", CreateTournamentInput{Name: "e", Format: models.FormatSingleElimination, MapPool: []string{"nuke", "nuke"}}, ErrValidationFailed},
		{"swiss", CreateTournamentInput{Name: "f", Format: models.FormatSwiss, MapPoolPreset: "competitive"}, ErrUnsupportedFormat},
		{"duplicate name", CreateTournamentInput{Name: "a", Format: models.FormatSingleElimination, MapPoolPreset: "competitive"}, ErrTournamentNameConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tournament, err := e.tournaments.CreateTournament(ctx, tc.input)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.StatusRegistration, tournament.Status)
			assert.NoError(t, tournament.MapPool.Validate())
		})
	}
}

func TestTournamentLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tournament, _ := seededTournament(t, e, 4)
	assert.Contains(t, e.publisher.subjects(), events.TournamentStatusChangedV1)

	_, err := e.tournaments.UpdateStatus(ctx, tournament.ID, models.StatusLive)
	require.ErrorIs(t, err, ErrBracketNotGenerated)

	_, err = e.tournaments.UpdateStatus(ctx, tournament.ID, models.StatusCompleted)
	require.ErrorIs(t, err, ErrTournamentInvalidStatusTransition)

	_, err = e.brackets.GenerateBracket(ctx, tournament.ID)
	require.NoError(t, err)

	live, err := e.tournaments.UpdateStatus(ctx, tournament.ID, models.StatusLive)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLive, live.Status)

	_, err = e.tournaments.UpdateStatus(ctx, tournament.ID, models.StatusCompleted)
	require.ErrorIs(t, err, ErrMatchesIncomplete)

	full, err := e.tournaments.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, full.TeamCount)
	assert.Len(t, full.Matches, 3)

	canceled, err := e.tournaments.UpdateStatus(ctx, tournament.ID, models.StatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, canceled.Status)

	_, err = e.tournaments.UpdateStatus(ctx, tournament.ID, models.StatusLive)
	assert.ErrorIs(t, err, ErrTournamentInvalidStatusTransition)
}

func TestGoLiveRefusedOnUnhealthyBracket(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tournament, _ := seededTournament(t, e, 4)
	_, err := e.brackets.GenerateBracket(ctx, tournament.ID)
	require.NoError(t, err)

	// a winner without a completed status
	m := matchAt(t, e, tournament.ID, 1, 1)
	require.NoError(t, memMatches{s: e.store}.UpdateResult(ctx, nil, m.ID, models.MatchStatusPending, m.SlotA))

	_, err = e.tournaments.UpdateStatus(ctx, tournament.ID, models.StatusLive)
	require.ErrorIs(t, err, ErrBracketUnhealthy)

	stored, err := e.tournaments.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSeeded, stored.Status)
}

func TestSeededStatusOnlyThroughSeeding(t *testing.T) {
	e := newEnv(t)
	tournament, err := e.tournaments.CreateTournament(context.Background(), CreateTournamentInput{
		Name: "manual", Format: models.FormatSingleElimination, MapPoolPreset: "competitive",
	})
	require.NoError(t, err)

	_, err = e.tournaments.UpdateStatus(context.Background(), tournament.ID, models.StatusSeeded)
	assert.ErrorIs(t, err, ErrTournamentInvalidStatusTransition)
}

func TestListTournamentsFiltersByStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seededTournament(t, e, 2)
	_, err := e.tournaments.CreateTournament(ctx, CreateTournamentInput{
		Name: "open", Format: models.FormatRoundRobin, MapPoolPreset: "competitive",
	})
	require.NoError(t, err)

	status := models.StatusRegistration
	list, err := e.tournaments.ListTournaments(ctx, repositories.ListTournamentsFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "open", list[0].Name)
}
