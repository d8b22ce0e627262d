package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/events"
	"github.com/Dosada05/tournament-engine/models"
)

func TestGenerateBracket(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tournament, _ := seededTournament(t, e, 6)

	view, err := e.brackets.GenerateBracket(ctx, tournament.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Structure)
	assert.Equal(t, 3, view.Structure.TotalRounds)
	assert.Len(t, view.Matches, view.Structure.TotalMatches)

	// a rebuild replaces the matches instead of duplicating them
	_, err = e.brackets.GenerateBracket(ctx, tournament.ID)
	require.NoError(t, err)
	again, err := e.brackets.GetBracket(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Len(t, again.Matches, view.Structure.TotalMatches)

	report, err := e.brackets.Health(ctx, tournament.ID)
	require.NoError(t, err)
	assert.True(t, report.Healthy(), "issues: %+v", report.Issues)
}

func TestGenerateBracketRefusedOnceLive(t *testing.T) {
	e := newEnv(t)
	tournament, _ := liveTournament(t, e, 4)

	_, err := e.brackets.GenerateBracket(context.Background(), tournament.ID)
	assert.ErrorIs(t, err, ErrBracketGenerationClosed)
}

func TestRoundRobinBracketHasNoHealthCheck(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tournament, err := e.tournaments.CreateTournament(ctx, CreateTournamentInput{
		Name: "league", Format: models.FormatRoundRobin, MapPoolPreset: "competitive",
	})
	require.NoError(t, err)
	for _, name := range []string{"a", "b", "c", "d"} {
		_, err := e.teams.RegisterTeam(ctx, tournament.ID, RegisterTeamInput{Name: name, CaptainUserID: 1})
		require.NoError(t, err)
	}
	_, err = e.teams.AssignSeeds(ctx, tournament.ID)
	require.NoError(t, err)

	view, err := e.brackets.GenerateBracket(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Nil(t, view.Structure)
	assert.Len(t, view.Matches, 6)

	_, err = e.brackets.Health(ctx, tournament.ID)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = e.tournaments.UpdateStatus(ctx, tournament.ID, models.StatusLive)
	assert.NoError(t, err)
}

func TestRepairRestoresMissingAdvancement(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tournament, teams := liveTournament(t, e, 4)

	r1m1 := matchAt(t, e, tournament.ID, 1, 1)
	_, err := e.matches.CompleteMatch(ctx, r1m1.ID, teams[0].ID)
	require.NoError(t, err)

	// a lost write: the winner never reached the final
	final := matchAt(t, e, tournament.ID, 2, 1)
	require.NoError(t, memMatches{s: e.store}.SetSlot(ctx, nil, final.ID, models.SlotA, nil))

	report, err := e.brackets.Health(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, brackets.IssueAdvancementMismatch, report.Issues[0].Kind)
	assert.True(t, report.Repairable())

	dry, err := e.brackets.Repair(ctx, tournament.ID, true)
	require.NoError(t, err)
	assert.True(t, dry.DryRun)
	require.Len(t, dry.Corrections, 1)
	assert.True(t, dry.After.Healthy())
	assert.Nil(t, matchAt(t, e, tournament.ID, 2, 1).SlotA, "dry run must not write")
	assert.Empty(t, e.archiver.reports)

	res, err := e.brackets.Repair(ctx, tournament.ID, false)
	require.NoError(t, err)
	require.Len(t, res.Corrections, 1)
	assert.True(t, res.After.Healthy())
	assert.Equal(t, "reports/test.json", res.ArchiveKey)

	repaired := matchAt(t, e, tournament.ID, 2, 1)
	require.NotNil(t, repaired.SlotA)
	assert.Equal(t, teams[0].ID, *repaired.SlotA)

	payload, ok := e.publisher.last(events.BracketRepairedV1)
	require.True(t, ok)
	assert.Equal(t, 1, payload.(events.BracketRepaired).Corrections)

	// второй прогон ничего не меняет
	second, err := e.brackets.Repair(ctx, tournament.ID, false)
	require.NoError(t, err)
	assert.Empty(t, second.Corrections)
	assert.True(t, second.Before.Healthy())
}

func TestRepairLeavesConflictsToOperators(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tournament, teams := liveTournament(t, e, 4)

	r1m1 := matchAt(t, e, tournament.ID, 1, 1)
	_, err := e.matches.CompleteMatch(ctx, r1m1.ID, teams[0].ID)
	require.NoError(t, err)

	final := matchAt(t, e, tournament.ID, 2, 1)
	require.NoError(t, memMatches{s: e.store}.SetSlot(ctx, nil, final.ID, models.SlotA, &teams[3].ID))

	res, err := e.brackets.Repair(ctx, tournament.ID, false)
	require.NoError(t, err)
	assert.Empty(t, res.Corrections)
	assert.False(t, res.After.Healthy())
	assert.False(t, res.After.Repairable())
	assert.Equal(t, teams[3].ID, *matchAt(t, e, tournament.ID, 2, 1).SlotA)
}
