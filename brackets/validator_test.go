package brackets

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournament-engine/models"
)

func intp(v int) *int { return &v }

func generated(t *testing.T, n int) (Structure, []*models.Match) {
	t.Helper()
	s, err := CalculateStructure(n)
	require.NoError(t, err)
	matches, err := NewSingleEliminationGenerator().GenerateBracket(context.Background(), GenerateBracketParams{
		Teams: seededTeams(n),
	})
	require.NoError(t, err)
	for i, m := range matches {
		m.ID = i + 1
	}
	return s, matches
}

func issueKinds(r Report) []IssueKind {
	kinds := make([]IssueKind, 0, len(r.Issues))
	for _, i := range r.Issues {
		kinds = append(kinds, i.Kind)
	}
	return kinds
}

func TestValidateDetectsStatusWinnerMismatch(t *testing.T) {
	s, matches := generated(t, 4)
	r1m1 := findMatch(matches, 1, 1)
	r1m1.WinnerID = intp(*r1m1.SlotA)

	report := Validate(s, matches)
	require.False(t, report.Healthy())
	assert.Contains(t, issueKinds(report), IssueStatusWinnerMismatch)
	assert.Contains(t, issueKinds(report), IssueAdvancementMismatch)
	assert.True(t, report.Repairable())
}

func TestValidateCompletedWithoutWinner(t *testing.T) {
	s, matches := generated(t, 4)
	findMatch(matches, 1, 2).Status = models.MatchStatusCompleted

	report := Validate(s, matches)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, IssueStatusWinnerMismatch, report.Issues[0].Kind)
	assert.True(t, report.Issues[0].Repairable)

	corrections := PlanRepair(s, matches)
	require.Len(t, corrections, 1)
	assert.Equal(t, models.MatchStatusPending, corrections[0].Status)
}

func TestValidateStructureMismatch(t *testing.T) {
	s, matches := generated(t, 8)
	matches = matches[1:]

	report := Validate(s, matches)
	require.NotEmpty(t, report.Issues)
	assert.Equal(t, IssueStructureMismatch, report.Issues[0].Kind)
	assert.Equal(t, SeverityCritical, report.Issues[0].Severity)
	assert.False(t, report.Issues[0].Repairable)
	assert.Empty(t, PlanRepair(s, matches))
}

func TestValidateForeignWinnerIsNotRepairable(t *testing.T) {
	s, matches := generated(t, 4)
	m := findMatch(matches, 1, 1)
	m.Status = models.MatchStatusCompleted
	m.WinnerID = intp(999)

	report := Validate(s, matches)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, SeverityCritical, report.Issues[0].Severity)
	assert.False(t, report.Repairable())
}

func TestValidateConflictingOccupant(t *testing.T) {
	s, matches := generated(t, 4)
	m := findMatch(matches, 1, 1)
	m.Status = models.MatchStatusCompleted
	m.WinnerID = intp(*m.SlotA)
	findMatch(matches, 2, 1).SlotA = intp(*m.SlotB)

	report := Validate(s, matches)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, IssueAdvancementMismatch, report.Issues[0].Kind)
	assert.False(t, report.Issues[0].Repairable)
	assert.Empty(t, PlanRepair(s, matches))
}

func TestRepairIsIdempotent(t *testing.T) {
	s, matches := generated(t, 8)

	// winner recorded but the match never flipped to completed, advancement lost
	r1m1 := findMatch(matches, 1, 1)
	r1m1.WinnerID = intp(*r1m1.SlotB)

	// completed properly but the write into round 2 never happened
	r1m4 := findMatch(matches, 1, 4)
	r1m4.Status = models.MatchStatusCompleted
	r1m4.WinnerID = intp(*r1m4.SlotA)

	// completed with no winner
	findMatch(matches, 1, 3).Status = models.MatchStatusCompleted

	before := Validate(s, matches)
	require.Len(t, before.Issues, 4)

	first := PlanRepair(s, matches)
	repaired := ApplyCorrections(matches, first)
	after := Validate(s, repaired)
	assert.True(t, after.Healthy(), "issues after repair: %v", after.Issues)

	r2m1 := findMatch(repaired, 2, 1)
	assert.Equal(t, *r1m1.SlotB, *r2m1.SlotA)
	r2m2 := findMatch(repaired, 2, 2)
	assert.Equal(t, *r1m4.SlotA, *r2m2.SlotB)

	second := PlanRepair(s, repaired)
	assert.Empty(t, second)
	again := ApplyCorrections(repaired, second)
	if diff := cmp.Diff(repaired, again); diff != "" {
		t.Errorf("second repair pass changed the bracket (-first +second):\n%s", diff)
	}

	// the input slice is left untouched
	assert.Equal(t, models.MatchStatusPending, findMatch(matches, 1, 1).Status)
}
