package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-engine/models"
)

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() BracketGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return "RoundRobin"
}

// GenerateBracket строит круговой турнир методом вращения: каждая команда встречается
// с каждой один раз, n-1 раундов (n округляется до четного).
func (g *RoundRobinGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*models.Match, error) {
	teams, err := sortBySeed(params.Teams)
	if err != nil {
		return nil, err
	}
	if len(teams) < 2 {
		return nil, fmt.Errorf("%w: round robin needs at least 2 teams, got %d", ErrInvalidTeamCount, len(teams))
	}

	tournamentID := 0
	if params.Tournament != nil {
		tournamentID = params.Tournament.ID
	}

	// -1 - пустой слот при нечетном числе команд
	ring := make([]int, 0, len(teams)+1)
	for _, t := range teams {
		ring = append(ring, t.ID)
	}
	if len(ring)%2 == 1 {
		ring = append(ring, -1)
	}
	n := len(ring)

	matches := make([]*models.Match, 0, n/2*(n-1))
	for round := 1; round < n; round++ {
		matchNumber := 0
		for i := 0; i < n/2; i++ {
			home, away := ring[i], ring[n-1-i]
			if home == -1 || away == -1 {
				continue
			}
			matchNumber++
			a, b := home, away
			matches = append(matches, &models.Match{
				TournamentID: tournamentID,
				Round:        round,
				MatchNumber:  matchNumber,
				SlotA:        &a,
				SlotB:        &b,
				Status:       models.MatchStatusPending,
			})
		}
		// ring[0] на месте, остальные сдвигаются по кругу
		last := ring[n-1]
		copy(ring[2:], ring[1:n-1])
		ring[1] = last
	}

	return matches, nil
}
