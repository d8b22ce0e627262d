package brackets

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Dosada05/tournament-engine/models"
)

var ErrInvalidSeeding = errors.New("team seeds must be unique and cover 1..N")

type SingleEliminationGenerator struct {
}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GenerateBracket создает все матчи сетки. Первый раунд заполняется по посеву (1 vs N, ...).
// Матч первого раунда с одной командой - это bye: он сразу создается завершенным, а победитель
// записывается в следующий раунд. Остальные раунды начинаются пустыми.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*models.Match, error) {
	teams, err := sortBySeed(params.Teams)
	if err != nil {
		return nil, err
	}

	structure, err := CalculateStructure(len(teams))
	if err != nil {
		return nil, err
	}

	tournamentID := 0
	if params.Tournament != nil {
		tournamentID = params.Tournament.ID
	}

	matches := make([]*models.Match, 0, structure.TotalMatches)
	index := make(map[[2]int]*models.Match, structure.TotalMatches)
	for r := 1; r <= structure.TotalRounds; r++ {
		for m := 1; m <= structure.MatchesInRound(r); m++ {
			match := &models.Match{
				TournamentID: tournamentID,
				Round:        r,
				MatchNumber:  m,
				Status:       models.MatchStatusPending,
			}
			matches = append(matches, match)
			index[[2]int{r, m}] = match
		}
	}

	for i, pair := range seedPairs(structure.BracketSize()) {
		match := index[[2]int{1, i + 1}]
		if pair[0] < len(teams) {
			id := teams[pair[0]].ID
			match.SlotA = &id
		}
		if pair[1] < len(teams) {
			id := teams[pair[1]].ID
			match.SlotB = &id
		}

		if match.SlotB != nil {
			continue
		}
		// Bye: старший сид проходит без игры.
		winner := *match.SlotA
		match.Status = models.MatchStatusCompleted
		match.WinnerID = &winner

		adv, err := ResolveAdvancement(structure, 1, match.MatchNumber)
		if err != nil {
			return nil, fmt.Errorf("resolve bye advancement for match %d: %w", match.MatchNumber, err)
		}
		if adv.IsFinal {
			continue
		}
		next := index[[2]int{adv.Round, adv.MatchNumber}]
		w := winner
		next.SetSlot(adv.Slot, &w)
	}

	return matches, nil
}

func sortBySeed(teams []*models.Team) ([]*models.Team, error) {
	sorted := make([]*models.Team, 0, len(teams))
	for _, t := range teams {
		if t != nil {
			sorted = append(sorted, t)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Seed < sorted[j].Seed
	})
	for i, t := range sorted {
		if t.Seed != i+1 {
			return nil, fmt.Errorf("%w: team %d has seed %d at position %d", ErrInvalidSeeding, t.ID, t.Seed, i+1)
		}
	}
	return sorted, nil
}

// seedPairs возвращает индексы сидов (с нуля) для матчей первого раунда так, чтобы
// сильнейшие встретились как можно позже: для 8 слотов 1v8, 4v5, 2v7, 3v6.
func seedPairs(bracketSize int) [][2]int {
	order := []int{0}
	for len(order) < bracketSize {
		count := len(order) * 2
		next := make([]int, 0, count)
		for _, seed := range order {
			next = append(next, seed, count-1-seed)
		}
		order = next
	}

	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i+1 < len(order); i += 2 {
		pairs = append(pairs, [2]int{order[i], order[i+1]})
	}
	return pairs
}
