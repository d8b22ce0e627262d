package brackets

import (
	"context"

	"github.com/Dosada05/tournament-engine/models"
)

type GenerateBracketParams struct {
	Tournament *models.Tournament
	Teams      []*models.Team
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*models.Match, error)

	GetName() string
}

// NewGenerator выбирает генератор по формату турнира.
func NewGenerator(format models.TournamentFormat) (BracketGenerator, bool) {
	switch format {
	case models.FormatSingleElimination:
		return NewSingleEliminationGenerator(), true
	case models.FormatRoundRobin:
		return NewRoundRobinGenerator(), true
	default:
		return nil, false
	}
}
