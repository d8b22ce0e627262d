package brackets

import (
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-engine/models"
)

var ErrMatchOutOfRange = errors.New("match position outside bracket structure")

// Advancement - куда нужно записать победителя завершенного матча.
type Advancement struct {
	IsFinal     bool        `json:"is_final"`
	Round       int         `json:"round,omitempty"`
	MatchNumber int         `json:"match_number,omitempty"`
	Slot        models.Slot `json:"slot,omitempty"`
}

// ResolveAdvancement вычисляет, куда проходит победитель матча m раунда r.
// Нечетные матчи ведут в слот A матча ceil(m/2) следующего раунда, четные в слот B.
// Функция ничего не записывает.
func ResolveAdvancement(s Structure, round, matchNumber int) (Advancement, error) {
	if round < 1 || round > s.TotalRounds {
		return Advancement{}, fmt.Errorf("%w: round %d (bracket has %d rounds)", ErrMatchOutOfRange, round, s.TotalRounds)
	}
	if matchNumber < 1 || matchNumber > s.MatchesInRound(round) {
		return Advancement{}, fmt.Errorf("%w: match %d in round %d (round has %d matches)", ErrMatchOutOfRange, matchNumber, round, s.MatchesInRound(round))
	}
	if round == s.TotalRounds {
		return Advancement{IsFinal: true}, nil
	}

	slot := models.SlotA
	if matchNumber%2 == 0 {
		slot = models.SlotB
	}
	return Advancement{
		Round:       round + 1,
		MatchNumber: (matchNumber + 1) / 2,
		Slot:        slot,
	}, nil
}
