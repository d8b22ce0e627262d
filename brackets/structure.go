package brackets

import (
	"errors"
	"fmt"
	"math/bits"
)

var ErrInvalidTeamCount = errors.New("invalid team count")

// Structure - топология сетки на выбывание. Вычисляется по числу команд при каждом
// вызове и не хранится в БД.
type Structure struct {
	TeamCount    int   `json:"team_count"`
	TotalRounds  int   `json:"total_rounds"`
	TotalMatches int   `json:"total_matches"`
	IsPowerOfTwo bool  `json:"is_power_of_two"`
	// MatchesPerRound[i] - число матчей раунда i+1.
	MatchesPerRound []int `json:"matches_per_round"`
}

// CalculateStructure считает раунды и матчи в каждом раунде для n команд.
// В последнем раунде один матч, в каждом предыдущем вдвое больше.
func CalculateStructure(n int) (Structure, error) {
	if n < 2 {
		return Structure{}, fmt.Errorf("%w: need at least 2 teams, got %d", ErrInvalidTeamCount, n)
	}

	// ceil(log2 n) без плавающей точки
	totalRounds := bits.Len(uint(n - 1))

	perRound := make([]int, totalRounds)
	total := 0
	for r := 1; r <= totalRounds; r++ {
		perRound[r-1] = 1 << uint(totalRounds-r)
		total += perRound[r-1]
	}

	return Structure{
		TeamCount:       n,
		TotalRounds:     totalRounds,
		TotalMatches:    total,
		IsPowerOfTwo:    n&(n-1) == 0,
		MatchesPerRound: perRound,
	}, nil
}

// MatchesInRound - ожидаемое число матчей раунда (нумерация с 1), 0 вне сетки.
func (s Structure) MatchesInRound(round int) int {
	if round < 1 || round > s.TotalRounds {
		return 0
	}
	return s.MatchesPerRound[round-1]
}

// BracketSize - число слотов первого раунда, ближайшая степень двойки.
func (s Structure) BracketSize() int {
	return 1 << uint(s.TotalRounds)
}
