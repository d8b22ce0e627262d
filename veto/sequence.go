package veto

import "fmt"

// GenerateSequence возвращает команду для каждой позиции бана в вето best-of-one.
// Последняя карта не банится, поэтому в списке totalMaps-1 элементов. Первыми банят хозяева,
// гости отвечают двумя банами подряд, дальше хозяева ходят на четных позициях, гости на нечетных.
func GenerateSequence(homeTeamID, awayTeamID, totalMaps int) ([]int, error) {
	if totalMaps < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMapCount, totalMaps)
	}

	seq := make([]int, totalMaps-1)
	for i := 1; i <= len(seq); i++ {
		switch {
		case i == 1:
			seq[i-1] = homeTeamID
		case i <= 3:
			seq[i-1] = awayTeamID
		case i%2 == 0:
			seq[i-1] = homeTeamID
		default:
			seq[i-1] = awayTeamID
		}
	}
	return seq, nil
}
