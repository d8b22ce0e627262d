package models

import "time"

type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusLive      MatchStatus = "live"
	MatchStatusCompleted MatchStatus = "completed"
)

type Slot string

const (
	SlotA Slot = "a"
	SlotB Slot = "b"
)

type Match struct {
	ID           int         `json:"id" db:"id"`
	TournamentID int         `json:"tournament_id" db:"tournament_id"`
	Round        int         `json:"round" db:"round"`
	MatchNumber  int         `json:"match_number" db:"match_number"`
	SlotA        *int        `json:"slot_a,omitempty" db:"slot_a"`
	SlotB        *int        `json:"slot_b,omitempty" db:"slot_b"`
	Status       MatchStatus `json:"status" db:"status"`
	WinnerID     *int        `json:"winner_id,omitempty" db:"winner_id"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// SlotValue возвращает команду в слоте, nil если слот пуст.
func (m *Match) SlotValue(slot Slot) *int {
	if slot == SlotA {
		return m.SlotA
	}
	return m.SlotB
}

func (m *Match) SetSlot(slot Slot, teamID *int) {
	if slot == SlotA {
		m.SlotA = teamID
	} else {
		m.SlotB = teamID
	}
}

// HasTeam сообщает, стоит ли teamID в одном из слотов.
func (m *Match) HasTeam(teamID int) bool {
	return (m.SlotA != nil && *m.SlotA == teamID) || (m.SlotB != nil && *m.SlotB == teamID)
}

// Ready сообщает, можно ли играть матч: оба слота заполнены и матч еще не начат.
// Матч с одной командой не готов никогда.
func (m *Match) Ready() bool {
	return m.Status == MatchStatusPending && m.SlotA != nil && m.SlotB != nil
}
