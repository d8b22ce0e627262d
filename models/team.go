package models

import "time"

type Team struct {
	ID            int       `json:"id" db:"id"`
	TournamentID  int       `json:"tournament_id" db:"tournament_id"`
	Name          string    `json:"name" db:"name"`
	Seed          int       `json:"seed" db:"seed"`
	Weight        float64   `json:"weight" db:"weight"`
	CaptainUserID int       `json:"captain_user_id" db:"captain_user_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
