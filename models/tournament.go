package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	StatusRegistration TournamentStatus = "registration"
	StatusSeeded       TournamentStatus = "seeded"
	StatusLive         TournamentStatus = "live"
	StatusCompleted    TournamentStatus = "completed"
	StatusCanceled     TournamentStatus = "canceled"
)

type TournamentFormat string

const (
	FormatSingleElimination  TournamentFormat = "single_elimination"
	FormatGroupStageKnockout TournamentFormat = "group_stage_knockout"
	FormatRoundRobin         TournamentFormat = "round_robin"
	FormatSwiss              TournamentFormat = "swiss"
)

func (f TournamentFormat) Valid() bool {
	switch f {
	case FormatSingleElimination, FormatGroupStageKnockout, FormatRoundRobin, FormatSwiss:
		return true
	}
	return false
}

// Tournament представляет турнир.
type Tournament struct {
	ID        int              `json:"id" db:"id"`
	Name      string           `json:"name" db:"name"`
	Format    TournamentFormat `json:"format" db:"format"`
	Status    TournamentStatus `json:"status" db:"status"`
	MapPool   MapPool          `json:"map_pool" db:"map_pool"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`

	// Заполняется сервисом, в таблице не хранится
	TeamCount int     `json:"team_count" db:"-"`
	Teams     []Team  `json:"teams,omitempty" db:"-"`
	Matches   []Match `json:"matches,omitempty" db:"-"`
}
