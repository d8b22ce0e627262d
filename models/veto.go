package models

import "time"

type VetoStatus string

const (
	VetoStatusPending    VetoStatus = "pending"
	VetoStatusInProgress VetoStatus = "in_progress"
	VetoStatusCompleted  VetoStatus = "completed"
)

type VetoActionType string

const (
	VetoActionBan  VetoActionType = "ban"
	VetoActionPick VetoActionType = "pick"
)

type Side string

const (
	SideAttack  Side = "attack"
	SideDefense Side = "defense"
)

func (s Side) Valid() bool {
	return s == SideAttack || s == SideDefense
}

type VetoSession struct {
	ID                int        `json:"id" db:"id"`
	MatchID           int        `json:"match_id" db:"match_id"`
	HomeTeamID        int        `json:"home_team_id" db:"home_team_id"`
	AwayTeamID        int        `json:"away_team_id" db:"away_team_id"`
	Status            VetoStatus `json:"status" db:"status"`
	CurrentTurnTeamID *int       `json:"current_turn_team_id,omitempty" db:"current_turn_team_id"`
	MapPool           MapPool    `json:"map_pool" db:"map_pool"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

type VetoAction struct {
	ID          int            `json:"id" db:"id"`
	SessionID   int            `json:"session_id" db:"session_id"`
	OrderNumber int            `json:"order_number" db:"order_number"`
	ActionType  VetoActionType `json:"action_type" db:"action_type"`
	TeamID      *int           `json:"team_id,omitempty" db:"team_id"`
	MapID       string         `json:"map_id" db:"map_id"`
	SideChoice  *Side          `json:"side_choice,omitempty" db:"side_choice"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}
