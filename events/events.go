package events

import (
	"context"
	"time"

	"github.com/Dosada05/tournament-engine/models"
)

// Темы событий для сервиса уведомлений.
const (
	MatchCompletedV1          = "engine.match.completed.v1"
	MatchReadyV1              = "engine.match.ready.v1"
	BracketRepairedV1         = "engine.bracket.repaired.v1"
	TournamentStatusChangedV1 = "engine.tournament.status_changed.v1"
	VetoActionRecordedV1      = "engine.veto.action_recorded.v1"
	VetoCompletedV1           = "engine.veto.completed.v1"
	VetoSessionResetV1        = "engine.veto.session_reset.v1"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close() error
}

type MatchCompleted struct {
	TournamentID int       `json:"tournament_id"`
	MatchID      int       `json:"match_id"`
	WinnerID     int       `json:"winner_id"`
	NextMatchID  *int      `json:"next_match_id,omitempty"`
	IsFinal      bool      `json:"is_final"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// MatchReady отправляется, когда в матче обе команды и, если было вето, выбрана карта.
type MatchReady struct {
	TournamentID int          `json:"tournament_id"`
	MatchID      int          `json:"match_id"`
	TeamIDs      [2]int       `json:"team_ids"`
	MapID        string       `json:"map_id,omitempty"`
	Side         *models.Side `json:"home_side,omitempty"`
	OccurredAt   time.Time    `json:"occurred_at"`
}

type BracketRepaired struct {
	TournamentID    int       `json:"tournament_id"`
	Corrections     int       `json:"corrections"`
	RemainingIssues int       `json:"remaining_issues"`
	ArchiveKey      string    `json:"archive_key,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

type TournamentStatusChanged struct {
	TournamentID int                     `json:"tournament_id"`
	From         models.TournamentStatus `json:"from"`
	To           models.TournamentStatus `json:"to"`
	OccurredAt   time.Time               `json:"occurred_at"`
}

type VetoActionRecorded struct {
	SessionID  int                   `json:"session_id"`
	MatchID    int                   `json:"match_id"`
	Position   int                   `json:"position"`
	ActionType models.VetoActionType `json:"action_type"`
	TeamID     *int                  `json:"team_id,omitempty"`
	MapID      string                `json:"map_id"`
	NextTeamID *int                  `json:"next_team_id,omitempty"`
	OccurredAt time.Time             `json:"occurred_at"`
}

type VetoCompleted struct {
	SessionID  int          `json:"session_id"`
	MatchID    int          `json:"match_id"`
	HomeTeamID int          `json:"home_team_id"`
	AwayTeamID int          `json:"away_team_id"`
	MapID      string       `json:"map_id"`
	Side       *models.Side `json:"home_side,omitempty"`
	Forced     bool         `json:"forced"`
	OccurredAt time.Time    `json:"occurred_at"`
}

type VetoSessionReset struct {
	SessionID  int       `json:"session_id"`
	MatchID    int       `json:"match_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type noopPublisher struct{}

// NewNoopPublisher отбрасывает события, если NATS не настроен.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }
func (noopPublisher) Close() error                               { return nil }
