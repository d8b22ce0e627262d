package veto

import (
	"fmt"
	"sort"
	"time"

	"github.com/Dosada05/tournament-engine/models"
)

type Role string

const (
	RoleHome    Role = "home"
	RoleAway    Role = "away"
	RoleUnset   Role = "unset"
	RoleUnknown Role = "unknown"
)

type Step string

const (
	StepBan        Step = "ban"
	StepSideChoice Step = "side_choice"
	StepDone       Step = "done"
)

// TurnSyncError: сохраненный указатель хода расходится с тем, кто должен ходить по журналу.
// Пока ошибка есть, действия не принимаются.
type TurnSyncError struct {
	PersistedTeamID *int   `json:"persisted_team_id,omitempty"`
	ExpectedTeamID  int    `json:"expected_team_id"`
	Persisted       Role   `json:"persisted"`
	Expected        Role   `json:"expected"`
	Message         string `json:"message"`
}

func (e *TurnSyncError) Error() string {
	return e.Message
}

func (e *TurnSyncError) Unwrap() error {
	return ErrTurnSync
}

type IntegrityError struct {
	Position int    `json:"position"`
	Message  string `json:"message"`
}

type Options struct {
	Now        time.Time
	StaleAfter time.Duration
}

// State - авторитетное состояние сессии вето, всегда пересчитывается по всему журналу.
type State struct {
	Session             models.VetoSession  `json:"session"`
	Status              models.VetoStatus   `json:"status"`
	Sequence            []int               `json:"sequence"`
	CurrentPosition     int                 `json:"current_position"`
	Step                Step                `json:"step"`
	ExpectedTurnTeamID  *int                `json:"expected_turn_team_id,omitempty"`
	ExpectedRole        Role                `json:"expected_role,omitempty"`
	PersistedTurnTeamID *int                `json:"persisted_turn_team_id,omitempty"`
	TurnSyncError       *TurnSyncError      `json:"turn_sync_error,omitempty"`
	IntegrityErrors     []IntegrityError    `json:"integrity_errors,omitempty"`
	CanAct              bool                `json:"can_act"`
	Actions             []models.VetoAction `json:"actions"`
	BannedMaps          []string            `json:"banned_maps"`
	RemainingMaps       []string            `json:"remaining_maps"`
	DeciderMap          string              `json:"decider_map,omitempty"`
	PickedMap           string              `json:"picked_map,omitempty"`
	SideChoice          *models.Side        `json:"side_choice,omitempty"`
	LastActivityAt      time.Time           `json:"last_activity_at"`
	Stale               bool                `json:"stale"`
}

// CanTeamAct сообщает, может ли teamID сделать следующий ход.
func (s State) CanTeamAct(teamID int) bool {
	return s.CanAct && s.ExpectedTurnTeamID != nil && *s.ExpectedTurnTeamID == teamID
}

// RoleOf - роль команды в сессии.
func RoleOf(session models.VetoSession, teamID *int) Role {
	switch {
	case teamID == nil:
		return RoleUnset
	case *teamID == session.HomeTeamID:
		return RoleHome
	case *teamID == session.AwayTeamID:
		return RoleAway
	default:
		return RoleUnknown
	}
}

// Calculate вычисляет состояние хода по журналу действий. Расхождения возвращаются
// полями состояния, а не ошибкой.
func Calculate(session models.VetoSession, actions []models.VetoAction, opts Options) State {
	st := State{
		Session:             session,
		PersistedTurnTeamID: session.CurrentTurnTeamID,
		Actions:             sortedActions(actions),
		BannedMaps:          []string{},
		RemainingMaps:       []string{},
	}

	if err := session.MapPool.Validate(); err != nil {
		st.IntegrityErrors = append(st.IntegrityErrors, IntegrityError{Message: err.Error()})
	}
	seq, err := GenerateSequence(session.HomeTeamID, session.AwayTeamID, len(session.MapPool))
	if err != nil {
		st.IntegrityErrors = append(st.IntegrityErrors, IntegrityError{Message: err.Error()})
	}
	st.Sequence = seq

	bans := 0
	banned := make(map[string]bool)
	picked := false
	for _, a := range st.Actions {
		switch a.ActionType {
		case models.VetoActionBan:
			bans++
			st.checkBan(a, bans, banned)
			banned[a.MapID] = true
			st.BannedMaps = append(st.BannedMaps, a.MapID)
		case models.VetoActionPick:
			if picked {
				st.integrity(a.OrderNumber, "more than one pick recorded")
				continue
			}
			picked = true
			st.PickedMap = a.MapID
			st.SideChoice = a.SideChoice
			if a.OrderNumber != len(seq)+1 || bans != len(seq) {
				st.integrity(a.OrderNumber, fmt.Sprintf("pick at position %d recorded after %d of %d bans",
					a.OrderNumber, bans, len(seq)))
			}
			if banned[a.MapID] {
				st.integrity(a.OrderNumber, fmt.Sprintf("picked map %q was banned", a.MapID))
			}
		default:
			st.integrity(a.OrderNumber, fmt.Sprintf("unknown action type %q", a.ActionType))
		}
	}

	for _, m := range session.MapPool {
		if !banned[m] {
			st.RemainingMaps = append(st.RemainingMaps, m)
		}
	}

	st.CurrentPosition = bans + 1
	switch {
	case picked:
		st.Step = StepDone
	case st.CurrentPosition <= len(seq):
		st.Step = StepBan
		id := seq[st.CurrentPosition-1]
		st.ExpectedTurnTeamID = &id
	default:
		st.Step = StepSideChoice
		id := session.HomeTeamID
		st.ExpectedTurnTeamID = &id
		if len(st.RemainingMaps) == 1 {
			st.DeciderMap = st.RemainingMaps[0]
		}
	}
	st.ExpectedRole = RoleOf(session, st.ExpectedTurnTeamID)

	switch {
	case session.Status == models.VetoStatusCompleted || picked:
		// завершенная сессия не меняется
		st.Status = models.VetoStatusCompleted
		st.Step = StepDone
		st.ExpectedTurnTeamID = nil
		st.ExpectedRole = ""
	case len(st.Actions) > 0:
		st.Status = models.VetoStatusInProgress
	default:
		st.Status = models.VetoStatusPending
	}

	if st.Status == models.VetoStatusInProgress && st.ExpectedTurnTeamID != nil {
		persisted := session.CurrentTurnTeamID
		if persisted == nil || *persisted != *st.ExpectedTurnTeamID {
			st.TurnSyncError = &TurnSyncError{
				PersistedTeamID: persisted,
				ExpectedTeamID:  *st.ExpectedTurnTeamID,
				Persisted:       RoleOf(session, persisted),
				Expected:        st.ExpectedRole,
			}
			st.TurnSyncError.Message = fmt.Sprintf("turn pointer says %s but the action log expects %s at position %d",
				st.TurnSyncError.Persisted, st.TurnSyncError.Expected, st.CurrentPosition)
		}
	}

	st.CanAct = st.Status != models.VetoStatusCompleted &&
		st.ExpectedTurnTeamID != nil &&
		st.TurnSyncError == nil &&
		len(st.IntegrityErrors) == 0

	st.LastActivityAt = lastActivity(session, st.Actions)
	if opts.StaleAfter > 0 && st.Status != models.VetoStatusCompleted {
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		st.Stale = now.Sub(st.LastActivityAt) > opts.StaleAfter
	}

	return st
}

// Project возвращает сессию в том виде, в каком ее сохранит успешная запись: указатель на
// следующую команду и статус по журналу, вместе с чистым состоянием.
func Project(session models.VetoSession, actions []models.VetoAction, opts Options) (models.VetoSession, State) {
	st := Calculate(session, actions, opts)
	session.Status = st.Status
	session.CurrentTurnTeamID = st.ExpectedTurnTeamID
	return session, Calculate(session, actions, opts)
}

func (st *State) integrity(position int, msg string) {
	st.IntegrityErrors = append(st.IntegrityErrors, IntegrityError{Position: position, Message: msg})
}

func (st *State) checkBan(a models.VetoAction, nth int, banned map[string]bool) {
	if a.OrderNumber != nth {
		st.integrity(a.OrderNumber, fmt.Sprintf("ban #%d stored at position %d", nth, a.OrderNumber))
	}
	if nth > len(st.Sequence) {
		st.integrity(a.OrderNumber, fmt.Sprintf("ban at position %d exceeds the %d ban sequence", nth, len(st.Sequence)))
		return
	}
	expected := st.Sequence[nth-1]
	if a.TeamID == nil || *a.TeamID != expected {
		st.integrity(a.OrderNumber, fmt.Sprintf("position %d was taken by %s, expected %s",
			nth, RoleOf(st.Session, a.TeamID), RoleOf(st.Session, &expected)))
	}
	if !st.Session.MapPool.Contains(a.MapID) {
		st.integrity(a.OrderNumber, fmt.Sprintf("map %q is not in the pool", a.MapID))
	}
	if banned[a.MapID] {
		st.integrity(a.OrderNumber, fmt.Sprintf("map %q banned twice", a.MapID))
	}
}

func sortedActions(actions []models.VetoAction) []models.VetoAction {
	out := make([]models.VetoAction, len(actions))
	copy(out, actions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderNumber < out[j].OrderNumber
	})
	return out
}

func lastActivity(session models.VetoSession, actions []models.VetoAction) time.Time {
	last := session.UpdatedAt
	if session.CreatedAt.After(last) {
		last = session.CreatedAt
	}
	for _, a := range actions {
		if a.CreatedAt.After(last) {
			last = a.CreatedAt
		}
	}
	return last
}
