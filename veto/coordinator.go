package veto

import (
	"fmt"

	"github.com/Dosada05/tournament-engine/models"
)

// Proposal - действие, которое хочет сделать команда. ExpectedPosition необязателен: если
// задан, он должен совпасть с текущей позицией, иначе действие построено на устаревшем виде.
type Proposal struct {
	TeamID           int          `json:"team_id"`
	MapID            string       `json:"map_id"`
	Side             *models.Side `json:"side,omitempty"`
	ExpectedPosition int          `json:"expected_position,omitempty"`
}

// PlanAction проверяет предложение по авторитетному состоянию и возвращает запись для
// журнала. Команда в записи всегда берется из последовательности, а не из сохраненного
// указателя хода.
func PlanAction(st State, p Proposal) (models.VetoAction, error) {
	if st.Status == models.VetoStatusCompleted {
		return models.VetoAction{}, ErrSessionCompleted
	}
	if st.TurnSyncError != nil {
		return models.VetoAction{}, fmt.Errorf("%w: %w", ErrNotYourTurn, st.TurnSyncError)
	}
	if len(st.IntegrityErrors) > 0 {
		return models.VetoAction{}, fmt.Errorf("%w: %w: %s", ErrNotYourTurn, ErrLogIntegrity, st.IntegrityErrors[0].Message)
	}
	if !st.CanTeamAct(p.TeamID) {
		return models.VetoAction{}, fmt.Errorf("%w: %s is expected at position %d",
			ErrNotYourTurn, st.ExpectedRole, st.CurrentPosition)
	}
	if p.ExpectedPosition != 0 && p.ExpectedPosition != st.CurrentPosition {
		return models.VetoAction{}, fmt.Errorf("%w: %w: submitted for %d, current is %d",
			ErrNotYourTurn, ErrStalePosition, p.ExpectedPosition, st.CurrentPosition)
	}

	switch st.Step {
	case StepBan:
		if !st.Session.MapPool.Contains(p.MapID) {
			return models.VetoAction{}, fmt.Errorf("%w: %q", ErrMapNotInPool, p.MapID)
		}
		for _, b := range st.BannedMaps {
			if b == p.MapID {
				return models.VetoAction{}, fmt.Errorf("%w: %q", ErrMapUnavailable, p.MapID)
			}
		}
		team := *st.ExpectedTurnTeamID
		return models.VetoAction{
			SessionID:   st.Session.ID,
			OrderNumber: st.CurrentPosition,
			ActionType:  models.VetoActionBan,
			TeamID:      &team,
			MapID:       p.MapID,
		}, nil

	case StepSideChoice:
		if p.Side == nil || !p.Side.Valid() {
			return models.VetoAction{}, ErrSideRequired
		}
		if p.MapID != "" && p.MapID != st.DeciderMap {
			return models.VetoAction{}, fmt.Errorf("%w: only %q remains", ErrMapUnavailable, st.DeciderMap)
		}
		side := *p.Side
		// последняя карта никем не выбирается, поэтому у пика нет команды
		return models.VetoAction{
			SessionID:   st.Session.ID,
			OrderNumber: st.CurrentPosition,
			ActionType:  models.VetoActionPick,
			MapID:       st.DeciderMap,
			SideChoice:  &side,
		}, nil
	}

	return models.VetoAction{}, ErrSessionCompleted
}
