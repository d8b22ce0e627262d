package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-engine/events"
	"github.com/Dosada05/tournament-engine/metrics"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/realtime"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/Dosada05/tournament-engine/veto"
	"golang.org/x/sync/errgroup"
)

type SubmitVetoInput struct {
	SessionID        int          `json:"-"`
	ActingUserID     int          `json:"-"`
	MapID            string       `json:"map_id"`
	Side             *models.Side `json:"side,omitempty"`
	ExpectedPosition int          `json:"expected_position,omitempty"`
}

// VetoAudit - сводка по незавершенной сессии для операторов.
type VetoAudit struct {
	SessionID       int                   `json:"session_id"`
	MatchID         int                   `json:"match_id"`
	Status          models.VetoStatus     `json:"status"`
	CurrentPosition int                   `json:"current_position"`
	LastActivityAt  time.Time             `json:"last_activity_at"`
	Stale           bool                  `json:"stale"`
	TurnSyncError   *veto.TurnSyncError   `json:"turn_sync_error,omitempty"`
	IntegrityErrors []veto.IntegrityError `json:"integrity_errors,omitempty"`
}

// NeedsAttention сообщает, нужно ли вмешательство оператора.
func (a VetoAudit) NeedsAttention() bool {
	return a.Stale || a.TurnSyncError != nil || len(a.IntegrityErrors) > 0
}

type VetoService interface {
	StartSession(ctx context.Context, matchID int) (*veto.State, error)
	GetState(ctx context.Context, sessionID int) (*veto.State, error)
	SubmitAction(ctx context.Context, input SubmitVetoInput) (*veto.State, error)

	// Операции администратора / медика
	AuditSessions(ctx context.Context) ([]VetoAudit, error)
	ResyncSession(ctx context.Context, sessionID int) (*veto.State, error)
	ResetSession(ctx context.Context, sessionID int) (*veto.State, error)
	ForceCompleteSession(ctx context.Context, sessionID int, side *models.Side) (*veto.State, error)
}

type vetoService struct {
	deps       Deps
	staleAfter time.Duration
}

func NewVetoService(deps Deps, staleAfter time.Duration) VetoService {
	return &vetoService{deps: deps.withDefaults(), staleAfter: staleAfter}
}

func (s *vetoService) options() veto.Options {
	return veto.Options{Now: s.deps.Now(), StaleAfter: s.staleAfter}
}

// StartSession открывает вето по пулу карт турнира для матча, в котором известны обе команды.
// Слот A играет за хозяев. У матча бывает только одна сессия: завершенное вето не переигрывается.
func (s *vetoService) StartSession(ctx context.Context, matchID int) (*veto.State, error) {
	match, err := s.deps.Matches.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if !match.Ready() {
		return nil, fmt.Errorf("%w: round %d match %d", ErrMatchNotReady, match.Round, match.MatchNumber)
	}
	tournament, err := s.deps.Tournaments.GetByID(ctx, nil, match.TournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if tournament.Status != models.StatusLive {
		return nil, fmt.Errorf("%w: tournament %d is %s", ErrTournamentNotLive, tournament.ID, tournament.Status)
	}
	if err := tournament.MapPool.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	if _, err := veto.GenerateSequence(*match.SlotA, *match.SlotB, len(tournament.MapPool)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	session := &models.VetoSession{
		MatchID:           matchID,
		HomeTeamID:        *match.SlotA,
		AwayTeamID:        *match.SlotB,
		Status:            models.VetoStatusPending,
		CurrentTurnTeamID: intPtr(*match.SlotA),
		MapPool:           append(models.MapPool(nil), tournament.MapPool...),
	}
	err = s.deps.Tx.RunInTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		existing, err := s.deps.Vetoes.GetSessionByMatch(ctx, exec, matchID)
		switch {
		case err == nil && existing.Status == models.VetoStatusCompleted:
			return fmt.Errorf("%w: session %d", ErrVetoAlreadyDecided, existing.ID)
		case err == nil:
			return fmt.Errorf("%w: session %d", ErrVetoSessionExists, existing.ID)
		case !errors.Is(err, repositories.ErrVetoSessionNotFound):
			return fmt.Errorf("failed to look up veto of match %d: %w", matchID, err)
		}
		return handleRepositoryError(s.deps.Vetoes.CreateSession(ctx, exec, session))
	})
	if err != nil {
		return nil, err
	}

	s.deps.Logger.InfoContext(ctx, "veto session started",
		slog.Int("session_id", session.ID), slog.Int("match_id", matchID), slog.Int("maps", len(session.MapPool)))
	st := veto.Calculate(*session, nil, s.options())
	s.broadcastState(st)
	return &st, nil
}

func (s *vetoService) GetState(ctx context.Context, sessionID int) (*veto.State, error) {
	var (
		session *models.VetoSession
		actions []models.VetoAction
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		session, err = s.deps.Vetoes.GetSession(gCtx, nil, sessionID)
		return handleRepositoryError(err)
	})
	g.Go(func() error {
		var err error
		actions, err = s.deps.Vetoes.ListActions(gCtx, nil, sessionID)
		if err != nil {
			return fmt.Errorf("failed to list actions of veto %d: %w", sessionID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	st := veto.Calculate(*session, actions, s.options())
	if st.TurnSyncError != nil {
		s.deps.Metrics.VetoSyncError()
		s.deps.Logger.WarnContext(ctx, "veto turn pointer out of sync",
			slog.Int("session_id", sessionID), slog.String("detail", st.TurnSyncError.Message))
	}
	return &st, nil
}

// SubmitAction проверяет ход капитана по состоянию из журнала и дописывает его. Строка
// сессии заблокирована на все время решения, а запись ложится только на следующую позицию,
// поэтому из двух одновременных ходов проходит один.
func (s *vetoService) SubmitAction(ctx context.Context, input SubmitVetoInput) (*veto.State, error) {
	var (
		recorded models.VetoAction
		final    veto.State
	)
	err := s.deps.Tx.RunInTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		session, err := s.deps.Vetoes.GetSessionForUpdate(ctx, exec, input.SessionID)
		if err != nil {
			return handleRepositoryError(err)
		}
		actions, err := s.deps.Vetoes.ListActions(ctx, exec, session.ID)
		if err != nil {
			return fmt.Errorf("failed to list actions of veto %d: %w", session.ID, err)
		}
		st := veto.Calculate(*session, actions, s.options())
		if st.TurnSyncError != nil {
			s.deps.Metrics.VetoSyncError()
		}

		teamID, err := s.actingTeam(ctx, exec, *session, input.ActingUserID, st)
		if err != nil {
			return err
		}

		recorded, err = veto.PlanAction(st, veto.Proposal{
			TeamID:           teamID,
			MapID:            input.MapID,
			Side:             input.Side,
			ExpectedPosition: input.ExpectedPosition,
		})
		if err != nil {
			return err
		}

		appended, err := s.deps.Vetoes.AppendAction(ctx, exec, &recorded)
		if err != nil {
			return fmt.Errorf("failed to append veto action: %w", err)
		}
		if !appended {
			return fmt.Errorf("%w: position %d of session %d", ErrVetoPositionTaken, recorded.OrderNumber, session.ID)
		}

		next, _ := veto.Project(*session, append(actions, recorded), s.options())
		if err := s.deps.Vetoes.UpdateTurn(ctx, exec, &next); err != nil {
			return handleRepositoryError(err)
		}

		// итоговое состояние всегда пересчитывается по журналу
		stored, err := s.deps.Vetoes.ListActions(ctx, exec, session.ID)
		if err != nil {
			return fmt.Errorf("failed to reload actions of veto %d: %w", session.ID, err)
		}
		final = veto.Calculate(next, stored, s.options())
		return nil
	})
	if err != nil {
		s.deps.Metrics.VetoSubmission(submissionResult(err))
		return nil, err
	}

	s.deps.Metrics.VetoSubmission(metrics.VetoAccepted)
	s.deps.Logger.InfoContext(ctx, "veto action recorded",
		slog.Int("session_id", input.SessionID),
		slog.Int("position", recorded.OrderNumber),
		slog.String("type", string(recorded.ActionType)),
		slog.String("map", recorded.MapID))

	publishEvent(ctx, s.deps.Publisher, s.deps.Logger, events.VetoActionRecordedV1, events.VetoActionRecorded{
		SessionID:  final.Session.ID,
		MatchID:    final.Session.MatchID,
		Position:   recorded.OrderNumber,
		ActionType: recorded.ActionType,
		TeamID:     recorded.TeamID,
		MapID:      recorded.MapID,
		NextTeamID: final.ExpectedTurnTeamID,
		OccurredAt: s.deps.Now(),
	})
	s.broadcastState(final)
	if final.Status == models.VetoStatusCompleted {
		s.vetoCompleted(ctx, final, false)
	}
	return &final, nil
}

// actingTeam находит команду, капитаном которой пользователь является в этой сессии.
// Капитан обеих команд ходит за ту, чей сейчас ход.
func (s *vetoService) actingTeam(ctx context.Context, exec repositories.SQLExecutor, session models.VetoSession, userID int, st veto.State) (int, error) {
	var candidates []int
	for _, id := range []int{session.HomeTeamID, session.AwayTeamID} {
		team, err := s.deps.Teams.GetByID(ctx, exec, id)
		if err != nil {
			return 0, fmt.Errorf("failed to load team %d: %w", id, handleRepositoryError(err))
		}
		if team.CaptainUserID == userID {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return 0, ErrCaptainActionForbidden
	}
	for _, id := range candidates {
		if st.ExpectedTurnTeamID != nil && *st.ExpectedTurnTeamID == id {
			return id, nil
		}
	}
	return candidates[0], nil
}

func submissionResult(err error) string {
	switch {
	case errors.Is(err, ErrVetoPositionTaken):
		return metrics.VetoPositionTaken
	case errors.Is(err, veto.ErrNotYourTurn), errors.Is(err, ErrCaptainActionForbidden):
		return metrics.VetoNotYourTurn
	default:
		return metrics.VetoInvalid
	}
}

// AuditSessions проверяет все незавершенные сессии: зависшие, со сбитым указателем хода
// и с испорченным журналом.
func (s *vetoService) AuditSessions(ctx context.Context) ([]VetoAudit, error) {
	sessions, err := s.deps.Vetoes.ListActiveSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active veto sessions: %w", err)
	}

	audits := make([]VetoAudit, len(sessions))
	opts := s.options()
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, session := range sessions {
		g.Go(func() error {
			actions, err := s.deps.Vetoes.ListActions(gCtx, nil, session.ID)
			if err != nil {
				return fmt.Errorf("failed to list actions of veto %d: %w", session.ID, err)
			}
			st := veto.Calculate(*session, actions, opts)
			audits[i] = VetoAudit{
				SessionID:       session.ID,
				MatchID:         session.MatchID,
				Status:          st.Status,
				CurrentPosition: st.CurrentPosition,
				LastActivityAt:  st.LastActivityAt,
				Stale:           st.Stale,
				TurnSyncError:   st.TurnSyncError,
				IntegrityErrors: st.IntegrityErrors,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stale := 0
	for _, a := range audits {
		if a.Stale {
			stale++
		}
		if a.TurnSyncError != nil {
			s.deps.Metrics.VetoSyncError()
		}
	}
	s.deps.Metrics.StaleSessions(stale)
	return audits, nil
}

// ResyncSession выставляет указатель хода по журналу. Испорченный журнал так не
// исправить, нужен сброс.
func (s *vetoService) ResyncSession(ctx context.Context, sessionID int) (*veto.State, error) {
	var final veto.State
	err := s.adminTx(ctx, sessionID, func(ctx context.Context, exec repositories.SQLExecutor, session *models.VetoSession, actions []models.VetoAction) error {
		st := veto.Calculate(*session, actions, s.options())
		if len(st.IntegrityErrors) > 0 {
			return fmt.Errorf("%w: %s", ErrVetoLogCorrupt, st.IntegrityErrors[0].Message)
		}
		next, projected := veto.Project(*session, actions, s.options())
		if err := s.deps.Vetoes.UpdateTurn(ctx, exec, &next); err != nil {
			return handleRepositoryError(err)
		}
		final = projected
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.VetoAdminAction("resync")
	s.deps.Logger.InfoContext(ctx, "veto session resynced", slog.Int("session_id", sessionID))
	s.broadcastState(final)
	return &final, nil
}

// ResetSession очищает журнал и возвращает сессию в начальное состояние.
func (s *vetoService) ResetSession(ctx context.Context, sessionID int) (*veto.State, error) {
	var final veto.State
	err := s.adminTx(ctx, sessionID, func(ctx context.Context, exec repositories.SQLExecutor, session *models.VetoSession, _ []models.VetoAction) error {
		if err := s.deps.Vetoes.DeleteActions(ctx, exec, session.ID); err != nil {
			return fmt.Errorf("failed to clear actions of veto %d: %w", session.ID, err)
		}
		session.Status = models.VetoStatusPending
		session.CurrentTurnTeamID = intPtr(session.HomeTeamID)
		if err := s.deps.Vetoes.UpdateTurn(ctx, exec, session); err != nil {
			return handleRepositoryError(err)
		}
		final = veto.Calculate(*session, nil, s.options())
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.deps.Archiver.DropVetoLog(ctx, sessionID); err != nil {
		s.deps.Logger.WarnContext(ctx, "failed to drop archived veto log", slog.Int("session_id", sessionID), slog.Any("error", err))
	}
	s.deps.Metrics.VetoAdminAction("reset")
	s.deps.Logger.InfoContext(ctx, "veto session reset", slog.Int("session_id", sessionID))
	publishEvent(ctx, s.deps.Publisher, s.deps.Logger, events.VetoSessionResetV1, events.VetoSessionReset{
		SessionID:  sessionID,
		MatchID:    final.Session.MatchID,
		OccurredAt: s.deps.Now(),
	})
	s.broadcastState(final)
	return &final, nil
}

// ForceCompleteSession закрывает зависшую сессию. Если баны закончены, сначала записывается
// пик последней карты, и сторона тогда обязательна. Сессия, закрытая посреди банов, остается
// без карты и матч не объявляется готовым.
func (s *vetoService) ForceCompleteSession(ctx context.Context, sessionID int, side *models.Side) (*veto.State, error) {
	if side != nil && !side.Valid() {
		return nil, fmt.Errorf("%w: unknown side %q", ErrValidationFailed, *side)
	}

	var final veto.State
	err := s.adminTx(ctx, sessionID, func(ctx context.Context, exec repositories.SQLExecutor, session *models.VetoSession, actions []models.VetoAction) error {
		st := veto.Calculate(*session, actions, s.options())
		if st.Step == veto.StepSideChoice && st.DeciderMap != "" && len(st.IntegrityErrors) == 0 {
			if side == nil {
				return fmt.Errorf("%w: session %d is at the decider pick of %s", veto.ErrSideRequired, session.ID, st.DeciderMap)
			}
			pick := models.VetoAction{
				SessionID:   session.ID,
				OrderNumber: st.CurrentPosition,
				ActionType:  models.VetoActionPick,
				MapID:       st.DeciderMap,
				SideChoice:  side,
			}
			appended, err := s.deps.Vetoes.AppendAction(ctx, exec, &pick)
			if err != nil {
				return fmt.Errorf("failed to append decider pick: %w", err)
			}
			if appended {
				actions = append(actions, pick)
			}
		}

		session.Status = models.VetoStatusCompleted
		session.CurrentTurnTeamID = nil
		if err := s.deps.Vetoes.UpdateTurn(ctx, exec, session); err != nil {
			return handleRepositoryError(err)
		}
		final = veto.Calculate(*session, actions, s.options())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.VetoAdminAction("force_complete")
	s.deps.Logger.InfoContext(ctx, "veto session force completed",
		slog.Int("session_id", sessionID), slog.String("map", final.PickedMap))
	s.broadcastState(final)
	s.vetoCompleted(ctx, final, true)
	return &final, nil
}

type adminFunc func(ctx context.Context, exec repositories.SQLExecutor, session *models.VetoSession, actions []models.VetoAction) error

// adminTx блокирует сессию и не трогает завершенные.
func (s *vetoService) adminTx(ctx context.Context, sessionID int, fn adminFunc) error {
	return s.deps.Tx.RunInTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		session, err := s.deps.Vetoes.GetSessionForUpdate(ctx, exec, sessionID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if session.Status == models.VetoStatusCompleted {
			return fmt.Errorf("%w: session %d", veto.ErrSessionCompleted, sessionID)
		}
		actions, err := s.deps.Vetoes.ListActions(ctx, exec, sessionID)
		if err != nil {
			return fmt.Errorf("failed to list actions of veto %d: %w", sessionID, err)
		}
		return fn(ctx, exec, session, actions)
	})
}

func (s *vetoService) vetoCompleted(ctx context.Context, st veto.State, forced bool) {
	session := st.Session
	now := s.deps.Now()

	publishEvent(ctx, s.deps.Publisher, s.deps.Logger, events.VetoCompletedV1, events.VetoCompleted{
		SessionID:  session.ID,
		MatchID:    session.MatchID,
		HomeTeamID: session.HomeTeamID,
		AwayTeamID: session.AwayTeamID,
		MapID:      st.PickedMap,
		Side:       st.SideChoice,
		Forced:     forced,
		OccurredAt: now,
	})

	// без выбранной карты матч играть нельзя
	if st.PickedMap == "" {
		s.deps.Logger.WarnContext(ctx, "veto closed without a map", slog.Int("session_id", session.ID))
	} else if match, err := s.deps.Matches.GetByID(ctx, nil, session.MatchID); err == nil && match.Ready() {
		publishEvent(ctx, s.deps.Publisher, s.deps.Logger, events.MatchReadyV1, events.MatchReady{
			TournamentID: match.TournamentID,
			MatchID:      match.ID,
			TeamIDs:      [2]int{session.HomeTeamID, session.AwayTeamID},
			MapID:        st.PickedMap,
			Side:         st.SideChoice,
			OccurredAt:   now,
		})
	}

	if _, err := s.deps.Archiver.ArchiveVetoLog(ctx, session.ID, st); err != nil {
		s.deps.Logger.WarnContext(ctx, "failed to archive veto log", slog.Int("session_id", session.ID), slog.Any("error", err))
	}
}

func (s *vetoService) broadcastState(st veto.State) {
	room := realtime.VetoRoom(st.Session.ID)
	s.deps.Hub.BroadcastToRoom(room, realtime.WebSocketMessage{
		Type:    realtime.MessageVetoState,
		Payload: st,
		RoomID:  room,
	})
}
