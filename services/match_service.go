package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/events"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/realtime"
	"github.com/Dosada05/tournament-engine/repositories"
)

// Исходы завершения матча для метрик.
const (
	completionRecorded  = "recorded"
	completionDuplicate = "duplicate"
	completionConflict  = "conflict"
)

type CompletionResult struct {
	Match               *models.Match         `json:"match"`
	Advancement         *brackets.Advancement `json:"advancement,omitempty"`
	NextMatch           *models.Match         `json:"next_match,omitempty"`
	TournamentCompleted bool                  `json:"tournament_completed"`
	// AlreadyRecorded: тот же победитель пришел повторно, ничего не записано.
	AlreadyRecorded bool `json:"already_recorded"`
}

type MatchService interface {
	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
	StartMatch(ctx context.Context, matchID int) (*models.Match, error)
	CompleteMatch(ctx context.Context, matchID, winnerID int) (*CompletionResult, error)
}

type matchService struct {
	deps Deps
}

func NewMatchService(deps Deps) MatchService {
	return &matchService{deps: deps.withDefaults()}
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	m, err := s.deps.Matches.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return m, nil
}

// StartMatch запускает готовый матч. Если вето еще идет, матч ждет его окончания.
func (s *matchService) StartMatch(ctx context.Context, matchID int) (*models.Match, error) {
	peek, err := s.deps.Matches.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	var match *models.Match
	err = s.deps.Tx.RunInTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		if err := s.deps.Lock(ctx, exec, peek.TournamentID); err != nil {
			return err
		}
		tournament, err := s.deps.Tournaments.GetByID(ctx, exec, peek.TournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if tournament.Status != models.StatusLive {
			return fmt.Errorf("%w: tournament %d is %s", ErrTournamentNotLive, tournament.ID, tournament.Status)
		}

		match, err = s.deps.Matches.GetByID(ctx, exec, matchID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if match.Status == models.MatchStatusLive {
			return ErrMatchAlreadyStarted
		}
		if !match.Ready() {
			return fmt.Errorf("%w: round %d match %d", ErrMatchNotReady, match.Round, match.MatchNumber)
		}

		session, err := s.deps.Vetoes.GetActiveSessionByMatch(ctx, matchID)
		if err != nil && !errors.Is(err, repositories.ErrVetoSessionNotFound) {
			return fmt.Errorf("failed to check veto of match %d: %w", matchID, err)
		}
		if session != nil && session.Status != models.VetoStatusCompleted {
			return fmt.Errorf("%w: session %d", ErrVetoNotFinished, session.ID)
		}

		if err := s.deps.Matches.UpdateStatus(ctx, exec, matchID, models.MatchStatusLive); err != nil {
			return handleRepositoryError(err)
		}
		match.Status = models.MatchStatusLive
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcastMatch(match.TournamentID, match, nil)
	return match, nil
}

// CompleteMatch записывает победителя и продвигает его дальше. Повтор того же победителя
// ничего не меняет, другой победитель для завершенного матча отклоняется. Матч, слот
// следующего матча и завершение турнира пишутся в одной транзакции.
func (s *matchService) CompleteMatch(ctx context.Context, matchID, winnerID int) (*CompletionResult, error) {
	peek, err := s.deps.Matches.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	tournamentID := peek.TournamentID

	result := &CompletionResult{}
	err = s.deps.Tx.RunInTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		if err := s.deps.Lock(ctx, exec, tournamentID); err != nil {
			return err
		}
		tournament, err := s.deps.Tournaments.GetByID(ctx, exec, tournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		match, err := s.deps.Matches.GetByID(ctx, exec, matchID)
		if err != nil {
			return handleRepositoryError(err)
		}
		result.Match = match

		if match.Status == models.MatchStatusCompleted {
			if match.WinnerID != nil && *match.WinnerID == winnerID {
				result.AlreadyRecorded = true
				return nil
			}
			return fmt.Errorf("%w: match %d was won by %s", ErrWinnerConflict, matchID, describeWinner(match.WinnerID))
		}
		if tournament.Status != models.StatusLive {
			return fmt.Errorf("%w: tournament %d is %s", ErrTournamentNotLive, tournamentID, tournament.Status)
		}
		if match.SlotA == nil || match.SlotB == nil {
			return fmt.Errorf("%w: round %d match %d", ErrMatchNotReady, match.Round, match.MatchNumber)
		}
		if !match.HasTeam(winnerID) {
			return fmt.Errorf("%w: team %d in match %d", ErrWinnerNotInMatch, winnerID, matchID)
		}

		if err := s.deps.Matches.UpdateResult(ctx, exec, matchID, models.MatchStatusCompleted, intPtr(winnerID)); err != nil {
			return handleRepositoryError(err)
		}
		match.Status = models.MatchStatusCompleted
		match.WinnerID = intPtr(winnerID)

		switch tournament.Format {
		case models.FormatSingleElimination:
			return s.advanceWinner(ctx, exec, tournament, match, result)
		default:
			return s.completeIfAllPlayed(ctx, exec, tournament, result)
		}
	})
	if err != nil {
		if errors.Is(err, ErrWinnerConflict) {
			s.deps.Metrics.MatchCompletion(completionConflict)
		}
		return nil, err
	}

	if result.AlreadyRecorded {
		s.deps.Metrics.MatchCompletion(completionDuplicate)
		return result, nil
	}
	s.deps.Metrics.MatchCompletion(completionRecorded)
	s.afterCompletion(ctx, tournamentID, result)
	return result, nil
}

func (s *matchService) advanceWinner(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, match *models.Match, result *CompletionResult) error {
	teams, err := s.deps.Teams.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return fmt.Errorf("failed to list teams of tournament %d: %w", t.ID, err)
	}
	structure, err := brackets.CalculateStructure(len(teams))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBracketUnhealthy, err)
	}
	adv, err := brackets.ResolveAdvancement(structure, match.Round, match.MatchNumber)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBracketUnhealthy, err)
	}
	result.Advancement = &adv

	if adv.IsFinal {
		if err := s.deps.Tournaments.UpdateStatus(ctx, exec, t.ID, models.StatusCompleted); err != nil {
			return handleRepositoryError(err)
		}
		result.TournamentCompleted = true
		return nil
	}

	next, err := s.deps.Matches.GetByPosition(ctx, exec, t.ID, adv.Round, adv.MatchNumber)
	if err != nil {
		return fmt.Errorf("%w: round %d match %d is missing: %w", ErrBracketUnhealthy, adv.Round, adv.MatchNumber, err)
	}
	result.NextMatch = next

	winner := *match.WinnerID
	current := next.SlotValue(adv.Slot)
	switch {
	case current != nil && *current == winner:
		return nil
	case current != nil, next.Status == models.MatchStatusCompleted:
		// расхождения сетки чинит медик, а не завершение матча
		return fmt.Errorf("%w: slot %s of round %d match %d holds %s",
			ErrAdvancementConflict, adv.Slot, adv.Round, adv.MatchNumber, describeWinner(current))
	}

	if err := s.deps.Matches.SetSlot(ctx, exec, next.ID, adv.Slot, intPtr(winner)); err != nil {
		return handleRepositoryError(err)
	}
	next.SetSlot(adv.Slot, intPtr(winner))
	return nil
}

func (s *matchService) completeIfAllPlayed(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, result *CompletionResult) error {
	matches, err := s.deps.Matches.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return fmt.Errorf("failed to list matches of tournament %d: %w", t.ID, err)
	}
	for _, m := range matches {
		if m.ID != result.Match.ID && m.Status != models.MatchStatusCompleted {
			return nil
		}
	}
	if err := s.deps.Tournaments.UpdateStatus(ctx, exec, t.ID, models.StatusCompleted); err != nil {
		return handleRepositoryError(err)
	}
	result.TournamentCompleted = true
	return nil
}

func (s *matchService) afterCompletion(ctx context.Context, tournamentID int, result *CompletionResult) {
	match := result.Match
	now := s.deps.Now()

	s.deps.Logger.InfoContext(ctx, "match completed",
		slog.Int("tournament_id", tournamentID),
		slog.Int("match_id", match.ID),
		slog.Int("winner_id", *match.WinnerID),
		slog.Bool("tournament_completed", result.TournamentCompleted))

	payload := events.MatchCompleted{
		TournamentID: tournamentID,
		MatchID:      match.ID,
		WinnerID:     *match.WinnerID,
		IsFinal:      result.Advancement != nil && result.Advancement.IsFinal,
		OccurredAt:   now,
	}
	if result.NextMatch != nil {
		payload.NextMatchID = intPtr(result.NextMatch.ID)
	}
	publishEvent(ctx, s.deps.Publisher, s.deps.Logger, events.MatchCompletedV1, payload)

	if next := result.NextMatch; next != nil && next.Ready() {
		publishEvent(ctx, s.deps.Publisher, s.deps.Logger, events.MatchReadyV1, events.MatchReady{
			TournamentID: tournamentID,
			MatchID:      next.ID,
			TeamIDs:      [2]int{*next.SlotA, *next.SlotB},
			OccurredAt:   now,
		})
	}
	if result.TournamentCompleted {
		publishEvent(ctx, s.deps.Publisher, s.deps.Logger, events.TournamentStatusChangedV1, events.TournamentStatusChanged{
			TournamentID: tournamentID,
			From:         models.StatusLive,
			To:           models.StatusCompleted,
			OccurredAt:   now,
		})
	}

	s.broadcastMatch(tournamentID, match, result.NextMatch)
}

func (s *matchService) broadcastMatch(tournamentID int, match, next *models.Match) {
	payload := map[string]interface{}{"match": match}
	if next != nil {
		payload["next_match"] = next
	}
	s.deps.Hub.BroadcastToRoom(realtime.TournamentRoom(tournamentID), realtime.WebSocketMessage{
		Type:    realtime.MessageMatchUpdated,
		Payload: payload,
		RoomID:  realtime.TournamentRoom(tournamentID),
	})
}

func describeWinner(id *int) string {
	if id == nil {
		return "nobody"
	}
	return fmt.Sprintf("team %d", *id)
}
