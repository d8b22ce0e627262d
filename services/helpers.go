package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Dosada05/tournament-engine/events"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
)

// Broadcaster рассылает сообщения по WebSocket комнатам.
type Broadcaster interface {
	BroadcastToRoom(roomID string, message interface{})
}

// publishEvent не возвращает ошибку: к моменту отправки события запись уже закоммичена.
func publishEvent(ctx context.Context, pub events.Publisher, logger *slog.Logger, subject string, payload any) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "failed to publish event", slog.String("subject", subject), slog.Any("error", err))
	}
}

// handleRepositoryError переводит ошибки репозиториев в ошибки сервисного слоя.
func handleRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTeamNotFound):
		return ErrTeamNotFound
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrVetoSessionNotFound):
		return ErrVetoSessionNotFound
	case errors.Is(err, repositories.ErrTournamentNameConflict):
		return ErrTournamentNameConflict
	case errors.Is(err, repositories.ErrTeamNameConflict):
		return ErrTeamNameConflict
	case errors.Is(err, repositories.ErrTeamTournamentInvalid):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrVetoSessionExists):
		return ErrVetoSessionExists
	}
	return err
}

func intPtr(v int) *int {
	return &v
}

// isValidStatusTransition: статусы турнира двигаются только вперёд, отмена возможна до завершения.
func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusRegistration: {models.StatusSeeded, models.StatusCanceled},
		models.StatusSeeded:       {models.StatusLive, models.StatusCanceled},
		models.StatusLive:         {models.StatusCompleted, models.StatusCanceled},
		models.StatusCompleted:    {},
		models.StatusCanceled:     {},
	}
	for _, allowedNextStatus := range allowedTransitions[current] {
		if next == allowedNextStatus {
			return true
		}
	}
	return false
}
