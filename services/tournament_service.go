package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/events"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/realtime"
	"github.com/Dosada05/tournament-engine/repositories"
	"golang.org/x/sync/errgroup"
)

type CreateTournamentInput struct {
	Name          string                  `json:"name"`
	Format        models.TournamentFormat `json:"format"`
	MapPool       []string                `json:"map_pool,omitempty"`
	MapPoolPreset string                  `json:"map_pool_preset,omitempty"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	GetTournament(ctx context.Context, id int) (*models.Tournament, error)
	ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error)
	UpdateStatus(ctx context.Context, id int, status models.TournamentStatus) (*models.Tournament, error)
}

type tournamentService struct {
	deps     Deps
	mapPools map[string]models.MapPool
}

func NewTournamentService(deps Deps, mapPools map[string]models.MapPool) TournamentService {
	return &tournamentService{deps: deps.withDefaults(), mapPools: mapPools}
}

func (s *tournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
	}
	if !input.Format.Valid() {
		return nil, fmt.Errorf("%w: unknown format %q", ErrValidationFailed, input.Format)
	}
	if _, ok := brackets.NewGenerator(input.Format); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, input.Format)
	}

	pool := models.MapPool(input.MapPool)
	if len(pool) == 0 && input.MapPoolPreset != "" {
		preset, ok := s.mapPools[input.MapPoolPreset]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMapPoolPreset, input.MapPoolPreset)
		}
		pool = append(models.MapPool(nil), preset...)
	}
	if err := pool.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	tournament := &models.Tournament{
		Name:    name,
		Format:  input.Format,
		Status:  models.StatusRegistration,
		MapPool: pool,
	}
	if err := s.deps.Tournaments.Create(ctx, tournament); err != nil {
		return nil, handleRepositoryError(err)
	}

	s.deps.Logger.InfoContext(ctx, "tournament created",
		slog.Int("tournament_id", tournament.ID), slog.String("format", string(tournament.Format)))
	return tournament, nil
}

// GetTournament возвращает турнир с командами и матчами, загруженными параллельно.
func (s *tournamentService) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.deps.Tournaments.GetByID(ctx, nil, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		teams, err := s.deps.Teams.ListByTournament(gCtx, nil, id)
		if err != nil {
			return fmt.Errorf("failed to list teams of tournament %d: %w", id, err)
		}
		tournament.Teams = make([]models.Team, 0, len(teams))
		for _, t := range teams {
			tournament.Teams = append(tournament.Teams, *t)
		}
		tournament.TeamCount = len(teams)
		return nil
	})
	g.Go(func() error {
		matches, err := s.deps.Matches.ListByTournament(gCtx, nil, id)
		if err != nil {
			return fmt.Errorf("failed to list matches of tournament %d: %w", id, err)
		}
		tournament.Matches = make([]models.Match, 0, len(matches))
		for _, m := range matches {
			tournament.Matches = append(tournament.Matches, *m)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tournament, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	tournaments, err := s.deps.Tournaments.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	if tournaments == nil {
		return []*models.Tournament{}, nil
	}
	return tournaments, nil
}

// UpdateStatus двигает турнир по жизненному циклу. Для старта нужна исправная сетка,
// для завершения все матчи должны быть сыграны. Статус seeded ставит только посев.
func (s *tournamentService) UpdateStatus(ctx context.Context, id int, status models.TournamentStatus) (*models.Tournament, error) {
	if status == models.StatusSeeded {
		return nil, fmt.Errorf("%w: seeded is set by seeding the teams", ErrTournamentInvalidStatusTransition)
	}

	var (
		tournament *models.Tournament
		previous   models.TournamentStatus
	)
	err := s.deps.Tx.RunInTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		if err := s.deps.Lock(ctx, exec, id); err != nil {
			return err
		}
		var err error
		tournament, err = s.deps.Tournaments.GetByID(ctx, exec, id)
		if err != nil {
			return handleRepositoryError(err)
		}
		previous = tournament.Status
		if !isValidStatusTransition(previous, status) {
			return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, previous, status)
		}
		if previous == status {
			return nil
		}

		switch status {
		case models.StatusLive:
			if err := s.checkReadyToStart(ctx, exec, tournament); err != nil {
				return err
			}
		case models.StatusCompleted:
			matches, err := s.deps.Matches.ListByTournament(ctx, exec, id)
			if err != nil {
				return fmt.Errorf("failed to list matches of tournament %d: %w", id, err)
			}
			for _, m := range matches {
				if m.Status != models.MatchStatusCompleted {
					return fmt.Errorf("%w: round %d match %d is %s", ErrMatchesIncomplete, m.Round, m.MatchNumber, m.Status)
				}
			}
		}

		if err := s.deps.Tournaments.UpdateStatus(ctx, exec, id, status); err != nil {
			return handleRepositoryError(err)
		}
		tournament.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	if previous != status {
		s.statusChanged(ctx, id, previous, status)
	}
	return tournament, nil
}

func (s *tournamentService) checkReadyToStart(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	teams, err := s.deps.Teams.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return fmt.Errorf("failed to list teams of tournament %d: %w", t.ID, err)
	}
	matches, err := s.deps.Matches.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return fmt.Errorf("failed to list matches of tournament %d: %w", t.ID, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("%w: tournament %d", ErrBracketNotGenerated, t.ID)
	}

	report, err := bracketReport(t, len(teams), matches)
	if errors.Is(err, ErrUnsupportedFormat) {
		// без дерева продвижения проверять нечего
		return nil
	}
	if err != nil {
		return err
	}
	if !report.Healthy() {
		return fmt.Errorf("%w: %d issue(s), first: %s", ErrBracketUnhealthy, len(report.Issues), report.Issues[0].Message)
	}
	return nil
}

func (s *tournamentService) statusChanged(ctx context.Context, id int, from, to models.TournamentStatus) {
	s.deps.Logger.InfoContext(ctx, "tournament status changed",
		slog.Int("tournament_id", id), slog.String("from", string(from)), slog.String("to", string(to)))
	publishEvent(ctx, s.deps.Publisher, s.deps.Logger, events.TournamentStatusChangedV1, events.TournamentStatusChanged{
		TournamentID: id,
		From:         from,
		To:           to,
		OccurredAt:   s.deps.Now(),
	})
	s.deps.Hub.BroadcastToRoom(realtime.TournamentRoom(id), realtime.WebSocketMessage{
		Type:    realtime.MessageBracketUpdated,
		Payload: map[string]interface{}{"tournament_id": id, "status": to},
		RoomID:  realtime.TournamentRoom(id),
	})
}
