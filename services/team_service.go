package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
)

type RegisterTeamInput struct {
	Name          string  `json:"name"`
	Weight        float64 `json:"weight"`
	CaptainUserID int     `json:"captain_user_id"`
}

type TeamService interface {
	RegisterTeam(ctx context.Context, tournamentID int, input RegisterTeamInput) (*models.Team, error)
	ListTeams(ctx context.Context, tournamentID int) ([]*models.Team, error)
	// AssignSeeds сортирует команды по весу, от большего. При равном весе - по порядку регистрации.
	AssignSeeds(ctx context.Context, tournamentID int) ([]*models.Team, error)
}

type teamService struct {
	deps Deps
}

func NewTeamService(deps Deps) TeamService {
	return &teamService{deps: deps.withDefaults()}
}

func (s *teamService) RegisterTeam(ctx context.Context, tournamentID int, input RegisterTeamInput) (*models.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: team name is required", ErrValidationFailed)
	}
	if input.Weight < 0 {
		return nil, fmt.Errorf("%w: weight must not be negative", ErrValidationFailed)
	}
	if input.CaptainUserID <= 0 {
		return nil, fmt.Errorf("%w: captain user id is required", ErrValidationFailed)
	}

	team := &models.Team{
		TournamentID:  tournamentID,
		Name:          name,
		Weight:        input.Weight,
		CaptainUserID: input.CaptainUserID,
	}
	// та же блокировка, что и у посева: команда без сида не попадет в посеянный турнир
	err := s.deps.Tx.RunInTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		if err := s.deps.Lock(ctx, exec, tournamentID); err != nil {
			return err
		}
		tournament, err := s.deps.Tournaments.GetByID(ctx, exec, tournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if tournament.Status != models.StatusRegistration {
			return fmt.Errorf("%w: tournament %d is %s", ErrRegistrationNotOpen, tournamentID, tournament.Status)
		}
		return handleRepositoryError(s.deps.Teams.Create(ctx, exec, team))
	})
	if err != nil {
		return nil, err
	}

	s.deps.Logger.InfoContext(ctx, "team registered",
		slog.Int("tournament_id", tournamentID), slog.Int("team_id", team.ID))
	return team, nil
}

func (s *teamService) ListTeams(ctx context.Context, tournamentID int) ([]*models.Team, error) {
	if _, err := s.deps.Tournaments.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, handleRepositoryError(err)
	}
	teams, err := s.deps.Teams.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams of tournament %d: %w", tournamentID, err)
	}
	if teams == nil {
		return []*models.Team{}, nil
	}
	return teams, nil
}

func (s *teamService) AssignSeeds(ctx context.Context, tournamentID int) ([]*models.Team, error) {
	var (
		ranked   []*models.Team
		previous models.TournamentStatus
	)
	err := s.deps.Tx.RunInTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		if err := s.deps.Lock(ctx, exec, tournamentID); err != nil {
			return err
		}
		tournament, err := s.deps.Tournaments.GetByID(ctx, exec, tournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		previous = tournament.Status
		if previous != models.StatusRegistration && previous != models.StatusSeeded {
			return fmt.Errorf("%w: tournament %d is %s", ErrSeedingClosed, tournamentID, previous)
		}

		teams, err := s.deps.Teams.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list teams of tournament %d: %w", tournamentID, err)
		}
		if len(teams) < 2 {
			return fmt.Errorf("%w: %d registered, at least 2 required", ErrNotEnoughTeams, len(teams))
		}

		ranked = rankTeams(teams)
		seeds := make(map[int]int, len(ranked))
		for _, t := range ranked {
			seeds[t.ID] = t.Seed
		}
		if err := s.deps.Teams.UpdateSeeds(ctx, exec, seeds); err != nil {
			return fmt.Errorf("failed to store seeds: %w", err)
		}

		if previous == models.StatusSeeded {
			// пересев: старая сетка больше не соответствует посеву
			if err := s.deps.Matches.DeleteByTournament(ctx, exec, tournamentID); err != nil {
				return fmt.Errorf("failed to drop outdated bracket: %w", err)
			}
			return nil
		}
		if err := s.deps.Tournaments.UpdateStatus(ctx, exec, tournamentID, models.StatusSeeded); err != nil {
			return handleRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.Logger.InfoContext(ctx, "teams seeded",
		slog.Int("tournament_id", tournamentID), slog.Int("teams", len(ranked)))
	if previous != models.StatusSeeded {
		ts := &tournamentService{deps: s.deps}
		ts.statusChanged(ctx, tournamentID, previous, models.StatusSeeded)
	}
	return ranked, nil
}

// rankTeams возвращает копии команд с сидами 1..N. На входе порядок регистрации.
func rankTeams(teams []*models.Team) []*models.Team {
	ranked := make([]*models.Team, len(teams))
	for i, t := range teams {
		cp := *t
		ranked[i] = &cp
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Weight > ranked[j].Weight
	})
	for i, t := range ranked {
		t.Seed = i + 1
	}
	return ranked
}
