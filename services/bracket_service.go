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
	"golang.org/x/sync/errgroup"
)

type BracketView struct {
	TournamentID int                     `json:"tournament_id"`
	Format       models.TournamentFormat `json:"format"`
	Structure    *brackets.Structure     `json:"structure,omitempty"`
	Matches      []*models.Match         `json:"matches"`
}

// RepairResult - отчет медика: найденные проблемы, запланированные исправления
// (примененные, если не DryRun) и проблемы после пересчета.
type RepairResult struct {
	TournamentID int                   `json:"tournament_id"`
	DryRun       bool                  `json:"dry_run"`
	Before       brackets.Report       `json:"before"`
	Corrections  []brackets.Correction `json:"corrections"`
	After        brackets.Report       `json:"after"`
	ArchiveKey   string                `json:"archive_key,omitempty"`
}

type BracketService interface {
	GenerateBracket(ctx context.Context, tournamentID int) (*BracketView, error)
	GetBracket(ctx context.Context, tournamentID int) (*BracketView, error)
	Health(ctx context.Context, tournamentID int) (*brackets.Report, error)
	Repair(ctx context.Context, tournamentID int, dryRun bool) (*RepairResult, error)
}

type bracketService struct {
	deps Deps
}

func NewBracketService(deps Deps) BracketService {
	return &bracketService{deps: deps.withDefaults()}
}

// GenerateBracket строит (или перестраивает) сетку посеянного турнира. До старта турнира
// сыгранных матчей нет, поэтому перестройка ничего не теряет.
func (s *bracketService) GenerateBracket(ctx context.Context, tournamentID int) (*BracketView, error) {
	var view *BracketView
	err := s.deps.Tx.RunInTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		if err := s.deps.Lock(ctx, exec, tournamentID); err != nil {
			return err
		}
		tournament, err := s.deps.Tournaments.GetByID(ctx, exec, tournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if tournament.Status != models.StatusSeeded {
			return fmt.Errorf("%w: tournament %d is %s", ErrBracketGenerationClosed, tournamentID, tournament.Status)
		}
		generator, ok := brackets.NewGenerator(tournament.Format)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnsupportedFormat, tournament.Format)
		}

		teams, err := s.deps.Teams.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list teams of tournament %d: %w", tournamentID, err)
		}
		if len(teams) < 2 {
			return fmt.Errorf("%w: %d registered, at least 2 required", ErrNotEnoughTeams, len(teams))
		}

		matches, err := generator.GenerateBracket(ctx, brackets.GenerateBracketParams{Tournament: tournament, Teams: teams})
		if err != nil {
			if errors.Is(err, brackets.ErrInvalidSeeding) {
				return fmt.Errorf("%w: %w", ErrValidationFailed, err)
			}
			return fmt.Errorf("failed to generate %s bracket: %w", generator.GetName(), err)
		}

		if err := s.deps.Matches.DeleteByTournament(ctx, exec, tournamentID); err != nil {
			return fmt.Errorf("failed to clear previous bracket: %w", err)
		}
		if err := s.deps.Matches.CreateBatch(ctx, exec, matches); err != nil {
			return fmt.Errorf("failed to save bracket: %w", err)
		}

		view = newBracketView(tournament, len(teams), matches)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.Logger.InfoContext(ctx, "bracket generated",
		slog.Int("tournament_id", tournamentID), slog.Int("matches", len(view.Matches)))
	s.deps.Hub.BroadcastToRoom(realtime.TournamentRoom(tournamentID), realtime.WebSocketMessage{
		Type:    realtime.MessageBracketUpdated,
		Payload: view,
		RoomID:  realtime.TournamentRoom(tournamentID),
	})
	return view, nil
}

func (s *bracketService) GetBracket(ctx context.Context, tournamentID int) (*BracketView, error) {
	tournament, teams, matches, err := s.loadBracket(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return newBracketView(tournament, len(teams), matches), nil
}

// Health проверяет сохраненную сетку по топологии, которую дает число команд.
func (s *bracketService) Health(ctx context.Context, tournamentID int) (*brackets.Report, error) {
	tournament, teams, matches, err := s.loadBracket(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	report, err := bracketReport(tournament, len(teams), matches)
	if err != nil {
		return nil, err
	}
	for _, issue := range report.Issues {
		s.deps.Metrics.BracketIssue(string(issue.Kind))
	}
	return &report, nil
}

func (s *bracketService) Repair(ctx context.Context, tournamentID int, dryRun bool) (*RepairResult, error) {
	result := &RepairResult{TournamentID: tournamentID, DryRun: dryRun}

	err := s.deps.Tx.RunInTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		if err := s.deps.Lock(ctx, exec, tournamentID); err != nil {
			return err
		}
		tournament, err := s.deps.Tournaments.GetByID(ctx, exec, tournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		teams, err := s.deps.Teams.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list teams of tournament %d: %w", tournamentID, err)
		}
		matches, err := s.deps.Matches.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list matches of tournament %d: %w", tournamentID, err)
		}

		result.Before, err = bracketReport(tournament, len(teams), matches)
		if err != nil {
			return err
		}
		result.Corrections = brackets.PlanRepair(result.Before.Structure, matches)

		if dryRun {
			result.After = brackets.Validate(result.Before.Structure, brackets.ApplyCorrections(matches, result.Corrections))
			result.After.TournamentID = tournamentID
			return nil
		}

		for _, c := range result.Corrections {
			if err := s.applyCorrection(ctx, exec, c); err != nil {
				return err
			}
		}

		// пересчитываем по тому, что реально лежит в БД
		repaired, err := s.deps.Matches.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to reload matches of tournament %d: %w", tournamentID, err)
		}
		result.After = brackets.Validate(result.Before.Structure, repaired)
		result.After.TournamentID = tournamentID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Corrections == nil {
		result.Corrections = []brackets.Correction{}
	}
	if dryRun {
		return result, nil
	}

	s.deps.Metrics.BracketCorrections(len(result.Corrections))
	s.deps.Logger.InfoContext(ctx, "bracket repaired",
		slog.Int("tournament_id", tournamentID),
		slog.Int("issues_before", len(result.Before.Issues)),
		slog.Int("corrections", len(result.Corrections)),
		slog.Int("issues_after", len(result.After.Issues)))

	key, err := s.deps.Archiver.ArchiveBracketReport(ctx, tournamentID, result)
	if err != nil {
		s.deps.Logger.WarnContext(ctx, "failed to archive repair report", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
	}
	result.ArchiveKey = key

	publishEvent(ctx, s.deps.Publisher, s.deps.Logger, events.BracketRepairedV1, events.BracketRepaired{
		TournamentID:    tournamentID,
		Corrections:     len(result.Corrections),
		RemainingIssues: len(result.After.Issues),
		ArchiveKey:      key,
		OccurredAt:      s.deps.Now(),
	})
	if len(result.Corrections) > 0 {
		s.deps.Hub.BroadcastToRoom(realtime.TournamentRoom(tournamentID), realtime.WebSocketMessage{
			Type:    realtime.MessageBracketUpdated,
			Payload: result.After,
			RoomID:  realtime.TournamentRoom(tournamentID),
		})
	}
	return result, nil
}

func (s *bracketService) applyCorrection(ctx context.Context, exec repositories.SQLExecutor, c brackets.Correction) error {
	var err error
	switch c.Kind {
	case brackets.CorrectionSetStatus:
		err = s.deps.Matches.UpdateStatus(ctx, exec, c.MatchID, c.Status)
	case brackets.CorrectionSetSlot:
		err = s.deps.Matches.SetSlot(ctx, exec, c.MatchID, c.Slot, c.TeamID)
	default:
		err = fmt.Errorf("unknown correction kind %q", c.Kind)
	}
	if err != nil {
		return fmt.Errorf("failed to apply correction to match %d (%s): %w", c.MatchID, c.Reason, err)
	}
	return nil
}

// loadBracket читает турнир, команды и матчи параллельно.
func (s *bracketService) loadBracket(ctx context.Context, tournamentID int) (*models.Tournament, []*models.Team, []*models.Match, error) {
	var (
		tournament *models.Tournament
		teams      []*models.Team
		matches    []*models.Match
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tournament, err = s.deps.Tournaments.GetByID(gCtx, nil, tournamentID)
		return handleRepositoryError(err)
	})
	g.Go(func() error {
		var err error
		teams, err = s.deps.Teams.ListByTournament(gCtx, nil, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list teams of tournament %d: %w", tournamentID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		matches, err = s.deps.Matches.ListByTournament(gCtx, nil, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list matches of tournament %d: %w", tournamentID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return tournament, teams, matches, nil
}

func newBracketView(t *models.Tournament, teamCount int, matches []*models.Match) *BracketView {
	view := &BracketView{TournamentID: t.ID, Format: t.Format, Matches: matches}
	if view.Matches == nil {
		view.Matches = []*models.Match{}
	}
	if t.Format == models.FormatSingleElimination {
		if structure, err := brackets.CalculateStructure(teamCount); err == nil {
			view.Structure = &structure
		}
	}
	return view
}

// bracketReport проверяет сетку на выбывание. У других форматов нет дерева продвижения.
func bracketReport(t *models.Tournament, teamCount int, matches []*models.Match) (brackets.Report, error) {
	if t.Format != models.FormatSingleElimination {
		return brackets.Report{}, fmt.Errorf("%w: health checks cover single elimination only, got %s", ErrUnsupportedFormat, t.Format)
	}
	if len(matches) == 0 {
		return brackets.Report{}, fmt.Errorf("%w: tournament %d", ErrBracketNotGenerated, t.ID)
	}
	structure, err := brackets.CalculateStructure(teamCount)
	if err != nil {
		return brackets.Report{}, fmt.Errorf("%w: %w", ErrNotEnoughTeams, err)
	}
	report := brackets.Validate(structure, matches)
	report.TournamentID = t.ID
	return report, nil
}
