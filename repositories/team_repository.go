package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/lib/pq"
)

var (
	ErrTeamNotFound          = errors.New("team not found")
	ErrTeamNameConflict      = errors.New("team name already taken in this tournament")
	ErrTeamTournamentInvalid = errors.New("invalid tournament reference for team")
)

type TeamRepository interface {
	Create(ctx context.Context, exec SQLExecutor, team *models.Team) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Team, error)
	UpdateSeeds(ctx context.Context, exec SQLExecutor, seeds map[int]int) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTeamRepository) Create(ctx context.Context, exec SQLExecutor, team *models.Team) error {
	query := `
		INSERT INTO teams (tournament_id, name, weight, captain_user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, seed, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		team.TournamentID, team.Name, team.Weight, team.CaptainUserID,
	).Scan(&team.ID, &team.Seed, &team.CreatedAt)

	return r.handleTeamError(err)
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error) {
	query := `
		SELECT id, tournament_id, name, seed, weight, captain_user_id, created_at
		FROM teams
		WHERE id = $1`

	team := &models.Team{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, id).Scan(
		&team.ID, &team.TournamentID, &team.Name, &team.Seed, &team.Weight, &team.CaptainUserID, &team.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return team, nil
}

// ListByTournament возвращает команды в порядке регистрации.
func (r *postgresTeamRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Team, error) {
	query := `
		SELECT id, tournament_id, name, seed, weight, captain_user_id, created_at
		FROM teams
		WHERE tournament_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]*models.Team, 0)
	for rows.Next() {
		team := &models.Team{}
		if scanErr := rows.Scan(
			&team.ID, &team.TournamentID, &team.Name, &team.Seed, &team.Weight, &team.CaptainUserID, &team.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		teams = append(teams, team)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return teams, nil
}

// UpdateSeeds записывает team id -> seed одним запросом.
func (r *postgresTeamRepository) UpdateSeeds(ctx context.Context, exec SQLExecutor, seeds map[int]int) error {
	if len(seeds) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(seeds))
	values := make([]int64, 0, len(seeds))
	for id, seed := range seeds {
		ids = append(ids, int64(id))
		values = append(values, int64(seed))
	}

	query := `
		UPDATE teams AS t
		SET seed = s.seed
		FROM unnest($1::int[], $2::int[]) AS s(id, seed)
		WHERE t.id = s.id`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, pq.Array(ids), pq.Array(values))
	if err != nil {
		return r.handleTeamError(err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) handleTeamError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return ErrTeamNameConflict
		case "23503": // foreign_key_violation
			return ErrTeamTournamentInvalid
		}
	}
	return err
}
