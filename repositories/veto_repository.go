package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/lib/pq"
)

var (
	ErrVetoSessionNotFound = errors.New("veto session not found")
	ErrVetoSessionExists   = errors.New("match already has a veto session")
	ErrVetoMatchInvalid    = errors.New("invalid match reference for veto session")
)

type VetoRepository interface {
	CreateSession(ctx context.Context, exec SQLExecutor, session *models.VetoSession) error
	GetSession(ctx context.Context, exec SQLExecutor, id int) (*models.VetoSession, error)
	// GetSessionForUpdate блокирует строку сессии до конца транзакции exec.
	GetSessionForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.VetoSession, error)
	GetActiveSessionByMatch(ctx context.Context, matchID int) (*models.VetoSession, error)
	// GetSessionByMatch возвращает сессию матча в любом статусе.
	GetSessionByMatch(ctx context.Context, exec SQLExecutor, matchID int) (*models.VetoSession, error)
	ListActiveSessions(ctx context.Context) ([]*models.VetoSession, error)
	UpdateTurn(ctx context.Context, exec SQLExecutor, session *models.VetoSession) error

	ListActions(ctx context.Context, exec SQLExecutor, sessionID int) ([]models.VetoAction, error)
	// AppendAction вставляет действие на его позицию, только если все предыдущие заняты,
	// а сама позиция свободна. Возвращает false, если запись проиграла гонку.
	AppendAction(ctx context.Context, exec SQLExecutor, action *models.VetoAction) (bool, error)
	DeleteActions(ctx context.Context, exec SQLExecutor, sessionID int) error
}

type postgresVetoRepository struct {
	db *sql.DB
}

func NewPostgresVetoRepository(db *sql.DB) VetoRepository {
	return &postgresVetoRepository{db: db}
}

func (r *postgresVetoRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const vetoSessionColumns = `id, match_id, home_team_id, away_team_id, status, current_turn_team_id, map_pool, created_at, updated_at`

func scanVetoSession(row interface{ Scan(dest ...any) error }, s *models.VetoSession) error {
	return row.Scan(
		&s.ID, &s.MatchID, &s.HomeTeamID, &s.AwayTeamID, &s.Status,
		&s.CurrentTurnTeamID, pq.Array((*[]string)(&s.MapPool)), &s.CreatedAt, &s.UpdatedAt,
	)
}

func (r *postgresVetoRepository) CreateSession(ctx context.Context, exec SQLExecutor, s *models.VetoSession) error {
	query := `
		INSERT INTO veto_sessions (match_id, home_team_id, away_team_id, status, current_turn_team_id, map_pool)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		s.MatchID, s.HomeTeamID, s.AwayTeamID, s.Status, s.CurrentTurnTeamID, pq.Array([]string(s.MapPool)),
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)

	return r.handleVetoError(err)
}

func (r *postgresVetoRepository) GetSession(ctx context.Context, exec SQLExecutor, id int) (*models.VetoSession, error) {
	return r.getSession(ctx, exec, `SELECT `+vetoSessionColumns+` FROM veto_sessions WHERE id = $1`, id)
}

func (r *postgresVetoRepository) GetSessionForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.VetoSession, error) {
	return r.getSession(ctx, exec, `SELECT `+vetoSessionColumns+` FROM veto_sessions WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresVetoRepository) GetActiveSessionByMatch(ctx context.Context, matchID int) (*models.VetoSession, error) {
	query := `SELECT ` + vetoSessionColumns + `
		FROM veto_sessions
		WHERE match_id = $1 AND status <> 'completed'
		ORDER BY id DESC
		LIMIT 1`
	return r.getSession(ctx, nil, query, matchID)
}

func (r *postgresVetoRepository) GetSessionByMatch(ctx context.Context, exec SQLExecutor, matchID int) (*models.VetoSession, error) {
	query := `SELECT ` + vetoSessionColumns + `
		FROM veto_sessions
		WHERE match_id = $1
		ORDER BY id DESC
		LIMIT 1`
	return r.getSession(ctx, exec, query, matchID)
}

func (r *postgresVetoRepository) getSession(ctx context.Context, exec SQLExecutor, query string, arg int) (*models.VetoSession, error) {
	s := &models.VetoSession{}
	if err := scanVetoSession(r.getExecutor(exec).QueryRowContext(ctx, query, arg), s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVetoSessionNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *postgresVetoRepository) ListActiveSessions(ctx context.Context) ([]*models.VetoSession, error) {
	query := `SELECT ` + vetoSessionColumns + `
		FROM veto_sessions
		WHERE status <> 'completed'
		ORDER BY updated_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*models.VetoSession, 0)
	for rows.Next() {
		s := &models.VetoSession{}
		if scanErr := scanVetoSession(rows, s); scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, s)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *postgresVetoRepository) UpdateTurn(ctx context.Context, exec SQLExecutor, s *models.VetoSession) error {
	query := `
		UPDATE veto_sessions
		SET status = $1, current_turn_team_id = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query, s.Status, s.CurrentTurnTeamID, s.ID).Scan(&s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrVetoSessionNotFound
	}
	return err
}

func (r *postgresVetoRepository) ListActions(ctx context.Context, exec SQLExecutor, sessionID int) ([]models.VetoAction, error) {
	query := `
		SELECT id, session_id, order_number, action_type, team_id, map_id, side_choice, created_at
		FROM veto_actions
		WHERE session_id = $1
		ORDER BY order_number ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	actions := make([]models.VetoAction, 0)
	for rows.Next() {
		var a models.VetoAction
		if scanErr := rows.Scan(
			&a.ID, &a.SessionID, &a.OrderNumber, &a.ActionType, &a.TeamID, &a.MapID, &a.SideChoice, &a.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		actions = append(actions, a)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return actions, nil
}

func (r *postgresVetoRepository) AppendAction(ctx context.Context, exec SQLExecutor, a *models.VetoAction) (bool, error) {
	// Счетчик не дает пропусков, уникальный ключ не пускает второго писателя на ту же позицию.
	query := `
		INSERT INTO veto_actions (session_id, order_number, action_type, team_id, map_id, side_choice)
		SELECT $1::int, $2::int, $3::text, $4::int, $5::text, $6::text
		WHERE (SELECT COUNT(*) FROM veto_actions WHERE session_id = $1::int) = $2::int - 1
		ON CONFLICT (session_id, order_number) DO NOTHING
		RETURNING id, created_at`

	var side *string
	if a.SideChoice != nil {
		s := string(*a.SideChoice)
		side = &s
	}

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		a.SessionID, a.OrderNumber, string(a.ActionType), a.TeamID, a.MapID, side,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, r.handleVetoError(err)
	}
	return true, nil
}

func (r *postgresVetoRepository) DeleteActions(ctx context.Context, exec SQLExecutor, sessionID int) error {
	_, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM veto_actions WHERE session_id = $1`, sessionID)
	return err
}

func (r *postgresVetoRepository) handleVetoError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return ErrVetoSessionExists
		case "23503":
			return ErrVetoMatchInvalid
		}
	}
	return err
}
