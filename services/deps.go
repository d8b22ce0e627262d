package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-engine/events"
	"github.com/Dosada05/tournament-engine/metrics"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/Dosada05/tournament-engine/storage"
)

// BracketLocker упорядочивает запись в сетку одного турнира внутри транзакции.
type BracketLocker func(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error

// Deps - общие зависимости всех сервисов.
type Deps struct {
	Tx          repositories.TxRunner
	Lock        BracketLocker
	Tournaments repositories.TournamentRepository
	Teams       repositories.TeamRepository
	Matches     repositories.MatchRepository
	Vetoes      repositories.VetoRepository

	Publisher events.Publisher
	Hub       Broadcaster
	Archiver  storage.Archiver
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastToRoom(string, interface{}) {}

func (d Deps) withDefaults() Deps {
	if d.Lock == nil {
		d.Lock = repositories.LockTournamentBracket
	}
	if d.Publisher == nil {
		d.Publisher = events.NewNoopPublisher()
	}
	if d.Hub == nil {
		d.Hub = noopBroadcaster{}
	}
	if d.Archiver == nil {
		d.Archiver = storage.NewNoopArchiver()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}
