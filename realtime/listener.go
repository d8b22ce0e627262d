package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lib/pq"
)

// VetoChannel - канал NOTIFY, в который триггеры пишут id сессий.
const VetoChannel = "veto_changes"

// Broadcaster - часть хаба, нужная слушателю.
type Broadcaster interface {
	BroadcastToRoom(roomID string, message interface{})
	RoomSize(roomID string) int
}

// SnapshotFunc возвращает данные для рассылки, обычно пересчитанное состояние вето.
type SnapshotFunc func(ctx context.Context, sessionID int) (interface{}, error)

// VetoListener превращает изменения строк из любого процесса в рассылку состояния подписчикам.
type VetoListener struct {
	dsn      string
	hub      Broadcaster
	snapshot SnapshotFunc
	logger   *slog.Logger
}

func NewVetoListener(dsn string, hub Broadcaster, snapshot SnapshotFunc, logger *slog.Logger) *VetoListener {
	return &VetoListener{dsn: dsn, hub: hub, snapshot: snapshot, logger: logger}
}

func (l *VetoListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.logger.Warn("veto listener connection event", slog.Int("event", int(ev)), slog.Any("error", err))
		}
	})
	defer listener.Close()

	if err := listener.Listen(VetoChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", VetoChannel, err)
	}
	l.logger.Info("veto listener started", slog.String("channel", VetoChannel))

	healthCheck := time.NewTicker(90 * time.Second)
	defer healthCheck.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n == nil {
				// переподключились: уведомления могли потеряться, обновляем все комнаты
				l.refreshAll(ctx)
				continue
			}
			l.handle(ctx, n.Extra)
		case <-healthCheck.C:
			go func() {
				if err := listener.Ping(); err != nil {
					l.logger.Warn("veto listener ping failed", slog.Any("error", err))
				}
			}()
		}
	}
}

func (l *VetoListener) handle(ctx context.Context, payload string) {
	sessionID, err := strconv.Atoi(payload)
	if err != nil {
		l.logger.Warn("ignoring malformed veto notification", slog.String("payload", payload))
		return
	}
	l.Push(ctx, sessionID)
}

// Push пересчитывает и рассылает состояние сессии, если на нее кто-то подписан.
func (l *VetoListener) Push(ctx context.Context, sessionID int) {
	room := VetoRoom(sessionID)
	if l.hub.RoomSize(room) == 0 {
		return
	}
	payload, err := l.snapshot(ctx, sessionID)
	if err != nil {
		l.logger.Error("failed to build veto snapshot", slog.Int("session_id", sessionID), slog.Any("error", err))
		return
	}
	l.hub.BroadcastToRoom(room, WebSocketMessage{Type: MessageVetoState, Payload: payload, RoomID: room})
}

func (l *VetoListener) refreshAll(ctx context.Context) {
	lister, ok := l.hub.(interface{ Rooms() []string })
	if !ok {
		return
	}
	for _, room := range lister.Rooms() {
		var id int
		if _, err := fmt.Sscanf(room, "veto_%d", &id); err == nil {
			l.Push(ctx, id)
		}
	}
}
