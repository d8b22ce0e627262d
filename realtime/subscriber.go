package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/tournament-engine/veto"
)

// VetoSubscriber - Go клиент для /ws/veto/{sessionID}. Каждый полученный снимок
// становится новым авторитетным состоянием в Reconciler.
type VetoSubscriber struct {
	URL        string
	Header     http.Header
	Reconciler *veto.Reconciler
	// OnUpdate вызывается после каждого обновления с его итогом и новым видом.
	OnUpdate func(veto.RefreshResult, veto.View)
	Logger   *slog.Logger
	Dialer   *websocket.Dialer
}

type incomingMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Run читает снимки, пока не отменен ctx или не оборвалось соединение.
func (s *VetoSubscriber) Run(ctx context.Context) error {
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, s.URL, s.Header)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", s.URL, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		conn.Close()
	}()

	for {
		var msg incomingMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("veto subscription closed: %w", err)
		}
		if msg.Type != MessageVetoState {
			continue
		}

		var st veto.State
		if err := json.Unmarshal(msg.Payload, &st); err != nil {
			if s.Logger != nil {
				s.Logger.Warn("dropping malformed veto snapshot", slog.Any("error", err))
			}
			continue
		}

		res := s.Reconciler.Refresh(st)
		if s.OnUpdate != nil {
			s.OnUpdate(res, s.Reconciler.View())
		}
	}
}
