package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/tournament-engine/realtime"
	"github.com/Dosada05/tournament-engine/services"
)

type WebSocketHandler struct {
	hub            *realtime.Hub
	bracketService services.BracketService
	vetoService    services.VetoService
	upgrader       websocket.Upgrader
	logger         *slog.Logger
}

// NewWebSocketHandler принимает список разрешенных Origin; пустой список разрешает любой.
func NewWebSocketHandler(hub *realtime.Hub, bs services.BracketService, vs services.VetoService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		bracketService: bs,
		vetoService:    vs,
		logger:         logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowedOrigins) == 0 || origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

type snapshotLoader func(ctx context.Context) (realtime.WebSocketMessage, error)

// ServeTournament подключает клиента к /ws/tournaments/{tournamentID}.
// Первым сообщением клиент получает текущую сетку.
func (h *WebSocketHandler) ServeTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if _, err := h.bracketService.GetBracket(r.Context(), tournamentID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	room := realtime.TournamentRoom(tournamentID)

	h.serve(w, r, room, func(ctx context.Context) (realtime.WebSocketMessage, error) {
		view, err := h.bracketService.GetBracket(ctx, tournamentID)
		if err != nil {
			return realtime.WebSocketMessage{}, err
		}
		return realtime.WebSocketMessage{Type: realtime.MessageBracketUpdated, Payload: view, RoomID: room}, nil
	})
}

// ServeVeto подключает клиента к /ws/veto/{sessionID}. Каждое сообщение содержит полное состояние.
func (h *WebSocketHandler) ServeVeto(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getIDFromURL(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if _, err := h.vetoService.GetState(r.Context(), sessionID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	room := realtime.VetoRoom(sessionID)

	h.serve(w, r, room, func(ctx context.Context) (realtime.WebSocketMessage, error) {
		state, err := h.vetoService.GetState(ctx, sessionID)
		if err != nil {
			return realtime.WebSocketMessage{}, err
		}
		return realtime.WebSocketMessage{Type: realtime.MessageVetoState, Payload: state, RoomID: room}, nil
	})
}

// serve ничего не проверяет: вызывающий убеждается, что комната есть, до апгрейда.
func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, room string, load snapshotLoader) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту ошибкой
		h.logger.Warn("websocket upgrade failed", slog.String("room", room), slog.Any("error", err))
		return
	}

	client := realtime.NewClient(h.hub, conn, room)
	if !h.hub.Add(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	// снимок грузим после регистрации, чтобы изменения не потерялись между ними
	snapshot, err := load(r.Context())
	if err != nil {
		h.logger.Error("failed to load snapshot", slog.String("room", room), slog.Any("error", err))
	} else if err := client.SendTo(snapshot); err != nil {
		h.logger.Warn("failed to queue snapshot", slog.String("room", room), slog.Any("error", err))
	}

	go client.WritePump()
	go client.ReadPump()

	h.logger.Debug("websocket client connected", slog.String("room", room))
}
