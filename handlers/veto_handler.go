package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-engine/middleware"
	"github.com/Dosada05/tournament-engine/services"
)

type VetoHandler struct {
	vetoService services.VetoService
}

func NewVetoHandler(vs services.VetoService) *VetoHandler {
	return &VetoHandler{vetoService: vs}
}

// StartHandler godoc
// @Summary Открыть сессию вето
// @Tags veto
// @Description Открывает вето для матча с обеими командами. Ответ содержит ожидаемую последовательность ходов.
// @Produce json
// @Param matchID path int true "ID матча"
// @Success 201 {object} map[string]interface{}
// @Failure 409 {object} map[string]string "Сессия уже открыта или вето завершено"
// @Failure 422 {object} map[string]string "Матч не готов"
// @Security BearerAuth
// @Router /matches/{matchID}/veto [post]
func (h *VetoHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	state, err := h.vetoService.StartSession(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"veto": state}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetStateHandler godoc
// @Summary Состояние вето
// @Tags veto
// @Produce json
// @Param sessionID path int true "ID сессии"
// @Success 200 {object} map[string]interface{}
// @Router /veto/{sessionID} [get]
func (h *VetoHandler) GetStateHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getIDFromURL(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	state, err := h.vetoService.GetState(r.Context(), sessionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"veto": state}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SubmitActionHandler godoc
// @Summary Сделать ход в вето
// @Tags veto
// @Description Бан карты либо выбор стороны на последнем шаге. expected_position защищает от устаревшего состояния клиента.
// @Accept json
// @Produce json
// @Param sessionID path int true "ID сессии"
// @Param body body services.SubmitVetoInput true "Карта или сторона"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string "Пользователь не капитан"
// @Failure 409 {object} map[string]string "Не ваш ход или позиция занята"
// @Failure 422 {object} map[string]string "Карта недоступна"
// @Failure 429 {object} map[string]string "Слишком много запросов"
// @Security BearerAuth
// @Router /veto/{sessionID}/actions [post]
func (h *VetoHandler) SubmitActionHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to act in a veto")
		return
	}

	sessionID, err := getIDFromURL(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.SubmitVetoInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.SessionID = sessionID
	input.ActingUserID = userID

	state, err := h.vetoService.SubmitAction(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"veto": state}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
