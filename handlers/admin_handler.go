package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/services"
)

// AdminHandler открывает администраторам операции медика для вето.
type AdminHandler struct {
	vetoService services.VetoService
}

func NewAdminHandler(vs services.VetoService) *AdminHandler {
	return &AdminHandler{vetoService: vs}
}

type forceCompleteRequest struct {
	Side *models.Side `json:"side,omitempty"`
}

// AuditVetoHandler godoc
// @Summary Аудит незавершенных вето
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /admin/veto/audit [get]
func (h *AdminHandler) AuditVetoHandler(w http.ResponseWriter, r *http.Request) {
	audits, err := h.vetoService.AuditSessions(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	attention := 0
	for _, a := range audits {
		if a.NeedsAttention() {
			attention++
		}
	}

	env := jsonResponse{"sessions": audits, "needs_attention": attention}
	if err := writeJSON(w, http.StatusOK, env, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) ResyncVetoHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getIDFromURL(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	state, err := h.vetoService.ResyncSession(r.Context(), sessionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"veto": state}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) ResetVetoHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getIDFromURL(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	state, err := h.vetoService.ResetSession(r.Context(), sessionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"veto": state}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CompleteVetoHandler принудительно завершает вето. Тело необязательно.
func (h *AdminHandler) CompleteVetoHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, err := getIDFromURL(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input forceCompleteRequest
	if err := readOptionalJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Side != nil && !input.Side.Valid() {
		unprocessableResponse(w, r, "side must be attack or defense")
		return
	}

	state, err := h.vetoService.ForceCompleteSession(r.Context(), sessionID, input.Side)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"veto": state}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
