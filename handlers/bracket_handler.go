package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Dosada05/tournament-engine/services"
)

type BracketHandler struct {
	bracketService services.BracketService
}

func NewBracketHandler(bs services.BracketService) *BracketHandler {
	return &BracketHandler{bracketService: bs}
}

// GenerateHandler godoc
// @Summary Сгенерировать сетку
// @Tags brackets
// @Description Строит матчи из посеянных команд. Доступно пока турнир в статусе seeded; повторный вызов пересобирает сетку.
// @Produce json
// @Param tournamentID path int true "ID турнира"
// @Success 201 {object} map[string]interface{}
// @Failure 409 {object} map[string]string "Турнир не в статусе seeded"
// @Failure 422 {object} map[string]string "Недостаточно команд или формат не поддерживается"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/bracket [post]
func (h *BracketHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.bracketService.GenerateBracket(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"bracket": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.bracketService.GetBracket(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"bracket": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// HealthHandler godoc
// @Summary Проверить сетку
// @Tags brackets
// @Produce json
// @Param tournamentID path int true "ID турнира"
// @Success 200 {object} map[string]interface{} "Отчет: healthy, repairable, issues"
// @Router /tournaments/{tournamentID}/bracket/health [get]
func (h *BracketHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	report, err := h.bracketService.Health(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	env := jsonResponse{
		"healthy":    report.Healthy(),
		"repairable": report.Repairable(),
		"report":     report,
	}
	if err := writeJSON(w, http.StatusOK, env, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RepairHandler godoc
// @Summary Исправить сетку
// @Tags brackets
// @Description Применяет исправимые корректировки. С dry_run=true только показывает план.
// @Produce json
// @Param tournamentID path int true "ID турнира"
// @Param dry_run query bool false "Не записывать изменения"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/bracket/repair [post]
func (h *BracketHandler) RepairHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	dryRun := false
	if v := r.URL.Query().Get("dry_run"); v != "" {
		dryRun, err = strconv.ParseBool(v)
		if err != nil {
			badRequestResponse(w, r, errors.New("invalid dry_run query parameter"))
			return
		}
	}

	result, err := h.bracketService.Repair(r.Context(), tournamentID, dryRun)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"repair": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
