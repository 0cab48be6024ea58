package bot

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/soless-ai/soless/internal/api"
)

type Handler struct {
	settings *SettingsService
}

func NewHandler(settings *SettingsService) *Handler {
	return &Handler{settings: settings}
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, h.settings.View())
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var u SettingsUpdate
	if err := api.DecodeJSON(r, &u); err != nil {
		api.HandleError(w, err)
		return
	}

	view, err := h.settings.Update(r.Context(), u)
	if err != nil {
		if errors.Is(err, ErrInvalidSettings) {
			api.HandleError(w, api.NewValidationError(strings.TrimPrefix(err.Error(), ErrInvalidSettings.Error()+": ")))
			return
		}
		slog.Error("updating bot settings", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, view)
}
