package persona

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/soless-ai/soless/internal/api"
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, h.store.Get(r.Context()))
}

func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	var p Persona
	if err := api.DecodeJSON(r, &p); err != nil {
		api.HandleError(w, err)
		return
	}

	if err := h.store.Replace(r.Context(), p); err != nil {
		if errors.Is(err, ErrValidation) {
			msg := strings.TrimPrefix(err.Error(), ErrValidation.Error()+": ")
			api.HandleError(w, api.NewValidationError(msg))
			return
		}
		slog.Error("replacing persona", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, h.store.Get(r.Context()))
}
