package knowledge

import (
	"net/http"

	"github.com/soless-ai/soless/internal/api"
)

type Handler struct {
	builder Builder
}

func NewHandler(builder Builder) *Handler {
	return &Handler{builder: builder}
}

type PreviewResponse struct {
	Knowledge string `json:"knowledge"`
	Length    int    `json:"length"`
}

// Preview returns the blob the next prompt would embed.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	blob := h.builder.Build(r.Context())
	api.JSON(w, http.StatusOK, PreviewResponse{Knowledge: blob, Length: len(blob)})
}
