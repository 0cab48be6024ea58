package chat

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soless-ai/soless/internal/api"
	"github.com/soless-ai/soless/internal/completion"
	"github.com/soless-ai/soless/internal/conversation"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type CreateResponse struct {
	ConversationID string `json:"conversationId"`
}

type ConversationResponse struct {
	Conversation *conversation.Conversation `json:"conversation"`
}

type SendMessageRequest struct {
	Message string `json:"message"`
}

type SendMessageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.CreateConversation(r.Context())
	if err != nil {
		slog.Error("creating conversation", "error", err)
		api.JSONErrorMessage(w, http.StatusInternalServerError, "Failed to create conversation")
		return
	}
	api.JSON(w, http.StatusCreated, CreateResponse{ConversationID: id})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	conv, err := h.svc.GetConversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			api.HandleError(w, api.NewNotFoundError("Conversation not found"))
			return
		}
		slog.Error("fetching conversation", "id", id, "error", err)
		api.JSONErrorMessage(w, http.StatusInternalServerError, "Failed to fetch conversation")
		return
	}
	api.JSON(w, http.StatusOK, ConversationResponse{Conversation: conv})
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SendMessageRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	reply, err := h.svc.SendMessage(r.Context(), id, req.Message)
	switch {
	case err == nil:
		api.JSON(w, http.StatusOK, SendMessageResponse{Message: reply})
	case errors.Is(err, ErrEmptyMessage):
		api.HandleError(w, api.NewValidationError("Message is required"))
	case errors.Is(err, conversation.ErrNotFound):
		api.HandleError(w, api.NewNotFoundError("Conversation not found"))
	case errors.Is(err, completion.ErrCompletionFailed):
		slog.Error("completing message", "id", id, "error", err)
		api.HandleError(w, api.NewUpstreamError(ApologyText))
	default:
		slog.Error("processing message", "id", id, "error", err)
		api.JSONErrorMessage(w, http.StatusInternalServerError, "Failed to process message")
	}
}
