package documents

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/soless-ai/soless/internal/api"
)

// Room for multipart boundaries and headers on top of the file itself.
const multipartOverhead = 1 << 20

type Handler struct {
	store    Store
	maxBytes int64
}

func NewHandler(store Store, maxBytes int64) *Handler {
	return &Handler{store: store, maxBytes: maxBytes}
}

type UploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
}

type ListResponse struct {
	Documents []string `json:"documents"`
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)

	file, header, err := r.FormFile("document")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			api.HandleError(w, api.NewTooLargeError("File too large"))
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			api.HandleError(w, api.NewBadRequestError("No file uploaded"))
		default:
			api.HandleError(w, api.NewBadRequestError("invalid multipart form"))
		}
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !AllowedUpload(name) {
		api.HandleError(w, api.NewBadRequestError("Only PDF, Markdown, and TXT files are allowed"))
		return
	}
	if header.Size > h.maxBytes {
		api.HandleError(w, api.NewTooLargeError("File too large"))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		slog.Error("reading upload", "filename", name, "error", err)
		api.HandleError(w, api.NewBadRequestError("Failed to read file"))
		return
	}
	if int64(len(data)) > h.maxBytes {
		api.HandleError(w, api.NewTooLargeError("File too large"))
		return
	}

	if err := h.store.Save(r.Context(), name, data); err != nil {
		if errors.Is(err, ErrInvalidName) || errors.Is(err, ErrUnsupportedFormat) {
			api.HandleError(w, api.NewBadRequestError("Invalid file name"))
			return
		}
		slog.Error("saving document", "filename", name, "error", err)
		api.JSONErrorMessage(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	slog.Info("document uploaded", "filename", name, "size", len(data))
	api.JSON(w, http.StatusOK, UploadResponse{Message: "File uploaded successfully", Filename: name})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.List(r.Context())
	if err != nil {
		slog.Error("listing documents", "error", err)
		api.JSONErrorMessage(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.Filename)
	}
	api.JSON(w, http.StatusOK, ListResponse{Documents: names})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	err := h.store.Delete(r.Context(), name)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidName), errors.Is(err, ErrUnsupportedFormat):
		api.HandleError(w, api.NewNotFoundError("Document not found"))
		return
	default:
		slog.Error("deleting document", "filename", name, "error", err)
		api.JSONErrorMessage(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}

	slog.Info("document deleted", "filename", name)
	api.JSONMessage(w, http.StatusOK, "Document deleted successfully")
}
