package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Raj-Randive/chatdocs/internal/api/v1/dto"
	"github.com/Raj-Randive/chatdocs/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type ChatHandler struct {
	chatService service.ChatService
	validate    *validator.Validate
	logger      zerolog.Logger
}

func NewChatHandler(chatService service.ChatService, validate *validator.Validate, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		validate:    validate,
		logger:      logger,
	}
}

// RegisterRoutes mounts the chat endpoints. sendMw wraps only the message
// endpoint, which is where rate limiting applies.
func (h *ChatHandler) RegisterRoutes(r chi.Router, sendMw func(http.Handler) http.Handler) {
	r.With(sendMw).Post("/message", h.SendMessage)
	r.Get("/files/{fileId}/messages", h.ListMessages)
}

// SendMessage godoc
// @Summary Ask a question about a file
// @Description Streams the answer as plain text. The answer is stored once the stream completes.
// @Tags chat
// @Accept json
// @Produce plain
// @Param request body dto.SendMessageRequest true "Question"
// @Success 200 {string} string "streamed answer"
// @Failure 400 {string} string "invalid request payload"
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "file not found"
// @Failure 429 {string} string "too many requests"
// @Router /message [post]
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Headers go out with the first chunk so that errors raised before any
	// output can still pick their status code.
	started := false
	start := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
		w.WriteHeader(http.StatusOK)
	}
	emit := func(chunk string) error {
		start()
		if _, err := io.WriteString(w, chunk); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := h.chatService.SendMessage(r.Context(), userID, req.FileID, req.Message, emit)
	if err == nil {
		start()
		return
	}
	if started {
		// The status line is gone; the client sees a truncated body.
		h.logger.Warn().Err(err).Str("file_id", req.FileID).Msg("chat stream aborted")
		return
	}
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, service.ErrFileNotFound):
		http.Error(w, "file not found", http.StatusNotFound)
	case errors.Is(err, service.ErrEmptyMessage):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error().Err(err).Str("file_id", req.FileID).Msg("failed to answer message")
		http.Error(w, "failed to answer message", http.StatusInternalServerError)
	}
}

// ListMessages godoc
// @Summary List a file's messages, newest first
// @Tags chat
// @Produce json
// @Param fileId path string true "File ID"
// @Param limit query int false "Page size (1-100, default 10)"
// @Param cursor query string false "Message id to start from"
// @Success 200 {object} dto.MessagePageResponseDTO
// @Failure 400 {string} string "invalid cursor"
// @Failure 404 {string} string "file not found"
// @Router /files/{fileId}/messages [get]
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > service.MaxMessagePageSize {
			http.Error(w, "limit must be between 1 and 100", http.StatusBadRequest)
			return
		}
		limit = n
	}

	page, err := h.chatService.ListMessages(r.Context(), userID, chi.URLParam(r, "fileId"), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthorized):
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		case errors.Is(err, service.ErrFileNotFound):
			http.Error(w, "file not found", http.StatusNotFound)
		case errors.Is(err, service.ErrCursorNotFound):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error().Err(err).Msg("failed to list messages")
			http.Error(w, "failed to list messages", http.StatusInternalServerError)
		}
		return
	}

	resp := dto.MessagePageResponseDTO{
		Messages:   make([]dto.MessageResponseDTO, 0, len(page.Messages)),
		NextCursor: page.NextCursor,
	}
	for _, m := range page.Messages {
		resp.Messages = append(resp.Messages, dto.MessageResponseDTO{
			ID:            m.ID,
			Text:          m.Text,
			IsUserMessage: m.IsUserMessage,
			CreatedAt:     m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}
