package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Raj-Randive/chatdocs/internal/api/v1/dto"
	"github.com/Raj-Randive/chatdocs/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// UploadHandler issues direct-upload URLs and receives upload callbacks.
type UploadHandler struct {
	fileSvc  service.FileService
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewUploadHandler(fileSvc service.FileService, validate *validator.Validate, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{fileSvc: fileSvc, validate: validate, logger: logger}
}

// RegisterRoutes mounts the upload endpoints. The completion callback is
// called by the upload service, not by users, so it takes its own middleware.
func (h *UploadHandler) RegisterRoutes(r chi.Router, authMw, callbackMw func(http.Handler) http.Handler) {
	r.With(authMw).Post("/uploads/presign", h.Presign)
	r.With(callbackMw).Post("/uploads/complete", h.Complete)
}

// Presign godoc
// @Summary Request a direct upload URL
// @Description Checks the plan's size limit and monthly quota, then returns a presigned PUT URL.
// @Tags uploads
// @Accept json
// @Produce json
// @Param upload body dto.PresignUploadRequest true "File to upload"
// @Success 200 {object} dto.PresignUploadResponse
// @Failure 400 {string} string "invalid request payload"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "upload limit exceeded"
// @Failure 413 {string} string "file too large"
// @Router /uploads/presign [post]
func (h *UploadHandler) Presign(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req dto.PresignUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	ticket, err := h.fileSvc.PrepareUpload(r.Context(), userID, req.Name, req.SizeBytes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrUserNotFound):
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		case errors.Is(err, service.ErrUnsupportedFileType):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, service.ErrFileTooLarge):
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		case errors.Is(err, service.ErrUploadLimitExceeded):
			http.Error(w, "upload limit exceeded", http.StatusForbidden)
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to prepare upload")
			http.Error(w, "failed to prepare upload", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.PresignUploadResponse{
		Key:       ticket.Key,
		UploadURL: ticket.UploadURL,
		ExpiresAt: ticket.ExpiresAt,
	}, h.logger)
}

// Complete godoc
// @Summary Upload completion callback
// @Description Records an uploaded file and schedules its ingestion. Duplicate deliveries are acknowledged without a second ingestion.
// @Tags uploads
// @Accept json
// @Produce json
// @Param X-Upload-Signature header string true "hmac-sha256=<hex>"
// @Success 200 {object} dto.UploadCompleteResponse "duplicate delivery"
// @Success 201 {object} dto.UploadCompleteResponse
// @Failure 400 {string} string "invalid callback"
// @Failure 401 {string} string "invalid signature"
// @Router /uploads/complete [post]
func (h *UploadHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var cb service.UploadCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		http.Error(w, "invalid callback payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&cb); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, created, err := h.fileSvc.CompleteUpload(r.Context(), cb)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCallback) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error().Err(err).Str("key", cb.File.Key).Msg("failed to record upload")
		http.Error(w, "failed to record upload", http.StatusInternalServerError)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeJSON(w, status, dto.UploadCompleteResponse{FileID: file.ID, Duplicate: !created}, h.logger)
}
