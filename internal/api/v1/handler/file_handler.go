package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/Raj-Randive/chatdocs/internal/api/v1/dto"
	"github.com/Raj-Randive/chatdocs/internal/model"
	"github.com/Raj-Randive/chatdocs/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type FileHandler struct {
	fileSvc service.FileService
	logger  zerolog.Logger
}

func NewFileHandler(fileSvc service.FileService, logger zerolog.Logger) *FileHandler {
	return &FileHandler{fileSvc: fileSvc, logger: logger}
}

// RegisterRoutes mounts the file endpoints. Callers mount it behind auth.
func (h *FileHandler) RegisterRoutes(r chi.Router) {
	r.Get("/files", h.List)
	r.Get("/files/by-key/*", h.GetByKey)
	r.Get("/files/{fileId}", h.Get)
	r.Get("/files/{fileId}/status", h.Status)
	r.Delete("/files/{fileId}", h.Delete)
}

func toFileDTO(f model.File) dto.FileResponseDTO {
	out := dto.FileResponseDTO{
		ID:           f.ID,
		Key:          f.Key,
		Name:         f.Name,
		URL:          f.URL,
		UploadStatus: string(f.UploadStatus),
		PageCount:    f.PageCount,
		CreatedAt:    f.CreatedAt,
	}
	if f.FailureKind != nil {
		out.FailureKind = *f.FailureKind
	}
	return out
}

func (h *FileHandler) writeError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, service.ErrFileNotFound):
		http.Error(w, "file not found", http.StatusNotFound)
	default:
		h.logger.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

// List godoc
// @Summary List the caller's files
// @Tags files
// @Produce json
// @Success 200 {array} dto.FileResponseDTO
// @Failure 401 {string} string "unauthorized"
// @Router /files [get]
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	files, err := h.fileSvc.ListFiles(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "failed to list files")
		return
	}
	resp := make([]dto.FileResponseDTO, 0, len(files))
	for _, f := range files {
		resp = append(resp, toFileDTO(f))
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}

// Get godoc
// @Summary Get a file with a short-lived view URL
// @Tags files
// @Produce json
// @Param fileId path string true "File ID"
// @Success 200 {object} dto.FileResponseDTO
// @Failure 404 {string} string "file not found"
// @Router /files/{fileId} [get]
func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	view, err := h.fileSvc.GetFile(r.Context(), userID, chi.URLParam(r, "fileId"))
	if err != nil {
		h.writeError(w, err, "failed to get file")
		return
	}
	resp := toFileDTO(view.File)
	resp.ViewURL = view.ViewURL
	writeJSON(w, http.StatusOK, resp, h.logger)
}

// GetByKey godoc
// @Summary Find a file by its storage key
// @Description Used right after an upload, before the client knows the file id.
// @Tags files
// @Produce json
// @Param key path string true "Storage key"
// @Success 200 {object} dto.FileResponseDTO
// @Failure 404 {string} string "file not found"
// @Router /files/by-key/{key} [get]
func (h *FileHandler) GetByKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	key, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || key == "" {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}
	f, err := h.fileSvc.GetFileByKey(r.Context(), userID, key)
	if err != nil {
		h.writeError(w, err, "failed to get file")
		return
	}
	writeJSON(w, http.StatusOK, toFileDTO(*f), h.logger)
}

// Status godoc
// @Summary Poll the ingestion status of a file
// @Description Returns PENDING while the file is not visible yet.
// @Tags files
// @Produce json
// @Param fileId path string true "File ID"
// @Success 200 {object} dto.UploadStatusResponse
// @Router /files/{fileId}/status [get]
func (h *FileHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	status, err := h.fileSvc.GetUploadStatus(r.Context(), userID, chi.URLParam(r, "fileId"))
	if err != nil {
		h.writeError(w, err, "failed to get upload status")
		return
	}
	writeJSON(w, http.StatusOK, dto.UploadStatusResponse{Status: string(status)}, h.logger)
}

// Delete godoc
// @Summary Delete a file, its messages and its vectors
// @Tags files
// @Param fileId path string true "File ID"
// @Success 204
// @Failure 404 {string} string "file not found"
// @Router /files/{fileId} [delete]
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.fileSvc.DeleteFile(r.Context(), userID, chi.URLParam(r, "fileId")); err != nil {
		h.writeError(w, err, "failed to delete file")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
