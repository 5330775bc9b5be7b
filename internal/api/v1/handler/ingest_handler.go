package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/Raj-Randive/chatdocs/internal/api/v1/dto"
	"github.com/Raj-Randive/chatdocs/internal/queue"
	"github.com/Raj-Randive/chatdocs/internal/worker/ingestion"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// IngestHandler receives ingestion jobs pushed by Pub/Sub.
type IngestHandler struct {
	processor queue.Processor
	validate  *validator.Validate
	logger    zerolog.Logger
}

func NewIngestHandler(processor queue.Processor, validate *validator.Validate, logger zerolog.Logger) *IngestHandler {
	return &IngestHandler{processor: processor, validate: validate, logger: logger}
}

func (h *IngestHandler) RegisterRoutes(r chi.Router, pushAuthMw func(http.Handler) http.Handler) {
	r.With(pushAuthMw).Post("/internal/ingest", h.Push)
}

// Push godoc
// @Summary Pub/Sub push endpoint for ingestion jobs
// @Description Runs the job with retries. Malformed messages are acknowledged and dropped.
// @Tags internal
// @Accept json
// @Param message body dto.PubSubPushRequest true "Pub/Sub push envelope"
// @Success 204
// @Failure 500 {string} string "ingestion failed; Pub/Sub will redeliver"
// @Router /internal/ingest [post]
func (h *IngestHandler) Push(w http.ResponseWriter, r *http.Request) {
	var req dto.PubSubPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error().Err(err).Msg("Dropping undecodable Pub/Sub push")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	log := h.logger.With().Str("message_id", req.Message.MessageID).Logger()
	if err := h.validate.Struct(&req); err != nil {
		log.Error().Err(err).Msg("Dropping invalid Pub/Sub push")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Message.Data)
	if err != nil {
		log.Error().Err(err).Msg("Dropping Pub/Sub push with bad base64 data")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	job, err := ingestion.DecodeJob(data)
	if err != nil {
		log.Error().Err(err).Msg("Dropping Pub/Sub push with bad job payload")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.processor.Handle(r.Context(), job); err != nil {
		log.Error().Err(err).Str("file_id", job.FileID).Msg("Ingestion job failed; leaving for redelivery")
		http.Error(w, "ingestion failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
