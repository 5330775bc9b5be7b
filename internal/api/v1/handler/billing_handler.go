package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/Raj-Randive/chatdocs/internal/api/v1/dto"
	"github.com/Raj-Randive/chatdocs/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const maxWebhookBodyBytes = int64(65536)

// BillingHandler handles plan and Stripe endpoints.
type BillingHandler struct {
	stripeSvc *service.StripeService
	subSvc    service.SubscriptionService
	logger    zerolog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(stripeSvc *service.StripeService, subSvc service.SubscriptionService, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{stripeSvc: stripeSvc, subSvc: subSvc, logger: logger}
}

// RegisterRoutes registers the billing endpoints. The Stripe webhook is
// authenticated by its signature and stays outside authMw.
func (h *BillingHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMw)
		r.Post("/billing/checkout", h.Checkout)
		r.Post("/billing/portal", h.Portal)
		r.Post("/billing/session", h.Session)
		r.Get("/billing/plan", h.Plan)
	})
	r.Post("/webhooks/stripe", h.Webhook)
}

func (h *BillingHandler) writeSessionURL(w http.ResponseWriter, url string, err error, what string) {
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthorized):
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		case errors.Is(err, service.ErrUserNotFound):
			http.Error(w, "user not found", http.StatusNotFound)
		case errors.Is(err, service.ErrNoCustomer):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error().Err(err).Msg("failed to create " + what)
			http.Error(w, "failed to create "+what, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, dto.URLResponse{URL: url}, h.logger)
}

// Checkout godoc
// @Summary Initiate a Stripe Checkout session for the Pro plan
// @Tags billing
// @Produce json
// @Success 200 {object} dto.URLResponse "URL of the Stripe Checkout session"
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "failed to create checkout session"
// @Router /billing/checkout [post]
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	url, err := h.stripeSvc.CreateCheckoutSession(r.Context(), userID)
	h.writeSessionURL(w, url, err, "checkout session")
}

// Portal godoc
// @Summary Create a Stripe Customer Portal session
// @Tags billing
// @Produce json
// @Success 200 {object} dto.URLResponse "URL of the Customer Portal session"
// @Failure 400 {string} string "no stripe customer for user"
// @Failure 401 {string} string "unauthorized"
// @Router /billing/portal [post]
func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	url, err := h.stripeSvc.CreatePortalSession(r.Context(), userID)
	h.writeSessionURL(w, url, err, "portal session")
}

// Session godoc
// @Summary Manage or start a subscription
// @Description Subscribers get a Customer Portal URL, everyone else a Checkout URL.
// @Tags billing
// @Produce json
// @Success 200 {object} dto.URLResponse
// @Failure 401 {string} string "unauthorized"
// @Router /billing/session [post]
func (h *BillingHandler) Session(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	url, err := h.stripeSvc.CreateBillingSession(r.Context(), userID)
	h.writeSessionURL(w, url, err, "billing session")
}

// Plan godoc
// @Summary Get the caller's current plan
// @Tags billing
// @Produce json
// @Success 200 {object} dto.PlanResponseDTO
// @Failure 401 {string} string "unauthorized"
// @Router /billing/plan [get]
func (h *BillingHandler) Plan(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	sub, err := h.subSvc.GetUserSubscriptionPlan(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to resolve plan")
		http.Error(w, "failed to resolve plan", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.PlanResponseDTO{
		Name:                   sub.Name,
		Slug:                   sub.Slug,
		Quota:                  sub.Quota,
		PagesPerPDF:            sub.PagesPerPDF,
		MaxFileSizeMB:          sub.MaxFileSizeMB,
		IsSubscribed:           sub.IsSubscribed,
		IsCanceled:             sub.IsCanceled,
		StripeCurrentPeriodEnd: sub.StripeCurrentPeriodEnd,
	}, h.logger)
}

// Webhook godoc
// @Summary Stripe webhook receiver
// @Tags billing
// @Accept json
// @Param Stripe-Signature header string true "Stripe signature"
// @Success 200
// @Failure 400 {string} string "invalid webhook"
// @Router /webhooks/stripe [post]
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusServiceUnavailable)
		return
	}
	if err := h.stripeSvc.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		if errors.Is(err, service.ErrInvalidWebhook) {
			http.Error(w, "invalid webhook", http.StatusBadRequest)
			return
		}
		// Non-2xx makes Stripe redeliver.
		h.logger.Error().Err(err).Msg("failed to apply stripe webhook")
		http.Error(w, "failed to apply webhook", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
