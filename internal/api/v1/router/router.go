package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/api/v1/handler"
	"github.com/Raj-Randive/chatdocs/internal/config"
	"github.com/Raj-Randive/chatdocs/internal/middleware"
	"github.com/Raj-Randive/chatdocs/internal/queue"
	"github.com/Raj-Randive/chatdocs/internal/ratelimit"
	"github.com/Raj-Randive/chatdocs/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

const chatRateWindow = time.Minute

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Users         service.UserService
	Files         service.FileService
	Chat          service.ChatService
	Subscriptions service.SubscriptionService
	Stripe        *service.StripeService
	// Ingest is set when jobs arrive by Pub/Sub push.
	Ingest queue.Processor
	// Limiter is nil when chat rate limiting is disabled.
	Limiter ratelimit.Limiter
}

func New(cfg *config.Config, deps Deps, logger zerolog.Logger) http.Handler {
	validate := validator.New(validator.WithRequiredStructEnabled())

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)
	rateLimit := middleware.RateLimitMiddleware(deps.Limiter, chatRateWindow, logger)
	callbackMiddleware := middleware.UploadSignatureMiddleware(cfg.UploadCallbackSecret, logger)
	isLocalDev := cfg.PubSubEmulatorHost != ""
	pubsubAuthMiddleware := middleware.PubSubAuthMiddleware(isLocalDev, cfg.PubSubPushAudience, cfg.PubSubPushServiceAccountEmail, logger)

	authHandler := handler.NewAuthHandler(deps.Users, handler.AuthProvider{
		BaseURL:    cfg.AuthProviderURL,
		ClientID:   cfg.AuthClientID,
		AppBaseURL: cfg.AppBaseURL,
	}, logger)
	uploadHandler := handler.NewUploadHandler(deps.Files, validate, logger)
	fileHandler := handler.NewFileHandler(deps.Files, logger)
	chatHandler := handler.NewChatHandler(deps.Chat, validate, logger)
	billingHandler := handler.NewBillingHandler(deps.Stripe, deps.Subscriptions, logger)

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(chimw.Recoverer)
	r.Use(c.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	authHandler.RegisterRedirects(r)

	r.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authMiddleware)
		uploadHandler.RegisterRoutes(r, authMiddleware, callbackMiddleware)
		billingHandler.RegisterRoutes(r, authMiddleware)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			fileHandler.RegisterRoutes(r)
			chatHandler.RegisterRoutes(r, rateLimit)
		})

		if deps.Ingest != nil {
			handler.NewIngestHandler(deps.Ingest, validate, logger).RegisterRoutes(r, pubsubAuthMiddleware)
		}
	})

	// Redirect /api/* to /v1/* for backward compatibility
	r.HandleFunc("/api/*", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/")
		http.Redirect(w, r, "/v1/"+rest, http.StatusMovedPermanently)
	})

	logger.Info().Bool("rate_limit", deps.Limiter != nil).Bool("pubsub_push", deps.Ingest != nil).Msg("Router initialized")
	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() {
		return []string{"*"}
	}
	return []string{cfg.AppBaseURL}
}
