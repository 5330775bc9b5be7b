package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/Raj-Randive/chatdocs/internal/api/v1/dto"
	"github.com/Raj-Randive/chatdocs/internal/middleware"
	"github.com/Raj-Randive/chatdocs/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AuthProvider points at the hosted sign-in pages.
type AuthProvider struct {
	BaseURL    string
	ClientID   string
	AppBaseURL string
}

type AuthHandler struct {
	userSvc  service.UserService
	provider AuthProvider
	logger   zerolog.Logger
}

func NewAuthHandler(userSvc service.UserService, provider AuthProvider, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{userSvc: userSvc, provider: provider, logger: logger}
}

// RegisterRoutes mounts the v1 callback.
func (h *AuthHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.With(authMw).Post("/auth/callback", h.Callback)
}

// RegisterRedirects mounts the unversioned sign-in, sign-up and sign-out redirects.
func (h *AuthHandler) RegisterRedirects(r chi.Router) {
	r.Get("/auth/sign-in", h.SignIn)
	r.Get("/auth/sign-up", h.SignUp)
	r.Get("/auth/sign-out", h.SignOut)
}

// Callback godoc
// @Summary Sync the signed-in user
// @Description Creates the local user row on first sign-in. Safe to call repeatedly.
// @Tags auth
// @Produce json
// @Success 200 {object} dto.UserResponseDTO
// @Failure 401 {string} string "unauthorized"
// @Router /auth/callback [post]
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	email := middleware.Email(r.Context())
	if email == "" {
		http.Error(w, "Unauthorized: token has no email claim", http.StatusUnauthorized)
		return
	}
	user, err := h.userSvc.EnsureUser(r.Context(), userID, email)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to sync user")
		http.Error(w, "failed to sync user", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.UserResponseDTO{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt}, h.logger)
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, "/oauth2/auth", url.Values{
		"client_id":     {h.provider.ClientID},
		"response_type": {"code"},
		"redirect_uri":  {h.provider.AppBaseURL + "/auth-callback"},
	})
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, "/oauth2/auth", url.Values{
		"client_id":     {h.provider.ClientID},
		"response_type": {"code"},
		"prompt":        {"create"},
		"redirect_uri":  {h.provider.AppBaseURL + "/auth-callback"},
	})
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, "/logout", url.Values{"redirect": {h.provider.AppBaseURL}})
}

func (h *AuthHandler) redirect(w http.ResponseWriter, r *http.Request, path string, q url.Values) {
	if h.provider.BaseURL == "" {
		h.logger.Error().Msg("auth provider URL is not configured")
		http.Error(w, "auth provider not configured", http.StatusServiceUnavailable)
		return
	}
	target := strings.TrimSuffix(h.provider.BaseURL, "/") + path + "?" + q.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}
