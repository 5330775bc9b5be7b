package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/idtoken"
)

// TokenValidator checks a Google-signed ID token for an audience.
type TokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

var (
	errNoBearer     = errors.New("no bearer token")
	errNoEmailClaim = errors.New("token has no email claim")
	errWrongCaller  = errors.New("token was issued to another service account")
)

// PubSubAuthMiddleware only lets through push deliveries whose OIDC token was
// minted for audience on behalf of the pushEmail service account. With
// isLocalDev the emulator's unsigned pushes are accepted as is.
func PubSubAuthMiddleware(isLocalDev bool, audience, pushEmail string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return pubSubAuth(isLocalDev, audience, pushEmail, idtoken.Validate, logger)
}

func pubSubAuth(isLocalDev bool, audience, pushEmail string, validate TokenValidator, logger zerolog.Logger) func(http.Handler) http.Handler {
	log := logger.With().Str("middleware", "pubsub_auth").Logger()
	misconfigured := audience == "" || pushEmail == ""
	if !isLocalDev && misconfigured {
		log.Error().Msg("Push audience or service account missing; every delivery will be refused")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isLocalDev {
				next.ServeHTTP(w, r)
				return
			}
			if misconfigured {
				http.Error(w, "push authentication is not configured", http.StatusInternalServerError)
				return
			}

			caller, err := pushCaller(r, audience, validate)
			if err == nil && caller != pushEmail {
				err = errWrongCaller
			}
			if err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, errNoEmailClaim) || errors.Is(err, errWrongCaller) {
					status = http.StatusForbidden
				}
				log.Warn().Err(err).Str("caller", caller).Int("status", status).Msg("Rejected push delivery")
				http.Error(w, http.StatusText(status), status)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// pushCaller returns the email the request's token was issued to.
func pushCaller(r *http.Request, audience string, validate TokenValidator) (string, error) {
	token, ok := bearerToken(r)
	if !ok {
		return "", errNoBearer
	}
	payload, err := validate(r.Context(), token, audience)
	if err != nil {
		return "", err
	}
	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return "", errNoEmailClaim
	}
	return email, nil
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}
