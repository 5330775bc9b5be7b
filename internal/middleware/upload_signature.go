package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

const (
	UploadSignatureHeader = "X-Upload-Signature"
	uploadSignaturePrefix = "hmac-sha256="
	maxCallbackBody       = 64 << 10
)

// SignUploadCallback returns the header value for body signed with secret.
func SignUploadCallback(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return uploadSignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// UploadSignatureMiddleware rejects upload callbacks whose body was not
// signed with secret. The body is restored for the next handler.
func UploadSignatureMiddleware(secret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				logger.Error().Msg("Upload callback secret not configured; rejecting callback")
				http.Error(w, "Configuration error: callback secret not set", http.StatusInternalServerError)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody+1))
			if err != nil {
				http.Error(w, "Failed to read body", http.StatusBadRequest)
				return
			}
			if len(body) > maxCallbackBody {
				http.Error(w, "Callback body too large", http.StatusRequestEntityTooLarge)
				return
			}

			got := strings.TrimSpace(r.Header.Get(UploadSignatureHeader))
			if !strings.HasPrefix(got, uploadSignaturePrefix) {
				logger.Warn().Msg("Upload callback without signature")
				http.Error(w, "Unauthorized: missing signature", http.StatusUnauthorized)
				return
			}
			want := SignUploadCallback(secret, body)
			if !hmac.Equal([]byte(got), []byte(want)) {
				logger.Warn().Msg("Upload callback signature mismatch")
				http.Error(w, "Unauthorized: invalid signature", http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
