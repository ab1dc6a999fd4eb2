// internal/middleware/api_key.go
package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"usage-metering-backend/internal/config"
	apperrors "usage-metering-backend/pkg/errors"
	"usage-metering-backend/pkg/utils"
)

type contextKey string

const (
	APIKeyHashContextKey contextKey = "api_key_hash"

	// APIKeyHeader is checked first, then APIKeyQueryParam; the first
	// non-empty value is the candidate key.
	APIKeyHeader     = "x-api-key"
	APIKeyQueryParam = "code"

	// DefaultDevAPIKey is the documented fallback when no primary key is
	// configured. Not a production security boundary; Warn is logged at
	// startup when it is active.
	DefaultDevAPIKey = "local-dev-key"
)

// APIKeyGate rejects requests that do not carry a configured API key.
// Applied identically to the ingestion (write) and analytics (read) paths.
func APIKeyGate(cfg config.APIKeyConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ExtractAPIKey(r)
			if !Authorize(cfg, key) {
				// absence and mismatch are indistinguishable to the caller
				utils.SendErrorResponse(w, apperrors.NewAppError(
					apperrors.ErrUnauthorized,
					http.StatusUnauthorized,
					"unauthorized",
				))
				return
			}

			ctx := context.WithValue(r.Context(), APIKeyHashContextKey, HashAPIKey(key))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractAPIKey returns the candidate key: header first, query parameter
// second, first non-empty match wins.
func ExtractAPIKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	return r.URL.Query().Get(APIKeyQueryParam)
}

// Authorize checks the candidate against the configured primary key plus any
// additional keys, case-insensitively. It never panics to the caller; any
// rejection is reported as a plain false.
func Authorize(cfg config.APIKeyConfig, key string) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("API key authorization panicked", zap.Any("cause", rec))
			ok = false
		}
	}()

	if key == "" {
		return false
	}

	primary := cfg.PrimaryKey
	if primary == "" {
		primary = DefaultDevAPIKey
	}

	if strings.EqualFold(key, primary) {
		return true
	}
	for _, candidate := range cfg.AdditionalKeys {
		if strings.EqualFold(key, candidate) {
			return true
		}
	}

	zap.L().Debug("API key rejected")
	return false
}

// HashAPIKey hashes a key for attribution. The raw key is never stored.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// GetAPIKeyHashFromContext returns the hash of the key the gate accepted.
func GetAPIKeyHashFromContext(ctx context.Context) (string, bool) {
	hash, ok := ctx.Value(APIKeyHashContextKey).(string)
	return hash, ok
}
