// internal/middleware/api_key_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usage-metering-backend/internal/config"
)

func gatedRequest(t *testing.T, cfg config.APIKeyConfig, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var gotHash string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHash, _ = GetAPIKeyHashFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/usage/records", nil)
	mutate(req)

	rec := httptest.NewRecorder()
	APIKeyGate(cfg)(inner).ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		assert.NotEmpty(t, gotHash, "accepted requests carry the key hash in context")
	}
	return rec
}

func TestAPIKeyGateHeaderMatch(t *testing.T) {
	cfg := config.APIKeyConfig{PrimaryKey: "secret-key"}

	rec := gatedRequest(t, cfg, func(r *http.Request) {
		r.Header.Set(APIKeyHeader, "secret-key")
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyGateQueryParamMatch(t *testing.T) {
	cfg := config.APIKeyConfig{PrimaryKey: "secret-key"}

	rec := gatedRequest(t, cfg, func(r *http.Request) {
		q := r.URL.Query()
		q.Set(APIKeyQueryParam, "secret-key")
		r.URL.RawQuery = q.Encode()
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyGateHeaderWinsOverQueryParam(t *testing.T) {
	cfg := config.APIKeyConfig{PrimaryKey: "secret-key"}

	// The header is the first non-empty candidate; a valid query param
	// does not rescue a wrong header value.
	rec := gatedRequest(t, cfg, func(r *http.Request) {
		r.Header.Set(APIKeyHeader, "wrong")
		q := r.URL.Query()
		q.Set(APIKeyQueryParam, "secret-key")
		r.URL.RawQuery = q.Encode()
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyGateCaseInsensitive(t *testing.T) {
	cfg := config.APIKeyConfig{PrimaryKey: "Secret-Key"}

	rec := gatedRequest(t, cfg, func(r *http.Request) {
		r.Header.Set(APIKeyHeader, "sEcReT-kEy")
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyGateAdditionalKeys(t *testing.T) {
	cfg := config.APIKeyConfig{
		PrimaryKey:     "primary",
		AdditionalKeys: []string{"alpha", "Beta"},
	}

	for _, key := range []string{"alpha", "ALPHA", "beta"} {
		rec := gatedRequest(t, cfg, func(r *http.Request) {
			r.Header.Set(APIKeyHeader, key)
		})
		assert.Equal(t, http.StatusOK, rec.Code, "key %q", key)
	}
}

func TestAPIKeyGateDevDefaultFallback(t *testing.T) {
	cfg := config.APIKeyConfig{}

	rec := gatedRequest(t, cfg, func(r *http.Request) {
		r.Header.Set(APIKeyHeader, DefaultDevAPIKey)
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Only the fixed default is accepted, nothing else
	rec = gatedRequest(t, cfg, func(r *http.Request) {
		r.Header.Set(APIKeyHeader, "anything-else")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyGateRejectsMissingAndWrongKeys(t *testing.T) {
	cfg := config.APIKeyConfig{PrimaryKey: "secret-key"}

	noKey := gatedRequest(t, cfg, func(r *http.Request) {})
	require.Equal(t, http.StatusUnauthorized, noKey.Code)

	wrongKey := gatedRequest(t, cfg, func(r *http.Request) {
		r.Header.Set(APIKeyHeader, "nope")
	})
	require.Equal(t, http.StatusUnauthorized, wrongKey.Code)

	// Absence and mismatch look the same to the caller
	assert.JSONEq(t, noKey.Body.String(), wrongKey.Body.String())
}

func TestHashAPIKeyNeverReturnsRawKey(t *testing.T) {
	hash := HashAPIKey("secret-key")
	assert.NotEqual(t, "secret-key", hash)
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashAPIKey("secret-key"))
}
