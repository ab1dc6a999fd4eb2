// internal/handlers/track_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usage-metering-backend/internal/middleware"
	"usage-metering-backend/internal/models"
)

func trackRequest(t *testing.T, body TrackUsageBody, mutate func(*http.Request)) *http.Request {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/usage/track", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	return req
}

func validTrackBody() TrackUsageBody {
	return TrackUsageBody{
		FunctionName:    "ConvertFilesToText",
		OperationType:   models.OpFileConversionToText,
		InputSizeBytes:  1024,
		OutputSizeBytes: 512,
		DurationMs:      120,
		StatusCode:      200,
		Success:         true,
		Metadata:        map[string]string{models.MetadataKeyFilename: "notes.pdf"},
	}
}

func TestTrackUsageEnrichesFromRequestContext(t *testing.T) {
	svc := &fakeUsageService{}
	h := NewTrackHandler(svc)

	req := trackRequest(t, validTrackBody(), func(r *http.Request) {
		r.Header.Set(CustomerIDHeader, "cust-42")
		r.Header.Set(TeamIDHeader, "team-7")
		r.Header.Set(OrganizationNameHeader, "acme")
		r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		r.Header.Set("User-Agent", "collaborator/1.0")
	})
	req = req.WithContext(context.WithValue(req.Context(),
		middleware.APIKeyHashContextKey, middleware.HashAPIKey("secret")))

	rec := httptest.NewRecorder()
	h.TrackUsage(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.lastTrackReq)

	got := svc.lastTrackReq
	assert.Equal(t, "cust-42", got.CustomerID)
	assert.Equal(t, "team-7", got.TeamID)
	assert.Equal(t, "acme", got.OrganizationName)
	assert.Equal(t, "203.0.113.9", got.ClientIPAddress)
	assert.Equal(t, "collaborator/1.0", got.UserAgent)
	assert.Equal(t, middleware.HashAPIKey("secret"), got.APIKeyHash)
	assert.Equal(t, "notes.pdf", got.Metadata[models.MetadataKeyFilename])

	var resp models.TrackUsageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RecordID)
}

func TestTrackUsageMissingAttributionStillTracks(t *testing.T) {
	svc := &fakeUsageService{}
	h := NewTrackHandler(svc)

	rec := httptest.NewRecorder()
	h.TrackUsage(rec, trackRequest(t, validTrackBody(), nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, svc.lastTrackReq.CustomerID)
	assert.Empty(t, svc.lastTrackReq.OrganizationName)
}

func TestTrackUsageValidationErrors(t *testing.T) {
	h := NewTrackHandler(&fakeUsageService{})

	t.Run("missing function name", func(t *testing.T) {
		body := validTrackBody()
		body.FunctionName = ""

		rec := httptest.NewRecorder()
		h.TrackUsage(rec, trackRequest(t, body, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("failure without error message", func(t *testing.T) {
		body := validTrackBody()
		body.Success = false
		body.ErrorMessage = ""

		rec := httptest.NewRecorder()
		h.TrackUsage(rec, trackRequest(t, body, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/usage/track", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		h.TrackUsage(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTrackUsageStoreFailureIs500(t *testing.T) {
	h := NewTrackHandler(&fakeUsageService{err: assert.AnError})

	rec := httptest.NewRecorder()
	h.TrackUsage(rec, trackRequest(t, validTrackBody(), nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
