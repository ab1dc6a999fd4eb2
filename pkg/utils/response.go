// pkg/utils/response.go
package utils

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"usage-metering-backend/internal/models"
	apperrors "usage-metering-backend/pkg/errors"
)

// SendJSONResponse sends a JSON response with proper error handling
func SendJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	// Marshal the data first to catch any encoding errors
	jsonData, err := json.Marshal(data)
	if err != nil {
		zap.L().Error("Error marshaling JSON response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(models.ErrorResponse{
			Error: "internal server error: failed to encode response",
		})
		return
	}

	w.WriteHeader(statusCode)

	if _, writeErr := w.Write(jsonData); writeErr != nil {
		zap.L().Error("Error writing response", zap.Error(writeErr))
	}
}

// SendErrorResponse sends an error response, mapping AppError to its status code
func SendErrorResponse(w http.ResponseWriter, err error) {
	statusCode := apperrors.GetStatusCode(err)
	SendJSONResponse(w, statusCode, models.ErrorResponse{Error: err.Error()})
}

func DecodeJSONBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.NewAppError(apperrors.ErrBadRequest, http.StatusBadRequest, "invalid JSON format")
	}
	return nil
}
