package utils

import (
	"encoding/json"
	"net/http"

	"sprout/pkg/logger"
)

const (
	ErrRequestInvalid           = "request/invalid_parameters"
	ErrRequestNotFound          = "request/not_found"
	ErrRequestRateLimitExceeded = "request/rate_limit_exceeded"
	ErrRequestBodyTooLarge      = "request/body_too_large"
	ErrRequestUnSupportedMedia  = "request/invalid_media"

	ErrAuthInvalid = "auth/invalid_credentials"

	ErrServerInternal = "server/internal_error"

	ErrMediaNotFound        = "media/not_found"
	ErrMediaUnknownSize     = "media/unknown_size"
	ErrVariantUnavailable   = "media/variant_unavailable"
	ErrImageProcessing      = "image/processing_failed"
	ErrOptimizerUnavailable = "optimizer/unavailable"
	ErrSchedulingFailed     = "jobs/scheduling_failed"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// WriteError sends a JSON formatted error response.
func WriteError(w http.ResponseWriter, status int, code string, message string) {
	logger.LogDebug("%s: %s", code, message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIError{
		Code:    code,
		Message: message,
		Status:  status,
	})
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
