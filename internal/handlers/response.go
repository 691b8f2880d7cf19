package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"taskbot/internal/service"
)

func responseWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func responseWithError(w http.ResponseWriter, status int, message string) {
	responseWithJSON(w, status, map[string]string{"error": message})
}

// businessStatus maps a BusinessError code to an HTTP status; anything else
// is a 500.
func businessStatus(err error) int {
	var busErr *service.BusinessError
	if !errors.As(err, &busErr) {
		return http.StatusInternalServerError
	}
	switch busErr.Code {
	case "VALIDATION_ERROR":
		return http.StatusBadRequest
	case "NOT_FOUND":
		return http.StatusNotFound
	case "PERMISSION_DENIED":
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
