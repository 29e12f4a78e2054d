package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"gbconnect/internal/services"
	"gbconnect/internal/utils"
)

var errorStatus = []struct {
	kind   error
	status int
}{
	{services.ErrInvalidInput, http.StatusBadRequest},
	{services.ErrNotFound, http.StatusNotFound},
	{services.ErrConflict, http.StatusConflict},
	{services.ErrUnauthorized, http.StatusUnauthorized},
	{services.ErrForbidden, http.StatusForbidden},
	{services.ErrTooManyRequests, http.StatusTooManyRequests},
	{services.ErrUnavailable, http.StatusServiceUnavailable},
}

// writeServiceError maps a service error onto its status code. Unknown errors are logged
// and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.kind) {
			msg := strings.TrimPrefix(err.Error(), e.kind.Error()+": ")
			utils.SendJSONError(w, msg, e.status)
			return
		}
	}

	requestID, _ := r.Context().Value(utils.RequestIDKey).(string)
	log.Error().Err(err).Str("request_id", requestID).Str("action", action).Msg("Unhandled error")
	utils.SendJSONError(w, "internal server error", http.StatusInternalServerError)
}
