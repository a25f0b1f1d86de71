/* errors.go
 * Maps api errors onto HTTP responses. Internal failures are logged in full and answered with a generic message
 */

package web

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
	"tugofwar/api/api"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

// writeError answers with the status code for err. now is used to compute Retry-After on rate limited requests
func writeError(w http.ResponseWriter, r *http.Request, err error, now time.Time, internalMsg string) {
	var rateErr *api.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		resetIn := int64(math.Ceil(rateErr.ResetTime.Sub(now).Seconds()))
		if resetIn < 0 {
			resetIn = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rateErr.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rateErr.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rateErr.ResetTime.UnixMilli(), 10))
		w.Header().Set("Retry-After", strconv.FormatInt(resetIn, 10))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error: "Rate limit exceeded. Try again in " + strconv.FormatInt(resetIn, 10) + " seconds.",
		})
	case errors.Is(err, api.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: clientMessage(err)})
	case errors.Is(err, api.ErrMatchNotActive):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Match is not active"})
	case errors.Is(err, api.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized - Please login"})
	case errors.Is(err, api.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "Forbidden - You are not part of this match"})
	case errors.Is(err, api.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Match not found"})
	case errors.Is(err, api.ErrStateConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: clientMessage(err)})
	default:
		log.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: internalMsg})
	}
}

// clientMessage strips the sentinel prefix from a wrapped validation or conflict error, leaving the reason
func clientMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}
