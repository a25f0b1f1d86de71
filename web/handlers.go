/* handlers.go
 * Contains the HTTP handlers for match sync, match state, team activity and the round timer
 */

package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"tugofwar/api/api"

	"github.com/go-chi/chi/v5"
)

func callerTeamID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(TeamIDHeader))
}

// SyncHandler fetches the latest judge submissions for a match and scores them
// Preconditions: Receives a POST with body {"matchId": "..."} and the caller's team in the X-Team-ID header
// Postconditions: Responds with the updated match, or the error status for why the sync was refused
func (s *Server) SyncHandler(w http.ResponseWriter, r *http.Request) {
	now := s.api.Clock.Now()
	if callerTeamID(r) == "" {
		writeError(w, r, api.ErrUnauthorized, now, "")
		return
	}

	var req syncRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.MatchID) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "matchId is required"})
		return
	}

	result, err := s.api.Sync(r.Context(), req.MatchID, callerTeamID(r))
	if err != nil {
		writeError(w, r, err, now, "An error occurred while syncing submissions. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Success: true, Match: result, Warnings: result.Warnings})
}

// MatchHandler returns the caller's view of a match
func (s *Server) MatchHandler(w http.ResponseWriter, r *http.Request) {
	state, err := s.api.GetMatchState(r.Context(), chi.URLParam(r, "matchId"), callerTeamID(r))
	if err != nil {
		writeError(w, r, err, s.api.Clock.Now(), "Failed to fetch match details")
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{Success: true, Match: state})
}

// RoundStateHandler returns the round 1 timer. Any identified caller may read it
func (s *Server) RoundStateHandler(w http.ResponseWriter, r *http.Request) {
	if callerTeamID(r) == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
		return
	}
	view, err := s.api.GetRoundState(r.Context())
	if err != nil {
		writeError(w, r, err, s.api.Clock.Now(), "Failed to get round state")
		return
	}
	writeJSON(w, http.StatusOK, roundStateResponse{Success: true, RoundStateView: view})
}

// ActivityHandler returns the caller's latest scored submissions across its matches
// Preconditions: Receives a GET with an optional ?limit=N and the caller's team in the X-Team-ID header
// Postconditions: Responds with the entries newest first
func (s *Server) ActivityHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a number"})
			return
		}
		limit = n
	}
	activity, err := s.api.GetTeamActivity(r.Context(), callerTeamID(r), limit)
	if err != nil {
		writeError(w, r, err, s.api.Clock.Now(), "Failed to load activity")
		return
	}
	writeJSON(w, http.StatusOK, activityResponse{Success: true, Activity: activity})
}

// HealthHandler reports whether the database is reachable
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.api.Store.Ping(r.Context()); err != nil {
		writeError(w, r, err, s.api.Clock.Now(), "Database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
