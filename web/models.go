package web

import (
	"time"
	"tugofwar/api/api"

	"github.com/prometheus/client_golang/prometheus"
)

// TeamIDHeader carries the caller's team id. It is set by the authenticating proxy in front of this
// service and trusted as is
const TeamIDHeader = "X-Team-ID"

// maxBodyBytes bounds request bodies, the only body accepted is {"matchId": "..."}
const maxBodyBytes = 1 << 10

// Config holds the configuration for the web server
type Config struct {
	Addr         string
	API          *api.API
	Gatherer     prometheus.Gatherer // served on /metrics when set
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the HTTP server that exposes the match endpoints
type Server struct {
	api *api.API
}

func NewServer(apiPtr *api.API) *Server {
	return &Server{api: apiPtr}
}

type syncRequest struct {
	MatchID string `json:"matchId"`
}

type syncResponse struct {
	Success  bool           `json:"success"`
	Match    api.SyncResult `json:"match"`
	Warnings []string       `json:"warnings,omitempty"`
}

type matchResponse struct {
	Success bool           `json:"success"`
	Match   api.MatchState `json:"match"`
}

type roundStateResponse struct {
	Success bool `json:"success"`
	api.RoundStateView
}

type activityResponse struct {
	Success  bool                `json:"success"`
	Activity []api.ActivityEntry `json:"activity"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
