// Package http exposes step tracking to the application layer. Only reads and
// lifecycle commands are available; step counts cannot be written through it.
package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/step-tracker/pkg/rate"
	"github.com/code-payments/step-tracker/pkg/steps/appstate"
	"github.com/code-payments/step-tracker/pkg/steps/tracker"
)

const dayLayout = "2006-01-02"

// Walker simulates steps. It is only wired up when running against a
// simulated sensor.
type Walker interface {
	Walk(ctx context.Context, n int64) (int, error)
}

type Option func(*Server)

// WithWalker enables the debug walk endpoint
func WithWalker(walker Walker) Option {
	return func(s *Server) {
		s.walker = walker
	}
}

type Server struct {
	log  *logrus.Entry
	conf *conf

	coordinator *tracker.Coordinator
	poller      *appstate.Poller
	limiter     rate.Limiter
	walker      Walker
}

func NewServer(coordinator *tracker.Coordinator, poller *appstate.Poller, configProvider ConfigProvider, opts ...Option) *Server {
	conf := configProvider()

	var limiter rate.Limiter = &rate.NoLimiter{}
	if limit := conf.refreshRateLimit.Get(context.Background()); limit > 0 {
		limiter = rate.NewLocalRateLimiter(xrate.Limit(limit), int(limit))
	}

	s := &Server{
		log:         logrus.StandardLogger().WithField("type", "steps/server/http"),
		conf:        conf,
		coordinator: coordinator,
		poller:      poller,
		limiter:     limiter,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Router returns a router serving every endpoint
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/steps/today", s.handleGetToday).Methods(http.MethodGet)
	v1.HandleFunc("/steps/status", s.handleGetStatus).Methods(http.MethodGet)
	v1.HandleFunc("/steps/refresh", s.handleRefresh).Methods(http.MethodPost)
	v1.HandleFunc("/steps/init", s.handleInit).Methods(http.MethodPost)
	v1.HandleFunc("/steps/stop", s.handleStop).Methods(http.MethodPost)
	v1.HandleFunc("/app/state", s.handleAppState).Methods(http.MethodPost)

	if s.walker != nil {
		v1.HandleFunc("/debug/walk", s.handleWalk).Methods(http.MethodPost)
	}

	return r
}

type todayResponse struct {
	Steps int64  `json:"steps"`
	Day   string `json:"day"`
}

type statusResponse struct {
	Available  bool   `json:"available"`
	Permission string `json:"permission"`
	Listening  bool   `json:"listening"`
	State      string `json:"state"`
}

type refreshResponse struct {
	Steps     int64 `json:"steps"`
	Confirmed bool  `json:"confirmed"`
}

type initResponse struct {
	Success bool           `json:"success"`
	Status  statusResponse `json:"status"`
}

type appStateRequest struct {
	State string `json:"state"`
}

type appStateResponse struct {
	State      string `json:"state"`
	Reconciled bool   `json:"reconciled"`
	Steps      int64  `json:"steps"`
}

type walkRequest struct {
	Steps int64 `json:"steps"`
}

type walkResponse struct {
	Delivered int `json:"delivered"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleGetToday(w http.ResponseWriter, r *http.Request) {
	if s.poller.HasSteps() {
		snapshot := s.poller.Get()
		s.writeJSON(w, http.StatusOK, &todayResponse{Steps: snapshot.Steps, Day: snapshot.Day})
		return
	}

	s.writeJSON(w, http.StatusOK, &todayResponse{
		Steps: s.coordinator.GetTodaySteps(r.Context()),
		Day:   s.coordinator.Today().Format(dayLayout),
	})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.status(r.Context()))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	allowed, err := s.limiter.Allow(clientKey(r))
	if err != nil {
		s.log.WithError(err).Warn("failure checking refresh rate limit")
	} else if !allowed {
		s.writeError(w, http.StatusTooManyRequests, "refresh rate limited")
		return
	}

	ctx := r.Context()

	result := s.coordinator.ReconcileSteps(ctx)

	s.poller.Publish(s.coordinator.GetTodaySteps(ctx))
	s.poller.RefreshStatus(ctx)

	s.writeJSON(w, http.StatusOK, &refreshResponse{
		Steps:     result.Steps,
		Confirmed: result.Confirmed,
	})
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	success := s.coordinator.Init(ctx)

	s.poller.RefreshSteps(ctx)
	s.poller.RefreshStatus(ctx)

	s.writeJSON(w, http.StatusOK, &initResponse{
		Success: success,
		Status:  *s.status(ctx),
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.coordinator.StopTracking(ctx); err != nil {
		s.log.WithError(err).Warn("failure stopping step tracking")
		s.writeError(w, http.StatusInternalServerError, "failed to stop tracking")
		return
	}

	s.poller.RefreshStatus(ctx)
	s.writeJSON(w, http.StatusOK, s.status(ctx))
}

func (s *Server) handleAppState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req appStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	next, ok := tracker.ParseAppState(req.State)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown app state")
		return
	}

	result := s.coordinator.HandleAppStateChange(ctx, next)
	if result != nil {
		s.poller.RefreshSteps(ctx)
	}

	resp := &appStateResponse{
		State:      string(next),
		Reconciled: result != nil,
	}
	if result != nil {
		resp.Steps = result.Steps
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWalk(w http.ResponseWriter, r *http.Request) {
	var req walkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if req.Steps < 0 {
		s.writeError(w, http.StatusBadRequest, "steps must be non-negative")
		return
	}

	delivered, err := s.walker.Walk(r.Context(), req.Steps)
	if err != nil {
		s.log.WithError(err).Warn("failure simulating steps")
		s.writeError(w, http.StatusInternalServerError, "failed to simulate steps")
		return
	}

	s.writeJSON(w, http.StatusOK, &walkResponse{Delivered: delivered})
}

func (s *Server) status(ctx context.Context) *statusResponse {
	status := s.coordinator.Status(ctx)
	return &statusResponse{
		Available:  status.Available,
		Permission: status.Permission.String(),
		Listening:  status.Listening,
		State:      s.coordinator.State().String(),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Warn("failure writing response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, &errorResponse{Error: message})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Trace("handled request")
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
