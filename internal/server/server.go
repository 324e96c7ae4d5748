package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/audiolibrelab/recbridge/internal/config"
	"github.com/audiolibrelab/recbridge/internal/service"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the bridge operations over HTTP and streams events over WebSocket
type Server struct {
	service service.Service
	hub     *Hub
	addr    string
}

// PrepareRequest is the body of /recording/prepare
type PrepareRequest struct {
	Path     string                 `json:"path"`
	Settings map[string]interface{} `json:"settings"`
}

// ProfileRequest is the body of /config/select
type ProfileRequest struct {
	Profile string `json:"profile"`
}

// New creates a server for cfg. Events from the recording session are
// published on the server's hub.
func New(cfg *config.Config, configFile string) *Server {
	hub := NewHub()
	svc := service.New(cfg, configFile, service.Dependencies{Emitter: hub})
	return NewWithService(svc, hub, net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)))
}

// NewWithService creates a server around an existing service. The hub
// must be the emitter the service was built with.
func NewWithService(svc service.Service, hub *Hub, addr string) *Server {
	return &Server{service: svc, hub: hub, addr: addr}
}

// Handler returns the routes of the bridge
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/authorization", s.handleAuthorization)
	mux.HandleFunc("/notification-channel", s.handleNotificationChannel)
	mux.HandleFunc("/recording/prepare", s.handlePrepare)
	mux.HandleFunc("/recording/start", s.handleStart)
	mux.HandleFunc("/recording/stop", s.handleStop)
	mux.HandleFunc("/recording/pause", s.handlePause)
	mux.HandleFunc("/recording/resume", s.handleResume)
	mux.HandleFunc("/recording/status", s.handleStatus)
	mux.HandleFunc("/constants", s.handleConstants)
	mux.HandleFunc("/capabilities", s.handleCapabilities)
	mux.HandleFunc("/sources", s.handleSources)
	mux.HandleFunc("/config/select", s.handleSelectProfile)
	mux.Handle("/events", s.hub)
	return mux
}

// Run listens on the configured address until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve handles requests on listener until ctx is cancelled, then shuts the
// HTTP server down, disconnects event clients and tears the session down.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting recording bridge server",
		"addr", listener.Addr().String(),
		"events_url", fmt.Sprintf("ws://%s/events", listener.Addr().String()))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down recording bridge server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		s.hub.Close()
		s.service.Shutdown()
		if err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func (s *Server) handleAuthorization(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodGet) {
		return
	}
	granted, err := s.service.CheckAuthorizationStatus()
	if err != nil {
		s.sendBridgeError(w, err, "operation", "check_authorization")
		return
	}
	s.sendResult(w, granted)
}

func (s *Server) handleNotificationChannel(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}

	var channel map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&channel); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, service.CodeInvalidConfig,
			"Failed to parse channel config", "operation", "create_notification_channel", "error", err)
		return
	}

	if err := s.service.CreateNotificationChannel(channel); err != nil {
		s.sendBridgeError(w, err, "operation", "create_notification_channel")
		return
	}
	s.sendResult(w, nil)
}

func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}

	var req PrepareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, service.CodeInvalidConfig,
			"Failed to parse prepare request", "operation", "prepare", "error", err)
		return
	}

	slog.Debug("Prepare request received", "path", req.Path)
	path, err := s.service.PrepareRecordingAtPath(req.Path, req.Settings)
	if err != nil {
		s.sendBridgeError(w, err, "operation", "prepare", "path", req.Path)
		return
	}
	s.sendResult(w, path)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}
	path, err := s.service.StartRecording()
	if err != nil {
		s.sendBridgeError(w, err, "operation", "start")
		return
	}
	s.sendResult(w, path)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}
	path, err := s.service.StopRecording()
	if err != nil {
		s.sendBridgeError(w, err, "operation", "stop")
		return
	}
	s.sendResult(w, path)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.service.PauseRecording(); err != nil {
		s.sendBridgeError(w, err, "operation", "pause")
		return
	}
	s.sendResult(w, nil)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.service.ResumeRecording(); err != nil {
		s.sendBridgeError(w, err, "operation", "resume")
		return
	}
	s.sendResult(w, nil)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodGet) {
		return
	}
	s.sendResult(w, s.service.GetRecordStatus())
}

func (s *Server) handleConstants(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodGet) {
		return
	}
	s.sendResult(w, s.service.Constants())
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodGet) {
		return
	}
	caps := s.service.Capabilities()
	s.sendResult(w, map[string]interface{}{"pauseResume": caps.PauseResume})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodGet) {
		return
	}
	sources, err := s.service.ListSources()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError, service.CodeHardwareFailure,
			fmt.Sprintf("Failed to list sources: %v", err), "operation", "list_sources")
		return
	}

	result := make([]map[string]interface{}, 0, len(sources))
	for _, src := range sources {
		result = append(result, map[string]interface{}{
			"index": src.Index,
			"name":  src.Name,
			"id":    src.ID,
		})
	}
	s.sendResult(w, result)
}

func (s *Server) handleSelectProfile(w http.ResponseWriter, r *http.Request) {
	if !s.allowMethod(w, r, http.MethodPost) {
		return
	}

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Profile == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, service.CodeInvalidConfig,
			"Profile name is required", "operation", "select_profile")
		return
	}

	if err := s.service.LoadProfile(req.Profile); err != nil {
		s.sendBridgeError(w, err, "operation", "select_profile", "profile", req.Profile)
		return
	}
	s.sendResult(w, s.service.GetConfig().Name)
}

// allowMethod writes a 405 response and returns false unless r uses method
func (s *Server) allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   "Method not allowed",
	})
	return false
}

func (s *Server) sendResult(w http.ResponseWriter, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"result":  result,
	})
}

// sendBridgeError maps a service error to its HTTP status and code
func (s *Server) sendBridgeError(w http.ResponseWriter, err error, logContext ...interface{}) {
	code := service.ErrorCode(err)
	msg := err.Error()
	var bridgeErr *service.Error
	if errors.As(err, &bridgeErr) {
		msg = bridgeErr.Message
	}
	s.sendErrorResponse(w, httpStatus(code), code, msg, append(logContext, "error", err)...)
}

func httpStatus(code string) int {
	switch code {
	case service.CodeInvalidConfig:
		return http.StatusBadRequest
	case service.CodeInvalidState:
		return http.StatusConflict
	case service.CodeRecorderConfiguration:
		return http.StatusUnprocessableEntity
	case service.CodeUnsupportedOperation:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// sendErrorResponse logs the error and sends a JSON error response to the client
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, code, errorMsg string, logContext ...interface{}) {
	logFields := []interface{}{"error_message", errorMsg, "code", code, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"code":    code,
		"error":   errorMsg,
	})
}
