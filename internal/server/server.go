// Package server exposes the assistant over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"MediChat/internal/assistant"
	"MediChat/internal/protocol"
)

// Replier answers one turn of a session
type Replier interface {
	Reply(ctx context.Context, sessionID, message string) (protocol.Response, error)
}

// Server routes chat turns to a Replier over HTTP and WebSocket
type Server struct {
	router        *chi.Mux
	replier       Replier
	logger        *slog.Logger
	allowedOrigin string
	upgrader      websocket.Upgrader
}

// New builds the router. allowedOrigin "*" accepts any origin.
func New(replier Replier, allowedOrigin string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{allowedOrigin},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		MaxAge:         300,
	}))

	s := &Server{
		router:        r,
		replier:       replier,
		logger:        logger,
		allowedOrigin: allowedOrigin,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Post(protocol.ChatPath, s.handleChat)
	s.router.Get(protocol.WSPath, s.handleChatWS)
}

// Router returns the HTTP handler with all routes and middleware
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req protocol.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: "invalid JSON body"})
		return
	}

	resp, err := s.replier.Reply(r.Context(), req.SessionID, req.Message)
	if err != nil {
		status, msg := s.classify(err, req.SessionID, middleware.GetReqID(r.Context()))
		writeJSON(w, status, protocol.ErrorResponse{Error: msg})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	reqID := middleware.GetReqID(r.Context())
	s.logger.Debug("websocket connected", "request_id", reqID, "remote", r.RemoteAddr)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", "request_id", reqID, "error", err)
			}
			return
		}

		var req protocol.ChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if werr := conn.WriteJSON(protocol.ErrorResponse{Error: "invalid JSON frame"}); werr != nil {
				return
			}
			continue
		}

		resp, err := s.replier.Reply(r.Context(), req.SessionID, req.Message)
		if err != nil {
			_, msg := s.classify(err, req.SessionID, reqID)
			if werr := conn.WriteJSON(protocol.ErrorResponse{Error: msg}); werr != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Warn("websocket write failed", "request_id", reqID, "error", err)
			return
		}
	}
}

func (s *Server) classify(err error, sessionID, reqID string) (int, string) {
	if errors.Is(err, assistant.ErrInvalidRequest) {
		return http.StatusBadRequest, err.Error()
	}
	s.logger.Error("reply failed", "request_id", reqID, "session_id", sessionID, "error", err)
	return http.StatusInternalServerError, "failed to generate reply"
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.allowedOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == s.allowedOrigin
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
