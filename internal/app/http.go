package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/metrics"
)

type readinessCheck struct {
	name  string
	check func(context.Context) error
}

type HTTPServer struct {
	service     *Service
	corsOrigin  string
	metricsPath string
	logger      logrus.FieldLogger
	checks      []readinessCheck
}

func NewHTTPServer(service *Service, corsOrigin, metricsPath string, logger logrus.FieldLogger) *HTTPServer {
	s := &HTTPServer{service: service, corsOrigin: corsOrigin, metricsPath: metricsPath, logger: logger}
	s.AddReadinessCheck("database", service.Ping)
	return s
}

// AddReadinessCheck registers a dependency reported by /api/ready.
func (s *HTTPServer) AddReadinessCheck(name string, check func(context.Context) error) {
	s.checks = append(s.checks, readinessCheck{name: name, check: check})
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(s.routes())
}

func (s *HTTPServer) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.observeRoute)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/api/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)
	if s.metricsPath != "" {
		router.Handle(s.metricsPath, metrics.Handler()).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.authed(s.handleLogout)).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", s.authed(s.handleMe)).Methods(http.MethodGet)

	api.HandleFunc("/boards", s.authed(s.handleListBoards)).Methods(http.MethodGet)
	api.HandleFunc("/boards", s.authed(s.handleCreateBoard)).Methods(http.MethodPost)
	api.HandleFunc("/boards/{id}", s.authed(s.handleGetBoard)).Methods(http.MethodGet)
	api.HandleFunc("/boards/{id}", s.authed(s.handleUpdateBoard)).Methods(http.MethodPut)
	api.HandleFunc("/boards/{id}", s.authed(s.handleDeleteBoard)).Methods(http.MethodDelete)
	api.HandleFunc("/boards/{id}/export", s.authed(s.handleExportBoard)).Methods(http.MethodPost)

	api.HandleFunc("/lists", s.authed(s.handleListLists)).Methods(http.MethodGet)
	api.HandleFunc("/lists", s.authed(s.handleCreateList)).Methods(http.MethodPost)
	api.HandleFunc("/lists/{id}", s.authed(s.handleUpdateList)).Methods(http.MethodPut)
	api.HandleFunc("/lists/{id}", s.authed(s.handleDeleteList)).Methods(http.MethodDelete)
	api.HandleFunc("/lists/{id}/move", s.authed(s.handleMoveList)).Methods(http.MethodPut)

	api.HandleFunc("/cards", s.authed(s.handleListCards)).Methods(http.MethodGet)
	api.HandleFunc("/cards", s.authed(s.handleCreateCard)).Methods(http.MethodPost)
	api.HandleFunc("/cards/{id}", s.authed(s.handleGetCard)).Methods(http.MethodGet)
	api.HandleFunc("/cards/{id}", s.authed(s.handleUpdateCard)).Methods(http.MethodPut)
	api.HandleFunc("/cards/{id}", s.authed(s.handleDeleteCard)).Methods(http.MethodDelete)
	api.HandleFunc("/cards/{id}/move", s.authed(s.handleMoveCard)).Methods(http.MethodPut)
	api.HandleFunc("/cards/{id}/complete", s.authed(s.handleToggleCard)).Methods(http.MethodPut)

	api.HandleFunc("/search", s.authed(s.handleSearch)).Methods(http.MethodGet)
	return router
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	for _, c := range s.checks {
		if err := c.check(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[c.name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[c.name] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, session Session)

func (s *HTTPServer) authed(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		next(w, r, session)
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Access token required", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Access token expired", nil)
			return Session{}, false
		}
		if !errors.Is(err, auth.ErrInvalidToken) {
			s.requestLogger(r).WithError(err).Warn("resolve session")
		}
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid access token", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		s.logger.WithFields(logrus.Fields{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      writer.status,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("request")
	})
}

// observeRoute records request metrics under the matched route template so
// ids in the path do not explode label cardinality.
func (s *HTTPServer) observeRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(writer, r)
		metrics.ObserveHTTP(r.Method, route, writer.status, time.Since(started))
	})
}

func (s *HTTPServer) requestLogger(r *http.Request) logrus.FieldLogger {
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return s.logger.WithField("request_id", id)
	}
	return s.logger
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	response := map[string]any{"success": true, "data": data}
	if message != "" {
		response["message"] = message
	}
	writeJSON(w, status, response)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"success": false,
		"code":    code,
		"message": message,
	}
	if details != nil {
		response["errors"] = details
	}
	writeJSON(w, status, response)
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.requestLogger(r).WithError(err).Error("request failed")
	}
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func queryInt(r *http.Request, key string) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return value
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		status = domainErr.Status
		if status == 0 {
			status = kindStatus[domainErr.Kind]
		}
		return status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	translated := translate(err, "resource")
	if errors.As(translated, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body RegisterInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.Register(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "User registered successfully", presentSession(session))
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body LoginInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.Login(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Login successful", presentSession(session))
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", presentSession(session))
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.Logout(r.Context(), session, body.RefreshToken); err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Logged out", nil)
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request, session Session) {
	user, err := s.service.Me(r.Context(), session)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", presentUser(user))
}
