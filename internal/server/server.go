// Package server exposes the gateway's HTTP API: data source catalog
// management, ad hoc queries, trigger administration and message
// resolution.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hansduf/WA-Integrasi-sub000/internal/auth"
	"github.com/hansduf/WA-Integrasi-sub000/internal/datasource"
	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
	"github.com/hansduf/WA-Integrasi-sub000/internal/status"
	"github.com/hansduf/WA-Integrasi-sub000/internal/trigger"
	"github.com/hansduf/WA-Integrasi-sub000/pkg/api"
	"github.com/hansduf/WA-Integrasi-sub000/pkg/models"
)

// Config holds the server's collaborators and tunables.
type Config struct {
	Sources  *datasource.Manager
	Triggers *trigger.Store
	Engine   *trigger.Engine
	Status   status.StatusChecker
	Summary  *status.SummaryRecorder

	// Authenticator and Authorizer gate the API. Both nil disables auth
	// entirely (development mode).
	Authenticator auth.Authenticator
	Authorizer    *auth.AuthorizationService

	// LogWriter receives one JSON line per request. Nil disables request
	// logging.
	LogWriter io.Writer
}

// Server is the gateway HTTP handler.
type Server struct {
	cfg Config

	logMu sync.Mutex
	mux   *http.ServeMux
}

// New creates the gateway server and registers its routes.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	m := s.mux

	m.HandleFunc("GET "+api.EndpointHealth, s.handleHealth)
	m.HandleFunc("GET "+api.EndpointReady, s.handleReady)
	m.HandleFunc("GET /api/v1/status", s.handleStatus)

	m.HandleFunc("GET "+api.EndpointDataSources, s.authed(auth.ActionQuery, s.handleListDataSources))
	m.HandleFunc("POST "+api.EndpointDataSources, s.authed(auth.ActionManageDataSources, s.handleCreateDataSource))
	m.HandleFunc("POST "+api.EndpointDataSources+"/connect", s.authed(auth.ActionManageDataSources, s.handleConnectAll))
	m.HandleFunc("GET "+api.EndpointDataSources+"/{id}", s.authed(auth.ActionQuery, s.handleGetDataSource))
	m.HandleFunc("PUT "+api.EndpointDataSources+"/{id}", s.authed(auth.ActionManageDataSources, s.handleUpdateDataSource))
	m.HandleFunc("DELETE "+api.EndpointDataSources+"/{id}", s.authed(auth.ActionManageDataSources, s.handleDeleteDataSource))
	m.HandleFunc("POST "+api.EndpointDataSources+"/{id}/test", s.authed(auth.ActionManageDataSources, s.handleTestDataSource))
	m.HandleFunc("GET "+api.EndpointDataSources+"/{id}/schema", s.authed(auth.ActionQuery, s.handleSchema))
	m.HandleFunc("GET "+api.EndpointDataSources+"/{id}/tags", s.authed(auth.ActionQuery, s.handleTags))
	m.HandleFunc("POST "+api.EndpointDataSources+"/{id}/query", s.authed(auth.ActionQuery, s.handleQuery))

	m.HandleFunc("GET "+api.EndpointTriggers, s.authed(auth.ActionResolve, s.handleListTriggers))
	m.HandleFunc("POST "+api.EndpointTriggers, s.authed(auth.ActionManageTriggers, s.handleCreateTrigger))
	m.HandleFunc("GET "+api.EndpointTriggers+"/{id}", s.authed(auth.ActionResolve, s.handleGetTrigger))
	m.HandleFunc("PUT "+api.EndpointTriggers+"/{id}", s.authed(auth.ActionManageTriggers, s.handleUpdateTrigger))
	m.HandleFunc("DELETE "+api.EndpointTriggers+"/{id}", s.authed(auth.ActionManageTriggers, s.handleDeleteTrigger))
	m.HandleFunc("POST "+api.EndpointTriggers+"/{id}/execute", s.authed(auth.ActionResolve, s.handleExecuteTrigger))
	m.HandleFunc("DELETE "+api.EndpointTriggerNames+"/{name}", s.authed(auth.ActionManageTriggers, s.handleDeleteName))

	m.HandleFunc("GET "+api.EndpointGroups, s.authed(auth.ActionResolve, s.handleListGroups))
	m.HandleFunc("POST "+api.EndpointGroups, s.authed(auth.ActionManageTriggers, s.handleCreateGroup))
	m.HandleFunc("GET "+api.EndpointGroups+"/{id}", s.authed(auth.ActionResolve, s.handleGetGroup))
	m.HandleFunc("PUT "+api.EndpointGroups+"/{id}", s.authed(auth.ActionManageTriggers, s.handleUpdateGroup))
	m.HandleFunc("DELETE "+api.EndpointGroups+"/{id}", s.authed(auth.ActionManageTriggers, s.handleDeleteGroup))
	m.HandleFunc("POST "+api.EndpointGroups+"/{id}/execute", s.authed(auth.ActionResolve, s.handleExecuteGroup))

	m.HandleFunc("POST "+api.EndpointResolve, s.authed(auth.ActionResolve, s.handleResolve))
	m.HandleFunc("POST "+api.EndpointMessage, s.authed(auth.ActionResolve, s.handleMessage))
}

// ServeHTTP implements http.Handler with request id assignment and
// request logging around the mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(api.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(api.HeaderRequestID, requestID)

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logRequest(requestID, r, rec.status, time.Since(start))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type requestLogEntry struct {
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	DurMs     int64  `json:"duration_ms"`
	User      string `json:"user,omitempty"`
}

func (s *Server) logRequest(requestID string, r *http.Request, statusCode int, dur time.Duration) {
	if s.cfg.LogWriter == nil {
		return
	}
	entry := requestLogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID,
		Method:    r.Method,
		Path:      r.URL.Path,
		Status:    statusCode,
		DurMs:     dur.Milliseconds(),
	}
	if u := auth.UserFromContext(r.Context()); u != nil {
		entry.User = u.ID
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	s.logMu.Lock()
	defer s.logMu.Unlock()
	s.cfg.LogWriter.Write(append(line, '\n'))
}

// authed wraps a handler with token authentication and an action grant
// check. With no authenticator configured the handler runs as-is.
func (s *Server) authed(action auth.Action, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Authenticator == nil {
			next(w, r)
			return
		}

		token := strings.TrimPrefix(r.Header.Get(api.HeaderAuthorization), "Bearer ")
		user, err := s.cfg.Authenticator.ValidateToken(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}
		if s.cfg.Authorizer != nil {
			if err := s.cfg.Authorizer.Authorize(r.Context(), user, action); err != nil {
				writeError(w, err)
				return
			}
		}
		next(w, r.WithContext(auth.ContextWithUser(r.Context(), user)))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": api.Version})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result, err := s.cfg.Status.GetStatus(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	code := http.StatusOK
	if !result.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.cfg.Status.GetStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	payload := map[string]any{"status": result}
	if s.cfg.Summary != nil {
		payload["usage"] = s.cfg.Summary.Summary()
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set(api.HeaderContentType, api.ContentTypeJSON)
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps error kinds to HTTP status codes and renders the
// uniform error payload.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch errors.KindOf(err) {
	case errors.KindValidation, errors.KindUnsupportedQuery, errors.KindAmbiguousName, errors.KindUnknownPlugin:
		code = http.StatusBadRequest
	case errors.KindNotFound:
		code = http.StatusNotFound
	case errors.KindAuthFailed:
		code = http.StatusUnauthorized
	case errors.KindAccessDenied:
		code = http.StatusForbidden
	case errors.KindBackendUnavailable:
		code = http.StatusBadGateway
	case errors.KindQueryExecution:
		code = http.StatusUnprocessableEntity
	}

	resp := models.ErrorResponse{Error: err.Error(), Code: code}
	var ge *errors.GatewayError
	if stderrors.As(err, &ge) {
		resp.Error = ge.Message
		resp.Reason = ge.Reason
		resp.Suggestion = ge.Suggestion
		if ge.Cause != nil {
			if resp.Reason != "" {
				resp.Reason += ": " + ge.Cause.Error()
			} else {
				resp.Reason = ge.Cause.Error()
			}
		}
	}
	writeJSON(w, code, resp)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.NewValidationMsg(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}
