package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gorilla/mux"

	"github.com/redbco/sqlbridge/internal/database"
	"github.com/redbco/sqlbridge/pkg/anchor/adapter"
	"github.com/redbco/sqlbridge/pkg/dbcapabilities"
)

const invalidConnectionID = "Invalid connection ID"

type Server struct {
	engine *Engine
	router *mux.Router
}

func NewServer(engine *Engine) *Server {
	s := &Server{
		engine: engine,
		router: mux.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	// CORS middleware
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Request accounting
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.engine.TrackOperation()
			defer s.engine.UntrackOperation()
			atomic.AddInt64(&s.engine.metrics.requestsProcessed, 1)
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	// Global OPTIONS handler for CORS preflight requests
	s.router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodOptions)

	s.router.HandleFunc("/connect", s.handleConnect).Methods(http.MethodPost)
	s.router.HandleFunc("/disconnect", s.handleDisconnect).Methods(http.MethodPost)
	s.router.HandleFunc("/connections", s.handleListConnections).Methods(http.MethodGet)
	s.router.HandleFunc("/connections/{id}", s.handleDeleteConnection).Methods(http.MethodDelete)
	s.router.HandleFunc("/connections/{id}/health", s.handleConnectionHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/sql", s.handleSQL).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if timeout := s.engine.config.Server.RequestTimeout; timeout > 0 {
		return context.WithTimeout(r.Context(), timeout)
	}
	return context.WithCancel(r.Context())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	id, err := s.engine.registry.Add(ctx, database.ConnectionRequest{
		DBType:           req.DBType,
		ConnectionString: req.ConnectionString,
		Username:         req.Username,
		Password:         req.Password,
		PoolOptions:      req.PoolOptions.Merge(s.engine.config.Pool),
	})
	switch {
	case err == nil:
	case adapter.IsConfigurationError(err):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case adapter.IsConnectionError(err):
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, ConnectionResponse{
		ID:               id,
		ConnectionString: dbcapabilities.RedactConnectionString(req.ConnectionString),
	})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	var req DisconnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.engine.registry.Remove(req.ConnectionID)
	s.writeJSON(w, http.StatusOK, ConnectionResponse{ID: req.ConnectionID})
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.engine.registry.Remove(id)
	s.writeJSON(w, http.StatusOK, ConnectionResponse{ID: id})
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, ListConnectionsResponse{Connections: s.engine.registry.List()})
}

func (s *Server) handleConnectionHealth(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ctx, cancel := s.requestContext(r)
	defer cancel()

	err := s.engine.registry.CheckHealth(ctx, id)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, ConnectionHealthResponse{ID: id, Status: "ok"})
	case adapter.IsNotFound(err), adapter.IsClosed(err):
		s.writeError(w, http.StatusNotFound, invalidConnectionID)
	default:
		s.engine.safeLog("warn", "Health check on %s failed: %v", id, err)
		s.writeJSON(w, http.StatusServiceUnavailable, ConnectionHealthResponse{ID: id, Status: "unhealthy", Error: err.Error()})
	}
}

func (s *Server) handleSQL(w http.ResponseWriter, r *http.Request) {
	var req SQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conn, ok := s.engine.registry.Get(req.ConnectionID)
	if !ok {
		s.writeError(w, http.StatusNotFound, invalidConnectionID)
		return
	}

	if s.engine.config.Query.SelectOnly && !isSelect(req.Query) {
		s.writeError(w, http.StatusBadRequest, "Only SELECT queries are allowed")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	rows, err := conn.ExecuteQuery(ctx, req.Query)
	if err != nil {
		if adapter.IsClosed(err) {
			s.writeError(w, http.StatusNotFound, invalidConnectionID)
			return
		}
		s.engine.safeLog("warn", "Query on %s failed: %v", req.ConnectionID, err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	atomic.AddInt64(&s.engine.metrics.queriesExecuted, 1)
	s.writeJSON(w, http.StatusOK, SQLResponse{Rows: rows})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := s.engine.CheckHealth(); err != nil {
		status = "stopped"
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:         status,
		Connections:    s.engine.registry.Len(),
		ActiveRequests: s.engine.ongoing(),
		Metrics:        s.engine.GetMetrics(),
	})
}

// isSelect reports whether query starts with SELECT, ignoring case and
// leading whitespace.
func isSelect(query string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.engine.safeLog("error", "Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	if status >= http.StatusInternalServerError {
		atomic.AddInt64(&s.engine.metrics.errors, 1)
	}
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
