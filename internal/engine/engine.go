// Package engine serves the connection registry over HTTP.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/redbco/sqlbridge/internal/config"
	"github.com/redbco/sqlbridge/internal/database"
	"github.com/redbco/sqlbridge/pkg/logger"
)

type Engine struct {
	config   *config.Config
	registry *database.ConnectionRegistry
	server   *http.Server
	listener net.Listener
	logger   *logger.Logger
	state    struct {
		sync.Mutex
		isRunning         bool
		ongoingOperations int32
	}
	metrics struct {
		requestsProcessed int64
		queriesExecuted   int64
		errors            int64
	}
}

func NewEngine(cfg *config.Config, registry *database.ConnectionRegistry) *Engine {
	return &Engine{
		config:   cfg,
		registry: registry,
	}
}

// SetLogger sets the logger for the engine
func (e *Engine) SetLogger(logger *logger.Logger) {
	e.logger = logger
}

// Registry returns the registry the engine serves.
func (e *Engine) Registry() *database.ConnectionRegistry {
	return e.registry
}

// Handler returns the HTTP handler without starting a listener.
func (e *Engine) Handler() http.Handler {
	return NewServer(e)
}

// Start listens on the configured address and serves in the background.
func (e *Engine) Start(ctx context.Context) error {
	e.state.Lock()
	defer e.state.Unlock()
	if e.state.isRunning {
		return fmt.Errorf("engine is already running")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", e.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", e.config.Addr(), err)
	}

	e.listener = ln
	e.server = &http.Server{
		Handler:           NewServer(e),
		ReadHeaderTimeout: e.config.Server.RequestTimeout,
	}
	e.state.isRunning = true

	go func() {
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			atomic.AddInt64(&e.metrics.errors, 1)
			e.safeLog("error", "HTTP server stopped: %v", err)
		}
	}()

	e.safeLog("info", "Listening on %s", ln.Addr())
	return nil
}

// Addr is the bound listen address, or nil before Start.
func (e *Engine) Addr() net.Addr {
	e.state.Lock()
	defer e.state.Unlock()
	if e.listener == nil {
		return nil
	}
	return e.listener.Addr()
}

// Stop shuts the HTTP server down, then closes every registered connection.
func (e *Engine) Stop(ctx context.Context) error {
	e.state.Lock()
	if !e.state.isRunning {
		e.state.Unlock()
		return nil
	}
	e.state.isRunning = false
	server := e.server
	e.state.Unlock()

	var errs []error
	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if err := e.registry.DisconnectAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("disconnect: %w", err))
	}
	return errors.Join(errs...)
}

func (e *Engine) GetMetrics() map[string]int64 {
	return map[string]int64{
		"requests_processed": atomic.LoadInt64(&e.metrics.requestsProcessed),
		"queries_executed":   atomic.LoadInt64(&e.metrics.queriesExecuted),
		"errors":             atomic.LoadInt64(&e.metrics.errors),
	}
}

func (e *Engine) CheckHealth() error {
	e.state.Lock()
	defer e.state.Unlock()

	if !e.state.isRunning {
		return fmt.Errorf("service not initialized")
	}

	return nil
}

func (e *Engine) TrackOperation() {
	atomic.AddInt32(&e.state.ongoingOperations, 1)
}

func (e *Engine) UntrackOperation() {
	atomic.AddInt32(&e.state.ongoingOperations, -1)
}

func (e *Engine) ongoing() int32 {
	return atomic.LoadInt32(&e.state.ongoingOperations)
}

func (e *Engine) safeLog(level string, format string, args ...interface{}) {
	if e.logger == nil {
		return
	}
	switch level {
	case "info":
		e.logger.Info(format, args...)
	case "error":
		e.logger.Error(format, args...)
	case "warn":
		e.logger.Warn(format, args...)
	case "debug":
		e.logger.Debug(format, args...)
	}
}
