package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/redbco/sqlbridge/internal/database/mssql"
	"github.com/redbco/sqlbridge/internal/database/mysql"
	"github.com/redbco/sqlbridge/internal/database/oracle"
	"github.com/redbco/sqlbridge/internal/database/postgres"
	"github.com/redbco/sqlbridge/pkg/anchor/adapter"
	"github.com/redbco/sqlbridge/pkg/dbcapabilities"
	"github.com/redbco/sqlbridge/pkg/logger"
)

// ConnectionRequest describes a connection to open. It is not retained;
// only Oracle keeps the credentials for its session.
type ConnectionRequest struct {
	DBType           string
	ConnectionString string
	Username         *string
	Password         *string
	PoolOptions      adapter.PoolOptions
}

func (r ConnectionRequest) config() adapter.ConnectionConfig {
	cfg := adapter.NewConnectionConfig(r.ConnectionString, r.PoolOptions)
	cfg.Username = r.Username
	cfg.Password = r.Password
	return cfg
}

// ConnectionInfo is a registry entry as reported by List.
type ConnectionInfo struct {
	ID     string                    `json:"id"`
	DBType dbcapabilities.DatabaseID `json:"db_type"`
}

// Dialer opens the backend connection for kind.
type Dialer func(ctx context.Context, kind dbcapabilities.DatabaseID, cfg adapter.ConnectionConfig) (Connection, error)

// ConnectionRegistry maps connection ids to live connections. Lookups run
// concurrently; Add and Remove take the write lock only to change the map.
type ConnectionRegistry struct {
	connections map[string]Connection
	mu          sync.RWMutex
	logger      atomic.Pointer[logger.Logger]
	dial        Dialer
}

// NewConnectionRegistry creates an empty registry that dials real backends.
func NewConnectionRegistry() *ConnectionRegistry {
	return NewConnectionRegistryWithDialer(Dial)
}

// NewConnectionRegistryWithDialer creates an empty registry that opens
// connections with d.
func NewConnectionRegistryWithDialer(d Dialer) *ConnectionRegistry {
	return &ConnectionRegistry{
		connections: make(map[string]Connection),
		dial:        d,
	}
}

// Dial opens the backend connection for kind with the native client library.
func Dial(ctx context.Context, kind dbcapabilities.DatabaseID, cfg adapter.ConnectionConfig) (Connection, error) {
	switch kind {
	case dbcapabilities.PostgreSQL:
		c, err := postgres.Connect(ctx, cfg)
		if err != nil {
			return Connection{}, err
		}
		return NewPostgresConnection(c), nil
	case dbcapabilities.MySQL:
		c, err := mysql.Connect(ctx, cfg)
		if err != nil {
			return Connection{}, err
		}
		return NewMySQLConnection(c), nil
	case dbcapabilities.SQLServer:
		c, err := mssql.Connect(ctx, cfg)
		if err != nil {
			return Connection{}, err
		}
		return NewMSSQLConnection(c), nil
	case dbcapabilities.Oracle:
		c, err := oracle.Connect(ctx, cfg)
		if err != nil {
			return Connection{}, err
		}
		return NewOracleConnection(c), nil
	default:
		return Connection{}, adapter.NewConfigurationError(kind, "db_type", fmt.Sprintf("unsupported database type: %s", kind))
	}
}

// SetLogger sets the logger for the registry
func (r *ConnectionRegistry) SetLogger(l *logger.Logger) {
	r.logger.Store(l)
}

// safeLog safely logs a message if logger is available
func (r *ConnectionRegistry) safeLog(level string, format string, args ...interface{}) {
	l := r.logger.Load()
	if l == nil {
		return
	}
	switch level {
	case "info":
		l.Info(format, args...)
	case "error":
		l.Error(format, args...)
	case "warn":
		l.Warn(format, args...)
	case "debug":
		l.Debug(format, args...)
	}
}

// Validate checks the request without opening anything.
func Validate(req ConnectionRequest) (dbcapabilities.DatabaseID, error) {
	kind, ok := dbcapabilities.ParseID(req.DBType)
	if !ok {
		return "", adapter.NewConfigurationError("", "db_type", fmt.Sprintf("unsupported database type: %s", req.DBType))
	}
	if kind == dbcapabilities.Oracle {
		if err := oracle.ValidateConfig(req.config()); err != nil {
			return "", err
		}
	}
	return kind, nil
}

// Add validates the request, opens the backend connection and registers it
// under a new id. Nothing is registered when opening fails.
func (r *ConnectionRegistry) Add(ctx context.Context, req ConnectionRequest) (string, error) {
	kind, err := Validate(req)
	if err != nil {
		r.safeLog("warn", "Rejected connection request (type: %s): %v", req.DBType, err)
		return "", err
	}

	target := dbcapabilities.RedactConnectionString(req.ConnectionString)
	r.safeLog("info", "Connecting to %s at %s", kind, target)

	conn, err := r.dial(ctx, kind, req.config())
	if err != nil {
		r.safeLog("error", "Failed to connect to %s at %s: %v", kind, target, err)
		return "", err
	}

	id := uuid.NewString()

	r.mu.Lock()
	r.connections[id] = conn
	r.mu.Unlock()

	r.safeLog("info", "Registered %s connection %s", kind, id)
	return id, nil
}

// Get returns the connection registered under id.
func (r *ConnectionRegistry) Get(id string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[id]
	return conn, ok
}

// Remove unregisters id and closes its connection after the lock is
// released. Unknown ids are ignored. Close errors are logged, not returned.
func (r *ConnectionRegistry) Remove(id string) {
	r.mu.Lock()
	conn, ok := r.connections[id]
	delete(r.connections, id)
	r.mu.Unlock()

	if !ok {
		r.safeLog("debug", "Remove of unknown connection %s ignored", id)
		return
	}

	if err := conn.Close(); err != nil {
		r.safeLog("error", "Error closing connection %s: %v", id, err)
		return
	}
	r.safeLog("info", "Removed %s connection %s", conn.Kind(), id)
}

// List returns every registered connection ordered by id.
func (r *ConnectionRegistry) List() []ConnectionInfo {
	r.mu.RLock()
	infos := make([]ConnectionInfo, 0, len(r.connections))
	for id, conn := range r.connections {
		infos = append(infos, ConnectionInfo{ID: id, DBType: conn.Kind()})
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Len returns the number of registered connections.
func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// CheckHealth pings the connection registered under id.
func (r *ConnectionRegistry) CheckHealth(ctx context.Context, id string) error {
	conn, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", adapter.ErrConnectionNotFound, id)
	}
	return conn.Ping(ctx)
}

// DisconnectAll empties the registry and closes every connection
// concurrently. It returns the first close error, or ctx's error if ctx ends
// before every close has finished.
func (r *ConnectionRegistry) DisconnectAll(ctx context.Context) error {
	r.mu.Lock()
	connections := r.connections
	r.connections = make(map[string]Connection)
	r.mu.Unlock()

	if len(connections) == 0 {
		return nil
	}
	r.safeLog("info", "Disconnecting %d connections", len(connections))

	var g errgroup.Group
	g.SetLimit(8)
	for id, conn := range connections {
		id, conn := id, conn
		g.Go(func() error {
			if err := conn.Close(); err != nil {
				r.safeLog("error", "Error closing connection %s: %v", id, err)
				return fmt.Errorf("close %s: %w", id, err)
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
