// Package postgres is the PostgreSQL backend, built on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"math"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/redbco/sqlbridge/pkg/anchor/adapter"
	"github.com/redbco/sqlbridge/pkg/dbcapabilities"
	"github.com/redbco/sqlbridge/pkg/rowvalue"
)

// Connection owns one pgx pool. It is safe for concurrent use and is shared
// by pointer; the pool handle is the shared resource.
type Connection struct {
	pool      *pgxpool.Pool
	config    adapter.ConnectionConfig
	connected int32
}

// Connect parses the connection string, applies the pool options and checks
// that one connection can be acquired.
func Connect(ctx context.Context, config adapter.ConnectionConfig) (*Connection, error) {
	poolConfig, err := buildPoolConfig(config)
	if err != nil {
		return nil, adapter.NewConnectionError(dbcapabilities.PostgreSQL, config.ConnectionString, err)
	}

	// The pool keeps this context for its background MinConns fill, so it
	// must not end with the caller's request.
	pool, err := newPool(context.WithoutCancel(ctx), poolConfig)
	if err != nil {
		return nil, adapter.NewConnectionError(dbcapabilities.PostgreSQL, config.ConnectionString, err)
	}

	// Test the connection
	pingCtx, cancel := acquireContext(ctx, config.PoolOptions)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, adapter.NewConnectionError(dbcapabilities.PostgreSQL, config.ConnectionString, err)
	}

	return &Connection{
		pool:      pool,
		config:    config,
		connected: 1,
	}, nil
}

var newPool = pgxpool.NewWithConfig

// buildPoolConfig translates PoolOptions into pgxpool knobs. Values are not
// validated here; pgxpool rejects what it cannot use.
func buildPoolConfig(config adapter.ConnectionConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, err
	}

	opts := config.PoolOptions
	poolConfig.MaxConns = clampInt32(opts.MaxConnections)
	poolConfig.MinConns = clampInt32(opts.MinConnections)
	poolConfig.MaxConnIdleTime = opts.IdleTimeout()
	poolConfig.MaxConnLifetime = opts.MaxLifetime()

	// Query text goes to the server as-is, never as a prepared statement.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	poolConfig.ConnConfig.StatementCacheCapacity = 0
	poolConfig.ConnConfig.DescriptionCacheCapacity = 0

	return poolConfig, nil
}

func clampInt32(v uint32) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(v)
}

func acquireContext(ctx context.Context, opts adapter.PoolOptions) (context.Context, context.CancelFunc) {
	if opts.AcquireTimeout() <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, opts.AcquireTimeout())
}

// IsConnected checks if the connection is still active.
func (c *Connection) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// Ping checks that a pooled connection answers.
func (c *Connection) Ping(ctx context.Context) error {
	if !c.IsConnected() {
		return adapter.NewClosedError(dbcapabilities.PostgreSQL, "ping")
	}
	return adapter.WrapError(dbcapabilities.PostgreSQL, "ping", c.pool.Ping(ctx))
}

// Close closes the pool. Calling it again is a no-op.
func (c *Connection) Close() error {
	if atomic.CompareAndSwapInt32(&c.connected, 1, 0) {
		c.pool.Close()
	}
	return nil
}

// ExecuteQuery acquires a pooled connection within the acquire timeout, runs
// query through the simple protocol and normalizes every row.
func (c *Connection) ExecuteQuery(ctx context.Context, query string) ([]*rowvalue.Object, error) {
	if !c.IsConnected() {
		return nil, adapter.NewClosedError(dbcapabilities.PostgreSQL, "execute_query")
	}

	acquireCtx, cancel := acquireContext(ctx, c.config.PoolOptions)
	conn, err := c.pool.Acquire(acquireCtx)
	cancel()
	if err != nil {
		if !c.IsConnected() {
			return nil, adapter.NewClosedError(dbcapabilities.PostgreSQL, "execute_query")
		}
		return nil, adapter.NewDatabaseError(dbcapabilities.PostgreSQL, "acquire", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, queryError(err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	results := make([]*rowvalue.Object, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, queryError(err)
		}
		cells := make([]rowvalue.Cell, len(values))
		for i, v := range values {
			cells[i] = cell{v: v}
		}
		results = append(results, rowvalue.NormalizeRow(columns, cells))
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(err)
	}

	return results, nil
}

// queryError attaches the SQLSTATE when the server reported one.
func queryError(err error) error {
	qerr := adapter.NewQueryError(dbcapabilities.PostgreSQL, err)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		qerr.WithContext("sqlstate", pgErr.Code)
	}
	return qerr
}
