// Package mssql is the Microsoft SQL Server backend.
//
// A connection holds exactly one session. PoolOptions are accepted and
// ignored; queries on the same connection run one at a time.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"sync/atomic"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/redbco/sqlbridge/internal/database/common"
	"github.com/redbco/sqlbridge/pkg/anchor/adapter"
	"github.com/redbco/sqlbridge/pkg/dbcapabilities"
	"github.com/redbco/sqlbridge/pkg/rowvalue"
)

var trustCertKey = regexp.MustCompile(`(?i)(^|;)\s*trust\s*server\s*certificate\s*=`)

// Connection owns a database/sql handle limited to a single session.
type Connection struct {
	db        *sql.DB
	connected int32
}

// Connect opens the session described by an ADO string or a sqlserver:// URL.
func Connect(ctx context.Context, config adapter.ConnectionConfig) (*Connection, error) {
	connector, err := mssql.NewConnector(PrepareConnectionString(config.ConnectionString))
	if err != nil {
		return nil, adapter.NewConnectionError(dbcapabilities.SQLServer, config.ConnectionString, err)
	}

	return NewFromDB(ctx, sql.OpenDB(connector), config)
}

// NewFromDB restricts db to one long-lived session and verifies it answers.
func NewFromDB(ctx context.Context, db *sql.DB, config adapter.ConnectionConfig) (*Connection, error) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, adapter.NewConnectionError(dbcapabilities.SQLServer, config.ConnectionString, err)
	}

	return &Connection{
		db:        db,
		connected: 1,
	}, nil
}

// PrepareConnectionString trusts the server certificate for ADO strings
// that do not say otherwise. URLs are returned unchanged.
func PrepareConnectionString(connectionString string) string {
	lower := strings.ToLower(strings.TrimSpace(connectionString))
	if strings.HasPrefix(lower, "sqlserver://") || strings.HasPrefix(lower, "odbc:") {
		return connectionString
	}
	if trustCertKey.MatchString(connectionString) {
		return connectionString
	}

	trimmed := strings.TrimRight(strings.TrimSpace(connectionString), ";")
	if trimmed == "" {
		return "TrustServerCertificate=true"
	}
	return trimmed + ";TrustServerCertificate=true"
}

// IsConnected checks if the connection is still active.
func (c *Connection) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// Ping checks that the session answers.
func (c *Connection) Ping(ctx context.Context) error {
	if !c.IsConnected() {
		return adapter.NewClosedError(dbcapabilities.SQLServer, "ping")
	}
	return adapter.WrapError(dbcapabilities.SQLServer, "ping", c.db.PingContext(ctx))
}

// Close ends the session. Calling it again is a no-op.
func (c *Connection) Close() error {
	if atomic.CompareAndSwapInt32(&c.connected, 1, 0) {
		return adapter.WrapError(dbcapabilities.SQLServer, "close", c.db.Close())
	}
	return nil
}

// ExecuteQuery sends query as a batch on the session.
func (c *Connection) ExecuteQuery(ctx context.Context, query string) ([]*rowvalue.Object, error) {
	if !c.IsConnected() {
		return nil, adapter.NewClosedError(dbcapabilities.SQLServer, "execute_query")
	}

	rows, err := common.QueryObjects(ctx, c.db, query, newCell, common.SourceColumnNames)
	if err != nil {
		if !c.IsConnected() {
			return nil, adapter.NewClosedError(dbcapabilities.SQLServer, "execute_query")
		}
		return nil, queryError(err)
	}
	return rows, nil
}

func queryError(err error) error {
	qerr := adapter.NewQueryError(dbcapabilities.SQLServer, err)
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		qerr.WithContext("mssql_error", msErr.Number)
	}
	return qerr
}
