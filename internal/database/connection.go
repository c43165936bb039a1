// Package database holds the connection variant over the four backends and
// the registry that owns live connections.
package database

import (
	"context"
	"errors"

	"github.com/redbco/sqlbridge/internal/database/mssql"
	"github.com/redbco/sqlbridge/internal/database/mysql"
	"github.com/redbco/sqlbridge/internal/database/oracle"
	"github.com/redbco/sqlbridge/internal/database/postgres"
	"github.com/redbco/sqlbridge/pkg/dbcapabilities"
	"github.com/redbco/sqlbridge/pkg/rowvalue"
)

var errInvalidConnection = errors.New("connection holds no backend")

// Connection is exactly one of the four backend connections. It is a small
// value; copies share the same pool or session.
type Connection struct {
	kind     dbcapabilities.DatabaseID
	postgres *postgres.Connection
	mysql    *mysql.Connection
	mssql    *mssql.Connection
	oracle   *oracle.Connection
}

func NewPostgresConnection(c *postgres.Connection) Connection {
	return Connection{kind: dbcapabilities.PostgreSQL, postgres: c}
}

func NewMySQLConnection(c *mysql.Connection) Connection {
	return Connection{kind: dbcapabilities.MySQL, mysql: c}
}

func NewMSSQLConnection(c *mssql.Connection) Connection {
	return Connection{kind: dbcapabilities.SQLServer, mssql: c}
}

func NewOracleConnection(c *oracle.Connection) Connection {
	return Connection{kind: dbcapabilities.Oracle, oracle: c}
}

// Kind returns the backend. The zero Connection has an empty kind.
func (c Connection) Kind() dbcapabilities.DatabaseID {
	return c.kind
}

// ExecuteQuery sends query unchanged to the backend and returns every row.
func (c Connection) ExecuteQuery(ctx context.Context, query string) ([]*rowvalue.Object, error) {
	switch c.kind {
	case dbcapabilities.PostgreSQL:
		return c.postgres.ExecuteQuery(ctx, query)
	case dbcapabilities.MySQL:
		return c.mysql.ExecuteQuery(ctx, query)
	case dbcapabilities.SQLServer:
		return c.mssql.ExecuteQuery(ctx, query)
	case dbcapabilities.Oracle:
		return c.oracle.ExecuteQuery(ctx, query)
	default:
		return nil, errInvalidConnection
	}
}

// Ping checks that the backend answers.
func (c Connection) Ping(ctx context.Context) error {
	switch c.kind {
	case dbcapabilities.PostgreSQL:
		return c.postgres.Ping(ctx)
	case dbcapabilities.MySQL:
		return c.mysql.Ping(ctx)
	case dbcapabilities.SQLServer:
		return c.mssql.Ping(ctx)
	case dbcapabilities.Oracle:
		return c.oracle.Ping(ctx)
	default:
		return errInvalidConnection
	}
}

// IsConnected reports whether Close has not been called yet.
func (c Connection) IsConnected() bool {
	switch c.kind {
	case dbcapabilities.PostgreSQL:
		return c.postgres.IsConnected()
	case dbcapabilities.MySQL:
		return c.mysql.IsConnected()
	case dbcapabilities.SQLServer:
		return c.mssql.IsConnected()
	case dbcapabilities.Oracle:
		return c.oracle.IsConnected()
	default:
		return false
	}
}

// Close releases the pool or session. It is safe to call more than once.
func (c Connection) Close() error {
	switch c.kind {
	case dbcapabilities.PostgreSQL:
		return c.postgres.Close()
	case dbcapabilities.MySQL:
		return c.mysql.Close()
	case dbcapabilities.SQLServer:
		return c.mssql.Close()
	case dbcapabilities.Oracle:
		return c.oracle.Close()
	default:
		return nil
	}
}
