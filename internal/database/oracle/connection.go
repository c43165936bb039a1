// Package oracle is the Oracle backend, built on godror.
//
// A Connection holds one session opened with explicit credentials; there is
// no pool and PoolOptions are ignored. The session is shared by every holder
// of the Connection and is only released after the last in-flight query
// finishes. Result columns are named column_1, column_2, ...
package oracle

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"

	"github.com/godror/godror"

	"github.com/redbco/sqlbridge/internal/database/common"
	"github.com/redbco/sqlbridge/pkg/anchor/adapter"
	"github.com/redbco/sqlbridge/pkg/dbcapabilities"
	"github.com/redbco/sqlbridge/pkg/rowvalue"
)

// MissingCredentialsMessage is the validation message for a request without
// username and password.
const MissingCredentialsMessage = "Oracle connection requires username and password"

type Connection struct {
	session   *session
	connected int32
}

// ValidateConfig checks that both credentials are present.
func ValidateConfig(config adapter.ConnectionConfig) error {
	if !config.HasCredentials() {
		return adapter.NewConfigurationError(dbcapabilities.Oracle, "credentials", MissingCredentialsMessage)
	}
	return nil
}

// Connect opens a session to the easy-connect string or TNS alias in the
// connection string using the config's credentials.
func Connect(ctx context.Context, config adapter.ConnectionConfig) (*Connection, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	var params godror.ConnectionParams
	params.Username = adapter.GetString(config.Username)
	params.Password = godror.NewPassword(adapter.GetString(config.Password))
	params.ConnectString = config.ConnectionString

	return NewFromDB(ctx, sql.OpenDB(godror.NewConnector(params)), config)
}

// NewFromDB pins one session from db and verifies it answers. db is closed
// together with the session.
func NewFromDB(ctx context.Context, db *sql.DB, config adapter.ConnectionConfig) (*Connection, error) {
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, adapter.NewConnectionError(dbcapabilities.Oracle, config.ConnectionString, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, adapter.NewConnectionError(dbcapabilities.Oracle, config.ConnectionString, err)
	}

	return &Connection{
		session:   newSession(conn, db),
		connected: 1,
	}, nil
}

// IsConnected checks if the connection is still active.
func (c *Connection) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// Ping checks that the session answers.
func (c *Connection) Ping(ctx context.Context) error {
	err := c.session.query(func(conn sessionConn) error {
		return conn.PingContext(ctx)
	})
	if errors.Is(err, errSessionClosed) {
		return adapter.NewClosedError(dbcapabilities.Oracle, "ping")
	}
	return adapter.WrapError(dbcapabilities.Oracle, "ping", err)
}

// Close marks the connection closed. New queries fail at once; queries
// already running finish before the session is released. Calling Close
// again is a no-op.
func (c *Connection) Close() error {
	if atomic.CompareAndSwapInt32(&c.connected, 1, 0) {
		c.session.close()
	}
	return nil
}

// WaitClosed blocks until a closed connection has released its session.
func (c *Connection) WaitClosed(ctx context.Context) error {
	return adapter.WrapError(dbcapabilities.Oracle, "close", c.session.wait(ctx))
}

// ExecuteQuery runs query on the shared session and names the columns
// column_1, column_2, ...
func (c *Connection) ExecuteQuery(ctx context.Context, query string) ([]*rowvalue.Object, error) {
	var rows []*rowvalue.Object
	err := c.session.query(func(conn sessionConn) error {
		var err error
		rows, err = common.QueryObjects(ctx, conn, query, newCell, common.SyntheticColumnNames)
		return err
	})
	if errors.Is(err, errSessionClosed) {
		return nil, adapter.NewClosedError(dbcapabilities.Oracle, "execute_query")
	}
	if err != nil {
		return nil, queryError(err)
	}
	return rows, nil
}

func queryError(err error) error {
	qerr := adapter.NewQueryError(dbcapabilities.Oracle, err)
	if oraErr, ok := godror.AsOraErr(err); ok {
		qerr.WithContext("ora_code", oraErr.Code())
	}
	return qerr
}
