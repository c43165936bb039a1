// Package sqltest is an in-memory database/sql driver that answers queries
// from a script. It stands in for real servers in adapter and registry tests.
package sqltest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// Result is the scripted answer to one query.
type Result struct {
	Columns []string
	// Types holds the database type name per column; missing entries are "".
	Types []string
	Rows  [][]driver.Value
	Err   error

	// Wait, when set, holds the query until it is closed or the query's
	// context is done.
	Wait <-chan struct{}
}

// ErrNoScript is returned for queries that have no scripted result.
var ErrNoScript = errors.New("sqltest: no result scripted for query")

// Server holds the scripted results and counts what the pool does with them.
type Server struct {
	mu      sync.Mutex
	results map[string]Result
	queries []string
	pingErr error
	started chan string

	open   int32
	opened int32
	closed int32
}

// NewServer returns a server that answers SELECT 1 with a single column.
func NewServer() *Server {
	s := &Server{
		results: make(map[string]Result),
		started: make(chan string, 64),
	}
	s.Handle("SELECT 1", Result{Columns: []string{"?column?"}, Rows: [][]driver.Value{{int64(1)}}})
	return s
}

// Handle scripts the result for query.
func (s *Server) Handle(query string, res Result) {
	s.mu.Lock()
	s.results[query] = res
	s.mu.Unlock()
}

// FailPing makes every ping return err.
func (s *Server) FailPing(err error) {
	s.mu.Lock()
	s.pingErr = err
	s.mu.Unlock()
}

// Queries returns every query text received, in order.
func (s *Server) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queries))
	copy(out, s.queries)
	return out
}

// Started receives the text of each query as it begins executing.
func (s *Server) Started() <-chan string {
	return s.started
}

// OpenConns is the number of driver connections currently open.
func (s *Server) OpenConns() int { return int(atomic.LoadInt32(&s.open)) }

// ClosedConns is the number of driver connections closed so far.
func (s *Server) ClosedConns() int { return int(atomic.LoadInt32(&s.closed)) }

// DB opens a *sql.DB backed by this server.
func (s *Server) DB() *sql.DB {
	return sql.OpenDB(s.Connector())
}

// Connector returns a driver.Connector backed by this server.
func (s *Server) Connector() driver.Connector {
	return &connector{server: s}
}

func (s *Server) lookup(query string) (Result, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	res, ok := s.results[query]
	s.mu.Unlock()

	select {
	case s.started <- query:
	default:
	}

	if !ok {
		return Result{}, ErrNoScript
	}
	return res, nil
}

type connector struct {
	server *Server
}

func (c *connector) Connect(context.Context) (driver.Conn, error) {
	atomic.AddInt32(&c.server.open, 1)
	atomic.AddInt32(&c.server.opened, 1)
	return &conn{server: c.server}, nil
}

func (c *connector) Driver() driver.Driver { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("sqltest: use Server.Connector")
}

type conn struct {
	server *Server
	closed bool
}

var (
	_ driver.QueryerContext = (*conn)(nil)
	_ driver.Pinger         = (*conn)(nil)
)

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("sqltest: statements are not supported")
}

func (c *conn) Close() error {
	if !c.closed {
		c.closed = true
		atomic.AddInt32(&c.server.open, -1)
		atomic.AddInt32(&c.server.closed, 1)
	}
	return nil
}

func (c *conn) Begin() (driver.Tx, error) {
	return nil, errors.New("sqltest: transactions are not supported")
}

func (c *conn) Ping(ctx context.Context) error {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	return c.server.pingErr
}

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	res, err := c.server.lookup(query)
	if err != nil {
		return nil, err
	}
	if res.Wait != nil {
		select {
		case <-res.Wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return &rows{columns: res.Columns, types: res.Types, data: res.Rows}, nil
}

type rows struct {
	columns []string
	types   []string
	data    [][]driver.Value
	pos     int
}

var _ driver.RowsColumnTypeDatabaseTypeName = (*rows)(nil)

func (r *rows) Columns() []string { return r.columns }

func (r *rows) ColumnTypeDatabaseTypeName(index int) string {
	if index < len(r.types) {
		return r.types[index]
	}
	return ""
}

func (r *rows) Close() error { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.pos])
	r.pos++
	return nil
}
