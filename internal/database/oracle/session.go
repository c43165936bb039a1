package oracle

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/redbco/sqlbridge/internal/database/common"
)

// sessionConn is the part of *sql.Conn the session uses.
type sessionConn interface {
	common.Queryer
	PingContext(ctx context.Context) error
	Close() error
}

// session is one Oracle session shared by every holder of a Connection.
// Holders register with acquire and leave with release; the underlying
// connection is released once the session is closed and the last holder
// has left.
type session struct {
	conn sessionConn
	db   closer

	queryMu sync.Mutex

	mu      sync.Mutex
	holders int
	closed  bool
	done    chan struct{}
	err     error
}

// closer is the pool the session was taken from.
type closer interface {
	Close() error
}

var errSessionClosed = errors.New("oracle session closed")

func newSession(conn sessionConn, db closer) *session {
	return &session{
		conn: conn,
		db:   db,
		done: make(chan struct{}),
	}
}

func (s *session) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	s.holders++
	return nil
}

func (s *session) release() {
	s.mu.Lock()
	s.holders--
	last := s.closed && s.holders == 0
	s.mu.Unlock()

	if last {
		s.shutdown()
	}
}

// close marks the session closed. It returns at once; the connection is
// released by the last active holder.
func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	idle := s.holders == 0
	s.mu.Unlock()

	if idle {
		s.shutdown()
	}
}

func (s *session) shutdown() {
	err := s.conn.Close()
	if s.db != nil {
		err = errors.Join(err, s.db.Close())
	}
	s.err = err
	close(s.done)
}

// wait blocks until the connection has been released or ctx is done.
func (s *session) wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// query runs fn on the session, one caller at a time.
func (s *session) query(fn func(conn sessionConn) error) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	s.queryMu.Lock()
	defer s.queryMu.Unlock()
	return fn(s.conn)
}

var _ sessionConn = (*sql.Conn)(nil)
