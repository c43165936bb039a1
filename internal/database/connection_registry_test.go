package database

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/sqlbridge/internal/database/common/sqltest"
	"github.com/redbco/sqlbridge/internal/database/mssql"
	"github.com/redbco/sqlbridge/internal/database/mysql"
	"github.com/redbco/sqlbridge/internal/database/oracle"
	"github.com/redbco/sqlbridge/pkg/anchor/adapter"
	"github.com/redbco/sqlbridge/pkg/dbcapabilities"
	"github.com/redbco/sqlbridge/pkg/logger"
	"github.com/redbco/sqlbridge/pkg/rowvalue"
)

const unreachable = "unreachable"

// fakeBackends hands every connection string its own scripted server.
type fakeBackends struct {
	mu      sync.Mutex
	servers map[string]*sqltest.Server
	dials   int32
}

func (f *fakeBackends) server(connectionString string) *sqltest.Server {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.servers[connectionString]
	if !ok {
		s = sqltest.NewServer()
		s.Handle("SELECT name", sqltest.Result{
			Columns: []string{"name"},
			Rows:    [][]driver.Value{{connectionString}},
		})
		f.servers[connectionString] = s
	}
	return s
}

func (f *fakeBackends) dial(ctx context.Context, kind dbcapabilities.DatabaseID, cfg adapter.ConnectionConfig) (Connection, error) {
	atomic.AddInt32(&f.dials, 1)
	if cfg.ConnectionString == unreachable {
		return Connection{}, adapter.NewConnectionError(kind, cfg.ConnectionString, errors.New("connection refused"))
	}

	db := f.server(cfg.ConnectionString).DB()
	switch kind {
	case dbcapabilities.MySQL:
		c, err := mysql.NewFromDB(ctx, db, cfg)
		if err != nil {
			return Connection{}, err
		}
		return NewMySQLConnection(c), nil
	case dbcapabilities.SQLServer:
		c, err := mssql.NewFromDB(ctx, db, cfg)
		if err != nil {
			return Connection{}, err
		}
		return NewMSSQLConnection(c), nil
	case dbcapabilities.Oracle:
		c, err := oracle.NewFromDB(ctx, db, cfg)
		if err != nil {
			return Connection{}, err
		}
		return NewOracleConnection(c), nil
	default:
		db.Close()
		return Connection{}, adapter.NewConnectionError(kind, cfg.ConnectionString, errors.New("no fake for backend"))
	}
}

func newTestRegistry(t *testing.T) (*ConnectionRegistry, *fakeBackends) {
	fakes := &fakeBackends{servers: make(map[string]*sqltest.Server)}
	r := NewConnectionRegistryWithDialer(fakes.dial)
	t.Cleanup(func() { _ = r.DisconnectAll(context.Background()) })
	return r, fakes
}

func strPtr(s string) *string { return &s }

func request(dbType, connectionString string) ConnectionRequest {
	return ConnectionRequest{
		DBType:           dbType,
		ConnectionString: connectionString,
		PoolOptions:      adapter.DefaultPoolOptions(),
	}
}

func oracleRequest(connectionString string) ConnectionRequest {
	req := request("oracle", connectionString)
	req.Username = strPtr("scott")
	req.Password = strPtr("tiger")
	return req
}

func firstValue(t *testing.T, rows []*rowvalue.Object) rowvalue.Value {
	t.Helper()
	require.Len(t, rows, 1)
	keys := rows[0].Keys()
	require.Len(t, keys, 1)
	v, _ := rows[0].Get(keys[0])
	return v
}

func TestAddGetRemove(t *testing.T) {
	ctx := context.Background()

	for _, req := range []ConnectionRequest{
		request("mysql", "mysql-a"),
		request("MSSQL", "mssql-a"),
		oracleRequest("oracle-a"),
	} {
		t.Run(req.DBType, func(t *testing.T) {
			r, _ := newTestRegistry(t)

			id, err := r.Add(ctx, req)
			require.NoError(t, err)
			require.NotEmpty(t, id)

			conn, ok := r.Get(id)
			require.True(t, ok)

			rows, err := conn.ExecuteQuery(ctx, "SELECT 1")
			require.NoError(t, err)
			assert.True(t, rowvalue.Number(1).Equal(firstValue(t, rows)))

			r.Remove(id)
			_, ok = r.Get(id)
			assert.False(t, ok)
			assert.False(t, conn.IsConnected())

			_, err = conn.ExecuteQuery(ctx, "SELECT 1")
			assert.True(t, adapter.IsClosed(err))

			assert.NotPanics(t, func() {
				r.Remove(id)
				r.Remove("never-registered")
			})
		})
	}
}

func TestAddValidation(t *testing.T) {
	r, fakes := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Add(ctx, request("sqlite", "file.db"))
	require.Error(t, err)
	assert.True(t, adapter.IsConfigurationError(err))

	_, err = r.Add(ctx, request("oracle", "localhost:1521/XEPDB1"))
	require.Error(t, err)
	assert.True(t, adapter.IsConfigurationError(err))
	assert.Equal(t, "Oracle connection requires username and password", err.Error())

	onlyUser := request("oracle", "localhost:1521/XEPDB1")
	onlyUser.Username = strPtr("scott")
	_, err = r.Add(ctx, onlyUser)
	assert.True(t, adapter.IsConfigurationError(err))

	assert.Equal(t, int32(0), atomic.LoadInt32(&fakes.dials), "validation happens before dialing")
	assert.Equal(t, 0, r.Len())
}

func TestAddConnectionFailure(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Add(context.Background(), request("postgresql", unreachable))
	require.Error(t, err)
	assert.True(t, adapter.IsConnectionError(err))
	assert.Equal(t, 0, r.Len())
}

func TestConcurrentAdd(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	const n = 24

	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			kinds := []string{"mysql", "mssql"}
			id, err := r.Add(ctx, request(kinds[i%2], fmt.Sprintf("db-%d", i)))
			assert.NoError(t, err)
			ids[i] = id
		}()
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i, id := range ids {
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true

		conn, ok := r.Get(id)
		require.True(t, ok)
		rows, err := conn.ExecuteQuery(ctx, "SELECT name")
		require.NoError(t, err)
		assert.True(t, rowvalue.String(fmt.Sprintf("db-%d", i)).Equal(firstValue(t, rows)))
	}
	assert.Equal(t, n, r.Len())
}

func TestConcurrentGet(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	want := make(map[string]string)
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("shared-%d", i)
		id, err := r.Add(ctx, request("mysql", name))
		require.NoError(t, err)
		want[id] = name
	}

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id, name := range want {
				conn, ok := r.Get(id)
				if !assert.True(t, ok) {
					return
				}
				assert.Equal(t, dbcapabilities.MySQL, conn.Kind())
				rows, err := conn.ExecuteQuery(ctx, "SELECT name")
				if assert.NoError(t, err) {
					assert.True(t, rowvalue.String(name).Equal(firstValue(t, rows)))
				}
			}
		}()
	}
	wg.Wait()
}

func TestRemoveDuringQuery(t *testing.T) {
	for _, req := range []ConnectionRequest{
		oracleRequest("slow-oracle"),
		request("mysql", "slow-mysql"),
	} {
		t.Run(req.DBType, func(t *testing.T) {
			r, fakes := newTestRegistry(t)
			ctx := context.Background()

			id, err := r.Add(ctx, req)
			require.NoError(t, err)

			server := fakes.server(req.ConnectionString)
			release := make(chan struct{})
			server.Handle("SELECT slow", sqltest.Result{
				Columns: []string{"n"},
				Rows:    [][]driver.Value{{int64(7)}},
				Wait:    release,
			})

			conn, ok := r.Get(id)
			require.True(t, ok)

			queryDone := make(chan error, 1)
			go func() {
				_, err := conn.ExecuteQuery(ctx, "SELECT slow")
				queryDone <- err
			}()
			<-server.Started()

			removed := make(chan struct{})
			go func() {
				r.Remove(id)
				close(removed)
			}()

			assert.Eventually(t, func() bool {
				_, ok := r.Get(id)
				return !ok
			}, time.Second, 5*time.Millisecond)

			close(release)
			select {
			case err := <-queryDone:
				// either outcome is clean; a crash or hang is not
				if err != nil {
					assert.True(t, adapter.IsQueryError(err) || adapter.IsClosed(err), "unexpected error: %v", err)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("in-flight query did not finish")
			}
			<-removed
		})
	}
}

func TestDecimalAndDatetimeAgreeAcrossBackends(t *testing.T) {
	r, fakes := newTestRegistry(t)
	ctx := context.Background()
	created := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	for _, dbType := range []string{"mysql", "mssql"} {
		t.Run(dbType, func(t *testing.T) {
			id, err := r.Add(ctx, request(dbType, "typed-"+dbType))
			require.NoError(t, err)

			fakes.server("typed-"+dbType).Handle("SELECT price, created", sqltest.Result{
				Columns: []string{"price", "created"},
				Types:   []string{"DECIMAL", "DATETIME"},
				Rows:    [][]driver.Value{{[]byte("12.50"), created}},
			})

			conn, ok := r.Get(id)
			require.True(t, ok)
			rows, err := conn.ExecuteQuery(ctx, "SELECT price, created")
			require.NoError(t, err)

			data, err := json.Marshal(rows)
			require.NoError(t, err)
			assert.Equal(t, `[{"price":12.5,"created":null}]`, string(data))
		})
	}
}

func TestRemoveDuringQueryPostgres(t *testing.T) {
	dsn := os.Getenv("SQLBRIDGE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skipf("Skipping test: SQLBRIDGE_TEST_POSTGRES_DSN not set")
	}

	r := NewConnectionRegistry()
	t.Cleanup(func() { _ = r.DisconnectAll(context.Background()) })
	ctx := context.Background()

	id, err := r.Add(ctx, request("postgres", dsn))
	if err != nil {
		t.Skipf("Skipping test: could not connect to PostgreSQL: %v", err)
	}
	conn, ok := r.Get(id)
	require.True(t, ok)

	queryDone := make(chan error, 1)
	go func() {
		rows, err := conn.ExecuteQuery(ctx, "SELECT 7 AS n FROM pg_sleep(1)")
		if err == nil && len(rows) != 1 {
			err = fmt.Errorf("got %d rows", len(rows))
		}
		queryDone <- err
	}()
	time.Sleep(200 * time.Millisecond)

	removed := make(chan struct{})
	go func() {
		// pgxpool.Close waits for the running query to release its connection
		r.Remove(id)
		close(removed)
	}()

	assert.Eventually(t, func() bool {
		_, ok := r.Get(id)
		return !ok
	}, time.Second, 5*time.Millisecond)

	select {
	case err := <-queryDone:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("in-flight query did not finish")
	}
	select {
	case <-removed:
	case <-time.After(10 * time.Second):
		t.Fatal("remove did not return after the query finished")
	}

	_, err = conn.ExecuteQuery(ctx, "SELECT 1")
	assert.True(t, adapter.IsClosed(err))
}

func TestListCheckHealthDisconnectAll(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	idA, err := r.Add(ctx, request("mysql", "list-a"))
	require.NoError(t, err)
	idB, err := r.Add(ctx, oracleRequest("list-b"))
	require.NoError(t, err)

	infos := r.List()
	require.Len(t, infos, 2)
	kinds := map[string]dbcapabilities.DatabaseID{}
	for _, info := range infos {
		kinds[info.ID] = info.DBType
	}
	assert.Equal(t, dbcapabilities.MySQL, kinds[idA])
	assert.Equal(t, dbcapabilities.Oracle, kinds[idB])
	assert.True(t, infos[0].ID < infos[1].ID)

	assert.NoError(t, r.CheckHealth(ctx, idA))
	assert.True(t, adapter.IsNotFound(r.CheckHealth(ctx, "missing")))

	connA, _ := r.Get(idA)
	connB, _ := r.Get(idB)

	require.NoError(t, r.DisconnectAll(ctx))
	assert.Equal(t, 0, r.Len())
	assert.False(t, connA.IsConnected())
	assert.False(t, connB.IsConnected())
}

func TestAddLogsRedactedTarget(t *testing.T) {
	r, _ := newTestRegistry(t)
	var buf bytes.Buffer
	l := logger.New("sqlbridge", "test")
	l.SetOutput(&buf)
	l.SetLevel(logger.LevelDebug)
	r.SetLogger(l)

	id, err := r.Add(context.Background(), request("mysql", "app:hunter2@tcp(db:3306)/shop"))
	require.NoError(t, err)
	r.Remove(id)

	out := buf.String()
	assert.Contains(t, out, "Registered mysql connection "+id)
	assert.Contains(t, out, "Removed mysql connection "+id)
	assert.NotContains(t, out, "hunter2")
}

func TestZeroConnection(t *testing.T) {
	var c Connection
	_, err := c.ExecuteQuery(context.Background(), "SELECT 1")
	assert.Error(t, err)
	assert.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
}
