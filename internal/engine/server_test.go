package engine

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/sqlbridge/internal/config"
	"github.com/redbco/sqlbridge/internal/database"
	"github.com/redbco/sqlbridge/internal/database/common/sqltest"
	"github.com/redbco/sqlbridge/internal/database/mysql"
	"github.com/redbco/sqlbridge/pkg/anchor/adapter"
	"github.com/redbco/sqlbridge/pkg/dbcapabilities"
)

// testEngine backs every mysql connection with one scripted server and
// records the pool options each dial received.
type testEngine struct {
	engine  *Engine
	handler http.Handler
	server  *sqltest.Server
	dialed  []adapter.PoolOptions
}

func newTestEngine(t *testing.T, mutate func(cfg *config.Config)) *testEngine {
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	te := &testEngine{server: sqltest.NewServer()}
	te.server.Handle("SELECT id, name, value FROM items", sqltest.Result{
		Columns: []string{"id", "name", "value"},
		Rows:    [][]driver.Value{{int64(1), "Test", int64(100)}},
	})
	te.server.Handle("SELECT broken", sqltest.Result{Err: errors.New("syntax error near broken")})

	dialer := func(ctx context.Context, kind dbcapabilities.DatabaseID, cc adapter.ConnectionConfig) (database.Connection, error) {
		te.dialed = append(te.dialed, cc.PoolOptions)
		if kind != dbcapabilities.MySQL || cc.ConnectionString == "unreachable" {
			return database.Connection{}, adapter.NewConnectionError(kind, cc.ConnectionString, errors.New("connection refused"))
		}
		c, err := mysql.NewFromDB(ctx, te.server.DB(), cc)
		if err != nil {
			return database.Connection{}, err
		}
		return database.NewMySQLConnection(c), nil
	}

	registry := database.NewConnectionRegistryWithDialer(dialer)
	te.engine = NewEngine(cfg, registry)
	te.handler = te.engine.Handler()
	t.Cleanup(func() { _ = registry.DisconnectAll(context.Background()) })
	return te
}

func (te *testEngine) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	te.handler.ServeHTTP(w, req)
	return w
}

func (te *testEngine) connect(t *testing.T) string {
	t.Helper()
	w := te.do(t, http.MethodPost, "/connect", ConnectRequest{DBType: "MYSQL", ConnectionString: "app:secret@tcp(db:3306)/shop"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ConnectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	assert.NotContains(t, resp.ConnectionString, "secret")
	return resp.ID
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestConnectAndQuery(t *testing.T) {
	te := newTestEngine(t, nil)
	id := te.connect(t)

	w := te.do(t, http.MethodPost, "/sql", SQLRequest{ConnectionID: id, Query: "SELECT id, name, value FROM items"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"rows":[{"id":1,"name":"Test","value":100}]}`, w.Body.String())

	w = te.do(t, http.MethodPost, "/sql", SQLRequest{ConnectionID: id, Query: "SELECT 1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"rows":[{"?column?":1}]}`, w.Body.String())
}

func TestConnectValidation(t *testing.T) {
	te := newTestEngine(t, nil)

	tests := []struct {
		name    string
		body    interface{}
		status  int
		message string
	}{
		{"unknown type", ConnectRequest{DBType: "redis", ConnectionString: "redis://x"}, http.StatusBadRequest, "unsupported database type: redis"},
		{"oracle without credentials", ConnectRequest{DBType: "ORACLE", ConnectionString: "localhost:1521/XEPDB1"}, http.StatusBadRequest, "Oracle connection requires username and password"},
		{"connect failure", ConnectRequest{DBType: "mysql", ConnectionString: "unreachable"}, http.StatusBadGateway, ""},
		{"bad body", "not an object", http.StatusBadRequest, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := te.do(t, http.MethodPost, "/connect", tt.body)
			assert.Equal(t, tt.status, w.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, errorMessage(t, w))
			}
		})
	}
	assert.Equal(t, 0, te.engine.Registry().Len())
}

func TestConnectPoolOptionsMerge(t *testing.T) {
	te := newTestEngine(t, func(cfg *config.Config) {
		cfg.Pool.MaxConnections = 9
	})

	maxConns := uint32(3)
	w := te.do(t, http.MethodPost, "/connect", ConnectRequest{
		DBType:           "mysql",
		ConnectionString: "fake",
		PoolOptions:      &PoolOptionsRequest{MaxConnections: &maxConns},
	})
	require.Equal(t, http.StatusOK, w.Code)
	w = te.do(t, http.MethodPost, "/connect", ConnectRequest{DBType: "mysql", ConnectionString: "fake"})
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, te.dialed, 2)
	assert.Equal(t, uint32(3), te.dialed[0].MaxConnections)
	assert.Equal(t, uint64(30), te.dialed[0].AcquireTimeoutSeconds)
	assert.Equal(t, uint32(9), te.dialed[1].MaxConnections)
}

func TestSQLErrors(t *testing.T) {
	te := newTestEngine(t, nil)
	id := te.connect(t)

	w := te.do(t, http.MethodPost, "/sql", SQLRequest{ConnectionID: "missing", Query: "SELECT 1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Invalid connection ID", errorMessage(t, w))

	w = te.do(t, http.MethodPost, "/sql", SQLRequest{ConnectionID: id, Query: "DELETE FROM items"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Only SELECT queries are allowed", errorMessage(t, w))

	w = te.do(t, http.MethodPost, "/sql", SQLRequest{ConnectionID: id, Query: "SELECT broken"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, errorMessage(t, w), "syntax error near broken")

	// failed queries leave the connection registered
	w = te.do(t, http.MethodPost, "/sql", SQLRequest{ConnectionID: id, Query: "SELECT 1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), te.engine.GetMetrics()["errors"])
}

func TestSelectOnlyDisabled(t *testing.T) {
	te := newTestEngine(t, func(cfg *config.Config) {
		cfg.Query.SelectOnly = false
	})
	te.server.Handle("SHOW TABLES", sqltest.Result{Columns: []string{"table"}, Rows: [][]driver.Value{{"items"}}})
	id := te.connect(t)

	w := te.do(t, http.MethodPost, "/sql", SQLRequest{ConnectionID: id, Query: "SHOW TABLES"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"rows":[{"table":"items"}]}`, w.Body.String())
}

func TestDisconnectAndList(t *testing.T) {
	te := newTestEngine(t, nil)
	idA := te.connect(t)
	idB := te.connect(t)

	w := te.do(t, http.MethodGet, "/connections", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list ListConnectionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Connections, 2)

	w = te.do(t, http.MethodDelete, "/connections/"+idA, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = te.do(t, http.MethodPost, "/disconnect", DisconnectRequest{ConnectionID: idB})
	assert.Equal(t, http.StatusOK, w.Code)

	// removing again is not an error
	w = te.do(t, http.MethodPost, "/disconnect", DisconnectRequest{ConnectionID: idB})
	assert.Equal(t, http.StatusOK, w.Code)

	w = te.do(t, http.MethodPost, "/sql", SQLRequest{ConnectionID: idA, Query: "SELECT 1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, te.engine.Registry().Len())
}

func TestHealthAndCORS(t *testing.T) {
	te := newTestEngine(t, nil)
	te.connect(t)

	w := te.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "stopped", health.Status, "handler served without Start")
	assert.Equal(t, 1, health.Connections)
	assert.Equal(t, int32(1), health.ActiveRequests, "the health request itself is in flight")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = te.do(t, http.MethodOptions, "/sql", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConnectionHealth(t *testing.T) {
	te := newTestEngine(t, nil)
	id := te.connect(t)

	w := te.do(t, http.MethodGet, "/connections/"+id+"/health", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"id":"`+id+`","status":"ok"}`, w.Body.String())

	w = te.do(t, http.MethodGet, "/connections/missing/health", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	te.server.FailPing(errors.New("server has gone away"))
	w = te.do(t, http.MethodGet, "/connections/"+id+"/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var health ConnectionHealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "unhealthy", health.Status)
	assert.Contains(t, health.Error, "server has gone away")
}

func TestStartStop(t *testing.T) {
	te := newTestEngine(t, func(cfg *config.Config) {
		cfg.Server.Host = "127.0.0.1"
		cfg.Server.Port = 0
	})
	ctx := context.Background()

	require.NoError(t, te.engine.Start(ctx))
	assert.Error(t, te.engine.Start(ctx), "second start is rejected")
	require.NoError(t, te.engine.CheckHealth())

	resp, err := http.Get("http://" + te.engine.Addr().String() + "/health")
	require.NoError(t, err)
	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health.Status)

	te.connect(t)
	require.NoError(t, te.engine.Stop(ctx))
	assert.Equal(t, 0, te.engine.Registry().Len(), "stop closes every connection")
	assert.Error(t, te.engine.CheckHealth())
	assert.NoError(t, te.engine.Stop(ctx))
}

func TestIsSelect(t *testing.T) {
	assert.True(t, isSelect("SELECT 1"))
	assert.True(t, isSelect("\n\t select * from t"))
	assert.False(t, isSelect("UPDATE t SET a = 1"))
	assert.False(t, isSelect(""))
}
