package engine

import (
	"github.com/redbco/sqlbridge/internal/database"
	"github.com/redbco/sqlbridge/pkg/anchor/adapter"
	"github.com/redbco/sqlbridge/pkg/rowvalue"
)

// PoolOptionsRequest is the optional pool_options body field. Omitted
// fields fall back to the configured defaults.
type PoolOptionsRequest struct {
	MaxConnections        *uint32 `json:"max_connections,omitempty"`
	MinConnections        *uint32 `json:"min_connections,omitempty"`
	AcquireTimeoutSeconds *uint64 `json:"acquire_timeout_seconds,omitempty"`
	IdleTimeoutSeconds    *uint64 `json:"idle_timeout_seconds,omitempty"`
	MaxLifetimeSeconds    *uint64 `json:"max_lifetime_seconds,omitempty"`
}

// Merge overlays the set fields onto defaults.
func (p *PoolOptionsRequest) Merge(defaults adapter.PoolOptions) adapter.PoolOptions {
	if p == nil {
		return defaults
	}
	out := defaults
	if p.MaxConnections != nil {
		out.MaxConnections = *p.MaxConnections
	}
	if p.MinConnections != nil {
		out.MinConnections = *p.MinConnections
	}
	if p.AcquireTimeoutSeconds != nil {
		out.AcquireTimeoutSeconds = *p.AcquireTimeoutSeconds
	}
	if p.IdleTimeoutSeconds != nil {
		out.IdleTimeoutSeconds = *p.IdleTimeoutSeconds
	}
	if p.MaxLifetimeSeconds != nil {
		out.MaxLifetimeSeconds = *p.MaxLifetimeSeconds
	}
	return out
}

type ConnectRequest struct {
	DBType           string              `json:"db_type"`
	ConnectionString string              `json:"connection_string"`
	Username         *string             `json:"username,omitempty"`
	Password         *string             `json:"password,omitempty"`
	PoolOptions      *PoolOptionsRequest `json:"pool_options,omitempty"`
}

// ConnectionResponse echoes the id and the redacted connection string.
type ConnectionResponse struct {
	ID               string `json:"id"`
	ConnectionString string `json:"connection_string"`
}

type DisconnectRequest struct {
	ConnectionID string `json:"connection_id"`
}

type ListConnectionsResponse struct {
	Connections []database.ConnectionInfo `json:"connections"`
}

type SQLRequest struct {
	ConnectionID string `json:"connection_id"`
	Query        string `json:"query"`
}

type SQLResponse struct {
	Rows []*rowvalue.Object `json:"rows"`
}

type HealthResponse struct {
	Status         string           `json:"status"`
	Connections    int              `json:"connections"`
	ActiveRequests int32            `json:"active_requests"`
	Metrics        map[string]int64 `json:"metrics"`
}

type ConnectionHealthResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
