package adapter

import (
	"time"
)

// Pool defaults applied when a request does not carry its own options.
const (
	DefaultMaxConnections        uint32 = 5
	DefaultMinConnections        uint32 = 0
	DefaultAcquireTimeoutSeconds uint64 = 30
	DefaultIdleTimeoutSeconds    uint64 = 300
	DefaultMaxLifetimeSeconds    uint64 = 1800
)

// PoolOptions describes pool sizing and timeout policy for a connection.
// It is immutable once a connection has been built from it.
type PoolOptions struct {
	MaxConnections        uint32 `json:"max_connections" yaml:"max_connections"`
	MinConnections        uint32 `json:"min_connections" yaml:"min_connections"`
	AcquireTimeoutSeconds uint64 `json:"acquire_timeout_seconds" yaml:"acquire_timeout_seconds"`
	IdleTimeoutSeconds    uint64 `json:"idle_timeout_seconds" yaml:"idle_timeout_seconds"`
	MaxLifetimeSeconds    uint64 `json:"max_lifetime_seconds" yaml:"max_lifetime_seconds"`
}

// DefaultPoolOptions returns max=5, min=0, acquire=30s, idle=300s, lifetime=1800s.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxConnections:        DefaultMaxConnections,
		MinConnections:        DefaultMinConnections,
		AcquireTimeoutSeconds: DefaultAcquireTimeoutSeconds,
		IdleTimeoutSeconds:    DefaultIdleTimeoutSeconds,
		MaxLifetimeSeconds:    DefaultMaxLifetimeSeconds,
	}
}

// AcquireTimeout bounds how long obtaining a pooled connection may wait.
func (p PoolOptions) AcquireTimeout() time.Duration {
	return time.Duration(p.AcquireTimeoutSeconds) * time.Second
}

// IdleTimeout is how long an unused pooled connection is kept.
func (p PoolOptions) IdleTimeout() time.Duration {
	return time.Duration(p.IdleTimeoutSeconds) * time.Second
}

// MaxLifetime is the maximum age of a pooled connection.
func (p PoolOptions) MaxLifetime() time.Duration {
	return time.Duration(p.MaxLifetimeSeconds) * time.Second
}

// ConnectionConfig contains what an adapter needs to open its pool or session.
type ConnectionConfig struct {
	ConnectionString string      `json:"connectionString"`
	PoolOptions      PoolOptions `json:"poolOptions"`

	// Optional credentials. Oracle requires both and keeps them for the life
	// of its session; the other backends read credentials from the connection string.
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
}

// NewConnectionConfig creates a config without credentials.
func NewConnectionConfig(connectionString string, poolOptions PoolOptions) ConnectionConfig {
	return ConnectionConfig{
		ConnectionString: connectionString,
		PoolOptions:      poolOptions,
	}
}

// WithCredentials returns a copy of the config carrying username and password.
func (c ConnectionConfig) WithCredentials(username, password string) ConnectionConfig {
	c.Username = &username
	c.Password = &password
	return c
}

// HasCredentials reports whether both username and password are present.
func (c ConnectionConfig) HasCredentials() bool {
	return c.Username != nil && c.Password != nil
}

// GetStringPtr returns a pointer to a string value, or nil if the string is empty.
// Helper function for optional string fields.
func GetStringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetString returns the string value from a pointer, or empty string if nil.
// Helper function for optional string fields.
func GetString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
