// Package adapter holds the pieces every backend adapter shares: the connection
// configuration handed to an adapter at construction time, pool sizing options, and
// the error taxonomy adapters report through.
//
// # Configuration
//
// ConnectionConfig carries the connection string, PoolOptions and optional
// credentials. PoolOptions is plain data; adapters translate it into their native
// pool knobs:
//
//	cfg := adapter.NewConnectionConfig("postgres://app@localhost:5432/app", adapter.DefaultPoolOptions())
//	cfg.PoolOptions.AcquireTimeout() // 30s
//
// No validation is applied to PoolOptions. MinConnections above MaxConnections is
// passed through and left to the native library.
//
// # Errors
//
// Adapters report failures with typed errors that match sentinel values:
//
//	ConfigurationError -> ErrInvalidConfiguration (caller-fixable, never retried)
//	ConnectionError    -> ErrConnectionFailed     (handshake, auth, network)
//	DatabaseError      -> wraps the driver error; ErrQueryFailed or ErrConnectionClosed
//
// Callers test with errors.Is or the IsXxx helpers:
//
//	if adapter.IsConnectionError(err) {
//	    // nothing was registered, the caller may retry with corrected parameters
//	}
package adapter
