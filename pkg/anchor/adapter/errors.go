package adapter

import (
	"errors"
	"fmt"

	"github.com/redbco/sqlbridge/pkg/dbcapabilities"
)

// Standard adapter errors
var (
	// ErrConnectionClosed is returned when attempting to use a closed connection
	ErrConnectionClosed = errors.New("connection is closed")

	// ErrConnectionFailed is returned when a connection attempt fails
	ErrConnectionFailed = errors.New("connection failed")

	// ErrInvalidConfiguration is returned when the configuration is invalid
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrQueryFailed is returned when the database rejects or fails a query
	ErrQueryFailed = errors.New("query failed")

	// ErrConnectionNotFound is returned when a connection id is not registered
	ErrConnectionNotFound = errors.New("connection not found")
)

// DatabaseError wraps database-specific errors with additional context.
// This provides a consistent error structure across all database types.
type DatabaseError struct {
	DatabaseType dbcapabilities.DatabaseID
	Operation    string
	Cause        error
	Context      map[string]interface{}
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if len(e.Context) > 0 {
		return fmt.Sprintf("[%s] %s: %v (context: %v)", e.DatabaseType, e.Operation, e.Cause, e.Context)
	}
	return fmt.Sprintf("[%s] %s: %v", e.DatabaseType, e.Operation, e.Cause)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// NewDatabaseError creates a new DatabaseError.
func NewDatabaseError(dbType dbcapabilities.DatabaseID, operation string, cause error) *DatabaseError {
	return &DatabaseError{
		DatabaseType: dbType,
		Operation:    operation,
		Cause:        cause,
		Context:      make(map[string]interface{}),
	}
}

// WithContext adds context to a DatabaseError.
func (e *DatabaseError) WithContext(key string, value interface{}) *DatabaseError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// QueryError is returned when executing a query fails. The connection that
// produced it stays registered and usable.
type QueryError struct {
	*DatabaseError
}

// Is checks if the error is ErrQueryFailed.
func (e *QueryError) Is(target error) bool {
	return target == ErrQueryFailed
}

// NewQueryError wraps a driver error raised while running or decoding a query.
func NewQueryError(dbType dbcapabilities.DatabaseID, cause error) *QueryError {
	return &QueryError{DatabaseError: NewDatabaseError(dbType, "execute_query", cause)}
}

// WithContext adds context to a QueryError.
func (e *QueryError) WithContext(key string, value interface{}) *QueryError {
	e.DatabaseError.WithContext(key, value)
	return e
}

// NewClosedError reports an operation attempted after the connection was closed.
func NewClosedError(dbType dbcapabilities.DatabaseID, operation string) *DatabaseError {
	return NewDatabaseError(dbType, operation, ErrConnectionClosed)
}

// ConnectionError is returned when a connection error occurs.
type ConnectionError struct {
	DatabaseType dbcapabilities.DatabaseID
	Target       string // redacted connection string
	Cause        error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("failed to connect to %s: %v", e.DatabaseType, e.Cause)
	}
	return fmt.Sprintf("failed to connect to %s at %s: %v", e.DatabaseType, e.Target, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is ErrConnectionFailed.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnectionFailed
}

// NewConnectionError creates a new ConnectionError. The connection string is
// redacted before it is stored.
func NewConnectionError(dbType dbcapabilities.DatabaseID, connectionString string, cause error) *ConnectionError {
	return &ConnectionError{
		DatabaseType: dbType,
		Target:       dbcapabilities.RedactConnectionString(connectionString),
		Cause:        cause,
	}
}

// ConfigurationError is returned when a configuration error occurs.
type ConfigurationError struct {
	DatabaseType dbcapabilities.DatabaseID
	Field        string
	Reason       string
}

// Error implements the error interface. The reason alone is returned so that
// request validation messages reach callers verbatim.
func (e *ConfigurationError) Error() string {
	return e.Reason
}

// Detail returns the reason qualified with the backend and field.
func (e *ConfigurationError) Detail() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration for %s: field '%s': %s", e.DatabaseType, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid configuration for %s: %s", e.DatabaseType, e.Reason)
}

// Is checks if the error is ErrInvalidConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(dbType dbcapabilities.DatabaseID, field string, reason string) *ConfigurationError {
	return &ConfigurationError{
		DatabaseType: dbType,
		Field:        field,
		Reason:       reason,
	}
}

// WrapError wraps an error with database context.
// Errors that already carry adapter context are returned as-is.
func WrapError(dbType dbcapabilities.DatabaseID, operation string, err error) error {
	if err == nil {
		return nil
	}

	// Don't double-wrap
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return err
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return err
	}

	return NewDatabaseError(dbType, operation, err)
}

// IsConnectionError checks if an error is a connection error.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// IsConfigurationError checks if an error is a configuration error.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}

// IsQueryError checks if an error is a query failure.
func IsQueryError(err error) bool {
	return errors.Is(err, ErrQueryFailed)
}

// IsClosed checks if an error reports use of a closed connection.
func IsClosed(err error) bool {
	return errors.Is(err, ErrConnectionClosed)
}

// IsNotFound checks if an error reports an unknown connection id.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrConnectionNotFound)
}
