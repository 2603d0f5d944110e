package errors

import "errors"

// Session validation errors
var (
	// ErrSessionInvalid is returned when a connection fails session validation
	ErrSessionInvalid = errors.New("invalid session")

	// ErrTenantTokenMissing is returned when no tenant token can be extracted from the request
	ErrTenantTokenMissing = errors.New("tenant token missing")
)

// Lookup errors
var (
	// ErrTenantNotFound is returned when a tenant is not registered
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrUserNotFound is returned when a user is not known to the tenant
	ErrUserNotFound = errors.New("user not found")

	// ErrGroupNotFound is returned when a group does not exist within the tenant
	ErrGroupNotFound = errors.New("group not found")
)

// State consistency errors
var (
	// ErrTenantNoUsers is returned when a connection lookup hits a tenant
	// with zero users. It signals a cleanup bug upstream and must be
	// surfaced, not swallowed.
	ErrTenantNoUsers = errors.New("tenant has no users")
)

// Transport errors
var (
	// ErrConnectionNotFound is returned when a connection id is not registered
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrSendBufferFull is returned when a connection's send buffer is full
	ErrSendBufferFull = errors.New("send buffer full")

	// ErrConnectionClosed is returned when writing to a closed connection
	ErrConnectionClosed = errors.New("connection closed")
)

// Storage errors
var (
	// ErrStorageNotInitialized is returned when storage is not initialized
	ErrStorageNotInitialized = errors.New("storage not initialized")

	// ErrDatabaseConnection is returned when database connection fails
	ErrDatabaseConnection = errors.New("database connection failed")
)

// Configuration errors
var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")
)
