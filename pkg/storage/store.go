package storage

import (
	"fmt"
	"time"
)

// PresenceRecord is one user session: a logical user attached to one
// transport connection, from registration until disconnect cleanup.
type PresenceRecord struct {
	ID             int64      `json:"id"`
	TenantID       string     `json:"tenant_id"`
	UserID         string     `json:"user_id"`
	ConnectionID   string     `json:"connection_id"`
	ConnectedAt    time.Time  `json:"connected_at"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
}

// Store defines the interface for presence-audit persistence. Message
// bodies are never stored, only session lifecycles.
type Store interface {
	// RecordConnect inserts a new open session row
	RecordConnect(tenantID, userID, connectionID string) error
	// RecordDisconnect closes the open session for the connection
	RecordDisconnect(tenantID, userID, connectionID string) error
	// ActiveSessions returns open sessions for a tenant
	ActiveSessions(tenantID string) ([]*PresenceRecord, error)
	// History returns the most recent sessions for a tenant
	History(tenantID string, limit int) ([]*PresenceRecord, error)
	// Stats returns total and currently open session counts
	Stats() (total, active int, err error)
	// Close releases the underlying database
	Close() error
}

// Open builds a Store for the configured backend type.
func Open(dbType, path, dsn string) (Store, error) {
	switch dbType {
	case "sqlite":
		return NewSQLiteStore(path)
	case "mysql":
		return NewMySQLStore(dsn)
	default:
		return nil, fmt.Errorf("unknown database type: %s", dbType)
	}
}
