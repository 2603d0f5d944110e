package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"chathub/pkg/errors"
)

// MySQLStore implements Store using a MySQL backend. The DSN must enable
// parseTime so DATETIME columns scan into time.Time.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore creates a new MySQL-backed store
func NewMySQLStore(dsn string) (Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: mysql ping: %v", errors.ErrDatabaseConnection, err)
	}

	store := &MySQLStore{db: db}

	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initDB initializes the database schema
func (s *MySQLStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS presence_sessions (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		tenant_id VARCHAR(191) NOT NULL,
		user_id VARCHAR(191) NOT NULL,
		connection_id VARCHAR(191) NOT NULL,
		connected_at DATETIME NOT NULL,
		disconnected_at DATETIME NULL,
		INDEX idx_sessions_tenant (tenant_id),
		INDEX idx_sessions_open (tenant_id, disconnected_at),
		INDEX idx_sessions_connection (connection_id)
	)`

	_, err := s.db.Exec(schema)
	return err
}

// RecordConnect inserts a new open session row
func (s *MySQLStore) RecordConnect(tenantID, userID, connectionID string) error {
	_, err := s.db.Exec(`
		INSERT INTO presence_sessions (tenant_id, user_id, connection_id, connected_at)
		VALUES (?, ?, ?, ?)`,
		tenantID, userID, connectionID, time.Now().UTC())
	return err
}

// RecordDisconnect closes the open session for the connection
func (s *MySQLStore) RecordDisconnect(tenantID, userID, connectionID string) error {
	_, err := s.db.Exec(`
		UPDATE presence_sessions
		SET disconnected_at = ?
		WHERE tenant_id = ? AND user_id = ? AND connection_id = ? AND disconnected_at IS NULL`,
		time.Now().UTC(), tenantID, userID, connectionID)
	return err
}

// ActiveSessions returns open sessions for a tenant
func (s *MySQLStore) ActiveSessions(tenantID string) ([]*PresenceRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, tenant_id, user_id, connection_id, connected_at, disconnected_at
		FROM presence_sessions
		WHERE tenant_id = ? AND disconnected_at IS NULL
		ORDER BY connected_at`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// History returns the most recent sessions for a tenant
func (s *MySQLStore) History(tenantID string, limit int) ([]*PresenceRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT id, tenant_id, user_id, connection_id, connected_at, disconnected_at
		FROM presence_sessions
		WHERE tenant_id = ?
		ORDER BY connected_at DESC
		LIMIT ?`,
		tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Stats returns total and currently open session counts
func (s *MySQLStore) Stats() (total, active int, err error) {
	err = s.db.QueryRow(`SELECT COUNT(*) FROM presence_sessions`).Scan(&total)
	if err != nil {
		return 0, 0, err
	}

	err = s.db.QueryRow(`SELECT COUNT(*) FROM presence_sessions WHERE disconnected_at IS NULL`).Scan(&active)
	if err != nil {
		return 0, 0, err
	}

	return total, active, nil
}

// Close releases the underlying database
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
