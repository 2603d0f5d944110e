package storage

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using a SQLite backend
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-backed store
func NewSQLiteStore(dbPath string) (Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initDB initializes the database schema
func (s *SQLiteStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS presence_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		connection_id TEXT NOT NULL,
		connected_at DATETIME NOT NULL,
		disconnected_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_tenant ON presence_sessions(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_open ON presence_sessions(tenant_id, disconnected_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_connection ON presence_sessions(connection_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordConnect inserts a new open session row
func (s *SQLiteStore) RecordConnect(tenantID, userID, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO presence_sessions (tenant_id, user_id, connection_id, connected_at)
		VALUES (?, ?, ?, ?)`,
		tenantID, userID, connectionID, time.Now().UTC())
	return err
}

// RecordDisconnect closes the open session for the connection
func (s *SQLiteStore) RecordDisconnect(tenantID, userID, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE presence_sessions
		SET disconnected_at = ?
		WHERE tenant_id = ? AND user_id = ? AND connection_id = ? AND disconnected_at IS NULL`,
		time.Now().UTC(), tenantID, userID, connectionID)
	return err
}

// ActiveSessions returns open sessions for a tenant
func (s *SQLiteStore) ActiveSessions(tenantID string) ([]*PresenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

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
func (s *SQLiteStore) History(tenantID string, limit int) ([]*PresenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

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
func (s *SQLiteStore) Stats() (total, active int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanRecords reads presence rows from a result set
func scanRecords(rows *sql.Rows) ([]*PresenceRecord, error) {
	var out []*PresenceRecord
	for rows.Next() {
		rec := &PresenceRecord{}
		var disconnected sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.UserID, &rec.ConnectionID, &rec.ConnectedAt, &disconnected); err != nil {
			return nil, err
		}
		if disconnected.Valid {
			t := disconnected.Time
			rec.DisconnectedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
