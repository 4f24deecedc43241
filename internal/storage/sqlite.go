package storage

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
)

var (
	// ErrExists is returned when a create hits an already-taken key.
	ErrExists = errors.New("already exists")
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("not found")
)

// SQLite extended result codes for constraint violations on primary keys.
const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// DB wraps a sql.DB connection to a SQLite database.
type DB struct {
	db *sql.DB
}

// NewDB opens (or creates) a SQLite database at path and runs schema migrations.
func NewDB(path string) (*DB, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer connection: SQLite serializes writes anyway, and a single
	// connection turns would-be SQLITE_BUSY errors into queueing.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	// Enable foreign keys.
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	d := &DB{db: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// migrate creates all required tables if they do not already exist.
func (d *DB) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS users (
    username TEXT PRIMARY KEY,
    verifier BLOB NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
    token TEXT PRIMARY KEY,
    username TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL,
    FOREIGN KEY (username) REFERENCES users(username)
);

CREATE INDEX IF NOT EXISTS idx_sessions_username ON sessions(username);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);`
	_, err := d.db.Exec(schema)
	return err
}

// isKeyTaken reports whether err is a primary-key or unique constraint
// violation. Registration relies on this for its atomic check-then-write:
// the INSERT itself is the existence check.
func isKeyTaken(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqliteConstraintPrimaryKey || se.Code() == sqliteConstraintUnique
}

// --- Identity CRUD ---

// CreateIdentity inserts a new identity. A duplicate username returns
// ErrExists and leaves the original record untouched (first writer wins).
func (d *DB) CreateIdentity(id *Identity) error {
	_, err := d.db.Exec(
		`INSERT INTO users (username, verifier, created_at) VALUES (?, ?, ?)`,
		id.Username, id.Verifier, id.CreatedAt,
	)
	if err != nil {
		if isKeyTaken(err) {
			return fmt.Errorf("create identity %q: %w", id.Username, ErrExists)
		}
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

// GetIdentity retrieves an identity by username.
func (d *DB) GetIdentity(username string) (*Identity, error) {
	id := &Identity{}
	err := d.db.QueryRow(
		`SELECT username, verifier, created_at FROM users WHERE username = ?`, username,
	).Scan(&id.Username, &id.Verifier, &id.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get identity %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return id, nil
}

// ListUsernames returns all registered usernames.
func (d *DB) ListUsernames() ([]string, error) {
	rows, err := d.db.Query(`SELECT username FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list usernames: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan username: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// --- Session CRUD ---

// CreateSession inserts a new session record.
func (d *DB) CreateSession(s *Session) error {
	_, err := d.db.Exec(
		`INSERT INTO sessions (token, username, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		s.Token, s.Username, s.CreatedAt, s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by token.
func (d *DB) GetSession(token string) (*Session, error) {
	s := &Session{}
	err := d.db.QueryRow(
		`SELECT token, username, created_at, expires_at FROM sessions WHERE token = ?`, token,
	).Scan(&s.Token, &s.Username, &s.CreatedAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get session: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// DeleteSession removes a session by token.
func (d *DB) DeleteSession(token string) error {
	res, err := d.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete session: %w", ErrNotFound)
	}
	return nil
}

// DeleteExpiredSessions removes sessions whose expiry is at or before now.
// Returns the number of sessions removed.
func (d *DB) DeleteExpiredSessions(now int64) (int, error) {
	res, err := d.db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions rows affected: %w", err)
	}
	return int(n), nil
}
