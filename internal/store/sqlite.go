package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores history in a SQLite database
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the database and creates the schema. An in-memory DSN
// keeps history only for the life of the process.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)

	createSessionsTable := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		start_time DATETIME,
		backend TEXT
	);`

	createMessagesTable := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT,
		role TEXT,
		content TEXT,
		timestamp DATETIME,
		FOREIGN KEY(session_id) REFERENCES sessions(id)
	);`

	if _, err := db.Exec(createSessionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	if _, err := db.Exec(createMessagesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create messages table: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) EnsureSession(ctx context.Context, sessionID, backend string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO sessions (id, start_time, backend) VALUES (?, ?, ?)",
		sessionID, time.Now(), backend,
	)
	if err != nil {
		return false, fmt.Errorf("failed to save session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to save session: %w", err)
	}
	return n == 1, nil
}

func (s *SQLite) Append(ctx context.Context, sessionID string, msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (session_id, role, content, timestamp) VALUES (?, ?, ?, ?)",
		sessionID, msg.Role, msg.Content, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

func (s *SQLite) History(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, timestamp FROM (
			SELECT id, role, content, timestamp FROM messages
			WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return messages, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
