package store

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/devaloi/chatrooms/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens or creates a SQLite database at the given path.
// Use ":memory:" for an in-memory database.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// Each connection to ":memory:" is its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enable wal")
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create tables")
	}

	return &SQLiteStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			username TEXT NOT NULL,
			message TEXT NOT NULL,
			message_type TEXT NOT NULL,
			event_type TEXT NOT NULL,
			sent_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_room_sent ON messages(room_id, sent_at);
	`)
	return err
}

// Save persists a message to the database.
func (s *SQLiteStore) Save(roomID string, msg domain.Message) error {
	ts := time.Now().UTC()
	if msg.SentAt != nil {
		ts = msg.SentAt.UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO messages (room_id, user_id, username, message, message_type, event_type, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		roomID, msg.UserID, msg.Username, msg.Message, string(msg.MessageType), string(msg.EventType), ts,
	)
	return errors.Wrap(err, "insert message")
}

// History returns the last `limit` messages for a room, oldest first.
func (s *SQLiteStore) History(roomID string, limit int) ([]domain.Message, error) {
	rows, err := s.db.Query(`
		SELECT user_id, username, message, message_type, event_type, sent_at FROM messages
		WHERE room_id = ?
		ORDER BY sent_at DESC, id DESC
		LIMIT ?
	`, roomID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query history")
	}
	defer rows.Close()

	msgs := []domain.Message{}
	for rows.Next() {
		var (
			m         domain.Message
			msgType   string
			eventType string
			sentAt    time.Time
		)
		if err := rows.Scan(&m.UserID, &m.Username, &m.Message, &msgType, &eventType, &sentAt); err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		m.MessageType = domain.MessageType(msgType)
		m.EventType = domain.EventType(eventType)
		m.SentAt = &sentAt
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate history")
	}

	reverse(msgs)
	return msgs, nil
}

// Purge deletes every message stored for a room.
func (s *SQLiteStore) Purge(roomID string) error {
	_, err := s.db.Exec("DELETE FROM messages WHERE room_id = ?", roomID)
	return errors.Wrap(err, "purge room")
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func reverse(msgs []domain.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
