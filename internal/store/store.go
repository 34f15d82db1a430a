package store

import (
	"github.com/pkg/errors"

	"github.com/devaloi/chatrooms/internal/config"
	"github.com/devaloi/chatrooms/internal/domain"
)

// Store defines the message persistence interface.
type Store interface {
	// Save persists a message posted to a room.
	Save(roomID string, msg domain.Message) error
	// History returns the last `limit` messages for a room, oldest first.
	History(roomID string, limit int) ([]domain.Message, error)
	// Purge removes all messages stored for a room.
	Purge(roomID string) error
	// Close releases any resources held by the store.
	Close() error
}

// Open returns the store selected by cfg.StoreDriver.
func Open(cfg config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite, "":
		return NewSQLite(cfg.DBPath)
	case config.DriverRedis:
		return NewRedis(cfg.RedisAddr, cfg.MaxHistory)
	default:
		return nil, errors.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
