// Package storage is the write-only audit trail. Decisions the bot makes
// (notifications sent or skipped, promotions, broadcasts, escalations) are
// appended for offline review; nothing in the runtime reads them back.
package storage

import (
	"context"
	"errors"
	"strings"

	"deskbot/pkg/logx"
)

// Store is the persistence API used by the rest of the bot.
type Store interface {
	AppendEvent(ctx context.Context, e Event) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if auditing is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
