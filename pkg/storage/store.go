package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/uhyunpark/sigbook/params"
	"github.com/uhyunpark/sigbook/pkg/order"
)

// Store persists the order book and the audit log.
// Each create is one atomic write; implementations are safe for concurrent use.
// There is no deduplication: identical orders become separate rows.
type Store interface {
	// CreateOrder inserts o, assigns its ID and returns it
	CreateOrder(ctx context.Context, o *order.Order) (uint64, error)

	// CreateLog appends a rejected submission's message and returns its ID
	CreateLog(ctx context.Context, message string) (uint64, error)

	// ListOrders returns every order in ID order
	ListOrders(ctx context.Context) ([]order.Order, error)

	// ListLogs returns every audit entry in ID order
	ListLogs(ctx context.Context) ([]order.LogEntry, error)

	Close() error
}

// Backend names accepted by Open
const (
	BackendPebble   = "pebble"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

var ErrUnknownBackend = errors.New("unknown store backend")

// Open creates the store selected by cfg.Backend
func Open(ctx context.Context, cfg params.Store, logger *zap.SugaredLogger) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case BackendPebble:
		s, err = NewPebbleStore(cfg.PebblePath)
	case BackendSQLite:
		s, err = NewSQLiteStore(cfg.SQLitePath)
	case BackendPostgres:
		s, err = NewPostgresStore(ctx, cfg.PostgresDSN)
	case BackendMemory:
		s = NewMemoryStore()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Backend, err)
	}

	logger.Infow("store_opened", "backend", cfg.Backend)
	return s, nil
}
