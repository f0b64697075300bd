package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/sigbook/pkg/order"
)

// PebbleStore keeps the order book in a local Pebble database.
// Each create writes the record and its table's sequence in one synced batch.
type PebbleStore struct {
	db *pebble.DB

	mu          sync.Mutex // guards id assignment
	lastOrderID uint64
	lastLogID   uint64
}

// NewPebbleStore opens (or creates) a Pebble database at path
func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}

	s := &PebbleStore{db: db}
	if s.lastOrderID, err = s.loadSeq(orderSeqKey()); err != nil {
		db.Close()
		return nil, err
	}
	if s.lastLogID, err = s.loadSeq(logSeqKey()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) loadSeq(key []byte) (uint64, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read sequence %s: %w", key, err)
	}
	defer closer.Close()
	return decodeSeq(val)
}

// CreateOrder persists o under the next order id and sets o.ID
func (s *PebbleStore) CreateOrder(ctx context.Context, o *order.Order) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.lastOrderID + 1
	rec := *o
	rec.ID = id
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal order: %w", err)
	}
	if err := s.commit(orderSeqKey(), orderKey(id), id, data); err != nil {
		return 0, fmt.Errorf("failed to save order: %w", err)
	}

	s.lastOrderID = id
	o.ID = id
	return id, nil
}

// CreateLog appends message under the next log id
func (s *PebbleStore) CreateLog(ctx context.Context, message string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.lastLogID + 1
	data, err := json.Marshal(order.LogEntry{ID: id, Message: message})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal log entry: %w", err)
	}
	if err := s.commit(logSeqKey(), logKey(id), id, data); err != nil {
		return 0, fmt.Errorf("failed to save log entry: %w", err)
	}

	s.lastLogID = id
	return id, nil
}

// commit writes the record and bumps its sequence atomically
func (s *PebbleStore) commit(seqKey, key []byte, id uint64, value []byte) error {
	b := s.db.NewBatch()
	defer b.Close()

	if err := b.Set(seqKey, encodeSeq(id), nil); err != nil {
		return err
	}
	if err := b.Set(key, value, nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// ListOrders loads all orders in id order
func (s *PebbleStore) ListOrders(ctx context.Context) ([]order.Order, error) {
	var orders []order.Order
	err := s.scan(ctx, []byte(prefixOrder), func(v []byte) error {
		var o order.Order
		if err := json.Unmarshal(v, &o); err != nil {
			return fmt.Errorf("failed to unmarshal order: %w", err)
		}
		orders = append(orders, o)
		return nil
	})
	return orders, err
}

// ListLogs loads all audit entries in id order
func (s *PebbleStore) ListLogs(ctx context.Context) ([]order.LogEntry, error) {
	var entries []order.LogEntry
	err := s.scan(ctx, []byte(prefixLog), func(v []byte) error {
		var e order.LogEntry
		if err := json.Unmarshal(v, &e); err != nil {
			return fmt.Errorf("failed to unmarshal log entry: %w", err)
		}
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

func (s *PebbleStore) scan(ctx context.Context, prefix []byte, fn func(value []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

var _ Store = (*PebbleStore)(nil)
