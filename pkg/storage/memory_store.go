package storage

import (
	"context"
	"sync"

	"github.com/uhyunpark/sigbook/pkg/order"
)

// MemoryStore is a non-durable Store for tests and throwaway nodes
type MemoryStore struct {
	mu     sync.Mutex
	orders []order.Order
	logs   []order.LogEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) CreateOrder(_ context.Context, o *order.Order) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = uint64(len(s.orders)) + 1
	s.orders = append(s.orders, *o)
	return o.ID, nil
}

func (s *MemoryStore) CreateLog(_ context.Context, message string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uint64(len(s.logs)) + 1
	s.logs = append(s.logs, order.LogEntry{ID: id, Message: message})
	return id, nil
}

func (s *MemoryStore) ListOrders(_ context.Context) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]order.Order(nil), s.orders...), nil
}

func (s *MemoryStore) ListLogs(_ context.Context) ([]order.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]order.LogEntry(nil), s.logs...), nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
