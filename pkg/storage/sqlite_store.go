package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/uhyunpark/sigbook/pkg/order"
)

// orderRow maps the orders table. Amounts are stored as decimal text so they round-trip exactly.
type orderRow struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement"`
	Signature    string          `gorm:"not null"`
	SenderPK     string          `gorm:"column:sender_pk;not null"`
	ReceiverPK   string          `gorm:"column:receiver_pk;not null"`
	BuyCurrency  string          `gorm:"not null"`
	SellCurrency string          `gorm:"not null"`
	BuyAmount    decimal.Decimal `gorm:"type:text;not null"`
	SellAmount   decimal.Decimal `gorm:"type:text;not null"`
}

func (orderRow) TableName() string { return "orders" }

type logRow struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	Message string `gorm:"not null"`
}

func (logRow) TableName() string { return "logs" }

// SQLiteStore keeps the order book in a single SQLite file through gorm
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the database file at path and migrates the tables
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db at %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	// SQLite allows one writer; a single connection turns contention into queueing
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&orderRow{}, &logRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) CreateOrder(ctx context.Context, o *order.Order) (uint64, error) {
	row := orderRow{
		Signature:    o.Signature,
		SenderPK:     o.SenderPK,
		ReceiverPK:   o.ReceiverPK,
		BuyCurrency:  o.BuyCurrency,
		SellCurrency: o.SellCurrency,
		BuyAmount:    o.BuyAmount,
		SellAmount:   o.SellAmount,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("failed to save order: %w", err)
	}
	o.ID = row.ID
	return row.ID, nil
}

func (s *SQLiteStore) CreateLog(ctx context.Context, message string) (uint64, error) {
	row := logRow{Message: message}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("failed to save log entry: %w", err)
	}
	return row.ID, nil
}

func (s *SQLiteStore) ListOrders(ctx context.Context) ([]order.Order, error) {
	var rows []orderRow
	if err := s.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	orders := make([]order.Order, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, order.Order{
			ID:           r.ID,
			Signature:    r.Signature,
			SenderPK:     r.SenderPK,
			ReceiverPK:   r.ReceiverPK,
			BuyCurrency:  r.BuyCurrency,
			SellCurrency: r.SellCurrency,
			BuyAmount:    r.BuyAmount,
			SellAmount:   r.SellAmount,
		})
	}
	return orders, nil
}

func (s *SQLiteStore) ListLogs(ctx context.Context) ([]order.LogEntry, error) {
	var rows []logRow
	if err := s.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load log entries: %w", err)
	}

	entries := make([]order.LogEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, order.LogEntry{ID: r.ID, Message: r.Message})
	}
	return entries, nil
}

var _ Store = (*SQLiteStore)(nil)
