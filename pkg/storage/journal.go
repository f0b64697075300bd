package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/uhyunpark/sigbook/pkg/util"
)

// Journal is an append-only side record of submission events, one JSON object per line.
// It is informational; the order book and audit log live in Store.
type Journal interface {
	Append(event string, data map[string]any) error
	Close() error
}

type NopJournal struct{}

func NewNopJournal() NopJournal                        { return NopJournal{} }
func (NopJournal) Append(string, map[string]any) error { return nil }
func (NopJournal) Close() error                        { return nil }

type FileJournal struct {
	mu    sync.Mutex
	f     *os.File
	clock util.Clock
}

// NewFileJournal opens path for appending, creating parent directories
func NewFileJournal(path string, clock util.Clock) (*FileJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileJournal{f: f, clock: clock}, nil
}

func (j *FileJournal) Append(event string, data map[string]any) error {
	line, err := json.Marshal(map[string]any{
		"timestamp": j.clock.Now().UTC().Format(time.RFC3339),
		"event":     event,
		"data":      data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = j.f.Write(append(line, '\n'))
	return err
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

var (
	_ Journal = NopJournal{}
	_ Journal = (*FileJournal)(nil)
)
