package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/csm-transport/model"
	"github.com/and161185/csm-transport/storage"
)

// MemStorage keeps received rows in memory.
type MemStorage struct {
	mu        sync.RWMutex
	feedbacks []storage.FeedbackRow
	logs      []storage.LogRow
	now       func() time.Time
}

func NewMemStorage() *MemStorage {
	return &MemStorage{now: time.Now}
}

func (store *MemStorage) SaveMetrics(ctx context.Context, req model.MetricRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows := storage.FeedbackRows(req, store.now())

	store.mu.Lock()
	defer store.mu.Unlock()
	store.feedbacks = append(store.feedbacks, rows...)
	return nil
}

func (store *MemStorage) SaveLogs(ctx context.Context, logs []model.RemoteLogRecords) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows := storage.LogRows(logs, store.now())

	store.mu.Lock()
	defer store.mu.Unlock()
	store.logs = append(store.logs, rows...)
	return nil
}

func (store *MemStorage) Stats(ctx context.Context) (storage.Stats, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return storage.Stats{
		Feedbacks:   int64(len(store.feedbacks)),
		LogMessages: int64(len(store.logs)),
	}, nil
}

// Feedbacks returns a copy of the stored feedback rows.
func (store *MemStorage) Feedbacks() []storage.FeedbackRow {
	store.mu.RLock()
	defer store.mu.RUnlock()
	out := make([]storage.FeedbackRow, len(store.feedbacks))
	copy(out, store.feedbacks)
	return out
}

// Logs returns a copy of the stored log rows.
func (store *MemStorage) Logs() []storage.LogRow {
	store.mu.RLock()
	defer store.mu.RUnlock()
	out := make([]storage.LogRow, len(store.logs))
	copy(out, store.logs)
	return out
}

func (store *MemStorage) Ping(ctx context.Context) error { return nil }

func (store *MemStorage) Close() error { return nil }
