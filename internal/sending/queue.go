package sending

import (
	"fmt"
	"sync"

	"github.com/and161185/csm-transport/internal/errs"
	"github.com/and161185/csm-transport/storage/objectqueue"
	"go.uber.org/zap"
)

// SendingQueue is a bounded FIFO of records waiting to be sent. It never returns errors:
// failures are logged and reported as a refused offer or a short poll.
type SendingQueue[T any] struct {
	mu      sync.Mutex
	conf    Configuration[T]
	factory ObjectQueueFactory[T]
	queue   objectqueue.ObjectQueue[T]
	logger  *zap.SugaredLogger
}

func NewSendingQueue[T any](conf Configuration[T], factory ObjectQueueFactory[T], logger *zap.SugaredLogger) *SendingQueue[T] {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SendingQueue[T]{
		conf:    conf,
		factory: factory,
		logger:  logger.With("queue", conf.Name),
	}
}

func (q *SendingQueue[T]) Name() string { return q.conf.Name }

// objectQueue creates the storage on first use. Callers hold q.mu.
func (q *SendingQueue[T]) objectQueue() objectqueue.ObjectQueue[T] {
	if q.queue == nil {
		q.queue = q.factory.Create()
	}
	return q.queue
}

// Offer appends v, evicting the oldest records while the limits would be exceeded. It
// returns false when v could not be stored.
func (q *SendingQueue[T]) Offer(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	oq := q.objectQueue()
	enc, err := oq.Encode(v)
	if err != nil {
		q.reject(reasonEncode, err)
		return false
	}

	evicted := 0
	for !q.fits(oq, enc.Size) {
		if oq.Size() == 0 {
			q.reject(reasonCapacity, fmt.Errorf("record of %d bytes over limit %d: %w", enc.Size, q.conf.Limits.MaxBytes, errs.ErrCapacityExceeded))
			return false
		}
		if err := oq.Remove(1); err != nil {
			q.reject(reasonStorage, fmt.Errorf("evict: %w", err))
			return false
		}
		evicted++
	}
	if evicted > 0 {
		queueEvicted.WithLabelValues(q.conf.Name).Add(float64(evicted))
		q.logger.Debugf("evicted %d oldest records", evicted)
	}

	if err := q.reclaim(oq, enc.Size); err != nil {
		q.reject(reasonStorage, err)
		return false
	}

	if err := oq.AddEncoded(enc); err != nil {
		q.reject(reasonStorage, err)
		return false
	}
	queueOffered.WithLabelValues(q.conf.Name).Inc()
	q.observe(oq)
	return true
}

// fits checks the limits against the live records.
func (q *SendingQueue[T]) fits(oq objectqueue.ObjectQueue[T], size int64) bool {
	l := q.conf.Limits
	if l.MaxElements > 0 && oq.Size()+1 > l.MaxElements {
		return false
	}
	if l.MaxBytes > 0 && oq.UsedBytes()+size > l.MaxBytes {
		return false
	}
	return true
}

// reclaim compacts the storage when the space of removed records would push the file past
// MaxBytes. Once fits holds, a compacted file has room for size more bytes.
func (q *SendingQueue[T]) reclaim(oq objectqueue.ObjectQueue[T], size int64) error {
	limit := q.conf.Limits.MaxBytes
	if limit <= 0 || oq.FileLength()+size <= limit {
		return nil
	}
	if err := oq.Compact(); err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	queueCompactions.WithLabelValues(q.conf.Name).Inc()
	return nil
}

func (q *SendingQueue[T]) reject(reason string, err error) {
	queueRejected.WithLabelValues(q.conf.Name, reason).Inc()
	q.logger.Warnf("record not queued: %v", err)
}

// Poll removes and returns up to max records in FIFO order. Unreadable records are dropped
// and do not count towards max. A storage failure ends the poll early; records are only
// returned once removed from storage.
func (q *SendingQueue[T]) Poll(max int) []T {
	if max <= 0 {
		return []T{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	oq := q.objectQueue()
	out := make([]T, 0, max)
	corrupt := 0
	for len(out) < max {
		entries, err := oq.Peek(max - len(out))
		if err != nil {
			q.logger.Errorf("peek: %v", err)
			break
		}
		if len(entries) == 0 {
			break
		}
		if err := oq.Remove(len(entries)); err != nil {
			q.logger.Errorf("remove: %v", err)
			break
		}
		for _, e := range entries {
			if e.Err != nil {
				corrupt++
				q.logger.Debugf("dropping record: %v", e.Err)
				continue
			}
			out = append(out, e.Value)
		}
	}

	if corrupt > 0 {
		queueCorrupt.WithLabelValues(q.conf.Name).Add(float64(corrupt))
		q.logger.Warnf("dropped %d unreadable records", corrupt)
	}
	queuePolled.WithLabelValues(q.conf.Name).Add(float64(len(out)))
	q.observe(oq)
	return out
}

// TotalSize returns the bytes the queue takes on disk.
func (q *SendingQueue[T]) TotalSize() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.objectQueue().FileLength()
}

// Size returns the number of queued records.
func (q *SendingQueue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.objectQueue().Size()
}

// Close releases the storage. The next operation opens it again.
func (q *SendingQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.queue == nil {
		return nil
	}
	err := q.queue.Close()
	q.queue = nil
	return err
}

func (q *SendingQueue[T]) observe(oq objectqueue.ObjectQueue[T]) {
	queueEntries.WithLabelValues(q.conf.Name).Set(float64(oq.Size()))
	queueBytes.WithLabelValues(q.conf.Name).Set(float64(oq.FileLength()))
}
