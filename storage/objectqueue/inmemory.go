package objectqueue

import (
	"fmt"
	"sync"

	"github.com/and161185/csm-transport/internal/codec"
	"github.com/and161185/csm-transport/internal/errs"
)

type memEntry[T any] struct {
	value T
	size  int64
}

// InMemoryObjectQueue keeps values in a slice. Nothing survives the process and FileLength
// is always 0. Without a codec every value measures 0 bytes, so only element limits apply.
type InMemoryObjectQueue[T any] struct {
	mu      sync.Mutex
	codec   codec.Codec[T]
	entries []memEntry[T]
	used    int64
	closed  bool
}

func NewInMemory[T any]() *InMemoryObjectQueue[T] {
	return &InMemoryObjectQueue[T]{}
}

// NewInMemoryWithCodec measures each value by its encoded length, so byte limits hold as
// they do for the file queue.
func NewInMemoryWithCodec[T any](c codec.Codec[T]) *InMemoryObjectQueue[T] {
	return &InMemoryObjectQueue[T]{codec: c}
}

func (q *InMemoryObjectQueue[T]) Add(value T) error {
	e, err := q.Encode(value)
	if err != nil {
		return err
	}
	return q.AddEncoded(e)
}

func (q *InMemoryObjectQueue[T]) Encode(value T) (Encoded[T], error) {
	if q.codec == nil {
		return Encoded[T]{value: value}, nil
	}
	data, err := q.codec.Encode(value)
	if err != nil {
		return Encoded[T]{}, fmt.Errorf("encode: %w", err)
	}
	return Encoded[T]{Size: int64(len(data)), value: value}, nil
}

func (q *InMemoryObjectQueue[T]) AddEncoded(e Encoded[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errs.ErrQueueClosed
	}
	q.entries = append(q.entries, memEntry[T]{value: e.value, size: e.Size})
	q.used += e.Size
	return nil
}

func (q *InMemoryObjectQueue[T]) Peek(n int) ([]Entry[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, errs.ErrQueueClosed
	}
	if n > len(q.entries) {
		n = len(q.entries)
	}
	out := make([]Entry[T], 0, n)
	for _, e := range q.entries[:n] {
		out = append(out, Entry[T]{Value: e.value})
	}
	return out, nil
}

func (q *InMemoryObjectQueue[T]) Remove(n int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errs.ErrQueueClosed
	}
	if n > len(q.entries) {
		n = len(q.entries)
	}
	if n <= 0 {
		return nil
	}
	for _, e := range q.entries[:n] {
		q.used -= e.size
	}
	q.entries = append([]memEntry[T](nil), q.entries[n:]...)
	return nil
}

func (q *InMemoryObjectQueue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *InMemoryObjectQueue[T]) UsedBytes() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used
}

func (q *InMemoryObjectQueue[T]) FileLength() int64 { return 0 }
func (q *InMemoryObjectQueue[T]) Compact() error    { return nil }

func (q *InMemoryObjectQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
