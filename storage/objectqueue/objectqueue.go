// Package objectqueue turns raw queue storage into a FIFO of typed values.
package objectqueue

import (
	"errors"
	"fmt"

	"github.com/and161185/csm-transport/internal/codec"
	"github.com/and161185/csm-transport/storage/queuefile"
	"go.uber.org/zap"
)

// Entry is a peeked value. Err is set instead of Value when the stored bytes cannot be
// decoded.
type Entry[T any] struct {
	Value T
	Err   error
}

// Encoded is a value prepared by one queue's Encode for that queue's AddEncoded. Size is
// what adding it adds to UsedBytes.
type Encoded[T any] struct {
	Size  int64
	value T
	frame []byte
}

// ObjectQueue is a FIFO of T.
type ObjectQueue[T any] interface {
	Add(value T) error
	Encode(value T) (Encoded[T], error)
	AddEncoded(e Encoded[T]) error
	Peek(n int) ([]Entry[T], error)
	Remove(n int) error
	Size() int
	// UsedBytes is the storage taken by the queued values, FileLength the size on disk.
	UsedBytes() int64
	FileLength() int64
	// Compact releases the storage of removed values.
	Compact() error
	Close() error
}

// FileObjectQueue stores values in a queuefile.QueueFile.
type FileObjectQueue[T any] struct {
	file  *queuefile.QueueFile
	codec codec.Codec[T]
}

// OpenFile opens the queue file at path.
func OpenFile[T any](path string, c codec.Codec[T], compress bool, logger *zap.SugaredLogger) (*FileObjectQueue[T], error) {
	f, err := queuefile.Open(path, queuefile.Options{Compress: compress, Logger: logger})
	if err != nil {
		return nil, err
	}
	return &FileObjectQueue[T]{file: f, codec: c}, nil
}

func (q *FileObjectQueue[T]) Add(value T) error {
	e, err := q.Encode(value)
	if err != nil {
		return err
	}
	return q.AddEncoded(e)
}

func (q *FileObjectQueue[T]) Encode(value T) (Encoded[T], error) {
	data, err := q.codec.Encode(value)
	if err != nil {
		return Encoded[T]{}, fmt.Errorf("encode: %w", err)
	}
	frame := q.file.EncodeFrame(data)
	return Encoded[T]{Size: int64(len(frame)), frame: frame}, nil
}

func (q *FileObjectQueue[T]) AddEncoded(e Encoded[T]) error {
	if e.frame == nil {
		return errors.New("value was not encoded by a file queue")
	}
	return q.file.AddFrame(e.frame)
}

func (q *FileObjectQueue[T]) Peek(n int) ([]Entry[T], error) {
	elements, err := q.file.Peek(n)
	out := make([]Entry[T], 0, len(elements))
	for _, el := range elements {
		if el.Err != nil {
			out = append(out, Entry[T]{Err: el.Err})
			continue
		}
		v, decErr := q.codec.Decode(el.Data)
		out = append(out, Entry[T]{Value: v, Err: decErr})
	}
	return out, err
}

func (q *FileObjectQueue[T]) Remove(n int) error { return q.file.Remove(n) }
func (q *FileObjectQueue[T]) Size() int          { return q.file.Size() }
func (q *FileObjectQueue[T]) UsedBytes() int64   { return q.file.UsedBytes() }
func (q *FileObjectQueue[T]) FileLength() int64  { return q.file.FileLength() }
func (q *FileObjectQueue[T]) Compact() error     { return q.file.Compact() }
func (q *FileObjectQueue[T]) Close() error       { return q.file.Close() }

// Path returns the backing file.
func (q *FileObjectQueue[T]) Path() string { return q.file.Path() }
