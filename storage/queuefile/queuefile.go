// Package queuefile implements a crash-safe FIFO of byte elements stored in a single file.
//
// An element is visible only once the header has been rewritten to cover it, so an append
// interrupted by a crash leaves the queue exactly as it was before the append. Removing
// elements only moves the head; the file is truncated when the queue empties and the
// consumed prefix is compacted away once it dominates the file.
package queuefile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/and161185/csm-transport/internal/errs"
	"go.uber.org/zap"
)

const (
	compactSuffix   = ".compact"
	compactMinBytes = 64 * 1024
)

// Options tune a QueueFile.
type Options struct {
	Compress bool // snappy-compress element payloads
	Logger   *zap.SugaredLogger
}

// Element is one entry returned by Peek. Err is set when the stored bytes are unreadable;
// such an element can only be removed.
type Element struct {
	Data []byte
	Err  error
}

type entry struct {
	offset int64
	length int64 // whole frame
}

// QueueFile is safe for concurrent use.
type QueueFile struct {
	mu       sync.Mutex
	path     string
	f        *os.File
	compress bool
	logger   *zap.SugaredLogger

	head    int64
	tail    int64
	entries []entry
	closed  bool
}

// Open opens or creates the queue file at path and rebuilds its state from disk.
func Open(path string, opts Options) (*QueueFile, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	_ = os.Remove(path + compactSuffix)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errs.NewIOError("open", path, err)
	}

	q := &QueueFile{
		path:     path,
		f:        f,
		compress: opts.Compress,
		logger:   logger,
	}
	if err := q.recover(); err != nil {
		f.Close()
		return nil, err
	}
	return q, nil
}

func (q *QueueFile) recover() error {
	info, err := q.f.Stat()
	if err != nil {
		return errs.NewIOError("stat", q.path, err)
	}
	size := info.Size()
	if size == 0 {
		return q.reset()
	}

	buf := make([]byte, HeaderSize)
	if _, err := q.f.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return errs.NewIOError("read header", q.path, err)
	}
	h, err := decodeHeader(buf, size)
	if err != nil {
		q.logger.Warnf("queue file %s has an unreadable header, dropping its content: %v", q.path, err)
		return q.reset()
	}
	q.head = int64(h.head)
	q.tail = int64(h.tail)

	if size > q.tail {
		if err := q.f.Truncate(q.tail); err != nil {
			return errs.NewIOError("truncate", q.path, err)
		}
	}

	if err := q.index(); err != nil {
		return err
	}

	if uint32(len(q.entries)) != h.count || q.tail != int64(h.tail) {
		q.logger.Warnf("queue file %s: header says %d elements, found %d", q.path, h.count, len(q.entries))
		if err := q.commitHeader(); err != nil {
			return err
		}
		if err := q.f.Truncate(q.tail); err != nil {
			return errs.NewIOError("truncate", q.path, err)
		}
	}
	return nil
}

// index walks the frames between head and tail. A frame running past the tail ends the
// queue there.
func (q *QueueFile) index() error {
	q.entries = q.entries[:0]
	lenBuf := make([]byte, 4)
	for off := q.head; off < q.tail; {
		if q.tail-off < frameHeaderSize {
			q.logger.Warnf("queue file %s: truncated frame at %d", q.path, off)
			q.tail = off
			break
		}
		if _, err := q.f.ReadAt(lenBuf, off); err != nil {
			return errs.NewIOError("read frame", q.path, err)
		}
		length := frameLength(binary.BigEndian.Uint32(lenBuf))
		if off+length > q.tail {
			q.logger.Warnf("queue file %s: frame at %d overruns the tail, dropping the rest", q.path, off)
			q.tail = off
			break
		}
		q.entries = append(q.entries, entry{offset: off, length: length})
		off += length
	}
	return nil
}

func (q *QueueFile) reset() error {
	if err := q.f.Truncate(0); err != nil {
		return errs.NewIOError("truncate", q.path, err)
	}
	q.head = HeaderSize
	q.tail = HeaderSize
	q.entries = nil
	return q.commitHeader()
}

func (q *QueueFile) commitHeader() error {
	h := header{count: uint32(len(q.entries)), head: uint32(q.head), tail: uint32(q.tail)}
	if _, err := q.f.WriteAt(h.encode(), 0); err != nil {
		return errs.NewIOError("write header", q.path, err)
	}
	if err := q.f.Sync(); err != nil {
		return errs.NewIOError("sync", q.path, err)
	}
	return nil
}

// Add appends one element.
func (q *QueueFile) Add(data []byte) error {
	return q.AddFrame(q.EncodeFrame(data))
}

// EncodeFrame returns data as it will be stored. Its length is what appending it adds to
// UsedBytes and FileLength.
func (q *QueueFile) EncodeFrame(data []byte) []byte {
	return encodeFrame(data, q.compress)
}

// AddFrame appends a frame built by EncodeFrame.
func (q *QueueFile) AddFrame(frame []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errs.ErrQueueClosed
	}

	length := int64(len(frame))
	if length < frameHeaderSize {
		return fmt.Errorf("frame of %d bytes is shorter than its header", length)
	}
	if length-frameHeaderSize > int64(lengthMask) || q.tail+length > maxFileSize {
		return fmt.Errorf("frame of %d bytes: %w", length, errs.ErrCapacityExceeded)
	}

	if _, err := q.f.WriteAt(frame, q.tail); err != nil {
		return errs.NewIOError("write element", q.path, err)
	}
	if err := q.f.Sync(); err != nil {
		return errs.NewIOError("sync", q.path, err)
	}

	prevTail := q.tail
	q.entries = append(q.entries, entry{offset: prevTail, length: length})
	q.tail = prevTail + length
	if err := q.commitHeader(); err != nil {
		q.entries = q.entries[:len(q.entries)-1]
		q.tail = prevTail
		return err
	}
	return nil
}

// Peek returns up to n elements from the head without removing them. On a read failure
// the elements read so far are returned along with the error.
func (q *QueueFile) Peek(n int) ([]Element, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, errs.ErrQueueClosed
	}
	if n > len(q.entries) {
		n = len(q.entries)
	}

	out := make([]Element, 0, n)
	for _, e := range q.entries[:n] {
		frame := make([]byte, e.length)
		if _, err := q.f.ReadAt(frame, e.offset); err != nil {
			return out, errs.NewIOError("read element", q.path, err)
		}
		data, err := decodeFrame(frame)
		out = append(out, Element{Data: data, Err: err})
	}
	return out, nil
}

// Remove drops up to n elements from the head.
func (q *QueueFile) Remove(n int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errs.ErrQueueClosed
	}
	if n <= 0 {
		return nil
	}
	if n >= len(q.entries) {
		return q.clear()
	}

	prevHead, prevEntries := q.head, q.entries
	q.head = q.entries[n].offset
	q.entries = q.entries[n:]
	if err := q.commitHeader(); err != nil {
		q.head, q.entries = prevHead, prevEntries
		return err
	}

	q.maybeCompact()
	return nil
}

// Clear drops every element.
func (q *QueueFile) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errs.ErrQueueClosed
	}
	return q.clear()
}

func (q *QueueFile) clear() error {
	prevHead, prevTail, prevEntries := q.head, q.tail, q.entries
	q.head, q.tail, q.entries = HeaderSize, HeaderSize, nil
	if err := q.commitHeader(); err != nil {
		q.head, q.tail, q.entries = prevHead, prevTail, prevEntries
		return err
	}
	// The header is committed; a crash before the truncate is repaired on open.
	if err := q.f.Truncate(HeaderSize); err != nil {
		q.logger.Warnf("queue file %s: truncate after clear: %v", q.path, err)
	}
	return nil
}

// Compact drops the consumed prefix so that FileLength equals UsedBytes.
func (q *QueueFile) Compact() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errs.ErrQueueClosed
	}
	if q.head == HeaderSize {
		return nil
	}
	return q.compact()
}

// maybeCompact rewrites the live elements at the front of a new file once the consumed
// prefix is larger than the live part. Failures leave the current file in use.
func (q *QueueFile) maybeCompact() {
	dead := q.head - HeaderSize
	live := q.tail - q.head
	if dead < compactMinBytes || dead <= live {
		return
	}
	if err := q.compact(); err != nil {
		q.logger.Warnf("queue file %s: compaction failed: %v", q.path, err)
	}
}

func (q *QueueFile) compact() error {
	tmpPath := q.path + compactSuffix
	tmp, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errs.NewIOError("create", tmpPath, err)
	}
	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	shift := q.head - HeaderSize
	h := header{count: uint32(len(q.entries)), head: HeaderSize, tail: uint32(q.tail - shift)}
	if _, err := tmp.WriteAt(h.encode(), 0); err != nil {
		return errs.NewIOError("write header", tmpPath, err)
	}
	if _, err := tmp.Seek(HeaderSize, io.SeekStart); err != nil {
		return errs.NewIOError("seek", tmpPath, err)
	}
	if _, err := io.Copy(tmp, io.NewSectionReader(q.f, q.head, q.tail-q.head)); err != nil {
		return errs.NewIOError("copy", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		return errs.NewIOError("sync", tmpPath, err)
	}
	if err := os.Rename(tmpPath, q.path); err != nil {
		return errs.NewIOError("rename", q.path, err)
	}
	ok = true
	syncDir(filepath.Dir(q.path))

	q.f.Close()
	q.f = tmp
	for i := range q.entries {
		q.entries[i].offset -= shift
	}
	q.entries = append([]entry(nil), q.entries...)
	q.head = HeaderSize
	q.tail -= shift
	q.logger.Debugf("queue file %s compacted, reclaimed %d bytes", q.path, shift)
	return nil
}

// Size returns the number of elements.
func (q *QueueFile) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// UsedBytes returns the bytes taken by the header and the live elements.
func (q *QueueFile) UsedBytes() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return HeaderSize + q.tail - q.head
}

// FileLength returns the length of the file on disk.
func (q *QueueFile) FileLength() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tail
}

func (q *QueueFile) Path() string { return q.path }

// Close releases the file. Further operations return errs.ErrQueueClosed.
func (q *QueueFile) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	if err := q.f.Close(); err != nil {
		return errs.NewIOError("close", q.path, err)
	}
	return nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	d.Close()
}
