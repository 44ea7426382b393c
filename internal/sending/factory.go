package sending

import (
	"os"
	"path/filepath"

	"github.com/and161185/csm-transport/storage/objectqueue"
	"go.uber.org/zap"
)

// ObjectQueueFactory creates the storage behind a SendingQueue. Create never fails: a factory
// that cannot open its storage falls back to something that works for this process.
type ObjectQueueFactory[T any] interface {
	Create() objectqueue.ObjectQueue[T]
}

// ObjectQueueFactoryFunc adapts a function to ObjectQueueFactory.
type ObjectQueueFactoryFunc[T any] func() objectqueue.ObjectQueue[T]

func (f ObjectQueueFactoryFunc[T]) Create() objectqueue.ObjectQueue[T] { return f() }

// FileQueueFactory opens <dir>/<Filename> of its configuration.
type FileQueueFactory[T any] struct {
	dir    string
	conf   Configuration[T]
	logger *zap.SugaredLogger
}

func NewFileQueueFactory[T any](dir string, conf Configuration[T], logger *zap.SugaredLogger) *FileQueueFactory[T] {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FileQueueFactory[T]{dir: dir, conf: conf, logger: logger}
}

func (f *FileQueueFactory[T]) Path() string {
	return filepath.Join(f.dir, f.conf.Filename)
}

func (f *FileQueueFactory[T]) Create() objectqueue.ObjectQueue[T] {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return f.fallback(err)
	}
	q, err := objectqueue.OpenFile(f.Path(), f.conf.Codec, f.conf.Compress, f.logger)
	if err != nil {
		return f.fallback(err)
	}
	return q
}

func (f *FileQueueFactory[T]) fallback(err error) objectqueue.ObjectQueue[T] {
	f.logger.Errorf("queue %s: cannot open %s, records will only be kept in memory: %v", f.conf.Name, f.Path(), err)
	queueFallbacks.WithLabelValues(f.conf.Name).Inc()
	return objectqueue.NewInMemoryWithCodec(f.conf.Codec)
}
