package metricfile

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/and161185/csm-transport/internal/errs"
	"github.com/and161185/csm-transport/storage/atomicfile"
	"go.uber.org/zap"
)

const fileExt = ".csm"

// Directory holds one SyncFile per impression id. The same id always maps to the same
// SyncFile instance.
type Directory struct {
	mu     sync.Mutex
	dir    string
	files  map[string]*SyncFile
	logger *zap.SugaredLogger
}

// OpenDirectory creates dir if needed and removes temp files left by interrupted writes.
func OpenDirectory(dir string, logger *zap.SugaredLogger) (*Directory, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.NewIOError("mkdir", dir, err)
	}
	if err := atomicfile.CleanTemp(dir); err != nil {
		logger.Warnf("cleaning %s: %v", dir, err)
	}
	return &Directory{
		dir:    dir,
		files:  make(map[string]*SyncFile),
		logger: logger,
	}, nil
}

// Get returns the store of impression id.
func (d *Directory) Get(id string) *SyncFile {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := fileName(id)
	if f, ok := d.files[name]; ok {
		return f
	}
	f := NewSyncFile(filepath.Join(d.dir, name), d.logger)
	d.files[name] = f
	return f
}

// All returns the stores of every metric on disk, ordered by file name.
func (d *Directory) All() ([]*SyncFile, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errs.NewIOError("read dir", d.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || atomicfile.IsTemp(e.Name()) || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*SyncFile, 0, len(names))
	for _, name := range names {
		f, ok := d.files[name]
		if !ok {
			f = NewSyncFile(filepath.Join(d.dir, name), d.logger)
			d.files[name] = f
		}
		out = append(out, f)
	}
	return out, nil
}

func (d *Directory) Dir() string { return d.dir }

// fileName keeps letters, digits, '-' and '_' of id and replaces everything else, so ids
// cannot escape the directory.
func fileName(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		b.WriteByte('_')
	}
	return b.String() + fileExt
}
