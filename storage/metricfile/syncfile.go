// Package metricfile keeps the in-flight state of each CSM metric in its own atomic file
// and moves finished metrics out of it.
package metricfile

import (
	"errors"
	"fmt"
	"sync"

	"github.com/and161185/csm-transport/internal/codec"
	"github.com/and161185/csm-transport/internal/errs"
	"github.com/and161185/csm-transport/model"
	"github.com/and161185/csm-transport/storage/atomicfile"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=mocks/mock_mover.go -package=mocks github.com/and161185/csm-transport/storage/metricfile Mover

// Mover decides whether a metric leaves its file and takes it over.
type Mover interface {
	ShouldMove(m model.Metric) bool
	// OfferToDestination returns false when the destination refused the metric.
	OfferToDestination(m model.Metric) (bool, error)
}

type MoveResult int

const (
	MoveSkipped MoveResult = iota
	MoveDone
	MoveRolledBack
)

func (r MoveResult) String() string {
	switch r {
	case MoveSkipped:
		return "skipped"
	case MoveDone:
		return "done"
	case MoveRolledBack:
		return "rolled back"
	default:
		return fmt.Sprintf("MoveResult(%d)", int(r))
	}
}

// MoveError is returned when the mover failed after the metric had been deleted. RolledBack
// tells whether the metric was written back.
type MoveError struct {
	Err         error
	RolledBack  bool
	RollbackErr error
}

func (e *MoveError) Error() string {
	if e.RolledBack {
		return fmt.Sprintf("move metric: %v (rolled back)", e.Err)
	}
	return fmt.Sprintf("move metric: %v (rollback failed: %v)", e.Err, e.RollbackErr)
}

func (e *MoveError) Unwrap() []error {
	if e.RollbackErr == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.RollbackErr}
}

// SyncFile is the atomic store of one metric.
type SyncFile struct {
	mu     sync.Mutex
	file   *atomicfile.File
	remove func() error
	codec  codec.Codec[model.Metric]
	logger *zap.SugaredLogger
}

func NewSyncFile(path string, logger *zap.SugaredLogger) *SyncFile {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	file := atomicfile.New(path)
	return &SyncFile{
		file:   file,
		remove: file.Delete,
		codec:  codec.Metric(),
		logger: logger,
	}
}

func (s *SyncFile) Path() string { return s.file.Path() }

// Read returns the stored metric, or nil when there is none.
func (s *SyncFile) Read() (*model.Metric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *SyncFile) read() (*model.Metric, error) {
	data, err := s.file.Read()
	if err != nil || data == nil {
		return nil, err
	}
	m, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.file.Path(), err)
	}
	return &m, nil
}

// Write replaces the stored metric.
func (s *SyncFile) Write(m model.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(m)
}

func (s *SyncFile) write(m model.Metric) error {
	data, err := s.codec.Encode(m)
	if err != nil {
		return err
	}
	return s.file.Write(data)
}

// Delete removes the stored metric.
func (s *SyncFile) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Delete()
}

// Update applies fn to the stored metric, or to a new one for id when the file is empty or
// unreadable, and writes the result.
func (s *SyncFile) Update(id string, fn func(b *model.MetricBuilder)) (model.Metric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := model.NewMetricBuilder(id)
	current, err := s.read()
	switch {
	case errors.Is(err, errs.ErrCorruptRecord):
		s.logger.Warnf("replacing unreadable metric file: %v", err)
	case err != nil:
		return model.Metric{}, err
	case current != nil:
		b = current.ToBuilder()
	}

	fn(b)
	m := b.Build()
	if err := s.write(m); err != nil {
		return model.Metric{}, err
	}
	return m, nil
}

// MoveWith hands the stored metric to mover. The file is deleted before the metric is
// offered, so a crash in between loses the metric instead of sending it twice. A refused
// offer, an error or a panic writes the metric back.
func (s *SyncFile) MoveWith(mover Mover) (MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.read()
	if errors.Is(err, errs.ErrCorruptRecord) {
		s.logger.Warnf("dropping unreadable metric file: %v", err)
		if delErr := s.file.Delete(); delErr != nil {
			s.logger.Errorf("delete unreadable metric file: %v", delErr)
		}
		return MoveSkipped, nil
	}
	if err != nil {
		return MoveSkipped, err
	}
	if m == nil || !mover.ShouldMove(*m) {
		return MoveSkipped, nil
	}

	// A failed delete may still have removed the file, so the metric is written back.
	if err := s.remove(); err != nil {
		rollbackErr := s.write(*m)
		return MoveSkipped, &MoveError{Err: fmt.Errorf("delete: %w", err), RolledBack: rollbackErr == nil, RollbackErr: rollbackErr}
	}

	offered, offerErr := offer(mover, *m)
	if offerErr == nil && offered {
		return MoveDone, nil
	}

	rollbackErr := s.write(*m)
	if offerErr == nil {
		if rollbackErr != nil {
			return MoveSkipped, &MoveError{Err: errors.New("destination refused metric"), RollbackErr: rollbackErr}
		}
		return MoveRolledBack, nil
	}
	return MoveSkipped, &MoveError{Err: offerErr, RolledBack: rollbackErr == nil, RollbackErr: rollbackErr}
}

func offer(mover Mover, m model.Metric) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("panic: %v", r)
		}
	}()
	return mover.OfferToDestination(m)
}
