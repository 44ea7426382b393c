// Package csm tracks the lifecycle of ad calls as metrics and pushes finished metrics to the
// sending queue.
package csm

import (
	"errors"

	"github.com/and161185/csm-transport/internal/sending"
	"github.com/and161185/csm-transport/model"
	"github.com/and161185/csm-transport/storage/metricfile"
	"go.uber.org/zap"
)

// queueMover moves metrics accepted by shouldMove into the sending queue.
type queueMover struct {
	queue      *sending.SendingQueue[model.Metric]
	shouldMove func(model.Metric) bool
}

func (m queueMover) ShouldMove(metric model.Metric) bool { return m.shouldMove(metric) }

func (m queueMover) OfferToDestination(metric model.Metric) (bool, error) {
	return m.queue.Offer(metric), nil
}

func readyToSend(m model.Metric) bool { return m.IsReadyToSend() }

func always(model.Metric) bool { return true }

// Producer moves metrics from their files into the sending queue.
type Producer struct {
	dir    *metricfile.Directory
	queue  *sending.SendingQueue[model.Metric]
	logger *zap.SugaredLogger
}

func NewProducer(dir *metricfile.Directory, queue *sending.SendingQueue[model.Metric], logger *zap.SugaredLogger) *Producer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Producer{dir: dir, queue: queue, logger: logger}
}

// PushIfReady moves the metric of impression id when it is ready to send. It reports whether
// the metric was moved.
func (p *Producer) PushIfReady(id string) bool {
	return p.move(p.dir.Get(id), queueMover{queue: p.queue, shouldMove: readyToSend})
}

// PushAll moves every metric on disk, ready or not. Metrics left by a previous session can
// no longer be completed, so they are sent as they are.
func (p *Producer) PushAll() int {
	files, err := p.dir.All()
	if err != nil {
		p.logger.Errorf("listing metric files: %v", err)
		return 0
	}
	mover := queueMover{queue: p.queue, shouldMove: always}
	moved := 0
	for _, f := range files {
		if p.move(f, mover) {
			moved++
		}
	}
	if moved > 0 {
		p.logger.Infof("pushed %d metrics from %s", moved, p.dir.Dir())
	}
	return moved
}

func (p *Producer) move(f *metricfile.SyncFile, mover metricfile.Mover) bool {
	res, err := f.MoveWith(mover)
	if err != nil {
		var moveErr *metricfile.MoveError
		if errors.As(err, &moveErr) && !moveErr.RolledBack {
			p.logger.Errorf("metric %s lost: %v", f.Path(), err)
		} else {
			p.logger.Warnf("moving metric %s: %v", f.Path(), err)
		}
		return false
	}
	if res == metricfile.MoveRolledBack {
		p.logger.Warnf("sending queue refused metric %s, kept on disk", f.Path())
	}
	return res == metricfile.MoveDone
}
