package csm

import (
	"github.com/and161185/csm-transport/model"
	"github.com/and161185/csm-transport/storage/metricfile"
	"go.uber.org/zap"
)

// Slot is one impression requested in a bid call.
type Slot struct {
	ImpressionID string
	ZoneID       int
}

// CallRequest describes a bid call sent to the bidding backend.
type CallRequest struct {
	RequestGroupID string
	ProfileID      int
	Slots          []Slot
}

// Trigger asks the sender to drain its queue.
type Trigger interface {
	Trigger()
}

// Listener records the lifecycle of bid calls into per-impression metric files and pushes
// metrics that are complete to the sending queue.
type Listener struct {
	dir      *metricfile.Directory
	producer *Producer
	trigger  Trigger
	clock    Clock
	enabled  func() bool
	logger   *zap.SugaredLogger
}

// ListenerOptions configure a Listener. Zero values mean the wall clock, always enabled, no
// trigger and no logging.
type ListenerOptions struct {
	Trigger Trigger
	Clock   Clock
	Enabled func() bool
	Logger  *zap.SugaredLogger
}

func NewListener(dir *metricfile.Directory, producer *Producer, opts ListenerOptions) *Listener {
	if opts.Clock == nil {
		opts.Clock = &DefaultClock{}
	}
	if opts.Enabled == nil {
		opts.Enabled = func() bool { return true }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Listener{
		dir:      dir,
		producer: producer,
		trigger:  opts.Trigger,
		clock:    opts.Clock,
		enabled:  opts.Enabled,
		logger:   opts.Logger,
	}
}

func (l *Listener) now() int64 { return l.clock.Now().UnixMilli() }

// OnSdkInitialized sends what a previous session left behind.
func (l *Listener) OnSdkInitialized() {
	if !l.enabled() {
		return
	}
	l.producer.PushAll()
	l.send()
}

// OnCallStarted opens a metric for every requested impression.
func (l *Listener) OnCallStarted(req CallRequest) {
	if !l.enabled() {
		return
	}
	now := l.now()
	for _, slot := range req.Slots {
		l.update(slot.ImpressionID, func(b *model.MetricBuilder) {
			b.SetCdbCallStartTimestamp(now).SetZoneID(slot.ZoneID)
			if req.RequestGroupID != "" {
				b.SetRequestGroupID(req.RequestGroupID)
			}
			if req.ProfileID != 0 {
				b.SetProfileID(req.ProfileID)
			}
		})
	}
}

// OnCallFinished closes the call of every requested impression. Impressions without a bid
// in bidIDs are complete and pushed; the others wait for their bid to be consumed.
func (l *Listener) OnCallFinished(req CallRequest, bidIDs []string) {
	if !l.enabled() {
		return
	}
	withBid := make(map[string]struct{}, len(bidIDs))
	for _, id := range bidIDs {
		withBid[id] = struct{}{}
	}

	now := l.now()
	for _, slot := range req.Slots {
		_, hasBid := withBid[slot.ImpressionID]
		l.update(slot.ImpressionID, func(b *model.MetricBuilder) {
			b.SetCdbCallEndTimestamp(now)
			if !hasBid {
				b.SetReadyToSend(true)
			}
		})
		l.producer.PushIfReady(slot.ImpressionID)
	}
}

// OnCallFailed completes the metrics of a call that got no answer. A timeout is flagged on
// the metrics.
func (l *Listener) OnCallFailed(req CallRequest, timeout bool) {
	if !l.enabled() {
		return
	}
	for _, slot := range req.Slots {
		l.update(slot.ImpressionID, func(b *model.MetricBuilder) {
			b.SetCdbCallTimeout(timeout).SetReadyToSend(true)
		})
		l.producer.PushIfReady(slot.ImpressionID)
	}
}

// OnBidCached marks that the impression was served from a cached bid.
func (l *Listener) OnBidCached(impressionID string) {
	if !l.enabled() {
		return
	}
	l.update(impressionID, func(b *model.MetricBuilder) {
		b.SetCachedBidUsed(true)
	})
}

// OnBidConsumed completes the metric of impressionID. An expired bid was never displayed, so
// no elapsed time is recorded for it.
func (l *Listener) OnBidConsumed(impressionID string, expired bool) {
	if !l.enabled() {
		return
	}
	now := l.now()
	l.update(impressionID, func(b *model.MetricBuilder) {
		if !expired {
			b.SetElapsedTimestamp(now)
		}
		b.SetReadyToSend(true)
	})
	if l.producer.PushIfReady(impressionID) {
		l.send()
	}
}

func (l *Listener) update(id string, fn func(*model.MetricBuilder)) {
	if _, err := l.dir.Get(id).Update(id, fn); err != nil {
		l.logger.Warnf("updating metric %s: %v", id, err)
	}
}

func (l *Listener) send() {
	if l.trigger != nil {
		l.trigger.Trigger()
	}
}
