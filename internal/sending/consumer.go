package sending

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sender delivers a batch of records to the collector.
type Sender[T any] interface {
	Send(ctx context.Context, batch []T) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc[T any] func(ctx context.Context, batch []T) error

func (f SenderFunc[T]) Send(ctx context.Context, batch []T) error { return f(ctx, batch) }

// ConsumerOptions tune a Consumer.
type ConsumerOptions struct {
	BatchSize   int
	Concurrency int // batches in flight at once
	Enabled     func() bool
	Logger      *zap.SugaredLogger
}

// Consumer drains a SendingQueue into a Sender. Records are polled, not peeked, so a record
// is never sent twice; a batch that fails to send is offered back to the queue.
type Consumer[T any] struct {
	queue       *SendingQueue[T]
	sender      Sender[T]
	batchSize   int
	concurrency int
	enabled     func() bool
	logger      *zap.SugaredLogger
	trigger     chan struct{}
}

func NewConsumer[T any](queue *SendingQueue[T], sender Sender[T], opts ConsumerOptions) *Consumer[T] {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Enabled == nil {
		opts.Enabled = func() bool { return true }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Consumer[T]{
		queue:       queue,
		sender:      sender,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		enabled:     opts.Enabled,
		logger:      opts.Logger.With("queue", queue.Name()),
		trigger:     make(chan struct{}, 1),
	}
}

// SendBatch polls one batch and sends it. It returns the number of records polled.
func (c *Consumer[T]) SendBatch(ctx context.Context) int {
	if !c.enabled() {
		return 0
	}
	batch := c.queue.Poll(c.batchSize)
	if len(batch) == 0 {
		return 0
	}
	c.send(ctx, batch)
	return len(batch)
}

func (c *Consumer[T]) send(ctx context.Context, batch []T) {
	if err := c.sender.Send(ctx, batch); err != nil {
		batchesFailed.WithLabelValues(c.queue.Name()).Inc()
		c.logger.Warnf("sending %d records failed, putting them back: %v", len(batch), err)
		for _, rec := range batch {
			c.queue.Offer(rec)
		}
		return
	}
	batchesSent.WithLabelValues(c.queue.Name()).Inc()
	c.logger.Debugf("sent %d records", len(batch))
}

// Drain sends every record queued when it is called. Records put back after a failed send
// are left for the next drain.
func (c *Consumer[T]) Drain(ctx context.Context) {
	if !c.enabled() {
		return
	}
	batches := (c.queue.Size() + c.batchSize - 1) / c.batchSize

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := 0; i < batches && ctx.Err() == nil; i++ {
		batch := c.queue.Poll(c.batchSize)
		if len(batch) == 0 {
			break
		}
		g.Go(func() error {
			c.send(ctx, batch)
			return nil
		})
	}
	_ = g.Wait()
}

// Trigger asks a running Run loop to drain now.
func (c *Consumer[T]) Trigger() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Run drains the queue every interval and on Trigger until ctx is done.
func (c *Consumer[T]) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Drain(ctx)
		case <-c.trigger:
			c.Drain(ctx)
		}
	}
}
