// Package agent wires the CSM queues, the lifecycle listener and the senders into one
// running process.
package agent

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/and161185/csm-transport/internal/buildinfo"
	"github.com/and161185/csm-transport/internal/client"
	"github.com/and161185/csm-transport/internal/config"
	"github.com/and161185/csm-transport/internal/csm"
	"github.com/and161185/csm-transport/internal/remotelog"
	"github.com/and161185/csm-transport/internal/sending"
	"github.com/and161185/csm-transport/model"
	"github.com/and161185/csm-transport/storage/metricfile"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

type Agent struct {
	config *config.AgentConfig
	logger *zap.SugaredLogger

	metricQueue    *sending.SendingQueue[model.Metric]
	logQueue       *sending.SendingQueue[model.RemoteLogRecords]
	metricConsumer *sending.Consumer[model.Metric]
	logConsumer    *sending.Consumer[model.RemoteLogRecords]
	listener       *csm.Listener
	simulator      *Simulator
}

// New builds an agent from cfg. Nothing is read from disk until the queues are first used.
func New(cfg *config.AgentConfig) (*Agent, error) {
	base := cfg.Logger
	if base == nil {
		base = zap.NewNop().Sugar()
	}
	if cfg.WrapperVersion == "" {
		cfg.WrapperVersion = buildinfo.Version()
	}

	// The remote log queue logs through base only: its own warnings must not be queued again.
	logConf := sending.RemoteLogQueueConfiguration(cfg)
	logQueue := sending.NewSendingQueue(logConf, sending.NewFileQueueFactory(cfg.QueueDir, logConf, base), base)

	level, err := zapcore.ParseLevel(cfg.RemoteLogLevel)
	if err != nil {
		return nil, fmt.Errorf("remote log level: %w", err)
	}
	logger := remotelog.Attach(base, remotelog.NewCore(logQueue, level, model.RemoteLogContext{
		Version:   cfg.WrapperVersion,
		BundleID:  "csm-agent",
		SessionID: uuid.NewString(),
		ProfileID: cfg.ProfileID,
		DeviceOS:  runtime.GOOS,
	}))

	metricConf := sending.MetricQueueConfiguration(cfg)
	metricQueue := sending.NewSendingQueue(metricConf, sending.NewFileQueueFactory(cfg.QueueDir, metricConf, logger), logger)

	dir, err := metricfile.OpenDirectory(cfg.MetricsDir, logger)
	if err != nil {
		return nil, fmt.Errorf("metrics directory: %w", err)
	}

	c := client.NewClient(cfg)
	enabled := func() bool { return cfg.CsmEnabled }

	metricConsumer := sending.NewConsumer[model.Metric](metricQueue, sending.SenderFunc[model.Metric](c.SendMetrics), sending.ConsumerOptions{
		BatchSize:   cfg.BatchSize,
		Concurrency: cfg.RateLimit,
		Enabled:     enabled,
		Logger:      logger,
	})
	logConsumer := sending.NewConsumer[model.RemoteLogRecords](logQueue, sending.SenderFunc[model.RemoteLogRecords](c.SendLogs), sending.ConsumerOptions{
		BatchSize:   cfg.BatchSize,
		Concurrency: 1,
		Logger:      base,
	})

	listener := csm.NewListener(dir, csm.NewProducer(dir, metricQueue, logger), csm.ListenerOptions{
		Trigger: metricConsumer,
		Enabled: enabled,
		Logger:  logger,
	})

	return &Agent{
		config:         cfg,
		logger:         logger,
		metricQueue:    metricQueue,
		logQueue:       logQueue,
		metricConsumer: metricConsumer,
		logConsumer:    logConsumer,
		listener:       listener,
		simulator:      NewSimulator(listener, cfg.ProfileID, uint64(time.Now().UnixNano())),
	}, nil
}

// Listener returns the lifecycle listener fed by bid calls.
func (a *Agent) Listener() *csm.Listener { return a.listener }

// Simulator returns the random call generator.
func (a *Agent) Simulator() *Simulator { return a.simulator }

// Run sends queued records until ctx is done, then makes a last attempt to send what is
// left and closes the queues.
func (a *Agent) Run(ctx context.Context) error {
	a.listener.OnSdkInitialized()

	interval := time.Duration(a.config.SendInterval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.metricConsumer.Run(gctx, interval) })
	g.Go(func() error { return a.logConsumer.Run(gctx, interval) })
	if a.config.SimulateInterval > 0 {
		g.Go(func() error {
			return a.simulator.Run(gctx, time.Duration(a.config.SimulateInterval)*time.Second)
		})
	}
	err := g.Wait()

	a.Flush(time.Duration(a.config.ClientTimeout) * time.Second)
	if closeErr := a.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Flush drains both queues once, giving up after timeout.
func (a *Agent) Flush(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	a.metricConsumer.Drain(ctx)
	a.logConsumer.Drain(ctx)
	a.logger.Infof("flushed, %d metrics and %d log batches left queued", a.metricQueue.Size(), a.logQueue.Size())
}

// Close releases the queue files.
func (a *Agent) Close() error {
	err := a.metricQueue.Close()
	if logErr := a.logQueue.Close(); err == nil {
		err = logErr
	}
	return err
}
