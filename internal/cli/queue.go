package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/and161185/csm-transport/internal/client"
	"github.com/and161185/csm-transport/internal/config"
	"github.com/and161185/csm-transport/internal/sending"
	"github.com/and161185/csm-transport/model"
	"github.com/and161185/csm-transport/storage/metricfile"
	"github.com/and161185/csm-transport/storage/objectqueue"
	"github.com/and161185/csm-transport/storage/queuefile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("queue %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("queue %s is a directory", path)
	}
	return nil
}

func newStatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stat",
		Short: "Print record count and sizes of a queue file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _, err := queuePath(cmd)
			if err != nil {
				return err
			}
			if err = requireFile(path); err != nil {
				return err
			}
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			qf, err := queuefile.Open(path, queuefile.Options{Logger: logger})
			if err != nil {
				return err
			}
			defer qf.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "queue: %s\n", path)
			fmt.Fprintf(out, "records: %d\n", qf.Size())
			fmt.Fprintf(out, "used bytes: %d\n", qf.UsedBytes())
			fmt.Fprintf(out, "file bytes: %d\n", qf.FileLength())

			metricsDir, _ := cmd.Flags().GetString("metrics-dir")
			if metricsDir == "" {
				return nil
			}
			dir, err := metricfile.OpenDirectory(metricsDir, logger)
			if err != nil {
				return err
			}
			files, err := dir.All()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "metric files: %d\n", len(files))
			return nil
		},
	}
	cmd.Flags().String("metrics-dir", "", "also count the in-flight metric files in this directory")
	return cmd
}

func newPeekCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peek",
		Short: "Print the oldest queued records as JSON lines without removing them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, kind, err := queuePath(cmd)
			if err != nil {
				return err
			}
			if err = requireFile(path); err != nil {
				return err
			}
			n, _ := cmd.Flags().GetInt("count")
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			defaults := config.DefaultAgentConfig()
			if kind == kindLogs {
				return peekQueue(cmd.OutOrStdout(), path, sending.RemoteLogQueueConfiguration(defaults), n, logger)
			}
			return peekQueue(cmd.OutOrStdout(), path, sending.MetricQueueConfiguration(defaults), n, logger)
		},
	}
	cmd.Flags().IntP("count", "n", 10, "number of records to print")
	return cmd
}

func peekQueue[T any](w io.Writer, path string, conf sending.Configuration[T], n int, logger *zap.SugaredLogger) error {
	q, err := objectqueue.OpenFile(path, conf.Codec, false, logger)
	if err != nil {
		return err
	}
	defer q.Close()

	entries, err := q.Peek(n)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for i, e := range entries {
		if e.Err != nil {
			fmt.Fprintf(w, "# record %d unreadable: %v\n", i, e.Err)
			continue
		}
		if err = enc.Encode(e.Value); err != nil {
			return err
		}
	}
	return nil
}

func newDrainCmd() *cobra.Command {
	defaults := config.DefaultAgentConfig()

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Send every queued record to the collector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, kind, err := queuePath(cmd)
			if err != nil {
				return err
			}
			if err = requireFile(path); err != nil {
				return err
			}
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			cfg := config.DefaultAgentConfig()
			cfg.ServerAddr, _ = cmd.Flags().GetString("server")
			cfg.Key, _ = cmd.Flags().GetString("key")
			cfg.BatchSize, _ = cmd.Flags().GetInt("batch-size")
			cfg.ClientTimeout, _ = cmd.Flags().GetInt("timeout")
			cfg.WrapperVersion, _ = cmd.Flags().GetString("wrapper-version")
			cfg.ProfileID, _ = cmd.Flags().GetInt("profile-id")
			cfg.RateLimit = 1
			cfg.Logger = logger
			c := client.NewClient(cfg)

			var sent, left int
			if kind == kindLogs {
				sent, left = drainQueue(cmd.Context(), path, sending.RemoteLogQueueConfiguration(cfg),
					sending.SenderFunc[model.RemoteLogRecords](c.SendLogs), cfg.BatchSize, logger)
			} else {
				sent, left = drainQueue(cmd.Context(), path, sending.MetricQueueConfiguration(cfg),
					sending.SenderFunc[model.Metric](c.SendMetrics), cfg.BatchSize, logger)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sent %d records, %d left in %s\n", sent, left, path)
			if left > 0 {
				return fmt.Errorf("%d records could not be sent", left)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("server", defaults.ServerAddr, "collector address")
	flags.String("key", "", "key used to sign request bodies")
	flags.Int("batch-size", defaults.BatchSize, "records per request")
	flags.Int("timeout", defaults.ClientTimeout, "request timeout in seconds")
	flags.String("wrapper-version", defaults.WrapperVersion, "wrapper version reported with metrics")
	flags.Int("profile-id", defaults.ProfileID, "profile id reported with metrics")
	return cmd
}

// drainQueue sends what the queue held when called. Failed batches stay queued.
func drainQueue[T any](ctx context.Context, path string, conf sending.Configuration[T], sender sending.Sender[T], batchSize int, logger *zap.SugaredLogger) (sent, left int) {
	if ctx == nil {
		ctx = context.Background()
	}
	conf, dir := fileConfiguration(conf, path)
	queue := sending.NewSendingQueue(conf, sending.NewFileQueueFactory(dir, conf, logger), logger)
	defer queue.Close()

	before := queue.Size()
	consumer := sending.NewConsumer(queue, sender, sending.ConsumerOptions{BatchSize: batchSize, Logger: logger})
	start := time.Now()
	consumer.Drain(ctx)
	left = queue.Size()
	logger.Infow("queue drained", "queue", conf.Name, "before", before, "left", left, "duration", time.Since(start))
	return before - left, left
}
