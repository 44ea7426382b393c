package cli

import (
	"fmt"

	"github.com/and161185/csm-transport/internal/config"
	"github.com/and161185/csm-transport/internal/csm"
	"github.com/and161185/csm-transport/internal/sending"
	"github.com/and161185/csm-transport/storage/metricfile"
	"github.com/spf13/cobra"
)

func newPushCmd() *cobra.Command {
	defaults := config.DefaultAgentConfig()

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Move every in-flight metric file into the metrics queue",
		Long: `push does what the agent does on start: every metric file left in the
metrics directory is moved into the metrics queue, ready or not.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, kind, err := queuePath(cmd)
			if err != nil {
				return err
			}
			if kind != kindMetrics {
				return fmt.Errorf("push only works on the %s queue", kindMetrics)
			}
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			metricsDir, _ := cmd.Flags().GetString("metrics-dir")
			dir, err := metricfile.OpenDirectory(metricsDir, logger)
			if err != nil {
				return err
			}

			cfg := config.DefaultAgentConfig()
			cfg.CsmQueueMaxBytes, _ = cmd.Flags().GetInt("max-bytes")
			conf, queueDir := fileConfiguration(sending.MetricQueueConfiguration(cfg), path)
			conf.Limits.MaxBytes = int64(cfg.CsmQueueMaxBytes)
			queue := sending.NewSendingQueue(conf, sending.NewFileQueueFactory(queueDir, conf, logger), logger)
			defer queue.Close()

			moved := csm.NewProducer(dir, queue, logger).PushAll()
			fmt.Fprintf(cmd.OutOrStdout(), "moved %d metric files to %s\n", moved, path)
			return nil
		},
	}
	cmd.Flags().String("metrics-dir", defaults.MetricsDir, "directory of the in-flight metric files")
	cmd.Flags().Int("max-bytes", defaults.CsmQueueMaxBytes, "size limit of the metrics queue file, 0 for none")
	return cmd
}
