// Package cli implements csmctl, the offline tool for inspecting and draining the
// agent's queue and metric files. The agent must be stopped while csmctl writes to them.
package cli

import (
	"fmt"
	"path/filepath"

	"github.com/and161185/csm-transport/internal/buildinfo"
	"github.com/and161185/csm-transport/internal/config"
	"github.com/and161185/csm-transport/internal/sending"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	kindMetrics = "metrics"
	kindLogs    = "logs"
)

// NewRootCmd builds the csmctl command tree.
func NewRootCmd() *cobra.Command {
	defaults := config.DefaultAgentConfig()

	root := &cobra.Command{
		Use:     "csmctl",
		Short:   "Inspect and drain CSM sending queues",
		Version: buildinfo.Version(),
		Long: `csmctl reads the queue files and in-flight metric files written by the
csm agent. It can print queue statistics, show queued records, move
leftover metric files into the queue and send queued records to a collector.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.String("queue-dir", defaults.QueueDir, "directory of the queue files")
	flags.String("kind", kindMetrics, "queue to work on: metrics or logs")
	flags.String("file", "", "queue file path, overrides --queue-dir and --kind file name")
	flags.String("log-level", "warn", "log level of csmctl itself")

	root.AddCommand(newStatCmd(), newPeekCmd(), newDrainCmd(), newPushCmd(), newVersionCmd())
	return root
}

// Execute runs csmctl with the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			buildinfo.WriteBuildInfo(cmd.OutOrStdout())
		},
	}
}

// queuePath resolves the queue file selected by --file, --queue-dir and --kind.
func queuePath(cmd *cobra.Command) (string, string, error) {
	kind, _ := cmd.Flags().GetString("kind")
	if kind != kindMetrics && kind != kindLogs {
		return "", "", fmt.Errorf("unknown queue kind %q, want %s or %s", kind, kindMetrics, kindLogs)
	}
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		return file, kind, nil
	}

	dir, _ := cmd.Flags().GetString("queue-dir")
	defaults := config.DefaultAgentConfig()
	name := defaults.CsmQueueFilename
	if kind == kindLogs {
		name = defaults.RemoteLogQueueFilename
	}
	return filepath.Join(dir, name), kind, nil
}

// fileConfiguration describes the queue at path so sending.NewFileQueueFactory opens exactly it.
func fileConfiguration[T any](conf sending.Configuration[T], path string) (sending.Configuration[T], string) {
	conf.Filename = filepath.Base(path)
	conf.Limits = sending.Limits{}
	return conf, filepath.Dir(path)
}

func newLogger(cmd *cobra.Command) (*zap.SugaredLogger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logCfg := zap.NewProductionConfig()
	logCfg.Level = lvl
	logCfg.OutputPaths = []string{"stderr"}
	logger, err := logCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
