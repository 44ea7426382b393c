// Package sending holds the durable queues of records waiting to be sent to the collector
// and the consumers draining them.
package sending

import (
	"github.com/and161185/csm-transport/internal/codec"
	"github.com/and161185/csm-transport/internal/config"
	"github.com/and161185/csm-transport/model"
)

const (
	MetricQueueName    = "csm"
	RemoteLogQueueName = "remote_logs"
)

// Limits bound a queue. A zero value means no limit of that kind.
type Limits struct {
	MaxBytes    int64
	MaxElements int
}

// Configuration describes one logical queue. Every configuration must use its own Filename.
type Configuration[T any] struct {
	Name     string
	Filename string
	Limits   Limits
	Codec    codec.Codec[T]
	Compress bool
}

func MetricQueueConfiguration(cfg *config.AgentConfig) Configuration[model.Metric] {
	return Configuration[model.Metric]{
		Name:     MetricQueueName,
		Filename: cfg.CsmQueueFilename,
		Limits: Limits{
			MaxBytes:    int64(cfg.CsmQueueMaxBytes),
			MaxElements: cfg.CsmQueueMaxElements,
		},
		Codec:    codec.Metric(),
		Compress: cfg.Compress,
	}
}

func RemoteLogQueueConfiguration(cfg *config.AgentConfig) Configuration[model.RemoteLogRecords] {
	return Configuration[model.RemoteLogRecords]{
		Name:     RemoteLogQueueName,
		Filename: cfg.RemoteLogQueueFilename,
		Limits:   Limits{MaxBytes: int64(cfg.RemoteLogQueueMaxBytes)},
		Codec:    codec.RemoteLogs(),
		Compress: cfg.Compress,
	}
}
