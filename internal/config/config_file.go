package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type serverFile struct {
	Address       *string `json:"address" yaml:"address"`
	DatabaseDSN   *string `json:"database_dsn" yaml:"database_dsn"`
	SQLitePath    *string `json:"sqlite_path" yaml:"sqlite_path"`
	Key           *string `json:"key" yaml:"key"`
	LogLevel      *string `json:"log_level" yaml:"log_level"`
	LogFile       *string `json:"log_file" yaml:"log_file"`
	ShutdownGrace *string `json:"shutdown_grace" yaml:"shutdown_grace"` // "5s"
}

type agentFile struct {
	Address      *string `json:"address" yaml:"address"`
	SendInterval *string `json:"send_interval" yaml:"send_interval"` // "10s"
	Timeout      *string `json:"timeout" yaml:"timeout"`
	Key          *string `json:"key" yaml:"key"`
	RateLimit    *int    `json:"rate_limit" yaml:"rate_limit"`
	LogLevel     *string `json:"log_level" yaml:"log_level"`
	LogFile      *string `json:"log_file" yaml:"log_file"`

	CsmEnabled  *bool   `json:"csm_enabled" yaml:"csm_enabled"`
	BatchSize   *int    `json:"csm_batch_size" yaml:"csm_batch_size"`
	QueueDir    *string `json:"queue_dir" yaml:"queue_dir"`
	MetricsDir  *string `json:"metrics_dir" yaml:"metrics_dir"`
	Compress    *bool   `json:"compress" yaml:"compress"`
	MaxBytes    *int    `json:"csm_queue_max_bytes" yaml:"csm_queue_max_bytes"`
	MaxElements *int    `json:"csm_queue_max_elements" yaml:"csm_queue_max_elements"`

	RemoteLogMaxBytes *int    `json:"remote_log_queue_max_bytes" yaml:"remote_log_queue_max_bytes"`
	RemoteLogLevel    *string `json:"remote_log_level" yaml:"remote_log_level"`

	WrapperVersion   *string `json:"wrapper_version" yaml:"wrapper_version"`
	ProfileID        *int    `json:"profile_id" yaml:"profile_id"`
	SimulateInterval *string `json:"simulate_interval" yaml:"simulate_interval"`
}

// loadFile decodes a YAML file when path ends with .yaml or .yml, JSON otherwise.
func loadFile(path string, dst any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, dst)
	default:
		return json.Unmarshal(b, dst)
	}
}

func parseDurationSeconds(s string) (int, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return int(d / time.Second), nil
}
