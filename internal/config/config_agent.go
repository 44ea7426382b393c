package config

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

const (
	defaultCsmQueueFilename       = "csm_metrics_queue"
	defaultRemoteLogQueueFilename = "remote_logs_queue"
)

// AgentConfig holds the configuration settings for the agent.
type AgentConfig struct {
	ServerAddr    string // Server address
	SendInterval  int    // Interval for draining the queues (in seconds)
	ClientTimeout int    // HTTP client timeout (in seconds)
	Key           string // Key for hash generation
	RateLimit     int    // Limit on simultaneous outgoing requests
	LogLevel      string
	LogFile       string
	Logger        *zap.SugaredLogger

	CsmEnabled          bool   // Whether CSM metrics are collected and sent
	BatchSize           int    // Metrics per request
	QueueDir            string // Directory of the sending queue files
	MetricsDir          string // Directory of the in-flight metric files
	Compress            bool   // Snappy-compress queue entries
	CsmQueueFilename    string
	CsmQueueMaxBytes    int
	CsmQueueMaxElements int

	RemoteLogQueueFilename string
	RemoteLogQueueMaxBytes int
	RemoteLogLevel         string // Minimum level shipped to the collector

	WrapperVersion   string
	ProfileID        int
	SimulateInterval int // Interval between simulated ad calls (in seconds), 0 disables
}

// NewAgentConfig creates and returns a new AgentConfig by parsing flags, the optional config
// file and environment variables.
func NewAgentConfig() *AgentConfig {
	cfg, err := loadAgentConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// DefaultAgentConfig returns the agent settings before flags, file and environment are applied.
func DefaultAgentConfig() *AgentConfig {
	return &AgentConfig{
		ServerAddr:    "http://localhost:8080",
		SendInterval:  10,
		ClientTimeout: 10,
		RateLimit:     runtime.NumCPU(),
		LogLevel:      "info",

		CsmEnabled:          true,
		BatchSize:           10,
		QueueDir:            "./tmp/csm",
		MetricsDir:          "./tmp/csm/metrics",
		CsmQueueFilename:    defaultCsmQueueFilename,
		CsmQueueMaxBytes:    48 * 1024,
		CsmQueueMaxElements: 0,

		RemoteLogQueueFilename: defaultRemoteLogQueueFilename,
		RemoteLogQueueMaxBytes: 256 * 1024,
		RemoteLogLevel:         "warn",

		WrapperVersion:   "",
		ProfileID:        235,
		SimulateInterval: 1,
	}
}

func loadAgentConfig(fs *flag.FlagSet, args []string) (*AgentConfig, error) {
	// 0) defaults
	cfg := DefaultAgentConfig()

	// 1) flags
	var fAddr, fKey, fConf, fQueueDir, fMetricsDir, fLogLevel strFlag
	var fSend, fTO, fRate, fBatch, fMaxBytes, fMaxElements, fSimulate intFlag
	var fCsm, fCompress boolFlag
	fs.Var(&fAddr, "a", "HTTP server address (must include http(s)://)")
	fs.Var(&fSend, "r", "send interval (seconds)")
	fs.Var(&fTO, "t", "client timeout (seconds)")
	fs.Var(&fKey, "k", "Hash key string")
	fs.Var(&fRate, "l", "rate limit")
	fs.Var(&fLogLevel, "log-level", "log level")
	fs.Var(&fCsm, "csm", "collect and send CSM metrics")
	fs.Var(&fBatch, "b", "CSM batch size")
	fs.Var(&fQueueDir, "q", "sending queue directory")
	fs.Var(&fMetricsDir, "m", "in-flight metrics directory")
	fs.Var(&fCompress, "compress", "compress queue entries")
	fs.Var(&fMaxBytes, "max-bytes", "CSM queue size limit (bytes)")
	fs.Var(&fMaxElements, "max-elements", "CSM queue size limit (elements, 0 = unlimited)")
	fs.Var(&fSimulate, "s", "simulated ad call interval (seconds, 0 = off)")
	fs.Var(&fConf, "c", "Path to JSON or YAML config file")
	fs.Var(&fConf, "config", "Path to JSON or YAML config file (alias)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	setStr(&cfg.ServerAddr, fAddr)
	setInt(&cfg.SendInterval, fSend)
	setInt(&cfg.ClientTimeout, fTO)
	setStr(&cfg.Key, fKey)
	setInt(&cfg.RateLimit, fRate)
	setStr(&cfg.LogLevel, fLogLevel)
	setBool(&cfg.CsmEnabled, fCsm)
	setInt(&cfg.BatchSize, fBatch)
	setStr(&cfg.QueueDir, fQueueDir)
	setStr(&cfg.MetricsDir, fMetricsDir)
	setBool(&cfg.Compress, fCompress)
	setInt(&cfg.CsmQueueMaxBytes, fMaxBytes)
	setInt(&cfg.CsmQueueMaxElements, fMaxElements)
	setInt(&cfg.SimulateInterval, fSimulate)

	// 2) config file, for values not given as flags
	if fConf.v == "" {
		if v := os.Getenv("CONFIG"); v != "" {
			fConf.v = v
		}
	}
	if fConf.v != "" {
		var file agentFile
		if err := loadFile(fConf.v, &file); err != nil {
			log.Printf("config file %s: %v", fConf.v, err)
		} else {
			applyAgentFile(cfg, &file, agentFlagsSet{
				addr: fAddr.set, send: fSend.set, timeout: fTO.set, key: fKey.set, rate: fRate.set,
				logLevel: fLogLevel.set, csm: fCsm.set, batch: fBatch.set, queueDir: fQueueDir.set,
				metricsDir: fMetricsDir.set, compress: fCompress.set, maxBytes: fMaxBytes.set,
				maxElements: fMaxElements.set, simulate: fSimulate.set,
			})
		}
	}

	// 3) environment
	readAgentEnvironment(cfg)

	// normalize address
	if !strings.HasPrefix(cfg.ServerAddr, "http://") && !strings.HasPrefix(cfg.ServerAddr, "https://") {
		cfg.ServerAddr = "http://" + cfg.ServerAddr
	}
	if cfg.MetricsDir == "" {
		cfg.MetricsDir = filepath.Join(cfg.QueueDir, "metrics")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 1
	}

	logger, err := NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}
	cfg.Logger = logger
	return cfg, nil
}

type agentFlagsSet struct {
	addr, send, timeout, key, rate, logLevel, csm, batch            bool
	queueDir, metricsDir, compress, maxBytes, maxElements, simulate bool
}

func applyAgentFile(cfg *AgentConfig, js *agentFile, set agentFlagsSet) {
	if js.Address != nil && !set.addr {
		cfg.ServerAddr = *js.Address
	}
	if js.SendInterval != nil && !set.send {
		if sec, err := parseDurationSeconds(*js.SendInterval); err == nil {
			cfg.SendInterval = sec
		}
	}
	if js.Timeout != nil && !set.timeout {
		if sec, err := parseDurationSeconds(*js.Timeout); err == nil {
			cfg.ClientTimeout = sec
		}
	}
	if js.Key != nil && !set.key {
		cfg.Key = *js.Key
	}
	if js.RateLimit != nil && !set.rate {
		cfg.RateLimit = *js.RateLimit
	}
	if js.LogLevel != nil && !set.logLevel {
		cfg.LogLevel = *js.LogLevel
	}
	if js.LogFile != nil {
		cfg.LogFile = *js.LogFile
	}
	if js.CsmEnabled != nil && !set.csm {
		cfg.CsmEnabled = *js.CsmEnabled
	}
	if js.BatchSize != nil && !set.batch {
		cfg.BatchSize = *js.BatchSize
	}
	if js.QueueDir != nil && !set.queueDir {
		cfg.QueueDir = *js.QueueDir
	}
	if js.MetricsDir != nil && !set.metricsDir {
		cfg.MetricsDir = *js.MetricsDir
	}
	if js.Compress != nil && !set.compress {
		cfg.Compress = *js.Compress
	}
	if js.MaxBytes != nil && !set.maxBytes {
		cfg.CsmQueueMaxBytes = *js.MaxBytes
	}
	if js.MaxElements != nil && !set.maxElements {
		cfg.CsmQueueMaxElements = *js.MaxElements
	}
	if js.RemoteLogMaxBytes != nil {
		cfg.RemoteLogQueueMaxBytes = *js.RemoteLogMaxBytes
	}
	if js.RemoteLogLevel != nil {
		cfg.RemoteLogLevel = *js.RemoteLogLevel
	}
	if js.WrapperVersion != nil {
		cfg.WrapperVersion = *js.WrapperVersion
	}
	if js.ProfileID != nil {
		cfg.ProfileID = *js.ProfileID
	}
	if js.SimulateInterval != nil && !set.simulate {
		if sec, err := parseDurationSeconds(*js.SimulateInterval); err == nil {
			cfg.SimulateInterval = sec
		}
	}
}

func readAgentEnvironment(cfg *AgentConfig) {
	envString("ADDRESS", &cfg.ServerAddr)
	envInt("REPORT_INTERVAL", &cfg.SendInterval)
	envInt("RATE_LIMIT", &cfg.RateLimit)
	envString("KEY", &cfg.Key)
	envString("LOG_LEVEL", &cfg.LogLevel)
	envString("LOG_FILE", &cfg.LogFile)

	envBool("CSM_ENABLED", &cfg.CsmEnabled)
	envInt("CSM_BATCH_SIZE", &cfg.BatchSize)
	envString("QUEUE_DIR", &cfg.QueueDir)
	envString("METRICS_DIR", &cfg.MetricsDir)
	envBool("COMPRESS", &cfg.Compress)
	envInt("CSM_QUEUE_MAX_BYTES", &cfg.CsmQueueMaxBytes)
	envInt("CSM_QUEUE_MAX_ELEMENTS", &cfg.CsmQueueMaxElements)
	envInt("REMOTE_LOG_QUEUE_MAX_BYTES", &cfg.RemoteLogQueueMaxBytes)
	envString("REMOTE_LOG_LEVEL", &cfg.RemoteLogLevel)
	envString("WRAPPER_VERSION", &cfg.WrapperVersion)
	envInt("PROFILE_ID", &cfg.ProfileID)
	envInt("SIMULATE_INTERVAL", &cfg.SimulateInterval)
}
