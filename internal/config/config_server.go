package config

import (
	"flag"
	"log"
	"os"

	"go.uber.org/zap"
)

// ServerConfig holds the configuration settings for the collector server.
type ServerConfig struct {
	Addr          string // Server address
	Logger        *zap.SugaredLogger
	DatabaseDsn   string // Data Source Name for PostgreSQL
	SQLitePath    string // SQLite database file, used when DatabaseDsn is empty
	Key           string // Key for hash verification
	LogLevel      string
	LogFile       string
	ShutdownGrace int // Seconds given to in-flight requests on shutdown
}

// NewServerConfig creates and returns a new ServerConfig by parsing flags, the optional config
// file and environment variables.
func NewServerConfig() *ServerConfig {
	cfg, err := loadServerConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

func loadServerConfig(fs *flag.FlagSet, args []string) (*ServerConfig, error) {
	// 0) defaults
	cfg := &ServerConfig{
		Addr:          "localhost:8080",
		LogLevel:      "info",
		LogFile:       "server.log",
		ShutdownGrace: 5,
	}

	// 1) flags
	var fAddr, fDSN, fSQLite, fKey, fLogLevel, fConf strFlag
	var fGrace intFlag
	fs.Var(&fAddr, "a", "HTTP server address")
	fs.Var(&fDSN, "d", "DB connection string")
	fs.Var(&fSQLite, "sqlite", "path to SQLite database")
	fs.Var(&fKey, "k", "Hash key string")
	fs.Var(&fLogLevel, "log-level", "log level")
	fs.Var(&fGrace, "g", "shutdown grace period (seconds)")
	fs.Var(&fConf, "c", "Path to JSON or YAML config file")
	fs.Var(&fConf, "config", "Path to JSON or YAML config file (alias)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	setStr(&cfg.Addr, fAddr)
	setStr(&cfg.DatabaseDsn, fDSN)
	setStr(&cfg.SQLitePath, fSQLite)
	setStr(&cfg.Key, fKey)
	setStr(&cfg.LogLevel, fLogLevel)
	setInt(&cfg.ShutdownGrace, fGrace)

	// 2) config file (lowest priority after defaults)
	if fConf.v == "" {
		if v := os.Getenv("CONFIG"); v != "" {
			fConf.v = v
		}
	}
	if fConf.v != "" {
		var js serverFile
		if err := loadFile(fConf.v, &js); err != nil {
			log.Printf("config file %s: %v", fConf.v, err)
		} else {
			if js.Address != nil && !fAddr.set {
				cfg.Addr = *js.Address
			}
			if js.DatabaseDSN != nil && !fDSN.set {
				cfg.DatabaseDsn = *js.DatabaseDSN
			}
			if js.SQLitePath != nil && !fSQLite.set {
				cfg.SQLitePath = *js.SQLitePath
			}
			if js.Key != nil && !fKey.set {
				cfg.Key = *js.Key
			}
			if js.LogLevel != nil && !fLogLevel.set {
				cfg.LogLevel = *js.LogLevel
			}
			if js.LogFile != nil {
				cfg.LogFile = *js.LogFile
			}
			if js.ShutdownGrace != nil && !fGrace.set {
				if sec, err := parseDurationSeconds(*js.ShutdownGrace); err == nil {
					cfg.ShutdownGrace = sec
				}
			}
		}
	}

	// 3) environment
	readServerEnvironment(cfg)

	logger, err := NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}
	cfg.Logger = logger
	return cfg, nil
}

func readServerEnvironment(cfg *ServerConfig) {
	envString("ADDRESS", &cfg.Addr)
	envString("DATABASE_DSN", &cfg.DatabaseDsn)
	envString("SQLITE_PATH", &cfg.SQLitePath)
	envString("KEY", &cfg.Key)
	envString("LOG_LEVEL", &cfg.LogLevel)
	envString("LOG_FILE", &cfg.LogFile)
	envInt("SHUTDOWN_GRACE", &cfg.ShutdownGrace)
}
