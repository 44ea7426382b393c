// Package config provides application configuration structures and helpers.
package config

import (
	"log"
	"os"
	"strconv"

	"go.uber.org/zap"
)

// NewLogger builds the production logger. Output goes to stdout and, when logFile is set,
// to that file too.
func NewLogger(level, logFile string) (*zap.SugaredLogger, error) {
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"stdout"}
	if logFile != "" {
		logCfg.OutputPaths = append(logCfg.OutputPaths, logFile)
	}
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		logCfg.Level = lvl
	}
	logger, err := logCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s env var: %v", name, err)
		return
	}
	*dst = i
}

func envBool(name string, dst *bool) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("invalid %s env var: %v", name, err)
		return
	}
	*dst = b
}
