package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/csm-transport/internal/agent"
	"github.com/and161185/csm-transport/internal/buildinfo"
	"github.com/and161185/csm-transport/internal/config"
)

func main() {
	buildinfo.PrintBuildInfo()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg := config.NewAgentConfig()
	defer cfg.Logger.Sync()

	cfg.Logger.Infof("Agent config: Addr=%s, SendInterval=%d, BatchSize=%d, QueueDir=%q, CsmEnabled=%t, Key set=%t",
		cfg.ServerAddr,
		cfg.SendInterval,
		cfg.BatchSize,
		cfg.QueueDir,
		cfg.CsmEnabled,
		cfg.Key != "",
	)

	a, err := agent.New(cfg)
	if err != nil {
		cfg.Logger.Fatal(err)
	}
	if err := a.Run(ctx); err != nil {
		cfg.Logger.Fatal(err)
	}
}
