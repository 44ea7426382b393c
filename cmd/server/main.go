package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/csm-transport/internal/buildinfo"
	"github.com/and161185/csm-transport/internal/config"
	"github.com/and161185/csm-transport/internal/server"
	"github.com/and161185/csm-transport/storage/inmemory"
	"github.com/and161185/csm-transport/storage/postgres"
	"github.com/and161185/csm-transport/storage/sqlite"
)

type closableStorage interface {
	server.Storage
	Close() error
}

func main() {
	buildinfo.PrintBuildInfo()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	config := config.NewServerConfig()
	defer config.Logger.Sync()

	var (
		storage closableStorage
		err     error
	)
	switch {
	case config.DatabaseDsn != "":
		storage, err = postgres.NewPostgresStorage(ctx, config.DatabaseDsn)
	case config.SQLitePath != "":
		storage, err = sqlite.NewSQLiteStore(ctx, config.SQLitePath)
	default:
		storage = inmemory.NewMemStorage()
	}
	if err != nil {
		config.Logger.Fatal(err)
	}
	defer storage.Close()

	config.Logger.Infof("Server config: Addr=%s, DatabaseDSN set=%t, SQLitePath=%q, Key set=%t",
		config.Addr,
		config.DatabaseDsn != "",
		config.SQLitePath,
		config.Key != "",
	)

	srv := server.NewServer(storage, config)
	if err := srv.Run(ctx); err != nil {
		config.Logger.Error(err)
	}
}
